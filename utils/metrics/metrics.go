// 信号调度的Prometheus指标
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector 调度指标集合
// 功能：统计各策略追加的时段数、绿灯延长次数、预约分配数量与调度错误
// 说明：所有方法对nil接收者安全，未启用指标时可直接传nil
type Collector struct {
	gatherer prometheus.Gatherer

	PeriodsAppended     *prometheus.CounterVec // label: policy
	GreenExtensions     prometheus.Counter
	ReservationsAssign  *prometheus.CounterVec // label: controller
	SchedulingErrors    *prometheus.CounterVec // label: kind
	PlanningDuration    prometheus.Histogram
	ActiveLightClusters prometheus.Gauge
}

// NewCollector 创建并注册调度指标
// 参数：reg-注册器，为nil时使用prometheus默认注册器
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	c := &Collector{gatherer: gatherer}
	var err error
	if c.PeriodsAppended, err = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "signal_periods_appended_total",
		Help: "Light periods appended to cluster schedules, by policy.",
	}, []string{"policy"}), "signal_periods_appended_total"); err != nil {
		return nil, err
	}
	if c.GreenExtensions, err = registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "signal_green_extensions_total",
		Help: "Green periods extended by the adaptive policy.",
	}), "signal_green_extensions_total"); err != nil {
		return nil, err
	}
	if c.ReservationsAssign, err = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "signal_reservations_assigned_total",
		Help: "Vehicle crossing times assigned by reservation controllers.",
	}, []string{"controller"}), "signal_reservations_assigned_total"); err != nil {
		return nil, err
	}
	if c.SchedulingErrors, err = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "signal_scheduling_errors_total",
		Help: "Scheduling errors contained per cluster or intersection, by kind.",
	}, []string{"kind"}), "signal_scheduling_errors_total"); err != nil {
		return nil, err
	}
	if c.PlanningDuration, err = registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "signal_planning_duration_seconds",
		Help:    "Wall time of one delay-minimizing planning search.",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
	}), "signal_planning_duration_seconds"); err != nil {
		return nil, err
	}
	if c.ActiveLightClusters, err = registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "signal_active_light_clusters",
		Help: "Light clusters with an enabled schedule.",
	}), "signal_active_light_clusters"); err != nil {
		return nil, err
	}
	return c, nil
}

// Handler 返回/metrics的HTTP处理器
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}

func (c *Collector) AddPeriods(policy string, n int) {
	if c == nil || n <= 0 {
		return
	}
	c.PeriodsAppended.WithLabelValues(policy).Add(float64(n))
}

func (c *Collector) IncGreenExtensions() {
	if c == nil {
		return
	}
	c.GreenExtensions.Inc()
}

func (c *Collector) AddReservations(controller string, n int) {
	if c == nil || n <= 0 {
		return
	}
	c.ReservationsAssign.WithLabelValues(controller).Add(float64(n))
}

func (c *Collector) IncSchedulingErrors(kind string) {
	if c == nil {
		return
	}
	c.SchedulingErrors.WithLabelValues(kind).Inc()
}

func (c *Collector) ObservePlanning(d time.Duration) {
	if c == nil {
		return
	}
	c.PlanningDuration.Observe(d.Seconds())
}

func (c *Collector) SetActiveLightClusters(n int) {
	if c == nil {
		return
	}
	c.ActiveLightClusters.Set(float64(n))
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}
