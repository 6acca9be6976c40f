package trafficlight

import (
	"fmt"

	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
	"github.com/tsinghua-fib-lab/agentsociety-signal/entity/junction/cluster"
	"github.com/tsinghua-fib-lab/agentsociety-signal/utils/config"
	"github.com/tsinghua-fib-lab/agentsociety-signal/utils/metrics"
)

// Adaptive 感应控制策略
// 功能：绿灯以最小绿灯时长排入配时表；当前绿灯即将结束且相位仍检测到车辆时，
// 逐步延长绿灯直到达到最大绿灯时长，之后按相位环正常轮转
// 说明：每次评估后清空本信号灯组所有驶入道路的检测标志
type Adaptive struct {
	cfg     config.Signal
	metrics *metrics.Collector
}

// NewAdaptive 创建感应控制策略
// 参数：cfg-信号控制配置（使用MinGreenTime、MaxGreenTime与DetectDistance），m-指标收集器
func NewAdaptive(cfg config.Signal, m *metrics.Collector) *Adaptive {
	return &Adaptive{cfg: cfg, metrics: m}
}

func (p *Adaptive) Name() string {
	return PolicyAdaptive
}

// Refill 先评估当前绿灯是否延长，再以最小绿灯时长按相位环补充配时表
// 返回：延长或追加时段时配时表的错误
func (p *Adaptive) Refill(l *Ledger, c *cluster.Cluster, obs *Observation) error {
	if c.Empty() {
		return nil
	}
	defer func() {
		for _, m := range c.Movements {
			m.Edge.SetVehicleDetected(false)
		}
	}()

	if err := p.extendHead(l, c, obs); err != nil {
		return err
	}
	n, err := refillRoundRobin(l, c, obs.Now, p.cfg.Horizon,
		func(int) float64 { return p.cfg.MinGreenTime }, p.cfg.YellowTime, p.cfg.RedTime)
	p.metrics.AddPeriods(p.Name(), 3*n)
	return err
}

// extendHead 绿灯延长
func (p *Adaptive) extendHead(l *Ledger, c *cluster.Cluster, obs *Observation) error {
	l.Prune(obs.Now)
	head, ok := l.Head()
	if !ok || head.Color != mapv2.LightState_LIGHT_STATE_GREEN {
		return nil
	}
	if obs.Now+obs.DT < head.End {
		return nil
	}
	if head.Phase >= len(c.Phases) || !obs.PhaseDetected(c.Phases[head.Phase]) {
		return nil
	}
	delta := min(obs.DT, p.cfg.MaxGreenTime-head.Duration())
	if delta <= 0 {
		return nil
	}
	if err := l.Extend(head.ID, delta); err != nil {
		return fmt.Errorf("extend green of phase %d: %w", head.Phase, err)
	}
	p.metrics.IncGreenExtensions()
	return nil
}
