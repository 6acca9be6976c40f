package trafficlight

import (
	"fmt"

	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
	"github.com/tsinghua-fib-lab/agentsociety-signal/entity/junction/cluster"
	"github.com/tsinghua-fib-lab/agentsociety-signal/utils/config"
	"github.com/tsinghua-fib-lab/agentsociety-signal/utils/metrics"
)

// Observation 单步调度前采集的需求快照
type Observation struct {
	Now float64 // 当前时刻
	DT  float64 // 步长

	Detected map[int32]bool    // 流向ID -> 是否检测到等待车辆
	Pressure map[int32]float64 // 流向ID -> 驶近停车线的车辆数
	Batches  []Batch           // 车队，按到达时间排序（仅延误最小化策略使用）
}

// PhaseDetected 相位内是否有流向检测到车辆
func (o *Observation) PhaseDetected(p *cluster.Phase) bool {
	if o == nil {
		return false
	}
	for _, m := range p.Movements {
		if o.Detected[m.ID] {
			return true
		}
	}
	return false
}

// PhasePressure 相位内各流向的压力之和
func (o *Observation) PhasePressure(p *cluster.Phase) float64 {
	if o == nil {
		return 0
	}
	pressure := 0.
	for _, m := range p.Movements {
		pressure += o.Pressure[m.ID]
	}
	return pressure
}

// Policy 相位式信号调度策略
// 功能：在每一步根据需求快照修改或补充配时表，保证表尾至少覆盖到now+horizon
type Policy interface {
	Name() string
	Refill(l *Ledger, c *cluster.Cluster, obs *Observation) error
}

// timing 一个相位的绿黄红时长
type timing struct {
	green, yellow, red float64
}

// appendPhase 在表尾追加一个相位完整的绿、黄、红时段
// 返回：追加后的表尾时间
func appendPhase(l *Ledger, phase int, start float64, t timing) (float64, error) {
	colors := [3]mapv2.LightState{
		mapv2.LightState_LIGHT_STATE_GREEN,
		mapv2.LightState_LIGHT_STATE_YELLOW,
		mapv2.LightState_LIGHT_STATE_RED,
	}
	durations := [3]float64{t.green, t.yellow, t.red}
	for i, color := range colors {
		end := start + durations[i]
		if _, err := l.AddPeriod(phase, color, start, end); err != nil {
			return start, fmt.Errorf("append phase %d: %w", phase, err)
		}
		start = end
	}
	return start, nil
}

// nextPhase 表尾相位在相位环中的后继；空表从0号相位开始
func nextPhase(l *Ledger, numPhases int) (phase int, start float64, ok bool) {
	tail, ok := l.Tail()
	if !ok {
		return 0, 0, false
	}
	return (tail.Phase + 1) % numPhases, tail.End, true
}

// redOf 时段head所在相位的红灯时段（head本身为红灯时即为head）
func redOf(l *Ledger, head LightPeriod) (LightPeriod, error) {
	for _, period := range l.Periods() {
		if period.ID >= head.ID && period.Phase == head.Phase && period.Color == mapv2.LightState_LIGHT_STATE_RED {
			return period, nil
		}
	}
	return LightPeriod{}, fmt.Errorf("%w: no red period after %d", ErrPeriodNotFound, head.ID)
}

// refillRoundRobin 按相位环顺序补充配时表，直到覆盖now+horizon
// 参数：greenOf-相位的绿灯时长
// 返回：追加的相位数
func refillRoundRobin(
	l *Ledger, c *cluster.Cluster, now, horizon float64,
	greenOf func(phase int) float64, yellow, red float64,
) (int, error) {
	if c.Empty() {
		return 0, nil
	}
	appended := 0
	for {
		phase, start, ok := nextPhase(l, len(c.Phases))
		if !ok {
			start = now
		} else if start-now >= horizon {
			return appended, nil
		}
		t := timing{greenOf(phase), yellow, red}
		if t.green+t.yellow+t.red <= 0 {
			return appended, fmt.Errorf("phase %d has non-positive cycle length", phase)
		}
		if _, err := appendPhase(l, phase, start, t); err != nil {
			return appended, err
		}
		appended++
	}
}

// Fixed 定周期策略：按相位环轮转，各灯色时长固定
type Fixed struct {
	cfg     config.Signal
	metrics *metrics.Collector
}

// NewFixed 创建定周期策略
// 参数：cfg-信号控制配置（使用GreenTime、YellowTime、RedTime与Horizon），m-指标收集器
func NewFixed(cfg config.Signal, m *metrics.Collector) *Fixed {
	return &Fixed{cfg: cfg, metrics: m}
}

func (p *Fixed) Name() string {
	return PolicyFixed
}

// Refill 按相位环补充配时表至now+Horizon，不修改已有时段
// 返回：追加时段不连续时的错误
func (p *Fixed) Refill(l *Ledger, c *cluster.Cluster, obs *Observation) error {
	n, err := refillRoundRobin(l, c, obs.Now, p.cfg.Horizon,
		func(int) float64 { return p.cfg.GreenTime }, p.cfg.YellowTime, p.cfg.RedTime)
	p.metrics.AddPeriods(p.Name(), 3*n)
	return err
}
