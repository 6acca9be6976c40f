// 最大压力策略
// 不按相位环顺序切换，而是在当前绿灯即将结束时计算各相位的压力，选取压力最大的相位
package trafficlight

import (
	"fmt"

	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
	"github.com/tsinghua-fib-lab/agentsociety-signal/entity/junction/cluster"
	"github.com/tsinghua-fib-lab/agentsociety-signal/utils/config"
	"github.com/tsinghua-fib-lab/agentsociety-signal/utils/container"
	"github.com/tsinghua-fib-lab/agentsociety-signal/utils/metrics"
)

// MaxPressure 最大压力策略
// 功能：
// 1. 当前绿灯在本步内结束时，按各相位流向上驶近车辆数之和（压力）选择下一个相位
// 2. 压力最大的仍是当前相位时延长PhaseTime，连续选中达到MaxRepeat次后改选压力第二大的相位
// 3. 选中其他相位时，保留当前相位的黄、红时段，其后的配时表替换为选中的相位
// 说明：选择点之后的配时按相位环轮转填充，仅用于满足时域覆盖，到下一个选择点时会被替换
type MaxPressure struct {
	cfg     config.Signal
	metrics *metrics.Collector

	phase  int // 最近一次选择时的当前相位
	repeat int // 当前相位连续被选中的次数
}

// NewMaxPressure 创建最大压力策略
// 参数：cfg-信号控制配置（使用MaxPressure.PhaseTime与MaxPressure.MaxRepeat），m-指标收集器
func NewMaxPressure(cfg config.Signal, m *metrics.Collector) *MaxPressure {
	return &MaxPressure{cfg: cfg, metrics: m, phase: -1}
}

func (p *MaxPressure) Name() string {
	return PolicyMaxPressure
}

func (p *MaxPressure) Refill(l *Ledger, c *cluster.Cluster, obs *Observation) error {
	if c.Empty() {
		return nil
	}
	appended := 0
	defer func() { p.metrics.AddPeriods(p.Name(), appended) }()

	t := timing{p.cfg.MaxPressure.PhaseTime, p.cfg.YellowTime, p.cfg.RedTime}
	l.Prune(obs.Now)
	if head, ok := l.Head(); !ok {
		best := p.choose(c, obs, len(c.Phases)-1, false)
		if _, err := appendPhase(l, best, obs.Now, t); err != nil {
			return err
		}
		p.phase, p.repeat = best, 1
		appended += 3
	} else if head.Color == mapv2.LightState_LIGHT_STATE_GREEN && obs.Now+obs.DT >= head.End {
		if head.Phase != p.phase {
			p.phase, p.repeat = head.Phase, 1
		}
		best := p.choose(c, obs, head.Phase, p.repeat >= p.cfg.MaxPressure.MaxRepeat)
		if best == head.Phase {
			if err := l.Extend(head.ID, t.green); err != nil {
				return fmt.Errorf("extend green of phase %d: %w", head.Phase, err)
			}
			p.repeat++
			p.metrics.IncGreenExtensions()
		} else {
			n, err := p.switchTo(l, head, best, t)
			appended += n
			if err != nil {
				return err
			}
		}
	}
	n, err := refillRoundRobin(l, c, obs.Now, p.cfg.Horizon,
		func(int) float64 { return t.green }, t.yellow, t.red)
	appended += 3 * n
	return err
}

// choose 选择压力最大的相位
// 参数：current-当前相位，excludeCurrent-当前相位已达到连续选中上限
// 说明：压力相同时按相位环上距当前相位的顺序选择，当前相位排在最后；全部为0时即为相位环的后继
func (p *MaxPressure) choose(c *cluster.Cluster, obs *Observation, current int, excludeCurrent bool) int {
	n := len(c.Phases)
	heap := container.NewPriorityQueue[int]()
	for k := 1; k <= n; k++ {
		i := (current + k) % n
		if excludeCurrent && i == current && n > 1 {
			continue
		}
		heap.HeapPush(i, -obs.PhasePressure(c.Phases[i])) // 小顶堆，压力越大越靠前
	}
	best, pressure := heap.HeapPop()
	if pressure == 0 && best == current && n > 1 {
		// 无车时不延长
		return (current + 1) % n
	}
	return best
}

// switchTo 保留当前相位的黄、红时段，之后接入next相位
// 返回：追加的时段数
func (p *MaxPressure) switchTo(l *Ledger, head LightPeriod, next int, t timing) (int, error) {
	red, err := redOf(l, head)
	if err != nil {
		return 0, err
	}
	if err = l.TruncateAfter(red.ID); err != nil {
		return 0, err
	}
	if _, err = appendPhase(l, next, red.End, t); err != nil {
		return 0, err
	}
	p.phase, p.repeat = next, 1
	return 3, nil
}
