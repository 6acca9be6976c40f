package junction

import (
	"fmt"

	"git.fiblab.net/general/common/v2/mathutil"
	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
	"github.com/tsinghua-fib-lab/agentsociety-signal/entity"
	"github.com/tsinghua-fib-lab/agentsociety-signal/entity/junction/cluster"
	"github.com/tsinghua-fib-lab/agentsociety-signal/entity/junction/trafficlight"
	"github.com/tsinghua-fib-lab/agentsociety-signal/utils/config"
)

// ClusterRuntime 相位式信号灯组运行时
// 功能：持有信号灯组的配时表与调度策略，每步由策略补充配时表，
// 并按配时表把各流向的灯色与倒计时写入驶入道路
// 说明：
// 1. 信控关闭时全部流向显示绿灯，倒计时为无穷大，配时表清空，重新开启时从当前时刻重新排配时
// 2. 调度出错时清空配时表，下一步准备阶段全部流向保持红灯
type ClusterRuntime struct {
	network entity.IRoadNetwork
	cluster *cluster.Cluster
	ledger  *trafficlight.Ledger
	policy  trafficlight.Policy
	cfg     config.Signal

	ok       bool // 信号灯状态，true为开启，false为关闭
	okBuffer bool // 信号灯状态buffer，用于交互式接口写入
	failed   bool // 上一次调度失败
}

// NewClusterRuntime 创建相位式信号灯组运行时
// 参数：network-路网，c-信号灯组，policy-调度策略，cfg-相位式信控配置
func NewClusterRuntime(network entity.IRoadNetwork, c *cluster.Cluster, policy trafficlight.Policy, cfg config.Signal) *ClusterRuntime {
	return &ClusterRuntime{
		network:  network,
		cluster:  c,
		ledger:   trafficlight.NewLedger(c),
		policy:   policy,
		cfg:      cfg,
		ok:       true,
		okBuffer: true,
	}
}

func (r *ClusterRuntime) ID() int32 {
	return r.cluster.ID
}

func (r *ClusterRuntime) Cluster() *cluster.Cluster {
	return r.cluster
}

func (r *ClusterRuntime) Mode() string {
	return config.ModePhase
}

func (r *ClusterRuntime) Ledger() *trafficlight.Ledger {
	return r.ledger
}

func (r *ClusterRuntime) Policy() trafficlight.Policy {
	return r.policy
}

func (r *ClusterRuntime) Ok() bool {
	return r.ok
}

func (r *ClusterRuntime) SetOk(ok bool) {
	r.okBuffer = ok
}

// Prepare 准备阶段
func (r *ClusterRuntime) Prepare(now float64) {
	if r.ok != r.okBuffer {
		r.ok = r.okBuffer
		r.ledger.Clear()
	}
	switch {
	case !r.ok:
		r.setAll(mapv2.LightState_LIGHT_STATE_GREEN)
	case r.failed:
		r.setAll(trafficlight.KeepRed)
		r.failed = false
	default:
		r.UpdateLights(now)
	}
}

// Update 更新阶段：采集需求并由策略补充配时表
func (r *ClusterRuntime) Update(now, dt float64) error {
	if !r.ok || r.cluster.Empty() {
		return nil
	}
	obs := observe(r.network, r.cluster, r.cfg, r.policy.Name() == trafficlight.PolicyDelayMinimizing, now, dt)
	if err := r.policy.Refill(r.ledger, r.cluster, obs); err != nil {
		r.ledger.Clear()
		r.failed = true
		return fmt.Errorf("light group %d refill with %s: %w", r.cluster.ID, r.policy.Name(), err)
	}
	return nil
}

// UpdateLights 按配时表写入now时刻各流向的灯色，以及各驶入道路距离下一次绿、黄、红灯的时间
// 说明：一条道路有多个流向时，倒计时取各流向中最早的
func (r *ClusterRuntime) UpdateLights(now float64) {
	type countdown struct {
		edge               entity.IEdge
		green, yellow, red float64
	}
	countdowns := make(map[int32]*countdown)
	order := make([]int32, 0)
	for _, m := range r.cluster.Movements {
		m.Edge.SetMovementColor(m.ID, r.ledger.ColorAt(m, now))
		cd, ok := countdowns[m.Edge.ID()]
		if !ok {
			cd = &countdown{edge: m.Edge, green: mathutil.INF, yellow: mathutil.INF, red: mathutil.INF}
			countdowns[m.Edge.ID()] = cd
			order = append(order, m.Edge.ID())
		}
		cd.green = min(cd.green, r.ledger.TimeUntil(m, now, mapv2.LightState_LIGHT_STATE_GREEN))
		cd.yellow = min(cd.yellow, r.ledger.TimeUntil(m, now, mapv2.LightState_LIGHT_STATE_YELLOW))
		cd.red = min(cd.red, r.ledger.TimeUntil(m, now, mapv2.LightState_LIGHT_STATE_RED))
	}
	for _, id := range order {
		cd := countdowns[id]
		cd.edge.SetTimeNextGreen(cd.green)
		cd.edge.SetTimeNextYellow(cd.yellow)
		cd.edge.SetTimeNextRed(cd.red)
	}
}

// setAll 全部流向显示同一灯色，倒计时无穷大
func (r *ClusterRuntime) setAll(state mapv2.LightState) {
	setAll(r.cluster, state)
}

func setAll(c *cluster.Cluster, state mapv2.LightState) {
	for _, m := range c.Movements {
		m.Edge.SetMovementColor(m.ID, state)
		m.Edge.SetTimeNextGreen(mathutil.INF)
		m.Edge.SetTimeNextYellow(mathutil.INF)
		m.Edge.SetTimeNextRed(mathutil.INF)
	}
}

// ToPb 将配时表转换为信号灯程序
// 功能：每个时段转为一个相位，States按信号灯组流向顺序给出灯色
// 返回：信号灯程序、当前相位序号（即0）与当前时段剩余时间
func (r *ClusterRuntime) ToPb(junctionID int32, now float64) (*mapv2.TrafficLight, int32, float64) {
	r.ledger.Prune(now)
	periods := r.ledger.Periods()
	tl := &mapv2.TrafficLight{JunctionId: junctionID}
	for _, p := range periods {
		states := make([]mapv2.LightState, len(r.cluster.Movements))
		for i, m := range r.cluster.Movements {
			if r.cluster.PhaseOf(m) == p.Phase {
				states[i] = p.Color
			} else {
				states[i] = trafficlight.KeepRed
			}
		}
		tl.Phases = append(tl.Phases, &mapv2.Phase{Duration: p.Duration(), States: states})
	}
	if len(periods) == 0 {
		return tl, 0, 0
	}
	return tl, 0, max(0, periods[0].End-now)
}
