package cluster

import (
	"fmt"

	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
	"github.com/tsinghua-fib-lab/agentsociety-signal/entity"
)

// TurnGroup 流向覆盖的转向
type TurnGroup int

const (
	TurnAny     TurnGroup = iota // 整条道路
	TurnThrough                  // 直行与右转
	TurnLeft                     // 左转与掉头
)

func (g TurnGroup) String() string {
	switch g {
	case TurnThrough:
		return "through"
	case TurnLeft:
		return "left"
	default:
		return "any"
	}
}

func turnGroupOf(turn mapv2.LaneTurn) TurnGroup {
	if turn == mapv2.LaneTurn_LANE_TURN_LEFT {
		return TurnLeft
	}
	return TurnThrough
}

// Movement 最小可控交通流：一条驶入道路（可选地限定转向）
// 构建后不可变
type Movement struct {
	ID   int32
	Edge entity.IEdge
	Turn TurnGroup
}

func (m *Movement) String() string {
	return fmt.Sprintf("Movement{ID:%d, Edge:%d, Turn:%v}", m.ID, m.Edge.ID(), m.Turn)
}

// Serves 车道上的车辆是否属于该流向
func (m *Movement) Serves(lane entity.ILane) bool {
	if lane.Edge().ID() != m.Edge.ID() {
		return false
	}
	return m.Turn == TurnAny || m.Turn == turnGroupOf(lane.Turn())
}

// Phase 可以同时获得通行权的一组流向
type Phase struct {
	Index     int    // 在信号灯组相位环中的序号
	Name      string // 道路名，未命名道路形成的退化相位为空
	Movements []*Movement
}

// Contains 判断流向是否属于该相位
// 说明：退化的单流向相位按控制道路比较
func (p *Phase) Contains(m *Movement) bool {
	if len(p.Movements) == 1 && p.Name == "" {
		only := p.Movements[0]
		return only.Edge.ID() == m.Edge.ID() && (only.Turn == TurnAny || only.Turn == m.Turn)
	}
	for _, pm := range p.Movements {
		if pm.ID == m.ID {
			return true
		}
	}
	return false
}

// Cluster 信号灯组：距离相近、共用一套配时的路口集合
type Cluster struct {
	ID        int32
	Nodes     []entity.INode
	Phases    []*Phase
	Movements []*Movement

	phaseOf map[int32]int // movement id -> phase index
}

// Empty 没有任何相位的信号灯组不参与调度
func (c *Cluster) Empty() bool {
	return len(c.Phases) == 0
}

// PhaseOf 流向所属相位序号，不属于该信号灯组时返回-1
func (c *Cluster) PhaseOf(m *Movement) int {
	if i, ok := c.phaseOf[m.ID]; ok {
		return i
	}
	return -1
}

// MovementOfLane 车道所属的流向
func (c *Cluster) MovementOfLane(lane entity.ILane) (*Movement, bool) {
	for _, m := range c.Movements {
		if m.Serves(lane) {
			return m, true
		}
	}
	return nil, false
}

// NodeIDs 信号灯组内全部路口ID
func (c *Cluster) NodeIDs() []int32 {
	ids := make([]int32, len(c.Nodes))
	for i, n := range c.Nodes {
		ids[i] = n.ID()
	}
	return ids
}
