package cluster

import (
	"math"
	"sort"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-signal/entity"
)

// GroupNodes 按距离将信控路口分组
// 功能：依次取每个未分组的路口，将半径内的其余未分组路口并入同一组
// 参数：nodes-信控路口，radius-组内路口到首个路口的最大距离（米）
// 返回：路口分组，组内与组间顺序均按路口ID确定
func GroupNodes(nodes []entity.INode, radius float64) [][]entity.INode {
	sorted := make([]entity.INode, len(nodes))
	copy(sorted, nodes)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID() < sorted[j].ID() })

	grouped := make([]bool, len(sorted))
	groups := make([][]entity.INode, 0)
	for i, center := range sorted {
		if grouped[i] {
			continue
		}
		grouped[i] = true
		group := []entity.INode{center}
		for j := i + 1; j < len(sorted); j++ {
			if grouped[j] {
				continue
			}
			a, b := center.XY(), sorted[j].XY()
			if math.Hypot(a.X-b.X, a.Y-b.Y) <= radius {
				grouped[j] = true
				group = append(group, sorted[j])
			}
		}
		groups = append(groups, group)
	}
	return groups
}

// movementIDAllocator 全局唯一的流向ID分配
type movementIDAllocator struct {
	next int32
}

func (a *movementIDAllocator) alloc() int32 {
	id := a.next
	a.next++
	return id
}

// GroupMovements 将路口组的驶入流向按道路名划分为相位
// 功能：同名道路的流向属于同一相位，相位顺序为道路名首次出现的顺序
// 参数：nodes-路口组，splitTurns-是否将左转与直行右转拆分为不同相位
// 返回：相位列表（即相位环顺序）与全部流向
// 说明：未命名的道路单独形成退化相位
func GroupMovements(nodes []entity.INode, splitTurns bool) ([]*Phase, []*Movement) {
	return groupMovements(nodes, splitTurns, &movementIDAllocator{})
}

// phaseKey 同一相位的流向具有相同的键
type phaseKey struct {
	name string
	turn TurnGroup
	edge int32 // 仅退化相位使用
}

func phaseKeyOf(m *Movement) phaseKey {
	key := phaseKey{name: m.Edge.Name(), turn: m.Turn}
	if key.name == "" {
		key.edge = m.Edge.ID()
	}
	return key
}

func groupMovements(nodes []entity.INode, splitTurns bool, ids *movementIDAllocator) ([]*Phase, []*Movement) {
	movements := make([]*Movement, 0)
	for _, node := range nodes {
		for _, edge := range node.InwardEdges() {
			for _, turn := range edgeTurnGroups(edge, splitTurns) {
				movements = append(movements, &Movement{ID: ids.alloc(), Edge: edge, Turn: turn})
			}
		}
	}
	byKey := lo.GroupBy(movements, phaseKeyOf)
	phases := lo.Map(lo.UniqBy(movements, phaseKeyOf), func(first *Movement, i int) *Phase {
		return &Phase{Index: i, Name: first.Edge.Name(), Movements: byKey[phaseKeyOf(first)]}
	})
	return phases, movements
}

// edgeTurnGroups 道路上出现的转向分组，按直行、左转的顺序
func edgeTurnGroups(edge entity.IEdge, splitTurns bool) []TurnGroup {
	if !splitTurns || len(edge.Lanes()) == 0 {
		return []TurnGroup{TurnAny}
	}
	var through, left bool
	for _, lane := range edge.Lanes() {
		if turnGroupOf(lane.Turn()) == TurnLeft {
			left = true
		} else {
			through = true
		}
	}
	groups := make([]TurnGroup, 0, 2)
	if through {
		groups = append(groups, TurnThrough)
	}
	if left {
		groups = append(groups, TurnLeft)
	}
	return groups
}

// Build 构建全部信号灯组
// 功能：对路网中的信控路口分组、划分相位，设置路口所属信号灯组，并清空驶入道路的检测标志
// 参数：network-路网，radius-分组半径，splitTurns-是否拆分左转相位
// 返回：信号灯组列表，ID即下标
func Build(network entity.IRoadNetwork, radius float64, splitTurns bool) []*Cluster {
	ids := &movementIDAllocator{}
	groups := GroupNodes(network.NodesWithSignal(), radius)
	clusters := make([]*Cluster, 0, len(groups))
	for _, nodes := range groups {
		c := &Cluster{
			ID:      int32(len(clusters)),
			Nodes:   nodes,
			phaseOf: make(map[int32]int),
		}
		c.Phases, c.Movements = groupMovements(nodes, splitTurns, ids)
		for _, p := range c.Phases {
			for _, m := range p.Movements {
				c.phaseOf[m.ID] = p.Index
				m.Edge.SetVehicleDetected(false)
			}
		}
		for _, node := range nodes {
			node.SetLightGroupWhenInit(c.ID)
		}
		if c.Empty() {
			log.Warnf("light group %d (nodes %v) has no inward movement, skip scheduling", c.ID, c.NodeIDs())
		}
		clusters = append(clusters, c)
	}
	log.Infof("built %d light groups from %d signalized nodes",
		len(clusters), lo.SumBy(groups, func(g []entity.INode) int { return len(g) }))
	return clusters
}
