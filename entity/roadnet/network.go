package roadnet

import (
	"fmt"
	"sort"

	"git.fiblab.net/general/common/v2/parallel"
	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-signal/entity"
	"github.com/tsinghua-fib-lab/agentsociety-signal/utils/container"
)

// Network 内存路网
// 功能：保存路口、驶入道路、车道与车辆，实现信号调度所需的路网查询与显示写入接口
// 说明：拓扑在初始化后不变；车辆的增删与位置更新在Prepare后对查询生效
type Network struct {
	nodes    map[int32]*Node
	edges    map[int32]*Edge
	lanes    map[int32]*Lane
	vehicles map[int32]*Vehicle

	nodeList []*Node
	laneList []*Lane
	active   *container.IncrementalArray[*Vehicle] // 已生效的车辆
}

// New 创建空路网
func New() *Network {
	return &Network{
		nodes:    make(map[int32]*Node),
		edges:    make(map[int32]*Edge),
		lanes:    make(map[int32]*Lane),
		vehicles: make(map[int32]*Vehicle),
		active:   container.NewIncrementalArray[*Vehicle](),
	}
}

// AddNode 添加路口节点
func (n *Network) AddNode(id int32, x, y float64, hasSignal bool) *Node {
	if _, ok := n.nodes[id]; ok {
		log.Panicf("duplicate node id %d", id)
	}
	node := newNode(id, x, y, hasSignal)
	n.nodes[id] = node
	n.nodeList = append(n.nodeList, node)
	return node
}

// AddEdge 添加驶入路口to的道路
// 参数：name-道路名（同名道路属于同一相位），length-长度，inAngle-驶入路口的行进方向角（弧度）
func (n *Network) AddEdge(id int32, name string, length, inAngle float64, to int32) *Edge {
	if _, ok := n.edges[id]; ok {
		log.Panicf("duplicate edge id %d", id)
	}
	node := n.Node(to)
	edge := newEdge(id, name, length, inAngle, node)
	n.edges[id] = edge
	node.inwardEdges = append(node.inwardEdges, edge)
	return edge
}

// AddLane 添加行车道，车道按添加顺序（从左到右）排列
func (n *Network) AddLane(id int32, edgeID int32, turn mapv2.LaneTurn, maxV float64) *Lane {
	if _, ok := n.lanes[id]; ok {
		log.Panicf("duplicate lane id %d", id)
	}
	edge := n.Edge(edgeID)
	lane := newLane(id, turn, edge, maxV)
	n.lanes[id] = lane
	n.laneList = append(n.laneList, lane)
	edge.lanes = append(edge.lanes, lane)
	return lane
}

// AddVehicle 在车道上添加车辆，下一次Prepare后可见
func (n *Network) AddVehicle(id int32, laneID int32, s, v, length, maxV float64) *Vehicle {
	if _, ok := n.vehicles[id]; ok {
		log.Panicf("duplicate vehicle id %d", id)
	}
	lane := n.Lane(laneID)
	vehicle := &Vehicle{
		id:     id,
		lane:   lane,
		length: length,
		maxV:   maxV,
		v:      v,
		record: entity.NewVehicleScheduleRecord(),
	}
	vehicle.node = &container.ListNode[*Vehicle]{S: s, Value: vehicle}
	n.vehicles[id] = vehicle
	n.active.Add(vehicle)
	lane.vehicles.add(vehicle.node)
	return vehicle
}

// RemoveVehicle 移除车辆，下一次Prepare后生效
// 说明：车辆在本步内刚加入或刚换道时同样可以移除
func (n *Network) RemoveVehicle(id int32) error {
	vehicle, ok := n.vehicles[id]
	if !ok {
		return fmt.Errorf("vehicle %d not found", id)
	}
	vehicle.lane.vehicles.remove(vehicle.node)
	n.active.Remove(vehicle)
	delete(n.vehicles, id)
	return nil
}

// Prepare 准备阶段：并行应用所有车道的车辆增删并恢复排序
func (n *Network) Prepare() {
	parallel.GoFor(n.laneList, func(l *Lane) { l.prepare() })
	n.active.Prepare()
}

// Vehicles 上一次Prepare后路网中的全部车辆（无序）
func (n *Network) Vehicles() []*Vehicle {
	return n.active.Data()
}

func (n *Network) Node(id int32) *Node {
	if node, ok := n.nodes[id]; !ok {
		log.Panicf("no node %d", id)
		return nil
	} else {
		return node
	}
}

func (n *Network) Edge(id int32) *Edge {
	if edge, ok := n.edges[id]; !ok {
		log.Panicf("no edge %d", id)
		return nil
	} else {
		return edge
	}
}

func (n *Network) Lane(id int32) *Lane {
	if lane, ok := n.lanes[id]; !ok {
		log.Panicf("no lane %d", id)
		return nil
	} else {
		return lane
	}
}

// Vehicle 根据ID获取车辆
func (n *Network) Vehicle(id int32) (*Vehicle, error) {
	if v, ok := n.vehicles[id]; ok {
		return v, nil
	}
	return nil, fmt.Errorf("vehicle %d not found", id)
}

// NodesWithSignal 全部信控路口，按ID升序
func (n *Network) NodesWithSignal() []entity.INode {
	nodes := lo.FilterMap(n.nodeList, func(node *Node, _ int) (entity.INode, bool) {
		return node, node.hasSignal
	})
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID() < nodes[j].ID() })
	return nodes
}

func (n *Network) InwardEdges(node entity.INode) []entity.IEdge {
	return node.InwardEdges()
}

func (n *Network) LanesOfEdge(edge entity.IEdge) []entity.ILane {
	return edge.Lanes()
}

func (n *Network) VehiclesInLane(lane entity.ILane) []entity.IVehicle {
	return lane.Vehicles()
}
