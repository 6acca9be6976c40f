package roadnet

import (
	"fmt"

	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
	"github.com/tsinghua-fib-lab/agentsociety-signal/entity"
)

// Lane 道路上的行车道
type Lane struct {
	id   int32
	turn mapv2.LaneTurn
	edge *Edge
	maxV float64

	vehicles laneList
}

func newLane(id int32, turn mapv2.LaneTurn, edge *Edge, maxV float64) *Lane {
	return &Lane{
		id:       id,
		turn:     turn,
		edge:     edge,
		maxV:     maxV,
		vehicles: newLaneList(fmt.Sprintf("lane %d vehicles", id)),
	}
}

func (l *Lane) ID() int32 {
	return l.id
}

func (l *Lane) Turn() mapv2.LaneTurn {
	return l.turn
}

func (l *Lane) Edge() entity.IEdge {
	return l.edge
}

func (l *Lane) MaxV() float64 {
	return l.maxV
}

// Vehicles 车道上的车辆，按车头位置从小到大排序（反映上一次prepare后的状态）
func (l *Lane) Vehicles() []entity.IVehicle {
	vs := make([]entity.IVehicle, 0, l.vehicles.list.Len())
	for node := l.vehicles.list.First(); node != nil; node = node.Next() {
		vs = append(vs, node.Value)
	}
	return vs
}

func (l *Lane) prepare() {
	l.vehicles.prepare()
}
