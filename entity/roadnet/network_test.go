package roadnet_test

import (
	"testing"

	"git.fiblab.net/general/common/v2/mathutil"
	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/agentsociety-signal/entity"
	"github.com/tsinghua-fib-lab/agentsociety-signal/entity/roadnet"
)

func newCross() *roadnet.Network {
	n := roadnet.New()
	n.AddNode(2, 100, 0, true)
	n.AddNode(1, 0, 0, true)
	n.AddNode(3, 500, 0, false)
	n.AddEdge(10, "north", 200, 0, 1)
	n.AddEdge(11, "east", 200, 1.57, 1)
	n.AddLane(100, 10, mapv2.LaneTurn_LANE_TURN_STRAIGHT, 15)
	n.AddLane(101, 10, mapv2.LaneTurn_LANE_TURN_RIGHT, 15)
	n.AddLane(110, 11, mapv2.LaneTurn_LANE_TURN_LEFT, 15)
	return n
}

func TestNodesWithSignalSorted(t *testing.T) {
	n := newCross()
	ids := lo.Map(n.NodesWithSignal(), func(node entity.INode, _ int) int32 { return node.ID() })
	assert.Equal(t, []int32{1, 2}, ids)
	assert.Len(t, n.InwardEdges(n.Node(1)), 2)
	assert.Len(t, n.LanesOfEdge(n.Edge(10)), 2)
	assert.Equal(t, int32(-1), n.Node(1).LightGroupID())
	n.Node(1).SetLightGroupWhenInit(0)
	assert.Panics(t, func() { n.Node(1).SetLightGroupWhenInit(1) })
}

func TestVehiclesSortedAfterPrepare(t *testing.T) {
	n := newCross()
	n.AddVehicle(1, 100, 50, 10, 5, 20)
	n.AddVehicle(2, 100, 20, 10, 5, 20)
	// 未Prepare前不可见
	assert.Empty(t, n.VehiclesInLane(n.Lane(100)))
	n.Prepare()
	ids := lo.Map(n.VehiclesInLane(n.Lane(100)), func(v entity.IVehicle, _ int) int32 { return v.ID() })
	assert.Equal(t, []int32{2, 1}, ids)

	v2, err := n.Vehicle(2)
	require.NoError(t, err)
	v2.SetMotion(80, 12)
	n.Prepare()
	ids = lo.Map(n.VehiclesInLane(n.Lane(100)), func(v entity.IVehicle, _ int) int32 { return v.ID() })
	assert.Equal(t, []int32{1, 2}, ids)
	assert.Equal(t, 120.0, entity.DistanceToStopLine(v2))

	require.NoError(t, n.RemoveVehicle(1))
	assert.Error(t, n.RemoveVehicle(1))
	assert.Len(t, n.Vehicles(), 2)
	n.Prepare()
	assert.Len(t, n.VehiclesInLane(n.Lane(100)), 1)
	require.Len(t, n.Vehicles(), 1)
	assert.Equal(t, int32(2), n.Vehicles()[0].ID())
}

func TestMoveToOtherEdgeResetsRecord(t *testing.T) {
	n := newCross()
	v := n.AddVehicle(1, 100, 10, 10, 5, 20)
	n.Prepare()
	v.ScheduleRecord().Enter(3)
	v.ScheduleRecord().Assign(9, 6)

	// 同一道路内换道保留记录
	v.MoveTo(n.Lane(101), 12)
	n.Prepare()
	assert.Equal(t, 9.0, v.ScheduleRecord().AssignedTime())
	assert.Empty(t, n.VehiclesInLane(n.Lane(100)))
	assert.Len(t, n.VehiclesInLane(n.Lane(101)), 1)

	v.MoveTo(n.Lane(110), 0)
	n.Prepare()
	assert.False(t, v.ScheduleRecord().Entered())
	assert.Equal(t, mathutil.INF, v.ScheduleRecord().AssignedTime())
}

func TestSeveralChangesWithinOneStep(t *testing.T) {
	n := newCross()
	v := n.AddVehicle(1, 100, 10, 10, 5, 20)
	// 加入后尚未Prepare即连续换道
	v.MoveTo(n.Lane(101), 12)
	v.MoveTo(n.Lane(110), 5)
	n.Prepare()
	assert.Empty(t, n.VehiclesInLane(n.Lane(100)))
	assert.Empty(t, n.VehiclesInLane(n.Lane(101)))
	require.Len(t, n.VehiclesInLane(n.Lane(110)), 1)
	assert.Equal(t, 5.0, v.HeadPosition())

	// 换道后在同一步内移除
	v.MoveTo(n.Lane(100), 30)
	require.NoError(t, n.RemoveVehicle(1))
	n.Prepare()
	for _, id := range []int32{100, 101, 110} {
		assert.Empty(t, n.VehiclesInLane(n.Lane(id)))
	}
	assert.Empty(t, n.Vehicles())

	// 加入后在同一步内移除
	n.AddVehicle(2, 100, 10, 10, 5, 20)
	require.NoError(t, n.RemoveVehicle(2))
	n.Prepare()
	assert.Empty(t, n.VehiclesInLane(n.Lane(100)))
	assert.Empty(t, n.Vehicles())
}

func TestEdgeSignalDisplay(t *testing.T) {
	n := newCross()
	e := n.Edge(10)
	assert.Equal(t, mapv2.LightState_LIGHT_STATE_GREEN, e.MovementColor(7))
	assert.Equal(t, mathutil.INF, e.TimeNext(mapv2.LightState_LIGHT_STATE_RED))
	e.SetMovementColor(7, mapv2.LightState_LIGHT_STATE_RED)
	e.SetTimeNextGreen(12)
	assert.Equal(t, mapv2.LightState_LIGHT_STATE_RED, e.MovementColor(7))
	assert.Equal(t, 12.0, e.TimeNext(mapv2.LightState_LIGHT_STATE_GREEN))
	e.SetVehicleDetected(true)
	assert.True(t, e.VehicleDetected())
}

func TestFromMap(t *testing.T) {
	m := &mapv2.Map{
		Lanes: []*mapv2.Lane{
			{Id: 1, Type: mapv2.LaneType_LANE_TYPE_DRIVING, MaxSpeed: 15, Successors: []*mapv2.LaneConnection{{Id: 3}}},
			{Id: 2, Type: mapv2.LaneType_LANE_TYPE_WALKING},
			{Id: 3, Type: mapv2.LaneType_LANE_TYPE_DRIVING, Turn: mapv2.LaneTurn_LANE_TURN_LEFT},
			{Id: 4, Type: mapv2.LaneType_LANE_TYPE_DRIVING},
		},
		Roads: []*mapv2.Road{
			{Id: 10, Name: "main", LaneIds: []int32{1, 2}},
			{Id: 11, Name: "dead end", LaneIds: []int32{4}},
		},
		Junctions: []*mapv2.Junction{
			{
				Id:      5,
				LaneIds: []int32{3},
				Phases:  []*mapv2.AvailablePhase{{}},
			},
		},
	}
	n := roadnet.FromMap(m)
	require.Len(t, n.NodesWithSignal(), 1)
	edges := n.InwardEdges(n.Node(5))
	require.Len(t, edges, 1)
	assert.Equal(t, "main", edges[0].Name())
	assert.Equal(t, 0.0, edges[0].InAngle())
	lanes := edges[0].Lanes()
	require.Len(t, lanes, 1)
	assert.Equal(t, mapv2.LaneTurn_LANE_TURN_LEFT, lanes[0].Turn())
	assert.Panics(t, func() { n.Edge(11) })
}
