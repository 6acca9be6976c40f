package roadnet

import (
	"math"

	"git.fiblab.net/general/common/v2/geometry"
	geov2 "git.fiblab.net/sim/protos/v2/go/city/geo/v2"
	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
	"github.com/samber/lo"
)

// FromMap 从地图数据构建路网
// 功能：每个路口对应一个Node，每条驶入路口的道路对应一条Edge，道路上的行车道对应Lane
// 参数：m-地图数据
// 返回：构建完成的路网
// 说明：
// 1. 路口坐标取路口内车道中心线起点的平均值
// 2. 有可用相位或固定配时方案的路口视为信控路口
// 3. 道路上车道的转向取其后继路口车道的转向
// 4. 驶入角优先取路口车道组的InAngle，缺失时用车道中心线末段方向
func FromMap(m *mapv2.Map) *Network {
	n := New()

	pbLanes := lo.SliceToMap(m.Lanes, func(l *mapv2.Lane) (int32, *mapv2.Lane) {
		return l.Id, l
	})
	laneJunction := make(map[int32]int32)
	inAngles := make(map[int32]float64)
	for _, j := range m.Junctions {
		var xs, ys []float64
		for _, id := range j.LaneIds {
			laneJunction[id] = j.Id
			if l, ok := pbLanes[id]; ok && len(l.GetCenterLine().GetNodes()) > 0 {
				p := geometry.NewPointFromPb(l.GetCenterLine().GetNodes()[0])
				xs = append(xs, p.X)
				ys = append(ys, p.Y)
			}
		}
		for _, g := range j.DrivingLaneGroups {
			inAngles[g.InRoadId] = g.InAngle
		}
		hasSignal := len(j.Phases) > 0 || j.FixedProgram != nil
		n.AddNode(j.Id, mean(xs), mean(ys), hasSignal)
	}

	for _, r := range m.Roads {
		drivingLanes := lo.FilterMap(r.LaneIds, func(id int32, _ int) (*mapv2.Lane, bool) {
			l, ok := pbLanes[id]
			return l, ok && l.Type == mapv2.LaneType_LANE_TYPE_DRIVING
		})
		if len(drivingLanes) == 0 {
			continue
		}
		to, ok := successorJunction(drivingLanes, laneJunction)
		if !ok {
			// 道路末端没有路口
			continue
		}
		lengths := lo.Map(drivingLanes, func(l *mapv2.Lane, _ int) float64 {
			return polylineLength(l.GetCenterLine().GetNodes())
		})
		inAngle, ok := inAngles[r.Id]
		if !ok {
			inAngle = endDirection(drivingLanes[0].GetCenterLine().GetNodes())
		}
		n.AddEdge(r.Id, r.Name, mean(lengths), inAngle, to)
		for _, l := range drivingLanes {
			n.AddLane(l.Id, r.Id, successorTurn(l, pbLanes), l.MaxSpeed)
		}
	}
	log.Infof("road network: %d nodes (%d signalized), %d edges, %d lanes",
		len(n.nodes), len(n.NodesWithSignal()), len(n.edges), len(n.lanes))
	return n
}

func successorJunction(lanes []*mapv2.Lane, laneJunction map[int32]int32) (int32, bool) {
	for _, l := range lanes {
		for _, suc := range l.Successors {
			if j, ok := laneJunction[suc.Id]; ok {
				return j, true
			}
		}
	}
	return 0, false
}

func successorTurn(l *mapv2.Lane, pbLanes map[int32]*mapv2.Lane) mapv2.LaneTurn {
	for _, suc := range l.Successors {
		if s, ok := pbLanes[suc.Id]; ok {
			return s.Turn
		}
	}
	return l.Turn
}

func polylineLength(nodes []*geov2.XYPosition) float64 {
	if len(nodes) < 2 {
		return 0
	}
	line := lo.Map(nodes, func(node *geov2.XYPosition, _ int) geometry.Point {
		return geometry.NewPointFromPb(node)
	})
	lengths := geometry.GetPolylineLengths2D(line)
	return lengths[len(lengths)-1]
}

func endDirection(nodes []*geov2.XYPosition) float64 {
	if len(nodes) < 2 {
		return 0
	}
	a := geometry.NewPointFromPb(nodes[len(nodes)-2])
	b := geometry.NewPointFromPb(nodes[len(nodes)-1])
	return math.Atan2(b.Y-a.Y, b.X-a.X)
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return lo.Sum(xs) / float64(len(xs))
}
