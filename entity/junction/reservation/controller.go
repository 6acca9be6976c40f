package reservation

import (
	"errors"
	"fmt"
	"sort"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-signal/entity"
	"github.com/tsinghua-fib-lab/agentsociety-signal/entity/junction/cluster"
	"github.com/tsinghua-fib-lab/agentsociety-signal/utils/config"
	"github.com/tsinghua-fib-lab/agentsociety-signal/utils/metrics"
)

const (
	ControllerPoll           = "poll"
	ControllerMultiQueuePoll = "multi_queue_poll"
	ControllerRandom         = "random"
)

var (
	ErrDrainOverflow       = errors.New("reservation: drain loop exceeded vehicle count")
	ErrUnknownController   = errors.New("unknown reservation controller")
	ErrConflictMatrixShape = errors.New("reservation: conflict matrix size mismatch")
	ErrInvalidConflictRule = errors.New("reservation: invalid conflict rule")
)

// Controller 预约式路口控制器
// 功能：每一步为控制区内的车辆分配通过停车线的时间，写入车辆的调度记录
type Controller interface {
	Name() string
	Approaches() []Approach
	Schedule(now float64) error
}

// New 按配置名创建控制器
// 参数：network-路网，c-信号灯组（其全部驶入道路受控），cfg-预约控制配置，m-指标
// 返回：控制器名称未知或冲突规则无效时返回错误
func New(network entity.IRoadNetwork, c *cluster.Cluster, cfg config.Reservation, m *metrics.Collector) (Controller, error) {
	var (
		p   *PollBased
		err error
	)
	switch cfg.Controller {
	case ControllerPoll:
		p, err = NewPollBased(network, c, cfg, m)
	case ControllerMultiQueuePoll:
		p, err = NewMultiQueuePollBased(network, c, cfg, m)
	case ControllerRandom:
		return NewRandom(network, c, cfg, m), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownController, cfg.Controller)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func edgeApproaches(c *cluster.Cluster) []Approach {
	edges := lo.UniqBy(c.Movements, func(m *cluster.Movement) int32 { return m.Edge.ID() })
	return lo.Map(edges, func(m *cluster.Movement, _ int) Approach { return Approach{Edge: m.Edge} })
}

func laneApproaches(c *cluster.Cluster) []Approach {
	res := make([]Approach, 0)
	for _, a := range edgeApproaches(c) {
		for _, l := range a.Edge.Lanes() {
			res = append(res, Approach{Edge: a.Edge, Lane: l})
		}
	}
	return res
}

// candidate 控制区内的一辆车
type candidate struct {
	vehicle  entity.IVehicle
	record   *entity.VehicleScheduleRecord
	distance float64
}

// collector 控制区内车辆的采集与锁定
type collector struct {
	network          entity.IRoadNetwork
	controlRegion    float64
	finalizeDistance float64
}

// collect 采集队列中未锁定的车辆，按进入控制区的时间排序
// 返回：未锁定车辆，以及已锁定但尚未通过停车线的车辆中最晚的分配时间（没有时为-INF）
// 说明：首次采集到的车辆记录进入时间；已有分配且到达锁定距离的车辆在此锁定
func (c *collector) collect(a Approach, now float64) ([]candidate, float64, bool) {
	res := make([]candidate, 0)
	lastFinalized, hasFinalized := 0.0, false
	for _, lane := range a.lanes() {
		for _, v := range c.network.VehiclesInLane(lane) {
			d := entity.DistanceToStopLine(v)
			if d < 0 || d > c.controlRegion {
				continue
			}
			rec := v.ScheduleRecord()
			if !rec.Finalized() && rec.UnderIntersectionConstraint() && d <= c.finalizeDistance {
				rec.Finalize()
			}
			if rec.Finalized() {
				if !hasFinalized || rec.AssignedTime() > lastFinalized {
					lastFinalized, hasFinalized = rec.AssignedTime(), true
				}
				continue
			}
			rec.Enter(now)
			res = append(res, candidate{vehicle: v, record: rec, distance: d})
		}
	}
	sort.SliceStable(res, func(i, j int) bool {
		if res[i].record.TimeArrived() != res[j].record.TimeArrived() {
			return res[i].record.TimeArrived() < res[j].record.TimeArrived()
		}
		return res[i].distance < res[j].distance
	})
	return res, lastFinalized, hasFinalized
}
