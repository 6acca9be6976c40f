package reservation

import (
	"github.com/tsinghua-fib-lab/agentsociety-signal/entity"
	"github.com/tsinghua-fib-lab/agentsociety-signal/entity/junction/cluster"
	"github.com/tsinghua-fib-lab/agentsociety-signal/utils/config"
	"github.com/tsinghua-fib-lab/agentsociety-signal/utils/metrics"
	"github.com/tsinghua-fib-lab/agentsociety-signal/utils/randengine"
)

// Random 随机基准控制器
// 功能：不考虑冲突，为进入控制区且尚未受约束的车辆随机指定到达用时，
// 在[下界, 下界+RandomSpread)上均匀分布，下界为以最大速度行驶到停车线的用时
type Random struct {
	cfg        config.Reservation
	metrics    *metrics.Collector
	collector  collector
	approaches []Approach
	generator  *randengine.Engine
}

func NewRandom(network entity.IRoadNetwork, c *cluster.Cluster, cfg config.Reservation, m *metrics.Collector) *Random {
	return &Random{
		cfg:     cfg,
		metrics: m,
		collector: collector{
			network:          network,
			controlRegion:    cfg.ControlRegion,
			finalizeDistance: cfg.FinalizeDistance,
		},
		approaches: edgeApproaches(c),
		generator:  randengine.New(cfg.Seed + uint64(c.ID)),
	}
}

func (r *Random) Name() string {
	return ControllerRandom
}

func (r *Random) Approaches() []Approach {
	return r.approaches
}

func (r *Random) Schedule(now float64) error {
	assigned := 0
	for _, a := range r.approaches {
		vehicles, _, _ := r.collector.collect(a, now)
		for _, v := range vehicles {
			if v.record.UnderIntersectionConstraint() {
				continue
			}
			lb := v.distance / maxSpeed(v.vehicle)
			v.record.SetTimeToReach(now, r.generator.Uniform(lb, lb+r.cfg.RandomSpread))
			assigned++
		}
	}
	r.metrics.AddReservations(ControllerRandom, assigned)
	return nil
}
