package junction

import (
	"github.com/tsinghua-fib-lab/agentsociety-signal/entity"
	"github.com/tsinghua-fib-lab/agentsociety-signal/entity/junction/cluster"
	"github.com/tsinghua-fib-lab/agentsociety-signal/entity/junction/trafficlight"
	"github.com/tsinghua-fib-lab/agentsociety-signal/utils/config"
)

// observe 采集信号灯组的需求快照
// 功能：
// 1. 检测：道路检测标志已置位，或流向车道上有车辆距停车线不超过DetectDistance
// 2. 压力：流向车道上驶近停车线的车辆数
// 3. 车队（withBatches时）：按自由流速度估计各车辆到达停车线的时刻，再按相位划分车队
func observe(
	network entity.IRoadNetwork, c *cluster.Cluster, cfg config.Signal, withBatches bool, now, dt float64,
) *trafficlight.Observation {
	obs := &trafficlight.Observation{
		Now:      now,
		DT:       dt,
		Detected: make(map[int32]bool, len(c.Movements)),
		Pressure: make(map[int32]float64, len(c.Movements)),
	}
	arrivals := make([]trafficlight.Arrival, 0)
	for _, m := range c.Movements {
		detected := m.Edge.VehicleDetected()
		phase := c.PhaseOf(m)
		for _, lane := range network.LanesOfEdge(m.Edge) {
			if !m.Serves(lane) {
				continue
			}
			for _, v := range network.VehiclesInLane(lane) {
				d := entity.DistanceToStopLine(v)
				if d < 0 {
					continue
				}
				obs.Pressure[m.ID]++
				if d <= cfg.DetectDistance {
					detected = true
				}
				if withBatches {
					arrivals = append(arrivals, trafficlight.Arrival{Phase: phase, Time: now + d/freeFlowSpeed(v, lane)})
				}
			}
		}
		obs.Detected[m.ID] = detected
	}
	if withBatches {
		obs.Batches = trafficlight.BuildBatches(arrivals, cfg.DelayMin.BatchGap, cfg.DelayMin.SaturationHeadway)
	}
	return obs
}

func freeFlowSpeed(v entity.IVehicle, lane entity.ILane) float64 {
	s := lane.MaxV()
	if vm := v.MaxV(); vm > 0 && (s <= 0 || vm < s) {
		s = vm
	}
	if s <= 0 {
		return 1
	}
	return s
}
