package trafficlight

import (
	"sort"

	"github.com/samber/lo"
)

// Arrival 车辆预计到达停车线的时刻
type Arrival struct {
	Phase int
	Time  float64
}

// Batch 车队：同一相位、到达时间相近的一组车辆
type Batch struct {
	Phase     int
	Count     int
	Arrival   float64 // 首车到达时刻
	Departure float64 // 按饱和车头时距全部通过的时刻
}

// FlowRate 车队的流率（辆/秒）
func (b Batch) FlowRate() float64 {
	if b.Departure <= b.Arrival {
		return 0
	}
	return float64(b.Count) / (b.Departure - b.Arrival)
}

// BuildBatches 将预计到达划分为车队
// 参数：arrivals-预计到达，gap-相邻两车到达间隔不超过gap时属于同一车队，headway-饱和车头时距
// 返回：按首车到达时刻排序的车队
func BuildBatches(arrivals []Arrival, gap, headway float64) []Batch {
	byPhase := lo.GroupBy(arrivals, func(a Arrival) int { return a.Phase })
	batches := make([]Batch, 0)
	for phase, as := range byPhase {
		times := lo.Map(as, func(a Arrival, _ int) float64 { return a.Time })
		sort.Float64s(times)
		first, last, count := times[0], times[0], 1
		flush := func() {
			batches = append(batches, Batch{
				Phase:     phase,
				Count:     count,
				Arrival:   first,
				Departure: max(last+headway, first+float64(count)*headway),
			})
		}
		for _, t := range times[1:] {
			if t-last <= gap {
				last = t
				count++
				continue
			}
			flush()
			first, last, count = t, t, 1
		}
		flush()
	}
	sort.Slice(batches, func(i, j int) bool {
		if batches[i].Arrival != batches[j].Arrival {
			return batches[i].Arrival < batches[j].Arrival
		}
		return batches[i].Phase < batches[j].Phase
	})
	return batches
}
