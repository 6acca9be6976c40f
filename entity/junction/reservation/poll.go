package reservation

import (
	"fmt"
	"math"

	"github.com/tsinghua-fib-lab/agentsociety-signal/entity"
	"github.com/tsinghua-fib-lab/agentsociety-signal/entity/junction/cluster"
	"github.com/tsinghua-fib-lab/agentsociety-signal/utils/config"
	"github.com/tsinghua-fib-lab/agentsociety-signal/utils/container"
	"github.com/tsinghua-fib-lab/agentsociety-signal/utils/metrics"
)

// PollBased 轮询式预约控制器
// 功能：每条驶入道路为一个队列，按先到先服务并用冲突矩阵保证冲突队列之间的安全间隔
// 算法说明：
// 1. 采集各队列控制区内未锁定的车辆，按进入控制区的时间排序
// 2. 每轮从优先队列中取出队首车辆进入时间最早的队列，连续服务该队列中进入时间不晚于
// 该队列最后分配时间+服务时间的车辆
// 3. 车辆的分配时间为max(进入时间+服务时间, 各冲突队列最后分配时间+间隔, 本队列最后分配时间)，
// 被推迟且上一辆服务的车辆来自其他队列时加上切换惩罚
// 4. 全部成功后才写入车辆记录，每一步重新计算
// 5. 冲突矩阵在创建时确定，之后只读
type PollBased struct {
	name       string
	cluster    *cluster.Cluster
	cfg        config.Reservation
	metrics    *metrics.Collector
	collector  collector
	approaches []Approach
	conflicts  *ConflictMatrix
}

// NewPollBased 创建以驶入道路为队列的控制器
func NewPollBased(network entity.IRoadNetwork, c *cluster.Cluster, cfg config.Reservation, m *metrics.Collector) (*PollBased, error) {
	return newPollBased(ControllerPoll, network, c, edgeApproaches(c), cfg, m)
}

// NewMultiQueuePollBased 创建以车道为队列的控制器
func NewMultiQueuePollBased(network entity.IRoadNetwork, c *cluster.Cluster, cfg config.Reservation, m *metrics.Collector) (*PollBased, error) {
	return newPollBased(ControllerMultiQueuePoll, network, c, laneApproaches(c), cfg, m)
}

// newPollBased 创建控制器，配置了冲突规则时使用规则生成的冲突矩阵，否则按几何关系生成
func newPollBased(
	name string, network entity.IRoadNetwork, c *cluster.Cluster, approaches []Approach,
	cfg config.Reservation, m *metrics.Collector,
) (*PollBased, error) {
	conflicts := BuildConflictMatrix(approaches, cfg.ClearanceTime)
	if len(cfg.Conflicts) > 0 {
		var err error
		if conflicts, err = ConflictMatrixFromRules(approaches, cfg.Conflicts); err != nil {
			return nil, fmt.Errorf("light group %d: %w", c.ID, err)
		}
	}
	return &PollBased{
		name:    name,
		cluster: c,
		cfg:     cfg,
		metrics: m,
		collector: collector{
			network:          network,
			controlRegion:    cfg.ControlRegion,
			finalizeDistance: cfg.FinalizeDistance,
		},
		approaches: approaches,
		conflicts:  conflicts,
	}, nil
}

func (p *PollBased) Name() string {
	return p.name
}

// Approaches 控制器的队列，下标与冲突矩阵一致
func (p *PollBased) Approaches() []Approach {
	return p.approaches
}

// Conflicts 队列之间的冲突矩阵（只读）
func (p *PollBased) Conflicts() *ConflictMatrix {
	return p.conflicts
}

type assignment struct {
	record       *entity.VehicleScheduleRecord
	assignedTime float64
	timeToReach  float64
}

// Schedule 为控制区内的车辆分配通过时间
func (p *PollBased) Schedule(now float64) error {
	n := len(p.approaches)
	queues := make([][]candidate, n)
	last := make([]float64, n)
	total := 0
	for q, a := range p.approaches {
		var ok bool
		queues[q], last[q], ok = p.collector.collect(a, now)
		if !ok {
			last[q] = math.Inf(-1)
		}
		total += len(queues[q])
	}
	if total == 0 {
		return nil
	}

	staged := make([]assignment, 0, total)
	heads := make([]int, n)
	// 按队首车辆进入时间排序的非空队列
	order := container.NewPriorityQueue[int]()
	for q, queue := range queues {
		if len(queue) > 0 {
			order.HeapPush(q, queue[0].record.TimeArrived())
		}
	}
	prevQueue := -1
	for rounds := 0; order.Len() > 0; rounds++ {
		if rounds >= total {
			return fmt.Errorf("%w: light group %d, %d/%d vehicles assigned",
				ErrDrainOverflow, p.cluster.ID, len(staged), total)
		}
		q, _ := order.HeapPop()
		for first := true; heads[q] < len(queues[q]); first = false {
			v := queues[q][heads[q]]
			arrived := v.record.TimeArrived()
			if !first && arrived > last[q]+p.cfg.ServiceTime {
				break
			}
			reference := arrived + p.cfg.ServiceTime
			t := max(reference, p.safestAllowedTime(q, last), last[q])
			if t > reference && prevQueue >= 0 && prevQueue != q {
				t += p.cfg.SwitchPenalty
			}
			staged = append(staged, assignment{
				record:       v.record,
				assignedTime: t,
				timeToReach:  (t - reference) + v.distance/maxSpeed(v.vehicle),
			})
			last[q] = t
			prevQueue = q
			heads[q]++
		}
		if heads[q] < len(queues[q]) {
			order.HeapPush(q, queues[q][heads[q]].record.TimeArrived())
		}
	}

	for _, a := range staged {
		a.record.Assign(a.assignedTime, a.timeToReach)
	}
	p.metrics.AddReservations(p.name, len(staged))
	return nil
}

// safestAllowedTime 满足与所有冲突队列安全间隔的最早时间
func (p *PollBased) safestAllowedTime(q int, last []float64) float64 {
	t := math.Inf(-1)
	for j := range last {
		if j == q || !p.conflicts.Conflicts(q, j) {
			continue
		}
		t = max(t, last[j]+p.conflicts.Gap(q, j))
	}
	return t
}

func maxSpeed(v entity.IVehicle) float64 {
	s := v.MaxV()
	if laneMax := v.Lane().MaxV(); laneMax > 0 && (s <= 0 || laneMax < s) {
		s = laneMax
	}
	if s <= 0 {
		return 1
	}
	return s
}
