package trafficlight

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
	"github.com/tsinghua-fib-lab/agentsociety-signal/entity/junction/cluster"
	"github.com/tsinghua-fib-lab/agentsociety-signal/utils/config"
	"github.com/tsinghua-fib-lab/agentsociety-signal/utils/container"
	"github.com/tsinghua-fib-lab/agentsociety-signal/utils/metrics"
)

// DelayMinimizing 延误最小化策略
// 功能：补充配时表时，对规划时域内的车队求解服务顺序，使车队累计延误最小；
// 计划写入后，剩余时域按相位环以固定绿灯时长补齐
// 算法说明：
// 1. 状态为（各相位已服务的车队数，上一个服务的相位），代价为累计延误
// 2. 从相位s切换到相位i至少需要minSwitch(s,i)=k*(黄+红)+(k-1)*最小绿，k为相位环上的步数
// 3. 车队的开始服务时间为max(可开始时间, 首车到达)，切换相位时额外加上启动损失
// 4. 在状态图上用Dijkstra求得全部车队服务完毕的最小累计延误路径
// 5. 每一步都以最新的车队重新规划，已开始的相位不受影响
type DelayMinimizing struct {
	cfg     config.Signal
	metrics *metrics.Collector
}

// NewDelayMinimizing 创建延误最小化策略
func NewDelayMinimizing(cfg config.Signal, m *metrics.Collector) *DelayMinimizing {
	return &DelayMinimizing{cfg: cfg, metrics: m}
}

func (p *DelayMinimizing) Name() string {
	return PolicyDelayMinimizing
}

// service 计划中对一个车队的服务
type service struct {
	phase      int
	start, end float64
}

type dmState struct {
	served []int
	last   int
	t      float64 // 上一次服务结束的时刻
	delay  float64
	root   bool

	parent *dmState
	step   service
}

func (s *dmState) key() string {
	var b strings.Builder
	for _, n := range s.served {
		b.WriteString(strconv.Itoa(n))
		b.WriteByte(',')
	}
	b.WriteString(strconv.Itoa(s.last))
	return b.String()
}

// Refill 有待服务车队时重新规划尚未开始的配时，否则按相位环补齐
// 说明：
// 1. 表头相位保留到其红灯结束，其后的时段被删除并按新的计划重写
// 2. 表头绿灯剩余时间内能通过的车辆不再参与规划
func (p *DelayMinimizing) Refill(l *Ledger, c *cluster.Cluster, obs *Observation) error {
	if c.Empty() {
		return nil
	}
	l.Prune(obs.Now)
	appended := l.NextID()
	defer func() { p.metrics.AddPeriods(p.Name(), int(l.NextID()-appended)) }()

	numPhases := len(c.Phases)
	if lists, total := p.pending(l, numPhases, obs); total > 0 {
		if head, ok := l.Head(); ok {
			red, err := redOf(l, head)
			if err != nil {
				return err
			}
			if err := l.TruncateAfter(red.ID); err != nil {
				return err
			}
		}
		begin := time.Now()
		plan, delay := p.plan(l, lists, obs.Now)
		p.metrics.ObservePlanning(time.Since(begin))
		log.Debugf("light group %d: planned %d services for %d batches, delay %.1f veh*s",
			c.ID, len(plan), total, delay)
		if err := p.commit(l, numPhases, obs.Now, plan); err != nil {
			return fmt.Errorf("commit plan: %w", err)
		}
	}
	_, err := refillRoundRobin(l, c, obs.Now, p.cfg.Horizon,
		func(int) float64 { return p.cfg.GreenTime }, p.cfg.YellowTime, p.cfg.RedTime)
	return err
}

// pending 规划时域内仍需服务的车队，按相位分组
// 说明：表头为绿灯时，其相位的车队按饱和车头时距依次占用剩余绿灯，能全部通过的车队被移除，
// 部分通过的车队只保留剩余车辆
func (p *DelayMinimizing) pending(l *Ledger, numPhases int, obs *Observation) ([][]Batch, int) {
	headway := p.cfg.DelayMin.SaturationHeadway
	greenPhase, greenEnd := -1, 0.
	if head, ok := l.Head(); ok && head.Color == mapv2.LightState_LIGHT_STATE_GREEN {
		greenPhase, greenEnd = head.Phase, head.End
	}
	free := obs.Now // 表头绿灯下一辆车最早的通过时刻

	lists := make([][]Batch, numPhases)
	total := 0
	for _, b := range obs.Batches {
		if total >= p.cfg.DelayMin.MaxBatches {
			break
		}
		if b.Phase < 0 || b.Phase >= numPhases || b.Arrival > obs.Now+p.cfg.DelayMin.PlanningHorizon {
			continue
		}
		if b.Phase == greenPhase {
			start := max(free, b.Arrival)
			served := 0
			if start < greenEnd {
				served = b.Count
				if headway > 0 {
					served = min(b.Count, int((greenEnd-start)/headway))
				}
			}
			if served >= b.Count {
				free = start + float64(b.Count)*headway
				continue
			}
			free = greenEnd
			if served > 0 {
				b.Count -= served
				b.Departure = b.Arrival + float64(b.Count)*headway
			}
		}
		lists[b.Phase] = append(lists[b.Phase], b)
		total++
	}
	return lists, total
}

// plan 求解服务顺序
// 参数：lists-各相位按到达顺序的车队
// 返回：按时间顺序的服务计划与累计延误
func (p *DelayMinimizing) plan(l *Ledger, lists [][]Batch, now float64) ([]service, float64) {
	numPhases := len(lists)
	clearance := p.cfg.YellowTime + p.cfg.RedTime
	root := &dmState{served: make([]int, numPhases), root: true}
	if tail, ok := l.Tail(); ok {
		root.last = tail.Phase
		root.t = tail.End - clearance
	} else {
		// 空表时令0号相位可以在now开始
		root.last = numPhases - 1
		root.t = now - clearance
	}

	minSwitch := func(s *dmState, i int) float64 {
		k := ((i-s.last)%numPhases + numPhases) % numPhases
		if k == 0 {
			k = numPhases
		}
		return float64(k)*clearance + float64(k-1)*p.cfg.MinGreenTime
	}

	pq := container.NewPriorityQueue[*dmState]()
	pq.HeapPush(root, 0)
	visited := make(map[string]bool)
	for pq.Len() > 0 {
		s, _ := pq.HeapPop()
		key := s.key()
		if visited[key] {
			continue
		}
		visited[key] = true
		if done(s, lists) {
			return unwind(s), s.delay
		}
		for i := range lists {
			if s.served[i] >= len(lists[i]) {
				continue
			}
			b := lists[i][s.served[i]]
			var start float64
			if !s.root && i == s.last {
				start = max(s.t, b.Arrival)
			} else {
				start = max(s.t+minSwitch(s, i), b.Arrival) + p.cfg.DelayMin.StartupLoss
			}
			next := &dmState{
				served: append([]int(nil), s.served...),
				last:   i,
				t:      start + (b.Departure - b.Arrival),
				delay:  s.delay + float64(b.Count)*max(0, start-b.Arrival),
				parent: s,
			}
			next.served[i]++
			next.step = service{phase: i, start: start, end: next.t}
			if !visited[next.key()] {
				pq.HeapPush(next, next.delay)
			}
		}
	}
	return nil, 0
}

func done(s *dmState, lists [][]Batch) bool {
	for i, n := range s.served {
		if n < len(lists[i]) {
			return false
		}
	}
	return true
}

func unwind(s *dmState) []service {
	var res []service
	for ; s != nil && !s.root; s = s.parent {
		res = append(res, s.step)
	}
	for i, j := 0, len(res)-1; i < j; i, j = i+1, j-1 {
		res[i], res[j] = res[j], res[i]
	}
	return res
}

// commit 将服务计划写入配时表
// 说明：连续服务同一相位合并为一个绿灯；途经的相位以最小绿灯时长放行；
// 绿灯时长限制在[最小绿, 最大绿]内
func (p *DelayMinimizing) commit(l *Ledger, numPhases int, now float64, plan []service) error {
	type block struct {
		phase int
		end   float64
	}
	blocks := make([]block, 0)
	for _, s := range plan {
		if n := len(blocks); n > 0 && blocks[n-1].phase == s.phase {
			blocks[n-1].end = s.end
			continue
		}
		blocks = append(blocks, block{phase: s.phase, end: s.end})
	}

	minG := timing{p.cfg.MinGreenTime, p.cfg.YellowTime, p.cfg.RedTime}
	for _, b := range blocks {
		cur, start, ok := nextPhase(l, numPhases)
		if !ok {
			cur, start = 0, now
		}
		var err error
		for ; cur != b.phase; cur = (cur + 1) % numPhases {
			if start, err = appendPhase(l, cur, start, minG); err != nil {
				return err
			}
		}
		green := min(max(b.end-start, p.cfg.MinGreenTime), p.cfg.MaxGreenTime)
		if _, err = appendPhase(l, b.phase, start, timing{green, p.cfg.YellowTime, p.cfg.RedTime}); err != nil {
			return err
		}
	}
	return nil
}
