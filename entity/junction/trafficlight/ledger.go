package trafficlight

import (
	"errors"
	"fmt"
	"sync"

	"git.fiblab.net/general/common/v2/mathutil"
	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
	"github.com/tsinghua-fib-lab/agentsociety-signal/entity/junction/cluster"
)

var (
	ErrOverlappingPeriod = errors.New("ledger: period starts before the tail ends")
	ErrGapBetweenPeriods = errors.New("ledger: period starts after the tail ends")
	ErrEmptyPeriod       = errors.New("ledger: period ends before it starts")
	ErrNegativeDelta     = errors.New("ledger: negative delta")
	ErrPeriodNotFound    = errors.New("ledger: period not found")
)

// KeepRed 不属于当前相位的流向显示的灯色
const KeepRed = mapv2.LightState_LIGHT_STATE_RED

// Ledger 信号灯组的滚动配时表
// 功能：按时间顺序保存首尾相接的LightPeriod，支持追加、延长、借时与查询
// 说明：
// 1. 时段始终连续：periods[k].End == periods[k+1].Start
// 2. 已经结束的时段在查询时被移除
// 3. 所有操作互斥，单步内先由策略写入，再由运行时读取
type Ledger struct {
	cluster *cluster.Cluster

	mtx     sync.Mutex
	periods []*LightPeriod
	nextID  int64
}

// NewLedger 创建信号灯组c的空配时表
func NewLedger(c *cluster.Cluster) *Ledger {
	return &Ledger{cluster: c}
}

// Cluster 配时表所属的信号灯组
func (l *Ledger) Cluster() *cluster.Cluster {
	return l.cluster
}

// AddPeriod 在表尾追加时段
// 参数：phase-相位序号，color-灯色，start/end-起止时间
// 返回：追加的时段
// 说明：非空表要求start恰好等于表尾的End，否则返回ErrOverlappingPeriod或ErrGapBetweenPeriods
func (l *Ledger) AddPeriod(phase int, color mapv2.LightState, start, end float64) (LightPeriod, error) {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	if end < start {
		return LightPeriod{}, fmt.Errorf("%w: [%v, %v)", ErrEmptyPeriod, start, end)
	}
	if n := len(l.periods); n > 0 {
		tail := l.periods[n-1]
		if start < tail.End {
			return LightPeriod{}, fmt.Errorf("%w: start=%v tail=%v", ErrOverlappingPeriod, start, tail)
		}
		if start > tail.End {
			return LightPeriod{}, fmt.Errorf("%w: start=%v tail=%v", ErrGapBetweenPeriods, start, tail)
		}
	}
	p := &LightPeriod{ID: l.nextID, Phase: phase, Color: color, Start: start, End: end}
	l.nextID++
	l.periods = append(l.periods, p)
	return *p, nil
}

// Extend 延长时段并顺延其后的所有时段
// 参数：id-时段ID，delta-延长量（非负）
func (l *Ledger) Extend(id int64, delta float64) error {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	if delta < 0 {
		return fmt.Errorf("%w: %v", ErrNegativeDelta, delta)
	}
	k := l.indexOf(id)
	if k < 0 {
		return fmt.Errorf("%w: %d", ErrPeriodNotFound, id)
	}
	l.periods[k].End += delta
	for _, p := range l.periods[k+1:] {
		p.Start += delta
		p.End += delta
	}
	return nil
}

// AdjustBetween 从后面的时段借用时间
// 功能：startID时段延长delta，两者之间的时段顺延delta，endID时段的开始推迟delta而结束不变
// 说明：总时长不变；delta不能超过endID时段的时长
func (l *Ledger) AdjustBetween(startID, endID int64, delta float64) error {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	if delta < 0 {
		return fmt.Errorf("%w: %v", ErrNegativeDelta, delta)
	}
	i, j := l.indexOf(startID), l.indexOf(endID)
	if i < 0 || j < 0 || j <= i {
		return fmt.Errorf("%w: %d..%d", ErrPeriodNotFound, startID, endID)
	}
	if d := l.periods[j].Duration(); delta > d {
		return fmt.Errorf("cannot borrow %v from period %d with duration %v", delta, endID, d)
	}
	l.periods[i].End += delta
	for _, p := range l.periods[i+1 : j] {
		p.Start += delta
		p.End += delta
	}
	l.periods[j].Start += delta
	return nil
}

// ColorAt 查询流向在t时刻的灯色
// 功能：移除在t之前结束的时段，流向属于表头时段的相位时返回其灯色，否则返回KeepRed
// 说明：t恰好等于时段End时属于下一个时段；表为空时返回KeepRed
func (l *Ledger) ColorAt(m *cluster.Movement, t float64) mapv2.LightState {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	l.prune(t)
	if len(l.periods) == 0 {
		return KeepRed
	}
	return l.colorOf(m, l.periods[0])
}

// TimeUntil 流向下一次显示color的时间
// 返回：max(0, start-t)，配时表中找不到时返回mathutil.INF
func (l *Ledger) TimeUntil(m *cluster.Movement, t float64, color mapv2.LightState) float64 {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	l.prune(t)
	for _, p := range l.periods {
		if l.colorOf(m, p) == color {
			return max(0, p.Start-t)
		}
	}
	return mathutil.INF
}

// Prune 移除在t之前结束的时段
func (l *Ledger) Prune(t float64) {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	l.prune(t)
}

// GreenPeriods 流向的全部绿灯时段，m为nil时返回所有相位的绿灯时段
func (l *Ledger) GreenPeriods(m *cluster.Movement) []LightPeriod {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	res := make([]LightPeriod, 0)
	for _, p := range l.periods {
		if p.Color != mapv2.LightState_LIGHT_STATE_GREEN {
			continue
		}
		if m == nil || l.colorOf(m, p) == mapv2.LightState_LIGHT_STATE_GREEN {
			res = append(res, *p)
		}
	}
	return res
}

// Periods 当前保存的全部时段副本
func (l *Ledger) Periods() []LightPeriod {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	res := make([]LightPeriod, len(l.periods))
	for i, p := range l.periods {
		res[i] = *p
	}
	return res
}

// Head 表头时段（即当前时段）
// 返回：时段副本，空表时ok为false
func (l *Ledger) Head() (LightPeriod, bool) {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	if len(l.periods) == 0 {
		return LightPeriod{}, false
	}
	return *l.periods[0], true
}

// Tail 表尾时段，其End为配时表覆盖到的时刻
// 返回：时段副本，空表时ok为false
func (l *Ledger) Tail() (LightPeriod, bool) {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	if len(l.periods) == 0 {
		return LightPeriod{}, false
	}
	return *l.periods[len(l.periods)-1], true
}

// Len 表中时段数
func (l *Ledger) Len() int {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	return len(l.periods)
}

// NextID 下一个追加时段的ID，即累计追加的时段数
func (l *Ledger) NextID() int64 {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	return l.nextID
}

// TruncateAfter 删除id之后的全部时段，之后可从该时段的End继续追加
func (l *Ledger) TruncateAfter(id int64) error {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	k := l.indexOf(id)
	if k < 0 {
		return fmt.Errorf("%w: id=%d", ErrPeriodNotFound, id)
	}
	l.periods = l.periods[:k+1]
	return nil
}

// Clear 清空配时表（ID继续递增）
func (l *Ledger) Clear() {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	l.periods = nil
}

func (l *Ledger) prune(t float64) {
	k := 0
	for k < len(l.periods) && l.periods[k].End <= t {
		k++
	}
	if k > 0 {
		l.periods = l.periods[k:]
	}
}

func (l *Ledger) colorOf(m *cluster.Movement, p *LightPeriod) mapv2.LightState {
	if l.cluster.PhaseOf(m) == p.Phase {
		return p.Color
	}
	return KeepRed
}

func (l *Ledger) indexOf(id int64) int {
	for k, p := range l.periods {
		if p.ID == id {
			return k
		}
	}
	return -1
}
