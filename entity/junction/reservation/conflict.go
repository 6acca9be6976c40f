package reservation

import (
	"fmt"
	"math"

	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-signal/entity"
	"github.com/tsinghua-fib-lab/agentsociety-signal/utils/config"
)

// NoConflict 两个队列可以自由交替通过
const NoConflict = -1

// Approach 预约控制的一个排队队列：一条驶入道路，或其中的一条车道
type Approach struct {
	Edge entity.IEdge
	Lane entity.ILane // nil表示整条道路
}

func (a Approach) String() string {
	if a.Lane == nil {
		return fmt.Sprintf("edge %d", a.Edge.ID())
	}
	return fmt.Sprintf("edge %d lane %d", a.Edge.ID(), a.Lane.ID())
}

func (a Approach) lanes() []entity.ILane {
	if a.Lane != nil {
		return []entity.ILane{a.Lane}
	}
	return a.Edge.Lanes()
}

// turnsLeft 队列中是否有左转车道
func (a Approach) turnsLeft() bool {
	return lo.SomeBy(a.lanes(), func(l entity.ILane) bool {
		return l.Turn() == mapv2.LaneTurn_LANE_TURN_LEFT
	})
}

// ConflictMatrix 队列两两之间的最小安全间隔（秒）
// 功能：gap(i,j)为队列j最后一辆车通过后，队列i的车辆至少需要等待的时间，NoConflict表示不冲突
// 说明：构建后只读
type ConflictMatrix struct {
	n   int
	gap []float64
}

// NewConflictMatrix 由二维数组创建冲突矩阵
// 参数：gaps-n*n的间隔，负数表示不冲突
// 返回：行列数不一致时返回ErrConflictMatrixShape
func NewConflictMatrix(gaps [][]float64) (*ConflictMatrix, error) {
	n := len(gaps)
	m := &ConflictMatrix{n: n, gap: make([]float64, n*n)}
	for i, row := range gaps {
		if len(row) != n {
			return nil, fmt.Errorf("%w: row %d has %d columns, want %d", ErrConflictMatrixShape, i, len(row), n)
		}
		copy(m.gap[i*n:], row)
	}
	return m, nil
}

// ConflictMatrixFromRules 由显式冲突规则生成冲突矩阵
// 功能：队列所在道路对被规则列出时取规则的间隔，其余（包括同一道路上的队列）不冲突
// 参数：approaches-队列，rules-冲突规则，引用其他路口道路的规则被忽略
// 返回：冲突矩阵，规则间隔为负时返回ErrInvalidConflictRule
func ConflictMatrixFromRules(approaches []Approach, rules []config.ConflictRule) (*ConflictMatrix, error) {
	type pair struct{ from, to int32 }
	gaps := make(map[pair]float64, 2*len(rules))
	for _, r := range rules {
		if r.Gap < 0 {
			return nil, fmt.Errorf("%w: gap %v between edges %d and %d", ErrInvalidConflictRule, r.Gap, r.From, r.To)
		}
		gaps[pair{r.From, r.To}] = r.Gap
		gaps[pair{r.To, r.From}] = r.Gap
	}
	rows := make([][]float64, len(approaches))
	for i, a := range approaches {
		rows[i] = make([]float64, len(approaches))
		for j, b := range approaches {
			rows[i][j] = NoConflict
			if a.Edge.ID() == b.Edge.ID() {
				continue
			}
			if gap, ok := gaps[pair{a.Edge.ID(), b.Edge.ID()}]; ok {
				rows[i][j] = gap
			}
		}
	}
	return NewConflictMatrix(rows)
}

// BuildConflictMatrix 根据队列几何关系生成冲突矩阵
// 功能：同一道路或不同路口的队列不冲突；对向且都不左转的队列不冲突；其余需要间隔clearance
// 参数：approaches-队列，clearance-冲突队列之间的清空时间
func BuildConflictMatrix(approaches []Approach, clearance float64) *ConflictMatrix {
	n := len(approaches)
	m := &ConflictMatrix{n: n, gap: make([]float64, n*n)}
	for i, a := range approaches {
		for j, b := range approaches {
			m.gap[i*n+j] = pairGap(a, b, clearance)
		}
	}
	return m
}

func pairGap(a, b Approach, clearance float64) float64 {
	if a.Edge.ID() == b.Edge.ID() || a.Edge.ToNode().ID() != b.Edge.ToNode().ID() {
		return NoConflict
	}
	if opposing(a.Edge.InAngle(), b.Edge.InAngle()) && !a.turnsLeft() && !b.turnsLeft() {
		return NoConflict
	}
	return clearance
}

// opposing 两个驶入方向是否相对（夹角在π±π/4内）
func opposing(a, b float64) bool {
	d := math.Mod(math.Abs(a-b), 2*math.Pi)
	if d > math.Pi {
		d = 2*math.Pi - d
	}
	return d > 3*math.Pi/4
}

func (m *ConflictMatrix) Size() int {
	return m.n
}

func (m *ConflictMatrix) Gap(i, j int) float64 {
	return m.gap[i*m.n+j]
}

// Conflicts 队列i与j是否冲突
func (m *ConflictMatrix) Conflicts(i, j int) bool {
	return m.Gap(i, j) >= 0
}
