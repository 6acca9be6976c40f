package trafficlight_test

import (
	"testing"

	"git.fiblab.net/general/common/v2/mathutil"
	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/agentsociety-signal/entity/junction/cluster"
	"github.com/tsinghua-fib-lab/agentsociety-signal/entity/junction/trafficlight"
	"github.com/tsinghua-fib-lab/agentsociety-signal/entity/roadnet"
)

const (
	green  = mapv2.LightState_LIGHT_STATE_GREEN
	yellow = mapv2.LightState_LIGHT_STATE_YELLOW
	red    = mapv2.LightState_LIGHT_STATE_RED
)

// newCluster 单路口，每条驶入道路名称不同，第i个相位只包含第i个流向
func newCluster(t *testing.T, numPhases int) (*roadnet.Network, *cluster.Cluster) {
	n := roadnet.New()
	n.AddNode(1, 0, 0, true)
	for i := 0; i < numPhases; i++ {
		n.AddEdge(int32(10+i), string(rune('A'+i)), 100, 0, 1)
	}
	clusters := cluster.Build(n, 50, false)
	require.Len(t, clusters, 1)
	require.Len(t, clusters[0].Phases, numPhases)
	return n, clusters[0]
}

func TestAddPeriodContiguity(t *testing.T) {
	_, c := newCluster(t, 2)
	l := trafficlight.NewLedger(c)

	// 第一个时段可以从任意时刻开始
	p, err := l.AddPeriod(0, green, 3, 10)
	require.NoError(t, err)
	assert.Equal(t, 7.0, p.Duration())

	_, err = l.AddPeriod(0, yellow, 9, 12)
	assert.ErrorIs(t, err, trafficlight.ErrOverlappingPeriod)
	_, err = l.AddPeriod(0, yellow, 11, 12)
	assert.ErrorIs(t, err, trafficlight.ErrGapBetweenPeriods)
	_, err = l.AddPeriod(0, yellow, 10, 9)
	assert.ErrorIs(t, err, trafficlight.ErrEmptyPeriod)
	_, err = l.AddPeriod(0, yellow, 10, 13)
	require.NoError(t, err)
	assert.Equal(t, 2, l.Len())
}

func TestExtendShiftsLaterPeriods(t *testing.T) {
	_, c := newCluster(t, 2)
	l := trafficlight.NewLedger(c)
	var ids []int64
	start := 0.0
	for _, d := range []float64{10, 3, 2, 10} {
		p, err := l.AddPeriod(0, green, start, start+d)
		require.NoError(t, err)
		ids = append(ids, p.ID)
		start += d
	}
	before := l.Periods()

	require.NoError(t, l.Extend(ids[1], 4))
	after := l.Periods()
	assert.Equal(t, before[0], after[0])
	assert.Equal(t, before[1].Start, after[1].Start)
	assert.Equal(t, before[1].End+4, after[1].End)
	for k := 2; k < len(after); k++ {
		assert.Equal(t, before[k].Start+4, after[k].Start)
		assert.Equal(t, before[k].End+4, after[k].End)
	}
	assertContiguous(t, l)

	assert.ErrorIs(t, l.Extend(ids[1], -1), trafficlight.ErrNegativeDelta)
	assert.ErrorIs(t, l.Extend(100, 1), trafficlight.ErrPeriodNotFound)
}

func TestTruncateAfter(t *testing.T) {
	_, c := newCluster(t, 2)
	l := trafficlight.NewLedger(c)
	var ids []int64
	start := 0.0
	for _, d := range []float64{10, 3, 2} {
		p, err := l.AddPeriod(1, red, start, start+d)
		require.NoError(t, err)
		ids = append(ids, p.ID)
		start += d
	}
	require.NoError(t, l.TruncateAfter(ids[0]))
	assert.Equal(t, 1, l.Len())
	// 截断后从保留时段的End继续追加，ID不复用
	p, err := l.AddPeriod(0, green, 10, 20)
	require.NoError(t, err)
	assert.Greater(t, p.ID, ids[2])
	assert.ErrorIs(t, l.TruncateAfter(ids[1]), trafficlight.ErrPeriodNotFound)
}

func TestAdjustBetween(t *testing.T) {
	_, c := newCluster(t, 2)
	l := trafficlight.NewLedger(c)
	var ids []int64
	start := 0.0
	for _, d := range []float64{10, 3, 2, 10} {
		p, err := l.AddPeriod(0, green, start, start+d)
		require.NoError(t, err)
		ids = append(ids, p.ID)
		start += d
	}
	require.NoError(t, l.AdjustBetween(ids[0], ids[3], 5))
	ps := l.Periods()
	assert.Equal(t, 15.0, ps[0].End)
	assert.Equal(t, 15.0, ps[1].Start)
	assert.Equal(t, 18.0, ps[1].End)
	assert.Equal(t, 20.0, ps[3].Start)
	assert.Equal(t, 25.0, ps[3].End)
	assertContiguous(t, l)

	assert.Error(t, l.AdjustBetween(ids[0], ids[3], 6))
	assert.ErrorIs(t, l.AdjustBetween(ids[3], ids[0], 1), trafficlight.ErrPeriodNotFound)
	assert.ErrorIs(t, l.AdjustBetween(ids[0], ids[3], -1), trafficlight.ErrNegativeDelta)
}

func TestColorAtAndTimeUntil(t *testing.T) {
	_, c := newCluster(t, 4)
	l := trafficlight.NewLedger(c)
	m0, m1 := c.Phases[0].Movements[0], c.Phases[1].Movements[0]

	assert.Equal(t, trafficlight.KeepRed, l.ColorAt(m0, 0))
	assert.Equal(t, mathutil.INF, l.TimeUntil(m0, 0, green))

	fixed := trafficlight.NewFixed(fixedConfig(), nil)
	require.NoError(t, fixed.Refill(l, c, &trafficlight.Observation{Now: 0, DT: 1}))

	assert.Equal(t, 0.0, l.TimeUntil(m0, 0, green))
	assert.Equal(t, 30.0, l.TimeUntil(m0, 0, yellow))
	assert.Equal(t, 40.0, l.TimeUntil(m0, 0, red))
	assert.Equal(t, 45.0, l.TimeUntil(m1, 0, green))
	assert.Equal(t, 0.0, l.TimeUntil(m1, 0, red))

	// 0-30绿 30-40黄 40-45红 45-75相位1绿
	assert.Equal(t, green, l.ColorAt(m0, 0))
	assert.Equal(t, red, l.ColorAt(m1, 0))
	assert.Equal(t, green, l.ColorAt(m0, 29.9))
	assert.Equal(t, yellow, l.ColorAt(m0, 30))
	assert.Equal(t, yellow, l.ColorAt(m0, 35))
	assert.Equal(t, red, l.ColorAt(m0, 40))
	assert.Equal(t, red, l.ColorAt(m1, 44.9))
	assert.Equal(t, green, l.ColorAt(m1, 45))
	assert.Equal(t, red, l.ColorAt(m0, 45))
	assert.Equal(t, yellow, l.ColorAt(m1, 75))

	head, ok := l.Head()
	require.True(t, ok)
	assert.Equal(t, 1, head.Phase)
	assert.Equal(t, 75.0, head.Start)
}

func TestGreenPeriods(t *testing.T) {
	_, c := newCluster(t, 3)
	l := trafficlight.NewLedger(c)
	fixed := trafficlight.NewFixed(fixedConfig(), nil)
	require.NoError(t, fixed.Refill(l, c, &trafficlight.Observation{Now: 0}))

	all := l.GreenPeriods(nil)
	own := l.GreenPeriods(c.Phases[2].Movements[0])
	require.NotEmpty(t, own)
	for _, p := range own {
		assert.Equal(t, 2, p.Phase)
		assert.Equal(t, green, p.Color)
	}
	assert.Greater(t, len(all), len(own))
}

func assertContiguous(t *testing.T, l *trafficlight.Ledger) {
	t.Helper()
	ps := l.Periods()
	for k := 0; k+1 < len(ps); k++ {
		assert.Equal(t, ps[k].End, ps[k+1].Start, "periods %v and %v", ps[k], ps[k+1])
	}
}
