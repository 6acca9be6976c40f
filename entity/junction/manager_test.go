package junction_test

import (
	"context"
	"fmt"
	"math"
	"testing"

	"connectrpc.com/connect"
	"git.fiblab.net/general/common/v2/mathutil"
	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/agentsociety-signal/clock"
	"github.com/tsinghua-fib-lab/agentsociety-signal/entity"
	"github.com/tsinghua-fib-lab/agentsociety-signal/entity/junction"
	"github.com/tsinghua-fib-lab/agentsociety-signal/entity/junction/cluster"
	"github.com/tsinghua-fib-lab/agentsociety-signal/entity/junction/reservation"
	"github.com/tsinghua-fib-lab/agentsociety-signal/entity/junction/trafficlight"
	"github.com/tsinghua-fib-lab/agentsociety-signal/entity/roadnet"
	"github.com/tsinghua-fib-lab/agentsociety-signal/utils/config"
	"github.com/tsinghua-fib-lab/agentsociety-signal/utils/metrics"
)

type testContext struct {
	clock   *clock.Clock
	network *roadnet.Network
	manager *junction.JunctionManager
	rc      *config.RuntimeConfig
	metrics *metrics.Collector
}

func (c *testContext) Clock() *clock.Clock { return c.clock }
func (c *testContext) Network() entity.IRoadNetwork { return c.network }
func (c *testContext) JunctionManager() entity.IJunctionManager { return c.manager }
func (c *testContext) RuntimeConfig() *config.RuntimeConfig { return c.rc }
func (c *testContext) Metrics() *metrics.Collector { return c.metrics }

// 路口1：东西向"Main"，南北向"Oak"；路口2：无驶入道路
// configure在默认配置上修改控制参数
func newContext(t *testing.T, configure func(c *config.Control)) *testContext {
	n := roadnet.New()
	n.AddNode(1, 0, 0, true)
	n.AddNode(2, 1000, 0, true)
	n.AddEdge(10, "Main", 100, 0, 1)
	n.AddEdge(11, "Main", 100, math.Pi, 1)
	n.AddEdge(12, "Oak", 100, math.Pi/2, 1)
	n.AddEdge(13, "Oak", 100, -math.Pi/2, 1)
	n.AddLane(100, 10, mapv2.LaneTurn_LANE_TURN_STRAIGHT, 10)
	n.AddLane(110, 11, mapv2.LaneTurn_LANE_TURN_STRAIGHT, 10)
	n.AddLane(120, 12, mapv2.LaneTurn_LANE_TURN_STRAIGHT, 10)
	n.AddLane(130, 13, mapv2.LaneTurn_LANE_TURN_STRAIGHT, 10)

	all := config.Default()
	all.Control.Step = config.ControlStep{Start: 0, Total: 1000, Interval: 1}
	if configure != nil {
		configure(&all.Control)
	}
	m, err := metrics.NewCollector(prometheus.NewRegistry())
	require.NoError(t, err)
	ctx := &testContext{
		clock:   clock.New(all.Control.Step),
		network: n,
		rc:      config.NewRuntimeConfig(all),
		metrics: m,
	}
	ctx.manager = junction.NewManager(ctx, trafficlight.NewRegistry())
	return ctx
}

func (c *testContext) step() {
	c.network.Prepare()
	c.manager.Prepare()
	c.manager.Update(c.clock.DT)
	c.clock.Next()
}

func TestPhaseModeDisplaysLedger(t *testing.T) {
	ctx := newContext(t, func(c *config.Control) {
		c.Signal.GreenTime, c.Signal.YellowTime, c.Signal.RedTime, c.Signal.Horizon = 20, 3, 2, 60
	})
	require.NoError(t, ctx.manager.Init(ctx.network))
	require.Len(t, ctx.manager.Controllers(), 2)

	rt, ok := ctx.manager.Get(1).(*junction.ClusterRuntime)
	require.True(t, ok)
	c := rt.Cluster()
	require.Len(t, c.Phases, 2)
	main0 := c.Phases[0].Movements[0]
	oak0 := c.Phases[1].Movements[0]

	ctx.step() // t=0
	e10, e12 := ctx.network.Edge(10), ctx.network.Edge(12)
	assert.Equal(t, mapv2.LightState_LIGHT_STATE_GREEN, e10.MovementColor(main0.ID))
	assert.Equal(t, mapv2.LightState_LIGHT_STATE_RED, e12.MovementColor(oak0.ID))
	assert.Equal(t, 0.0, e10.TimeNext(mapv2.LightState_LIGHT_STATE_GREEN))
	assert.Equal(t, 20.0, e10.TimeNext(mapv2.LightState_LIGHT_STATE_YELLOW))
	assert.Equal(t, 25.0, e12.TimeNext(mapv2.LightState_LIGHT_STATE_GREEN))

	for ctx.clock.T < 25 {
		ctx.step()
	}
	ctx.step() // t=25
	assert.Equal(t, mapv2.LightState_LIGHT_STATE_RED, e10.MovementColor(main0.ID))
	assert.Equal(t, mapv2.LightState_LIGHT_STATE_GREEN, e12.MovementColor(oak0.ID))

	tail, ok := rt.Ledger().Tail()
	require.True(t, ok)
	assert.GreaterOrEqual(t, tail.End-ctx.clock.T, 60.0-ctx.clock.DT)
	assert.Equal(t, 1.0, testutil.ToFloat64(ctx.metrics.ActiveLightClusters))
}

func TestTrafficLightRPC(t *testing.T) {
	ctx := newContext(t, func(c *config.Control) {
		c.Signal.GreenTime, c.Signal.YellowTime, c.Signal.RedTime, c.Signal.Horizon = 20, 3, 2, 60
	})
	require.NoError(t, ctx.manager.Init(ctx.network))
	ctx.step()

	res, err := ctx.manager.GetTrafficLight(context.Background(),
		connect.NewRequest(&mapv2.GetTrafficLightRequest{JunctionId: 1}))
	require.NoError(t, err)
	tl := res.Msg.TrafficLight
	require.NotNil(t, tl)
	require.NotEmpty(t, tl.Phases)
	assert.Len(t, tl.Phases[0].States, 4)
	assert.Equal(t, 20.0, tl.Phases[0].Duration)
	assert.Equal(t, 19.0, res.Msg.TimeRemaining)

	_, err = ctx.manager.GetTrafficLight(context.Background(),
		connect.NewRequest(&mapv2.GetTrafficLightRequest{JunctionId: 99}))
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))

	// 关闭信控后全绿，倒计时无穷大
	_, err = ctx.manager.SetTrafficLightStatus(context.Background(),
		connect.NewRequest(&mapv2.SetTrafficLightStatusRequest{JunctionId: 1, Ok: false}))
	require.NoError(t, err)
	ctx.step()
	rt := ctx.manager.Get(1)
	assert.False(t, rt.Ok())
	for _, m := range rt.Cluster().Movements {
		assert.Equal(t, mapv2.LightState_LIGHT_STATE_GREEN, m.Edge.MovementColor(m.ID))
		assert.Equal(t, mathutil.INF, m.Edge.TimeNext(mapv2.LightState_LIGHT_STATE_RED))
	}
	_, err = ctx.manager.GetTrafficLight(context.Background(),
		connect.NewRequest(&mapv2.GetTrafficLightRequest{JunctionId: 1}))
	assert.Equal(t, connect.CodeFailedPrecondition, connect.CodeOf(err))

	// 重新开启后从当前时刻重新排配时
	_, err = ctx.manager.SetTrafficLightStatus(context.Background(),
		connect.NewRequest(&mapv2.SetTrafficLightStatusRequest{JunctionId: 1, Ok: true}))
	require.NoError(t, err)
	ctx.step()
	ctx.step()
	head, ok := ctx.manager.Get(1).(*junction.ClusterRuntime).Ledger().Head()
	require.True(t, ok)
	assert.Equal(t, 0, head.Phase)
	assert.Equal(t, mapv2.LightState_LIGHT_STATE_GREEN, head.Color)
}

func TestReservationMode(t *testing.T) {
	ctx := newContext(t, func(c *config.Control) {
		c.Signal.Mode = config.ModeReservation
	})
	a := ctx.network.AddVehicle(1, 100, 90, 10, 5, 10)
	b := ctx.network.AddVehicle(2, 120, 90, 10, 5, 10)
	ctx.network.Prepare()
	require.NoError(t, ctx.manager.Init(ctx.network))

	ctrl := ctx.manager.Get(1)
	assert.Equal(t, config.ModeReservation, ctrl.Mode())
	ctx.step()
	for _, m := range ctrl.Cluster().Movements {
		assert.Equal(t, mapv2.LightState_LIGHT_STATE_GREEN, m.Edge.MovementColor(m.ID))
	}
	ra, rb := a.ScheduleRecord(), b.ScheduleRecord()
	require.True(t, ra.UnderIntersectionConstraint())
	require.True(t, rb.UnderIntersectionConstraint())
	assert.GreaterOrEqual(t, math.Abs(ra.AssignedTime()-rb.AssignedTime()), 2.0)
	assert.Greater(t, testutil.ToFloat64(ctx.metrics.ReservationsAssign.WithLabelValues("poll")), 0.0)

	res, err := ctx.manager.GetTrafficLight(context.Background(),
		connect.NewRequest(&mapv2.GetTrafficLightRequest{JunctionId: 1}))
	require.NoError(t, err)
	assert.Nil(t, res.Msg.TrafficLight)
}

func TestInitRejectsUnknownPolicy(t *testing.T) {
	ctx := newContext(t, func(c *config.Control) { c.Signal.Policy = "webster" })
	assert.ErrorIs(t, ctx.manager.Init(ctx.network), trafficlight.ErrUnknownPolicy)

	ctx = newContext(t, func(c *config.Control) { c.Signal.Mode = "manual" })
	assert.Error(t, ctx.manager.Init(ctx.network))

	_, err := ctx.manager.GetOrError(1)
	assert.Error(t, err)
}

// failingPolicy 在failAt时刻对包含failNode的信号灯组返回错误，其余情况按定周期补充
type failingPolicy struct {
	trafficlight.Policy
	failNode int32
	failAt   float64
}

func (p *failingPolicy) Refill(l *trafficlight.Ledger, c *cluster.Cluster, obs *trafficlight.Observation) error {
	if obs.Now == p.failAt && lo.Contains(c.NodeIDs(), p.failNode) {
		return fmt.Errorf("refill at %v: %w", obs.Now, trafficlight.ErrOverlappingPeriod)
	}
	return p.Policy.Refill(l, c, obs)
}

func TestFailedRefillHoldsRedForOneStep(t *testing.T) {
	ctx := newContext(t, func(c *config.Control) {
		c.Signal.Policy = "failing"
		c.Signal.GreenTime, c.Signal.YellowTime, c.Signal.RedTime, c.Signal.Horizon = 20, 3, 2, 60
	})
	// 路口3：远离路口1，单独成组
	ctx.network.AddNode(3, 2000, 0, true)
	ctx.network.AddEdge(30, "Elm", 100, 0, 3)
	ctx.network.AddEdge(31, "Pine", 100, math.Pi/2, 3)
	ctx.network.AddLane(300, 30, mapv2.LaneTurn_LANE_TURN_STRAIGHT, 10)
	ctx.network.AddLane(310, 31, mapv2.LaneTurn_LANE_TURN_STRAIGHT, 10)
	reg := trafficlight.NewRegistry()
	reg.Register("failing", func(cfg config.Signal, m *metrics.Collector) trafficlight.Policy {
		return &failingPolicy{Policy: trafficlight.NewFixed(cfg, m), failNode: 1, failAt: 5}
	})
	ctx.manager = junction.NewManager(ctx, reg)
	require.NoError(t, ctx.manager.Init(ctx.network))
	require.Len(t, ctx.manager.Controllers(), 3)

	rt1 := ctx.manager.Get(1).(*junction.ClusterRuntime)
	rt3 := ctx.manager.Get(3).(*junction.ClusterRuntime)
	main0 := rt1.Cluster().Phases[0].Movements[0]
	oak0 := rt1.Cluster().Phases[1].Movements[0]
	elm0 := rt3.Cluster().Phases[0].Movements[0]
	e10, e12, e30 := ctx.network.Edge(10), ctx.network.Edge(12), ctx.network.Edge(30)
	ledgerErrors := ctx.metrics.SchedulingErrors.WithLabelValues("ledger")

	for ctx.clock.T < 5 {
		ctx.step()
	}
	ctx.step() // t=5，路口1所在组调度失败
	assert.Equal(t, 1.0, testutil.ToFloat64(ledgerErrors))
	assert.Equal(t, 0, rt1.Ledger().Len())
	assert.Positive(t, rt3.Ledger().Len())

	ctx.step() // t=6，失败的组全红一步，其他组不受影响
	assert.Equal(t, mapv2.LightState_LIGHT_STATE_RED, e10.MovementColor(main0.ID))
	assert.Equal(t, mapv2.LightState_LIGHT_STATE_RED, e12.MovementColor(oak0.ID))
	assert.Equal(t, mathutil.INF, e10.TimeNext(mapv2.LightState_LIGHT_STATE_GREEN))
	assert.Equal(t, mapv2.LightState_LIGHT_STATE_GREEN, e30.MovementColor(elm0.ID))
	assert.Equal(t, 14.0, e30.TimeNext(mapv2.LightState_LIGHT_STATE_YELLOW))

	ctx.step() // t=7，从t=6起重新排配时
	assert.Equal(t, mapv2.LightState_LIGHT_STATE_GREEN, e10.MovementColor(main0.ID))
	assert.Equal(t, 19.0, e10.TimeNext(mapv2.LightState_LIGHT_STATE_YELLOW))
	assert.Equal(t, mapv2.LightState_LIGHT_STATE_RED, e12.MovementColor(oak0.ID))
	assert.Equal(t, 1.0, testutil.ToFloat64(ledgerErrors))
}

// failingController 第一次调度返回错误
type failingController struct {
	failed bool
	calls  int
}

func (c *failingController) Name() string { return "failing" }

func (c *failingController) Approaches() []reservation.Approach { return nil }

func (c *failingController) Schedule(float64) error {
	c.calls++
	if !c.failed {
		c.failed = true
		return fmt.Errorf("schedule: %w", reservation.ErrDrainOverflow)
	}
	return nil
}

func TestReservationScheduleErrorHoldsRed(t *testing.T) {
	ctx := newContext(t, nil)
	require.NoError(t, ctx.manager.Init(ctx.network))
	c := ctx.manager.Get(1).Cluster()
	ctrl := &failingController{}
	rt := junction.NewReservationRuntime(c, ctrl)
	colors := func() []mapv2.LightState {
		return lo.Map(c.Movements, func(m *cluster.Movement, _ int) mapv2.LightState {
			return m.Edge.MovementColor(m.ID)
		})
	}
	allOf := func(state mapv2.LightState) []mapv2.LightState {
		return lo.Times(len(c.Movements), func(int) mapv2.LightState { return state })
	}

	rt.Prepare(0)
	assert.Equal(t, allOf(mapv2.LightState_LIGHT_STATE_GREEN), colors())
	assert.ErrorIs(t, rt.Update(0, 1), reservation.ErrDrainOverflow)

	rt.Prepare(1)
	assert.Equal(t, allOf(mapv2.LightState_LIGHT_STATE_RED), colors())
	require.NoError(t, rt.Update(1, 1))

	rt.Prepare(2)
	assert.Equal(t, allOf(mapv2.LightState_LIGHT_STATE_GREEN), colors())
	assert.Equal(t, 2, ctrl.calls)
}
