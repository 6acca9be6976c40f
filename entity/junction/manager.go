package junction

import (
	"errors"
	"fmt"

	"git.fiblab.net/general/common/v2/parallel"
	mapv2connect "git.fiblab.net/sim/protos/v2/go/city/map/v2/mapv2connect"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-signal/entity"
	"github.com/tsinghua-fib-lab/agentsociety-signal/entity/junction/cluster"
	"github.com/tsinghua-fib-lab/agentsociety-signal/entity/junction/reservation"
	"github.com/tsinghua-fib-lab/agentsociety-signal/entity/junction/trafficlight"
	"github.com/tsinghua-fib-lab/agentsociety-signal/utils/config"
)

// JunctionManager 信号灯组管理器
// 功能：初始化时对信控路口聚类，为每个信号灯组创建相位式或预约式控制器；
// 每步并行执行各信号灯组的准备与更新，单个信号灯组的错误不影响其他信号灯组
type JunctionManager struct {
	mapv2connect.UnimplementedTrafficLightServiceHandler

	ctx      entity.ITaskContext
	registry *trafficlight.Registry

	clusters    []*cluster.Cluster
	controllers []IController
	byNode      map[int32]IController // 路口ID->所属信号灯组的控制器
}

// NewManager 创建信号灯组管理器实例
// 参数：ctx-任务上下文，registry-相位式调度策略注册表
func NewManager(ctx entity.ITaskContext, registry *trafficlight.Registry) *JunctionManager {
	return &JunctionManager{
		ctx:         ctx,
		registry:    registry,
		controllers: make([]IController, 0),
		byNode:      make(map[int32]IController),
	}
}

// Init 聚类并初始化所有信号灯组
// 功能：按配置的控制方式创建控制器，并执行一次调度使第一步即可显示灯色
// 参数：network-路网
// 返回：策略或控制器名称无效时返回错误
func (m *JunctionManager) Init(network entity.IRoadNetwork) error {
	rc := m.ctx.RuntimeConfig()
	signal, res := rc.C.Signal, rc.C.Reservation
	m.clusters = cluster.Build(network, signal.MaxLightGroupRadius, signal.SplitTurns)

	controllers := make([]IController, 0, len(m.clusters))
	for _, c := range m.clusters {
		switch signal.Mode {
		case config.ModePhase:
			policy, err := m.registry.New(signal.Policy, signal, m.ctx.Metrics())
			if err != nil {
				return err
			}
			controllers = append(controllers, NewClusterRuntime(network, c, policy, signal))
		case config.ModeReservation:
			ctrl, err := reservation.New(network, c, res, m.ctx.Metrics())
			if err != nil {
				return err
			}
			controllers = append(controllers, NewReservationRuntime(c, ctrl))
		default:
			return fmt.Errorf("unknown signal mode %q", signal.Mode)
		}
	}
	m.controllers = controllers
	m.byNode = make(map[int32]IController)
	for _, ctrl := range m.controllers {
		for _, id := range ctrl.Cluster().NodeIDs() {
			m.byNode[id] = ctrl
		}
	}
	log.Infof("%d light groups in %s mode", len(m.controllers), signal.Mode)

	m.Update(m.ctx.Clock().DT)
	return nil
}

// Get 根据路口ID获取其所属信号灯组的控制器
func (m *JunctionManager) Get(nodeID int32) IController {
	if ctrl, ok := m.byNode[nodeID]; !ok {
		log.Panicf("no light group for node %d", nodeID)
		return nil
	} else {
		return ctrl
	}
}

// GetOrError 根据路口ID获取其所属信号灯组的控制器（带错误处理）
func (m *JunctionManager) GetOrError(nodeID int32) (IController, error) {
	if ctrl, ok := m.byNode[nodeID]; !ok {
		return nil, fmt.Errorf("no light group for node %d", nodeID)
	} else {
		return ctrl, nil
	}
}

func (m *JunctionManager) Controllers() []IController {
	return m.controllers
}

// Prepare 准备阶段，将各信号灯组的调度结果写入路网
func (m *JunctionManager) Prepare() {
	now := m.ctx.Clock().T
	parallel.GoFor(m.controllers, func(c IController) { c.Prepare(now) })
	m.ctx.Metrics().SetActiveLightClusters(lo.CountBy(m.controllers, func(c IController) bool {
		return c.Ok() && !c.Cluster().Empty()
	}))
}

// Update 更新阶段，并行执行各信号灯组的调度
// 说明：错误只记录日志与指标，出错的信号灯组在下一步保持红灯
func (m *JunctionManager) Update(dt float64) {
	now := m.ctx.Clock().T
	parallel.GoFor(m.controllers, func(c IController) {
		if err := c.Update(now, dt); err != nil {
			log.Errorf("schedule failed at %.1f: %v", now, err)
			m.ctx.Metrics().IncSchedulingErrors(errorKind(err))
		}
	})
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, reservation.ErrDrainOverflow):
		return "drain_overflow"
	case errors.Is(err, trafficlight.ErrOverlappingPeriod),
		errors.Is(err, trafficlight.ErrGapBetweenPeriods),
		errors.Is(err, trafficlight.ErrEmptyPeriod),
		errors.Is(err, trafficlight.ErrNegativeDelta),
		errors.Is(err, trafficlight.ErrPeriodNotFound):
		return "ledger"
	default:
		return "other"
	}
}
