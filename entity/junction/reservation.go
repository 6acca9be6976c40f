package junction

import (
	"fmt"

	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
	"github.com/tsinghua-fib-lab/agentsociety-signal/entity/junction/cluster"
	"github.com/tsinghua-fib-lab/agentsociety-signal/entity/junction/reservation"
	"github.com/tsinghua-fib-lab/agentsociety-signal/utils/config"
)

// ReservationRuntime 预约式信号灯组运行时
// 功能：不广播相位，所有流向显示绿灯，车辆按调度记录中的分配时间通过路口
// 说明：调度失败的一步内全部流向保持红灯，车辆记录不被修改
type ReservationRuntime struct {
	cluster    *cluster.Cluster
	controller reservation.Controller

	ok       bool
	okBuffer bool
	failed   bool
}

// NewReservationRuntime 创建预约式信号灯组的运行时
// 参数：c-信号灯组，controller-预约控制器
// 返回：初始可控的运行时，首次Prepare显示全绿
func NewReservationRuntime(c *cluster.Cluster, controller reservation.Controller) *ReservationRuntime {
	return &ReservationRuntime{
		cluster:    c,
		controller: controller,
		ok:         true,
		okBuffer:   true,
	}
}

func (r *ReservationRuntime) ID() int32 {
	return r.cluster.ID
}

func (r *ReservationRuntime) Cluster() *cluster.Cluster {
	return r.cluster
}

func (r *ReservationRuntime) Mode() string {
	return config.ModeReservation
}

func (r *ReservationRuntime) Controller() reservation.Controller {
	return r.controller
}

func (r *ReservationRuntime) Ok() bool {
	return r.ok
}

func (r *ReservationRuntime) SetOk(ok bool) {
	r.okBuffer = ok
}

// Prepare 准备阶段
// 说明：预约模式下信号灯只作显示，常绿；上一步调度失败时全红一步
func (r *ReservationRuntime) Prepare(float64) {
	r.ok = r.okBuffer
	if r.ok && r.failed {
		setAll(r.cluster, mapv2.LightState_LIGHT_STATE_RED)
		r.failed = false
		return
	}
	setAll(r.cluster, mapv2.LightState_LIGHT_STATE_GREEN)
}

// Update 更新阶段：由控制器为控制区内车辆分配通过时间
// 返回：调度错误，此时下一步全红
func (r *ReservationRuntime) Update(now, _ float64) error {
	if !r.ok || r.cluster.Empty() {
		return nil
	}
	if err := r.controller.Schedule(now); err != nil {
		r.failed = true
		return fmt.Errorf("light group %d schedule with %s: %w", r.cluster.ID, r.controller.Name(), err)
	}
	return nil
}
