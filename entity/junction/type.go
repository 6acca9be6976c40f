package junction

import (
	"github.com/tsinghua-fib-lab/agentsociety-signal/entity/junction/cluster"
)

// 依赖倒置，表达manager对信号灯组控制方式的接口需求

// IController 信号灯组控制器：相位式（ClusterRuntime）或预约式（ReservationRuntime）
type IController interface {
	ID() int32
	Cluster() *cluster.Cluster
	Mode() string

	Prepare(now float64)          // 准备阶段，处理写入buffer，将调度结果写入路网
	Update(now, dt float64) error // 更新阶段，执行调度

	Ok() bool      // 当前信控开关情况
	SetOk(ok bool) // 设置信控开关情况（true信控工作|false信控失效-全绿）
}
