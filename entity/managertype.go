package entity

import (
	"git.fiblab.net/sim/syncer/v3"
)

// Manager依赖倒置

// entity/junction/manager.go的依赖倒置
type IJunctionManager interface {
	Init(network IRoadNetwork) error  // 聚类并初始化所有信号灯组与预约控制器
	Register(sidecar *syncer.Sidecar) // 注册到Sidecar

	Prepare()          // 准备阶段：将调度结果写入路网
	Update(dt float64) // 更新阶段：执行调度
}
