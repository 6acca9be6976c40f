package task

import (
	"flag"
)

const (
	SelfName = "signal" // 本程序在模拟任务集群中的名字
)

var (
	heartBeatInterval = flag.Int("log.heartbeat_interval", 100, "心跳日志间隔步数")
)

// prepare 准备阶段，每步执行一次
// 功能：应用车辆增删与位置更新，再把各信号灯组当前时刻的灯色与倒计时写入路网
// 说明：路口依赖车道上车辆的排序，必须在路网准备完成后执行
func (ctx *Context) prepare() {
	if *heartBeatInterval > 0 && ctx.clock.Step%int32(*heartBeatInterval) == 0 {
		log.Infof("STEP: %d(%v) vehicles=%d", ctx.clock.Step, ctx.clock, len(ctx.network.Vehicles()))
	}
	ctx.network.Prepare()
	ctx.junctionManager.Prepare()
}

// update 更新阶段：各信号灯组补充配时表或重新分配车辆通行时间
func (ctx *Context) update() {
	ctx.junctionManager.Update(ctx.clock.DT)
}

// Step 不经过syncer直接执行一步，供嵌入车辆动力学的调用方驱动
func (ctx *Context) Step() {
	ctx.prepare()
	ctx.update()
	ctx.clock.Next()
}

// Run 运行
// 功能：初始化后按syncer的节拍循环执行准备、更新两阶段，直到到达结束步或收到关闭指令
func (ctx *Context) Run() {
	ctx.Init()
	// init syncer
	ctx.sidecar.Step(false)
	for !ctx.clock.Done() {
		ctx.prepare()
		// 通知准备阶段完成
		log.Debugf("step %d: prepare complete and call NotifyStepReady", ctx.clock.Step)
		ctx.sidecar.NotifyStepReady()
		ctx.update()
		log.Debugf("step %d: update complete", ctx.clock.Step)
		closed := ctx.sidecar.Step(ctx.clock.Step+1 >= ctx.clock.END_STEP)
		ctx.clock.Next()
		if closed || ctx.closed.Load() {
			break
		}
	}
	log.Infof("engine complete")
	ctx.Close()
}
