package task

import (
	"context"
	"sync/atomic"

	"git.fiblab.net/sim/syncer/v3"
	"github.com/tsinghua-fib-lab/agentsociety-signal/clock"
	"github.com/tsinghua-fib-lab/agentsociety-signal/entity"
	"github.com/tsinghua-fib-lab/agentsociety-signal/entity/junction"
	"github.com/tsinghua-fib-lab/agentsociety-signal/entity/junction/trafficlight"
	"github.com/tsinghua-fib-lab/agentsociety-signal/entity/roadnet"
	"github.com/tsinghua-fib-lab/agentsociety-signal/utils/config"
	"github.com/tsinghua-fib-lab/agentsociety-signal/utils/input"
	"github.com/tsinghua-fib-lab/agentsociety-signal/utils/metrics"
)

// Context 信号调度任务上下文
// 功能：持有一次任务的时钟、路网、信号灯组管理器、配置与指标
// 说明：车辆动力学由外部协作方驱动，通过Network()取得的路网在两步之间增删、移动车辆，
// 并读取调度写入的灯色、倒计时与车辆调度记录
type Context struct {
	// 任务名
	job string
	// 关闭指令
	closed atomic.Bool

	clock *clock.Clock

	// 辅助程序，处理与syncer的步进同步并承载RPC服务
	sidecar        *syncer.Sidecar
	sidecarCloseCh chan struct{}

	network         *roadnet.Network
	junctionManager *junction.JunctionManager

	runtimeConfig *config.RuntimeConfig
	metrics       *metrics.Collector
}

// NewContext 创建任务上下文
// 参数：
//   - job: 任务名称
//   - cacheDir: 输入缓存目录，为空则禁用缓存
//   - c: 配置
//   - sidecar: syncer sidecar
//   - m: 指标集合，可为nil
//   - startSidecarServe: 是否启动sidecar服务
//
// 算法说明：
// 1. 加载地图并构建路网
// 2. 创建时钟、策略注册表与信号灯组管理器
// 3. 注册ClockService与TrafficLightService
func NewContext(
	job string,
	cacheDir string,
	c config.Config,
	sidecar *syncer.Sidecar,
	m *metrics.Collector,
	startSidecarServe bool,
) *Context {
	res, err := input.Load(context.Background(), c, cacheDir)
	if err != nil {
		log.Panicf("failed to load input: %v", err)
	}
	return newContext(job, roadnet.FromMap(res.Map), c, sidecar, m, startSidecarServe)
}

// NewContextWithNetwork 使用已构建的路网创建任务上下文（不加载输入数据）
func NewContextWithNetwork(
	job string,
	network *roadnet.Network,
	c config.Config,
	sidecar *syncer.Sidecar,
	m *metrics.Collector,
	startSidecarServe bool,
) *Context {
	return newContext(job, network, c, sidecar, m, startSidecarServe)
}

func newContext(
	job string,
	network *roadnet.Network,
	c config.Config,
	sidecar *syncer.Sidecar,
	m *metrics.Collector,
	startSidecarServe bool,
) *Context {
	ctx := &Context{
		job:            job,
		sidecar:        sidecar,
		sidecarCloseCh: make(chan struct{}),
		network:        network,
		metrics:        m,
	}
	ctx.clock = clock.New(c.Control.Step)
	ctx.runtimeConfig = config.NewRuntimeConfig(c)
	ctx.junctionManager = junction.NewManager(ctx, trafficlight.NewRegistry())

	ctx.clock.Register(ctx.sidecar)
	ctx.junctionManager.Register(ctx.sidecar)

	// sidecar协程，用于提供RPC服务
	if startSidecarServe {
		go func() {
			err := ctx.sidecar.Serve()
			if err != nil {
				log.Panicf("failed to serve: %v", err)
			}
			ctx.sidecarCloseCh <- struct{}{}
		}()
	} else {
		close(ctx.sidecarCloseCh)
	}

	return ctx
}

func (ctx *Context) Clock() *clock.Clock {
	return ctx.clock
}

func (ctx *Context) Network() entity.IRoadNetwork {
	return ctx.network
}

// RoadNetwork 可写的路网，供车辆动力学使用
func (ctx *Context) RoadNetwork() *roadnet.Network {
	return ctx.network
}

func (ctx *Context) JunctionManager() entity.IJunctionManager {
	return ctx.junctionManager
}

func (ctx *Context) RuntimeConfig() *config.RuntimeConfig {
	return ctx.runtimeConfig
}

func (ctx *Context) Metrics() *metrics.Collector {
	return ctx.metrics
}

// Init 重置时钟并初始化全部信号灯组
func (ctx *Context) Init() {
	ctx.clock.Init()
	ctx.network.Prepare()
	signals := ctx.network.NodesWithSignal()
	log.Infof("job %s: %d signalized junctions, %d vehicles", ctx.job, len(signals), len(ctx.network.Vehicles()))
	if err := ctx.junctionManager.Init(ctx.network); err != nil {
		log.Panicf("failed to init light groups: %v", err)
	}
}

// Close 关闭sidecar并等待其退出
func (ctx *Context) Close() {
	if ctx.closed.Load() {
		return
	}
	ctx.sidecar.Close()
	<-ctx.sidecarCloseCh
	ctx.closed.Store(true)
}
