package junction

import (
	"context"
	"errors"
	"net/http"

	"connectrpc.com/connect"
	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
	mapv2connect "git.fiblab.net/sim/protos/v2/go/city/map/v2/mapv2connect"
	"git.fiblab.net/sim/syncer/v3"
)

var (
	ErrDisabledTrafficLight = errors.New("traffic light is disabled for the junction")
)

// Register 将信号灯组管理器注册到sidecar
func (m *JunctionManager) Register(sidecar *syncer.Sidecar) {
	sidecar.Register(
		mapv2connect.TrafficLightServiceName,
		func(opts ...connect.HandlerOption) (pattern string, handler http.Handler) {
			return mapv2connect.NewTrafficLightServiceHandler(m, opts...)
		},
	)
}

// GetTrafficLight RPC接口：获取路口所属信号灯组的配时
// 功能：相位式信号灯组返回配时表中尚未结束的时段（每个时段一个相位）、当前相位序号与剩余时间
// 说明：预约式信号灯组没有配时表，返回空响应；信控关闭时返回ErrDisabledTrafficLight
func (m *JunctionManager) GetTrafficLight(
	ctx context.Context, in *connect.Request[mapv2.GetTrafficLightRequest],
) (*connect.Response[mapv2.GetTrafficLightResponse], error) {
	req := in.Msg
	ctrl, ok := m.byNode[req.JunctionId]
	if !ok {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("junction id does not exist"))
	}
	if !ctrl.Ok() {
		return nil, connect.NewError(connect.CodeFailedPrecondition, ErrDisabledTrafficLight)
	}
	rt, ok := ctrl.(*ClusterRuntime)
	if !ok {
		return connect.NewResponse(&mapv2.GetTrafficLightResponse{}), nil
	}
	tl, phaseIndex, remaining := rt.ToPb(req.JunctionId, m.ctx.Clock().T)
	return connect.NewResponse(&mapv2.GetTrafficLightResponse{
		TrafficLight:  tl,
		PhaseIndex:    phaseIndex,
		TimeRemaining: remaining,
	}), nil
}

// SetTrafficLightStatus RPC接口：设置路口所属信号灯组的开关状态
// 说明：true表示正常工作，false表示失效（全绿灯），在下一个准备阶段生效
func (m *JunctionManager) SetTrafficLightStatus(
	ctx context.Context, in *connect.Request[mapv2.SetTrafficLightStatusRequest],
) (*connect.Response[mapv2.SetTrafficLightStatusResponse], error) {
	req := in.Msg
	ctrl, ok := m.byNode[req.JunctionId]
	if !ok {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("junction id does not exist"))
	}
	ctrl.SetOk(req.Ok)
	return connect.NewResponse(&mapv2.SetTrafficLightStatusResponse{}), nil
}
