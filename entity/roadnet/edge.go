package roadnet

import (
	"sync"
	"sync/atomic"

	"git.fiblab.net/general/common/v2/mathutil"
	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
	"github.com/tsinghua-fib-lab/agentsociety-signal/entity"
)

// Edge 驶入路口的有向道路
// 功能：保存道路几何信息、下游路口、车道，以及信号调度写入的灯色与倒计时
type Edge struct {
	id      int32
	name    string
	length  float64
	inAngle float64
	to      *Node
	lanes   []entity.ILane

	// 信号显示，未被任何信号灯组控制的流向默认为绿灯
	colorMtx sync.RWMutex
	colors   map[int32]mapv2.LightState
	timeNext map[mapv2.LightState]float64

	detected atomic.Bool
}

func newEdge(id int32, name string, length, inAngle float64, to *Node) *Edge {
	return &Edge{
		id:      id,
		name:    name,
		length:  length,
		inAngle: inAngle,
		to:      to,
		colors:  make(map[int32]mapv2.LightState),
		timeNext: map[mapv2.LightState]float64{
			mapv2.LightState_LIGHT_STATE_GREEN:  mathutil.INF,
			mapv2.LightState_LIGHT_STATE_YELLOW: mathutil.INF,
			mapv2.LightState_LIGHT_STATE_RED:    mathutil.INF,
		},
	}
}

func (e *Edge) ID() int32 {
	return e.id
}

func (e *Edge) Name() string {
	return e.name
}

func (e *Edge) Length() float64 {
	return e.length
}

func (e *Edge) InAngle() float64 {
	return e.inAngle
}

func (e *Edge) ToNode() entity.INode {
	return e.to
}

func (e *Edge) Lanes() []entity.ILane {
	return e.lanes
}

func (e *Edge) SetMovementColor(movementID int32, state mapv2.LightState) {
	e.colorMtx.Lock()
	defer e.colorMtx.Unlock()
	e.colors[movementID] = state
}

func (e *Edge) MovementColor(movementID int32) mapv2.LightState {
	e.colorMtx.RLock()
	defer e.colorMtx.RUnlock()
	if state, ok := e.colors[movementID]; ok {
		return state
	}
	return mapv2.LightState_LIGHT_STATE_GREEN
}

func (e *Edge) SetTimeNextGreen(t float64) {
	e.setTimeNext(mapv2.LightState_LIGHT_STATE_GREEN, t)
}

func (e *Edge) SetTimeNextYellow(t float64) {
	e.setTimeNext(mapv2.LightState_LIGHT_STATE_YELLOW, t)
}

func (e *Edge) SetTimeNextRed(t float64) {
	e.setTimeNext(mapv2.LightState_LIGHT_STATE_RED, t)
}

func (e *Edge) setTimeNext(state mapv2.LightState, t float64) {
	e.colorMtx.Lock()
	defer e.colorMtx.Unlock()
	e.timeNext[state] = t
}

// TimeNext 距离下一次出现指定灯色的时间，未知时为mathutil.INF
func (e *Edge) TimeNext(state mapv2.LightState) float64 {
	e.colorMtx.RLock()
	defer e.colorMtx.RUnlock()
	if t, ok := e.timeNext[state]; ok {
		return t
	}
	return mathutil.INF
}

func (e *Edge) VehicleDetected() bool {
	return e.detected.Load()
}

func (e *Edge) SetVehicleDetected(ok bool) {
	e.detected.Store(ok)
}
