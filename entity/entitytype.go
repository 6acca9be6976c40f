package entity

import (
	"git.fiblab.net/general/common/v2/geometry"
	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
)

// 路网协作方的依赖倒置
// 信号调度只通过这里的接口读取拓扑与车辆占用，写入信号显示与倒计时

// INode 路口节点
type INode interface {
	ID() int32          // 获取节点ID
	XY() geometry.Point // 获取节点中心坐标
	HasSignal() bool    // 是否为信控路口
	InwardEdges() []IEdge

	LightGroupID() int32            // 所属信号灯组ID，未分组为-1
	SetLightGroupWhenInit(id int32) // 聚类时设置所属信号灯组（只设置一次）
}

// IEdge 驶入路口的有向道路
type IEdge interface {
	ID() int32        // 获取Edge ID
	Name() string     // 获取道路名（相位划分依据）
	Length() float64  // 获取道路长度
	InAngle() float64 // 驶入路口时的行进方向角（弧度）
	ToNode() INode    // 驶入的路口
	Lanes() []ILane   // 获取道路上的行车道，按从左到右排序

	// 信号显示（写入方为信号调度）

	SetMovementColor(movementID int32, state mapv2.LightState) // 设置某个流向的灯色
	MovementColor(movementID int32) mapv2.LightState           // 获取某个流向的灯色
	SetTimeNextGreen(t float64)                                // 距离下一次绿灯的时间
	SetTimeNextYellow(t float64)                               // 距离下一次黄灯的时间
	SetTimeNextRed(t float64)                                  // 距离下一次红灯的时间
	TimeNext(state mapv2.LightState) float64                   // 读取倒计时

	// 检测器

	VehicleDetected() bool       // 本周期是否检测到等待车辆
	SetVehicleDetected(ok bool) // 设置检测标志
}

// ILane 道路上的车道
type ILane interface {
	ID() int32
	Turn() mapv2.LaneTurn // 车道在路口的转向
	Edge() IEdge          // 所在道路
	MaxV() float64        // 车道限速
	Vehicles() []IVehicle // 车道上的车辆，按S从小到大排序
}

// IVehicle 车辆
type IVehicle interface {
	ID() int32
	Lane() ILane           // 所在车道
	HeadPosition() float64 // 车头在车道上的S坐标
	V() float64            // 当前速度
	Length() float64       // 车长
	MaxV() float64         // 车辆最大速度

	ScheduleRecord() *VehicleScheduleRecord // 车辆的路口调度记录
}

// IRoadNetwork 路网只读查询接口
type IRoadNetwork interface {
	NodesWithSignal() []INode
	InwardEdges(node INode) []IEdge
	LanesOfEdge(edge IEdge) []ILane
	VehiclesInLane(lane ILane) []IVehicle
}

// DistanceToStopLine 车头到停车线的距离
func DistanceToStopLine(v IVehicle) float64 {
	return v.Lane().Edge().Length() - v.HeadPosition()
}
