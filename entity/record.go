package entity

import (
	"math"

	"git.fiblab.net/general/common/v2/mathutil"
)

// VehicleScheduleRecord 车辆的路口调度记录
// 功能：保存预约式路口控制为单个车辆分配的通行时间，由车辆动力学读取以约束车速
// 说明：只有预约控制器写入；Finalized后不再修改，直到车辆驶入下一个进口道时Reset
type VehicleScheduleRecord struct {
	entered      bool
	timeArrived  float64 // 进入控制区的时间
	assignedTime float64 // 分配的通过停车线时间
	timeToReach  float64 // 从参考时刻起到达停车线的目标用时
	finalized    bool    // 是否已锁定

	underIntersectionConstraint bool // 是否处于路口约束下
}

// NewVehicleScheduleRecord 创建空的调度记录
func NewVehicleScheduleRecord() *VehicleScheduleRecord {
	r := &VehicleScheduleRecord{}
	r.Reset()
	return r
}

// Reset 清空记录
// 功能：车辆离开当前进口道后调用，为下一个路口的调度做准备
func (r *VehicleScheduleRecord) Reset() {
	r.entered = false
	r.timeArrived = -1
	r.assignedTime = mathutil.INF
	r.timeToReach = mathutil.INF
	r.finalized = false
	r.underIntersectionConstraint = false
}

// Enter 记录车辆进入控制区的时间，重复调用不会覆盖第一次的时间
// 返回：true表示本次为首次进入
func (r *VehicleScheduleRecord) Enter(now float64) bool {
	if r.entered {
		return false
	}
	r.entered = true
	r.timeArrived = now
	return true
}

// Assign 写入分配结果
func (r *VehicleScheduleRecord) Assign(assignedTime, timeToReach float64) {
	if r.finalized {
		return
	}
	r.assignedTime = assignedTime
	r.timeToReach = timeToReach
	r.underIntersectionConstraint = true
}

// SetTimeToReach 只设置到达用时（不做冲突检查的基准控制器使用）
func (r *VehicleScheduleRecord) SetTimeToReach(now, timeToReach float64) {
	if r.finalized {
		return
	}
	r.timeToReach = timeToReach
	r.assignedTime = now + timeToReach
	r.underIntersectionConstraint = true
}

// Finalize 锁定通行时间
func (r *VehicleScheduleRecord) Finalize() {
	r.finalized = true
}

func (r *VehicleScheduleRecord) Entered() bool { return r.entered }
func (r *VehicleScheduleRecord) TimeArrived() float64 { return r.timeArrived }
func (r *VehicleScheduleRecord) AssignedTime() float64 { return r.assignedTime }
func (r *VehicleScheduleRecord) TimeToReach() float64 { return r.timeToReach }
func (r *VehicleScheduleRecord) Finalized() bool { return r.finalized }

func (r *VehicleScheduleRecord) UnderIntersectionConstraint() bool {
	return r.underIntersectionConstraint
}

// AdvisorySpeed 车辆动力学使用的建议速度
// 功能：按目标用时均匀行驶到停车线所需的速度，不超过maxV
// 参数：distance-到停车线的距离，maxV-允许的最大速度
func (r *VehicleScheduleRecord) AdvisorySpeed(distance, maxV float64) float64 {
	if !r.underIntersectionConstraint || r.timeToReach <= 0 || r.timeToReach >= mathutil.INF {
		return maxV
	}
	return math.Min(maxV, math.Max(0, distance)/r.timeToReach)
}
