package roadnet

import (
	"github.com/tsinghua-fib-lab/agentsociety-signal/entity"
	"github.com/tsinghua-fib-lab/agentsociety-signal/utils/container"
)

// Vehicle 车辆
// 功能：路网侧的车辆状态（车道、位置、速度），以及路口调度写入的调度记录
// 说明：位置更新通过SetMotion，换道通过MoveTo，二者都在下一次Prepare后对车道列表生效
type Vehicle struct {
	container.IncrementalItemBase

	id     int32
	lane   *Lane
	length float64
	maxV   float64
	v      float64

	node   *container.ListNode[*Vehicle]
	record *entity.VehicleScheduleRecord
}

func (v *Vehicle) ID() int32 {
	return v.id
}

func (v *Vehicle) Lane() entity.ILane {
	return v.lane
}

func (v *Vehicle) HeadPosition() float64 {
	return v.node.S
}

func (v *Vehicle) V() float64 {
	return v.v
}

func (v *Vehicle) Length() float64 {
	return v.length
}

func (v *Vehicle) MaxV() float64 {
	return v.maxV
}

func (v *Vehicle) ScheduleRecord() *entity.VehicleScheduleRecord {
	return v.record
}

// SetMotion 更新车头位置与速度
func (v *Vehicle) SetMotion(s, speed float64) {
	v.node.S = s
	v.v = speed
}

// MoveTo 将车辆移动到另一条车道的指定位置
// 说明：
// 1. 驶入其他道路时清空调度记录，为下一个路口重新排队
// 2. 两次Prepare之间可以多次调用，也可以在AddVehicle之后调用，以最后一次为准
func (v *Vehicle) MoveTo(lane *Lane, s float64) {
	if lane.edge != v.lane.edge {
		v.record.Reset()
	}
	v.lane.vehicles.remove(v.node)
	v.lane = lane
	v.node = &container.ListNode[*Vehicle]{S: s, Value: v}
	lane.vehicles.add(v.node)
}
