package entity_test

import (
	"testing"

	"git.fiblab.net/general/common/v2/mathutil"
	"github.com/stretchr/testify/assert"
	"github.com/tsinghua-fib-lab/agentsociety-signal/entity"
)

func TestRecordLifecycle(t *testing.T) {
	r := entity.NewVehicleScheduleRecord()
	assert.False(t, r.Entered())
	assert.Equal(t, mathutil.INF, r.AssignedTime())
	assert.Equal(t, 12.0, r.AdvisorySpeed(50, 12))

	// 首次进入的时间不会被覆盖
	assert.True(t, r.Enter(3))
	assert.False(t, r.Enter(5))
	assert.Equal(t, 3.0, r.TimeArrived())

	r.Assign(13, 10)
	assert.True(t, r.UnderIntersectionConstraint())
	assert.Equal(t, 5.0, r.AdvisorySpeed(50, 12))

	// 锁定后不再修改
	r.Finalize()
	r.Assign(20, 17)
	r.SetTimeToReach(4, 1)
	assert.Equal(t, 13.0, r.AssignedTime())
	assert.Equal(t, 10.0, r.TimeToReach())

	r.Reset()
	assert.False(t, r.Finalized())
	assert.False(t, r.UnderIntersectionConstraint())
	assert.Equal(t, -1.0, r.TimeArrived())
}

func TestSetTimeToReach(t *testing.T) {
	r := entity.NewVehicleScheduleRecord()
	r.SetTimeToReach(4, 6)
	assert.Equal(t, 10.0, r.AssignedTime())
	assert.Equal(t, 6.0, r.TimeToReach())
	assert.Equal(t, 0.0, r.AdvisorySpeed(-3, 12))
}
