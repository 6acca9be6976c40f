package clock_test

import (
	"context"
	"testing"

	"connectrpc.com/connect"
	clockv1 "git.fiblab.net/sim/protos/v2/go/city/clock/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/agentsociety-signal/clock"
	"github.com/tsinghua-fib-lab/agentsociety-signal/utils/config"
)

func TestClockStepping(t *testing.T) {
	c := clock.New(config.ControlStep{Start: 3600, Total: 2, Interval: 1})
	assert.Equal(t, 3600.0, c.T)
	assert.Equal(t, "01:00:00", c.String())
	assert.False(t, c.Done())
	c.Next()
	c.Next()
	assert.True(t, c.Done())
	assert.Equal(t, 3602.0, c.T)

	res, err := c.Now(context.Background(), connect.NewRequest(&clockv1.NowRequest{}))
	require.NoError(t, err)
	assert.Equal(t, 3602.0, res.Msg.T)

	c.Init()
	assert.Equal(t, int32(3600), c.Step)
}
