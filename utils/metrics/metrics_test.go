package metrics_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/agentsociety-signal/utils/metrics"
)

func TestCollectorCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := metrics.NewCollector(reg)
	require.NoError(t, err)

	c.AddPeriods("fixed", 3)
	c.AddPeriods("fixed", 0)
	c.IncGreenExtensions()
	c.AddReservations("poll", 2)
	c.IncSchedulingErrors("ledger")
	c.ObservePlanning(time.Millisecond)
	c.SetActiveLightClusters(4)

	assert.Equal(t, 3.0, testutil.ToFloat64(c.PeriodsAppended.WithLabelValues("fixed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.GreenExtensions))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.ReservationsAssign.WithLabelValues("poll")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.SchedulingErrors.WithLabelValues("ledger")))
	assert.Equal(t, 4.0, testutil.ToFloat64(c.ActiveLightClusters))
}

func TestCollectorReRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	c1, err := metrics.NewCollector(reg)
	require.NoError(t, err)
	c2, err := metrics.NewCollector(reg)
	require.NoError(t, err)

	c1.IncGreenExtensions()
	c2.IncGreenExtensions()
	assert.Equal(t, 2.0, testutil.ToFloat64(c1.GreenExtensions))
}

func TestNilCollector(t *testing.T) {
	var c *metrics.Collector
	assert.NotPanics(t, func() {
		c.AddPeriods("fixed", 1)
		c.IncGreenExtensions()
		c.AddReservations("poll", 1)
		c.IncSchedulingErrors("drain")
		c.ObservePlanning(time.Second)
		c.SetActiveLightClusters(1)
	})
}
