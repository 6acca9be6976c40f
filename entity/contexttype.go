package entity

import (
	"github.com/tsinghua-fib-lab/agentsociety-signal/clock"
	"github.com/tsinghua-fib-lab/agentsociety-signal/utils/config"
	"github.com/tsinghua-fib-lab/agentsociety-signal/utils/metrics"
)

type ITaskContext interface {
	Clock() *clock.Clock
	Network() IRoadNetwork
	JunctionManager() IJunctionManager
	RuntimeConfig() *config.RuntimeConfig
	Metrics() *metrics.Collector
}
