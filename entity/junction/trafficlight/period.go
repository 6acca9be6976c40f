package trafficlight

import (
	"fmt"

	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
)

// LightPeriod 信号配时中的一个时段：某个相位在[Start, End)内显示Color
type LightPeriod struct {
	ID    int64
	Phase int
	Color mapv2.LightState
	Start float64
	End   float64
}

func (p LightPeriod) Duration() float64 {
	return p.End - p.Start
}

func (p LightPeriod) String() string {
	return fmt.Sprintf("Period{ID:%d, Phase:%d, %v, [%.2f, %.2f)}", p.ID, p.Phase, p.Color, p.Start, p.End)
}
