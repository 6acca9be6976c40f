package config

import "gopkg.in/yaml.v2"

const (
	ModePhase       = "phase"
	ModeReservation = "reservation"
)

// RuntimeConfig 运行时配置
// 功能：存储仿真运行时的配置信息
type RuntimeConfig struct {
	All Config  // 全部配置
	C   Control // 全局控制配置
}

// NewRuntimeConfig 根据配置初始化运行时配置
// 功能：创建运行时配置对象
// 参数：config-原始配置对象，默认值应已由Default或Load填充
// 返回：初始化的运行时配置指针
func NewRuntimeConfig(config Config) *RuntimeConfig {
	return &RuntimeConfig{
		All: config,
		C:   config.Control,
	}
}

// Default 全部信控参数取默认值的配置
func Default() Config {
	return Config{Control: Control{
		Signal:      DefaultSignal(),
		Reservation: DefaultReservation(),
	}}
}

// Load 解析YAML配置
// 功能：在默认配置上解析data，只有YAML中出现的键会覆盖默认值，显式写出的0同样生效
// 参数：data-YAML文本
// 返回：配置与解析错误（包括未知字段）
func Load(data []byte) (Config, error) {
	c := Default()
	if err := yaml.UnmarshalStrict(data, &c); err != nil {
		return Config{}, err
	}
	return c, nil
}

// DefaultSignal 相位式信控参数默认值
func DefaultSignal() Signal {
	return Signal{
		Mode:                ModePhase,
		Policy:              "fixed",
		MaxLightGroupRadius: 50,
		Horizon:             120,
		GreenTime:           30,
		YellowTime:          3,
		RedTime:             2,
		MinGreenTime:        5,
		MaxGreenTime:        60,
		DetectDistance:      30,
		DelayMin: DelayMin{
			PlanningHorizon:   60,
			MaxBatches:        12,
			StartupLoss:       2,
			SaturationHeadway: 2,
			BatchGap:          2,
		},
		MaxPressure: MaxPressure{
			PhaseTime: 15,
			MaxRepeat: 6,
		},
	}
}

// DefaultReservation 预约式控制参数默认值
func DefaultReservation() Reservation {
	return Reservation{
		Controller:       "poll",
		ControlRegion:    150,
		ServiceTime:      1,
		SwitchPenalty:    1,
		ClearanceTime:    2,
		FinalizeDistance: 5,
		RandomSpread:     25,
	}
}
