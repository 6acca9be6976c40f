package config

// InputPath 指定输入数据来源的配置（MongoDB、文件系统）
// 功能：定义数据输入路径的配置结构，支持多种数据源
// 说明：支持MongoDB数据库和文件系统两种数据源，支持缓存机制
type InputPath struct {
	DB        string `yaml:"db"`                   // 数据库名
	Col       string `yaml:"col"`                  // 集合名
	Cache     string `yaml:"cache,omitempty"`      // 缓存文件名，为空则采用默认路径{db}.{col}.pb
	OnlyCache bool   `yaml:"only_cache,omitempty"` // 只从缓存中获取
	File      string `yaml:"file,omitempty"`       // 文件路径（优先级高于MongoDB）
}

// GetDb 获取数据库名
func (p InputPath) GetDb() string {
	return p.DB
}

// GetColl 获取集合名
func (p InputPath) GetColl() string {
	return p.Col
}

// GetCachePath 获取缓存文件路径
// 功能：返回缓存文件的完整路径
// 返回：缓存文件路径字符串
// 说明：未指定时使用默认命名规则：{数据库名}.{集合名}.pb
func (p InputPath) GetCachePath() string {
	if p.Cache != "" {
		return p.Cache
	}
	return p.DB + "." + p.Col + ".pb"
}

// Input 指定模拟器所有输入数据的配置项
type Input struct {
	URI string    `yaml:"uri"` // MongoDB连接字符串
	Map InputPath `yaml:"map"` // 地图
}

// ControlStep 指定模拟器模拟时间范围和间隔的配置项
// 功能：定义仿真时间控制参数
type ControlStep struct {
	Start    int32   `yaml:"start"`    // 开始步数
	Total    int32   `yaml:"total"`    // 总步数
	Interval float64 `yaml:"interval"` // 每步的时间间隔
}

// DelayMin 延误最小化信控参数
type DelayMin struct {
	PlanningHorizon   float64 `yaml:"planning_horizon,omitempty"`   // 规划时域H（秒），只考虑H内到达的车队
	MaxBatches        int     `yaml:"max_batches,omitempty"`        // 参与搜索的车队数上限
	StartupLoss       float64 `yaml:"startup_loss,omitempty"`       // 相位切换的启动损失（秒）
	SaturationHeadway float64 `yaml:"saturation_headway,omitempty"` // 饱和车头时距（秒/辆）
	BatchGap          float64 `yaml:"batch_gap,omitempty"`          // 到达时间差小于该值的车辆合并为一个车队
}

// MaxPressure 最大压力信控参数
type MaxPressure struct {
	PhaseTime float64 `yaml:"phase_time,omitempty"` // 每次选中或延长相位的绿灯时长（秒）
	MaxRepeat int     `yaml:"max_repeat,omitempty"` // 同一相位连续被选中的次数上限
}

// Signal 相位式信号控制配置
type Signal struct {
	Mode                string      `yaml:"mode,omitempty"`                   // phase | reservation
	Policy              string      `yaml:"policy,omitempty"`                 // fixed | adaptive | delay_min | max_pressure
	MaxLightGroupRadius float64     `yaml:"max_light_group_radius,omitempty"` // 信号灯组聚类半径（米）
	SplitTurns          bool        `yaml:"split_turns,omitempty"`            // 按转向拆分流向
	Horizon             float64     `yaml:"horizon,omitempty"`                // 调度表至少覆盖的时长（秒）
	GreenTime           float64     `yaml:"green_time,omitempty"`             // 固定配时绿灯时长
	YellowTime          float64     `yaml:"yellow_time,omitempty"`            // 黄灯时长
	RedTime             float64     `yaml:"red_time,omitempty"`               // 全红时长
	MinGreenTime        float64     `yaml:"min_green_time,omitempty"`         // 最短绿灯
	MaxGreenTime        float64     `yaml:"max_green_time,omitempty"`         // 最长绿灯（自适应延长上限）
	DetectDistance      float64     `yaml:"detect_distance,omitempty"`        // 检测器到停车线的距离
	DelayMin            DelayMin    `yaml:"delay_min,omitempty"`
	MaxPressure         MaxPressure `yaml:"max_pressure,omitempty"`
}

// ConflictRule 显式指定的冲突：两条驶入道路的车辆先后通过停车线至少间隔Gap秒
type ConflictRule struct {
	From int32   `yaml:"from"` // 驶入道路ID
	To   int32   `yaml:"to"`   // 驶入道路ID
	Gap  float64 `yaml:"gap"`  // 最小安全间隔（秒），对两个方向同时生效
}

// Reservation 预约式路口控制配置
type Reservation struct {
	Controller       string  `yaml:"controller,omitempty"`        // poll | multi_queue_poll | random
	ControlRegion    float64 `yaml:"control_region,omitempty"`    // 控制区长度（米）
	ServiceTime      float64 `yaml:"service_time,omitempty"`      // 单车服务时间（秒）
	SwitchPenalty    float64 `yaml:"switch_penalty,omitempty"`    // 切换进口道的额外损失（秒）
	ClearanceTime    float64 `yaml:"clearance_time,omitempty"`    // 冲突队列之间的清空时间（秒）
	FinalizeDistance float64 `yaml:"finalize_distance,omitempty"` // 距离停车线小于该值时锁定分配结果
	RandomSpread     float64 `yaml:"random_spread,omitempty"`     // 随机控制器的时间抖动范围（秒）
	Seed             uint64  `yaml:"seed,omitempty"`              // 随机种子

	Conflicts []ConflictRule `yaml:"conflicts,omitempty"` // 非空时替代按几何关系生成的冲突矩阵
}

// Control 模拟器控制配置
// 功能：定义仿真系统的核心控制参数
type Control struct {
	Step        ControlStep `yaml:"step"`
	Signal      Signal      `yaml:"signal,omitempty"`
	Reservation Reservation `yaml:"reservation,omitempty"`
}

// Config YAML配置文件的根结构
type Config struct {
	Input   Input   `yaml:"input"`   // 输入
	Control Control `yaml:"control"` // 模拟过程控制
}
