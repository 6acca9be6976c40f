package trafficlight

import (
	"errors"
	"fmt"
	"sort"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-signal/utils/config"
	"github.com/tsinghua-fib-lab/agentsociety-signal/utils/metrics"
)

const (
	PolicyFixed           = "fixed"
	PolicyAdaptive        = "adaptive"
	PolicyDelayMinimizing = "delay_min"
	PolicyMaxPressure     = "max_pressure"
)

var (
	ErrUnknownPolicy = errors.New("unknown traffic light policy")
)

// Factory 策略构造函数
type Factory func(cfg config.Signal, m *metrics.Collector) Policy

// Registry 策略名到构造函数的映射
// 功能：启动时创建一次，由需要按配置名选择策略的模块持有
type Registry struct {
	factories map[string]Factory
}

// NewRegistry 创建包含内置策略的注册表
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.Register(PolicyFixed, func(cfg config.Signal, m *metrics.Collector) Policy { return NewFixed(cfg, m) })
	r.Register(PolicyAdaptive, func(cfg config.Signal, m *metrics.Collector) Policy { return NewAdaptive(cfg, m) })
	r.Register(PolicyDelayMinimizing, func(cfg config.Signal, m *metrics.Collector) Policy {
		return NewDelayMinimizing(cfg, m)
	})
	r.Register(PolicyMaxPressure, func(cfg config.Signal, m *metrics.Collector) Policy { return NewMaxPressure(cfg, m) })
	return r
}

// Register 注册策略，同名覆盖
func (r *Registry) Register(name string, f Factory) {
	r.factories[name] = f
}

// New 按名称创建策略
func (r *Registry) New(name string, cfg config.Signal, m *metrics.Collector) (Policy, error) {
	f, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %v)", ErrUnknownPolicy, name, r.Names())
	}
	return f(cfg, m), nil
}

// Names 已注册的策略名，按字母序
func (r *Registry) Names() []string {
	names := lo.Keys(r.factories)
	sort.Strings(names)
	return names
}
