package prometheus

import (
	"fmt"
	"strings"
	"time"
)

// Config 指标暴露配置
type Config struct {
	// Addr 独立监听地址；为空时不单独监听，由调用方把 Handler 挂到业务路由上
	Addr string `mapstructure:"addr"`

	Path string `mapstructure:"path"`

	// Timeout 单次抓取的超时，同时作为独立监听的读写超时
	Timeout time.Duration `mapstructure:"timeout"`

	// ConstLabels 附加到所有经 Registerer 注册的指标上，例如 instance
	ConstLabels map[string]string `mapstructure:"const_labels"`

	// SkipRuntimeCollectors 不注册 Go 运行时与进程采集器
	SkipRuntimeCollectors bool `mapstructure:"skip_runtime_collectors"`
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		Path:    "/metrics",
		Timeout: 10 * time.Second,
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if !strings.HasPrefix(c.Path, "/") {
		return fmt.Errorf("%w: path %q must start with /", ErrInvalidConfig, c.Path)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive", ErrInvalidConfig)
	}
	for k, v := range c.ConstLabels {
		if k == "" || v == "" {
			return fmt.Errorf("%w: const label %q=%q has empty name or value", ErrInvalidConfig, k, v)
		}
	}
	return nil
}
