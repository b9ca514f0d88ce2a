package config

import (
	"time"

	"github.com/spf13/viper"
)

// Option 配置选项函数
type Option func(*manager)

// WithDefaults 设置最低优先级的默认值
func WithDefaults(defaults map[string]any) Option {
	return func(m *manager) {
		for key, value := range defaults {
			m.v.SetDefault(key, value)
		}
	}
}

// WithViper 使用已配置好环境变量映射的 Viper 实例
func WithViper(v *viper.Viper) Option {
	return func(m *manager) {
		m.v = v
	}
}

// WithDebounce 文件变化后等待 d 再重新读取，期间的变化合并为一次
func WithDebounce(d time.Duration) Option {
	return func(m *manager) {
		if d > 0 {
			m.debounce = d
		}
	}
}

// WithErrorHandler 接收监听与重新读取时的错误
func WithErrorHandler(fn func(error)) Option {
	return func(m *manager) {
		if fn != nil {
			m.onError = fn
		}
	}
}
