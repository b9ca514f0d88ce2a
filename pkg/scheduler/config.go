package scheduler

import "time"

// Config 调度器配置
type Config struct {
	// PoolSize 回调执行协程池大小
	PoolSize int `mapstructure:"pool_size" validate:"gte=0"`
	// ReleaseTimeout 关闭时等待执行中回调的最长时间
	ReleaseTimeout time.Duration `mapstructure:"release_timeout"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		PoolSize:       256,
		ReleaseTimeout: 5 * time.Second,
	}
}
