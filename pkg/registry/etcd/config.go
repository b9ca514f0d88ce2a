package etcd

import (
	"time"

	"github.com/cockroachdb/errors"
)

// Config etcd 服务注册配置
type Config struct {
	// Enabled 是否注册到 etcd
	Enabled bool `mapstructure:"enabled" json:"enabled"`
	// Endpoints etcd 集群地址
	Endpoints []string `mapstructure:"endpoints" json:"endpoints"`
	// DialTimeout 连接超时
	DialTimeout time.Duration `mapstructure:"dial_timeout" json:"dial_timeout"`
	// TTL 租约过期时间，进程异常退出后注册信息在 TTL 后消失
	TTL time.Duration `mapstructure:"ttl" json:"ttl"`
	// Namespace 命名空间前缀（如 /services）
	Namespace string `mapstructure:"namespace" json:"namespace"`
	// Username 用户名
	Username string `mapstructure:"username" json:"username"`
	// Password 密码
	Password string `mapstructure:"password" json:"password"`
	// ServiceAddr 对外公布的服务地址，为空时由调用方决定
	ServiceAddr string `mapstructure:"service_addr" json:"service_addr"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Endpoints:   []string{"localhost:2379"},
		DialTimeout: 5 * time.Second,
		TTL:         10 * time.Second,
		Namespace:   "/services",
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if len(c.Endpoints) == 0 {
		return errors.New("endpoints is required")
	}
	if c.DialTimeout <= 0 {
		return errors.New("dial_timeout must be positive")
	}
	if c.TTL < time.Second {
		return errors.New("ttl must be at least 1s")
	}
	if c.Namespace == "" {
		return errors.New("namespace is required")
	}
	return nil
}
