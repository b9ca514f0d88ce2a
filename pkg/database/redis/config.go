package redis

import (
	"fmt"
	"time"
)

// Config Redis 配置，standalone、master（可带 replicas）与 cluster 三选一
type Config struct {
	Standalone *NodeConfig `mapstructure:"standalone"`

	Master   *NodeConfig  `mapstructure:"master"`
	Replicas []NodeConfig `mapstructure:"replicas"`

	Cluster *ClusterConfig `mapstructure:"cluster"`

	// ReadFromReplica 为 true 时只读命令轮询 replicas，集群模式下读请求路由到从节点
	// 默认读主，读到的总是自己刚写入的数据
	ReadFromReplica bool `mapstructure:"read_from_replica"`

	Pool PoolConfig `mapstructure:"pool"`
}

// NodeConfig 单个节点
type NodeConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (n *NodeConfig) addr() string {
	return fmt.Sprintf("%s:%d", n.Host, n.Port)
}

func (n *NodeConfig) validate(role string) error {
	if n.Host == "" {
		return fmt.Errorf("%w: %s host is empty", ErrInvalidConfig, role)
	}
	if n.Port <= 0 || n.Port > 65535 {
		return fmt.Errorf("%w: %s port %d out of range", ErrInvalidConfig, role, n.Port)
	}
	if n.DB < 0 || n.DB > 15 {
		return fmt.Errorf("%w: %s db %d out of range", ErrInvalidConfig, role, n.DB)
	}
	return nil
}

// ClusterConfig 集群节点，格式 host:port
type ClusterConfig struct {
	Addrs    []string `mapstructure:"addrs"`
	Password string   `mapstructure:"password"`
}

// PoolConfig 每个节点各自一个连接池
type PoolConfig struct {
	PoolSize        int           `mapstructure:"pool_size"`
	MinIdleConns    int           `mapstructure:"min_idle_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	DialTimeout     time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	PoolTimeout     time.Duration `mapstructure:"pool_timeout"`
}

// DefaultConfig 只含连接池默认值，节点必须由调用方配置
func DefaultConfig() *Config {
	return &Config{
		Pool: PoolConfig{
			PoolSize:        20,
			MinIdleConns:    2,
			MaxIdleConns:    10,
			ConnMaxLifetime: time.Hour,
			ConnMaxIdleTime: 10 * time.Minute,
			DialTimeout:     3 * time.Second,
			ReadTimeout:     time.Second,
			WriteTimeout:    time.Second,
			PoolTimeout:     2 * time.Second,
		},
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c == nil {
		return ErrNilConfig
	}

	modes := 0
	for _, set := range []bool{c.Standalone != nil, c.Master != nil, c.Cluster != nil} {
		if set {
			modes++
		}
	}
	if modes != 1 {
		return fmt.Errorf("%w: exactly one of standalone, master or cluster is required", ErrInvalidConfig)
	}
	if len(c.Replicas) > 0 && c.Master == nil {
		return fmt.Errorf("%w: replicas require master", ErrInvalidConfig)
	}

	switch {
	case c.Standalone != nil:
		return c.Standalone.validate("standalone")
	case c.Master != nil:
		if err := c.Master.validate("master"); err != nil {
			return err
		}
		for i := range c.Replicas {
			if err := c.Replicas[i].validate(fmt.Sprintf("replicas[%d]", i)); err != nil {
				return err
			}
		}
	default:
		if len(c.Cluster.Addrs) == 0 {
			return fmt.Errorf("%w: cluster addrs is empty", ErrInvalidConfig)
		}
	}

	if c.Pool.PoolSize <= 0 || c.Pool.MinIdleConns > c.Pool.PoolSize {
		return fmt.Errorf("%w: pool_size=%d min_idle_conns=%d", ErrInvalidConfig, c.Pool.PoolSize, c.Pool.MinIdleConns)
	}
	return nil
}
