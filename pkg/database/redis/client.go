package redis

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/lk2023060901/xdooria-dungeon/pkg/config"
	"github.com/redis/go-redis/v9"
)

// Client Redis 客户端，对外不暴露 go-redis 类型
//
// 写命令与脚本总是发往 primary；只读命令在 ReadFromReplica 开启时轮询 replicas。
type Client struct {
	cfg      *Config
	primary  redis.UniversalClient
	replicas []redis.UniversalClient
	next     atomic.Uint64
}

// NewClient 创建客户端，cfg 中未设置的连接池参数取 DefaultConfig
func NewClient(cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}
	merged, err := config.MergeConfig(DefaultConfig(), cfg)
	if err != nil {
		return nil, err
	}
	if err := merged.Validate(); err != nil {
		return nil, err
	}

	c := &Client{cfg: merged}
	switch {
	case merged.Standalone != nil:
		c.primary = redis.NewClient(merged.nodeOptions(merged.Standalone))
	case merged.Master != nil:
		c.primary = redis.NewClient(merged.nodeOptions(merged.Master))
		if merged.ReadFromReplica {
			for i := range merged.Replicas {
				c.replicas = append(c.replicas, redis.NewClient(merged.nodeOptions(&merged.Replicas[i])))
			}
		}
	default:
		c.primary = redis.NewClusterClient(merged.clusterOptions())
	}
	return c, nil
}

func (c *Config) nodeOptions(node *NodeConfig) *redis.Options {
	p := c.Pool
	return &redis.Options{
		Addr:            node.addr(),
		Password:        node.Password,
		DB:              node.DB,
		PoolSize:        p.PoolSize,
		MinIdleConns:    p.MinIdleConns,
		MaxIdleConns:    p.MaxIdleConns,
		ConnMaxLifetime: p.ConnMaxLifetime,
		ConnMaxIdleTime: p.ConnMaxIdleTime,
		DialTimeout:     p.DialTimeout,
		ReadTimeout:     p.ReadTimeout,
		WriteTimeout:    p.WriteTimeout,
		PoolTimeout:     p.PoolTimeout,
	}
}

func (c *Config) clusterOptions() *redis.ClusterOptions {
	p := c.Pool
	return &redis.ClusterOptions{
		Addrs:    c.Cluster.Addrs,
		Password: c.Cluster.Password,
		// 读请求发往延迟最低的节点，包括从节点
		ReadOnly:        c.ReadFromReplica,
		RouteByLatency:  c.ReadFromReplica,
		PoolSize:        p.PoolSize,
		MinIdleConns:    p.MinIdleConns,
		MaxIdleConns:    p.MaxIdleConns,
		ConnMaxLifetime: p.ConnMaxLifetime,
		ConnMaxIdleTime: p.ConnMaxIdleTime,
		DialTimeout:     p.DialTimeout,
		ReadTimeout:     p.ReadTimeout,
		WriteTimeout:    p.WriteTimeout,
		PoolTimeout:     p.PoolTimeout,
	}
}

// writer 写命令目标
func (c *Client) writer() redis.UniversalClient {
	return c.primary
}

// reader 只读命令目标，没有可用 replica 时读主
func (c *Client) reader() redis.UniversalClient {
	if len(c.replicas) == 0 {
		return c.primary
	}
	i := c.next.Add(1) - 1
	return c.replicas[i%uint64(len(c.replicas))]
}

// Ping 逐个节点检查连通性
func (c *Client) Ping(ctx context.Context) error {
	if err := c.primary.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("primary ping failed: %w", err)
	}
	for i, r := range c.replicas {
		if err := r.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("replica[%d] ping failed: %w", i, err)
		}
	}
	return nil
}

// Close 关闭所有节点连接，返回合并后的错误
func (c *Client) Close() error {
	errs := []error{c.primary.Close()}
	for _, r := range c.replicas {
		errs = append(errs, r.Close())
	}
	return errors.Join(errs...)
}
