package postgres

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/tracelog"
	"github.com/lk2023060901/xdooria-dungeon/pkg/config"
	"github.com/lk2023060901/xdooria-dungeon/pkg/logger"
)

// QueryBuilder SQL 构建器，占位符为 $n
var QueryBuilder = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

// Client 基于 pgxpool 的客户端
type Client struct {
	pool   *pgxpool.Pool
	cfg    *Config
	logger logger.Logger
}

// New 建池并在 connect_timeout 内完成一次 Ping
func New(cfg *Config, l logger.Logger) (*Client, error) {
	if l == nil {
		l = logger.NewNoop()
	}
	merged, err := config.MergeConfig(DefaultConfig(), cfg)
	if err != nil {
		return nil, fmt.Errorf("merge postgres config: %w", err)
	}
	if err := merged.Validate(); err != nil {
		return nil, err
	}

	c := &Client{cfg: merged, logger: l.Named("postgres")}
	if c.pool, err = c.connect(); err != nil {
		return nil, err
	}
	c.logger.Info("postgres connected",
		"host", merged.Standalone.Host,
		"db", merged.Standalone.DBName,
		"max_conns", merged.Pool.MaxConns,
	)
	return c, nil
}

func (c *Client) connect() (*pgxpool.Pool, error) {
	pc, err := pgxpool.ParseConfig(c.cfg.connURL())
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}
	p := c.cfg.Pool
	pc.MaxConns, pc.MinConns = p.MaxConns, p.MinConns
	pc.MaxConnLifetime, pc.MaxConnIdleTime = p.MaxConnLifetime, p.MaxConnIdleTime
	pc.HealthCheckPeriod = p.HealthCheckPeriod
	if lvl, ok := c.cfg.traceLevel(); ok {
		pc.ConnConfig.Tracer = &tracelog.TraceLog{Logger: tracelog.LoggerFunc(c.trace), LogLevel: lvl}
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.ConnectTimeout)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

// trace 把 tracelog 的事件转成结构化日志，字段按键排序
func (c *Client) trace(ctx context.Context, level tracelog.LogLevel, msg string, data map[string]any) {
	kv := make([]any, 0, 2*len(data))
	for _, k := range slices.Sorted(maps.Keys(data)) {
		kv = append(kv, k, data[k])
	}
	switch {
	case level >= tracelog.LogLevelDebug:
		c.logger.DebugContext(ctx, msg, kv...)
	case level == tracelog.LogLevelInfo:
		c.logger.InfoContext(ctx, msg, kv...)
	case level == tracelog.LogLevelWarn:
		c.logger.WarnContext(ctx, msg, kv...)
	default:
		c.logger.ErrorContext(ctx, msg, kv...)
	}
}

// Ping 检查连通性
func (c *Client) Ping(ctx context.Context) error {
	if err := c.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// Close 等待借出的连接归还后关闭连接池
func (c *Client) Close() error {
	c.pool.Close()
	return nil
}
