package postgres

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/tracelog"
	"github.com/lk2023060901/xdooria-dungeon/pkg/config"
)

// DBConfig 单个数据库实例
type DBConfig struct {
	Host     string `mapstructure:"host" validate:"required"`
	Port     int    `mapstructure:"port" validate:"gt=0,lte=65535"`
	User     string `mapstructure:"user" validate:"required"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"db_name" validate:"required"`
	SSLMode  string `mapstructure:"ssl_mode" validate:"omitempty,oneof=disable allow prefer require verify-ca verify-full"`
}

// PoolConfig 连接池
type PoolConfig struct {
	MaxConns          int32         `mapstructure:"max_conns" validate:"gt=0"`
	MinConns          int32         `mapstructure:"min_conns" validate:"gte=0,ltefield=MaxConns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
}

// Config PostgreSQL 配置
type Config struct {
	Standalone *DBConfig  `mapstructure:"standalone"`
	Pool       PoolConfig `mapstructure:"pool"`

	ConnectTimeout time.Duration `mapstructure:"connect_timeout" validate:"gt=0"`
	// QueryTimeout 单次查询或整个事务的超时
	QueryTimeout time.Duration `mapstructure:"query_timeout"`

	// ApplicationName 出现在 pg_stat_activity 中
	ApplicationName string `mapstructure:"application_name"`
	// TraceLevel 非空时经 pgx tracelog 把该级别及以上的查询日志写进 logger，取值 trace/debug/info/warn/error
	TraceLevel string `mapstructure:"trace_level" validate:"omitempty,oneof=trace debug info warn error"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Standalone: &DBConfig{
			Host:    "localhost",
			Port:    5432,
			User:    "postgres",
			DBName:  "xdooria",
			SSLMode: "disable",
		},
		Pool: PoolConfig{
			MaxConns:          25,
			MinConns:          5,
			MaxConnLifetime:   time.Hour,
			MaxConnIdleTime:   30 * time.Minute,
			HealthCheckPeriod: time.Minute,
		},
		ConnectTimeout:  10 * time.Second,
		QueryTimeout:    30 * time.Second,
		ApplicationName: "dungeon",
	}
}

// Validate 验证配置，所有失败的字段一并返回
func (c *Config) Validate() error {
	if c == nil {
		return ErrNilConfig
	}
	if c.Standalone == nil {
		return fmt.Errorf("%w: standalone is required", ErrInvalidConfig)
	}
	if err := config.Validate(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

func (c *Config) traceLevel() (tracelog.LogLevel, bool) {
	if c.TraceLevel == "" {
		return tracelog.LogLevelNone, false
	}
	lvl, err := tracelog.LogLevelFromString(c.TraceLevel)
	return lvl, err == nil
}

// connURL 生成 postgres:// 连接串，用户名、密码与库名按 URL 规则转义
func (c *Config) connURL() string {
	db := c.Standalone
	q := url.Values{}
	q.Set("sslmode", db.SSLMode)
	if db.SSLMode == "" {
		q.Set("sslmode", "disable")
	}
	q.Set("connect_timeout", strconv.Itoa(max(1, int(c.ConnectTimeout.Seconds()))))
	if c.ApplicationName != "" {
		q.Set("application_name", c.ApplicationName)
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(db.User, db.Password),
		Host:     net.JoinHostPort(db.Host, strconv.Itoa(db.Port)),
		Path:     "/" + db.DBName,
		RawQuery: q.Encode(),
	}
	return u.String()
}
