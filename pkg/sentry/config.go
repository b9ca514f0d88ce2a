package sentry

import (
	"fmt"
	"regexp"
	"time"

	"github.com/getsentry/sentry-go"
	"go.uber.org/zap/zapcore"
)

// Config Sentry 配置，DSN 为空表示不上报
type Config struct {
	DSN         string `mapstructure:"dsn"`
	Environment string `mapstructure:"environment"`
	Release     string `mapstructure:"release"`
	ServerName  string `mapstructure:"server_name"`

	// SampleRate 事件采样率 (0.0-1.0]
	SampleRate float64 `mapstructure:"sample_rate"`

	// MinLevel 日志钩子上报的最低级别，不能低于 warn
	MinLevel string `mapstructure:"min_level"`

	// IgnoreMessages 正则，匹配消息或错误信息的事件不上报
	IgnoreMessages []string `mapstructure:"ignore_messages"`

	// FlushTimeout 关闭时等待未发送事件的最长时间
	FlushTimeout time.Duration `mapstructure:"flush_timeout"`

	Debug bool              `mapstructure:"debug"`
	Tags  map[string]string `mapstructure:"tags"`
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		Environment:  "production",
		SampleRate:   1.0,
		MinLevel:     "error",
		FlushTimeout: 2 * time.Second,
	}
}

// Enabled 是否配置了 DSN
func (c *Config) Enabled() bool {
	return c != nil && c.DSN != ""
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c == nil {
		return ErrNilConfig
	}
	if c.DSN == "" {
		return ErrInvalidDSN
	}
	if c.SampleRate <= 0 || c.SampleRate > 1 {
		return fmt.Errorf("%w: sample_rate %v out of (0, 1]", ErrInvalidConfig, c.SampleRate)
	}
	if _, err := c.level(); err != nil {
		return err
	}
	for _, p := range c.IgnoreMessages {
		if _, err := regexp.Compile(p); err != nil {
			return fmt.Errorf("%w: ignore_messages %q: %v", ErrInvalidConfig, p, err)
		}
	}
	return nil
}

func (c *Config) level() (zapcore.Level, error) {
	lvl, err := zapcore.ParseLevel(c.MinLevel)
	if err != nil {
		return lvl, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if lvl < zapcore.WarnLevel {
		return lvl, fmt.Errorf("%w: min_level %s is below warn", ErrInvalidConfig, lvl)
	}
	return lvl, nil
}

func (c *Config) clientOptions() sentry.ClientOptions {
	return sentry.ClientOptions{
		Dsn:              c.DSN,
		Environment:      c.Environment,
		Release:          c.Release,
		ServerName:       c.ServerName,
		SampleRate:       c.SampleRate,
		IgnoreErrors:     c.IgnoreMessages,
		AttachStacktrace: true,
		Debug:            c.Debug,
	}
}
