package sentry

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/lk2023060901/xdooria-dungeon/pkg/config"
	"go.uber.org/zap/zapcore"
)

// Client 持有独立的 Hub，不修改 sentry 的全局 Hub
type Client struct {
	hub          *sentry.Hub
	minLevel     zapcore.Level
	flushTimeout time.Duration
	closed       atomic.Bool
}

// Option 客户端选项
type Option func(*sentry.ClientOptions)

// WithBeforeSend 上报前处理事件，返回 nil 丢弃事件
func WithBeforeSend(fn func(event *sentry.Event, hint *sentry.EventHint) *sentry.Event) Option {
	return func(o *sentry.ClientOptions) {
		o.BeforeSend = fn
	}
}

// New 创建客户端
func New(cfg *Config, opts ...Option) (*Client, error) {
	merged, err := config.MergeConfig(DefaultConfig(), cfg)
	if err != nil {
		return nil, err
	}
	if err := merged.Validate(); err != nil {
		return nil, err
	}
	lvl, _ := merged.level()

	options := merged.clientOptions()
	for _, opt := range opts {
		opt(&options)
	}
	client, err := sentry.NewClient(options)
	if err != nil {
		return nil, fmt.Errorf("failed to create sentry client: %w", err)
	}

	scope := sentry.NewScope()
	for k, v := range merged.Tags {
		scope.SetTag(k, v)
	}

	return &Client{
		hub:          sentry.NewHub(client, scope),
		minLevel:     lvl,
		flushTimeout: merged.FlushTimeout,
	}, nil
}

func (c *Client) capture(event *sentry.Event) {
	if c.closed.Load() {
		return
	}
	c.hub.CaptureEvent(event)
}

// Close 等待已提交的事件发送完成，可重复调用
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	if !c.hub.Flush(c.flushTimeout) {
		return ErrFlushTimeout
	}
	return nil
}
