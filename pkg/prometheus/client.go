package prometheus

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/lk2023060901/xdooria-dungeon/pkg/config"
	"github.com/lk2023060901/xdooria-dungeon/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Client 持有进程内唯一的指标 Registry
//
// 配置了 Addr 时 Client 同时是一个 app.Server，在独立端口暴露指标。
type Client struct {
	cfg      *Config
	registry *prometheus.Registry
	handler  http.Handler
	logger   logger.Logger

	server *http.Server
	ln     net.Listener
}

// New 创建客户端
func New(cfg *Config, l logger.Logger) (*Client, error) {
	merged, err := config.MergeConfig(DefaultConfig(), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to merge prometheus config: %w", err)
	}
	if err := merged.Validate(); err != nil {
		return nil, err
	}
	if l == nil {
		l = logger.NewNoop()
	}

	reg := prometheus.NewRegistry()
	if !merged.SkipRuntimeCollectors {
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	c := &Client{
		cfg:      merged,
		registry: reg,
		logger:   l.Named("prometheus"),
	}
	c.handler = promhttp.InstrumentMetricHandler(reg, promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		ErrorLog:          errorLog{c.logger},
		ErrorHandling:     promhttp.ContinueOnError,
		Timeout:           merged.Timeout,
		EnableOpenMetrics: true,
	}))

	if merged.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle(merged.Path, c.handler)
		c.server = &http.Server{
			Addr:         merged.Addr,
			Handler:      mux,
			ReadTimeout:  merged.Timeout,
			WriteTimeout: merged.Timeout,
		}
	}
	return c, nil
}

// Registerer 业务指标的注册入口，带上 ConstLabels
func (c *Client) Registerer() prometheus.Registerer {
	if len(c.cfg.ConstLabels) == 0 {
		return c.registry
	}
	return prometheus.WrapRegistererWith(c.cfg.ConstLabels, c.registry)
}

// Handler 指标的 HTTP 暴露端点
func (c *Client) Handler() http.Handler {
	return c.handler
}

// Path 暴露路径
func (c *Client) Path() string {
	return c.cfg.Path
}

// Standalone 是否在独立端口暴露
func (c *Client) Standalone() bool {
	return c.server != nil
}

// Start 监听失败时同步返回错误，之后在后台服务
func (c *Client) Start() error {
	if c.server == nil {
		return nil
	}
	ln, err := net.Listen("tcp", c.server.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", c.server.Addr, err)
	}
	c.ln = ln
	c.logger.Info("metrics server listening", "addr", ln.Addr().String(), "path", c.cfg.Path)

	go func() {
		if err := c.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			c.logger.Error("metrics server stopped", "error", err)
		}
	}()
	return nil
}

// Stop 等待进行中的抓取结束，最多等待 Timeout
func (c *Client) Stop() error {
	if c.server == nil || c.ln == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.Timeout)
	defer cancel()
	return c.server.Shutdown(ctx)
}

// errorLog 把 promhttp 的错误输出接到结构化日志
type errorLog struct {
	l logger.Logger
}

func (e errorLog) Println(v ...any) {
	e.l.Error("metrics exposition failed", "error", fmt.Sprint(v...))
}
