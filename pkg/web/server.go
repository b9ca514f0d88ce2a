package web

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/lk2023060901/xdooria-dungeon/pkg/config"
	"github.com/lk2023060901/xdooria-dungeon/pkg/logger"
	"github.com/lk2023060901/xdooria-dungeon/pkg/web/middleware"
	"github.com/lk2023060901/xdooria-dungeon/pkg/web/validator"
)

// Server gin 引擎加 http.Server，实现 app.Server
//
// Start 同步完成监听（包括加载证书），端口占用或证书错误直接返回给调用方。
type Server struct {
	cfg    *Config
	engine *gin.Engine
	logger logger.Logger

	mu  sync.Mutex
	srv *http.Server
	ln  net.Listener
}

// NewServer 创建服务，cfg 中未设置的项取 DefaultConfig
func NewServer(cfg *Config, l logger.Logger) (*Server, error) {
	merged, err := config.MergeConfig(DefaultConfig(), cfg)
	if err != nil {
		return nil, err
	}
	if err := merged.Validate(); err != nil {
		return nil, err
	}
	if l == nil {
		l = logger.NewNoop()
	}

	gin.SetMode(merged.Mode)
	validator.Init()

	engine := gin.New()
	engine.Use(middleware.Logger(l), middleware.Recovery(l))

	return &Server{
		cfg:    merged,
		engine: engine,
		logger: l.Named("web.server"),
	}, nil
}

// Router 用于注册路由和中间件
func (s *Server) Router() *gin.Engine {
	return s.engine
}

// Handler 测试中可直接交给 httptest
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Addr 实际监听地址，未启动时为 nil
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

func (s *Server) listen() (net.Listener, error) {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	if !s.cfg.TLS() {
		return ln, nil
	}
	cert, err := tls.LoadX509KeyPair(s.cfg.CertFile, s.cfg.KeyFile)
	if err != nil {
		_ = ln.Close()
		return nil, fmt.Errorf("load tls key pair: %w", err)
	}
	return tls.NewListener(ln, &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
		NextProtos:   []string{"h2", "http/1.1"},
	}), nil
}

// Start 监听后在后台处理请求
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv != nil {
		return ErrServerAlreadyStarted
	}

	ln, err := s.listen()
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
		ReadTimeout:       s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
		IdleTimeout:       s.cfg.IdleTimeout,
		MaxHeaderBytes:    s.cfg.MaxHeaderBytes,
	}
	s.srv, s.ln = srv, ln

	s.logger.Info("http server listening", "addr", ln.Addr().String(), "tls", s.cfg.TLS())
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server stopped unexpectedly", "error", err)
		}
	}()
	return nil
}

// Stop 停止接受新连接，在 shutdown_timeout 内等待在途请求
func (s *Server) Stop() error {
	s.mu.Lock()
	srv := s.srv
	s.mu.Unlock()
	if srv == nil {
		return ErrServerNotStarted
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	s.logger.Info("http server stopped")
	return nil
}
