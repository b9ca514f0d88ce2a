package app

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"slices"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/lk2023060901/xdooria-dungeon/pkg/logger"
)

var (
	ErrAppAlreadyRunning = errors.New("application is already running")

	// ErrStopTimeout 有 Server 未在 StopTimeout 内停止
	ErrStopTimeout = errors.New("servers did not stop in time")
)

// Application 应用生命周期
type Application interface {
	// Run 启动所有 Server，阻塞到 ctx 结束、收到 SIGINT/SIGTERM 或 Shutdown 被调用
	Run(ctx context.Context) error
	Shutdown() error
}

// Server 随应用启动、停止的组件，Start 不应阻塞
type Server interface {
	Start() error
	Stop() error
}

// Closer 在所有 Server 停止后释放的资源
type Closer interface {
	Close() error
}

// BaseApp Application 的默认实现
//
// Server 按注册顺序启动、并发停止；Closer 在 Server 停止后逆序关闭。
// 启动失败、ctx 结束与显式 Shutdown 走同一条收尾路径，只执行一次，
// 之后每次 Shutdown 都返回同一个结果。
type BaseApp struct {
	opts   Options
	logger logger.Logger

	mu      sync.Mutex
	servers []Server
	closers []Closer

	running atomic.Bool
	quit    chan struct{}

	stopOnce sync.Once
	stopErr  error
}

// NewBaseApp 创建 BaseApp
func NewBaseApp(opts ...Option) *BaseApp {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.Logger == nil {
		o.Logger = logger.Default()
	}
	return &BaseApp{
		opts:   o,
		logger: o.Logger.Named(o.Name),
		quit:   make(chan struct{}),
	}
}

// AppLogger 应用主日志
func (a *BaseApp) AppLogger() logger.Logger {
	return a.logger
}

// AppendServer 添加 Server，需在 Run 之前调用
func (a *BaseApp) AppendServer(srv ...Server) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.servers = append(a.servers, srv...)
}

// AppendCloser 添加需要释放的资源
func (a *BaseApp) AppendCloser(c ...Closer) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closers = append(a.closers, c...)
}

func (a *BaseApp) snapshot() ([]Server, []Closer) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.servers), slices.Clone(a.closers)
}

// Run 启动应用并阻塞
func (a *BaseApp) Run(ctx context.Context) error {
	if !a.running.CompareAndSwap(false, true) {
		return ErrAppAlreadyRunning
	}
	select {
	case <-a.quit:
		return a.Shutdown()
	default:
	}

	info := GetInfo()
	a.logger.Info("application starting",
		"name", a.opts.Name,
		"id", a.opts.ID,
		"version", info.Version,
		"commit", info.GitCommit,
		"dirty", info.Dirty,
	)

	servers, _ := a.snapshot()
	for i, srv := range servers {
		if err := srv.Start(); err != nil {
			a.logger.Error("failed to start server", "server", componentName(srv), "error", err)
			startErr := fmt.Errorf("start %s: %w", componentName(srv), err)
			return errors.Join(startErr, a.stop(servers[:i]))
		}
	}
	a.logger.Info("application started", "servers", len(servers))

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown requested", "cause", context.Cause(ctx))
	case <-a.quit:
	}
	return a.Shutdown()
}

// Shutdown 停止所有 Server 并释放资源，返回停止和关闭过程中的全部错误
func (a *BaseApp) Shutdown() error {
	servers, _ := a.snapshot()
	return a.stop(servers)
}

// stop 只有第一次调用执行收尾，之后的调用等待第一次完成并返回它的结果
func (a *BaseApp) stop(started []Server) error {
	a.stopOnce.Do(func() {
		close(a.quit)
		a.logger.Info("application shutting down")

		a.stopErr = errors.Join(a.stopServers(started), a.closeAll())

		a.logger.Info("application exited")
		_ = a.logger.Sync()
	})
	return a.stopErr
}

// stopServers 并发停止，超过 StopTimeout 不再等待，迟到的错误只记日志
func (a *BaseApp) stopServers(servers []Server) error {
	if len(servers) == 0 {
		return nil
	}

	errs := make(chan error, len(servers))
	var wg sync.WaitGroup
	for _, srv := range servers {
		wg.Go(func() {
			if err := srv.Stop(); err != nil {
				a.logger.Error("failed to stop server", "server", componentName(srv), "error", err)
				errs <- fmt.Errorf("stop %s: %w", componentName(srv), err)
			}
		})
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	var timeout error
	select {
	case <-done:
	case <-time.After(a.opts.StopTimeout):
		a.logger.Warn("servers did not stop in time", "timeout", a.opts.StopTimeout)
		timeout = ErrStopTimeout
	}

	collected := []error{timeout}
	for {
		select {
		case err := <-errs:
			collected = append(collected, err)
		default:
			return errors.Join(collected...)
		}
	}
}

// closeAll 逆序关闭，后注册的先关闭
func (a *BaseApp) closeAll() error {
	_, closers := a.snapshot()

	var errs []error
	for _, c := range slices.Backward(closers) {
		if err := c.Close(); err != nil {
			a.logger.Error("failed to close component", "component", componentName(c), "error", err)
			errs = append(errs, fmt.Errorf("close %s: %w", componentName(c), err))
		}
	}
	return errors.Join(errs...)
}

func componentName(v any) string {
	return fmt.Sprintf("%T", v)
}
