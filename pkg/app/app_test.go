package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lk2023060901/xdooria-dungeon/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingServer struct {
	mu      sync.Mutex
	started bool
	stopped bool
	block   time.Duration
}

func (s *recordingServer) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = true
	return nil
}

func (s *recordingServer) Stop() error {
	time.Sleep(s.block)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	return nil
}

type orderedCloser struct {
	name  string
	order *[]string
	err   error
}

func (c orderedCloser) Close() error {
	*c.order = append(*c.order, c.name)
	return c.err
}

func TestBaseAppShutdown(t *testing.T) {
	a := NewBaseApp(WithLogger(logger.NewNoop()), WithName("test"), WithStopTimeout(time.Second))

	srv := &recordingServer{}
	var order []string
	InitApp(a, AppComponents{
		Servers: []Server{srv},
		Closers: []Closer{
			orderedCloser{name: "db", order: &order},
			orderedCloser{name: "redis", order: &order, err: errors.New("closed twice")},
		},
	})

	errCh := make(chan error, 1)
	go func() { errCh <- a.Run(context.Background()) }()

	require.Eventually(t, func() bool {
		srv.mu.Lock()
		defer srv.mu.Unlock()
		return srv.started
	}, time.Second, 10*time.Millisecond)

	assert.ErrorIs(t, a.Run(context.Background()), ErrAppAlreadyRunning)

	err := a.Shutdown()
	assert.ErrorContains(t, err, "closed twice")
	assert.Equal(t, err, <-errCh)

	assert.True(t, srv.stopped)
	assert.Equal(t, []string{"redis", "db"}, order)

	// 重复关闭不再执行收尾，返回同一个结果
	assert.Equal(t, err, a.Shutdown())
	assert.Len(t, order, 2)
}

type failingServer struct{}

func (failingServer) Start() error { return errors.New("port in use") }
func (failingServer) Stop() error  { return nil }

func TestBaseAppStartFailureRollsBack(t *testing.T) {
	a := NewBaseApp(WithLogger(logger.NewNoop()), WithStopTimeout(time.Second))

	first := &recordingServer{}
	never := &recordingServer{}
	var order []string
	InitApp(a, AppComponents{
		Servers: []Server{first, failingServer{}, never},
		Closers: []Closer{orderedCloser{name: "scheduler", order: &order}},
	})

	err := a.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "port in use")

	assert.True(t, first.stopped)
	assert.False(t, never.started)
	assert.False(t, never.stopped)
	assert.Equal(t, []string{"scheduler"}, order)

	// 回滚后 Shutdown 为空操作
	require.NoError(t, a.Shutdown())
	assert.Len(t, order, 1)
}

func TestBaseAppShutdownTimeout(t *testing.T) {
	a := NewBaseApp(WithLogger(logger.NewNoop()), WithStopTimeout(20*time.Millisecond))
	a.AppendServer(&recordingServer{block: 200 * time.Millisecond})

	start := time.Now()
	assert.ErrorIs(t, a.Shutdown(), ErrStopTimeout)
	assert.Less(t, time.Since(start), 200*time.Millisecond)
}

func TestBaseAppShutdownBeforeRun(t *testing.T) {
	a := NewBaseApp(WithLogger(logger.NewNoop()), WithStopTimeout(time.Second))
	var order []string
	a.AppendCloser(orderedCloser{name: "tracer", order: &order})

	require.NoError(t, a.Shutdown())
	assert.Equal(t, []string{"tracer"}, order)

	// 已关闭的应用 Run 立即返回
	done := make(chan error, 1)
	go func() { done <- a.Run(context.Background()) }()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("run blocked after shutdown")
	}
	assert.Len(t, order, 1)
}

func TestBaseAppRunStopsOnContextCancel(t *testing.T) {
	a := NewBaseApp(WithLogger(logger.NewNoop()), WithStopTimeout(time.Second))
	srv := &recordingServer{}
	a.AppendServer(srv)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	require.Eventually(t, func() bool {
		srv.mu.Lock()
		defer srv.mu.Unlock()
		return srv.started
	}, time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("run did not return after cancel")
	}
	assert.True(t, srv.stopped)
}

type stopErrServer struct{ recordingServer }

func (s *stopErrServer) Stop() error { return errors.New("listener already closed") }

func TestBaseAppShutdownCollectsStopErrors(t *testing.T) {
	a := NewBaseApp(WithLogger(logger.NewNoop()), WithStopTimeout(time.Second))
	a.AppendServer(&stopErrServer{}, &recordingServer{})

	err := a.Shutdown()
	assert.ErrorContains(t, err, "listener already closed")
	assert.NotErrorIs(t, err, ErrStopTimeout)
}
