package scheduler

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/lk2023060901/xdooria-dungeon/pkg/config"
	"github.com/lk2023060901/xdooria-dungeon/pkg/logger"
	"github.com/panjf2000/ants/v2"
)

// Scheduler 按键管理的定时任务调度器
//
// 同一个键同时只存在一个任务，重复调度会替换旧任务。
// 到期回调在协程池中执行，不会阻塞计时线程。
type Scheduler struct {
	cfg    *Config
	clock  clockwork.Clock
	pool   *ants.Pool
	logger logger.Logger

	mu     sync.Mutex
	tasks  map[string]*task
	closed bool
}

// task 单个定时任务
type task struct {
	key      string
	interval time.Duration // 0 表示一次性任务
	fn       func()
	timer    clockwork.Timer
}

// New 创建调度器
func New(cfg *Config, clock clockwork.Clock, l logger.Logger) (*Scheduler, error) {
	newCfg, err := config.MergeConfig(DefaultConfig(), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to merge scheduler config: %w", err)
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if l == nil {
		l = logger.NewNoop()
	}

	s := &Scheduler{
		cfg:    newCfg,
		clock:  clock,
		logger: l.Named("scheduler"),
		tasks:  make(map[string]*task),
	}

	pool, err := ants.NewPool(newCfg.PoolSize, ants.WithPanicHandler(func(p interface{}) {
		s.logger.Error("scheduled task panicked", "panic", p)
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to create task pool: %w", err)
	}
	s.pool = pool

	return s, nil
}

// Clock 返回调度器使用的时钟
func (s *Scheduler) Clock() clockwork.Clock {
	return s.clock
}

// After 在 delay 之后执行一次 fn
func (s *Scheduler) After(key string, delay time.Duration, fn func()) error {
	return s.schedule(&task{key: key, fn: fn}, delay)
}

// Every 每隔 interval 执行一次 fn，首次执行在 interval 之后
func (s *Scheduler) Every(key string, interval time.Duration, fn func()) error {
	if interval <= 0 {
		return ErrInvalidInterval
	}
	return s.schedule(&task{key: key, interval: interval, fn: fn}, interval)
}

func (s *Scheduler) schedule(t *task, delay time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSchedulerClosed
	}

	if old, ok := s.tasks[t.key]; ok {
		old.timer.Stop()
	}
	s.tasks[t.key] = t
	t.timer = s.clock.AfterFunc(delay, func() { s.fire(t) })
	return nil
}

// fire 计时器到期，任务仍有效时提交到协程池
func (s *Scheduler) fire(t *task) {
	s.mu.Lock()
	if s.closed || s.tasks[t.key] != t {
		s.mu.Unlock()
		return
	}
	if t.interval > 0 {
		t.timer = s.clock.AfterFunc(t.interval, func() { s.fire(t) })
	} else {
		delete(s.tasks, t.key)
	}
	s.mu.Unlock()

	if err := s.pool.Submit(t.fn); err != nil {
		s.logger.Error("failed to submit scheduled task", "key", t.key, "error", err)
	}
}

// Go 立即在协程池中执行 fn
func (s *Scheduler) Go(fn func()) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrSchedulerClosed
	}
	return s.pool.Submit(fn)
}

// Cancel 取消指定键的任务，返回任务是否存在
func (s *Scheduler) Cancel(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[key]
	if !ok {
		return false
	}
	t.timer.Stop()
	delete(s.tasks, key)
	return true
}

// CancelPrefix 取消所有键以 prefix 开头的任务，返回取消数量
func (s *Scheduler) CancelPrefix(prefix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for key, t := range s.tasks {
		if strings.HasPrefix(key, prefix) {
			t.timer.Stop()
			delete(s.tasks, key)
			n++
		}
	}
	return n
}

// Pending 返回尚未到期的任务数
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Running 返回协程池中存活的 worker 数，不小于正在执行的回调数
func (s *Scheduler) Running() int {
	return s.pool.Running()
}

// Close 取消所有任务并等待执行中的回调结束，实现 app.Closer
func (s *Scheduler) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	for key, t := range s.tasks {
		t.timer.Stop()
		delete(s.tasks, key)
	}
	s.mu.Unlock()

	if err := s.pool.ReleaseTimeout(s.cfg.ReleaseTimeout); err != nil {
		s.logger.Warn("scheduler pool release timed out", "error", err)
		return err
	}
	s.logger.Info("scheduler closed")
	return nil
}
