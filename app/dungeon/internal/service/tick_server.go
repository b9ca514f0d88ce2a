package service

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/lk2023060901/xdooria-dungeon/pkg/logger"
	"github.com/lk2023060901/xdooria-dungeon/pkg/scheduler"
	"github.com/robfig/cron/v3"
)

const sweepTaskKey = "dungeon:sweep"

// TickServer 驱动副本主循环，实现 app.Server
//
// 按 tick_interval 调用 Sweep；配置了 daily_reset_cron 时额外按 cron 表达式执行每日重置。
type TickServer struct {
	svc    *DungeonService
	sched  *scheduler.Scheduler
	logger logger.Logger

	sweeping atomic.Bool

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

// NewTickServer 创建主循环
func NewTickServer(svc *DungeonService, sched *scheduler.Scheduler, l logger.Logger) *TickServer {
	return &TickServer{
		svc:    svc,
		sched:  sched,
		logger: l.Named("service.tick"),
	}
}

// Start 开始巡检
func (t *TickServer) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running {
		return nil
	}

	cfg := t.svc.Config()
	if cfg.DailyResetCron != "" {
		c := cron.New(cron.WithLocation(t.svc.loc))
		if _, err := c.AddFunc(cfg.DailyResetCron, func() {
			t.svc.DailyReset(context.Background())
		}); err != nil {
			return errors.Wrapf(err, "invalid daily_reset_cron %q", cfg.DailyResetCron)
		}
		c.Start()
		t.cron = c
	}

	if err := t.sched.Every(sweepTaskKey, cfg.TickInterval, t.tick); err != nil {
		if t.cron != nil {
			t.cron.Stop()
			t.cron = nil
		}
		return err
	}

	t.running = true
	t.logger.Info("tick server started",
		"tick_interval", cfg.TickInterval,
		"daily_reset_cron", cfg.DailyResetCron,
	)
	return nil
}

// tick 单次巡检，上一次还没结束时跳过
func (t *TickServer) tick() {
	if !t.sweeping.CompareAndSwap(false, true) {
		t.logger.Warn("previous sweep still running, skipping tick")
		return
	}
	defer t.sweeping.Store(false)
	t.svc.Sweep(t.sched.Clock().Now())
}

// Stop 停止巡检
func (t *TickServer) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.running {
		return nil
	}
	t.running = false
	t.sched.Cancel(sweepTaskKey)
	if t.cron != nil {
		<-t.cron.Stop().Done()
		t.cron = nil
	}
	t.logger.Info("tick server stopped")
	return nil
}
