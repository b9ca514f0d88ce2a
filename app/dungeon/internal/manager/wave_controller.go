package manager

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/lk2023060901/xdooria-dungeon/app/dungeon/internal/dao"
	"github.com/lk2023060901/xdooria-dungeon/app/dungeon/internal/model"
	"github.com/lk2023060901/xdooria-dungeon/pkg/logger"
	"github.com/lk2023060901/xdooria-dungeon/pkg/scheduler"
)

// TeardownReason 副本结束原因
type TeardownReason string

const (
	ReasonLeave        TeardownReason = "leave"
	ReasonLogout       TeardownReason = "logout"
	ReasonFailed       TeardownReason = "failed"
	ReasonCompleted    TeardownReason = "completed"
	ReasonAborted      TeardownReason = "aborted"
	ReasonOwnerGone    TeardownReason = "owner_gone"
	ReasonWindowClosed TeardownReason = "window_closed"
	ReasonDailyReset   TeardownReason = "daily_reset"
	ReasonStale        TeardownReason = "stale"
)

// ledgerTimeout 单次账本或奖励调用的超时
const ledgerTimeout = 3 * time.Second

// WaveConfig 波次流程配置
type WaveConfig struct {
	Scaling          model.WaveScaling `mapstructure:"wave"`
	CountdownTicks   int               `mapstructure:"countdown_ticks" validate:"gte=0"`
	CountdownStep    time.Duration     `mapstructure:"countdown_step" validate:"gte=0"`
	InterWaveDelay   time.Duration     `mapstructure:"inter_wave_delay" validate:"gte=0"`
	FailureGrace     time.Duration     `mapstructure:"failure_grace" validate:"gte=0"`
	ReminderInterval time.Duration     `mapstructure:"reminder_interval" validate:"gte=0"`
	FailurePenalty   int               `mapstructure:"failure_penalty" validate:"gte=0"`
	MaxWaves         int               `mapstructure:"max_waves" validate:"gte=0"`
}

// DefaultWaveConfig 默认配置
func DefaultWaveConfig() WaveConfig {
	return WaveConfig{
		Scaling: model.WaveScaling{
			HostileTemplate: 7001,
			HostileCount:    5,
			LevelBase:       30,
			LevelStep:       2,
			HPBase:          10000,
			DamageBase:      500,
			Multiplier:      1.5,
			KillsBase:       10,
			KillsStep:       5,
			TimeLimit:       300 * time.Second,
			TimeLimitStep:   30 * time.Second,
		},
		CountdownTicks:   5,
		CountdownStep:    time.Second,
		InterWaveDelay:   3 * time.Second,
		FailureGrace:     3 * time.Second,
		ReminderInterval: 60 * time.Second,
		FailurePenalty:   1,
	}
}

// WaveDeps 波次控制器依赖
type WaveDeps struct {
	Scheduler *scheduler.Scheduler
	Messenger Messenger
	Hostiles  HostileFactory
	Rewards   RewardIssuer
	Ledger    dao.QuotaLedger
	Maps      MapRegistry
	Logger    logger.Logger

	// OnFinish 控制器请求结束副本，在控制器锁外调用且每个副本最多一次
	OnFinish func(instanceID int64, reason TeardownReason)
	// OnWaveCleared 某一波完成，持有控制器锁时调用
	OnWaveCleared func(instanceID int64, wave int)
}

// WaveController 单个副本的波次状态机
//
//	Preparing -> Active -> WaveComplete -> Preparing(w+1)
//	Active -> Failed
//	任意状态 -> Terminated
//
// 定时回调带着创建时的代数，代数变化后回调直接丢弃。
type WaveController struct {
	id        int64
	owner     model.Player
	partition *Partition
	spawn     model.Position
	cfg       WaveConfig
	deps      WaveDeps
	logger    logger.Logger

	mu           sync.Mutex
	gen          uint64
	state        model.WaveState
	wave         int
	active       bool
	started      bool
	waveStart    time.Time
	timeLimit    time.Duration
	required     int
	kills        int
	alive        int
	spawned      int
	lastReminder time.Time
	createdAt    time.Time
	terminalAt   time.Time
	stopped      bool

	finishRequested bool
	pendingFinish   TeardownReason
	finishReason    TeardownReason
}

// NewWaveController 创建控制器，此时处于第 1 波准备阶段，调用 StartWave 开始倒计时
func NewWaveController(instanceID int64, owner model.Player, partition *Partition, spawn model.Position, cfg WaveConfig, deps WaveDeps) *WaveController {
	if deps.Logger == nil {
		deps.Logger = logger.NewNoop()
	}
	return &WaveController{
		id:        instanceID,
		owner:     owner,
		partition: partition,
		spawn:     spawn,
		cfg:       cfg,
		deps:      deps,
		logger: deps.Logger.Named("manager.wave").WithFields(
			"instance_id", instanceID,
			"player_id", owner.ID,
		),
		state:     model.WavePreparing,
		wave:      1,
		active:    true,
		createdAt: deps.Scheduler.Clock().Now(),
	}
}

// ID 副本 ID
func (c *WaveController) ID() int64 { return c.id }

// Owner 副本所有者
func (c *WaveController) Owner() model.Player { return c.owner }

// StartWave 开始当前波次的倒计时
func (c *WaveController) StartWave() {
	c.run("start_wave", nil, c.startWaveLocked)
}

// OnHostileKilled 怪物被击杀，只统计本副本当前波次的怪物，返回是否计入
func (c *WaveController) OnHostileKilled(tag model.HostileTag) bool {
	if tag.InstanceID != c.id {
		return false
	}

	counted := false
	c.run("hostile_killed", nil, func() error {
		if c.state != model.WaveActive || tag.Wave != c.wave || c.kills >= c.required {
			return nil
		}
		counted = true
		c.kills++
		if c.alive > 0 {
			c.alive--
		}

		if c.kills >= c.required {
			return c.completeLocked()
		}

		c.deps.Messenger.BroadcastZone(c.partition.ZoneID(),
			fmt.Sprintf("wave %d: %d/%d defeated", c.wave, c.kills, c.required))

		// 场上怪物不足以完成目标时补刷
		for c.kills+c.alive < c.required {
			if err := c.spawnLocked(); err != nil {
				return err
			}
		}
		return nil
	})
	return counted
}

// Update 由主循环调用，处理超时和剩余时间提醒
func (c *WaveController) Update(now time.Time) {
	c.run("update", nil, func() error {
		if c.state != model.WaveActive {
			return nil
		}

		elapsed := now.Sub(c.waveStart)
		if elapsed > c.timeLimit {
			return c.failLocked(now)
		}

		if c.cfg.ReminderInterval > 0 && now.Sub(c.lastReminder) >= c.cfg.ReminderInterval {
			c.lastReminder = now
			remaining := (c.timeLimit - elapsed).Truncate(time.Second)
			c.deps.Messenger.Notify(c.owner.ID,
				fmt.Sprintf("%s remaining, %d/%d defeated", remaining, c.kills, c.required))
		}
		return nil
	})
}

// Terminate 外部终止副本，只有第一次调用返回 true
//
// penalize 为 true 且本波正在战斗中时扣除惩罚次数。
func (c *WaveController) Terminate(penalize bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		return false
	}
	c.stopped = true
	c.finishRequested = true

	if penalize && c.state == model.WaveActive {
		c.penalizeLocked()
	}
	if c.state != model.WaveFailed {
		c.state = model.WaveTerminated
	}
	c.haltLocked()
	return true
}

// Snapshot 副本状态快照
func (c *WaveController) Snapshot() model.Instance {
	c.mu.Lock()
	defer c.mu.Unlock()

	return model.Instance{
		ID:            c.id,
		OwnerID:       c.owner.ID,
		ZoneID:        c.partition.ZoneID(),
		Wave:          c.wave,
		State:         c.state,
		Active:        c.active,
		Started:       c.started,
		WaveStart:     c.waveStart,
		TimeLimit:     c.timeLimit,
		RequiredKills: c.required,
		Kills:         c.kills,
		CreatedAt:     c.createdAt,
	}
}

// Terminal 是否已进入终态或已请求结束
func (c *WaveController) Terminal() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Terminal() || c.finishRequested
}

// Reapable 终态已超过宽限时间，主循环据此兜底清理
func (c *WaveController) Reapable(now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.terminalAt.IsZero() && now.Sub(c.terminalAt) >= c.cfg.FailureGrace
}

// FinishReason 结束原因，未结束时为空
func (c *WaveController) FinishReason() TeardownReason {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.finishReason != "" {
		return c.finishReason
	}
	if c.state == model.WaveFailed {
		return ReasonFailed
	}
	if c.state == model.WaveTerminated {
		return ReasonAborted
	}
	return ""
}

// run 在控制器锁内执行 fn
//
// valid 返回 false 时跳过。fn 的错误或 panic 都会中止副本且不扣次数，
// 结束请求在释放锁之后发出。
func (c *WaveController) run(op string, valid func() bool, fn func() error) {
	c.mu.Lock()
	if c.stopped || (valid != nil && !valid()) {
		c.mu.Unlock()
		return
	}

	func() {
		defer func() {
			if r := recover(); r != nil {
				c.logger.Error("wave controller panicked", "op", op, "wave", c.wave, "panic", r)
				c.abortLocked()
			}
		}()
		if err := fn(); err != nil {
			c.logger.Error("wave controller failed", "op", op, "wave", c.wave, "error", err)
			c.abortLocked()
		}
	}()

	reason := c.pendingFinish
	c.pendingFinish = ""
	c.mu.Unlock()

	if reason != "" && c.deps.OnFinish != nil {
		c.deps.OnFinish(c.id, reason)
	}
}

// at 生成只在当前代数有效的定时回调
func (c *WaveController) at(op string, fn func() error) func() {
	gen := c.gen
	return func() {
		c.run(op, func() bool { return c.gen == gen }, fn)
	}
}

func (c *WaveController) taskKey(name string) string {
	return fmt.Sprintf("%s%s", c.taskPrefix(), name)
}

func (c *WaveController) taskPrefix() string {
	return fmt.Sprintf("instance:%d:", c.id)
}

func (c *WaveController) schedule(name string, delay time.Duration, fn func()) error {
	if err := c.deps.Scheduler.After(c.taskKey(name), delay, fn); err != nil {
		return errors.Wrapf(err, "schedule %s", name)
	}
	return nil
}

func (c *WaveController) startWaveLocked() error {
	if !c.active || c.state.Terminal() {
		return nil
	}

	c.gen++
	c.state = model.WavePreparing
	c.started = false
	c.kills = 0
	c.alive = 0
	c.spawned = 0

	wave := c.wave
	removed := c.deps.Hostiles.Despawn(c.partition.ZoneID(), func(h *model.Hostile) bool {
		return h.Tag.InstanceID == c.id && h.Tag.Wave < wave
	})
	c.logger.Info("wave preparing", "wave", wave, "stale_hostiles", removed)

	return c.countdownLocked(c.cfg.CountdownTicks)
}

func (c *WaveController) countdownLocked(remaining int) error {
	if remaining <= 0 {
		return c.engageLocked()
	}
	c.deps.Messenger.Notify(c.owner.ID, fmt.Sprintf("wave %d begins in %d", c.wave, remaining))
	return c.schedule("countdown", c.cfg.CountdownStep, c.at("countdown", func() error {
		return c.countdownLocked(remaining - 1)
	}))
}

func (c *WaveController) engageLocked() error {
	spec := c.cfg.Scaling.Spec(c.wave)
	now := c.deps.Scheduler.Clock().Now()

	c.state = model.WaveActive
	c.started = true
	c.required = spec.RequiredKills
	c.timeLimit = spec.TimeLimit
	c.waveStart = now
	c.lastReminder = now

	for i := 0; i < spec.HostileCount; i++ {
		if err := c.spawnLocked(); err != nil {
			return err
		}
	}

	c.deps.Messenger.BroadcastZone(c.partition.ZoneID(),
		fmt.Sprintf("wave %d started: defeat %d within %s", c.wave, c.required, c.timeLimit))
	c.logger.Info("wave started",
		"wave", c.wave,
		"required_kills", c.required,
		"time_limit", c.timeLimit,
		"hostiles", spec.HostileCount,
	)
	return nil
}

func (c *WaveController) spawnLocked() error {
	spec := c.cfg.Scaling.Spec(c.wave)
	_, err := c.deps.Hostiles.Spawn(c.partition.ZoneID(), SpawnRequest{
		TemplateID: spec.HostileTemplate,
		Level:      spec.Level,
		HP:         spec.HP,
		Damage:     spec.Damage,
		Pos:        model.SpawnPosition(c.spawn, c.spawned),
		Tag:        model.HostileTag{InstanceID: c.id, Wave: c.wave},
	})
	if err != nil {
		return errors.Wrapf(err, "spawn hostile for wave %d", c.wave)
	}
	c.spawned++
	c.alive++
	return nil
}

func (c *WaveController) completeLocked() error {
	wave := c.wave
	c.state = model.WaveComplete
	c.started = false

	ctx, cancel := context.WithTimeout(context.Background(), ledgerTimeout)
	defer cancel()
	grants, err := c.deps.Rewards.IssueWaveReward(ctx, c.owner, wave)
	if err != nil {
		return errors.Wrapf(err, "issue reward for wave %d", wave)
	}
	c.deps.Messenger.Notify(c.owner.ID, fmt.Sprintf("wave %d cleared, reward: %s", wave, describeGrants(grants)))

	ownerID := c.owner.ID
	c.goLedger("record_highest_wave", func(ctx context.Context) error {
		return c.deps.Ledger.RecordHighestWave(ctx, ownerID, wave)
	})
	if c.deps.OnWaveCleared != nil {
		c.deps.OnWaveCleared(c.id, wave)
	}
	c.kills = 0
	c.logger.Info("wave cleared", "wave", wave)

	if c.cfg.MaxWaves > 0 && wave >= c.cfg.MaxWaves {
		c.deps.Messenger.Notify(c.owner.ID, fmt.Sprintf("all %d waves cleared, well done", wave))
		c.active = false
		c.requestFinishLocked(ReasonCompleted)
		return nil
	}

	return c.schedule("next_wave", c.cfg.InterWaveDelay, c.at("next_wave", c.nextWaveLocked))
}

func (c *WaveController) nextWaveLocked() error {
	if !c.active || c.state != model.WaveComplete {
		return nil
	}

	if loc, ok := c.deps.Maps.LocationOf(c.owner.ID); !ok || loc.ZoneID != c.partition.ZoneID() {
		c.logger.Info("owner left partition, ending instance")
		c.active = false
		c.state = model.WaveTerminated
		c.requestFinishLocked(ReasonOwnerGone)
		return nil
	}

	c.wave++
	return c.startWaveLocked()
}

func (c *WaveController) failLocked(now time.Time) error {
	c.state = model.WaveFailed
	c.active = false
	c.started = false
	c.haltLocked()

	c.deps.Messenger.Notify(c.owner.ID,
		fmt.Sprintf("time's up, only %d/%d defeated", c.kills, c.required))
	c.penalizeLocked()
	c.logger.Info("wave failed", "wave", c.wave, "kills", c.kills, "required_kills", c.required)

	return c.schedule("evict", c.cfg.FailureGrace, c.at("evict", func() error {
		c.requestFinishLocked(ReasonFailed)
		return nil
	}))
}

// abortLocked 出错中止，不扣次数
func (c *WaveController) abortLocked() {
	c.active = false
	c.started = false
	c.state = model.WaveTerminated
	c.haltLocked()
	c.requestFinishLocked(ReasonAborted)
}

// haltLocked 使所有未到期的回调失效
func (c *WaveController) haltLocked() {
	c.gen++
	c.deps.Scheduler.CancelPrefix(c.taskPrefix())
	if c.terminalAt.IsZero() {
		c.terminalAt = c.deps.Scheduler.Clock().Now()
	}
}

func (c *WaveController) requestFinishLocked(reason TeardownReason) {
	if c.finishRequested {
		return
	}
	c.finishRequested = true
	c.finishReason = reason
	c.pendingFinish = reason
	if c.terminalAt.IsZero() {
		c.terminalAt = c.deps.Scheduler.Clock().Now()
	}
}

func (c *WaveController) penalizeLocked() {
	n := c.cfg.FailurePenalty
	if n <= 0 {
		return
	}
	ownerID := c.owner.ID
	c.goLedger("penalize", func(ctx context.Context) error {
		return c.deps.Ledger.Penalize(ctx, ownerID, n)
	})
}

// goLedger 在协程池中执行账本写入
func (c *WaveController) goLedger(op string, fn func(ctx context.Context) error) {
	err := c.deps.Scheduler.Go(func() {
		ctx, cancel := context.WithTimeout(context.Background(), ledgerTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			c.logger.Error("ledger write failed", "op", op, "error", err)
		}
	})
	if err != nil {
		c.logger.Warn("ledger write dropped", "op", op, "error", err)
	}
}

func describeGrants(grants []model.RewardGrant) string {
	if len(grants) == 0 {
		return "none"
	}
	parts := make([]string, len(grants))
	for i, g := range grants {
		s := fmt.Sprintf("item %d x%d", g.ItemID, g.Count)
		if g.Bonus {
			s += " (bonus)"
		}
		parts[i] = s
	}
	return strings.Join(parts, ", ")
}
