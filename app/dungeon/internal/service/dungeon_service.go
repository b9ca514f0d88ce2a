package service

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"
	"github.com/jonboulle/clockwork"
	"github.com/lk2023060901/xdooria-dungeon/app/dungeon/internal/dao"
	"github.com/lk2023060901/xdooria-dungeon/app/dungeon/internal/event"
	"github.com/lk2023060901/xdooria-dungeon/app/dungeon/internal/manager"
	"github.com/lk2023060901/xdooria-dungeon/app/dungeon/internal/metrics"
	"github.com/lk2023060901/xdooria-dungeon/app/dungeon/internal/model"
	"github.com/lk2023060901/xdooria-dungeon/pkg/idgen"
	"github.com/lk2023060901/xdooria-dungeon/pkg/logger"
	"github.com/lk2023060901/xdooria-dungeon/pkg/scheduler"
)

// 进入请求结果，用于指标
const (
	joinCreated     = "created"
	joinExisting    = "existing"
	joinNotInMap    = "not_in_map"
	joinClosed      = "closed"
	joinNoAttempts  = "no_attempts"
	joinAllocFailed = "alloc_failed"
	joinError       = "error"
)

// JoinResult 进入副本结果
type JoinResult struct {
	Instance model.Instance `json:"instance"`
	// Existing 玩家已有进行中的副本，返回的是原副本
	Existing bool `json:"existing"`
}

// PlayerStatus 玩家副本状态
type PlayerStatus struct {
	PlayerID   int64           `json:"player_id"`
	InInstance bool            `json:"in_instance"`
	Remaining  int             `json:"remaining"`
	Instance   *model.Instance `json:"instance,omitempty"`
}

// World 进程内的世界组件
type World struct {
	Sessions  *manager.SessionManager
	Scenes    *manager.SceneManager
	Messenger manager.Messenger
	Npcs      *manager.NpcManager
	// Events 生命周期事件，为 nil 时不发布
	Events event.Publisher
}

// DungeonService 副本编排服务
//
// 同一玩家的进入、离开、登录登出串行执行；副本销毁只由第一个
// 从登记表中移除它的调用方完成。
type DungeonService struct {
	cfg       *Config
	clock     clockwork.Clock
	loc       *time.Location
	logger    logger.Logger
	sched     *scheduler.Scheduler
	ledger    dao.QuotaLedger
	rewards   manager.RewardIssuer
	ids       idgen.Generator
	metrics   *metrics.DungeonMetrics
	sessions  *manager.SessionManager
	scenes    *manager.SceneManager
	messenger manager.Messenger
	npcs      *manager.NpcManager
	events    event.Publisher
	gate      *manager.TimeGate
	zones     *manager.ZoneManager
	registry  *manager.InstanceRegistry

	locks []sync.Mutex

	dayMu sync.Mutex
	day   string
}

// NewDungeonService 创建副本编排服务，m 可以为 nil
func NewDungeonService(
	cfg *Config,
	quotaCfg *dao.QuotaConfig,
	sched *scheduler.Scheduler,
	ledger dao.QuotaLedger,
	rewards manager.RewardIssuer,
	world *World,
	ids idgen.Generator,
	m *metrics.DungeonMetrics,
	l logger.Logger,
) (*DungeonService, error) {
	newCfg, err := MergeConfig(cfg)
	if err != nil {
		return nil, err
	}
	if quotaCfg == nil {
		quotaCfg = dao.DefaultQuotaConfig()
	}
	loc, err := quotaCfg.Location()
	if err != nil {
		return nil, err
	}

	windows := newCfg.TimeWindows
	if newCfg.AlwaysOpen {
		windows = nil
	}
	gate, err := manager.NewTimeGate(windows, loc, sched.Clock(), l)
	if err != nil {
		return nil, err
	}

	for _, def := range newCfg.Maps {
		world.Scenes.RegisterMap(def)
	}

	events := world.Events
	if events == nil {
		events = event.Noop{}
	}

	stripes := newCfg.LockStripes
	if stripes <= 0 {
		stripes = 1
	}

	s := &DungeonService{
		cfg:       newCfg,
		clock:     sched.Clock(),
		loc:       loc,
		logger:    l.Named("service.dungeon"),
		sched:     sched,
		ledger:    ledger,
		rewards:   rewards,
		ids:       ids,
		metrics:   m,
		sessions:  world.Sessions,
		scenes:    world.Scenes,
		messenger: world.Messenger,
		npcs:      world.Npcs,
		events:    events,
		gate:      gate,
		zones:     manager.NewZoneManager(l, newCfg.ZoneIDBase, world.Scenes, world.Npcs, world.Messenger),
		registry:  manager.NewInstanceRegistry(newCfg.MaxInstances),
		locks:     make([]sync.Mutex, stripes),
		day:       model.DateOf(sched.Clock().Now(), loc),
	}

	world.Npcs.OnDeath(func(h model.Hostile) {
		if !h.Tag.IsZero() {
			s.OnHostileKilled(h.Tag.InstanceID, h.Tag)
		}
	})

	return s, nil
}

// Config 返回生效的配置
func (s *DungeonService) Config() *Config {
	return s.cfg
}

// lockPlayer 锁住玩家所在的分段
func (s *DungeonService) lockPlayer(playerID int64) func() {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(playerID))
	mu := &s.locks[xxhash.Sum64(buf[:])%uint64(len(s.locks))]
	mu.Lock()
	return mu.Unlock
}

// Join 进入副本，bypassQuota 为 true 时不检查也不扣除次数
func (s *DungeonService) Join(ctx context.Context, playerID int64, bypassQuota bool) (*JoinResult, error) {
	return s.join(ctx, playerID, bypassQuota, false)
}

// AdminJoin 管理员进入副本，不检查地图和开放时间，不涉及次数
func (s *DungeonService) AdminJoin(ctx context.Context, playerID int64) (*JoinResult, error) {
	return s.join(ctx, playerID, true, true)
}

func (s *DungeonService) join(ctx context.Context, playerID int64, bypassQuota, adminPath bool) (res *JoinResult, err error) {
	defer func() {
		s.recordJoin(res, err)
		if err != nil {
			s.logger.InfoContext(ctx, "join rejected",
				"player_id", playerID,
				"admin_path", adminPath,
				"error", err,
			)
		}
	}()

	player, ok := s.sessions.Get(playerID)
	if !ok {
		return nil, errors.Wrapf(ErrPlayerOffline, "player %d", playerID)
	}

	unlock := s.lockPlayer(playerID)
	defer unlock()

	if !adminPath {
		if loc, ok := s.scenes.LocationOf(playerID); !ok || loc.MapID != s.cfg.MapID {
			return nil, ErrNotInDungeonMap
		}
		if !player.Admin && !s.gate.IsOpenNow() {
			return nil, ErrDungeonClosed
		}
	}

	if e, ok := s.registry.ByPlayer(playerID); ok {
		if !e.Controller.Terminal() {
			return &JoinResult{Instance: e.Controller.Snapshot(), Existing: true}, nil
		}
		s.logger.DebugContext(ctx, "stale registry entry repaired", "player_id", playerID, "instance_id", e.InstanceID)
		s.cleanupInstance(ctx, e.InstanceID, manager.ReasonStale, false)
	}

	if !bypassQuota {
		remaining, err := s.ledger.RemainingAttempts(ctx, playerID)
		if err != nil {
			return nil, errors.Wrap(err, "read remaining attempts")
		}
		if remaining <= 0 {
			return nil, ErrOutOfAttempts
		}
	}

	entry, err := s.allocate(player)
	if err != nil {
		return nil, err
	}
	s.metricsInstanceCreated()

	// 进入分区成功后才扣次数，分配失败不影响次数
	if err := s.enter(player, entry); err != nil {
		s.cleanupInstance(ctx, entry.InstanceID, manager.ReasonAborted, true)
		return nil, errors.Mark(err, ErrZoneAllocationFailed)
	}

	if !bypassQuota {
		if err := s.ledger.ConsumeAttempt(ctx, playerID); err != nil {
			s.cleanupInstance(ctx, entry.InstanceID, manager.ReasonAborted, true)
			if errors.Is(err, dao.ErrNoAttempts) {
				return nil, ErrOutOfAttempts
			}
			return nil, errors.Wrap(err, "consume attempt")
		}
	}
	entry.Controller.StartWave()
	s.events.Publish(event.Event{
		Kind:       event.KindInstanceCreated,
		InstanceID: entry.InstanceID,
		PlayerID:   playerID,
		ZoneID:     entry.Partition.ZoneID(),
		Wave:       1,
	})

	s.logger.InfoContext(ctx, "instance created",
		"player_id", playerID,
		"instance_id", entry.InstanceID,
		"zone_id", entry.Partition.ZoneID(),
		"bypass_quota", bypassQuota,
	)
	return &JoinResult{Instance: entry.Controller.Snapshot()}, nil
}

// allocate 分配分区、创建控制器并登记
func (s *DungeonService) allocate(player model.Player) (*manager.Entry, error) {
	if !s.registry.HasCapacity() {
		return nil, errors.Mark(errors.Wrap(manager.ErrRegistryFull, "allocate instance"), ErrZoneAllocationFailed)
	}

	def, ok := s.scenes.MapDefinition(s.cfg.MapID)
	if !ok {
		return nil, errors.Mark(errors.Wrapf(manager.ErrMapUnavailable, "map %d", s.cfg.MapID), ErrZoneAllocationFailed)
	}

	partition, err := s.zones.Create(s.cfg.MapID, player)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "create partition"), ErrZoneAllocationFailed)
	}

	id, err := s.ids.NextID()
	if err != nil {
		partition.Close()
		return nil, errors.Mark(errors.Wrap(err, "allocate instance id"), ErrZoneAllocationFailed)
	}

	ctrl := manager.NewWaveController(id, player, partition, def.Spawn, s.cfg.WaveConfig, manager.WaveDeps{
		Scheduler:     s.sched,
		Messenger:     s.messenger,
		Hostiles:      s.npcs,
		Rewards:       s.rewards,
		Ledger:        s.ledger,
		Maps:          s.scenes,
		Logger:        s.logger,
		OnFinish:      s.onControllerFinish,
		OnWaveCleared: s.onWaveCleared,
	})

	entry := &manager.Entry{
		InstanceID: id,
		Owner:      player,
		Controller: ctrl,
		Partition:  partition,
	}
	if err := s.registry.Register(entry); err != nil {
		partition.Close()
		return nil, errors.Mark(errors.Wrap(err, "register instance"), ErrZoneAllocationFailed)
	}
	return entry, nil
}

// enter 玩家和宠物进入分区
func (s *DungeonService) enter(player model.Player, entry *manager.Entry) error {
	if err := entry.Partition.Admit(player.PlayerEntity()); err != nil {
		return err
	}
	if companion, ok := player.CompanionEntity(); ok {
		if err := entry.Partition.Admit(companion); err != nil {
			return err
		}
	}

	def, _ := s.scenes.MapDefinition(s.cfg.MapID)
	loc := model.Location{MapID: s.cfg.MapID, ZoneID: entry.Partition.ZoneID()}
	if def != nil {
		loc.Pos = def.Entry
	}
	if err := s.scenes.Relocate(player.ID, loc); err != nil {
		return errors.Wrap(err, "move player into partition")
	}
	return nil
}

// EnterDungeonMap 传送到副本地图入口
func (s *DungeonService) EnterDungeonMap(ctx context.Context, playerID int64) error {
	player, ok := s.sessions.Get(playerID)
	if !ok {
		return errors.Wrapf(ErrPlayerOffline, "player %d", playerID)
	}
	if !player.Admin && !s.gate.IsOpenNow() {
		return ErrDungeonClosed
	}

	unlock := s.lockPlayer(playerID)
	defer unlock()

	if loc, ok := s.scenes.LocationOf(playerID); ok && loc.MapID == s.cfg.MapID {
		return nil
	}
	if err := s.relocateToMap(playerID, s.cfg.MapID); err != nil {
		return errors.Mark(err, manager.ErrMapUnavailable)
	}
	s.logger.InfoContext(ctx, "player entered dungeon map", "player_id", playerID)
	return nil
}

// Leave 主动离开副本，战斗中离开按超时失败扣次数
func (s *DungeonService) Leave(ctx context.Context, playerID int64) error {
	unlock := s.lockPlayer(playerID)
	defer unlock()

	e, ok := s.registry.ByPlayer(playerID)
	if !ok {
		return ErrNotInInstance
	}
	e.Controller.Terminate(true)
	s.cleanupInstance(ctx, e.InstanceID, manager.ReasonLeave, true)
	return nil
}

// OnHostileKilled 战斗系统回调，返回击杀是否计入
func (s *DungeonService) OnHostileKilled(instanceID int64, tag model.HostileTag) bool {
	e, ok := s.registry.ByInstance(instanceID)
	if !ok {
		return false
	}
	return e.Controller.OnHostileKilled(tag)
}

// KillHostile 击杀怪物，击杀事件经死亡回调转发给所属副本
func (s *DungeonService) KillHostile(hostileID int64) (model.Hostile, bool) {
	return s.npcs.Kill(hostileID)
}

// Sweep 主循环巡检
//
// 先遍历快照收集需要销毁的副本，遍历结束后再统一销毁。
// 单个副本的 panic 不影响其他副本。
func (s *DungeonService) Sweep(now time.Time) {
	ctx := context.Background()
	start := s.clock.Now()
	success := true

	if s.rollover(now) {
		s.logger.Info("calendar day rolled over, resetting instances")
		s.DailyReset(ctx)
	}

	if !s.gate.IsOpenAt(now) {
		for _, playerID := range s.scenes.PlayersInMap(s.cfg.MapID) {
			s.enforce(ctx, playerID, now)
		}
	}

	type reap struct {
		id     int64
		reason manager.TeardownReason
	}
	var reaps []reap

	for _, e := range s.registry.Snapshot() {
		func() {
			defer func() {
				if r := recover(); r != nil {
					success = false
					s.logger.Error("instance sweep panicked",
						"instance_id", e.InstanceID,
						"player_id", e.Owner.ID,
						"panic", r,
					)
					reaps = append(reaps, reap{e.InstanceID, manager.ReasonAborted})
				}
			}()

			e.Controller.Update(now)
			if e.Controller.Reapable(now) {
				reason := e.Controller.FinishReason()
				if reason == "" {
					reason = manager.ReasonAborted
				}
				reaps = append(reaps, reap{e.InstanceID, reason})
			}
		}()
	}

	for _, r := range reaps {
		func() {
			defer func() {
				if p := recover(); p != nil {
					success = false
					s.logger.Error("instance cleanup panicked", "instance_id", r.id, "panic", p)
				}
			}()
			s.cleanupInstance(ctx, r.id, r.reason, true)
		}()
	}

	if s.metrics != nil {
		s.metrics.RecordSweep(success, s.clock.Since(start))
	}
}

// rollover 检测是否跨天
func (s *DungeonService) rollover(now time.Time) bool {
	day := model.DateOf(now, s.loc)

	s.dayMu.Lock()
	defer s.dayMu.Unlock()

	if day == s.day {
		return false
	}
	s.day = day
	return true
}

// EnforceTimeWindow 不在开放时间时把副本地图内的玩家请出，返回是否执行了驱逐
func (s *DungeonService) EnforceTimeWindow(ctx context.Context, playerID int64) bool {
	return s.enforce(ctx, playerID, s.clock.Now())
}

func (s *DungeonService) enforce(ctx context.Context, playerID int64, now time.Time) bool {
	if player, ok := s.sessions.Get(playerID); ok && player.Admin {
		return false
	}
	if loc, ok := s.scenes.LocationOf(playerID); !ok || loc.MapID != s.cfg.MapID {
		return false
	}
	if s.gate.IsOpenAt(now) {
		return false
	}

	unlock := s.lockPlayer(playerID)
	defer unlock()

	if e, ok := s.registry.ByPlayer(playerID); ok {
		e.Controller.Terminate(false)
		s.cleanupInstance(ctx, e.InstanceID, manager.ReasonWindowClosed, false)
	}
	if err := s.relocateToMap(playerID, s.cfg.SafeMapID); err != nil {
		s.logger.ErrorContext(ctx, "failed to evict player", "player_id", playerID, "error", err)
	}
	s.messenger.Notify(playerID, UserMessage(ErrDungeonClosed))
	s.logger.InfoContext(ctx, "player evicted outside opening hours", "player_id", playerID)
	return true
}

// DailyReset 每日重置：所有副本内玩家回到安全地图，关闭全部分区并清空登记表
//
// 次数由账本按日期自行重置。
func (s *DungeonService) DailyReset(ctx context.Context) {
	entries := s.registry.Clear()
	for _, e := range entries {
		e.Controller.Terminate(false)
		e.Partition.Close()
		s.evictFromPartition(ctx, e)
		s.messenger.Notify(e.Owner.ID, "the dungeon has been reset for the day")
		s.metricsTeardown(manager.ReasonDailyReset)
		s.publishTeardown(e, manager.ReasonDailyReset)
	}
	s.events.Publish(event.Event{Kind: event.KindDailyReset, Count: len(entries)})
	s.logger.InfoContext(ctx, "daily reset finished", "instances", len(entries))
}

// OnPlayerLogin 玩家上线，修复残留的副本状态，持久化位置在副本地图时传送回安全地图
func (s *DungeonService) OnPlayerLogin(ctx context.Context, player model.Player) error {
	s.sessions.Register(player)

	unlock := s.lockPlayer(player.ID)
	defer unlock()

	if e, ok := s.registry.ByPlayer(player.ID); ok {
		s.logger.DebugContext(ctx, "stale registry entry repaired", "player_id", player.ID, "instance_id", e.InstanceID)
		e.Controller.Terminate(false)
		s.cleanupInstance(ctx, e.InstanceID, manager.ReasonStale, false)
	}

	loc := player.Location
	if loc.MapID == s.cfg.MapID || loc.MapID == 0 {
		return s.relocateToMap(player.ID, s.cfg.SafeMapID)
	}
	if err := s.scenes.Relocate(player.ID, loc); err != nil {
		s.logger.WarnContext(ctx, "persisted location invalid, using safe map", "player_id", player.ID, "error", err)
		return s.relocateToMap(player.ID, s.cfg.SafeMapID)
	}
	return nil
}

// OnPlayerLogout 玩家下线，战斗中下线按失败扣次数
func (s *DungeonService) OnPlayerLogout(ctx context.Context, playerID int64) {
	unlock := s.lockPlayer(playerID)
	defer unlock()

	if e, ok := s.registry.ByPlayer(playerID); ok {
		e.Controller.Terminate(true)
		s.cleanupInstance(ctx, e.InstanceID, manager.ReasonLogout, false)
	}
	s.scenes.LeaveScene(playerID)
	s.sessions.Unregister(playerID)
}

// IsPlayerInInstance 玩家是否有登记中的副本
func (s *DungeonService) IsPlayerInInstance(playerID int64) bool {
	_, ok := s.registry.ByPlayer(playerID)
	return ok
}

// InstanceOf 玩家副本快照
func (s *DungeonService) InstanceOf(playerID int64) (model.Instance, bool) {
	e, ok := s.registry.ByPlayer(playerID)
	if !ok {
		return model.Instance{}, false
	}
	return e.Controller.Snapshot(), true
}

// GetRemainingAttempts 今日剩余次数
func (s *DungeonService) GetRemainingAttempts(ctx context.Context, playerID int64) (int, error) {
	return s.ledger.RemainingAttempts(ctx, playerID)
}

// GetCurrentTimeWindowDescription 开放时间描述
func (s *DungeonService) GetCurrentTimeWindowDescription() string {
	return s.gate.Description()
}

// IsOpenNow 当前是否开放
func (s *DungeonService) IsOpenNow() bool {
	return s.gate.IsOpenNow()
}

// SetTimeWindows 热更新开放时间
func (s *DungeonService) SetTimeWindows(windows []model.TimeWindow) error {
	return s.gate.SetWindows(windows)
}

// Status 玩家副本状态
func (s *DungeonService) Status(ctx context.Context, playerID int64) (*PlayerStatus, error) {
	remaining, err := s.GetRemainingAttempts(ctx, playerID)
	if err != nil {
		return nil, err
	}
	st := &PlayerStatus{PlayerID: playerID, Remaining: remaining}
	if inst, ok := s.InstanceOf(playerID); ok {
		st.InInstance = true
		st.Instance = &inst
	}
	return st, nil
}

// InstanceCount 登记中的副本数
func (s *DungeonService) InstanceCount() int {
	return s.registry.Len()
}

// TimerLoad 定时器负载
type TimerLoad struct {
	Pending int `json:"pending"`
	Running int `json:"running"`
}

// TimerLoad 待触发的定时任务数和协程池中运行的 worker 数
func (s *DungeonService) TimerLoad() TimerLoad {
	return TimerLoad{Pending: s.sched.Pending(), Running: s.sched.Running()}
}

// onControllerFinish 控制器请求结束副本
func (s *DungeonService) onControllerFinish(instanceID int64, reason manager.TeardownReason) {
	s.cleanupInstance(context.Background(), instanceID, reason, true)
}

// cleanupInstance 销毁副本，只有第一个调用方生效
func (s *DungeonService) cleanupInstance(ctx context.Context, instanceID int64, reason manager.TeardownReason, relocate bool) bool {
	e, ok := s.registry.Remove(instanceID)
	if !ok {
		return false
	}

	e.Controller.Terminate(false)
	e.Partition.Close()
	if relocate {
		s.evictFromPartition(ctx, e)
	}
	s.metricsTeardown(reason)
	s.publishTeardown(e, reason)

	s.logger.InfoContext(ctx, "instance torn down",
		"instance_id", instanceID,
		"player_id", e.Owner.ID,
		"zone_id", e.Partition.ZoneID(),
		"reason", string(reason),
	)
	s.messenger.Notify(e.Owner.ID, teardownMessage(reason))
	return true
}

// evictFromPartition 玩家仍在分区内时送回安全地图
func (s *DungeonService) evictFromPartition(ctx context.Context, e *manager.Entry) {
	loc, ok := s.scenes.LocationOf(e.Owner.ID)
	if !ok || loc.ZoneID != e.Partition.ZoneID() {
		return
	}
	if err := s.relocateToMap(e.Owner.ID, s.cfg.SafeMapID); err != nil {
		s.logger.ErrorContext(ctx, "failed to relocate player", "player_id", e.Owner.ID, "error", err)
	}
}

// relocateToMap 传送到地图入口
func (s *DungeonService) relocateToMap(playerID int64, mapID int32) error {
	def, ok := s.scenes.MapDefinition(mapID)
	if !ok {
		return errors.Wrapf(manager.ErrMapUnavailable, "map %d", mapID)
	}
	return s.scenes.Relocate(playerID, model.Location{MapID: mapID, Pos: def.Entry})
}

func teardownMessage(reason manager.TeardownReason) string {
	switch reason {
	case manager.ReasonCompleted:
		return "dungeon complete"
	case manager.ReasonFailed:
		return "you have been removed from the dungeon"
	case manager.ReasonWindowClosed:
		return UserMessage(ErrDungeonClosed)
	case manager.ReasonAborted:
		return "the dungeon run was aborted"
	default:
		return fmt.Sprintf("you have left the dungeon (%s)", reason)
	}
}

func (s *DungeonService) recordJoin(res *JoinResult, err error) {
	if s.metrics == nil {
		return
	}
	result := joinCreated
	switch {
	case err == nil && res != nil && res.Existing:
		result = joinExisting
	case err == nil:
	case errors.Is(err, ErrNotInDungeonMap):
		result = joinNotInMap
	case errors.Is(err, ErrDungeonClosed):
		result = joinClosed
	case errors.Is(err, ErrOutOfAttempts):
		result = joinNoAttempts
	case errors.Is(err, ErrZoneAllocationFailed):
		result = joinAllocFailed
	default:
		result = joinError
	}
	s.metrics.RecordJoin(result)
}

func (s *DungeonService) metricsInstanceCreated() {
	if s.metrics != nil {
		s.metrics.RecordInstanceCreated()
	}
}

func (s *DungeonService) metricsTeardown(reason manager.TeardownReason) {
	if s.metrics != nil {
		s.metrics.RecordTeardown(string(reason))
	}
}

// onWaveCleared 控制器持锁回调，不能再调用控制器方法
func (s *DungeonService) onWaveCleared(instanceID int64, wave int) {
	if s.metrics != nil {
		s.metrics.RecordWaveCleared(wave)
	}
	ev := event.Event{Kind: event.KindWaveCleared, InstanceID: instanceID, Wave: wave}
	if e, ok := s.registry.ByInstance(instanceID); ok {
		ev.PlayerID = e.Owner.ID
		ev.ZoneID = e.Partition.ZoneID()
	}
	s.events.Publish(ev)
}

func (s *DungeonService) publishTeardown(e *manager.Entry, reason manager.TeardownReason) {
	s.events.Publish(event.Event{
		Kind:       event.KindInstanceTornDown,
		InstanceID: e.InstanceID,
		PlayerID:   e.Owner.ID,
		ZoneID:     e.Partition.ZoneID(),
		Reason:     string(reason),
	})
}
