package manager

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/cockroachdb/errors"
	"github.com/jonboulle/clockwork"
	"github.com/lk2023060901/xdooria-dungeon/app/dungeon/internal/dao"
	"github.com/lk2023060901/xdooria-dungeon/app/dungeon/internal/model"
	"github.com/lk2023060901/xdooria-dungeon/pkg/idgen"
	"github.com/lk2023060901/xdooria-dungeon/pkg/logger"
	"github.com/lk2023060901/xdooria-dungeon/pkg/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testMapID  int32 = 9000
	testZoneID int64 = 100000
)

var testStart = time.Date(2026, 10, 15, 10, 0, 0, 0, time.Local)

type stubRewards struct {
	mu     sync.Mutex
	waves  []int
	err    error
	panics bool
}

func (s *stubRewards) IssueWaveReward(_ context.Context, _ model.Player, wave int) ([]model.RewardGrant, error) {
	if s.panics {
		panic("reward table corrupted")
	}
	if s.err != nil {
		return nil, s.err
	}
	s.mu.Lock()
	s.waves = append(s.waves, wave)
	s.mu.Unlock()
	return []model.RewardGrant{{ItemID: 5001, Count: int32(wave)}}, nil
}

func (s *stubRewards) issued() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.waves...)
}

type failingHostiles struct {
	HostileFactory
	panics bool
}

func (f *failingHostiles) Spawn(int64, SpawnRequest) (*model.Hostile, error) {
	if f.panics {
		panic("bad template")
	}
	return nil, errors.New("template not found")
}

type finishRecord struct {
	instanceID int64
	reason     TeardownReason
}

type fixture struct {
	clock     *clockwork.FakeClock
	sched     *scheduler.Scheduler
	scenes    *SceneManager
	broadcast *BroadcastManager
	npcs      *NpcManager
	zones     *ZoneManager
	ledger    *dao.MemoryQuotaLedger
	rewards   *stubRewards
	owner     model.Player

	mu       sync.Mutex
	finished []finishRecord
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	l := logger.NewNoop()
	clock := clockwork.NewFakeClockAt(testStart)

	sched, err := scheduler.New(&scheduler.Config{PoolSize: 8}, clock, l)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sched.Close() })

	scenes := NewSceneManager(l)
	scenes.RegisterMap(model.MapDefinition{ID: testMapID, Name: "trial", Spawn: model.Position{X: 50, Y: 50}})
	broadcast := NewBroadcastManager(l, clock, scenes, 128)
	npcs := NewNpcManager(l, idgen.NewSequence(0))

	ledger, err := dao.NewMemoryQuotaLedger(dao.DefaultQuotaConfig(), clock, l)
	require.NoError(t, err)

	return &fixture{
		clock:     clock,
		sched:     sched,
		scenes:    scenes,
		broadcast: broadcast,
		npcs:      npcs,
		zones:     NewZoneManager(l, testZoneID, scenes, npcs, broadcast),
		ledger:    ledger,
		rewards:   &stubRewards{},
		owner:     model.Player{ID: 42, Name: "hero", Region: "eu", CompanionID: 4201},
	}
}

func testWaveConfig() WaveConfig {
	cfg := DefaultWaveConfig()
	cfg.Scaling.HostileCount = 2
	cfg.Scaling.KillsBase = 3
	cfg.Scaling.KillsStep = 1
	cfg.Scaling.TimeLimit = 60 * time.Second
	cfg.Scaling.TimeLimitStep = 0
	cfg.CountdownTicks = 0
	cfg.ReminderInterval = 20 * time.Second
	return cfg
}

func (f *fixture) newController(t *testing.T, cfg WaveConfig, hostiles HostileFactory) (*WaveController, *Partition) {
	t.Helper()
	p, err := f.zones.Create(testMapID, f.owner)
	require.NoError(t, err)
	require.NoError(t, f.scenes.Relocate(f.owner.ID, model.Location{MapID: testMapID, ZoneID: p.ZoneID()}))

	if hostiles == nil {
		hostiles = f.npcs
	}
	c := NewWaveController(777, f.owner, p, model.Position{X: 50, Y: 50}, cfg, WaveDeps{
		Scheduler: f.sched,
		Messenger: f.broadcast,
		Hostiles:  hostiles,
		Rewards:   f.rewards,
		Ledger:    f.ledger,
		Maps:      f.scenes,
		Logger:    logger.NewNoop(),
		OnFinish: func(id int64, reason TeardownReason) {
			f.mu.Lock()
			f.finished = append(f.finished, finishRecord{id, reason})
			f.mu.Unlock()
		},
	})
	f.npcs.OnDeath(func(h model.Hostile) { c.OnHostileKilled(h.Tag) })
	return c, p
}

func (f *fixture) finishes() []finishRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]finishRecord(nil), f.finished...)
}

func (f *fixture) killAll(zoneID int64) int {
	n := 0
	for _, h := range f.npcs.HostilesInZone(zoneID) {
		if _, ok := f.npcs.Kill(h.ID); ok {
			n++
		}
	}
	return n
}

// remaining 读取失败时返回 -1，可以在 Eventually 中调用
func (f *fixture) remaining() int {
	n, err := f.ledger.RemainingAttempts(context.Background(), f.owner.ID)
	if err != nil {
		return -1
	}
	return n
}

func TestTimeGateBoundary(t *testing.T) {
	clock := clockwork.NewFakeClockAt(testStart)
	gate, err := NewTimeGate([]model.TimeWindow{{Open: "07:00:00", Close: "23:00:00"}}, time.Local, clock, logger.NewNoop())
	require.NoError(t, err)

	day := func(d int, h, m, s int) time.Time {
		return time.Date(2026, 10, d, h, m, s, 0, time.Local)
	}

	tests := []struct {
		name string
		at   time.Time
		open bool
	}{
		{"before open", day(15, 6, 59, 59), false},
		{"at open", day(15, 7, 0, 0), true},
		{"before close", day(15, 22, 59, 59), true},
		{"at close", day(15, 23, 0, 0), false},
		{"next day before open", day(16, 6, 59, 59), false},
		{"next day open", day(16, 7, 0, 0), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.open, gate.IsOpenAt(tt.at))
		})
	}

	assert.True(t, gate.IsOpenNow())
	assert.Equal(t, "07:00:00-23:00:00", gate.Description())
}

func TestTimeGateMultipleWindows(t *testing.T) {
	clock := clockwork.NewFakeClockAt(testStart)
	gate, err := NewTimeGate([]model.TimeWindow{
		{Open: "07:00:00", Close: "09:00:00"},
		{Open: "19:00:00", Close: "21:00:00"},
	}, time.Local, clock, logger.NewNoop())
	require.NoError(t, err)

	assert.False(t, gate.IsOpenNow())
	assert.True(t, gate.IsOpenAt(time.Date(2026, 10, 15, 20, 0, 0, 0, time.Local)))
	assert.Equal(t, "07:00:00-09:00:00, 19:00:00-21:00:00", gate.Description())

	require.NoError(t, gate.SetWindows(nil))
	assert.True(t, gate.IsOpenNow())
	assert.Equal(t, "all day", gate.Description())

	assert.Error(t, gate.SetWindows([]model.TimeWindow{{Open: "10:00:00", Close: "09:00:00"}}))
}

func TestTimeGateDaylightSaving(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	gate, err := NewTimeGate([]model.TimeWindow{{Open: "07:00:00", Close: "23:00:00"}}, ny,
		clockwork.NewFakeClock(), logger.NewNoop())
	require.NoError(t, err)

	at := func(m time.Month, d, h, mi, s int) time.Time {
		return time.Date(2026, m, d, h, mi, s, 0, ny)
	}

	tests := []struct {
		name string
		at   time.Time
		open bool
	}{
		{"spring forward before open", at(3, 8, 6, 59, 59), false},
		{"spring forward at open", at(3, 8, 7, 0, 0), true},
		{"spring forward morning", at(3, 8, 7, 30, 0), true},
		{"spring forward before close", at(3, 8, 22, 59, 59), true},
		{"spring forward at close", at(3, 8, 23, 0, 0), false},
		{"fall back early morning", at(11, 1, 6, 30, 0), false},
		{"fall back before open", at(11, 1, 6, 59, 59), false},
		{"fall back at open", at(11, 1, 7, 0, 0), true},
		{"fall back before close", at(11, 1, 22, 59, 59), true},
		{"fall back at close", at(11, 1, 23, 0, 0), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.open, gate.IsOpenAt(tt.at))
		})
	}

	// 同一时刻以 UTC 传入时按门的时区判断
	assert.True(t, gate.IsOpenAt(at(3, 8, 7, 30, 0).UTC()))
	assert.False(t, gate.IsOpenAt(at(11, 1, 6, 30, 0).UTC()))
}

func TestZoneManager(t *testing.T) {
	f := newFixture(t)

	_, err := f.zones.Create(1, f.owner)
	assert.ErrorIs(t, err, ErrMapUnavailable)
	assert.EqualValues(t, 0, f.zones.Allocated())

	p1, err := f.zones.Create(testMapID, f.owner)
	require.NoError(t, err)
	p2, err := f.zones.Create(testMapID, model.Player{ID: 43})
	require.NoError(t, err)

	assert.Equal(t, testZoneID+1, p1.ZoneID())
	assert.Equal(t, testZoneID+2, p2.ZoneID())
	assert.True(t, p1.Zone().Private)
	assert.Equal(t, 2, f.scenes.ZoneCount(testMapID))

	require.NoError(t, p1.Admit(f.owner.PlayerEntity()))
	companion, ok := f.owner.CompanionEntity()
	require.True(t, ok)
	require.NoError(t, p1.Admit(companion))

	stranger := model.Player{ID: 99}
	err = p1.Admit(stranger.PlayerEntity())
	assert.ErrorIs(t, err, ErrAdmissionDenied)
	assert.Len(t, p1.Occupants(), 2)
	require.Len(t, f.broadcast.Drain(99), 1)

	_, err = f.npcs.Spawn(p1.ZoneID(), SpawnRequest{TemplateID: 1})
	require.NoError(t, err)

	assert.True(t, p1.Close())
	assert.False(t, p1.Close())
	assert.True(t, p1.Closed())
	assert.Empty(t, f.npcs.HostilesInZone(p1.ZoneID()))
	_, ok = f.scenes.Zone(testMapID, p1.ZoneID())
	assert.False(t, ok)
	assert.ErrorIs(t, p1.Admit(f.owner.PlayerEntity()), ErrPartitionClosed)
}

func TestInstanceRegistry(t *testing.T) {
	f := newFixture(t)
	reg := NewInstanceRegistry(2)

	p, err := f.zones.Create(testMapID, f.owner)
	require.NoError(t, err)

	e1 := &Entry{InstanceID: 1, Owner: f.owner, Partition: p}
	require.NoError(t, reg.Register(e1))
	assert.ErrorIs(t, reg.Register(&Entry{InstanceID: 2, Owner: f.owner}), ErrPlayerRegistered)
	require.NoError(t, reg.Register(&Entry{InstanceID: 3, Owner: model.Player{ID: 2}}))
	assert.False(t, reg.HasCapacity())
	assert.ErrorIs(t, reg.Register(&Entry{InstanceID: 4, Owner: model.Player{ID: 3}}), ErrRegistryFull)

	got, ok := reg.ByPlayer(f.owner.ID)
	require.True(t, ok)
	assert.Same(t, e1, got)
	got, ok = reg.ByZone(p.ZoneID())
	require.True(t, ok)
	assert.Same(t, e1, got)

	// 并发移除只有一个调用方拿到
	var winners atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := reg.Remove(1); ok {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, winners.Load())

	_, ok = reg.ByPlayer(f.owner.ID)
	assert.False(t, ok)
	_, ok = reg.ByZone(p.ZoneID())
	assert.False(t, ok)
	assert.Equal(t, 1, reg.Len())

	cleared := reg.Clear()
	require.Len(t, cleared, 1)
	assert.EqualValues(t, 3, cleared[0].InstanceID)
	assert.Equal(t, 0, reg.Len())
}

func TestWaveControllerClearsWaves(t *testing.T) {
	f := newFixture(t)
	cfg := testWaveConfig()
	c, p := f.newController(t, cfg, nil)

	c.StartWave()
	snap := c.Snapshot()
	assert.Equal(t, model.WaveActive, snap.State)
	assert.Equal(t, 1, snap.Wave)
	assert.Equal(t, 3, snap.RequiredKills)
	assert.Equal(t, 60*time.Second, snap.TimeLimit)
	assert.Len(t, f.npcs.HostilesInZone(p.ZoneID()), 2)

	// 两只怪物不够三次击杀，击杀后补刷
	assert.Equal(t, 2, f.killAll(p.ZoneID()))
	assert.Equal(t, 2, c.Snapshot().Kills)
	require.Len(t, f.npcs.HostilesInZone(p.ZoneID()), 1)

	f.killAll(p.ZoneID())
	snap = c.Snapshot()
	assert.Equal(t, model.WaveComplete, snap.State)
	assert.Equal(t, 0, snap.Kills)
	assert.Equal(t, []int{1}, f.rewards.issued())

	assert.Eventually(t, func() bool {
		rec, err := f.ledger.Record(context.Background(), f.owner.ID)
		return err == nil && rec.HighestWave == 1
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, f.clock.BlockUntilContext(context.Background(), 1))
	f.clock.Advance(cfg.InterWaveDelay)

	assert.Eventually(t, func() bool {
		s := c.Snapshot()
		return s.Wave == 2 && s.State == model.WaveActive
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, 4, c.Snapshot().RequiredKills)
	assert.Equal(t, 3, f.remaining())
	assert.Empty(t, f.finishes())
}

func TestWaveControllerKillAttribution(t *testing.T) {
	f := newFixture(t)
	c, _ := f.newController(t, testWaveConfig(), nil)
	c.StartWave()

	assert.False(t, c.OnHostileKilled(model.HostileTag{InstanceID: 778, Wave: 1}))
	assert.False(t, c.OnHostileKilled(model.HostileTag{InstanceID: 777, Wave: 2}))
	assert.False(t, c.OnHostileKilled(model.HostileTag{}))
	assert.Equal(t, 0, c.Snapshot().Kills)

	assert.True(t, c.OnHostileKilled(model.HostileTag{InstanceID: 777, Wave: 1}))
	assert.Equal(t, 1, c.Snapshot().Kills)
}

func TestWaveControllerTimeout(t *testing.T) {
	f := newFixture(t)
	cfg := testWaveConfig()
	c, _ := f.newController(t, cfg, nil)
	c.StartWave()

	start := c.Snapshot().WaveStart

	c.Update(start.Add(20 * time.Second))
	msgs := f.broadcast.Drain(f.owner.ID)
	require.NotEmpty(t, msgs)
	assert.Contains(t, msgs[len(msgs)-1].Text, "remaining")

	// 恰好到达时限不算超时
	c.Update(start.Add(cfg.Scaling.TimeLimit))
	assert.Equal(t, model.WaveActive, c.Snapshot().State)

	c.Update(start.Add(cfg.Scaling.TimeLimit + time.Second))
	snap := c.Snapshot()
	assert.Equal(t, model.WaveFailed, snap.State)
	assert.False(t, snap.Active)
	assert.True(t, c.Terminal())

	msgs = f.broadcast.Drain(f.owner.ID)
	require.NotEmpty(t, msgs)
	assert.Equal(t, "time's up, only 0/3 defeated", msgs[len(msgs)-1].Text)

	c.Update(start.Add(cfg.Scaling.TimeLimit + 2*time.Second))
	assert.Eventually(t, func() bool { return f.remaining() == 2 }, time.Second, 10*time.Millisecond)

	assert.False(t, c.Reapable(f.clock.Now()))
	require.NoError(t, f.clock.BlockUntilContext(context.Background(), 1))
	f.clock.Advance(cfg.FailureGrace)

	assert.Eventually(t, func() bool { return len(f.finishes()) == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, finishRecord{777, ReasonFailed}, f.finishes()[0])
	assert.Equal(t, ReasonFailed, c.FinishReason())
	assert.True(t, c.Reapable(f.clock.Now()))

	assert.True(t, c.Terminate(true))
	assert.False(t, c.Terminate(true))
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 2, f.remaining())
}

func TestWaveControllerReminderInterval(t *testing.T) {
	f := newFixture(t)
	cfg := testWaveConfig()
	c, _ := f.newController(t, cfg, nil)
	c.StartWave()
	f.broadcast.Drain(f.owner.ID)

	start := c.Snapshot().WaveStart
	reminders := func() int {
		n := 0
		for _, m := range f.broadcast.Drain(f.owner.ID) {
			if strings.Contains(m.Text, "remaining") {
				n++
			}
		}
		return n
	}

	c.Update(start.Add(10 * time.Second))
	assert.Equal(t, 0, reminders())

	c.Update(start.Add(20 * time.Second))
	c.Update(start.Add(30 * time.Second))
	c.Update(start.Add(39 * time.Second))
	assert.Equal(t, 1, reminders())

	c.Update(start.Add(40 * time.Second))
	assert.Equal(t, 1, reminders())

	c.Update(start.Add(45 * time.Second))
	assert.Equal(t, 0, reminders())
	assert.Equal(t, model.WaveActive, c.Snapshot().State)
}

func TestWaveControllerCountdown(t *testing.T) {
	f := newFixture(t)
	cfg := testWaveConfig()
	cfg.CountdownTicks = 3
	c, p := f.newController(t, cfg, nil)

	c.StartWave()
	assert.Equal(t, model.WavePreparing, c.Snapshot().State)
	assert.Empty(t, f.npcs.HostilesInZone(p.ZoneID()))

	for i := 0; i < cfg.CountdownTicks; i++ {
		require.NoError(t, f.clock.BlockUntilContext(context.Background(), 1))
		f.clock.Advance(cfg.CountdownStep)
	}

	assert.Eventually(t, func() bool { return c.Snapshot().State == model.WaveActive }, time.Second, 10*time.Millisecond)
	assert.Len(t, f.npcs.HostilesInZone(p.ZoneID()), 2)

	var texts []string
	for _, m := range f.broadcast.Drain(f.owner.ID) {
		texts = append(texts, m.Text)
	}
	require.GreaterOrEqual(t, len(texts), 4)
	assert.Equal(t, []string{"wave 1 begins in 3", "wave 1 begins in 2", "wave 1 begins in 1"}, texts[:3])
}

func TestWaveControllerTerminateCancelsCountdown(t *testing.T) {
	f := newFixture(t)
	cfg := testWaveConfig()
	cfg.CountdownTicks = 3
	c, p := f.newController(t, cfg, nil)

	c.StartWave()
	assert.Equal(t, 1, f.sched.Pending())

	assert.True(t, c.Terminate(true))
	assert.Equal(t, 0, f.sched.Pending())
	assert.Equal(t, model.WaveTerminated, c.Snapshot().State)

	f.clock.Advance(10 * cfg.CountdownStep)
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, f.npcs.HostilesInZone(p.ZoneID()))
	assert.Equal(t, 3, f.remaining())
	assert.Empty(t, f.finishes())
}

func TestWaveControllerAbortsOnFailure(t *testing.T) {
	tests := []struct {
		name     string
		hostiles func(f *fixture) HostileFactory
		rewards  func(r *stubRewards)
	}{
		{name: "spawn error", hostiles: func(f *fixture) HostileFactory { return &failingHostiles{HostileFactory: f.npcs} }},
		{name: "spawn panic", hostiles: func(f *fixture) HostileFactory { return &failingHostiles{HostileFactory: f.npcs, panics: true} }},
		{name: "reward error", rewards: func(r *stubRewards) { r.err = errors.New("inventory full") }},
		{name: "reward panic", rewards: func(r *stubRewards) { r.panics = true }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			cfg := testWaveConfig()
			cfg.Scaling.KillsBase = 1

			var hostiles HostileFactory
			if tt.hostiles != nil {
				hostiles = tt.hostiles(f)
			}
			if tt.rewards != nil {
				tt.rewards(f.rewards)
			}
			c, p := f.newController(t, cfg, hostiles)

			c.StartWave()
			if tt.rewards != nil {
				f.killAll(p.ZoneID())
			}

			assert.Equal(t, model.WaveTerminated, c.Snapshot().State)
			require.Len(t, f.finishes(), 1)
			assert.Equal(t, ReasonAborted, f.finishes()[0].reason)
			assert.Equal(t, 3, f.remaining())
		})
	}
}

func TestWaveControllerMaxWaves(t *testing.T) {
	f := newFixture(t)
	cfg := testWaveConfig()
	cfg.MaxWaves = 1
	cfg.Scaling.KillsBase = 2
	c, p := f.newController(t, cfg, nil)

	c.StartWave()
	f.killAll(p.ZoneID())

	require.Len(t, f.finishes(), 1)
	assert.Equal(t, ReasonCompleted, f.finishes()[0].reason)
	assert.False(t, c.Snapshot().Active)
	assert.Equal(t, 3, f.remaining())
}
