package dao

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jonboulle/clockwork"
	"github.com/lk2023060901/xdooria-dungeon/app/dungeon/internal/metrics"
	"github.com/lk2023060901/xdooria-dungeon/pkg/database/postgres"
	"github.com/lk2023060901/xdooria-dungeon/pkg/database/redis"
	"github.com/lk2023060901/xdooria-dungeon/pkg/logger"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testStart = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func testQuotaConfig() *QuotaConfig {
	cfg := DefaultQuotaConfig()
	cfg.Timezone = "UTC"
	return cfg
}

// ledgerFactory 为每个用例创建一个全新的账本
type ledgerFactory func(t *testing.T, clock clockwork.Clock) QuotaLedger

// runLedgerSuite 所有驱动共用的行为用例
func runLedgerSuite(t *testing.T, newLedger ledgerFactory) {
	ctx := context.Background()

	t.Run("fresh player has max attempts", func(t *testing.T) {
		l := newLedger(t, clockwork.NewFakeClockAt(testStart))
		n, err := l.RemainingAttempts(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, 3, n)
	})

	t.Run("record of unknown player is fresh", func(t *testing.T) {
		l := newLedger(t, clockwork.NewFakeClockAt(testStart))
		rec, err := l.Record(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(1), rec.PlayerID)
		assert.Equal(t, 3, rec.Remaining)
		assert.Equal(t, "2026-03-01", rec.ResetDate)
	})

	t.Run("consume until empty", func(t *testing.T) {
		l := newLedger(t, clockwork.NewFakeClockAt(testStart))
		for i := 0; i < 3; i++ {
			require.NoError(t, l.ConsumeAttempt(ctx, 2))
		}
		assert.ErrorIs(t, l.ConsumeAttempt(ctx, 2), ErrNoAttempts)

		rec, err := l.Record(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, 0, rec.Remaining)
		assert.Equal(t, 3, rec.Participation)
	})

	t.Run("penalize floors at zero", func(t *testing.T) {
		l := newLedger(t, clockwork.NewFakeClockAt(testStart))
		require.NoError(t, l.Penalize(ctx, 3, 1))
		n, err := l.RemainingAttempts(ctx, 3)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		require.NoError(t, l.Penalize(ctx, 3, 10))
		n, err = l.RemainingAttempts(ctx, 3)
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})

	t.Run("highest wave keeps max", func(t *testing.T) {
		l := newLedger(t, clockwork.NewFakeClockAt(testStart))
		require.NoError(t, l.RecordHighestWave(ctx, 4, 5))
		require.NoError(t, l.RecordHighestWave(ctx, 4, 3))
		rec, err := l.Record(ctx, 4)
		require.NoError(t, err)
		assert.Equal(t, 5, rec.HighestWave)
	})

	t.Run("day rollover resets lazily", func(t *testing.T) {
		clock := clockwork.NewFakeClockAt(testStart)
		l := newLedger(t, clock)
		require.NoError(t, l.ConsumeAttempt(ctx, 5))
		require.NoError(t, l.ConsumeAttempt(ctx, 5))
		require.NoError(t, l.RecordHighestWave(ctx, 5, 7))

		clock.Advance(24 * time.Hour)
		n, err := l.RemainingAttempts(ctx, 5)
		require.NoError(t, err)
		assert.Equal(t, 3, n)

		rec, err := l.Record(ctx, 5)
		require.NoError(t, err)
		assert.Equal(t, 0, rec.Participation)
		assert.Equal(t, 7, rec.HighestWave)
		assert.Equal(t, "2026-03-02", rec.ResetDate)
	})

	t.Run("concurrent consume never goes negative", func(t *testing.T) {
		l := newLedger(t, clockwork.NewFakeClockAt(testStart))
		var wg sync.WaitGroup
		var mu sync.Mutex
		succeeded := 0

		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := l.ConsumeAttempt(ctx, 6)
				if err == nil {
					mu.Lock()
					succeeded++
					mu.Unlock()
					return
				}
				assert.ErrorIs(t, err, ErrNoAttempts)
			}()
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, l.Penalize(ctx, 6, 1))
			}()
		}
		wg.Wait()

		n, err := l.RemainingAttempts(ctx, 6)
		require.NoError(t, err)
		assert.Equal(t, 0, n)
		assert.LessOrEqual(t, succeeded, 3)
	})
}

func TestMemoryQuotaLedger(t *testing.T) {
	runLedgerSuite(t, func(t *testing.T, clock clockwork.Clock) QuotaLedger {
		l, err := NewMemoryQuotaLedger(testQuotaConfig(), clock, logger.NewNoop())
		require.NoError(t, err)
		return l
	})
}

func TestRedisQuotaLedger(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping redis integration test in short mode")
	}
	client, err := redis.NewClient(&redis.Config{Standalone: &redis.NodeConfig{Host: "localhost", Port: 16379}})
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Ping(ctx); err != nil {
		t.Skipf("redis not available: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	seq := 0
	runLedgerSuite(t, func(t *testing.T, clock clockwork.Clock) QuotaLedger {
		seq++
		cfg := testQuotaConfig()
		cfg.KeyPrefix = fmt.Sprintf("test:quota:%d:%d:", time.Now().UnixNano(), seq)

		l, err := NewRedisQuotaLedger(cfg, client, clock, logger.NewNoop())
		require.NoError(t, err)
		t.Cleanup(func() {
			for id := int64(1); id <= 6; id++ {
				_, _ = client.Del(context.Background(), l.key(id))
			}
		})
		return l
	})
}

func TestPostgresQuotaLedger(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	cfg := postgres.DefaultConfig()
	cfg.Standalone.Port = 15432
	cfg.Standalone.Password = "postgres"
	cfg.ConnectTimeout = 2 * time.Second
	client, err := postgres.New(cfg, nil)
	if err != nil {
		t.Skipf("postgres not available: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	seq := 0
	runLedgerSuite(t, func(t *testing.T, clock clockwork.Clock) QuotaLedger {
		seq++
		qcfg := testQuotaConfig()
		qcfg.Table = fmt.Sprintf("dungeon_quota_test_%d", seq)

		l, err := NewPostgresQuotaLedger(qcfg, client, clock, logger.NewNoop())
		require.NoError(t, err)
		require.NoError(t, l.EnsureSchema(context.Background()))
		t.Cleanup(func() {
			_, _ = client.Exec(context.Background(), "DROP TABLE IF EXISTS "+qcfg.Table)
		})
		return l
	})
}

func TestNewQuotaLedger(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(testStart)
	m, err := metrics.New(&metrics.Config{Namespace: "test_dao"}, clock)
	require.NoError(t, err)

	l, err := NewQuotaLedger(ctx, &QuotaConfig{MaxPerDay: 2, Timezone: "UTC"}, QuotaBackends{}, clock, m, logger.NewNoop())
	require.NoError(t, err)

	n, err := l.RemainingAttempts(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.NoError(t, l.ConsumeAttempt(ctx, 9))
	require.NoError(t, l.ConsumeAttempt(ctx, 9))
	assert.ErrorIs(t, l.ConsumeAttempt(ctx, 9), ErrNoAttempts)

	// 次数不足不计为失败
	assert.Equal(t, 3.0, testutil.ToFloat64(m.QuotaOpsTotal.WithLabelValues(DriverMemory, "consume", "success")))

	_, err = NewQuotaLedger(ctx, &QuotaConfig{Driver: DriverRedis}, QuotaBackends{}, clock, nil, logger.NewNoop())
	assert.Error(t, err)
	_, err = NewQuotaLedger(ctx, &QuotaConfig{Driver: "etcd"}, QuotaBackends{}, clock, nil, logger.NewNoop())
	assert.True(t, errors.Is(err, ErrUnknownDriver))
	_, err = NewQuotaLedger(ctx, &QuotaConfig{Timezone: "Mars/Olympus"}, QuotaBackends{}, clock, nil, logger.NewNoop())
	assert.Error(t, err)
}
