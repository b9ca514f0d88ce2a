package service

import (
	"context"
	"testing"
	"time"

	"github.com/lk2023060901/xdooria-dungeon/app/dungeon/internal/model"
	"github.com/lk2023060901/xdooria-dungeon/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTickServerSweeps(t *testing.T) {
	e := newEnv(t, nil)
	e.arrive(t, 1)
	require.NoError(t, e.svc.SetTimeWindows([]model.TimeWindow{{Open: "20:00:00", Close: "21:00:00"}}))

	ts := NewTickServer(e.svc, e.sched, logger.NewNoop())
	require.NoError(t, ts.Start())
	require.NoError(t, ts.Start())
	assert.Equal(t, 1, e.sched.Pending())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, e.clock.BlockUntilContext(ctx, 1))
	e.clock.Advance(e.svc.Config().TickInterval)

	assert.Eventually(t, func() bool {
		loc, ok := e.scenes.LocationOf(1)
		return ok && loc.MapID == townMap
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, ts.Stop())
	require.NoError(t, ts.Stop())
	assert.Equal(t, 0, e.sched.Pending())
}

func TestTickServerDailyResetCron(t *testing.T) {
	e := newEnv(t, func(cfg *Config) { cfg.DailyResetCron = "0 5 * * *" })
	ts := NewTickServer(e.svc, e.sched, logger.NewNoop())
	require.NoError(t, ts.Start())
	require.NoError(t, ts.Stop())

	e = newEnv(t, func(cfg *Config) { cfg.DailyResetCron = "every morning" })
	ts = NewTickServer(e.svc, e.sched, logger.NewNoop())
	assert.Error(t, ts.Start())
	assert.Equal(t, 0, e.sched.Pending())
}
