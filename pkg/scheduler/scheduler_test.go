package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScheduler(t *testing.T) (*Scheduler, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	s, err := New(&Config{PoolSize: 4}, clock, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, clock
}

// advance 等待计时器注册后推进时钟
func advance(t *testing.T, clock *clockwork.FakeClock, waiters int, d time.Duration) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, waiters))
	clock.Advance(d)
}

func TestAfterFiresOnce(t *testing.T) {
	s, clock := newTestScheduler(t)
	var calls atomic.Int32

	require.NoError(t, s.After("a", time.Second, func() { calls.Add(1) }))
	assert.Equal(t, 1, s.Pending())

	advance(t, clock, 1, 500*time.Millisecond)
	assert.Never(t, func() bool { return calls.Load() > 0 }, 50*time.Millisecond, 10*time.Millisecond)

	clock.Advance(500 * time.Millisecond)
	assert.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return s.Pending() == 0 }, time.Second, 5*time.Millisecond)
}

func TestRunningCallbacks(t *testing.T) {
	s, clock := newTestScheduler(t)
	assert.Equal(t, 0, s.Running())

	release := make(chan struct{})
	var entered atomic.Int32
	for _, key := range []string{"a", "b"} {
		require.NoError(t, s.After(key, time.Second, func() {
			entered.Add(1)
			<-release
		}))
	}

	advance(t, clock, 2, time.Second)
	assert.Eventually(t, func() bool { return entered.Load() == 2 }, time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, s.Running(), 2)
	assert.Equal(t, 0, s.Pending())
	close(release)
}

func TestRescheduleReplaces(t *testing.T) {
	s, clock := newTestScheduler(t)
	var first, second atomic.Int32

	require.NoError(t, s.After("k", time.Second, func() { first.Add(1) }))
	require.NoError(t, s.After("k", 2*time.Second, func() { second.Add(1) }))
	assert.Equal(t, 1, s.Pending())

	advance(t, clock, 1, 2*time.Second)
	assert.Eventually(t, func() bool { return second.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(0), first.Load())
}

func TestEveryAndCancel(t *testing.T) {
	s, clock := newTestScheduler(t)
	var calls atomic.Int32

	assert.ErrorIs(t, s.Every("bad", 0, func() {}), ErrInvalidInterval)
	require.NoError(t, s.Every("tick", time.Second, func() { calls.Add(1) }))

	for i := 1; i <= 3; i++ {
		advance(t, clock, 1, time.Second)
		want := int32(i)
		assert.Eventually(t, func() bool { return calls.Load() == want }, time.Second, 5*time.Millisecond)
	}

	assert.True(t, s.Cancel("tick"))
	assert.False(t, s.Cancel("tick"))
	clock.Advance(5 * time.Second)
	assert.Never(t, func() bool { return calls.Load() > 3 }, 50*time.Millisecond, 10*time.Millisecond)
}

func TestCancelPrefix(t *testing.T) {
	s, _ := newTestScheduler(t)

	require.NoError(t, s.After("instance:1:countdown", time.Second, func() {}))
	require.NoError(t, s.After("instance:1:evict", time.Second, func() {}))
	require.NoError(t, s.After("instance:2:countdown", time.Second, func() {}))

	assert.Equal(t, 2, s.CancelPrefix("instance:1:"))
	assert.Equal(t, 1, s.Pending())
}

func TestPanicIsRecovered(t *testing.T) {
	s, clock := newTestScheduler(t)
	var after atomic.Int32

	require.NoError(t, s.After("boom", time.Second, func() { panic("boom") }))
	require.NoError(t, s.After("ok", time.Second, func() { after.Add(1) }))

	advance(t, clock, 2, time.Second)
	assert.Eventually(t, func() bool { return after.Load() == 1 }, time.Second, 5*time.Millisecond)
}

func TestClose(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s, err := New(nil, clock, nil)
	require.NoError(t, err)

	var calls atomic.Int32
	require.NoError(t, s.After("a", time.Second, func() { calls.Add(1) }))
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	clock.Advance(time.Minute)
	assert.Never(t, func() bool { return calls.Load() > 0 }, 50*time.Millisecond, 10*time.Millisecond)
	assert.ErrorIs(t, s.After("b", time.Second, func() {}), ErrSchedulerClosed)
	assert.Equal(t, 0, s.Pending())
}
