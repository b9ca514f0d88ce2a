package metrics

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/lk2023060901/xdooria-dungeon/pkg/config"
	"github.com/lk2023060901/xdooria-dungeon/pkg/logger"
	"github.com/lk2023060901/xdooria-dungeon/pkg/registry"
	"github.com/lk2023060901/xdooria-dungeon/pkg/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryRegistrar struct {
	mu           sync.Mutex
	info         *registry.ServiceInfo
	updates      int
	deregistered bool
	err          error
}

func (m *memoryRegistrar) fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *memoryRegistrar) Register(_ context.Context, info *registry.ServiceInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.info = info
	return nil
}

func (m *memoryRegistrar) Deregister(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deregistered = true
	return nil
}

func (m *memoryRegistrar) UpdateMetadata(_ context.Context, metadata map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.info.Metadata = metadata
	m.updates++
	return nil
}

func (m *memoryRegistrar) snapshot() (map[string]string, int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.info.Metadata, m.updates, m.deregistered
}

func TestReporter(t *testing.T) {
	clock := clockwork.NewFakeClock()
	sched, err := scheduler.New(&scheduler.Config{PoolSize: 2}, clock, logger.NewNoop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = sched.Close() })

	m, err := New(&Config{Namespace: "test", SystemSampleInterval: time.Hour}, clock)
	require.NoError(t, err)

	reg := &memoryRegistrar{}
	r, err := NewReporter(&ReporterConfig{ReportInterval: time.Second},
		registry.ServiceInfo{ServiceName: "dungeon", Address: "10.0.0.1:8080"},
		m, reg, sched, logger.NewNoop())
	require.NoError(t, err)

	require.NoError(t, r.Start())
	md, updates, _ := reg.snapshot()
	assert.Equal(t, "0", md["active_instances"])
	assert.Equal(t, 0, updates)

	m.RecordInstanceCreated()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(time.Second)

	assert.Eventually(t, func() bool {
		md, updates, _ := reg.snapshot()
		return updates >= 1 && md["active_instances"] == "1"
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, r.Stop())
	_, _, deregistered := reg.snapshot()
	assert.True(t, deregistered)
	assert.Equal(t, 0, sched.Pending())
}

func TestNewReporterRejectsBadConfig(t *testing.T) {
	_, err := NewReporter(&ReporterConfig{ReportInterval: -time.Second}, registry.ServiceInfo{}, nil, nil, nil, logger.NewNoop())
	assert.ErrorIs(t, err, config.ErrValidationFailed)

	_, err = NewReporter(&ReporterConfig{ReportInterval: time.Minute, MaxSilence: time.Second}, registry.ServiceInfo{}, nil, nil, nil, logger.NewNoop())
	assert.ErrorIs(t, err, config.ErrValidationFailed)
}

// newTestReporter 未 Start 的上报器，测试直接调用 report
func newTestReporter(t *testing.T, clock *clockwork.FakeClock, cfg *ReporterConfig) (*Reporter, *memoryRegistrar) {
	t.Helper()
	sched, err := scheduler.New(&scheduler.Config{PoolSize: 1}, clock, logger.NewNoop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = sched.Close() })

	m, err := New(&Config{Namespace: "test", SystemSampleInterval: time.Hour}, clock)
	require.NoError(t, err)

	reg := &memoryRegistrar{info: &registry.ServiceInfo{}}
	r, err := NewReporter(cfg, registry.ServiceInfo{ServiceName: "dungeon"}, m, reg, sched, logger.NewNoop())
	require.NoError(t, err)
	r.remember(r.load())
	return r, reg
}

func TestReporterSkipsUnchangedLoad(t *testing.T) {
	clock := clockwork.NewFakeClock()
	r, reg := newTestReporter(t, clock, &ReporterConfig{ReportInterval: time.Second, MaxSilence: 3 * time.Second})

	r.report()
	_, updates, _ := reg.snapshot()
	assert.Equal(t, 0, updates)

	// 沉默超过 max_silence 时即使负载不变也要写
	clock.Advance(3 * time.Second)
	r.report()
	md, updates, _ := reg.snapshot()
	assert.Equal(t, 1, updates)
	assert.Equal(t, clock.Now().UTC().Format(time.RFC3339), md["updated_at"])

	r.metrics.RecordInstanceCreated()
	r.report()
	md, updates, _ = reg.snapshot()
	assert.Equal(t, 2, updates)
	assert.Equal(t, "1", md["active_instances"])
}

func TestReporterRetriesAfterFailure(t *testing.T) {
	clock := clockwork.NewFakeClock()
	r, reg := newTestReporter(t, clock, &ReporterConfig{ReportInterval: time.Second})

	reg.fail(errors.New("etcd unavailable"))
	r.metrics.RecordInstanceCreated()
	r.report()
	_, updates, _ := reg.snapshot()
	assert.Equal(t, 0, updates)
	assert.True(t, r.failing)

	// 失败的写入不算数，下一轮继续写同样的负载
	reg.fail(nil)
	r.report()
	md, updates, _ := reg.snapshot()
	assert.Equal(t, 1, updates)
	assert.Equal(t, "1", md["active_instances"])
	assert.False(t, r.failing)
}
