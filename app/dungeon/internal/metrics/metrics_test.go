package metrics

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMetrics(t *testing.T) *DungeonMetrics {
	t.Helper()
	m, err := New(&Config{Namespace: "test", SystemSampleInterval: time.Hour}, clockwork.NewFakeClock())
	require.NoError(t, err)
	return m
}

func TestRegisterAndRecord(t *testing.T) {
	m := newTestMetrics(t)
	reg := prometheus.NewRegistry()
	require.NoError(t, m.Register(reg))
	assert.Error(t, m.Register(reg))

	m.RecordJoin("created")
	m.RecordJoin("created")
	m.RecordJoin("out_of_attempts")
	m.RecordInstanceCreated()
	m.RecordInstanceCreated()
	m.RecordTeardown("leave")
	m.RecordWaveCleared(3)
	m.RecordQuotaOp("memory", "consume", true, 0.001)
	m.RecordQuotaOp("memory", "consume", false, 0.001)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.JoinsTotal.WithLabelValues("created")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActiveInstances))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TeardownsTotal.WithLabelValues("leave")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WavesCleared.WithLabelValues("3")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.QuotaOpsTotal.WithLabelValues("memory", "consume", "failed")))
}

func TestStats(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordInstanceCreated()
	m.RecordSweep(true, 2*time.Millisecond)
	m.RecordSweep(false, 4*time.Millisecond)

	stats := m.GetStats()
	assert.EqualValues(t, 1, stats.ActiveInstances)
	assert.InDelta(t, 0.003, stats.SweepAvgLatency, 1e-9)
	assert.InDelta(t, 0.004, stats.SweepMaxLatency, 1e-9)
	assert.InDelta(t, 50, stats.SweepSuccess, 1e-9)
	assert.Positive(t, stats.Goroutines)
}
