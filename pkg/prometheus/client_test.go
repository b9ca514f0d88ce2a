package prometheus

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "defaults", cfg: *DefaultConfig()},
		{name: "relative path", cfg: Config{Path: "metrics", Timeout: 1}, wantErr: true},
		{name: "zero timeout", cfg: Config{Path: "/metrics"}, wantErr: true},
		{name: "empty label value", cfg: Config{Path: "/metrics", Timeout: 1, ConstLabels: map[string]string{"instance": ""}}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func scrape(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestHandlerExposesRegisteredMetrics(t *testing.T) {
	c, err := New(&Config{SkipRuntimeCollectors: true}, nil)
	require.NoError(t, err)
	assert.False(t, c.Standalone())
	assert.Equal(t, "/metrics", c.Path())

	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "dungeon",
		Name:      "joins_total",
		Help:      "joins",
	})
	require.NoError(t, c.Registerer().Register(counter))
	counter.Add(3)

	body := scrape(t, c.Handler())
	assert.Contains(t, body, "dungeon_joins_total 3")
	assert.Contains(t, body, "promhttp_metric_handler_requests_total")
	assert.NotContains(t, body, "go_goroutines")
}

func TestConstLabels(t *testing.T) {
	c, err := New(&Config{ConstLabels: map[string]string{"instance": "d-1"}}, nil)
	require.NoError(t, err)

	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "sweeps_total", Help: "sweeps"})
	require.NoError(t, c.Registerer().Register(counter))
	counter.Inc()

	body := scrape(t, c.Handler())
	assert.Contains(t, body, `sweeps_total{instance="d-1"} 1`)
	// 运行时指标不经过 Registerer，不带固定标签
	assert.Contains(t, body, "go_goroutines ")
}

func TestStandaloneServer(t *testing.T) {
	c, err := New(&Config{Addr: "127.0.0.1:0", SkipRuntimeCollectors: true}, nil)
	require.NoError(t, err)
	require.True(t, c.Standalone())

	require.NoError(t, c.Start())
	t.Cleanup(func() { assert.NoError(t, c.Stop()) })

	resp, err := http.Get("http://" + c.ln.Addr().String() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "promhttp_metric_handler_requests_total")
}

func TestStopWithoutStart(t *testing.T) {
	c, err := New(nil, nil)
	require.NoError(t, err)
	assert.NoError(t, c.Start())
	assert.NoError(t, c.Stop())
}
