package sentry

import (
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const testDSN = "https://public@sentry.example.com/1"

// recorder 记录事件并丢弃，不发出网络请求
type recorder struct {
	mu     sync.Mutex
	events []*sentry.Event
}

func (r *recorder) beforeSend(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recorder) all() []*sentry.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*sentry.Event(nil), r.events...)
}

func newTestClient(t *testing.T, cfg *Config) (*Client, *recorder) {
	t.Helper()
	rec := &recorder{}
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.DSN = testDSN
	c, err := New(cfg, WithBeforeSend(rec.beforeSend))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, rec
}

func entry(level zapcore.Level, msg string) zapcore.Entry {
	return zapcore.Entry{Level: level, Message: msg, LoggerName: "service.dungeon", Time: time.Now()}
}

func TestConfigValidate(t *testing.T) {
	valid := func() *Config {
		c := DefaultConfig()
		c.DSN = testDSN
		return c
	}
	tests := []struct {
		name    string
		cfg     func() *Config
		wantErr error
	}{
		{"nil", func() *Config { return nil }, ErrNilConfig},
		{"no dsn", DefaultConfig, ErrInvalidDSN},
		{"ok", valid, nil},
		{"zero sample rate", func() *Config { c := valid(); c.SampleRate = 0; return c }, ErrInvalidConfig},
		{"sample rate above one", func() *Config { c := valid(); c.SampleRate = 2; return c }, ErrInvalidConfig},
		{"unknown level", func() *Config { c := valid(); c.MinLevel = "loud"; return c }, ErrInvalidConfig},
		{"level below warn", func() *Config { c := valid(); c.MinLevel = "info"; return c }, ErrInvalidConfig},
		{"bad pattern", func() *Config { c := valid(); c.IgnoreMessages = []string{"("}; return c }, ErrInvalidConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.cfg().Validate(), tt.wantErr)
		})
	}

	assert.False(t, (*Config)(nil).Enabled())
	assert.False(t, DefaultConfig().Enabled())
	assert.True(t, valid().Enabled())
}

func TestNewRequiresDSN(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, ErrInvalidDSN)
}

func TestLogHook(t *testing.T) {
	t.Run("error level", func(t *testing.T) {
		c, rec := newTestClient(t, &Config{Tags: map[string]string{"service": "dungeon"}})
		hook := LogHook(c)

		assert.True(t, hook.OnWrite(entry(zapcore.InfoLevel, "instance created"), nil))
		assert.True(t, hook.OnWrite(entry(zapcore.WarnLevel, "event dropped"), nil))
		assert.True(t, hook.OnWrite(entry(zapcore.ErrorLevel, "instance sweep panicked"), []zapcore.Field{
			zap.Int64("instance_id", 5001),
			zap.String("panic", "nil map"),
		}))

		events := rec.all()
		require.Len(t, events, 1)
		ev := events[0]
		assert.Equal(t, "instance sweep panicked", ev.Message)
		assert.Equal(t, "service.dungeon", ev.Logger)
		assert.Equal(t, sentry.LevelError, ev.Level)
		assert.Equal(t, []string{"service.dungeon", "instance sweep panicked"}, ev.Fingerprint)
		assert.Equal(t, int64(5001), ev.Extra["instance_id"])
		assert.Equal(t, "nil map", ev.Extra["panic"])
		assert.Equal(t, "dungeon", ev.Tags["service"])
		assert.Empty(t, ev.Exception)
	})

	t.Run("warn level", func(t *testing.T) {
		c, rec := newTestClient(t, &Config{MinLevel: "warn"})
		hook := LogHook(c)

		hook.OnWrite(entry(zapcore.WarnLevel, "event dropped"), nil)
		hook.OnWrite(entry(zapcore.DebugLevel, "tick"), nil)

		events := rec.all()
		require.Len(t, events, 1)
		assert.Equal(t, sentry.LevelWarning, events[0].Level)
	})

	t.Run("error field becomes exception", func(t *testing.T) {
		c, rec := newTestClient(t, nil)
		hook := LogHook(c)

		hook.OnWrite(entry(zapcore.ErrorLevel, "quota transaction failed"), []zapcore.Field{
			zap.Error(errors.New("ledger unavailable")),
		})

		events := rec.all()
		require.Len(t, events, 1)
		require.Len(t, events[0].Exception, 1)
		assert.Equal(t, "ledger unavailable", events[0].Exception[0].Value)
		assert.Equal(t, "ledger unavailable", events[0].Extra["error"])
	})

	t.Run("ignored message", func(t *testing.T) {
		c, rec := newTestClient(t, &Config{IgnoreMessages: []string{"^client disconnected"}})
		hook := LogHook(c)

		hook.OnWrite(entry(zapcore.ErrorLevel, "client disconnected mid-request"), nil)
		hook.OnWrite(entry(zapcore.ErrorLevel, "sweep failed"), nil)

		events := rec.all()
		require.Len(t, events, 1)
		assert.Equal(t, "sweep failed", events[0].Message)
	})

	t.Run("closed client", func(t *testing.T) {
		c, rec := newTestClient(t, nil)
		require.NoError(t, c.Close())
		require.NoError(t, c.Close())

		LogHook(c).OnWrite(entry(zapcore.ErrorLevel, "after close"), nil)
		assert.Empty(t, rec.all())
	})
}
