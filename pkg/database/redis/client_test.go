package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestClient 连接本地测试实例，不可用时跳过
func newTestClient(t *testing.T) *Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping redis integration test in short mode")
	}

	client, err := NewClient(&Config{
		Standalone: &NodeConfig{Host: "localhost", Port: 16379},
		Pool:       PoolConfig{DialTimeout: time.Second},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Ping(ctx); err != nil {
		_ = client.Close()
		t.Skipf("redis not available: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestConfigValidate(t *testing.T) {
	node := func(port int) *NodeConfig { return &NodeConfig{Host: "localhost", Port: port} }
	withPool := func(c *Config) *Config {
		c.Pool = DefaultConfig().Pool
		return c
	}

	tests := []struct {
		name    string
		cfg     *Config
		wantErr error
	}{
		{name: "nil", cfg: nil, wantErr: ErrNilConfig},
		{name: "no mode", cfg: withPool(&Config{}), wantErr: ErrInvalidConfig},
		{name: "two modes", cfg: withPool(&Config{Standalone: node(6379), Cluster: &ClusterConfig{Addrs: []string{"a:1"}}}), wantErr: ErrInvalidConfig},
		{name: "replicas without master", cfg: withPool(&Config{Standalone: node(6379), Replicas: []NodeConfig{*node(6380)}}), wantErr: ErrInvalidConfig},
		{name: "empty host", cfg: withPool(&Config{Standalone: &NodeConfig{Port: 6379}}), wantErr: ErrInvalidConfig},
		{name: "bad replica port", cfg: withPool(&Config{Master: node(6379), Replicas: []NodeConfig{*node(0)}}), wantErr: ErrInvalidConfig},
		{name: "db out of range", cfg: withPool(&Config{Standalone: &NodeConfig{Host: "h", Port: 1, DB: 16}}), wantErr: ErrInvalidConfig},
		{name: "empty cluster", cfg: withPool(&Config{Cluster: &ClusterConfig{}}), wantErr: ErrInvalidConfig},
		{name: "no pool", cfg: &Config{Standalone: node(6379)}, wantErr: ErrInvalidConfig},
		{name: "standalone", cfg: withPool(&Config{Standalone: node(6379)})},
		{name: "master with replicas", cfg: withPool(&Config{Master: node(6379), Replicas: []NodeConfig{*node(6380)}})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestReaderSelection(t *testing.T) {
	cfg := func(readReplica bool) *Config {
		return &Config{
			Master:          &NodeConfig{Host: "localhost", Port: 16379},
			Replicas:        []NodeConfig{{Host: "localhost", Port: 16380}, {Host: "localhost", Port: 16381}},
			ReadFromReplica: readReplica,
		}
	}

	primaryOnly, err := NewClient(cfg(false))
	require.NoError(t, err)
	defer primaryOnly.Close()
	assert.Empty(t, primaryOnly.replicas)
	assert.Same(t, primaryOnly.primary, primaryOnly.reader())

	client, err := NewClient(cfg(true))
	require.NoError(t, err)
	defer client.Close()
	require.Len(t, client.replicas, 2)

	first := client.reader()
	second := client.reader()
	assert.Same(t, client.replicas[0], first)
	assert.Same(t, client.replicas[1], second)
	assert.Same(t, first, client.reader())
	assert.Same(t, client.primary, client.writer())

	// 未配置的连接池参数取默认值
	assert.Equal(t, DefaultConfig().Pool, client.cfg.Pool)
}

func TestRunScript(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()
	key := "test:script:counter"
	_, _ = client.Del(ctx, key)
	defer client.Del(ctx, key)

	script := NewScript(`
local v = redis.call('HINCRBY', KEYS[1], 'n', tonumber(ARGV[1]))
return {v, redis.call('HLEN', KEYS[1])}
`)
	assert.NotEmpty(t, script.Hash())

	vals, err := client.RunScriptInt64Slice(ctx, script, []string{key}, 3)
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 1}, vals)

	vals, err = client.RunScriptInt64Slice(ctx, script, []string{key}, 2)
	require.NoError(t, err)
	assert.Equal(t, []int64{5, 1}, vals)

	all, err := client.HGetAll(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"n": "5"}, all)

	n, err := client.Del(ctx, key)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	all, err = client.HGetAll(ctx, key)
	require.NoError(t, err)
	assert.Empty(t, all)
}
