package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/lk2023060901/xdooria-dungeon/app/dungeon/internal/dao"
	"github.com/lk2023060901/xdooria-dungeon/app/dungeon/internal/manager"
	"github.com/lk2023060901/xdooria-dungeon/app/dungeon/internal/metrics"
	"github.com/lk2023060901/xdooria-dungeon/app/dungeon/internal/service"
	"github.com/lk2023060901/xdooria-dungeon/pkg/idgen"
	"github.com/lk2023060901/xdooria-dungeon/pkg/logger"
	"github.com/lk2023060901/xdooria-dungeon/pkg/scheduler"
	"github.com/lk2023060901/xdooria-dungeon/pkg/security"
	"github.com/lk2023060901/xdooria-dungeon/pkg/web"
	weberrors "github.com/lk2023060901/xdooria-dungeon/pkg/web/errors"
	"github.com/lk2023060901/xdooria-dungeon/pkg/web/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type apiResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestEngine(t *testing.T, guards ...gin.HandlerFunc) (*gin.Engine, *service.DungeonService) {
	t.Helper()
	l := logger.NewNoop()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 10, 15, 10, 0, 0, 0, time.Local))

	sched, err := scheduler.New(&scheduler.Config{PoolSize: 8}, clock, l)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sched.Close() })

	m, err := metrics.New(nil, clock)
	require.NoError(t, err)

	ledger, err := dao.NewMemoryQuotaLedger(dao.DefaultQuotaConfig(), clock, l)
	require.NoError(t, err)
	rewards, err := service.NewRewardService(nil, l)
	require.NoError(t, err)

	scenes := manager.NewSceneManager(l)
	messages := manager.NewBroadcastManager(l, clock, scenes, 32)
	world := &service.World{
		Sessions:  manager.NewSessionManager(l),
		Scenes:    scenes,
		Messenger: messages,
		Npcs:      manager.NewNpcManager(l, idgen.NewSequence(0)),
	}
	svc, err := service.NewDungeonService(nil, nil, sched, ledger, rewards, world, idgen.NewSequence(0), m, l)
	require.NoError(t, err)

	engine := gin.New()
	NewDungeonHandler(svc, messages, m, l).Register(engine, guards...)
	return engine, svc
}

func call(t *testing.T, engine http.Handler, method, path, body string) (int, apiResponse) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	var resp apiResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w.Code, resp
}

func TestDungeonFlow(t *testing.T) {
	engine, svc := newTestEngine(t)

	status, resp := call(t, engine, http.MethodPost, "/dungeon/login", `{"player_id":7,"region":"eu","map_id":1001}`)
	require.Equal(t, http.StatusOK, status)

	status, resp = call(t, engine, http.MethodPost, "/dungeon/join", `{"player_id":7}`)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "not in the dungeon map", resp.Message)

	status, _ = call(t, engine, http.MethodPost, "/dungeon/enter", `{"player_id":7}`)
	require.Equal(t, http.StatusOK, status)

	status, resp = call(t, engine, http.MethodPost, "/dungeon/join", `{"player_id":7}`)
	require.Equal(t, http.StatusOK, status)
	var joined service.JoinResult
	require.NoError(t, json.Unmarshal(resp.Data, &joined))
	assert.False(t, joined.Existing)
	assert.Equal(t, 1, joined.Instance.Wave)

	_, resp = call(t, engine, http.MethodPost, "/dungeon/join", `{"player_id":7}`)
	require.NoError(t, json.Unmarshal(resp.Data, &joined))
	assert.True(t, joined.Existing)

	status, resp = call(t, engine, http.MethodGet, "/dungeon/players/7", "")
	require.Equal(t, http.StatusOK, status)
	var st service.PlayerStatus
	require.NoError(t, json.Unmarshal(resp.Data, &st))
	assert.True(t, st.InInstance)
	assert.Equal(t, 2, st.Remaining)

	status, _ = call(t, engine, http.MethodPost, "/dungeon/leave", `{"player_id":7}`)
	require.Equal(t, http.StatusOK, status)
	assert.False(t, svc.IsPlayerInInstance(7))

	status, resp = call(t, engine, http.MethodPost, "/dungeon/leave", `{"player_id":7}`)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "you are not in a dungeon instance", resp.Message)

	_, resp = call(t, engine, http.MethodGet, "/dungeon/players/7/messages", "")
	var msgs []manager.Message
	require.NoError(t, json.Unmarshal(resp.Data, &msgs))
	assert.NotEmpty(t, msgs)

	_, resp = call(t, engine, http.MethodGet, "/dungeon/players/7/messages", "")
	require.NoError(t, json.Unmarshal(resp.Data, &msgs))
	assert.Empty(t, msgs)

	status, _ = call(t, engine, http.MethodPost, "/dungeon/logout", `{"player_id":7}`)
	assert.Equal(t, http.StatusOK, status)
}

func TestDungeonErrors(t *testing.T) {
	engine, _ := newTestEngine(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		code   int
	}{
		{"offline join", http.MethodPost, "/dungeon/join", `{"player_id":1}`, http.StatusNotFound, weberrors.CodeNotFound},
		{"missing player", http.MethodPost, "/dungeon/join", `{}`, http.StatusBadRequest, weberrors.CodeInvalidParams},
		{"offline enter", http.MethodPost, "/dungeon/enter", `{"player_id":1}`, http.StatusNotFound, weberrors.CodeNotFound},
		{"bad path id", http.MethodGet, "/dungeon/players/abc", "", http.StatusBadRequest, weberrors.CodeInvalidParams},
		{"unknown hostile", http.MethodPost, "/dungeon/hostiles/99/kill", "", http.StatusNotFound, weberrors.CodeNotFound},
		{"bad window", http.MethodPut, "/dungeon/admin/window", `{"windows":[{"open":"late","close":"23:00:00"}]}`, http.StatusBadRequest, weberrors.CodeInvalidParams},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, resp := call(t, engine, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, resp.Code)
		})
	}
}

func TestAdminEndpoints(t *testing.T) {
	engine, svc := newTestEngine(t)

	_, _ = call(t, engine, http.MethodPost, "/dungeon/login", `{"player_id":3,"map_id":1001}`)
	status, _ := call(t, engine, http.MethodPost, "/dungeon/admin/join", `{"player_id":3}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1, svc.InstanceCount())

	status, resp := call(t, engine, http.MethodGet, "/dungeon/stats", "")
	require.Equal(t, http.StatusOK, status)
	var stats StatsResponse
	require.NoError(t, json.Unmarshal(resp.Data, &stats))
	assert.Equal(t, 1, stats.Instances)
	assert.GreaterOrEqual(t, stats.Timers.Pending, 1)
	assert.GreaterOrEqual(t, stats.Timers.Running, 0)
	assert.NotNil(t, stats.Runtime)

	status, _ = call(t, engine, http.MethodPost, "/dungeon/admin/reset", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 0, svc.InstanceCount())

	status, resp = call(t, engine, http.MethodPut, "/dungeon/admin/window", `{"windows":[{"open":"20:00:00","close":"21:00:00"}]}`)
	require.Equal(t, http.StatusOK, status)
	var window WindowResponse
	require.NoError(t, json.Unmarshal(resp.Data, &window))
	assert.Equal(t, "20:00:00-21:00:00", window.Description)
	assert.False(t, window.Open)

	_, _ = call(t, engine, http.MethodPost, "/dungeon/login", `{"player_id":4,"map_id":1001}`)
	status, resp = call(t, engine, http.MethodPost, "/dungeon/enforce", `{"player_id":4}`)
	require.Equal(t, http.StatusOK, status)
	var enforced struct {
		Evicted bool `json:"evicted"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &enforced))
	assert.False(t, enforced.Evicted)

	status, resp = call(t, engine, http.MethodPut, "/dungeon/admin/window", `{"windows":[]}`)
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(resp.Data, &window))
	assert.Equal(t, "all day", window.Description)
	assert.True(t, window.Open)
}

func TestPlayerRateLimit(t *testing.T) {
	limiter, err := middleware.NewRateLimiter(&middleware.RateLimitConfig{
		RequestsPerSecond: 0.001,
		Burst:             1,
	}, PlayerRateKey, logger.NewNoop())
	require.NoError(t, err)

	engine := gin.New()
	engine.Use(middleware.RateLimit(limiter))
	engine.GET("/dungeon/window", func(c *gin.Context) { web.Success(c, nil) })

	get := func(player string) int {
		req := httptest.NewRequest(http.MethodGet, "/dungeon/window", nil)
		req.Header.Set(PlayerHeader, player)
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, get("7"))
	assert.Equal(t, http.StatusTooManyRequests, get("7"))
	assert.Equal(t, http.StatusOK, get("8"))
}

func TestAdminGuards(t *testing.T) {
	guards, err := NewAdminGuards(&AdminConfig{}, logger.NewNoop())
	require.NoError(t, err)
	assert.Empty(t, guards)

	_, err = NewAdminGuards(&AdminConfig{Enabled: true}, logger.NewNoop())
	assert.ErrorIs(t, err, security.ErrSecretKeyEmpty)

	cfg := &AdminConfig{
		Enabled:  true,
		Role:     "admin",
		JWT:      security.JWTConfig{SecretKey: "ops-secret"},
		IPFilter: &security.IPFilterConfig{IPs: []string{"10.0.0.0/8"}},
	}
	guards, err = NewAdminGuards(cfg, logger.NewNoop())
	require.NoError(t, err)
	assert.Len(t, guards, 3)

	engine, svc := newTestEngine(t, guards...)
	m, err := security.NewJWTManager(&cfg.JWT)
	require.NoError(t, err)
	token, err := m.GenerateToken(&security.Claims{Role: "admin"})
	require.NoError(t, err)

	reset := func(ip, token string) int {
		req := httptest.NewRequest(http.MethodPost, "/dungeon/admin/reset", nil)
		req.RemoteAddr = ip + ":4000"
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusForbidden, reset("192.168.1.5", token))
	assert.Equal(t, http.StatusUnauthorized, reset("10.0.0.5", ""))
	assert.Equal(t, http.StatusOK, reset("10.0.0.5", token))

	// 非管理接口不受影响
	status, _ := call(t, engine, http.MethodGet, "/dungeon/window", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, 0, svc.InstanceCount())
}
