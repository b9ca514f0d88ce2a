package handler

import (
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"github.com/lk2023060901/xdooria-dungeon/app/dungeon/internal/manager"
	"github.com/lk2023060901/xdooria-dungeon/app/dungeon/internal/metrics"
	"github.com/lk2023060901/xdooria-dungeon/app/dungeon/internal/model"
	"github.com/lk2023060901/xdooria-dungeon/app/dungeon/internal/service"
	"github.com/lk2023060901/xdooria-dungeon/pkg/logger"
	"github.com/lk2023060901/xdooria-dungeon/pkg/web"
	weberrors "github.com/lk2023060901/xdooria-dungeon/pkg/web/errors"
	"github.com/lk2023060901/xdooria-dungeon/pkg/web/middleware"
)

// PlayerHeader 客户端携带的玩家 ID，用于按玩家限流
const PlayerHeader = "X-Player-ID"

// DungeonHandler 副本接口处理器
type DungeonHandler struct {
	svc      *service.DungeonService
	messages *manager.BroadcastManager
	metrics  *metrics.DungeonMetrics
	logger   logger.Logger
}

// NewDungeonHandler 创建副本接口处理器，m 可以为 nil
func NewDungeonHandler(svc *service.DungeonService, messages *manager.BroadcastManager, m *metrics.DungeonMetrics, l logger.Logger) *DungeonHandler {
	return &DungeonHandler{
		svc:      svc,
		messages: messages,
		metrics:  m,
		logger:   l.Named("handler.dungeon"),
	}
}

// PlayerRequest 只携带玩家 ID 的请求
type PlayerRequest struct {
	PlayerID int64 `json:"player_id" binding:"required,gt=0"`
}

// JoinRequest 进入副本请求
type JoinRequest struct {
	PlayerID    int64 `json:"player_id" binding:"required,gt=0"`
	BypassQuota bool  `json:"bypass_quota"`
}

// LoginRequest 玩家上线请求，位置为持久化的上次位置
type LoginRequest struct {
	PlayerID    int64   `json:"player_id" binding:"required,gt=0"`
	Name        string  `json:"name"`
	Region      string  `json:"region"`
	Admin       bool    `json:"admin"`
	CompanionID int64   `json:"companion_id" binding:"gte=0"`
	MapID       int32   `json:"map_id" binding:"gte=0"`
	ZoneID      int64   `json:"zone_id" binding:"gte=0"`
	X           float32 `json:"x"`
	Y           float32 `json:"y"`
}

// WindowRequest 开放时间更新请求，为空表示全天开放
type WindowRequest struct {
	Windows []model.TimeWindow `json:"windows"`
}

// WindowResponse 开放时间
type WindowResponse struct {
	Description string `json:"description"`
	Open        bool   `json:"open"`
}

// StatsResponse 运行统计
type StatsResponse struct {
	Instances int               `json:"instances"`
	Open      bool              `json:"open"`
	Timers    service.TimerLoad `json:"timers"`
	Runtime   *metrics.Stats    `json:"runtime,omitempty"`
}

// Register 注册路由，guards 作用于管理接口
func (h *DungeonHandler) Register(r gin.IRouter, guards ...gin.HandlerFunc) {
	g := r.Group("/dungeon")
	{
		g.POST("/login", h.Login)
		g.POST("/logout", h.Logout)
		g.POST("/enter", h.Enter)
		g.POST("/join", h.Join)
		g.POST("/leave", h.Leave)
		g.POST("/enforce", h.Enforce)
		g.GET("/players/:id", h.Status)
		g.GET("/players/:id/messages", h.Messages)
		g.POST("/hostiles/:id/kill", h.KillHostile)
		g.GET("/window", h.Window)
		g.GET("/stats", h.Stats)
	}

	admin := g.Group("/admin", guards...)
	{
		admin.POST("/join", h.AdminJoin)
		admin.POST("/reset", h.Reset)
		admin.PUT("/window", h.SetWindow)
	}
}

// PlayerRateKey 限流键，优先按玩家，缺省按 IP
func PlayerRateKey(c *gin.Context) string {
	if id := c.GetHeader(PlayerHeader); id != "" {
		return "player:" + id
	}
	return middleware.ClientIPKey(c)
}

// Login 玩家上线
// @Summary 玩家上线
// @Tags dungeon
// @Accept json
// @Produce json
// @Param request body LoginRequest true "上线请求"
// @Success 200 {object} web.Response{data=service.PlayerStatus}
// @Router /dungeon/login [post]
func (h *DungeonHandler) Login(c *gin.Context) {
	var req LoginRequest
	if !web.BindAndValidate(c, &req) {
		return
	}

	player := model.Player{
		ID:          req.PlayerID,
		Name:        req.Name,
		Region:      req.Region,
		Admin:       req.Admin,
		CompanionID: req.CompanionID,
		Location: model.Location{
			MapID:  req.MapID,
			ZoneID: req.ZoneID,
			Pos:    model.Position{X: req.X, Y: req.Y},
		},
	}
	ctx := c.Request.Context()
	if err := h.svc.OnPlayerLogin(ctx, player); err != nil {
		h.fail(c, "login", req.PlayerID, err)
		return
	}
	h.status(c, req.PlayerID)
}

// Logout 玩家下线
// @Router /dungeon/logout [post]
func (h *DungeonHandler) Logout(c *gin.Context) {
	var req PlayerRequest
	if !web.BindAndValidate(c, &req) {
		return
	}
	h.svc.OnPlayerLogout(c.Request.Context(), req.PlayerID)
	web.Success(c, gin.H{"player_id": req.PlayerID})
}

// Enter 传送到副本地图入口
// @Router /dungeon/enter [post]
func (h *DungeonHandler) Enter(c *gin.Context) {
	var req PlayerRequest
	if !web.BindAndValidate(c, &req) {
		return
	}
	if err := h.svc.EnterDungeonMap(c.Request.Context(), req.PlayerID); err != nil {
		h.fail(c, "enter", req.PlayerID, err)
		return
	}
	h.status(c, req.PlayerID)
}

// Join 进入副本
// @Summary 进入副本
// @Description 已有进行中的副本时返回原副本
// @Tags dungeon
// @Accept json
// @Produce json
// @Param request body JoinRequest true "进入请求"
// @Success 200 {object} web.Response{data=service.JoinResult}
// @Failure 403 {object} web.Response
// @Failure 503 {object} web.Response
// @Router /dungeon/join [post]
func (h *DungeonHandler) Join(c *gin.Context) {
	var req JoinRequest
	if !web.BindAndValidate(c, &req) {
		return
	}
	res, err := h.svc.Join(c.Request.Context(), req.PlayerID, req.BypassQuota)
	if err != nil {
		h.fail(c, "join", req.PlayerID, err)
		return
	}
	web.Success(c, res)
}

// AdminJoin 管理员直接进入副本
// @Router /dungeon/admin/join [post]
func (h *DungeonHandler) AdminJoin(c *gin.Context) {
	var req PlayerRequest
	if !web.BindAndValidate(c, &req) {
		return
	}
	res, err := h.svc.AdminJoin(c.Request.Context(), req.PlayerID)
	if err != nil {
		h.fail(c, "admin_join", req.PlayerID, err)
		return
	}
	web.Success(c, res)
}

// Leave 离开副本
// @Router /dungeon/leave [post]
func (h *DungeonHandler) Leave(c *gin.Context) {
	var req PlayerRequest
	if !web.BindAndValidate(c, &req) {
		return
	}
	if err := h.svc.Leave(c.Request.Context(), req.PlayerID); err != nil {
		h.fail(c, "leave", req.PlayerID, err)
		return
	}
	h.status(c, req.PlayerID)
}

// Enforce 玩家切换地图时由游戏服调用，不在开放时间则把玩家请出副本地图
// @Router /dungeon/enforce [post]
func (h *DungeonHandler) Enforce(c *gin.Context) {
	var req PlayerRequest
	if !web.BindAndValidate(c, &req) {
		return
	}
	evicted := h.svc.EnforceTimeWindow(c.Request.Context(), req.PlayerID)
	web.Success(c, gin.H{"player_id": req.PlayerID, "evicted": evicted})
}

// Status 玩家副本状态
// @Router /dungeon/players/{id} [get]
func (h *DungeonHandler) Status(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	h.status(c, id)
}

// Messages 拉取推送给玩家的消息
// @Router /dungeon/players/{id}/messages [get]
func (h *DungeonHandler) Messages(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	msgs := h.messages.Drain(id)
	if msgs == nil {
		msgs = []manager.Message{}
	}
	web.Success(c, msgs)
}

// KillHostile 战斗系统上报怪物死亡
// @Router /dungeon/hostiles/{id}/kill [post]
func (h *DungeonHandler) KillHostile(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	hostile, ok := h.svc.KillHostile(id)
	if !ok {
		web.Fail(c, weberrors.CodeNotFound, "hostile not found")
		return
	}
	web.Success(c, hostile)
}

// Window 当前开放时间
// @Router /dungeon/window [get]
func (h *DungeonHandler) Window(c *gin.Context) {
	web.Success(c, WindowResponse{
		Description: h.svc.GetCurrentTimeWindowDescription(),
		Open:        h.svc.IsOpenNow(),
	})
}

// SetWindow 热更新开放时间
// @Router /dungeon/admin/window [put]
func (h *DungeonHandler) SetWindow(c *gin.Context) {
	var req WindowRequest
	if !web.BindAndValidate(c, &req) {
		return
	}
	if err := h.svc.SetTimeWindows(req.Windows); err != nil {
		web.Fail(c, weberrors.CodeInvalidParams, err.Error())
		return
	}
	h.logger.Info("time windows updated", "windows", len(req.Windows))
	h.Window(c)
}

// Reset 立即执行每日重置
// @Router /dungeon/admin/reset [post]
func (h *DungeonHandler) Reset(c *gin.Context) {
	before := h.svc.InstanceCount()
	h.svc.DailyReset(c.Request.Context())
	web.Success(c, gin.H{"instances": before})
}

// Stats 运行统计
// @Router /dungeon/stats [get]
func (h *DungeonHandler) Stats(c *gin.Context) {
	resp := StatsResponse{
		Instances: h.svc.InstanceCount(),
		Open:      h.svc.IsOpenNow(),
		Timers:    h.svc.TimerLoad(),
	}
	if h.metrics != nil {
		stats := h.metrics.GetStats()
		resp.Runtime = &stats
	}
	web.Success(c, resp)
}

func (h *DungeonHandler) status(c *gin.Context, playerID int64) {
	st, err := h.svc.Status(c.Request.Context(), playerID)
	if err != nil {
		h.fail(c, "status", playerID, err)
		return
	}
	web.Success(c, st)
}

// fail 把业务错误映射为错误码，提示信息对玩家可见
func (h *DungeonHandler) fail(c *gin.Context, op string, playerID int64, err error) {
	code := errorCode(err)
	if code == weberrors.CodeInternalError {
		h.logger.Error("request failed", "op", op, "player_id", playerID, "error", err)
	} else {
		h.logger.Debug("request rejected", "op", op, "player_id", playerID, "error", err)
	}
	web.Fail(c, code, service.UserMessage(err))
}

func errorCode(err error) int {
	switch {
	case errors.Is(err, service.ErrPlayerOffline),
		errors.Is(err, service.ErrNotInInstance):
		return weberrors.CodeNotFound
	case errors.Is(err, service.ErrNotInDungeonMap),
		errors.Is(err, service.ErrDungeonClosed),
		errors.Is(err, service.ErrOutOfAttempts),
		errors.Is(err, manager.ErrAdmissionDenied):
		return weberrors.CodeForbidden
	case errors.Is(err, manager.ErrPlayerRegistered):
		return weberrors.CodeConflict
	case errors.Is(err, service.ErrZoneAllocationFailed),
		errors.Is(err, manager.ErrMapUnavailable):
		return weberrors.CodeUnavailable
	default:
		return weberrors.CodeInternalError
	}
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		web.Fail(c, weberrors.CodeInvalidParams, "invalid id")
		return 0, false
	}
	return id, true
}
