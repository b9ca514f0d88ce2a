package main

import (
	"context"
	"net"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/lk2023060901/xdooria-dungeon/app/dungeon/internal/dao"
	"github.com/lk2023060901/xdooria-dungeon/app/dungeon/internal/event"
	"github.com/lk2023060901/xdooria-dungeon/app/dungeon/internal/handler"
	"github.com/lk2023060901/xdooria-dungeon/app/dungeon/internal/manager"
	"github.com/lk2023060901/xdooria-dungeon/app/dungeon/internal/metrics"
	"github.com/lk2023060901/xdooria-dungeon/app/dungeon/internal/model"
	"github.com/lk2023060901/xdooria-dungeon/app/dungeon/internal/service"
	"github.com/lk2023060901/xdooria-dungeon/pkg/app"
	"github.com/lk2023060901/xdooria-dungeon/pkg/config"
	"github.com/lk2023060901/xdooria-dungeon/pkg/database/postgres"
	"github.com/lk2023060901/xdooria-dungeon/pkg/database/redis"
	"github.com/lk2023060901/xdooria-dungeon/pkg/idgen"
	"github.com/lk2023060901/xdooria-dungeon/pkg/logger"
	"github.com/lk2023060901/xdooria-dungeon/pkg/otel"
	"github.com/lk2023060901/xdooria-dungeon/pkg/prometheus"
	"github.com/lk2023060901/xdooria-dungeon/pkg/registry"
	"github.com/lk2023060901/xdooria-dungeon/pkg/registry/etcd"
	"github.com/lk2023060901/xdooria-dungeon/pkg/scheduler"
	"github.com/lk2023060901/xdooria-dungeon/pkg/web"
	webmetrics "github.com/lk2023060901/xdooria-dungeon/pkg/web/metrics"
	"github.com/lk2023060901/xdooria-dungeon/pkg/web/middleware"
)

// serviceName 应用名称
const serviceName = "dungeon"

func provideClock() clockwork.Clock {
	return clockwork.NewRealClock()
}

// provideSchedulerConfig 提供定时任务配置
func provideSchedulerConfig(cfg *Config) *scheduler.Config {
	return &cfg.Scheduler
}

// providePrometheusConfig 提供 Prometheus 配置
func providePrometheusConfig(cfg *Config) *prometheus.Config {
	return &cfg.Prometheus
}

// provideMetricsConfig 提供指标配置
func provideMetricsConfig(cfg *Config) *metrics.Config {
	return &cfg.Metrics
}

// provideHTTPMetrics 提供接口指标，与业务指标共用命名空间
func provideHTTPMetrics(m *metrics.DungeonMetrics) *webmetrics.HTTPMetrics {
	return webmetrics.New(m.Namespace())
}

// provideQuotaBackends 按配额驱动创建外部存储连接
func provideQuotaBackends(cfg *Config, l logger.Logger) (dao.QuotaBackends, func(), error) {
	var backends dao.QuotaBackends
	cleanup := func() {}

	switch cfg.Quota.Driver {
	case dao.DriverRedis:
		client, err := redis.NewClient(&cfg.Redis)
		if err != nil {
			return backends, nil, errors.Wrap(err, "create redis client")
		}
		backends.Redis = client
		cleanup = func() {
			if err := client.Close(); err != nil {
				l.Error("failed to close redis client", "error", err)
			}
		}
	case dao.DriverPostgres:
		client, err := postgres.New(&cfg.Database, l)
		if err != nil {
			return backends, nil, errors.Wrap(err, "create postgres client")
		}
		backends.Postgres = client
		cleanup = func() {
			if err := client.Close(); err != nil {
				l.Error("failed to close postgres client", "error", err)
			}
		}
	}
	return backends, cleanup, nil
}

// provideQuotaLedger 提供配额账本
func provideQuotaLedger(
	cfg *Config,
	backends dao.QuotaBackends,
	clock clockwork.Clock,
	m *metrics.DungeonMetrics,
	l logger.Logger,
) (dao.QuotaLedger, error) {
	return dao.NewQuotaLedger(context.Background(), &cfg.Quota, backends, clock, m, l)
}

// provideBroadcastManager 提供玩家消息队列
func provideBroadcastManager(cfg *Config, clock clockwork.Clock, scenes *manager.SceneManager, l logger.Logger) *manager.BroadcastManager {
	return manager.NewBroadcastManager(l, clock, scenes, cfg.Dungeon.MessageCapacity)
}

// provideNpcManager 怪物 ID 使用进程内自增序列
func provideNpcManager(l logger.Logger) *manager.NpcManager {
	return manager.NewNpcManager(l, idgen.NewSequence(0))
}

// provideTracerProvider 提供链路追踪，未启用时为 noop
func provideTracerProvider(cfg *Config, l logger.Logger) (*otel.TracerProvider, func(), error) {
	if cfg.Tracing.ServiceName == "" {
		cfg.Tracing.ServiceName = serviceName
	}
	tp, err := otel.New(&cfg.Tracing, l)
	if err != nil {
		return nil, nil, errors.Wrap(err, "create tracer provider")
	}
	cleanup := func() {
		if err := tp.Close(); err != nil {
			l.Error("failed to flush traces", "error", err)
		}
	}
	return tp, cleanup, nil
}

// provideEventPublisher 提供生命周期事件发布器，未启用时为 Noop
func provideEventPublisher(cfg *Config, sched *scheduler.Scheduler, tp *otel.TracerProvider, l logger.Logger) (event.Publisher, func(), error) {
	var tracer otel.Tracer
	if tp.IsEnabled() {
		tracer = tp.Tracer("event.publisher")
	}
	return event.New(&cfg.Events, sched, tracer, l)
}

func provideWorld(
	sessions *manager.SessionManager,
	scenes *manager.SceneManager,
	messages *manager.BroadcastManager,
	npcs *manager.NpcManager,
	events event.Publisher,
) *service.World {
	return &service.World{
		Sessions:  sessions,
		Scenes:    scenes,
		Messenger: messages,
		Npcs:      npcs,
		Events:    events,
	}
}

// provideIDGenerator 提供副本 ID 生成器
func provideIDGenerator(cfg *Config) (idgen.Generator, error) {
	return idgen.New(&cfg.IDGen)
}

// provideRewardService 提供波次奖励服务
func provideRewardService(cfg *Config, l logger.Logger) (*service.RewardService, error) {
	return service.NewRewardService(&cfg.Reward, l)
}

// provideDungeonService 提供副本编排服务
func provideDungeonService(
	cfg *Config,
	sched *scheduler.Scheduler,
	ledger dao.QuotaLedger,
	rewards *service.RewardService,
	world *service.World,
	ids idgen.Generator,
	m *metrics.DungeonMetrics,
	l logger.Logger,
) (*service.DungeonService, error) {
	return service.NewDungeonService(&cfg.Dungeon, &cfg.Quota, sched, ledger, rewards, world, ids, m, l)
}

// provideWebServer 提供 HTTP 服务
func provideWebServer(cfg *Config, l logger.Logger) (*web.Server, error) {
	return web.NewServer(&cfg.HTTP, l)
}

// provideRateLimiter 按玩家限流
func provideRateLimiter(cfg *Config, l logger.Logger) (*middleware.RateLimiter, error) {
	return middleware.NewRateLimiter(&cfg.RateLimit, handler.PlayerRateKey, l)
}

// provideReporter 启用服务注册时把节点负载写入 etcd，未启用时返回 nil
func provideReporter(
	cfg *Config,
	m *metrics.DungeonMetrics,
	sched *scheduler.Scheduler,
	l logger.Logger,
) (*metrics.Reporter, func(), error) {
	if !cfg.Registry.Enabled {
		return nil, func() {}, nil
	}

	registrar, err := etcd.NewRegistrar(&cfg.Registry, l)
	if err != nil {
		return nil, nil, errors.Wrap(err, "create registrar")
	}
	cleanup := func() {
		if err := registrar.Close(); err != nil {
			l.Error("failed to close etcd client", "error", err)
		}
	}

	addr := cfg.Registry.ServiceAddr
	if addr == "" {
		addr = net.JoinHostPort(hostname(), cfg.HTTP.Port())
	}
	info := registry.ServiceInfo{
		ServiceName: serviceName,
		Address:     addr,
	}
	reporter, err := metrics.NewReporter(&cfg.Reporter, info, m, registrar, sched, l)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return reporter, cleanup, nil
}

func hostname() string {
	name, err := os.Hostname()
	if err != nil {
		return "localhost"
	}
	return name
}

// provideAdminGuards 提供管理接口鉴权
func provideAdminGuards(cfg *Config, l logger.Logger) (handler.AdminGuards, error) {
	return handler.NewAdminGuards(&cfg.Admin, l)
}

func provideAppOptions(cfg *Config, l logger.Logger) []app.Option {
	return []app.Option{
		app.WithName(serviceName),
		app.WithLogger(l),
	}
}

func provideAppComponents(
	baseApp *app.BaseApp,
	webServer *web.Server,
	limiter *middleware.RateLimiter,
	httpMetrics *webmetrics.HTTPMetrics,
	h *handler.DungeonHandler,
	guards handler.AdminGuards,
	reporter *metrics.Reporter,
	tp *otel.TracerProvider,
	tick *service.TickServer,
	svc *service.DungeonService,
	sched *scheduler.Scheduler,
	promClient *prometheus.Client,
	dungeonMetrics *metrics.DungeonMetrics,
	mgr config.Manager,
) (app.AppComponents, error) {
	// 注册指标到 Prometheus
	if err := dungeonMetrics.Register(promClient.Registerer()); err != nil {
		return app.AppComponents{}, errors.Wrap(err, "register dungeon metrics")
	}
	if err := httpMetrics.Register(promClient.Registerer()); err != nil {
		return app.AppComponents{}, errors.Wrap(err, "register http metrics")
	}

	// 注册路由
	router := webServer.Router()
	router.GET("/health", func(c *gin.Context) {
		web.Success(c, gin.H{"status": "ok"})
	})
	if !promClient.Standalone() {
		router.GET(promClient.Path(), gin.WrapH(promClient.Handler()))
	}
	api := router.Group("", middleware.Metrics(httpMetrics), middleware.RateLimit(limiter))
	if tp.IsEnabled() {
		api.Use(middleware.Tracing(tp.Tracer("web")))
	}
	h.Register(api, guards...)

	// 开放时间热更新，只关心 dungeon 段的变化
	l := baseApp.AppLogger()
	if err := mgr.Watch("dungeon", func() { reloadTimeWindows(mgr, svc, l) }); err != nil {
		return app.AppComponents{}, errors.Wrap(err, "watch config")
	}

	servers := []app.Server{tick, webServer, promClient}
	if reporter != nil {
		servers = append(servers, reporter)
	}

	return app.AppComponents{
		Servers: servers,
		// 逆序关闭：先停止配置监听，热更新不会再触碰已关闭的调度器
		Closers: []app.Closer{
			sched,
			mgr,
		},
	}, nil
}

// reloadTimeWindows 配置文件变化时重新加载开放时间
func reloadTimeWindows(mgr config.Manager, svc *service.DungeonService, l logger.Logger) {
	var windows []model.TimeWindow
	if !mgr.GetBool("dungeon.always_open") {
		if err := mgr.UnmarshalKey("dungeon.time_windows", &windows); err != nil {
			l.Error("failed to reload time windows", "error", err)
			return
		}
		if len(windows) == 0 {
			windows = svc.Config().TimeWindows
		}
	}
	if err := svc.SetTimeWindows(windows); err != nil {
		l.Error("invalid time windows, keeping previous", "error", err)
		return
	}
	l.Info("time windows reloaded", "windows", svc.GetCurrentTimeWindowDescription())
}
