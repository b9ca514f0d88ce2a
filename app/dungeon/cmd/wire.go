//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"
	"github.com/lk2023060901/xdooria-dungeon/app/dungeon/internal/handler"
	"github.com/lk2023060901/xdooria-dungeon/app/dungeon/internal/manager"
	"github.com/lk2023060901/xdooria-dungeon/app/dungeon/internal/metrics"
	"github.com/lk2023060901/xdooria-dungeon/app/dungeon/internal/service"
	"github.com/lk2023060901/xdooria-dungeon/pkg/app"
	"github.com/lk2023060901/xdooria-dungeon/pkg/config"
	"github.com/lk2023060901/xdooria-dungeon/pkg/logger"
	"github.com/lk2023060901/xdooria-dungeon/pkg/prometheus"
	"github.com/lk2023060901/xdooria-dungeon/pkg/scheduler"
)

func InitApp(cfg *Config, mgr config.Manager, l logger.Logger) (app.Application, func(), error) {
	panic(wire.Build(
		// 1. 基础框架 (BaseApp)
		app.ProviderSet,

		// 2. 时钟与定时任务
		provideClock,
		provideSchedulerConfig,
		scheduler.New,

		// 3. Prometheus 客户端
		providePrometheusConfig,
		prometheus.New,

		// 4. 指标收集
		provideMetricsConfig,
		metrics.New,
		provideHTTPMetrics,

		// 5. 数据层 (配额账本)
		provideQuotaBackends,
		provideQuotaLedger,

		// 6. 世界组件
		manager.NewSessionManager,
		manager.NewSceneManager,
		provideBroadcastManager,
		provideNpcManager,
		provideTracerProvider,
		provideEventPublisher,
		provideWorld,

		// 7. 逻辑层
		provideIDGenerator,
		provideRewardService,
		provideDungeonService,
		service.NewTickServer,

		// 8. 接口层
		provideWebServer,
		provideRateLimiter,
		handler.NewDungeonHandler,
		provideAdminGuards,
		provideReporter,

		// 9. 组装与应用配置
		provideAppOptions,
		provideAppComponents,
		app.InitApp,
	))
}
