package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/lk2023060901/xdooria-dungeon/app/dungeon/internal/dao"
	"github.com/lk2023060901/xdooria-dungeon/app/dungeon/internal/event"
	"github.com/lk2023060901/xdooria-dungeon/app/dungeon/internal/handler"
	"github.com/lk2023060901/xdooria-dungeon/app/dungeon/internal/metrics"
	"github.com/lk2023060901/xdooria-dungeon/app/dungeon/internal/service"
	"github.com/lk2023060901/xdooria-dungeon/pkg/app"
	"github.com/lk2023060901/xdooria-dungeon/pkg/config"
	"github.com/lk2023060901/xdooria-dungeon/pkg/database/postgres"
	"github.com/lk2023060901/xdooria-dungeon/pkg/database/redis"
	"github.com/lk2023060901/xdooria-dungeon/pkg/idgen"
	"github.com/lk2023060901/xdooria-dungeon/pkg/logger"
	"github.com/lk2023060901/xdooria-dungeon/pkg/otel"
	"github.com/lk2023060901/xdooria-dungeon/pkg/prometheus"
	"github.com/lk2023060901/xdooria-dungeon/pkg/registry/etcd"
	"github.com/lk2023060901/xdooria-dungeon/pkg/scheduler"
	"github.com/lk2023060901/xdooria-dungeon/pkg/sentry"
	"github.com/lk2023060901/xdooria-dungeon/pkg/web"
	"github.com/lk2023060901/xdooria-dungeon/pkg/web/middleware"
	"github.com/spf13/pflag"
)

// Config 定义 Dungeon 服务的完整配置结构
type Config struct {
	Log logger.Config `mapstructure:"log"`

	// HTTP 接口配置
	HTTP web.Config `mapstructure:"http"`

	// 管理接口鉴权配置
	Admin handler.AdminConfig `mapstructure:"admin"`

	// 接口限流配置
	RateLimit middleware.RateLimitConfig `mapstructure:"rate_limit"`

	// Prometheus 配置
	Prometheus prometheus.Config `mapstructure:"prometheus"`

	// 指标配置
	Metrics metrics.Config `mapstructure:"metrics"`

	// Redis 配置（quota.driver=redis 时使用）
	Redis redis.Config `mapstructure:"redis"`

	// PostgreSQL 配置（quota.driver=postgres 时使用）
	Database postgres.Config `mapstructure:"database"`

	// 每日次数配置
	Quota dao.QuotaConfig `mapstructure:"quota"`

	// 副本玩法配置
	Dungeon service.Config `mapstructure:"dungeon"`

	// 波次奖励配置
	Reward service.RewardConfig `mapstructure:"reward"`

	// 定时任务配置
	Scheduler scheduler.Config `mapstructure:"scheduler"`

	// 副本 ID 生成配置
	IDGen idgen.Config `mapstructure:"idgen"`

	// 生命周期事件发布配置
	Events event.Config `mapstructure:"events"`

	// 服务注册配置
	Registry etcd.Config `mapstructure:"registry"`

	// 节点负载上报配置
	Reporter metrics.ReporterConfig `mapstructure:"reporter"`

	// 链路追踪配置
	Tracing otel.Config `mapstructure:"tracing"`

	// 错误上报配置（dsn 为空时不上报）
	Sentry sentry.Config `mapstructure:"sentry"`
}

func main() {
	flags, err := app.ParseFlags(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		os.Exit(2)
	}
	if flags.ShowVersion {
		fmt.Println(app.GetInfo())
		return
	}

	// 1. 加载配置，热更新失败记录到默认日志
	var cfg Config
	mgr, err := app.LoadConfig(&cfg, flags, config.WithErrorHandler(func(err error) {
		logger.Default().Error("config reload failed", "error", err)
	}))
	if err != nil {
		panic(err)
	}

	// 2. 初始化错误上报，错误级别日志同步上报到 Sentry
	opts := []logger.Option{logger.WithContextExtractor(otel.LogFields)}
	if cfg.Sentry.Enabled() {
		reporter, err := sentry.New(&cfg.Sentry)
		if err != nil {
			panic(err)
		}
		defer reporter.Close()
		opts = append(opts, logger.WithHooks(sentry.LogHook(reporter)))
	}

	// 3. 初始化主日志
	l, err := logger.New(&cfg.Log, opts...)
	if err != nil {
		panic(err)
	}
	logger.SetDefault(l)

	// 日志等级随配置文件热更新，其余日志配置需要重启
	if err := mgr.Watch("log.level", func() {
		var lvl logger.Level
		if err := mgr.UnmarshalKey("log.level", &lvl); err != nil {
			l.Error("failed to read log level", "error", err)
			return
		}
		if err := l.SetLevel(lvl); err != nil {
			l.Error("invalid log level, keeping previous", "level", lvl, "error", err)
			return
		}
		l.Info("log level changed", "level", lvl)
	}); err != nil {
		l.Error("failed to watch log level", "error", err)
	}

	// 4. 通过 Wire 初始化应用
	application, cleanup, err := InitApp(&cfg, mgr, l)
	if err != nil {
		l.Error("failed to initialize application", "error", err)
		return
	}
	defer cleanup()

	// 5. 运行服务
	if err := application.Run(context.Background()); err != nil {
		l.Error("application exited with error", "error", err)
	}
}
