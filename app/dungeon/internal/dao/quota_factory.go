package dao

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/jonboulle/clockwork"
	"github.com/lk2023060901/xdooria-dungeon/app/dungeon/internal/metrics"
	"github.com/lk2023060901/xdooria-dungeon/pkg/config"
	"github.com/lk2023060901/xdooria-dungeon/pkg/database/postgres"
	"github.com/lk2023060901/xdooria-dungeon/pkg/database/redis"
	"github.com/lk2023060901/xdooria-dungeon/pkg/logger"
)

// QuotaBackends 配额驱动可用的外部存储，按驱动只需提供其一
type QuotaBackends struct {
	Redis    *redis.Client
	Postgres *postgres.Client
}

// NewQuotaLedger 按配置创建配额账本，并包装指标记录
func NewQuotaLedger(
	ctx context.Context,
	cfg *QuotaConfig,
	backends QuotaBackends,
	clock clockwork.Clock,
	m *metrics.DungeonMetrics,
	l logger.Logger,
) (QuotaLedger, error) {
	newCfg, err := config.MergeConfig(DefaultQuotaConfig(), cfg)
	if err != nil {
		return nil, errors.Wrap(err, "merge quota config")
	}

	var ledger QuotaLedger
	switch newCfg.Driver {
	case DriverMemory:
		ledger, err = NewMemoryQuotaLedger(newCfg, clock, l)
	case DriverRedis:
		if backends.Redis == nil {
			return nil, errors.New("redis quota driver requires a redis client")
		}
		ledger, err = NewRedisQuotaLedger(newCfg, backends.Redis, clock, l)
	case DriverPostgres:
		if backends.Postgres == nil {
			return nil, errors.New("postgres quota driver requires a postgres client")
		}
		var pg *PostgresQuotaLedger
		if pg, err = NewPostgresQuotaLedger(newCfg, backends.Postgres, clock, l); err == nil {
			err = pg.EnsureSchema(ctx)
		}
		ledger = pg
	default:
		return nil, errors.Wrapf(ErrUnknownDriver, "driver %q", newCfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	l.Named("dao.quota").Info("quota ledger ready", "driver", newCfg.Driver, "max_per_day", newCfg.MaxPerDay)
	return Instrument(ledger, newCfg.Driver, m, clock), nil
}
