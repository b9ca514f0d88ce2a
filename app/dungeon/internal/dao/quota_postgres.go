package dao

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/cockroachdb/errors"
	"github.com/jonboulle/clockwork"
	"github.com/lk2023060901/xdooria-dungeon/app/dungeon/internal/model"
	"github.com/lk2023060901/xdooria-dungeon/pkg/database/postgres"
	"github.com/lk2023060901/xdooria-dungeon/pkg/logger"
)

// PostgresQuotaLedger 基于 PostgreSQL 的配额账本，每次操作在事务中行锁读改写
type PostgresQuotaLedger struct {
	db        *postgres.Client
	table     string
	maxPerDay int
	day       dayClock
	logger    logger.Logger
}

// NewPostgresQuotaLedger 创建 PostgreSQL 配额账本
func NewPostgresQuotaLedger(cfg *QuotaConfig, db *postgres.Client, clock clockwork.Clock, l logger.Logger) (*PostgresQuotaLedger, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	return &PostgresQuotaLedger{
		db:        db,
		table:     cfg.Table,
		maxPerDay: cfg.MaxPerDay,
		day:       dayClock{clock: clock, loc: loc},
		logger:    l.Named("dao.quota.postgres"),
	}, nil
}

// EnsureSchema 建表（已存在时跳过）
func (d *PostgresQuotaLedger) EnsureSchema(ctx context.Context) error {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	player_id     BIGINT PRIMARY KEY,
	remaining     INT NOT NULL,
	participation INT NOT NULL DEFAULT 0,
	highest_wave  INT NOT NULL DEFAULT 0,
	reset_date    TEXT NOT NULL
)`, d.table)

	if _, err := d.db.Exec(ctx, ddl); err != nil {
		return errors.Wrapf(err, "create table %s", d.table)
	}
	return nil
}

// mutate 在事务中锁定记录、懒重置并执行 fn，返回修改后的记录
func (d *PostgresQuotaLedger) mutate(ctx context.Context, playerID int64, fn func(rec *model.QuotaRecord) error) (*model.QuotaRecord, error) {
	today := d.day.today()
	var out model.QuotaRecord

	err := d.db.WithTx(ctx, func(tx postgres.Tx) error {
		insert, args, err := postgres.QueryBuilder.
			Insert(d.table).
			Columns("player_id", "remaining", "participation", "highest_wave", "reset_date").
			Values(playerID, d.maxPerDay, 0, 0, today).
			Suffix("ON CONFLICT (player_id) DO NOTHING").
			ToSql()
		if err != nil {
			return errors.Wrap(err, "build insert")
		}
		if _, err := tx.Exec(ctx, insert, args...); err != nil {
			return err
		}

		query, args, err := postgres.QueryBuilder.
			Select("player_id", "remaining", "participation", "highest_wave", "reset_date").
			From(d.table).
			Where(squirrel.Eq{"player_id": playerID}).
			Suffix("FOR UPDATE").
			ToSql()
		if err != nil {
			return errors.Wrap(err, "build select")
		}
		if err := tx.QueryOne(ctx, &out, query, args...); err != nil {
			return err
		}

		before := out
		out.Refresh(today, d.maxPerDay)
		if err := fn(&out); err != nil {
			return err
		}
		if out == before {
			return nil
		}

		update, args, err := postgres.QueryBuilder.
			Update(d.table).
			Set("remaining", out.Remaining).
			Set("participation", out.Participation).
			Set("highest_wave", out.HighestWave).
			Set("reset_date", out.ResetDate).
			Where(squirrel.Eq{"player_id": playerID}).
			ToSql()
		if err != nil {
			return errors.Wrap(err, "build update")
		}
		_, err = tx.Exec(ctx, update, args...)
		return err
	})
	if err != nil {
		if !errors.Is(err, ErrNoAttempts) {
			d.logger.Error("quota transaction failed", "player_id", playerID, "error", err)
		}
		return nil, err
	}

	return &out, nil
}

func (d *PostgresQuotaLedger) RemainingAttempts(ctx context.Context, playerID int64) (int, error) {
	rec, err := d.mutate(ctx, playerID, func(*model.QuotaRecord) error { return nil })
	if err != nil {
		return 0, err
	}
	return rec.Remaining, nil
}

func (d *PostgresQuotaLedger) ConsumeAttempt(ctx context.Context, playerID int64) error {
	_, err := d.mutate(ctx, playerID, func(rec *model.QuotaRecord) error {
		if !rec.Consume() {
			return ErrNoAttempts
		}
		return nil
	})
	return err
}

func (d *PostgresQuotaLedger) Penalize(ctx context.Context, playerID int64, n int) error {
	_, err := d.mutate(ctx, playerID, func(rec *model.QuotaRecord) error {
		rec.Penalize(n)
		return nil
	})
	return err
}

func (d *PostgresQuotaLedger) RecordHighestWave(ctx context.Context, playerID int64, wave int) error {
	_, err := d.mutate(ctx, playerID, func(rec *model.QuotaRecord) error {
		rec.RecordWave(wave)
		return nil
	})
	return err
}

// Record 只读查询，不加行锁也不写回，跨日重置只作用于返回值
func (d *PostgresQuotaLedger) Record(ctx context.Context, playerID int64) (*model.QuotaRecord, error) {
	today := d.day.today()
	query, args, err := postgres.QueryBuilder.
		Select("player_id", "remaining", "participation", "highest_wave", "reset_date").
		From(d.table).
		Where(squirrel.Eq{"player_id": playerID}).
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "build select")
	}

	var rec model.QuotaRecord
	if err := d.db.QueryOne(ctx, &rec, query, args...); err != nil {
		if errors.Is(err, postgres.ErrNoRows) {
			return model.NewQuotaRecord(playerID, today, d.maxPerDay), nil
		}
		d.logger.Error("quota query failed", "player_id", playerID, "error", err)
		return nil, err
	}
	rec.Refresh(today, d.maxPerDay)
	return &rec, nil
}
