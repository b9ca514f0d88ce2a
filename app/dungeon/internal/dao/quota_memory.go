package dao

import (
	"context"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/lk2023060901/xdooria-dungeon/app/dungeon/internal/model"
	"github.com/lk2023060901/xdooria-dungeon/pkg/logger"
)

// MemoryQuotaLedger 进程内配额账本，用于单机部署和测试
type MemoryQuotaLedger struct {
	maxPerDay int
	day       dayClock
	logger    logger.Logger

	mu      sync.Mutex
	records map[int64]*model.QuotaRecord
}

// NewMemoryQuotaLedger 创建进程内配额账本
func NewMemoryQuotaLedger(cfg *QuotaConfig, clock clockwork.Clock, l logger.Logger) (*MemoryQuotaLedger, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	return &MemoryQuotaLedger{
		maxPerDay: cfg.MaxPerDay,
		day:       dayClock{clock: clock, loc: loc},
		logger:    l.Named("dao.quota.memory"),
		records:   make(map[int64]*model.QuotaRecord),
	}, nil
}

// load 取出并懒重置记录，调用方持有锁
func (d *MemoryQuotaLedger) load(playerID int64) *model.QuotaRecord {
	today := d.day.today()
	rec, ok := d.records[playerID]
	if !ok {
		rec = model.NewQuotaRecord(playerID, today, d.maxPerDay)
		d.records[playerID] = rec
		return rec
	}
	if rec.Refresh(today, d.maxPerDay) {
		d.logger.Debug("quota reset", "player_id", playerID, "date", today)
	}
	return rec
}

func (d *MemoryQuotaLedger) RemainingAttempts(_ context.Context, playerID int64) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.load(playerID).Remaining, nil
}

func (d *MemoryQuotaLedger) ConsumeAttempt(_ context.Context, playerID int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.load(playerID).Consume() {
		return ErrNoAttempts
	}
	return nil
}

func (d *MemoryQuotaLedger) Penalize(_ context.Context, playerID int64, n int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.load(playerID).Penalize(n)
	return nil
}

func (d *MemoryQuotaLedger) RecordHighestWave(_ context.Context, playerID int64, wave int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.load(playerID).RecordWave(wave)
	return nil
}

func (d *MemoryQuotaLedger) Record(_ context.Context, playerID int64) (*model.QuotaRecord, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	rec := *d.load(playerID)
	return &rec, nil
}
