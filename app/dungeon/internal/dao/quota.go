package dao

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jonboulle/clockwork"
	"github.com/lk2023060901/xdooria-dungeon/app/dungeon/internal/metrics"
	"github.com/lk2023060901/xdooria-dungeon/app/dungeon/internal/model"
)

// 配额存储驱动
const (
	DriverMemory   = "memory"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
)

var (
	// ErrNoAttempts 今日次数已用完
	ErrNoAttempts = errors.New("no attempts remaining")
	// ErrUnknownDriver 未知的配额存储驱动
	ErrUnknownDriver = errors.New("unknown quota driver")
)

// QuotaConfig 配额配置
type QuotaConfig struct {
	// Driver 存储驱动：memory / redis / postgres
	Driver string `mapstructure:"driver" validate:"oneof=memory redis postgres"`
	// MaxPerDay 每日进入次数
	MaxPerDay int `mapstructure:"max_per_day" validate:"gt=0"`
	// Timezone 每日重置所用时区，空或 Local 为本地时区
	Timezone string `mapstructure:"timezone"`
	// KeyPrefix redis 驱动的键前缀
	KeyPrefix string `mapstructure:"key_prefix"`
	// Table postgres 驱动的表名
	Table string `mapstructure:"table"`
}

// DefaultQuotaConfig 默认配置
func DefaultQuotaConfig() *QuotaConfig {
	return &QuotaConfig{
		Driver:    DriverMemory,
		MaxPerDay: 3,
		Timezone:  "Local",
		KeyPrefix: "dungeon:quota:",
		Table:     "dungeon_quota",
	}
}

// Location 解析配置的时区
func (c *QuotaConfig) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid quota timezone %q", c.Timezone)
	}
	return loc, nil
}

// QuotaLedger 玩家每日副本次数账本
//
// 所有操作先按日期懒重置，剩余次数在任何并发下都不会小于 0。
type QuotaLedger interface {
	// RemainingAttempts 今日剩余次数
	RemainingAttempts(ctx context.Context, playerID int64) (int, error)
	// ConsumeAttempt 扣除一次并增加参与次数，次数为 0 时返回 ErrNoAttempts
	ConsumeAttempt(ctx context.Context, playerID int64) error
	// Penalize 扣除 n 次，最低为 0
	Penalize(ctx context.Context, playerID int64, n int) error
	// RecordHighestWave 记录最高波次
	RecordHighestWave(ctx context.Context, playerID int64, wave int) error
	// Record 读取完整记录
	Record(ctx context.Context, playerID int64) (*model.QuotaRecord, error)
}

// dayClock 按配置时区计算今日日期
type dayClock struct {
	clock clockwork.Clock
	loc   *time.Location
}

func (d dayClock) today() string {
	return model.DateOf(d.clock.Now(), d.loc)
}

// instrumentedLedger 为账本操作记录指标
type instrumentedLedger struct {
	next    QuotaLedger
	driver  string
	metrics *metrics.DungeonMetrics
	clock   clockwork.Clock
}

// Instrument 包装账本，记录每次操作的结果和耗时
func Instrument(next QuotaLedger, driver string, m *metrics.DungeonMetrics, clock clockwork.Clock) QuotaLedger {
	if m == nil {
		return next
	}
	return &instrumentedLedger{next: next, driver: driver, metrics: m, clock: clock}
}

func (l *instrumentedLedger) observe(op string, start time.Time, err error) {
	// 次数不足属于正常业务结果
	ok := err == nil || errors.Is(err, ErrNoAttempts)
	l.metrics.RecordQuotaOp(l.driver, op, ok, l.clock.Since(start).Seconds())
}

func (l *instrumentedLedger) RemainingAttempts(ctx context.Context, playerID int64) (n int, err error) {
	start := l.clock.Now()
	defer func() { l.observe("remaining", start, err) }()
	return l.next.RemainingAttempts(ctx, playerID)
}

func (l *instrumentedLedger) ConsumeAttempt(ctx context.Context, playerID int64) (err error) {
	start := l.clock.Now()
	defer func() { l.observe("consume", start, err) }()
	return l.next.ConsumeAttempt(ctx, playerID)
}

func (l *instrumentedLedger) Penalize(ctx context.Context, playerID int64, n int) (err error) {
	start := l.clock.Now()
	defer func() { l.observe("penalize", start, err) }()
	return l.next.Penalize(ctx, playerID, n)
}

func (l *instrumentedLedger) RecordHighestWave(ctx context.Context, playerID int64, wave int) (err error) {
	start := l.clock.Now()
	defer func() { l.observe("highest_wave", start, err) }()
	return l.next.RecordHighestWave(ctx, playerID, wave)
}

func (l *instrumentedLedger) Record(ctx context.Context, playerID int64) (rec *model.QuotaRecord, err error) {
	start := l.clock.Now()
	defer func() { l.observe("record", start, err) }()
	return l.next.Record(ctx, playerID)
}
