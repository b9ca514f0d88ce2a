package dao

import (
	"context"
	"fmt"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/jonboulle/clockwork"
	"github.com/lk2023060901/xdooria-dungeon/app/dungeon/internal/model"
	"github.com/lk2023060901/xdooria-dungeon/pkg/database/redis"
	"github.com/lk2023060901/xdooria-dungeon/pkg/logger"
)

// quotaScript 在一次脚本调用中完成懒重置和修改
//
// KEYS[1] 玩家配额哈希
// ARGV    op, today, max_per_day, n
// 返回    {ok, remaining, participation, highest_wave}
var quotaScript = redis.NewScript(`
local key = KEYS[1]
local op = ARGV[1]
local today = ARGV[2]
local max = tonumber(ARGV[3])
local n = tonumber(ARGV[4])

local rec = redis.call('HMGET', key, 'remaining', 'participation', 'highest_wave', 'reset_date')
local remaining = tonumber(rec[1]) or max
local participation = tonumber(rec[2]) or 0
local highest = tonumber(rec[3]) or 0

if rec[4] ~= today then
  remaining = max
  participation = 0
end
if remaining > max then remaining = max end
if remaining < 0 then remaining = 0 end

local ok = 1
if op == 'consume' then
  if remaining > 0 then
    remaining = remaining - 1
    participation = participation + 1
  else
    ok = 0
  end
elseif op == 'penalize' then
  remaining = math.max(remaining - n, 0)
elseif op == 'wave' then
  if n > highest then highest = n end
end

redis.call('HSET', key, 'remaining', remaining, 'participation', participation,
  'highest_wave', highest, 'reset_date', today)
return {ok, remaining, participation, highest}
`)

const (
	opGet      = "get"
	opConsume  = "consume"
	opPenalize = "penalize"
	opWave     = "wave"
)

// RedisQuotaLedger 基于 Redis 哈希的配额账本，跨进程共享
type RedisQuotaLedger struct {
	client    *redis.Client
	keyPrefix string
	maxPerDay int
	day       dayClock
	logger    logger.Logger
}

// NewRedisQuotaLedger 创建 Redis 配额账本
func NewRedisQuotaLedger(cfg *QuotaConfig, client *redis.Client, clock clockwork.Clock, l logger.Logger) (*RedisQuotaLedger, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	return &RedisQuotaLedger{
		client:    client,
		keyPrefix: cfg.KeyPrefix,
		maxPerDay: cfg.MaxPerDay,
		day:       dayClock{clock: clock, loc: loc},
		logger:    l.Named("dao.quota.redis"),
	}, nil
}

func (d *RedisQuotaLedger) key(playerID int64) string {
	return fmt.Sprintf("%s%d", d.keyPrefix, playerID)
}

// run 执行脚本并解析结果
func (d *RedisQuotaLedger) run(ctx context.Context, playerID int64, op string, n int) (bool, *model.QuotaRecord, error) {
	today := d.day.today()
	vals, err := d.client.RunScriptInt64Slice(ctx, quotaScript, []string{d.key(playerID)}, op, today, d.maxPerDay, n)
	if err != nil {
		d.logger.Error("quota script failed", "player_id", playerID, "op", op, "error", err)
		return false, nil, errors.Wrapf(err, "quota %s for player %d", op, playerID)
	}
	if len(vals) != 4 {
		return false, nil, errors.Newf("quota script returned %d values", len(vals))
	}

	return vals[0] == 1, &model.QuotaRecord{
		PlayerID:      playerID,
		Remaining:     int(vals[1]),
		Participation: int(vals[2]),
		HighestWave:   int(vals[3]),
		ResetDate:     today,
	}, nil
}

func (d *RedisQuotaLedger) RemainingAttempts(ctx context.Context, playerID int64) (int, error) {
	_, rec, err := d.run(ctx, playerID, opGet, 0)
	if err != nil {
		return 0, err
	}
	return rec.Remaining, nil
}

func (d *RedisQuotaLedger) ConsumeAttempt(ctx context.Context, playerID int64) error {
	ok, _, err := d.run(ctx, playerID, opConsume, 0)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNoAttempts
	}
	return nil
}

func (d *RedisQuotaLedger) Penalize(ctx context.Context, playerID int64, n int) error {
	if n <= 0 {
		return nil
	}
	_, _, err := d.run(ctx, playerID, opPenalize, n)
	return err
}

func (d *RedisQuotaLedger) RecordHighestWave(ctx context.Context, playerID int64, wave int) error {
	_, _, err := d.run(ctx, playerID, opWave, wave)
	return err
}

// Record 读取哈希（主从模式下走从节点），不写回，跨日重置只作用于返回值
func (d *RedisQuotaLedger) Record(ctx context.Context, playerID int64) (*model.QuotaRecord, error) {
	today := d.day.today()
	fields, err := d.client.HGetAll(ctx, d.key(playerID))
	if err != nil {
		d.logger.Error("quota read failed", "player_id", playerID, "error", err)
		return nil, errors.Wrapf(err, "quota record for player %d", playerID)
	}
	if len(fields) == 0 {
		return model.NewQuotaRecord(playerID, today, d.maxPerDay), nil
	}

	rec := &model.QuotaRecord{PlayerID: playerID, ResetDate: fields["reset_date"]}
	for name, dst := range map[string]*int{
		"remaining":     &rec.Remaining,
		"participation": &rec.Participation,
		"highest_wave":  &rec.HighestWave,
	} {
		if *dst, err = strconv.Atoi(fields[name]); err != nil {
			return nil, errors.Wrapf(err, "quota field %s for player %d", name, playerID)
		}
	}
	rec.Refresh(today, d.maxPerDay)
	return rec, nil
}
