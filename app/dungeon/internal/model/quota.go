package model

import "time"

// DateLayout 配额重置日期格式
const DateLayout = "2006-01-02"

// QuotaRecord 玩家每日副本次数记录
type QuotaRecord struct {
	PlayerID      int64  `db:"player_id" json:"player_id"`
	Remaining     int    `db:"remaining" json:"remaining"`
	Participation int    `db:"participation" json:"participation"`
	HighestWave   int    `db:"highest_wave" json:"highest_wave"`
	ResetDate     string `db:"reset_date" json:"reset_date"`
}

// NewQuotaRecord 新玩家的初始记录
func NewQuotaRecord(playerID int64, today string, maxPerDay int) *QuotaRecord {
	return &QuotaRecord{PlayerID: playerID, Remaining: maxPerDay, ResetDate: today}
}

// Refresh 跨天时重置次数和参与计数，并把剩余次数限制在 [0, maxPerDay]，返回记录是否变化
func (r *QuotaRecord) Refresh(today string, maxPerDay int) bool {
	changed := false
	if r.ResetDate != today {
		r.Remaining = maxPerDay
		r.Participation = 0
		r.ResetDate = today
		changed = true
	}
	if r.Remaining > maxPerDay {
		r.Remaining = maxPerDay
		changed = true
	}
	if r.Remaining < 0 {
		r.Remaining = 0
		changed = true
	}
	return changed
}

// Consume 扣除一次次数，次数为 0 时返回 false 且不做修改
func (r *QuotaRecord) Consume() bool {
	if r.Remaining <= 0 {
		return false
	}
	r.Remaining--
	r.Participation++
	return true
}

// Penalize 扣除 n 次，最低为 0
func (r *QuotaRecord) Penalize(n int) {
	if n <= 0 {
		return
	}
	r.Remaining -= n
	if r.Remaining < 0 {
		r.Remaining = 0
	}
}

// RecordWave 记录最高波次，返回是否刷新了记录
func (r *QuotaRecord) RecordWave(wave int) bool {
	if wave <= r.HighestWave {
		return false
	}
	r.HighestWave = wave
	return true
}

// DateOf 返回 t 在 loc 时区的日期
func DateOf(t time.Time, loc *time.Location) string {
	if loc != nil {
		t = t.In(loc)
	}
	return t.Format(DateLayout)
}
