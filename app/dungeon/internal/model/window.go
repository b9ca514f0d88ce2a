package model

import (
	"fmt"
	"time"
)

// ClockLayout 时间段配置格式
const ClockLayout = "15:04:05"

// TimeWindow 每日开放时间段，开放时间包含，关闭时间不包含
type TimeWindow struct {
	Open  string `mapstructure:"open" validate:"required,datetime=15:04:05"`
	Close string `mapstructure:"close" validate:"required,datetime=15:04:05"`
}

// String 格式化为 "07:00:00-23:00:00"
func (w TimeWindow) String() string {
	return w.Open + "-" + w.Close
}

// Clocks 解析开放和关闭的墙上时间，关闭必须晚于开放
func (w TimeWindow) Clocks() (openAt, closeAt Clock, err error) {
	if openAt, err = ParseClock(w.Open); err != nil {
		return Clock{}, Clock{}, err
	}
	if closeAt, err = ParseClock(w.Close); err != nil {
		return Clock{}, Clock{}, err
	}
	if !openAt.Before(closeAt) {
		return Clock{}, Clock{}, fmt.Errorf("time window %s: close must be after open", w)
	}
	return openAt, closeAt, nil
}

// Clock 一天中的墙上时间
type Clock struct {
	Hour, Min, Sec int
}

// ParseClock 解析 "HH:MM:SS"
func ParseClock(s string) (Clock, error) {
	t, err := time.Parse(ClockLayout, s)
	if err != nil {
		return Clock{}, fmt.Errorf("invalid clock %q: %w", s, err)
	}
	return Clock{Hour: t.Hour(), Min: t.Minute(), Sec: t.Second()}, nil
}

// Before 是否早于 o
func (c Clock) Before(o Clock) bool {
	if c.Hour != o.Hour {
		return c.Hour < o.Hour
	}
	if c.Min != o.Min {
		return c.Min < o.Min
	}
	return c.Sec < o.Sec
}

// On 返回 loc 时区某天的该墙上时间
//
// 夏令时切换日按墙上时间解析，不按距零点的固定时长。
func (c Clock) On(y int, m time.Month, d int, loc *time.Location) time.Time {
	return time.Date(y, m, d, c.Hour, c.Min, c.Sec, 0, loc)
}
