// Package event 副本生命周期事件
//
// 事件在业务路径上只做编码，发送交给调度器的协程池完成，
// 发送失败只记日志，不影响副本本身。
package event

import (
	"strconv"
	"time"
)

// Kind 事件类型
type Kind string

const (
	KindInstanceCreated  Kind = "instance_created"
	KindWaveCleared      Kind = "wave_cleared"
	KindInstanceTornDown Kind = "instance_torn_down"
	KindDailyReset       Kind = "daily_reset"
)

// Event 副本生命周期事件
type Event struct {
	ID         string `json:"id" codec:"id"`
	Kind       Kind   `json:"kind" codec:"kind"`
	InstanceID int64  `json:"instance_id,omitempty" codec:"instance_id,omitempty"`
	PlayerID   int64  `json:"player_id,omitempty" codec:"player_id,omitempty"`
	ZoneID     int64  `json:"zone_id,omitempty" codec:"zone_id,omitempty"`
	Wave       int    `json:"wave,omitempty" codec:"wave,omitempty"`
	Reason     string `json:"reason,omitempty" codec:"reason,omitempty"`
	// Count 每日重置时被关闭的副本数
	Count int `json:"count,omitempty" codec:"count,omitempty"`
	// At 毫秒时间戳
	At int64 `json:"at" codec:"at"`
}

// Key 分区键，同一副本的事件落在同一分区
func (e Event) Key() string {
	if e.InstanceID != 0 {
		return strconv.FormatInt(e.InstanceID, 10)
	}
	return string(e.Kind)
}

// Time 事件时间
func (e Event) Time() time.Time {
	return time.UnixMilli(e.At)
}

// Publisher 事件发布接口
type Publisher interface {
	Publish(ev Event)
}

// Noop 丢弃所有事件
type Noop struct{}

// Publish 实现 Publisher
func (Noop) Publish(Event) {}
