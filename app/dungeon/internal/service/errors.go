package service

import (
	"github.com/cockroachdb/errors"
	"github.com/lk2023060901/xdooria-dungeon/app/dungeon/internal/dao"
	"github.com/lk2023060901/xdooria-dungeon/app/dungeon/internal/manager"
)

var (
	// ErrNotInDungeonMap 玩家不在副本地图
	ErrNotInDungeonMap = errors.New("not in dungeon map")
	// ErrOutOfAttempts 今日次数已用完
	ErrOutOfAttempts = errors.New("out of attempts")
	// ErrZoneAllocationFailed 无法分配私有分区
	ErrZoneAllocationFailed = errors.New("zone allocation failed")
	// ErrDungeonClosed 不在开放时间
	ErrDungeonClosed = errors.New("dungeon closed")
	// ErrNotInInstance 玩家没有进行中的副本
	ErrNotInInstance = errors.New("not in instance")
	// ErrPlayerOffline 玩家不在线
	ErrPlayerOffline = manager.ErrPlayerOffline
)

// UserMessage 返回给玩家的提示文本
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotInDungeonMap):
		return "not in the dungeon map"
	case errors.Is(err, ErrOutOfAttempts), errors.Is(err, dao.ErrNoAttempts):
		return "out of attempts today"
	case errors.Is(err, ErrZoneAllocationFailed), errors.Is(err, manager.ErrMapUnavailable):
		return "dungeon overloaded, could not create instance"
	case errors.Is(err, ErrDungeonClosed):
		return "dungeon is currently closed"
	case errors.Is(err, manager.ErrPlayerRegistered):
		return "you must leave before sending another request"
	case errors.Is(err, manager.ErrAdmissionDenied):
		return "this dungeon instance belongs to another player"
	case errors.Is(err, ErrNotInInstance):
		return "you are not in a dungeon instance"
	case errors.Is(err, ErrPlayerOffline):
		return "player is offline"
	default:
		return "internal error"
	}
}
