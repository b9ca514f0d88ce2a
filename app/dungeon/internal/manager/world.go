package manager

import (
	"context"

	"github.com/lk2023060901/xdooria-dungeon/app/dungeon/internal/model"
)

// MapRegistry 地图、区域和玩家位置
type MapRegistry interface {
	// MapDefinition 按 ID 获取地图定义
	MapDefinition(mapID int32) (*model.MapDefinition, bool)
	// AttachZone 把区域挂到所属地图上
	AttachZone(zone *model.Zone) error
	// DetachZone 从地图上移除区域，返回区域是否存在
	DetachZone(mapID int32, zoneID int64) bool
	// Relocate 把玩家传送到指定位置
	Relocate(playerID int64, loc model.Location) error
	// LocationOf 玩家当前位置
	LocationOf(playerID int64) (model.Location, bool)
}

// Messenger 玩家消息推送
type Messenger interface {
	// Notify 发送给单个玩家
	Notify(playerID int64, text string)
	// BroadcastZone 发送给区域内所有玩家
	BroadcastZone(zoneID int64, text string)
}

// SpawnRequest 刷怪参数
type SpawnRequest struct {
	TemplateID int32
	Level      int32
	HP         int64
	Damage     int64
	Pos        model.Position
	Tag        model.HostileTag
}

// HostileFactory 怪物生成与清理
type HostileFactory interface {
	// Spawn 在区域内生成一只怪物
	Spawn(zoneID int64, req SpawnRequest) (*model.Hostile, error)
	// Despawn 移除区域内满足条件的怪物，返回移除数量
	Despawn(zoneID int64, match func(*model.Hostile) bool) int
}

// RewardIssuer 波次奖励发放
type RewardIssuer interface {
	IssueWaveReward(ctx context.Context, owner model.Player, wave int) ([]model.RewardGrant, error)
}
