package model

// Position 地图坐标
type Position struct {
	X float32 `mapstructure:"x" json:"x"`
	Y float32 `mapstructure:"y" json:"y"`
}

// Location 玩家所在位置，ZoneID 为 0 表示地图的公共区域
type Location struct {
	MapID  int32    `json:"map_id"`
	ZoneID int64    `json:"zone_id"`
	Pos    Position `json:"pos"`
}

// Player 参与副本的玩家
type Player struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	Region      string   `json:"region"`
	Admin       bool     `json:"admin"`
	CompanionID int64    `json:"companion_id"` // 跟随宠物实体 ID，0 表示没有
	Location    Location `json:"location"`
}

// EntityKind 实体类型
type EntityKind int

const (
	EntityPlayer EntityKind = iota + 1
	EntityCompanion
	EntityHostile
)

func (k EntityKind) String() string {
	switch k {
	case EntityPlayer:
		return "player"
	case EntityCompanion:
		return "companion"
	case EntityHostile:
		return "hostile"
	default:
		return "unknown"
	}
}

// Entity 进入分区的实体
type Entity struct {
	ID      int64
	Kind    EntityKind
	OwnerID int64 // 玩家为自身 ID，宠物为主人 ID
}

// PlayerEntity 玩家自身实体
func (p *Player) PlayerEntity() Entity {
	return Entity{ID: p.ID, Kind: EntityPlayer, OwnerID: p.ID}
}

// CompanionEntity 玩家宠物实体，没有宠物时 ok 为 false
func (p *Player) CompanionEntity() (Entity, bool) {
	if p.CompanionID == 0 {
		return Entity{}, false
	}
	return Entity{ID: p.CompanionID, Kind: EntityCompanion, OwnerID: p.ID}, true
}
