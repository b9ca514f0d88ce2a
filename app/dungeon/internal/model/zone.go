package model

// MapDefinition 地图定义
type MapDefinition struct {
	ID    int32    `mapstructure:"id" json:"id" validate:"gt=0"`
	Name  string   `mapstructure:"name" json:"name"`
	Entry Position `mapstructure:"entry" json:"entry"` // 传送进入点
	Spawn Position `mapstructure:"spawn" json:"spawn"` // 怪物刷新基准点
}

// Zone 地图中的区域
type Zone struct {
	ID       int64 `json:"id"`
	MapID    int32 `json:"map_id"`
	OwnerID  int64 `json:"owner_id"`
	Private  bool  `json:"private"` // 副本私有分区
	Capacity int   `json:"capacity"`
}
