package model

// HostileTag 怪物所属的副本和波次
type HostileTag struct {
	InstanceID int64 `json:"instance_id"`
	Wave       int   `json:"wave"`
}

// IsZero 未打标签的怪物不属于任何副本
func (t HostileTag) IsZero() bool {
	return t.InstanceID == 0
}

// Hostile 刷出的怪物
type Hostile struct {
	ID         int64      `json:"id"`
	TemplateID int32      `json:"template_id"`
	ZoneID     int64      `json:"zone_id"`
	Tag        HostileTag `json:"tag"`
	Level      int32      `json:"level"`
	HP         int64      `json:"hp"`
	Damage     int64      `json:"damage"`
	Pos        Position   `json:"pos"`
}
