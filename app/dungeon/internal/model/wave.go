package model

import (
	"math"
	"time"
)

// WaveScaling 波次数值成长参数
type WaveScaling struct {
	HostileTemplate int32         `mapstructure:"hostile_template" validate:"gt=0"`
	HostileCount    int           `mapstructure:"hostile_count" validate:"gt=0"`
	LevelBase       int32         `mapstructure:"level_base" validate:"gte=0"`
	LevelStep       int32         `mapstructure:"level_step" validate:"gte=0"`
	HPBase          int64         `mapstructure:"hp_base" validate:"gt=0"`
	DamageBase      int64         `mapstructure:"damage_base" validate:"gte=0"`
	Multiplier      float64       `mapstructure:"multiplier" validate:"gt=1"`
	KillsBase       int           `mapstructure:"kills_base" validate:"gt=0"`
	KillsStep       int           `mapstructure:"kills_step" validate:"gte=0"`
	TimeLimit       time.Duration `mapstructure:"time_limit" validate:"gt=0"`
	TimeLimitStep   time.Duration `mapstructure:"time_limit_step" validate:"gte=0"`
}

// WaveSpec 某一波的怪物参数
type WaveSpec struct {
	Wave            int           `json:"wave"`
	HostileTemplate int32         `json:"hostile_template"`
	HostileCount    int           `json:"hostile_count"`
	Level           int32         `json:"level"`
	HP              int64         `json:"hp"`
	Damage          int64         `json:"damage"`
	RequiredKills   int           `json:"required_kills"`
	TimeLimit       time.Duration `json:"time_limit"`
}

// Spec 计算第 wave 波（从 1 开始）的参数，结果只取决于波次
func (s WaveScaling) Spec(wave int) WaveSpec {
	if wave < 1 {
		wave = 1
	}
	n := wave - 1
	factor := math.Pow(s.Multiplier, float64(n))

	return WaveSpec{
		Wave:            wave,
		HostileTemplate: s.HostileTemplate,
		HostileCount:    s.HostileCount,
		Level:           s.LevelBase + int32(n)*s.LevelStep,
		HP:              int64(math.Round(float64(s.HPBase) * factor)),
		Damage:          int64(math.Round(float64(s.DamageBase) * factor)),
		RequiredKills:   s.KillsBase + n*s.KillsStep,
		TimeLimit:       s.TimeLimit + time.Duration(n)*s.TimeLimitStep,
	}
}

// SpawnOffsets 刷怪点相对刷新基准点的固定偏移，数量不足时循环使用并外扩
var SpawnOffsets = []Position{
	{X: 0, Y: 3}, {X: 3, Y: 0}, {X: 0, Y: -3}, {X: -3, Y: 0},
	{X: 2, Y: 2}, {X: 2, Y: -2}, {X: -2, Y: -2}, {X: -2, Y: 2},
}

// SpawnPosition 第 i 只怪物的刷新坐标
func SpawnPosition(base Position, i int) Position {
	off := SpawnOffsets[i%len(SpawnOffsets)]
	ring := float32(i/len(SpawnOffsets) + 1)
	return Position{X: base.X + off.X*ring, Y: base.Y + off.Y*ring}
}
