package service

import (
	"fmt"
	"time"

	"github.com/lk2023060901/xdooria-dungeon/app/dungeon/internal/manager"
	"github.com/lk2023060901/xdooria-dungeon/app/dungeon/internal/model"
	"github.com/lk2023060901/xdooria-dungeon/pkg/config"
)

// Config 副本服务配置
type Config struct {
	// MapID 副本地图
	MapID int32 `mapstructure:"map_id" validate:"gt=0"`
	// SafeMapID 被驱逐时传送到的安全地图
	SafeMapID int32 `mapstructure:"safe_map_id" validate:"gt=0,nefield=MapID"`
	// ZoneIDBase 私有分区 ID 起点，必须大于所有静态区域 ID
	ZoneIDBase int64 `mapstructure:"zone_id_base" validate:"gt=0"`
	// MaxInstances 同时存在的副本上限，0 表示不限
	MaxInstances int `mapstructure:"max_instances" validate:"gte=0"`
	// TickInterval 主循环巡检间隔
	TickInterval time.Duration `mapstructure:"tick_interval" validate:"gt=0"`
	// DailyResetCron 显式的每日重置时间（cron 表达式），为空时只依赖跨天检测
	DailyResetCron string `mapstructure:"daily_reset_cron"`
	// LockStripes 玩家进入锁的分段数
	LockStripes int `mapstructure:"lock_stripes" validate:"gte=0"`
	// MessageCapacity 每个玩家保留的待拉取消息数
	MessageCapacity int `mapstructure:"message_capacity" validate:"gte=0"`
	// TimeWindows 每日开放时间段
	TimeWindows []model.TimeWindow `mapstructure:"time_windows" validate:"dive"`
	// AlwaysOpen 忽略 TimeWindows，全天开放
	AlwaysOpen bool `mapstructure:"always_open"`
	// Maps 启动时注册的地图
	Maps []model.MapDefinition `mapstructure:"maps" validate:"dive"`

	manager.WaveConfig `mapstructure:",squash"`
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		MapID:           9000,
		SafeMapID:       1001,
		ZoneIDBase:      100000,
		MaxInstances:    1000,
		TickInterval:    time.Second,
		LockStripes:     64,
		MessageCapacity: 64,
		TimeWindows: []model.TimeWindow{
			{Open: "07:00:00", Close: "23:00:00"},
		},
		Maps: []model.MapDefinition{
			{ID: 1001, Name: "town", Entry: model.Position{X: 100, Y: 100}},
			{ID: 9000, Name: "trial of waves", Entry: model.Position{X: 10, Y: 10}, Spawn: model.Position{X: 50, Y: 50}},
		},
		WaveConfig: manager.DefaultWaveConfig(),
	}
}

// MergeConfig 以默认配置为底合并并校验
func MergeConfig(cfg *Config) (*Config, error) {
	newCfg, err := config.MergeConfig(DefaultConfig(), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to merge dungeon config: %w", err)
	}
	if err := newCfg.Validate(); err != nil {
		return nil, err
	}
	return newCfg, nil
}

// Validate 校验配置
func (c *Config) Validate() error {
	if err := config.Validate(c); err != nil {
		return err
	}
	if _, ok := c.mapDefinition(c.MapID); !ok {
		return fmt.Errorf("%w: dungeon map %d is not defined", config.ErrValidationFailed, c.MapID)
	}
	if _, ok := c.mapDefinition(c.SafeMapID); !ok {
		return fmt.Errorf("%w: safe map %d is not defined", config.ErrValidationFailed, c.SafeMapID)
	}
	for _, w := range c.TimeWindows {
		if _, _, err := w.Clocks(); err != nil {
			return fmt.Errorf("%w: %v", config.ErrValidationFailed, err)
		}
	}
	return nil
}

func (c *Config) mapDefinition(id int32) (model.MapDefinition, bool) {
	for _, m := range c.Maps {
		if m.ID == id {
			return m, true
		}
	}
	return model.MapDefinition{}, false
}
