package event

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/lk2023060901/xdooria-dungeon/pkg/config"
	"github.com/lk2023060901/xdooria-dungeon/pkg/mq/kafka"
	"github.com/lk2023060901/xdooria-dungeon/pkg/serializer"
)

// Config 事件发布配置
type Config struct {
	// Enabled 关闭时使用 Noop
	Enabled bool `mapstructure:"enabled"`
	// Topic Kafka 主题
	Topic string `mapstructure:"topic"`
	// Format 编码格式: json, msgpack
	Format string `mapstructure:"format"`
	// Timeout 单条事件的发送超时
	Timeout time.Duration `mapstructure:"timeout"`
	// Kafka 生产者配置
	Kafka *kafka.Config `mapstructure:"kafka"`
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		Enabled: false,
		Topic:   "dungeon.events",
		Format:  serializer.FormatMsgpack,
		Timeout: 5 * time.Second,
		Kafka:   kafka.DefaultConfig(),
	}
}

// MergeConfig 合并默认配置
func MergeConfig(cfg *Config) (*Config, error) {
	newCfg, err := config.MergeConfig(DefaultConfig(), cfg)
	if err != nil {
		return nil, err
	}
	return newCfg, newCfg.Validate()
}

// Validate 校验配置
func (c *Config) Validate() error {
	if c.Topic == "" {
		return errors.Wrap(kafka.ErrEmptyTopic, "event config")
	}
	if c.Timeout <= 0 {
		return errors.New("event config: timeout must be positive")
	}
	if _, err := serializer.New(c.Format); err != nil {
		return errors.Wrap(err, "event config")
	}
	return nil
}
