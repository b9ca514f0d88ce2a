package kafka

import (
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

// Config Kafka 连接与生产者配置
type Config struct {
	Brokers  []string       `mapstructure:"brokers"`
	Producer ProducerConfig `mapstructure:"producer"`
	// SASL 为 nil 时不认证
	SASL *SASLConfig `mapstructure:"sasl"`
	// TLS 为 nil 时使用明文连接
	TLS *TLSConfig `mapstructure:"tls"`
}

// ProducerConfig 生产者配置，写入总是同步的，异步由调用方负责
type ProducerConfig struct {
	BatchSize    int           `mapstructure:"batch_size"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
	// MaxAttempts 单条消息的最多投递次数，包含首次
	MaxAttempts int `mapstructure:"max_attempts"`
	// Acks none / leader / all
	Acks string `mapstructure:"acks"`
	// Compression none / gzip / snappy / lz4 / zstd
	Compression  string        `mapstructure:"compression"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
}

// SASLConfig SASL 认证，Mechanism 为 PLAIN / SCRAM-SHA-256 / SCRAM-SHA-512
type SASLConfig struct {
	Mechanism string `mapstructure:"mechanism"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
}

// TLSConfig TLS 证书，均为空时使用系统根证书
type TLSConfig struct {
	CAFile             string `mapstructure:"ca_file"`
	CertFile           string `mapstructure:"cert_file"`
	KeyFile            string `mapstructure:"key_file"`
	InsecureSkipVerify bool   `mapstructure:"insecure_skip_verify"`
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		Brokers: []string{"localhost:9092"},
		Producer: ProducerConfig{
			BatchSize:    100,
			BatchTimeout: 200 * time.Millisecond,
			MaxAttempts:  3,
			Acks:         "all",
			Compression:  "snappy",
			WriteTimeout: 10 * time.Second,
			ReadTimeout:  10 * time.Second,
		},
	}
}

var (
	acksByName = map[string]kafka.RequiredAcks{
		"none":   kafka.RequireNone,
		"leader": kafka.RequireOne,
		"all":    kafka.RequireAll,
	}
	compressionByName = map[string]kafka.Compression{
		"none":   0,
		"gzip":   kafka.Gzip,
		"snappy": kafka.Snappy,
		"lz4":    kafka.Lz4,
		"zstd":   kafka.Zstd,
	}
)

// Validate 验证配置
func (c *Config) Validate() error {
	if len(c.Brokers) == 0 {
		return ErrNoBrokers
	}
	pc := c.Producer
	if _, ok := acksByName[strings.ToLower(pc.Acks)]; !ok {
		return fmt.Errorf("%w: unknown acks %q", ErrInvalidConfig, pc.Acks)
	}
	if _, ok := compressionByName[strings.ToLower(pc.Compression)]; !ok {
		return fmt.Errorf("%w: unknown compression %q", ErrInvalidConfig, pc.Compression)
	}
	if pc.MaxAttempts < 1 {
		return fmt.Errorf("%w: max_attempts must be at least 1", ErrInvalidConfig)
	}
	if c.SASL != nil && c.SASL.Username == "" {
		return fmt.Errorf("%w: sasl username is empty", ErrInvalidConfig)
	}
	return nil
}

// requiredAcks 调用前需已通过 Validate
func (pc ProducerConfig) requiredAcks() kafka.RequiredAcks {
	return acksByName[strings.ToLower(pc.Acks)]
}

func (pc ProducerConfig) compression() kafka.Compression {
	return compressionByName[strings.ToLower(pc.Compression)]
}
