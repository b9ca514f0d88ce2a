package otel

import "time"

// ExporterType 导出器类型
type ExporterType string

const (
	ExporterOTLPHTTP ExporterType = "otlp-http"
	ExporterOTLPGRPC ExporterType = "otlp-grpc"
	// ExporterStdout 打印到标准输出，调试用
	ExporterStdout ExporterType = "stdout"
	// ExporterNoop 不导出，Span 仍然生成
	ExporterNoop ExporterType = "noop"
)

// Config 链路追踪配置
type Config struct {
	Enabled     bool         `mapstructure:"enabled"`
	ServiceName string       `mapstructure:"service_name"`
	Exporter    ExporterType `mapstructure:"exporter"`
	Endpoint    string       `mapstructure:"endpoint"`
	// TLS 连接 collector 时启用 TLS，默认明文
	TLS bool `mapstructure:"tls"`

	// SampleRatio 根 Span 采样比例 (0,1]，有上游 Span 时跟随上游决策
	SampleRatio float64 `mapstructure:"sample_ratio"`

	Batch           BatchConfig       `mapstructure:"batch"`
	Attributes      map[string]string `mapstructure:"attributes"`
	ShutdownTimeout time.Duration     `mapstructure:"shutdown_timeout"`
}

// BatchConfig 批量导出参数
type BatchConfig struct {
	Size          int           `mapstructure:"size"`
	MaxQueue      int           `mapstructure:"max_queue"`
	Interval      time.Duration `mapstructure:"interval"`
	ExportTimeout time.Duration `mapstructure:"export_timeout"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		ServiceName: "dungeon",
		Exporter:    ExporterOTLPHTTP,
		Endpoint:    "localhost:4318",
		SampleRatio: 1,
		Batch: BatchConfig{
			Size:          512,
			MaxQueue:      2048,
			Interval:      5 * time.Second,
			ExportTimeout: 30 * time.Second,
		},
		ShutdownTimeout: 5 * time.Second,
	}
}

// Validate 验证配置，未启用时不检查
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.ServiceName == "" {
		return ErrInvalidServiceName
	}
	if c.SampleRatio <= 0 || c.SampleRatio > 1 {
		return ErrInvalidSamplerRatio
	}
	return nil
}
