package logger

import (
	"fmt"
	"time"

	"go.uber.org/zap/zapcore"
)

// Level 日志等级
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
	PanicLevel Level = "panic"
	FatalLevel Level = "fatal"
)

func (l Level) zap() (zapcore.Level, error) {
	lvl, err := zapcore.ParseLevel(string(l))
	if err != nil {
		return lvl, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return lvl, nil
}

// Format 日志格式
type Format string

const (
	JSONFormat    Format = "json"
	ConsoleFormat Format = "console"
)

// RotationType 文件轮换方式
type RotationType string

const (
	// RotationBySize 按文件大小轮换（lumberjack）
	RotationBySize RotationType = "size"
	// RotationByTime 按时间间隔轮换（file-rotatelogs）
	RotationByTime RotationType = "time"
)

// Config 日志配置，零值字段取 DefaultConfig 中的值
type Config struct {
	Level  Level  `mapstructure:"level"`
	Format Format `mapstructure:"format"`

	EnableConsole bool   `mapstructure:"enable_console"`
	EnableFile    bool   `mapstructure:"enable_file"`
	OutputPath    string `mapstructure:"output_path"`

	// TimeFormat 为空时使用 ISO8601
	TimeFormat string         `mapstructure:"time_format"`
	Rotation   RotationConfig `mapstructure:"rotation"`

	EnableStacktrace bool  `mapstructure:"enable_stacktrace"`
	StacktraceLevel  Level `mapstructure:"stacktrace_level"`

	// 每秒同一消息前 SamplingInitial 条全部输出，之后每 SamplingThereafter 条输出一条
	EnableSampling     bool `mapstructure:"enable_sampling"`
	SamplingInitial    int  `mapstructure:"sampling_initial"`
	SamplingThereafter int  `mapstructure:"sampling_thereafter"`

	Development bool `mapstructure:"development"`

	// GlobalFields 附加到每条日志
	GlobalFields map[string]any `mapstructure:"global_fields"`

	// RedactKeys 这些键的值在写出前被替换，先于其他钩子执行
	RedactKeys []string `mapstructure:"redact_keys"`
}

// RotationConfig 文件轮换配置
type RotationConfig struct {
	Type RotationType `mapstructure:"type"`

	// size 方式
	MaxSizeMB  int  `mapstructure:"max_size_mb"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAgeDays int  `mapstructure:"max_age_days"`
	Compress   bool `mapstructure:"compress"`

	// time 方式，Pattern 为 strftime 格式的文件名后缀
	Interval  time.Duration `mapstructure:"interval"`
	Retention time.Duration `mapstructure:"retention"`
	Pattern   string        `mapstructure:"pattern"`
}

// DefaultConfig 默认只输出到控制台
func DefaultConfig() *Config {
	return &Config{
		Level:         InfoLevel,
		Format:        ConsoleFormat,
		EnableConsole: true,
		Rotation: RotationConfig{
			Type:       RotationBySize,
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 7,
			Compress:   true,
			Interval:   24 * time.Hour,
			Retention:  7 * 24 * time.Hour,
			Pattern:    ".%Y%m%d",
		},
		EnableStacktrace:   true,
		StacktraceLevel:    ErrorLevel,
		SamplingInitial:    100,
		SamplingThereafter: 100,
		RedactKeys:         []string{"password", "token", "secret"},
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if _, err := c.Level.zap(); err != nil {
		return err
	}
	if _, err := c.StacktraceLevel.zap(); err != nil {
		return err
	}
	if c.Format != JSONFormat && c.Format != ConsoleFormat {
		return fmt.Errorf("%w: format %q", ErrInvalidConfig, c.Format)
	}
	if !c.EnableConsole && !c.EnableFile {
		return ErrNoOutputEnabled
	}
	if c.EnableFile {
		if c.OutputPath == "" {
			return ErrInvalidOutputPath
		}
		if err := c.Rotation.validate(); err != nil {
			return err
		}
	}
	if c.EnableSampling && (c.SamplingInitial <= 0 || c.SamplingThereafter <= 0) {
		return fmt.Errorf("%w: sampling requires positive initial and thereafter", ErrInvalidConfig)
	}
	return nil
}

func (r *RotationConfig) validate() error {
	switch r.Type {
	case RotationBySize:
		if r.MaxSizeMB <= 0 {
			return fmt.Errorf("%w: rotation.max_size_mb must be positive", ErrInvalidConfig)
		}
	case RotationByTime:
		if r.Interval < time.Minute {
			return fmt.Errorf("%w: rotation.interval must be at least 1m", ErrInvalidConfig)
		}
		if r.Retention < r.Interval {
			return fmt.Errorf("%w: rotation.retention shorter than interval", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: rotation.type %q", ErrInvalidConfig, r.Type)
	}
	return nil
}
