package logger

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/lk2023060901/xdooria-dungeon/pkg/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var _ Logger = (*BaseLogger)(nil)

// MissingValue 键值对缺少值时写入的占位
const MissingValue = "(missing)"

// BaseLogger 基于 zap 的日志记录器
//
// Named 与 WithFields 派生的 logger 共享同一个等级，SetLevel 对它们同时生效。
type BaseLogger struct {
	*zap.Logger
	config           *Config
	level            zap.AtomicLevel
	hooks            []Hook
	contextExtractor ContextFieldExtractor
}

// New 创建 BaseLogger，cfg 只需填写与默认值不同的字段
func New(cfg *Config, opts ...Option) (*BaseLogger, error) {
	merged, err := config.MergeConfig(DefaultConfig(), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to merge config: %w", err)
	}
	if err := merged.Validate(); err != nil {
		return nil, err
	}
	lvl, _ := merged.Level.zap()

	l := &BaseLogger{
		config:           merged,
		level:            zap.NewAtomicLevelAt(lvl),
		contextExtractor: DefaultContextExtractor,
	}
	for _, opt := range opts {
		opt(l)
	}

	core, err := l.buildCore()
	if err != nil {
		return nil, err
	}

	zapOpts := []zap.Option{zap.AddCaller(), zap.AddCallerSkip(1)}
	if merged.EnableStacktrace {
		stackLvl, _ := merged.StacktraceLevel.zap()
		zapOpts = append(zapOpts, zap.AddStacktrace(stackLvl))
	}
	if merged.Development {
		zapOpts = append(zapOpts, zap.Development())
	}
	if len(merged.GlobalFields) > 0 {
		fields := make([]zap.Field, 0, len(merged.GlobalFields))
		for k, v := range merged.GlobalFields {
			fields = append(fields, zap.Any(k, v))
		}
		zapOpts = append(zapOpts, zap.Fields(fields...))
	}

	l.Logger = zap.New(core, zapOpts...)
	return l, nil
}

// NewNoop 丢弃所有输出，用于测试与未注入 logger 的组件
func NewNoop() *BaseLogger {
	return &BaseLogger{
		Logger:           zap.NewNop(),
		config:           DefaultConfig(),
		level:            zap.NewAtomicLevel(),
		contextExtractor: DefaultContextExtractor,
	}
}

// buildCore 依次包装：输出 core、钩子（脱敏在最前）、采样
func (l *BaseLogger) buildCore() (zapcore.Core, error) {
	cfg := l.config

	enc := zapcore.NewJSONEncoder(l.encoderConfig())
	if cfg.Format == ConsoleFormat {
		enc = zapcore.NewConsoleEncoder(l.encoderConfig())
	}

	var sinks []zapcore.WriteSyncer
	if cfg.EnableConsole {
		sinks = append(sinks, zapcore.Lock(os.Stdout))
	}
	if cfg.EnableFile {
		w, err := NewRotationWriter(&cfg.Rotation, cfg.OutputPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create rotation writer: %w", err)
		}
		sinks = append(sinks, zapcore.AddSync(w))
	}

	var core zapcore.Core = zapcore.NewCore(enc, zapcore.NewMultiWriteSyncer(sinks...), l.level)
	hooks := l.hooks
	if len(cfg.RedactKeys) > 0 {
		hooks = append([]Hook{SensitiveDataHook(cfg.RedactKeys)}, hooks...)
	}
	if len(hooks) > 0 {
		core = NewHookedCore(core, hooks...)
	}
	if cfg.EnableSampling {
		core = zapcore.NewSamplerWithOptions(core, time.Second, cfg.SamplingInitial, cfg.SamplingThereafter)
	}
	return core, nil
}

func (l *BaseLogger) encoderConfig() zapcore.EncoderConfig {
	ec := zap.NewProductionEncoderConfig()
	ec.TimeKey = "time"
	ec.MessageKey = "msg"
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	ec.EncodeDuration = zapcore.StringDurationEncoder
	if l.config.TimeFormat != "" {
		ec.EncodeTime = zapcore.TimeEncoderOfLayout(l.config.TimeFormat)
	}
	if l.config.Development {
		ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	return ec
}

// SetLevel 运行时调整输出等级
func (l *BaseLogger) SetLevel(level Level) error {
	lvl, err := level.zap()
	if err != nil {
		return err
	}
	l.level.SetLevel(lvl)
	return nil
}

// GetLevel 当前输出等级
func (l *BaseLogger) GetLevel() Level {
	return Level(l.level.Level().String())
}

func (l *BaseLogger) Debug(msg string, keysAndValues ...any) {
	l.write(zapcore.DebugLevel, msg, keysAndValues, nil)
}

func (l *BaseLogger) Info(msg string, keysAndValues ...any) {
	l.write(zapcore.InfoLevel, msg, keysAndValues, nil)
}

func (l *BaseLogger) Warn(msg string, keysAndValues ...any) {
	l.write(zapcore.WarnLevel, msg, keysAndValues, nil)
}

func (l *BaseLogger) Error(msg string, keysAndValues ...any) {
	l.write(zapcore.ErrorLevel, msg, keysAndValues, nil)
}

func (l *BaseLogger) DebugContext(ctx context.Context, msg string, keysAndValues ...any) {
	l.write(zapcore.DebugLevel, msg, keysAndValues, l.contextExtractor(ctx))
}

func (l *BaseLogger) InfoContext(ctx context.Context, msg string, keysAndValues ...any) {
	l.write(zapcore.InfoLevel, msg, keysAndValues, l.contextExtractor(ctx))
}

func (l *BaseLogger) WarnContext(ctx context.Context, msg string, keysAndValues ...any) {
	l.write(zapcore.WarnLevel, msg, keysAndValues, l.contextExtractor(ctx))
}

func (l *BaseLogger) ErrorContext(ctx context.Context, msg string, keysAndValues ...any) {
	l.write(zapcore.ErrorLevel, msg, keysAndValues, l.contextExtractor(ctx))
}

// write 等级未开启时不做字段转换，ctxFields 排在调用方字段之前
func (l *BaseLogger) write(lvl zapcore.Level, msg string, keysAndValues []any, ctxFields []zap.Field) {
	ce := l.Logger.Check(lvl, msg)
	if ce == nil {
		return
	}
	ce.Write(append(ctxFields, toZapFields(keysAndValues)...)...)
}

// Named 创建具名 logger，名称按 zap 规则以点号拼接
func (l *BaseLogger) Named(name string) Logger {
	clone := *l
	clone.Logger = l.Logger.Named(name)
	return &clone
}

// WithFields 返回附带固定字段的 logger
func (l *BaseLogger) WithFields(keysAndValues ...any) Logger {
	fields := toZapFields(keysAndValues)
	if len(fields) == 0 {
		return l
	}
	clone := *l
	clone.Logger = l.Logger.With(fields...)
	return &clone
}

func (l *BaseLogger) Sync() error {
	return l.Logger.Sync()
}

// toZapFields 把 key/value 列表转换为 zap 字段
//
// 参数全部是 zap.Field 时直接使用；error 值按错误字段输出；
// 末尾缺值的键写入 MissingValue；非字符串键连同其值被跳过。
func toZapFields(keysAndValues []any) []zap.Field {
	if len(keysAndValues) == 0 {
		return nil
	}
	if _, ok := keysAndValues[0].(zap.Field); ok {
		fields := make([]zap.Field, 0, len(keysAndValues))
		for _, v := range keysAndValues {
			if f, ok := v.(zap.Field); ok {
				fields = append(fields, f)
			}
		}
		return fields
	}

	fields := make([]zap.Field, 0, (len(keysAndValues)+1)/2)
	for i := 0; i < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		if i+1 == len(keysAndValues) {
			fields = append(fields, zap.String(key, MissingValue))
			break
		}
		if err, ok := keysAndValues[i+1].(error); ok {
			fields = append(fields, zap.NamedError(key, err))
			continue
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}
