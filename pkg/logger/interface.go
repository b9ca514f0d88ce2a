package logger

import "context"

// Logger 各组件依赖的键值对日志接口，实现见 BaseLogger
type Logger interface {
	// 基础日志方法
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)

	// Context 版本
	DebugContext(ctx context.Context, msg string, keysAndValues ...any)
	InfoContext(ctx context.Context, msg string, keysAndValues ...any)
	WarnContext(ctx context.Context, msg string, keysAndValues ...any)
	ErrorContext(ctx context.Context, msg string, keysAndValues ...any)

	// 派生方法
	Named(name string) Logger
	WithFields(keysAndValues ...any) Logger

	// 同步
	Sync() error
}
