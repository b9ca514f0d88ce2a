package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// RedactedValue 脱敏后写出的值
const RedactedValue = "***REDACTED***"

// Hook 在日志写出前回调，返回 false 丢弃该条日志
// fields 只包含本次调用的字段，不含 WithFields 固定的字段
type Hook interface {
	OnWrite(entry zapcore.Entry, fields []zapcore.Field) bool
}

// HookFunc 函数式 Hook
type HookFunc func(entry zapcore.Entry, fields []zapcore.Field) bool

func (f HookFunc) OnWrite(entry zapcore.Entry, fields []zapcore.Field) bool {
	return f(entry, fields)
}

// hookedCore 在底层 core 写出前依次执行钩子
type hookedCore struct {
	zapcore.Core
	hooks []Hook
}

// NewHookedCore 包装 core，hooks 按顺序执行
func NewHookedCore(core zapcore.Core, hooks ...Hook) zapcore.Core {
	return &hookedCore{Core: core, hooks: hooks}
}

func (h *hookedCore) Check(entry zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !h.Enabled(entry.Level) {
		return ce
	}
	return ce.AddCore(entry, h)
}

func (h *hookedCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	for _, hook := range h.hooks {
		if !hook.OnWrite(entry, fields) {
			return nil
		}
	}
	return h.Core.Write(entry, fields)
}

func (h *hookedCore) With(fields []zapcore.Field) zapcore.Core {
	return &hookedCore{Core: h.Core.With(fields), hooks: h.hooks}
}

// SensitiveDataHook 把命中 keys 的字段整体替换为 RedactedValue
// 替换的是整个字段，非字符串类型的值同样不会写出
func SensitiveDataHook(keys []string) Hook {
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}

	return HookFunc(func(_ zapcore.Entry, fields []zapcore.Field) bool {
		for i := range fields {
			if _, ok := set[fields[i].Key]; ok {
				fields[i] = zap.String(fields[i].Key, RedactedValue)
			}
		}
		return true
	})
}
