package sentry

import (
	"fmt"

	"github.com/getsentry/sentry-go"
	"github.com/lk2023060901/xdooria-dungeon/pkg/logger"
	"go.uber.org/zap/zapcore"
)

// LogHook 把不低于 MinLevel 的日志作为事件上报，不影响日志本身的写入
//
// 事件按 logger 名与消息聚合；带 error 字段时附上异常与其调用栈。
func LogHook(c *Client) logger.Hook {
	return logger.HookFunc(func(entry zapcore.Entry, fields []zapcore.Field) bool {
		if entry.Level < c.minLevel {
			return true
		}
		c.capture(eventOf(entry, fields))
		return true
	})
}

func eventOf(entry zapcore.Entry, fields []zapcore.Field) *sentry.Event {
	enc := zapcore.NewMapObjectEncoder()
	var errs []error
	for _, f := range fields {
		if f.Type == zapcore.ErrorType {
			if err, ok := f.Interface.(error); ok {
				errs = append(errs, err)
			}
		}
		f.AddTo(enc)
	}

	event := sentry.NewEvent()
	event.Level = levelOf(entry.Level)
	event.Message = entry.Message
	event.Logger = entry.LoggerName
	event.Timestamp = entry.Time
	event.Extra = enc.Fields
	event.Fingerprint = []string{entry.LoggerName, entry.Message}
	if entry.Caller.Defined {
		event.Tags["caller"] = entry.Caller.TrimmedPath()
	}
	for _, err := range errs {
		event.Exception = append(event.Exception, sentry.Exception{
			Type:       fmt.Sprintf("%T", err),
			Value:      err.Error(),
			Stacktrace: sentry.ExtractStacktrace(err),
		})
	}
	return event
}

func levelOf(l zapcore.Level) sentry.Level {
	switch {
	case l >= zapcore.DPanicLevel:
		return sentry.LevelFatal
	case l >= zapcore.ErrorLevel:
		return sentry.LevelError
	default:
		return sentry.LevelWarning
	}
}
