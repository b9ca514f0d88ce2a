package sentry

import "errors"

var (
	ErrNilConfig     = errors.New("sentry: nil config")
	ErrInvalidConfig = errors.New("sentry: invalid config")
	ErrInvalidDSN    = errors.New("sentry: invalid DSN")

	// ErrFlushTimeout 关闭时仍有事件未发送
	ErrFlushTimeout = errors.New("sentry: flush timed out")
)
