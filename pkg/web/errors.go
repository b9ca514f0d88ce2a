package web

import "errors"

var (
	// ErrInvalidConfig 配置无效
	ErrInvalidConfig = errors.New("web: invalid config")

	// ErrServerAlreadyStarted Server 已启动
	ErrServerAlreadyStarted = errors.New("web: server already started")

	// ErrServerNotStarted Server 未启动
	ErrServerNotStarted = errors.New("web: server not started")
)
