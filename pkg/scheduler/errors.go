package scheduler

import "errors"

var (
	// ErrSchedulerClosed 调度器已关闭
	ErrSchedulerClosed = errors.New("scheduler: closed")
	// ErrInvalidInterval 周期任务间隔必须大于 0
	ErrInvalidInterval = errors.New("scheduler: interval must be positive")
)
