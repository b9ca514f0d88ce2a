package logger

import "sync"

var (
	defaultLogger   *BaseLogger
	defaultLoggerMu sync.Mutex
)

// SetDefault 替换进程级默认 logger
func SetDefault(l *BaseLogger) {
	defaultLoggerMu.Lock()
	defer defaultLoggerMu.Unlock()
	defaultLogger = l
}

// Default 返回默认 logger，未设置时按默认配置创建控制台输出
// 仅用于主日志初始化之前的启动阶段
func Default() *BaseLogger {
	defaultLoggerMu.Lock()
	defer defaultLoggerMu.Unlock()
	if defaultLogger == nil {
		l, err := New(DefaultConfig())
		if err != nil {
			panic(err)
		}
		defaultLogger = l
	}
	return defaultLogger
}
