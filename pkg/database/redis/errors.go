package redis

import "errors"

var (
	// ErrNilConfig 配置为空
	ErrNilConfig = errors.New("redis config is nil")

	// ErrInvalidConfig 配置无效，具体原因见包装的错误信息
	ErrInvalidConfig = errors.New("invalid redis config")
)
