package prometheus

import "errors"

// ErrInvalidConfig 无效配置
var ErrInvalidConfig = errors.New("prometheus: invalid config")
