package logger

import "errors"

var (
	ErrInvalidConfig     = errors.New("invalid logger config")
	ErrInvalidOutputPath = errors.New("output path is required when file output is enabled")
	ErrNoOutputEnabled   = errors.New("at least one output (console or file) must be enabled")
)
