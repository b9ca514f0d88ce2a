package logger

import (
	"io"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"gopkg.in/natefinch/lumberjack.v2"
)

// NewRotationWriter 按 cfg.Type 创建文件输出，cfg 应已通过校验
func NewRotationWriter(cfg *RotationConfig, outputPath string) (io.Writer, error) {
	if cfg.Type == RotationByTime {
		// outputPath 始终指向当前文件，历史文件带时间后缀
		return rotatelogs.New(
			outputPath+cfg.Pattern,
			rotatelogs.WithLinkName(outputPath),
			rotatelogs.WithRotationTime(cfg.Interval),
			rotatelogs.WithMaxAge(cfg.Retention),
		)
	}

	return &lumberjack.Logger{
		Filename:   outputPath,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
		LocalTime:  true,
	}, nil
}
