package app

import (
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/lk2023060901/xdooria-dungeon/pkg/logger"
)

// Options BaseApp 的选项
type Options struct {
	// ID 本次进程的实例 ID，默认是按时间排序的 UUIDv7
	ID   string
	Name string
	// StopTimeout 并发停止 Server 的总等待时间
	StopTimeout time.Duration
	// Logger 为空时使用 logger.Default()
	Logger logger.Logger
}

type Option func(*Options)

// DefaultOptions 名称取可执行文件名
func DefaultOptions() Options {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return Options{
		ID:          id.String(),
		Name:        filepath.Base(os.Args[0]),
		StopTimeout: 30 * time.Second,
	}
}

func WithName(name string) Option            { return func(o *Options) { o.Name = name } }
func WithLogger(l logger.Logger) Option      { return func(o *Options) { o.Logger = l } }
func WithStopTimeout(d time.Duration) Option { return func(o *Options) { o.StopTimeout = d } }
