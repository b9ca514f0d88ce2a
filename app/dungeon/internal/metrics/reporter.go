package metrics

import (
	"context"
	"maps"
	"strconv"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/lk2023060901/xdooria-dungeon/pkg/config"
	"github.com/lk2023060901/xdooria-dungeon/pkg/logger"
	"github.com/lk2023060901/xdooria-dungeon/pkg/registry"
	"github.com/lk2023060901/xdooria-dungeon/pkg/scheduler"
)

const reportTaskKey = "dungeon:report"

// ReporterConfig 负载上报配置
type ReporterConfig struct {
	// ReportInterval 采样间隔，负载没有变化时不写注册中心
	ReportInterval time.Duration `mapstructure:"report_interval" validate:"gt=0"`
	// MaxSilence 负载不变时最长多久也要写一次，网关据 updated_at 判断节点是否存活
	MaxSilence time.Duration `mapstructure:"max_silence" validate:"gtefield=ReportInterval"`
	// Timeout 单次注册、上报或注销的超时
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

// DefaultReporterConfig 默认配置
func DefaultReporterConfig() *ReporterConfig {
	return &ReporterConfig{
		ReportInterval: 10 * time.Second,
		MaxSilence:     time.Minute,
		Timeout:        5 * time.Second,
	}
}

// Reporter 把节点负载写进注册元数据，供网关挑选副本节点，实现 app.Server
type Reporter struct {
	cfg       *ReporterConfig
	info      registry.ServiceInfo
	metrics   *DungeonMetrics
	registrar registry.Registrar
	sched     *scheduler.Scheduler
	logger    logger.Logger

	mu        sync.Mutex
	last      map[string]string
	lastWrite time.Time
	failing   bool
}

// NewReporter 创建上报器
func NewReporter(
	cfg *ReporterConfig,
	info registry.ServiceInfo,
	m *DungeonMetrics,
	registrar registry.Registrar,
	sched *scheduler.Scheduler,
	l logger.Logger,
) (*Reporter, error) {
	merged, err := config.MergeConfig(DefaultReporterConfig(), cfg)
	if err != nil {
		return nil, errors.Wrap(err, "merge reporter config")
	}
	if err := config.Validate(merged); err != nil {
		return nil, errors.Wrap(err, "reporter config")
	}

	return &Reporter{
		cfg:       merged,
		info:      info,
		metrics:   m,
		registrar: registrar,
		sched:     sched,
		logger:    l.Named("metrics.reporter"),
	}, nil
}

func (r *Reporter) timeout() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), r.cfg.Timeout)
}

// Start 带着当前负载注册节点，再按间隔上报
func (r *Reporter) Start() error {
	ctx, cancel := r.timeout()
	defer cancel()

	load := r.load()
	info := r.info
	info.Metadata = r.stamp(load)
	if err := r.registrar.Register(ctx, &info); err != nil {
		return errors.Wrap(err, "register service")
	}
	r.remember(load)

	if err := r.sched.Every(reportTaskKey, r.cfg.ReportInterval, r.report); err != nil {
		return err
	}
	r.logger.Info("metrics reporter started",
		"service", info.ServiceName,
		"address", info.Address,
		"interval", r.cfg.ReportInterval,
	)
	return nil
}

// Stop 取消上报任务并注销节点
func (r *Reporter) Stop() error {
	r.sched.Cancel(reportTaskKey)

	ctx, cancel := r.timeout()
	defer cancel()
	if err := r.registrar.Deregister(ctx); err != nil {
		return errors.Wrap(err, "deregister service")
	}
	r.logger.Info("metrics reporter stopped")
	return nil
}

// report 负载有变化或已沉默超过 MaxSilence 时写一次
func (r *Reporter) report() {
	load := r.load()
	now := r.sched.Clock().Now()

	r.mu.Lock()
	unchanged := maps.Equal(load, r.last) && now.Sub(r.lastWrite) < r.cfg.MaxSilence
	r.mu.Unlock()
	if unchanged {
		return
	}

	ctx, cancel := r.timeout()
	defer cancel()
	err := r.registrar.UpdateMetadata(ctx, r.stamp(load))

	r.mu.Lock()
	defer r.mu.Unlock()
	switch {
	case err != nil && !r.failing:
		r.failing = true
		r.logger.Warn("failed to report load", "error", err)
	case err != nil:
		r.logger.Debug("load report still failing", "error", err)
	case r.failing:
		r.failing = false
		r.logger.Info("load report recovered")
	}
	if err == nil {
		r.last, r.lastWrite = load, now
	}
}

func (r *Reporter) remember(load map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last, r.lastWrite = load, r.sched.Clock().Now()
}

// load 网关选节点用的负载，数值按固定精度格式化，避免抖动触发写入
func (r *Reporter) load() map[string]string {
	st := r.metrics.GetStats()
	return map[string]string{
		"active_instances":   strconv.FormatInt(st.ActiveInstances, 10),
		"sweep_avg_latency":  strconv.FormatFloat(st.SweepAvgLatency, 'f', 3, 64),
		"sweep_success_rate": strconv.FormatFloat(st.SweepSuccess, 'f', 2, 64),
		"cpu_percent":        strconv.FormatFloat(st.CPUPercent, 'f', 0, 64),
		"memory_percent":     strconv.FormatFloat(st.MemoryPercent, 'f', 0, 64),
		"memory_bytes":       strconv.FormatUint(st.MemoryBytes>>20<<20, 10),
		"goroutines":         strconv.Itoa(st.Goroutines),
	}
}

// stamp 复制一份并加上 updated_at
func (r *Reporter) stamp(load map[string]string) map[string]string {
	md := maps.Clone(load)
	md["updated_at"] = r.sched.Clock().Now().UTC().Format(time.RFC3339)
	return md
}
