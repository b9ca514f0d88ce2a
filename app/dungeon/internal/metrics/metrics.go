package metrics

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/lk2023060901/xdooria-dungeon/pkg/config"
	"github.com/lk2023060901/xdooria-dungeon/pkg/metrics/sliding"
	"github.com/lk2023060901/xdooria-dungeon/pkg/metrics/system"
	"github.com/prometheus/client_golang/prometheus"
)

// Config 指标配置
type Config struct {
	// Namespace 指标命名空间
	Namespace string `mapstructure:"namespace"`
	// SystemSampleInterval 进程资源最短采样间隔，期间的读取复用上一次采样
	SystemSampleInterval time.Duration `mapstructure:"system_sample_interval"`
	// SlidingWindow 巡检耗时滑动窗口
	SlidingWindow sliding.WindowConfig `mapstructure:"sliding_window"`
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		Namespace:            "dungeon",
		SystemSampleInterval: 5 * time.Second,
		SlidingWindow:         *sliding.DefaultWindowConfig(),
	}
}

// DungeonMetrics 副本服务指标
type DungeonMetrics struct {
	config *Config

	// 副本指标
	ActiveInstances prometheus.Gauge       // 当前存活副本数
	JoinsTotal      *prometheus.CounterVec // 进入请求数（按结果）
	TeardownsTotal  *prometheus.CounterVec // 副本销毁数（按原因）
	WavesCleared    *prometheus.CounterVec // 通关波次数（按波次）

	// 配额存储指标
	QuotaOpsTotal   *prometheus.CounterVec   // 配额操作数（按驱动、操作、结果）
	QuotaOpDuration *prometheus.HistogramVec // 配额操作延迟

	// 巡检指标
	SweepDuration prometheus.Histogram

	activeCount atomic.Int64

	system      *system.Sampler
	sweepWindow *sliding.Window
}

// New 创建副本指标
func New(cfg *Config, clock clockwork.Clock) (*DungeonMetrics, error) {
	newCfg, err := config.MergeConfig(DefaultConfig(), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to merge metrics config: %w", err)
	}

	sampler, err := system.New(newCfg.Namespace, newCfg.SystemSampleInterval, clock)
	if err != nil {
		return nil, fmt.Errorf("failed to create system sampler: %w", err)
	}

	sweepWindow, err := sliding.NewWindow(&newCfg.SlidingWindow, clock)
	if err != nil {
		return nil, fmt.Errorf("failed to create sliding window: %w", err)
	}

	m := &DungeonMetrics{
		config: newCfg,

		ActiveInstances: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: newCfg.Namespace,
				Name:      "active_instances",
				Help:      "当前存活的副本实例数",
			},
		),
		JoinsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: newCfg.Namespace,
				Name:      "joins_total",
				Help:      "进入副本请求总数",
			},
			[]string{"result"}, // result: created/existing/rejected 原因
		),
		TeardownsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: newCfg.Namespace,
				Name:      "teardowns_total",
				Help:      "副本销毁总数",
			},
			[]string{"reason"},
		),
		WavesCleared: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: newCfg.Namespace,
				Name:      "waves_cleared_total",
				Help:      "通关波次总数",
			},
			[]string{"wave"},
		),

		QuotaOpsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: newCfg.Namespace,
				Name:      "quota_ops_total",
				Help:      "配额存储操作总数",
			},
			[]string{"driver", "op", "result"},
		),
		QuotaOpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: newCfg.Namespace,
				Name:      "quota_op_duration_seconds",
				Help:      "配额存储操作延迟（秒）",
				Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"driver", "op"},
		),

		SweepDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: newCfg.Namespace,
				Name:      "sweep_duration_seconds",
				Help:      "单次巡检耗时（秒）",
				Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
			},
		),

		system:      sampler,
		sweepWindow: sweepWindow,
	}
	return m, nil
}

// Register 注册指标到 Prometheus Registry
func (m *DungeonMetrics) Register(registerer prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.ActiveInstances,
		m.JoinsTotal,
		m.TeardownsTotal,
		m.WavesCleared,
		m.QuotaOpsTotal,
		m.QuotaOpDuration,
		m.SweepDuration,
		m.system,
	}

	for _, c := range collectors {
		if err := registerer.Register(c); err != nil {
			return err
		}
	}

	return nil
}

// Namespace 指标命名空间
func (m *DungeonMetrics) Namespace() string {
	return m.config.Namespace
}

// RecordJoin 记录进入请求结果
func (m *DungeonMetrics) RecordJoin(result string) {
	m.JoinsTotal.WithLabelValues(result).Inc()
}

// RecordInstanceCreated 记录副本创建
func (m *DungeonMetrics) RecordInstanceCreated() {
	m.activeCount.Add(1)
	m.ActiveInstances.Inc()
}

// RecordTeardown 记录副本销毁
func (m *DungeonMetrics) RecordTeardown(reason string) {
	m.activeCount.Add(-1)
	m.ActiveInstances.Dec()
	m.TeardownsTotal.WithLabelValues(reason).Inc()
}

// RecordWaveCleared 记录通关波次
func (m *DungeonMetrics) RecordWaveCleared(wave int) {
	m.WavesCleared.WithLabelValues(fmt.Sprint(wave)).Inc()
}

// RecordQuotaOp 记录配额存储操作
func (m *DungeonMetrics) RecordQuotaOp(driver, op string, success bool, duration float64) {
	result := "success"
	if !success {
		result = "failed"
	}
	m.QuotaOpsTotal.WithLabelValues(driver, op, result).Inc()
	m.QuotaOpDuration.WithLabelValues(driver, op).Observe(duration)
}

// RecordSweep 记录一次巡检
func (m *DungeonMetrics) RecordSweep(success bool, d time.Duration) {
	m.SweepDuration.Observe(d.Seconds())
	m.sweepWindow.Record(d, success)
}

// GetStats 获取运行统计（用于状态接口）
func (m *DungeonMetrics) GetStats() Stats {
	sweeps := m.sweepWindow.Snapshot()
	sys := m.system.Sample()

	return Stats{
		ActiveInstances: m.activeCount.Load(),
		SweepsPerSecond: sweeps.Rate,
		SweepAvgLatency: sweeps.Mean.Seconds(),
		SweepMaxLatency: sweeps.Max.Seconds(),
		SweepSuccess:    sweeps.SuccessRatio() * 100,
		CPUPercent:      sys.CPUPercent,
		MemoryPercent:   sys.MemoryPercent,
		MemoryBytes:     sys.MemoryBytes,
		Goroutines:      sys.Goroutines,
	}
}

// Stats 运行统计
type Stats struct {
	ActiveInstances int64   `json:"active_instances"`
	SweepsPerSecond float64 `json:"sweeps_per_second"`
	SweepAvgLatency float64 `json:"sweep_avg_latency"`
	SweepMaxLatency float64 `json:"sweep_max_latency"`
	SweepSuccess    float64 `json:"sweep_success_rate"`
	CPUPercent      float64 `json:"cpu_percent"`
	MemoryPercent   float64 `json:"memory_percent"`
	MemoryBytes     uint64  `json:"memory_bytes"`
	Goroutines      int     `json:"goroutines"`
}
