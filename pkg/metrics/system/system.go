package system

import (
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// Sample 一次进程资源采样
type Sample struct {
	// CPUPercent 自上次采样以来的 CPU 占用，可超过 100（多核）
	CPUPercent float64
	// MemoryBytes 常驻内存
	MemoryBytes uint64
	// MemoryPercent 常驻内存占主机内存的百分比
	MemoryPercent float64
	Goroutines    int
	Threads       int32
	At            time.Time
}

// Sampler 按需采样当前进程，MinInterval 内的重复调用返回上一次结果
//
// 没有后台协程：Prometheus 抓取与状态接口的调用驱动采样。
// CPU 占用按两次采样之间的增量计算，第一次采样为 0。
type Sampler struct {
	proc        *process.Process
	clock       clockwork.Clock
	minInterval time.Duration

	mu   sync.Mutex
	last Sample

	cpuDesc     *prometheus.Desc
	rssDesc     *prometheus.Desc
	rssPctDesc  *prometheus.Desc
	threadsDesc *prometheus.Desc
}

// New 创建当前进程的采样器，clock 为 nil 时使用真实时钟
func New(namespace string, minInterval time.Duration, clock clockwork.Clock) (*Sampler, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, fmt.Errorf("open process %d: %w", os.Getpid(), err)
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "process", name), help, nil, nil)
	}
	return &Sampler{
		proc:        proc,
		clock:       clock,
		minInterval: minInterval,
		cpuDesc:     desc("cpu_percent", "Process CPU usage percent since the previous sample."),
		rssDesc:     desc("resident_memory_bytes", "Process resident memory in bytes."),
		rssPctDesc:  desc("resident_memory_percent", "Process resident memory as percent of host memory."),
		threadsDesc: desc("threads", "OS threads used by the process."),
	}, nil
}

// Sample 返回最近的采样，过期时重新采样
//
// 单项读取失败时该项保留上一次的值。
func (s *Sampler) Sample() Sample {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.last.At.IsZero() && now.Sub(s.last.At) < s.minInterval {
		return s.last
	}

	next := s.last
	next.At = now
	next.Goroutines = runtime.NumGoroutine()
	if pct, err := s.proc.Percent(0); err == nil {
		next.CPUPercent = pct
	}
	if info, err := s.proc.MemoryInfo(); err == nil {
		next.MemoryBytes = info.RSS
		if vm, err := mem.VirtualMemory(); err == nil && vm.Total > 0 {
			next.MemoryPercent = float64(info.RSS) / float64(vm.Total) * 100
		}
	}
	if n, err := s.proc.NumThreads(); err == nil {
		next.Threads = n
	}

	s.last = next
	return next
}

// Describe 实现 prometheus.Collector
func (s *Sampler) Describe(ch chan<- *prometheus.Desc) {
	ch <- s.cpuDesc
	ch <- s.rssDesc
	ch <- s.rssPctDesc
	ch <- s.threadsDesc
}

// Collect 实现 prometheus.Collector
func (s *Sampler) Collect(ch chan<- prometheus.Metric) {
	sm := s.Sample()
	ch <- prometheus.MustNewConstMetric(s.cpuDesc, prometheus.GaugeValue, sm.CPUPercent)
	ch <- prometheus.MustNewConstMetric(s.rssDesc, prometheus.GaugeValue, float64(sm.MemoryBytes))
	ch <- prometheus.MustNewConstMetric(s.rssPctDesc, prometheus.GaugeValue, sm.MemoryPercent)
	ch <- prometheus.MustNewConstMetric(s.threadsDesc, prometheus.GaugeValue, float64(sm.Threads))
}
