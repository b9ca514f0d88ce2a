package sliding

import (
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/lk2023060901/xdooria-dungeon/pkg/config"
)

// WindowConfig 滑动窗口配置，Size 被均分为 Buckets 个时间片
type WindowConfig struct {
	Size    time.Duration `mapstructure:"size"`
	Buckets int           `mapstructure:"buckets"`
}

// DefaultWindowConfig 一分钟窗口，每秒一个时间片
func DefaultWindowConfig() *WindowConfig {
	return &WindowConfig{
		Size:    time.Minute,
		Buckets: 60,
	}
}

type slot struct {
	seq      int64 // 时间片序号，-1 表示从未写入
	count    int64
	failures int64
	total    time.Duration
	min      time.Duration
	max      time.Duration
}

// Window 按时间片统计次数、失败数与耗时
//
// 时间片在写入时按序号懒复用，读取时跳过窗口外的时间片，不需要后台协程。
type Window struct {
	clock clockwork.Clock
	size  time.Duration
	width time.Duration

	mu    sync.Mutex
	slots []slot
}

// NewWindow 创建窗口，clock 为 nil 时使用真实时钟
func NewWindow(cfg *WindowConfig, clock clockwork.Clock) (*Window, error) {
	merged, err := config.MergeConfig(DefaultWindowConfig(), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to merge window config: %w", err)
	}
	if merged.Buckets <= 0 || merged.Size < time.Duration(merged.Buckets) {
		return nil, fmt.Errorf("invalid window config: size=%s buckets=%d", merged.Size, merged.Buckets)
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	w := &Window{
		clock: clock,
		size:  merged.Size,
		width: merged.Size / time.Duration(merged.Buckets),
		slots: make([]slot, merged.Buckets),
	}
	for i := range w.slots {
		w.slots[i].seq = -1
	}
	return w, nil
}

func (w *Window) seq() int64 {
	return w.clock.Now().UnixNano() / int64(w.width)
}

// Record 记录一次操作
func (w *Window) Record(latency time.Duration, ok bool) {
	seq := w.seq()

	w.mu.Lock()
	defer w.mu.Unlock()

	s := &w.slots[seq%int64(len(w.slots))]
	if s.seq != seq {
		*s = slot{seq: seq, min: latency, max: latency}
	}
	s.count++
	s.total += latency
	if !ok {
		s.failures++
	}
	s.min = min(s.min, latency)
	s.max = max(s.max, latency)
}

// Stats 窗口内的汇总
type Stats struct {
	Count    int64
	Failures int64
	// Rate 平均每秒次数
	Rate float64
	Mean time.Duration
	Min  time.Duration
	Max  time.Duration
}

// SuccessRatio 成功占比，窗口为空时为 0
func (s Stats) SuccessRatio() float64 {
	if s.Count == 0 {
		return 0
	}
	return float64(s.Count-s.Failures) / float64(s.Count)
}

// Snapshot 汇总窗口内的时间片
func (w *Window) Snapshot() Stats {
	now := w.seq()
	oldest := now - int64(len(w.slots)) + 1

	w.mu.Lock()
	defer w.mu.Unlock()

	var st Stats
	var total time.Duration
	for _, s := range w.slots {
		if s.seq < oldest || s.seq > now || s.count == 0 {
			continue
		}
		if st.Count == 0 || s.min < st.Min {
			st.Min = s.min
		}
		st.Max = max(st.Max, s.max)
		st.Count += s.count
		st.Failures += s.failures
		total += s.total
	}

	if st.Count > 0 {
		st.Mean = total / time.Duration(st.Count)
		st.Rate = float64(st.Count) / w.size.Seconds()
	}
	return st
}
