package manager

import (
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/lk2023060901/xdooria-dungeon/app/dungeon/internal/model"
	"github.com/lk2023060901/xdooria-dungeon/pkg/logger"
)

// span 当天已解析的开放区间 [open, close)
type span struct {
	open, close time.Time
}

// TimeGate 每日开放时间判断
//
// 时间段在跨天后的第一次判断时解析为当天的绝对时间，之后直接比较。
// 未配置任何时间段时始终开放。
type TimeGate struct {
	clock  clockwork.Clock
	loc    *time.Location
	logger logger.Logger

	mu      sync.Mutex
	windows []model.TimeWindow
	clocks  [][2]model.Clock
	day     string
	spans   []span
}

// NewTimeGate 创建时间门
func NewTimeGate(windows []model.TimeWindow, loc *time.Location, clock clockwork.Clock, l logger.Logger) (*TimeGate, error) {
	if loc == nil {
		loc = time.Local
	}
	g := &TimeGate{
		clock:  clock,
		loc:    loc,
		logger: l.Named("manager.time_gate"),
	}
	if err := g.SetWindows(windows); err != nil {
		return nil, err
	}
	return g, nil
}

// SetWindows 替换时间段配置，下一次判断时重新解析
func (g *TimeGate) SetWindows(windows []model.TimeWindow) error {
	clocks := make([][2]model.Clock, 0, len(windows))
	for _, w := range windows {
		openAt, closeAt, err := w.Clocks()
		if err != nil {
			return err
		}
		clocks = append(clocks, [2]model.Clock{openAt, closeAt})
	}

	g.mu.Lock()
	g.windows = append([]model.TimeWindow(nil), windows...)
	g.clocks = clocks
	g.day = ""
	g.mu.Unlock()

	g.logger.Info("time windows updated", "windows", g.Description())
	return nil
}

// IsOpenNow 当前是否开放
func (g *TimeGate) IsOpenNow() bool {
	return g.IsOpenAt(g.clock.Now())
}

// IsOpenAt 指定时刻是否开放
func (g *TimeGate) IsOpenAt(now time.Time) bool {
	now = now.In(g.loc)

	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.clocks) == 0 {
		return true
	}

	if day := model.DateOf(now, g.loc); day != g.day {
		g.resolveLocked(now)
		g.day = day
	}

	for _, s := range g.spans {
		if !now.Before(s.open) && now.Before(s.close) {
			return true
		}
	}
	return false
}

// resolveLocked 把时间段按墙上时间解析为 now 所在日期的绝对时间
func (g *TimeGate) resolveLocked(now time.Time) {
	y, m, d := now.Date()

	g.spans = g.spans[:0]
	for _, c := range g.clocks {
		g.spans = append(g.spans, span{
			open:  c[0].On(y, m, d, g.loc),
			close: c[1].On(y, m, d, g.loc),
		})
	}
}

// Description 时间段描述，如 "07:00:00-23:00:00"
func (g *TimeGate) Description() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.windows) == 0 {
		return "all day"
	}
	parts := make([]string, len(g.windows))
	for i, w := range g.windows {
		parts[i] = w.String()
	}
	return strings.Join(parts, ", ")
}
