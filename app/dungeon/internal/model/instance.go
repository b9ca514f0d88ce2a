package model

import (
	"fmt"
	"time"
)

// WaveState 波次状态机状态
type WaveState int

const (
	WavePreparing WaveState = iota + 1 // 开战倒计时
	WaveActive                         // 战斗中
	WaveComplete                       // 本波完成，等待下一波
	WaveFailed                         // 超时失败（终态）
	WaveTerminated                     // 被外部终止（终态）
)

func (s WaveState) String() string {
	switch s {
	case WavePreparing:
		return "preparing"
	case WaveActive:
		return "active"
	case WaveComplete:
		return "wave_complete"
	case WaveFailed:
		return "failed"
	case WaveTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Terminal 是否为终态
func (s WaveState) Terminal() bool {
	return s == WaveFailed || s == WaveTerminated
}

// MarshalText 以字符串形式输出
func (s WaveState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText 从字符串解析
func (s *WaveState) UnmarshalText(text []byte) error {
	for st := WavePreparing; st <= WaveTerminated; st++ {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown wave state %q", text)
}

// Instance 副本实例快照
type Instance struct {
	ID            int64         `json:"id"`
	OwnerID       int64         `json:"owner_id"`
	ZoneID        int64         `json:"zone_id"`
	Wave          int           `json:"wave"`
	State         WaveState     `json:"state"`
	Active        bool          `json:"active"`
	Started       bool          `json:"started"` // 本波倒计时已结束、战斗开始
	WaveStart     time.Time     `json:"wave_start"`
	TimeLimit     time.Duration `json:"time_limit"`
	RequiredKills int           `json:"required_kills"`
	Kills         int           `json:"kills"`
	CreatedAt     time.Time     `json:"created_at"`
}
