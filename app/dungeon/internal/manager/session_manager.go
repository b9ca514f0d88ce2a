package manager

import (
	"sync"

	"github.com/lk2023060901/xdooria-dungeon/app/dungeon/internal/model"
	"github.com/lk2023060901/xdooria-dungeon/pkg/logger"
)

// SessionManager 在线玩家管理
type SessionManager struct {
	logger logger.Logger

	mu      sync.RWMutex
	players map[int64]*model.Player // playerID -> Player
}

// NewSessionManager 创建会话管理器
func NewSessionManager(l logger.Logger) *SessionManager {
	return &SessionManager{
		logger:  l.Named("manager.session"),
		players: make(map[int64]*model.Player),
	}
}

// Register 玩家上线，已在线时覆盖旧数据
func (m *SessionManager) Register(p model.Player) {
	m.mu.Lock()
	m.players[p.ID] = &p
	count := len(m.players)
	m.mu.Unlock()

	m.logger.Info("player online",
		"player_id", p.ID,
		"admin", p.Admin,
		"online_count", count,
	)
}

// Unregister 玩家下线
func (m *SessionManager) Unregister(playerID int64) (model.Player, bool) {
	m.mu.Lock()
	p, ok := m.players[playerID]
	delete(m.players, playerID)
	m.mu.Unlock()

	if !ok {
		return model.Player{}, false
	}
	m.logger.Info("player offline", "player_id", playerID)
	return *p, true
}

// Get 获取在线玩家副本
func (m *SessionManager) Get(playerID int64) (model.Player, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.players[playerID]
	if !ok {
		return model.Player{}, false
	}
	return *p, true
}

// IsOnline 检查玩家是否在线
func (m *SessionManager) IsOnline(playerID int64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.players[playerID]
	return ok
}

// Count 在线人数
func (m *SessionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.players)
}
