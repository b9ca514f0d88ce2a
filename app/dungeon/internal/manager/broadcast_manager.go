package manager

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/lk2023060901/xdooria-dungeon/pkg/logger"
)

// Message 推送给玩家的消息
type Message struct {
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// BroadcastManager 广播管理器，为每个玩家维护有界的消息队列，由客户端轮询拉取
type BroadcastManager struct {
	logger   logger.Logger
	clock    clockwork.Clock
	scenes   *SceneManager
	capacity int

	mu       sync.Mutex
	outboxes map[int64][]Message // playerID -> 待拉取消息
}

var _ Messenger = (*BroadcastManager)(nil)

// NewBroadcastManager 创建广播管理器，capacity 为每个玩家保留的最大消息数
func NewBroadcastManager(l logger.Logger, clock clockwork.Clock, scenes *SceneManager, capacity int) *BroadcastManager {
	if capacity <= 0 {
		capacity = 64
	}
	return &BroadcastManager{
		logger:   l.Named("manager.broadcast"),
		clock:    clock,
		scenes:   scenes,
		capacity: capacity,
		outboxes: make(map[int64][]Message),
	}
}

// Notify 发送消息给指定玩家，队列满时丢弃最旧的消息
func (m *BroadcastManager) Notify(playerID int64, text string) {
	msg := Message{Text: text, At: m.clock.Now()}

	m.mu.Lock()
	box := append(m.outboxes[playerID], msg)
	if len(box) > m.capacity {
		box = box[len(box)-m.capacity:]
	}
	m.outboxes[playerID] = box
	m.mu.Unlock()

	m.logger.Debug("message queued", "player_id", playerID, "text", text)
}

// BroadcastZone 发送消息给区域内的所有玩家
func (m *BroadcastManager) BroadcastZone(zoneID int64, text string) {
	players := m.scenes.PlayersInZone(zoneID)
	for _, id := range players {
		m.Notify(id, text)
	}
}

// Drain 取出玩家的全部待拉取消息
func (m *BroadcastManager) Drain(playerID int64) []Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	box := m.outboxes[playerID]
	delete(m.outboxes, playerID)
	return box
}

// Pending 玩家待拉取消息数
func (m *BroadcastManager) Pending(playerID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.outboxes[playerID])
}
