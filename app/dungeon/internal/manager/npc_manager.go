package manager

import (
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/lk2023060901/xdooria-dungeon/app/dungeon/internal/model"
	"github.com/lk2023060901/xdooria-dungeon/pkg/idgen"
	"github.com/lk2023060901/xdooria-dungeon/pkg/logger"
)

// DeathHandler 怪物死亡回调
type DeathHandler func(h model.Hostile)

// NpcManager 怪物管理器，实现 HostileFactory
type NpcManager struct {
	logger logger.Logger
	ids    idgen.Generator

	mu       sync.RWMutex
	hostiles map[int64]*model.Hostile           // hostileID -> Hostile
	byZone   map[int64]map[int64]*model.Hostile // zoneID -> hostileID -> Hostile
	onDeath  DeathHandler
}

var _ HostileFactory = (*NpcManager)(nil)

// NewNpcManager 创建怪物管理器
func NewNpcManager(l logger.Logger, ids idgen.Generator) *NpcManager {
	return &NpcManager{
		logger:   l.Named("manager.npc"),
		ids:      ids,
		hostiles: make(map[int64]*model.Hostile),
		byZone:   make(map[int64]map[int64]*model.Hostile),
	}
}

// OnDeath 设置怪物死亡回调
func (m *NpcManager) OnDeath(fn DeathHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onDeath = fn
}

// Spawn 在区域内生成一只怪物
func (m *NpcManager) Spawn(zoneID int64, req SpawnRequest) (*model.Hostile, error) {
	id, err := m.ids.NextID()
	if err != nil {
		return nil, errors.Wrap(err, "allocate hostile id")
	}

	h := &model.Hostile{
		ID:         id,
		TemplateID: req.TemplateID,
		ZoneID:     zoneID,
		Tag:        req.Tag,
		Level:      req.Level,
		HP:         req.HP,
		Damage:     req.Damage,
		Pos:        req.Pos,
	}

	m.mu.Lock()
	m.hostiles[id] = h
	zone, ok := m.byZone[zoneID]
	if !ok {
		zone = make(map[int64]*model.Hostile)
		m.byZone[zoneID] = zone
	}
	zone[id] = h
	m.mu.Unlock()

	out := *h
	return &out, nil
}

// Despawn 移除区域内满足条件的怪物，match 为 nil 时移除全部
func (m *NpcManager) Despawn(zoneID int64, match func(*model.Hostile) bool) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	zone := m.byZone[zoneID]
	n := 0
	for id, h := range zone {
		if match != nil && !match(h) {
			continue
		}
		delete(zone, id)
		delete(m.hostiles, id)
		n++
	}
	if len(zone) == 0 {
		delete(m.byZone, zoneID)
	}
	return n
}

// Kill 怪物死亡，移除后在锁外触发死亡回调
func (m *NpcManager) Kill(hostileID int64) (model.Hostile, bool) {
	m.mu.Lock()
	h, ok := m.hostiles[hostileID]
	if !ok {
		m.mu.Unlock()
		return model.Hostile{}, false
	}
	delete(m.hostiles, hostileID)
	if zone := m.byZone[h.ZoneID]; zone != nil {
		delete(zone, hostileID)
		if len(zone) == 0 {
			delete(m.byZone, h.ZoneID)
		}
	}
	onDeath := m.onDeath
	m.mu.Unlock()

	m.logger.Debug("hostile killed",
		"hostile_id", hostileID,
		"zone_id", h.ZoneID,
		"instance_id", h.Tag.InstanceID,
		"wave", h.Tag.Wave,
	)

	if onDeath != nil {
		onDeath(*h)
	}
	return *h, true
}

// Hostile 获取怪物
func (m *NpcManager) Hostile(hostileID int64) (model.Hostile, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	h, ok := m.hostiles[hostileID]
	if !ok {
		return model.Hostile{}, false
	}
	return *h, true
}

// HostilesInZone 区域内的所有怪物
func (m *NpcManager) HostilesInZone(zoneID int64) []model.Hostile {
	m.mu.RLock()
	defer m.mu.RUnlock()

	zone := m.byZone[zoneID]
	out := make([]model.Hostile, 0, len(zone))
	for _, h := range zone {
		out = append(out, *h)
	}
	return out
}

// Count 怪物总数
func (m *NpcManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.hostiles)
}
