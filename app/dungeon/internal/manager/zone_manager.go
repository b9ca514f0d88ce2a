package manager

import (
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/lk2023060901/xdooria-dungeon/app/dungeon/internal/model"
	"github.com/lk2023060901/xdooria-dungeon/pkg/logger"
)

// ZoneManager 私有分区分配器
//
// 分区 ID 从 idBase 之后单调递增，与地图静态配置的区域 ID 不重叠，
// 只有创建成功时计数器才前进。
type ZoneManager struct {
	maps      MapRegistry
	hostiles  HostileFactory
	messenger Messenger
	logger    logger.Logger

	mu     sync.Mutex
	idBase int64
	next   int64
}

// NewZoneManager 创建分区分配器
func NewZoneManager(l logger.Logger, idBase int64, maps MapRegistry, hostiles HostileFactory, messenger Messenger) *ZoneManager {
	return &ZoneManager{
		maps:      maps,
		hostiles:  hostiles,
		messenger: messenger,
		logger:    l.Named("manager.zone"),
		idBase:    idBase,
		next:      idBase,
	}
}

// Create 在 mapID 上为 owner 创建私有分区
func (m *ZoneManager) Create(mapID int32, owner model.Player) (*Partition, error) {
	if _, ok := m.maps.MapDefinition(mapID); !ok {
		return nil, errors.Wrapf(ErrMapUnavailable, "map %d", mapID)
	}

	m.mu.Lock()
	zone := &model.Zone{
		ID:       m.next + 1,
		MapID:    mapID,
		OwnerID:  owner.ID,
		Private:  true,
		Capacity: 1,
	}
	if err := m.maps.AttachZone(zone); err != nil {
		m.mu.Unlock()
		return nil, errors.Mark(errors.Wrapf(err, "attach zone to map %d", mapID), ErrMapUnavailable)
	}
	m.next = zone.ID
	m.mu.Unlock()

	m.logger.Info("partition created", "zone_id", zone.ID, "map_id", mapID, "owner_id", owner.ID)

	return &Partition{
		zone:        *zone,
		companionID: owner.CompanionID,
		maps:        m.maps,
		hostiles:    m.hostiles,
		messenger:   m.messenger,
		logger:      m.logger,
		occupants:   make(map[int64]model.Entity),
	}, nil
}

// Allocated 已分配的分区数量
func (m *ZoneManager) Allocated() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.next - m.idBase
}

// Partition 单人私有分区
type Partition struct {
	zone        model.Zone
	companionID int64
	maps        MapRegistry
	hostiles    HostileFactory
	messenger   Messenger
	logger      logger.Logger

	mu        sync.Mutex
	closed    bool
	occupants map[int64]model.Entity
}

// ZoneID 分区 ID
func (p *Partition) ZoneID() int64 { return p.zone.ID }

// Zone 分区的区域定义
func (p *Partition) Zone() model.Zone { return p.zone }

// Admit 实体进入分区，只接受所有者本人及其宠物
func (p *Partition) Admit(e model.Entity) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPartitionClosed
	}

	allowed := false
	switch e.Kind {
	case model.EntityPlayer:
		allowed = e.ID == p.zone.OwnerID
	case model.EntityCompanion:
		allowed = e.OwnerID == p.zone.OwnerID && (p.companionID == 0 || e.ID == p.companionID)
	}
	if !allowed {
		if e.OwnerID != 0 {
			p.messenger.Notify(e.OwnerID, "this dungeon instance belongs to another player")
		}
		p.logger.Warn("partition admission denied",
			"zone_id", p.zone.ID,
			"entity_id", e.ID,
			"kind", e.Kind.String(),
		)
		return errors.Wrapf(ErrAdmissionDenied, "zone %d", p.zone.ID)
	}

	p.occupants[e.ID] = e
	return nil
}

// Occupants 当前在分区内的实体
func (p *Partition) Occupants() []model.Entity {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]model.Entity, 0, len(p.occupants))
	for _, e := range p.occupants {
		out = append(out, e)
	}
	return out
}

// Closed 分区是否已关闭
func (p *Partition) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Close 清除分区内所有怪物并从地图上移除，只有第一次调用返回 true
func (p *Partition) Close() bool {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return false
	}
	p.closed = true
	p.occupants = make(map[int64]model.Entity)
	p.mu.Unlock()

	removed := p.hostiles.Despawn(p.zone.ID, nil)
	p.maps.DetachZone(p.zone.MapID, p.zone.ID)

	p.logger.Info("partition closed", "zone_id", p.zone.ID, "owner_id", p.zone.OwnerID, "hostiles_removed", removed)
	return true
}
