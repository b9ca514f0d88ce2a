package manager

import (
	"fmt"
	"sync"

	"github.com/lk2023060901/xdooria-dungeon/app/dungeon/internal/model"
	"github.com/lk2023060901/xdooria-dungeon/pkg/logger"
)

// Scene 地图实例
type Scene struct {
	Def     model.MapDefinition
	Zones   map[int64]*model.Zone // zoneID -> Zone
	Players map[int64]model.Location
}

// SceneManager 场景管理器，维护地图、区域和玩家位置，实现 MapRegistry
type SceneManager struct {
	logger logger.Logger

	mu     sync.RWMutex
	scenes map[int32]*Scene // mapID -> Scene

	// 玩家所在位置
	locations map[int64]model.Location // playerID -> Location
}

var _ MapRegistry = (*SceneManager)(nil)

// NewSceneManager 创建场景管理器
func NewSceneManager(l logger.Logger) *SceneManager {
	return &SceneManager{
		logger:    l.Named("manager.scene"),
		scenes:    make(map[int32]*Scene),
		locations: make(map[int64]model.Location),
	}
}

// RegisterMap 注册地图定义，已存在时更新定义并保留区域和玩家
func (m *SceneManager) RegisterMap(def model.MapDefinition) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if scene, ok := m.scenes[def.ID]; ok {
		scene.Def = def
		return
	}
	m.scenes[def.ID] = &Scene{
		Def:     def,
		Zones:   make(map[int64]*model.Zone),
		Players: make(map[int64]model.Location),
	}
	m.logger.Info("scene created", "map_id", def.ID, "name", def.Name)
}

// MapDefinition 获取地图定义
func (m *SceneManager) MapDefinition(mapID int32) (*model.MapDefinition, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	scene, ok := m.scenes[mapID]
	if !ok {
		return nil, false
	}
	def := scene.Def
	return &def, true
}

// AttachZone 把区域挂到地图上
func (m *SceneManager) AttachZone(zone *model.Zone) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	scene, ok := m.scenes[zone.MapID]
	if !ok {
		return fmt.Errorf("scene not found: %d", zone.MapID)
	}
	if _, exists := scene.Zones[zone.ID]; exists {
		return fmt.Errorf("zone %d already attached to map %d", zone.ID, zone.MapID)
	}
	z := *zone
	scene.Zones[zone.ID] = &z

	m.logger.Debug("zone attached", "map_id", zone.MapID, "zone_id", zone.ID, "private", zone.Private)
	return nil
}

// DetachZone 从地图上移除区域
func (m *SceneManager) DetachZone(mapID int32, zoneID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	scene, ok := m.scenes[mapID]
	if !ok {
		return false
	}
	if _, exists := scene.Zones[zoneID]; !exists {
		return false
	}
	delete(scene.Zones, zoneID)

	m.logger.Debug("zone detached", "map_id", mapID, "zone_id", zoneID)
	return true
}

// Zone 获取地图上的区域
func (m *SceneManager) Zone(mapID int32, zoneID int64) (model.Zone, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	scene, ok := m.scenes[mapID]
	if !ok {
		return model.Zone{}, false
	}
	z, ok := scene.Zones[zoneID]
	if !ok {
		return model.Zone{}, false
	}
	return *z, true
}

// ZoneCount 地图上的区域数量
func (m *SceneManager) ZoneCount(mapID int32) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	scene, ok := m.scenes[mapID]
	if !ok {
		return 0
	}
	return len(scene.Zones)
}

// Relocate 玩家进入指定地图位置，已在其他场景时先离开
func (m *SceneManager) Relocate(playerID int64, loc model.Location) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	scene, ok := m.scenes[loc.MapID]
	if !ok {
		return fmt.Errorf("scene not found: %d", loc.MapID)
	}
	if loc.ZoneID != 0 {
		if _, ok := scene.Zones[loc.ZoneID]; !ok {
			return fmt.Errorf("zone %d not found in map %d", loc.ZoneID, loc.MapID)
		}
	}

	if old, exists := m.locations[playerID]; exists {
		if oldScene, ok := m.scenes[old.MapID]; ok {
			delete(oldScene.Players, playerID)
		}
	}

	scene.Players[playerID] = loc
	m.locations[playerID] = loc

	m.logger.Info("player relocated",
		"player_id", playerID,
		"map_id", loc.MapID,
		"zone_id", loc.ZoneID,
		"player_count", len(scene.Players),
	)
	return nil
}

// LeaveScene 玩家离开所在场景
func (m *SceneManager) LeaveScene(playerID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	loc, exists := m.locations[playerID]
	if !exists {
		return false
	}
	if scene, ok := m.scenes[loc.MapID]; ok {
		delete(scene.Players, playerID)
	}
	delete(m.locations, playerID)

	m.logger.Info("player left scene", "player_id", playerID, "map_id", loc.MapID)
	return true
}

// LocationOf 玩家当前位置
func (m *SceneManager) LocationOf(playerID int64) (model.Location, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	loc, ok := m.locations[playerID]
	return loc, ok
}

// PlayersInMap 地图上的所有玩家
func (m *SceneManager) PlayersInMap(mapID int32) []int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	scene, ok := m.scenes[mapID]
	if !ok {
		return nil
	}
	ids := make([]int64, 0, len(scene.Players))
	for id := range scene.Players {
		ids = append(ids, id)
	}
	return ids
}

// PlayersInZone 区域内的所有玩家
func (m *SceneManager) PlayersInZone(zoneID int64) []int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var ids []int64
	for id, loc := range m.locations {
		if loc.ZoneID == zoneID {
			ids = append(ids, id)
		}
	}
	return ids
}
