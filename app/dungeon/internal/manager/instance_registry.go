package manager

import (
	"sort"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/lk2023060901/xdooria-dungeon/app/dungeon/internal/model"
)

// Entry 一个登记中的副本
type Entry struct {
	InstanceID int64
	Owner      model.Player
	Controller *WaveController
	Partition  *Partition
}

// InstanceRegistry 副本登记表
//
// 玩家、副本、分区三张索引在同一把锁下一起修改，
// 同一个副本只会被第一个调用 Remove 的人拿到。
type InstanceRegistry struct {
	maxInstances int

	mu         sync.RWMutex
	byPlayer   map[int64]int64  // playerID -> instanceID
	byInstance map[int64]*Entry // instanceID -> Entry
	byZone     map[int64]int64  // zoneID -> instanceID
}

// NewInstanceRegistry 创建登记表，maxInstances <= 0 表示不限
func NewInstanceRegistry(maxInstances int) *InstanceRegistry {
	return &InstanceRegistry{
		maxInstances: maxInstances,
		byPlayer:     make(map[int64]int64),
		byInstance:   make(map[int64]*Entry),
		byZone:       make(map[int64]int64),
	}
}

// HasCapacity 是否还能登记新副本
func (r *InstanceRegistry) HasCapacity() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.maxInstances <= 0 || len(r.byInstance) < r.maxInstances
}

// Register 登记副本
func (r *InstanceRegistry) Register(e *Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byPlayer[e.Owner.ID]; ok {
		return errors.Wrapf(ErrPlayerRegistered, "player %d", e.Owner.ID)
	}
	if r.maxInstances > 0 && len(r.byInstance) >= r.maxInstances {
		return ErrRegistryFull
	}

	r.byPlayer[e.Owner.ID] = e.InstanceID
	r.byInstance[e.InstanceID] = e
	if e.Partition != nil {
		r.byZone[e.Partition.ZoneID()] = e.InstanceID
	}
	return nil
}

// Remove 移除副本，只有第一次调用返回 entry
func (r *InstanceRegistry) Remove(instanceID int64) (*Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.byInstance[instanceID]
	if !ok {
		return nil, false
	}
	r.removeLocked(e)
	return e, true
}

func (r *InstanceRegistry) removeLocked(e *Entry) {
	delete(r.byInstance, e.InstanceID)
	if r.byPlayer[e.Owner.ID] == e.InstanceID {
		delete(r.byPlayer, e.Owner.ID)
	}
	if e.Partition != nil && r.byZone[e.Partition.ZoneID()] == e.InstanceID {
		delete(r.byZone, e.Partition.ZoneID())
	}
}

// ByPlayer 按玩家查找
func (r *InstanceRegistry) ByPlayer(playerID int64) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byPlayer[playerID]
	if !ok {
		return nil, false
	}
	e, ok := r.byInstance[id]
	return e, ok
}

// ByInstance 按副本 ID 查找
func (r *InstanceRegistry) ByInstance(instanceID int64) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byInstance[instanceID]
	return e, ok
}

// ByZone 按分区 ID 查找
func (r *InstanceRegistry) ByZone(zoneID int64) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byZone[zoneID]
	if !ok {
		return nil, false
	}
	e, ok := r.byInstance[id]
	return e, ok
}

// Snapshot 当前所有副本，按副本 ID 排序
func (r *InstanceRegistry) Snapshot() []*Entry {
	r.mu.RLock()
	out := make([]*Entry, 0, len(r.byInstance))
	for _, e := range r.byInstance {
		out = append(out, e)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].InstanceID < out[j].InstanceID })
	return out
}

// Clear 清空登记表并返回原有的全部副本
func (r *InstanceRegistry) Clear() []*Entry {
	r.mu.Lock()
	out := make([]*Entry, 0, len(r.byInstance))
	for _, e := range r.byInstance {
		out = append(out, e)
	}
	r.byPlayer = make(map[int64]int64)
	r.byInstance = make(map[int64]*Entry)
	r.byZone = make(map[int64]int64)
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].InstanceID < out[j].InstanceID })
	return out
}

// Len 副本数量
func (r *InstanceRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byInstance)
}
