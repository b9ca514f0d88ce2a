package config

import (
	"fmt"
	"path/filepath"
	"reflect"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Manager 配置管理器
type Manager interface {
	// LoadFile 加载配置文件，格式由扩展名决定
	LoadFile(path string) error
	// Unmarshal 解析整个配置到结构体
	Unmarshal(v any) error
	// UnmarshalKey 解析指定路径，如 "dungeon.time_windows"
	UnmarshalKey(key string, v any) error
	GetBool(key string) bool
	// Watch 在 key 下的配置因文件修改而变化时执行 callback，key 为空表示整个文件
	// 必须先 LoadFile
	Watch(key string, callback func()) error
	// Close 停止文件监听
	Close() error
}

type watcher struct {
	key  string
	last any
	fn   func()
}

type manager struct {
	v        *viper.Viper
	debounce time.Duration
	onError  func(error)

	mu       sync.RWMutex
	path     string
	watchers []*watcher
	fsw      *fsnotify.Watcher
	timer    *time.Timer
}

// NewManager 创建配置管理器
func NewManager(opts ...Option) Manager {
	m := &manager{
		v:        viper.New(),
		debounce: 200 * time.Millisecond,
		onError:  func(error) {},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *manager) LoadFile(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.v.SetConfigFile(path)
	if err := m.v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	m.path = filepath.Clean(path)
	return nil
}

func (m *manager) Unmarshal(v any) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.v.Unmarshal(v); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return nil
}

func (m *manager) UnmarshalKey(key string, v any) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.v.UnmarshalKey(key, v); err != nil {
		return fmt.Errorf("failed to unmarshal key %s: %w", key, err)
	}
	return nil
}

func (m *manager) GetBool(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.v.GetBool(key)
}

// snapshot 调用方持有锁
func (m *manager) snapshot(key string) any {
	if key == "" {
		return m.v.AllSettings()
	}
	return m.v.Get(key)
}

func (m *manager) Watch(key string, callback func()) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.path == "" {
		return ErrNotLoaded
	}
	m.watchers = append(m.watchers, &watcher{key: key, last: m.snapshot(key), fn: callback})
	if m.fsw != nil {
		return nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	// 监听所在目录：编辑器常以重命名替换文件，直接监听文件会丢失之后的事件
	if err := fsw.Add(filepath.Dir(m.path)); err != nil {
		_ = fsw.Close()
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(m.path), err)
	}
	m.fsw = fsw
	go m.loop(fsw, m.path)
	return nil
}

func (m *manager) loop(fsw *fsnotify.Watcher, path string) {
	for {
		select {
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) == path && ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				m.scheduleReload()
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			m.onError(fmt.Errorf("config watcher: %w", err))
		}
	}
}

// scheduleReload 合并一次保存触发的多次写事件
func (m *manager) scheduleReload() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.timer != nil {
		m.timer.Stop()
	}
	m.timer = time.AfterFunc(m.debounce, m.reload)
}

// reload 重新读取文件，解析失败时保留旧配置；回调在释放锁之后执行
func (m *manager) reload() {
	m.mu.Lock()
	if err := m.v.ReadInConfig(); err != nil {
		m.mu.Unlock()
		m.onError(fmt.Errorf("failed to reload %s: %w", m.path, err))
		return
	}

	var changed []func()
	for _, w := range m.watchers {
		cur := m.snapshot(w.key)
		if !reflect.DeepEqual(cur, w.last) {
			w.last = cur
			changed = append(changed, w.fn)
		}
	}
	m.mu.Unlock()

	for _, fn := range changed {
		fn()
	}
}

func (m *manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.timer != nil {
		m.timer.Stop()
	}
	if m.fsw == nil {
		return nil
	}
	err := m.fsw.Close()
	m.fsw = nil
	return err
}
