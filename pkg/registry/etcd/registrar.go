package etcd

import (
	"context"
	"encoding/json"
	"io"
	"path"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/lk2023060901/xdooria-dungeon/pkg/config"
	"github.com/lk2023060901/xdooria-dungeon/pkg/logger"
	"github.com/lk2023060901/xdooria-dungeon/pkg/registry"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// Registrar 基于 etcd 租约的服务注册器
//
// 注册信息挂在租约上，进程存活期间持续续约；续约中断时自动重新申请租约并写回。
type Registrar struct {
	config *Config
	kv     clientv3.KV
	lease  clientv3.Lease
	closer io.Closer
	logger logger.Logger

	mu      sync.Mutex
	info    *registry.ServiceInfo
	leaseID clientv3.LeaseID
	cancel  context.CancelFunc
	done    chan struct{}
}

var _ registry.Registrar = (*Registrar)(nil)

// NewRegistrar 创建 etcd 服务注册器
func NewRegistrar(cfg *Config, l logger.Logger) (*Registrar, error) {
	newCfg, err := config.MergeConfig(DefaultConfig(), cfg)
	if err != nil {
		return nil, errors.Wrap(err, "merge etcd config")
	}
	if err := newCfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid etcd config")
	}

	client, err := clientv3.New(clientv3.Config{
		Endpoints:   newCfg.Endpoints,
		DialTimeout: newCfg.DialTimeout,
		Username:    newCfg.Username,
		Password:    newCfg.Password,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create etcd client")
	}
	return newRegistrar(newCfg, client, client, client, l), nil
}

func newRegistrar(cfg *Config, kv clientv3.KV, lease clientv3.Lease, closer io.Closer, l logger.Logger) *Registrar {
	return &Registrar{
		config: cfg,
		kv:     kv,
		lease:  lease,
		closer: closer,
		logger: l.Named("registry.etcd"),
	}
}

// Key 服务在 etcd 中的键
func (r *Registrar) Key(info *registry.ServiceInfo) string {
	return path.Join(r.config.Namespace, info.ServiceName, info.Address)
}

// Register 注册服务并开始续约
func (r *Registrar) Register(ctx context.Context, info *registry.ServiceInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.info != nil {
		return registry.ErrAlreadyRegistered
	}

	snapshot := *info
	id, err := r.put(ctx, &snapshot, 0)
	if err != nil {
		return err
	}

	kaCtx, cancel := context.WithCancel(context.Background())
	r.info = &snapshot
	r.leaseID = id
	r.cancel = cancel
	r.done = make(chan struct{})
	go r.keepAlive(kaCtx, id, r.done)

	r.logger.Info("service registered",
		"service", snapshot.ServiceName,
		"address", snapshot.Address,
		"lease_id", int64(id),
	)
	return nil
}

// Deregister 停止续约并删除注册信息
func (r *Registrar) Deregister(ctx context.Context) error {
	r.mu.Lock()
	info, id, cancel, done := r.info, r.leaseID, r.cancel, r.done
	r.info = nil
	r.mu.Unlock()

	if info == nil {
		return nil
	}
	cancel()
	<-done

	if _, err := r.kv.Delete(ctx, r.Key(info)); err != nil {
		return errors.Wrap(err, "deregister service")
	}
	if _, err := r.lease.Revoke(ctx, id); err != nil {
		r.logger.Warn("failed to revoke lease", "lease_id", int64(id), "error", err)
	}

	r.logger.Info("service deregistered",
		"service", info.ServiceName,
		"address", info.Address,
	)
	return nil
}

// UpdateMetadata 更新元数据，沿用当前租约
func (r *Registrar) UpdateMetadata(ctx context.Context, metadata map[string]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.info == nil {
		return registry.ErrNotRegistered
	}

	next := *r.info
	next.Metadata = metadata
	if _, err := r.put(ctx, &next, r.leaseID); err != nil {
		return err
	}
	r.info = &next
	return nil
}

// Close 关闭 etcd 连接
func (r *Registrar) Close() error {
	return r.closer.Close()
}

// put 写入注册信息，id 为 0 时申请新租约
func (r *Registrar) put(ctx context.Context, info *registry.ServiceInfo, id clientv3.LeaseID) (clientv3.LeaseID, error) {
	if id == 0 {
		resp, err := r.lease.Grant(ctx, int64(r.config.TTL/time.Second))
		if err != nil {
			return 0, errors.Wrap(err, "grant lease")
		}
		id = resp.ID
	}

	value, err := json.Marshal(info)
	if err != nil {
		return 0, errors.Wrap(err, "marshal service info")
	}
	if _, err := r.kv.Put(ctx, r.Key(info), string(value), clientv3.WithLease(id)); err != nil {
		return 0, errors.Wrap(err, "put service info")
	}
	return id, nil
}

// keepAlive 持续续约，续约通道关闭后重新注册
func (r *Registrar) keepAlive(ctx context.Context, id clientv3.LeaseID, done chan struct{}) {
	defer close(done)

	for {
		ch, err := r.lease.KeepAlive(ctx, id)
		if err == nil {
			for range ch {
			}
		}
		if ctx.Err() != nil {
			return
		}
		r.logger.Warn("lease keep alive lost, re-registering", "lease_id", int64(id), "error", err)

		for {
			newID, err := r.reRegister(ctx)
			if err == nil {
				id = newID
				break
			}
			r.logger.Error("failed to re-register service", "error", err)

			select {
			case <-ctx.Done():
				return
			case <-time.After(r.retryInterval()):
			}
		}
	}
}

func (r *Registrar) reRegister(ctx context.Context) (clientv3.LeaseID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.info == nil {
		return 0, registry.ErrNotRegistered
	}
	id, err := r.put(ctx, r.info, 0)
	if err != nil {
		return 0, err
	}
	r.leaseID = id
	r.logger.Info("service re-registered",
		"service", r.info.ServiceName,
		"address", r.info.Address,
		"lease_id", int64(id),
	)
	return id, nil
}

func (r *Registrar) retryInterval() time.Duration {
	if d := r.config.TTL / 3; d > time.Second {
		return d
	}
	return time.Second
}
