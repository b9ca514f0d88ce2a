package event

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/lk2023060901/xdooria-dungeon/pkg/logger"
	"github.com/lk2023060901/xdooria-dungeon/pkg/mq/kafka"
	"github.com/lk2023060901/xdooria-dungeon/pkg/otel"
	"github.com/lk2023060901/xdooria-dungeon/pkg/scheduler"
	"github.com/lk2023060901/xdooria-dungeon/pkg/serializer"
)

// Sink 事件的发送端，*kafka.Producer 满足此接口
type Sink interface {
	PublishWithKey(ctx context.Context, key string, value []byte, headers map[string]string) error
	Close() error
}

// Stats 发布统计
type Stats struct {
	Published uint64 `json:"published"`
	Failed    uint64 `json:"failed"`
	Dropped   uint64 `json:"dropped"`
}

// AsyncPublisher 在调度器协程池中异步发送事件
type AsyncPublisher struct {
	cfg    *Config
	sink   Sink
	codec  serializer.Serializer
	sched  *scheduler.Scheduler
	clock  clockwork.Clock
	logger logger.Logger

	published atomic.Uint64
	failed    atomic.Uint64
	dropped   atomic.Uint64
}

// NewAsyncPublisher 创建异步发布器
func NewAsyncPublisher(cfg *Config, sink Sink, sched *scheduler.Scheduler, l logger.Logger) (*AsyncPublisher, error) {
	newCfg, err := MergeConfig(cfg)
	if err != nil {
		return nil, err
	}
	codec, err := serializer.New(newCfg.Format)
	if err != nil {
		return nil, err
	}
	return &AsyncPublisher{
		cfg:    newCfg,
		sink:   sink,
		codec:  codec,
		sched:  sched,
		clock:  sched.Clock(),
		logger: l.Named("event.publisher"),
	}, nil
}

// Publish 补全 ID 和时间后异步发送
func (p *AsyncPublisher) Publish(ev Event) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.At == 0 {
		ev.At = p.clock.Now().UnixMilli()
	}

	payload, err := p.codec.Serialize(ev)
	if err != nil {
		p.dropped.Add(1)
		p.logger.Error("failed to encode event", "kind", string(ev.Kind), "error", err)
		return
	}
	headers := map[string]string{
		"event_type":   string(ev.Kind),
		"content-type": p.codec.ContentType(),
	}

	err = p.sched.Go(func() {
		ctx, cancel := context.WithTimeout(context.Background(), p.cfg.Timeout)
		defer cancel()
		if err := p.sink.PublishWithKey(ctx, ev.Key(), payload, headers); err != nil {
			p.failed.Add(1)
			p.logger.Warn("failed to publish event",
				"kind", string(ev.Kind),
				"instance_id", ev.InstanceID,
				"error", err,
			)
			return
		}
		p.published.Add(1)
	})
	if err != nil {
		p.dropped.Add(1)
		p.logger.Warn("event dropped", "kind", string(ev.Kind), "error", err)
	}
}

// Stats 返回发布统计
func (p *AsyncPublisher) Stats() Stats {
	return Stats{
		Published: p.published.Load(),
		Failed:    p.failed.Load(),
		Dropped:   p.dropped.Load(),
	}
}

// Close 关闭发送端
func (p *AsyncPublisher) Close() error {
	return p.sink.Close()
}

// New 按配置创建发布器，未启用时返回 Noop，返回的清理函数总是非 nil
func New(cfg *Config, sched *scheduler.Scheduler, tracer otel.Tracer, l logger.Logger) (Publisher, func(), error) {
	newCfg, err := MergeConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	if !newCfg.Enabled {
		return Noop{}, func() {}, nil
	}

	middlewares := []kafka.Middleware{
		kafka.RecoveryMiddleware(l),
		kafka.LoggingMiddleware(l),
		kafka.HeaderMiddleware(map[string]string{"source": "dungeon"}),
	}
	if tracer != nil {
		middlewares = append(middlewares, kafka.TracingMiddleware(tracer))
	}

	producer, err := kafka.NewProducer(newCfg.Kafka, newCfg.Topic, l, kafka.WithMiddleware(middlewares...))
	if err != nil {
		return nil, nil, err
	}

	p, err := NewAsyncPublisher(newCfg, producer, sched, l)
	if err != nil {
		_ = producer.Close()
		return nil, nil, err
	}
	cleanup := func() {
		if err := p.Close(); err != nil {
			l.Error("failed to close event producer", "error", err)
		}
	}
	return p, cleanup, nil
}
