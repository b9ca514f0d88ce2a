package kafka

import (
	"context"
	"maps"
	"slices"
	"sync/atomic"

	"github.com/lk2023060901/xdooria-dungeon/pkg/config"
	"github.com/lk2023060901/xdooria-dungeon/pkg/logger"
	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer 单 topic 生产者
//
// 中间件链在创建时组装一次，Publish 只做关闭检查和 topic 填写。
type Producer struct {
	topic   string
	writer  messageWriter
	logger  logger.Logger
	mws     []Middleware
	publish PublishFunc
	closed  atomic.Bool
}

// ProducerOption 生产者选项
type ProducerOption func(*Producer)

// WithMiddleware 追加中间件，先追加的在外层
func WithMiddleware(mws ...Middleware) ProducerOption {
	return func(p *Producer) {
		p.mws = append(p.mws, mws...)
	}
}

func withWriter(w messageWriter) ProducerOption {
	return func(p *Producer) {
		p.writer = w
	}
}

// NewProducer 创建绑定 topic 的生产者，cfg 为 nil 时全部取默认值
func NewProducer(cfg *Config, topic string, l logger.Logger, opts ...ProducerOption) (*Producer, error) {
	if topic == "" {
		return nil, ErrEmptyTopic
	}
	merged, err := config.MergeConfig(DefaultConfig(), cfg)
	if err != nil {
		return nil, err
	}
	if err := merged.Validate(); err != nil {
		return nil, err
	}

	p := &Producer{
		topic:  topic,
		logger: l.Named("mq.kafka").WithFields("topic", topic),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.writer == nil {
		if p.writer, err = newWriter(merged, topic); err != nil {
			return nil, err
		}
	}
	p.publish = chain(p.write, p.mws...)
	return p, nil
}

// newWriter 按 Key 哈希选分区
func newWriter(cfg *Config, topic string) (*kafka.Writer, error) {
	transport, err := newTransport(cfg)
	if err != nil {
		return nil, err
	}

	pc := cfg.Producer
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchSize:              pc.BatchSize,
		BatchTimeout:           pc.BatchTimeout,
		MaxAttempts:            pc.MaxAttempts,
		WriteTimeout:           pc.WriteTimeout,
		ReadTimeout:            pc.ReadTimeout,
		RequiredAcks:           pc.requiredAcks(),
		Compression:            pc.compression(),
		AllowAutoTopicCreation: true,
	}
	if transport != nil {
		w.Transport = transport
	}
	return w, nil
}

// Publish 经中间件链发布 msg，msg.Topic 总是被改写为生产者的 topic
func (p *Producer) Publish(ctx context.Context, msg *Message) error {
	if p.closed.Load() {
		return ErrProducerClosed
	}
	msg.Topic = p.topic
	return p.publish(ctx, msg)
}

// PublishWithKey Publish 的便捷形式
func (p *Producer) PublishWithKey(ctx context.Context, key string, value []byte, headers map[string]string) error {
	return p.Publish(ctx, &Message{Key: []byte(key), Value: value, Headers: headers})
}

// write 链的最内层。writer 已绑定 topic，kafka.Message.Topic 必须留空
func (p *Producer) write(ctx context.Context, msg *Message) error {
	out := kafka.Message{Key: msg.Key, Value: msg.Value, Time: msg.Time}
	for _, k := range slices.Sorted(maps.Keys(msg.Headers)) {
		out.Headers = append(out.Headers, kafka.Header{Key: k, Value: []byte(msg.Headers[k])})
	}
	return p.writer.WriteMessages(ctx, out)
}

// Topic 绑定的 topic
func (p *Producer) Topic() string {
	return p.topic
}

// Close 等待缓冲中的消息写完后关闭，可重复调用
func (p *Producer) Close() error {
	if p.closed.Swap(true) {
		return nil
	}
	p.logger.Debug("closing producer")
	return p.writer.Close()
}
