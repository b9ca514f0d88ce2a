package kafka

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/lk2023060901/xdooria-dungeon/pkg/logger"
	"github.com/lk2023060901/xdooria-dungeon/pkg/otel"
)

// LoggingMiddleware 失败记 error，成功记 debug
func LoggingMiddleware(l logger.Logger) Middleware {
	return func(next PublishFunc) PublishFunc {
		return func(ctx context.Context, msg *Message) error {
			start := time.Now()
			err := next(ctx, msg)
			fields := []any{"key", string(msg.Key), "bytes", len(msg.Value), "elapsed", time.Since(start)}
			if err != nil {
				l.Error("publish failed", append(fields, "error", err)...)
				return err
			}
			l.Debug("published", fields...)
			return nil
		}
	}
}

// RecoveryMiddleware 把内层的 panic 转成 ErrProducerPanic
func RecoveryMiddleware(l logger.Logger) Middleware {
	return func(next PublishFunc) PublishFunc {
		return func(ctx context.Context, msg *Message) (err error) {
			defer func() {
				if r := recover(); r != nil {
					l.Error("publish panicked", "key", string(msg.Key), "panic", r, "stack", string(debug.Stack()))
					err = fmt.Errorf("%w: %v", ErrProducerPanic, r)
				}
			}()
			return next(ctx, msg)
		}
	}
}

// HeaderMiddleware 补充固定消息头，消息上已有的键优先
func HeaderMiddleware(defaults map[string]string) Middleware {
	return func(next PublishFunc) PublishFunc {
		return func(ctx context.Context, msg *Message) error {
			if msg.Headers == nil {
				msg.Headers = make(map[string]string, len(defaults))
			}
			for k, v := range defaults {
				if _, ok := msg.Headers[k]; !ok {
					msg.Headers[k] = v
				}
			}
			return next(ctx, msg)
		}
	}
}

// TracingMiddleware 为每次发布开一个 producer span，并把追踪上下文写进消息头
func TracingMiddleware(tracer otel.Tracer) Middleware {
	return func(next PublishFunc) PublishFunc {
		return func(ctx context.Context, msg *Message) error {
			attrs := []otel.KeyValue{
				otel.String(otel.MessagingSystemKey, "kafka"),
				otel.String(otel.MessagingDestinationKey, msg.Topic),
			}
			if len(msg.Key) > 0 {
				attrs = append(attrs, otel.String(otel.MessagingKafkaMessageKeyKey, string(msg.Key)))
			}
			ctx, span := tracer.Start(ctx, "kafka.publish",
				otel.WithSpanKind(otel.SpanKindProducer),
				otel.WithAttributes(attrs...),
			)
			defer span.End()

			if msg.Headers == nil {
				msg.Headers = make(map[string]string)
			}
			otel.GetTextMapPropagator().Inject(ctx, otel.MapCarrier(msg.Headers))

			if err := next(ctx, msg); err != nil {
				span.RecordError(err)
				span.SetStatus(otel.CodeError, err.Error())
				return err
			}
			return nil
		}
	}
}
