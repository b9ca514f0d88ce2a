package otel

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync/atomic"
	"time"

	"github.com/lk2023060901/xdooria-dungeon/pkg/config"
	"github.com/lk2023060901/xdooria-dungeon/pkg/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// TracerProvider 进程内唯一的追踪入口
//
// 启用时把 SDK provider 注册为全局 provider，并设置 TraceContext + Baggage 传播器，
// 导出错误经 logger 以 warn 输出。未启用时 Tracer 返回 noop 实现。
type TracerProvider struct {
	shutdownTimeout time.Duration
	tracers         trace.TracerProvider
	sdk             *sdktrace.TracerProvider
	closed          atomic.Bool
}

// New 按配置创建，l 可以为 nil
func New(cfg *Config, l logger.Logger) (*TracerProvider, error) {
	merged, err := config.MergeConfig(DefaultConfig(), cfg)
	if err != nil {
		return nil, err
	}
	if err := merged.Validate(); err != nil {
		return nil, err
	}

	p := &TracerProvider{
		shutdownTimeout: merged.ShutdownTimeout,
		tracers:         noop.NewTracerProvider(),
	}
	if !merged.Enabled {
		return p, nil
	}
	if l == nil {
		l = logger.NewNoop()
	}
	l = l.Named("otel")

	ctx := context.Background()
	res, err := newResource(ctx, merged)
	if err != nil {
		return nil, err
	}
	exporter, err := newExporter(ctx, merged)
	if err != nil {
		return nil, err
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(newSampler(merged.SampleRatio)),
	}
	if exporter != nil {
		b := merged.Batch
		opts = append(opts, sdktrace.WithBatcher(exporter,
			sdktrace.WithMaxExportBatchSize(b.Size),
			sdktrace.WithMaxQueueSize(b.MaxQueue),
			sdktrace.WithBatchTimeout(b.Interval),
			sdktrace.WithExportTimeout(b.ExportTimeout),
		))
	}
	p.sdk = sdktrace.NewTracerProvider(opts...)
	p.tracers = p.sdk

	otel.SetTracerProvider(p.sdk)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	otel.SetErrorHandler(otel.ErrorHandlerFunc(func(err error) {
		l.Warn("trace export error", "error", err)
	}))

	l.Info("tracing enabled", "exporter", merged.Exporter, "endpoint", merged.Endpoint, "sample_ratio", merged.SampleRatio)
	return p, nil
}

// newResource 自定义属性不带 schema，SDK 探测到的属性使用 SDK 自带的 semconv 版本
func newResource(ctx context.Context, cfg *Config) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{semconv.ServiceName(cfg.ServiceName)}
	for _, k := range slices.Sorted(maps.Keys(cfg.Attributes)) {
		attrs = append(attrs, attribute.String(k, cfg.Attributes[k]))
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(attrs...),
		resource.WithTelemetrySDK(),
		resource.WithProcessRuntimeName(),
		resource.WithProcessRuntimeVersion(),
		resource.WithHost(),
	)
	if err != nil {
		return nil, fmt.Errorf("build trace resource: %w", err)
	}
	return res, nil
}

// newSampler 根 Span 按比例采样，子 Span 跟随父 Span
func newSampler(ratio float64) sdktrace.Sampler {
	root := sdktrace.AlwaysSample()
	if ratio < 1 {
		root = sdktrace.TraceIDRatioBased(ratio)
	}
	return sdktrace.ParentBased(root)
}

// Tracer 按名称取 Tracer
func (p *TracerProvider) Tracer(name string, opts ...trace.TracerOption) Tracer {
	return p.tracers.Tracer(name, opts...)
}

// IsEnabled 是否接入了 SDK
func (p *TracerProvider) IsEnabled() bool {
	return p.sdk != nil
}

// Shutdown 导出剩余 Span，只有第一次调用生效，之后返回 ErrProviderClosed
func (p *TracerProvider) Shutdown(ctx context.Context) error {
	if p.closed.Swap(true) {
		return ErrProviderClosed
	}
	if p.sdk == nil {
		return nil
	}
	return p.sdk.Shutdown(ctx)
}

// Close 在 shutdown_timeout 内 Shutdown
func (p *TracerProvider) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), p.shutdownTimeout)
	defer cancel()
	return p.Shutdown(ctx)
}
