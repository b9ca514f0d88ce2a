package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// 重导出常用类型，避免使用者直接依赖 go.opentelemetry.io/otel
type (
	// Tracer 创建 Span
	Tracer = trace.Tracer

	// SpanKind 表示 span 的类型
	SpanKind = trace.SpanKind

	// SpanStartOption span 启动选项
	SpanStartOption = trace.SpanStartOption

	// MapCarrier map[string]string 类型的载体，用于消息头
	MapCarrier = propagation.MapCarrier

	// HeaderCarrier http.Header 类型的载体
	HeaderCarrier = propagation.HeaderCarrier

	KeyValue = attribute.KeyValue
)

const (
	SpanKindServer   = trace.SpanKindServer
	SpanKindProducer = trace.SpanKindProducer

	CodeError = codes.Error
	CodeOk    = codes.Ok
)

// GetTextMapPropagator 获取全局文本传播器
func GetTextMapPropagator() propagation.TextMapPropagator {
	return otel.GetTextMapPropagator()
}

// WithSpanKind 设置 span 类型
func WithSpanKind(kind SpanKind) SpanStartOption {
	return trace.WithSpanKind(kind)
}

// WithAttributes 设置 span 属性
func WithAttributes(attrs ...KeyValue) SpanStartOption {
	return trace.WithAttributes(attrs...)
}

// 属性构造函数
var (
	String = attribute.String
	Int    = attribute.Int
)

// 消息相关的语义属性键
const (
	MessagingSystemKey          = "messaging.system"
	MessagingDestinationKey     = "messaging.destination"
	MessagingKafkaMessageKeyKey = "messaging.kafka.message_key"
)
