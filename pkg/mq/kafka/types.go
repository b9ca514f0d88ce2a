package kafka

import (
	"context"
	"time"
)

// Message 待发布的消息
type Message struct {
	// Topic 由 Producer 在进入中间件链之前填写，中间件只读
	Topic string

	// Key 决定分区，同一 Key 总是落在同一分区
	Key []byte

	Value []byte

	// Headers 写出时按键排序
	Headers map[string]string

	// Time 为零时由 kafka-go 取当前时间
	Time time.Time
}

// PublishFunc 发布一条消息
type PublishFunc func(ctx context.Context, msg *Message) error

// Middleware 包装 PublishFunc，返回新的 PublishFunc
type Middleware func(next PublishFunc) PublishFunc

// chain 第一个中间件在最外层
func chain(final PublishFunc, mws ...Middleware) PublishFunc {
	for i := len(mws) - 1; i >= 0; i-- {
		final = mws[i](final)
	}
	return final
}
