// Package bytebuff 基于 valyala/bytebufferpool 的字节缓冲池
package bytebuff

import (
	"sync/atomic"

	"github.com/valyala/bytebufferpool"
)

// ByteBuffer 池化的缓冲区
type ByteBuffer = bytebufferpool.ByteBuffer

// Pool 带统计的缓冲池
//
// 底层池会按使用情况自动校准默认容量和可回收的最大容量。
type Pool struct {
	pool bytebufferpool.Pool

	gets atomic.Uint64
	puts atomic.Uint64
}

var defaultPool = NewPool()

// NewPool 创建缓冲池
func NewPool() *Pool {
	return &Pool{}
}

// Get 获取一个已清空的缓冲区
func (p *Pool) Get() *ByteBuffer {
	p.gets.Add(1)
	return p.pool.Get()
}

// Put 归还缓冲区，归还后不能再使用
func (p *Pool) Put(buf *ByteBuffer) {
	if buf == nil {
		return
	}
	p.puts.Add(1)
	p.pool.Put(buf)
}

// Stats 返回获取和归还次数
func (p *Pool) Stats() (gets, puts uint64) {
	return p.gets.Load(), p.puts.Load()
}

// Get 从默认池获取缓冲区
func Get() *ByteBuffer {
	return defaultPool.Get()
}

// Put 归还到默认池
func Put(buf *ByteBuffer) {
	defaultPool.Put(buf)
}

// Stats 默认池的统计
func Stats() (gets, puts uint64) {
	return defaultPool.Stats()
}
