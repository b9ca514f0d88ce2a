package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Script Lua 脚本，首次执行后按 SHA 缓存在服务端
type Script struct {
	s *redis.Script
}

// NewScript 创建 Lua 脚本
func NewScript(src string) *Script {
	return &Script{s: redis.NewScript(src)}
}

// Hash 返回脚本 SHA1
func (s *Script) Hash() string {
	return s.s.Hash()
}

// RunScriptInt64Slice 在 primary 执行返回整数数组的脚本（EVALSHA，服务端未缓存时回退为 EVAL）
func (c *Client) RunScriptInt64Slice(ctx context.Context, script *Script, keys []string, args ...interface{}) ([]int64, error) {
	vals, err := script.s.Run(ctx, c.writer(), keys, args...).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("run script failed: %w", err)
	}
	return vals, nil
}
