package redis

import (
	"context"
	"fmt"
)

// Del 删除键
func (c *Client) Del(ctx context.Context, keys ...string) (int64, error) {
	n, err := c.writer().Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("del failed: %w", err)
	}
	return n, nil
}

// HGetAll 获取哈希所有字段，开启 ReadFromReplica 时读从节点
func (c *Client) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	vals, err := c.reader().HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("hgetall failed: %w", err)
	}
	return vals, nil
}
