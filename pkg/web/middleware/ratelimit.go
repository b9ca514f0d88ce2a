package middleware

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	lru "github.com/hashicorp/golang-lru"
	"github.com/lk2023060901/xdooria-dungeon/pkg/config"
	"github.com/lk2023060901/xdooria-dungeon/pkg/logger"
	"github.com/lk2023060901/xdooria-dungeon/pkg/web/errors"
	"golang.org/x/time/rate"
)

// RateLimitConfig 令牌桶限流配置，每个键一个桶
type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
	// MaxLimiters 同时保留的桶数，超出后淘汰最久未使用的键
	MaxLimiters int      `mapstructure:"max_limiters"`
	SkipPaths   []string `mapstructure:"skip_paths"`
}

// DefaultRateLimitConfig 默认每键每秒 20 次，突发 40
func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		RequestsPerSecond: 20,
		Burst:             40,
		MaxLimiters:       10000,
	}
}

// KeyFunc 从请求中取限流键，返回空串的请求不限流
type KeyFunc func(c *gin.Context) string

// ClientIPKey 按客户端 IP 限流
func ClientIPKey(c *gin.Context) string {
	return "ip:" + c.ClientIP()
}

// RateLimiter 按键限流
type RateLimiter struct {
	limit   rate.Limit
	burst   int
	key     KeyFunc
	skip    map[string]struct{}
	buckets *lru.Cache
	logger  logger.Logger
}

// NewRateLimiter 创建限流器，key 为空时按客户端 IP
func NewRateLimiter(cfg *RateLimitConfig, key KeyFunc, l logger.Logger) (*RateLimiter, error) {
	merged, err := config.MergeConfig(DefaultRateLimitConfig(), cfg)
	if err != nil {
		return nil, err
	}
	if merged.RequestsPerSecond <= 0 || merged.Burst <= 0 || merged.MaxLimiters <= 0 {
		return nil, fmt.Errorf("invalid rate limit: rps=%v burst=%d max_limiters=%d",
			merged.RequestsPerSecond, merged.Burst, merged.MaxLimiters)
	}

	buckets, err := lru.New(merged.MaxLimiters)
	if err != nil {
		return nil, err
	}
	if key == nil {
		key = ClientIPKey
	}

	skip := make(map[string]struct{}, len(merged.SkipPaths))
	for _, p := range merged.SkipPaths {
		skip[p] = struct{}{}
	}

	return &RateLimiter{
		limit:   rate.Limit(merged.RequestsPerSecond),
		burst:   merged.Burst,
		key:     key,
		skip:    skip,
		buckets: buckets,
		logger:  l.Named("web.ratelimit"),
	}, nil
}

// Reserve 为 key 消耗一个令牌，不允许时返回需要等待的时长
func (rl *RateLimiter) Reserve(key string) (time.Duration, bool) {
	r := rl.bucket(key).Reserve()
	if !r.OK() {
		return 0, false
	}
	delay := r.Delay()
	if delay == 0 {
		return 0, true
	}
	// 被拒绝的请求不占用后续令牌
	r.Cancel()
	return delay, false
}

// bucket 取出或创建 key 的令牌桶，并发创建时以先写入的为准
func (rl *RateLimiter) bucket(key string) *rate.Limiter {
	if v, ok := rl.buckets.Get(key); ok {
		return v.(*rate.Limiter)
	}
	lim := rate.NewLimiter(rl.limit, rl.burst)
	if prev, found, _ := rl.buckets.PeekOrAdd(key, lim); found {
		return prev.(*rate.Limiter)
	}
	return lim
}

// RateLimit 限流中间件，超限返回 429 并带 Retry-After
func RateLimit(rl *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := rl.skip[c.Request.URL.Path]; ok {
			c.Next()
			return
		}
		key := rl.key(c)
		if key == "" {
			c.Next()
			return
		}

		wait, ok := rl.Reserve(key)
		if !ok {
			rl.logger.Debug("rate limited", "key", key, "path", c.Request.URL.Path, "retry_after", wait)
			c.Header("Retry-After", strconv.Itoa(retryAfterSeconds(wait)))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"code":    errors.CodeRateLimited,
				"message": "too many requests",
				"data":    nil,
			})
			return
		}
		c.Next()
	}
}

// retryAfterSeconds 向上取整，至少 1 秒
func retryAfterSeconds(d time.Duration) int {
	s := int(math.Ceil(d.Seconds()))
	if s < 1 {
		return 1
	}
	return s
}
