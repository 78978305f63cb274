package ratelimit

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// slidingWindowScript trims the sorted set to the window, admits the
// request when below limit+burst and returns {allowed, count before the
// request, oldest_ms}.
// KEYS[1] key; ARGV limit, burst, window_ms, now_ms, member.
const slidingWindowScript = `
local key = KEYS[1]
local limit = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local window = tonumber(ARGV[3])
local now = tonumber(ARGV[4])

redis.call('ZREMRANGEBYSCORE', key, 0, now - window)
local count = redis.call('ZCARD', key)
local allowed = 0
if count < limit + burst then
    redis.call('ZADD', key, now, ARGV[5])
    redis.call('PEXPIRE', key, window)
    allowed = 1
end

local oldest = 0
local first = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
if first[2] then
    oldest = tonumber(first[2])
end
return {allowed, count, oldest}
`

// RedisLimiter shares the sliding window across service instances
type RedisLimiter struct {
	client redis.Scripter
	script *redis.Script
	limit  Limit
	prefix string
	now    func() time.Time
	seq    atomic.Uint64
}

// NewRedisLimiter creates a limiter on an existing client
func NewRedisLimiter(client redis.Scripter, limit Limit, prefix string) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		script: redis.NewScript(slidingWindowScript),
		limit:  limit,
		prefix: prefix + "ratelimit:",
		now:    time.Now,
	}
}

// Allow implements Limiter
func (r *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	now := r.now()
	member := fmt.Sprintf("%d-%d", now.UnixNano(), r.seq.Add(1))

	res, err := r.script.Run(ctx, r.client, []string{r.prefix + key},
		r.limit.Requests, r.limit.Burst, r.limit.Window.Milliseconds(), now.UnixMilli(), member).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("redis rate limit check: %w", err)
	}
	if len(res) != 3 {
		return Decision{}, fmt.Errorf("redis rate limit check: unexpected reply %v", res)
	}

	var oldest time.Time
	if res[2] > 0 {
		oldest = time.UnixMilli(res[2])
	}
	return decide(r.limit, int(res[1]), oldest, now), nil
}
