package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	ipLimitPrefix = "ratelimit:ip:"
	// ipLimitIdle is how long an untouched bucket lives. Two minutes covers a
	// full refill at any per-minute rate.
	ipLimitIdle = 2 * time.Minute
)

// RateLimitResult is the outcome of one rate limit check.
type RateLimitResult struct {
	Allowed    bool
	Remaining  int64
	ResetAt    time.Time
	RetryAfter time.Duration
}

// ipBucketScript is a token bucket in milliseconds. It returns
// {allowed, retry_ms, remaining, full_ms} where full_ms is the time until the
// bucket is full again.
var ipBucketScript = redis.NewScript(`
local key = KEYS[1]
local per_ms = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local idle = tonumber(ARGV[4])

local state = redis.call('HMGET', key, 'tokens', 'at')
local tokens = tonumber(state[1]) or burst
local at = tonumber(state[2]) or now
if now > at then
	tokens = math.min(burst, tokens + (now - at) * per_ms)
end

local allowed = 0
local retry = 0
if tokens >= 1 then
	tokens = tokens - 1
	allowed = 1
else
	retry = math.ceil((1 - tokens) / per_ms)
end

redis.call('HSET', key, 'tokens', tokens, 'at', now)
redis.call('PEXPIRE', key, idle)

return {allowed, retry, math.floor(tokens), math.ceil((burst - tokens) / per_ms)}
`)

// CheckIPRateLimit takes one token from the ip's bucket in the named group,
// such as "auth" or "contact". Burst defaults to the per-minute rate. Redis
// failures allow the request.
func (c *Cache) CheckIPRateLimit(ctx context.Context, bucket, ip string, ratePerMinute, burst int) (*RateLimitResult, error) {
	now := time.Now()
	if burst <= 0 {
		burst = ratePerMinute
	}
	if ratePerMinute <= 0 {
		return unlimited(now, burst), nil
	}

	perMs := float64(ratePerMinute) / float64(time.Minute/time.Millisecond)
	res, err := ipBucketScript.Run(ctx, c.client,
		[]string{ipBucketKey(bucket, ip)},
		perMs, burst, now.UnixMilli(), ipLimitIdle.Milliseconds(),
	).Int64Slice()
	if err != nil || len(res) != 4 {
		return unlimited(now, burst), nil
	}

	return &RateLimitResult{
		Allowed:    res[0] == 1,
		RetryAfter: time.Duration(res[1]) * time.Millisecond,
		Remaining:  res[2],
		ResetAt:    now.Add(time.Duration(res[3]) * time.Millisecond),
	}, nil
}

func unlimited(now time.Time, burst int) *RateLimitResult {
	return &RateLimitResult{
		Allowed:   true,
		Remaining: int64(burst),
		ResetAt:   now.Add(time.Minute),
	}
}

// ipBucketKey keys a bucket by a truncated hash so raw addresses are never
// stored.
func ipBucketKey(bucket, ip string) string {
	sum := sha256.Sum256([]byte(ip))
	return ipLimitPrefix + bucket + ":" + hex.EncodeToString(sum[:8])
}
