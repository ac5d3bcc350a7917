package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// attemptScript returns {allowed, count, windowStartMillis}.
var attemptScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local max = tonumber(ARGV[3])
local start = tonumber(redis.call('HGET', KEYS[1], 'start'))
if (not start) or (now - start > window) then
  redis.call('HSET', KEYS[1], 'count', 1, 'start', now, 'locked', 0)
  redis.call('PEXPIRE', KEYS[1], window)
  return {1, 1, now}
end
local count = tonumber(redis.call('HGET', KEYS[1], 'count')) or 0
if redis.call('HGET', KEYS[1], 'locked') == '1' then
  return {0, count, start}
end
if count >= max then
  redis.call('HSET', KEYS[1], 'locked', 1)
  return {0, count, start}
end
count = redis.call('HINCRBY', KEYS[1], 'count', 1)
return {1, count, start}
`)

// RedisLimiter shares attempt records across processes. The whole
// check-and-increment runs inside one script so concurrent submits for the
// same identifier cannot both pass the threshold.
type RedisLimiter struct {
	redis  redis.UniversalClient
	config Config
	now    func() time.Time
}

// NewRedis creates a Redis-backed limiter. A nil clock defaults to time.Now.
func NewRedis(redisClient redis.UniversalClient, cfg Config, now func() time.Time) *RedisLimiter {
	if now == nil {
		now = time.Now
	}
	return &RedisLimiter{
		redis:  redisClient,
		config: cfg,
		now:    now,
	}
}

// CheckAndRecordAttempt counts one attempt for identifier.
func (l *RedisLimiter) CheckAndRecordAttempt(ctx context.Context, identifier string) error {
	now := l.now()
	res, err := attemptScript.Run(ctx, l.redis,
		[]string{loginKey(identifier)},
		now.UnixMilli(),
		l.config.Window.Milliseconds(),
		l.config.MaxAttempts,
	).Int64Slice()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(res) != 3 {
		return fmt.Errorf("%w: unexpected script reply", ErrRedisUnavailable)
	}

	if res[0] == 1 {
		return nil
	}

	windowEnd := time.UnixMilli(res[2]).Add(l.config.Window)
	return &LockoutError{Remaining: windowEnd.Sub(now)}
}

// Clear removes the record for identifier.
func (l *RedisLimiter) Clear(ctx context.Context, identifier string) error {
	if err := l.redis.Del(ctx, loginKey(identifier)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Attempts returns the current counter for identifier, 0 when absent.
func (l *RedisLimiter) Attempts(ctx context.Context, identifier string) (int, error) {
	count, err := l.redis.HGet(ctx, loginKey(identifier), "count").Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return count, nil
}

func loginKey(identifier string) string {
	return "hal:" + NormalizeIdentifier(identifier)
}
