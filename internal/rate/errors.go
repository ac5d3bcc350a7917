package rate

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrRateLimited is matched by every lockout denial.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps Redis failures in RedisLimiter.
	ErrRedisUnavailable = errors.New("redis unavailable")
)

// LockoutError reports how long an identifier stays locked.
type LockoutError struct {
	Remaining time.Duration
}

func (e *LockoutError) Error() string {
	return fmt.Sprintf("rate limited: locked for %s", e.Remaining.Round(time.Second))
}

func (e *LockoutError) Unwrap() error {
	return ErrRateLimited
}

// RemainingMinutes rounds the lockout up to whole minutes, never below one.
func (e *LockoutError) RemainingMinutes() int {
	if e == nil || e.Remaining <= 0 {
		return 1
	}
	m := int((e.Remaining + time.Minute - 1) / time.Minute)
	if m < 1 {
		m = 1
	}
	return m
}
