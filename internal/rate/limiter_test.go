package rate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

var testConfig = Config{MaxAttempts: 5, Window: 15 * time.Minute}

type limiterUnderTest struct {
	name     string
	limiter  Limiter
	attempts func(id string) int
	clock    *fakeClock
	done     func()
}

func newLimiters(t *testing.T) []limiterUnderTest {
	t.Helper()

	memClock := newFakeClock()
	mem := NewMemory(testConfig, memClock.Now)

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	redisClock := newFakeClock()
	rl := NewRedis(rdb, testConfig, redisClock.Now)

	return []limiterUnderTest{
		{
			name:     "memory",
			limiter:  mem,
			attempts: mem.Attempts,
			clock:    memClock,
			done:     func() {},
		},
		{
			name:    "redis",
			limiter: rl,
			attempts: func(id string) int {
				n, err := rl.Attempts(context.Background(), id)
				if err != nil {
					t.Fatalf("Attempts failed: %v", err)
				}
				return n
			},
			clock: redisClock,
			done: func() {
				_ = rdb.Close()
				mr.Close()
			},
		},
	}
}

func TestLimiterLocksAfterMaxAttempts(t *testing.T) {
	for _, tc := range newLimiters(t) {
		t.Run(tc.name, func(t *testing.T) {
			defer tc.done()
			ctx := context.Background()

			for i := 1; i <= 5; i++ {
				if err := tc.limiter.CheckAndRecordAttempt(ctx, "a@example.com"); err != nil {
					t.Fatalf("attempt %d denied: %v", i, err)
				}
			}
			if got := tc.attempts("a@example.com"); got != 5 {
				t.Fatalf("expected count 5, got %d", got)
			}

			tc.clock.Advance(time.Minute)
			err := tc.limiter.CheckAndRecordAttempt(ctx, "a@example.com")
			if !errors.Is(err, ErrRateLimited) {
				t.Fatalf("expected ErrRateLimited on 6th attempt, got %v", err)
			}
			var lockout *LockoutError
			if !errors.As(err, &lockout) {
				t.Fatalf("expected *LockoutError, got %T", err)
			}
			if lockout.Remaining != 14*time.Minute {
				t.Fatalf("expected 14m remaining, got %s", lockout.Remaining)
			}
			if lockout.RemainingMinutes() != 14 {
				t.Fatalf("expected 14 minutes, got %d", lockout.RemainingMinutes())
			}

			// Further attempts stay denied and never push the counter past max.
			for i := 0; i < 3; i++ {
				if err := tc.limiter.CheckAndRecordAttempt(ctx, "a@example.com"); !errors.Is(err, ErrRateLimited) {
					t.Fatalf("expected continued lockout, got %v", err)
				}
			}
			if got := tc.attempts("a@example.com"); got != 5 {
				t.Fatalf("expected counter to stay at 5, got %d", got)
			}
		})
	}
}

func TestLimiterWindowExpiryResetsCounter(t *testing.T) {
	for _, tc := range newLimiters(t) {
		t.Run(tc.name, func(t *testing.T) {
			defer tc.done()
			ctx := context.Background()

			for i := 0; i < 6; i++ {
				_ = tc.limiter.CheckAndRecordAttempt(ctx, "a@example.com")
			}

			tc.clock.Advance(15*time.Minute + time.Second)
			if err := tc.limiter.CheckAndRecordAttempt(ctx, "a@example.com"); err != nil {
				t.Fatalf("expected attempt after window to pass, got %v", err)
			}
			if got := tc.attempts("a@example.com"); got != 1 {
				t.Fatalf("expected counter reset to 1, got %d", got)
			}
		})
	}
}

func TestMemoryLimiterSweepsExpiredIdentifiers(t *testing.T) {
	clock := newFakeClock()
	l := NewMemory(testConfig, clock.Now)
	ctx := context.Background()

	for _, id := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		if err := l.CheckAndRecordAttempt(ctx, id); err != nil {
			t.Fatalf("attempt %s: %v", id, err)
		}
	}

	clock.Advance(10 * time.Minute)
	_ = l.CheckAndRecordAttempt(ctx, "d@example.com")
	if got := l.Tracked(); got != 4 {
		t.Fatalf("no record has expired yet, tracked %d", got)
	}

	clock.Advance(6 * time.Minute)
	_ = l.CheckAndRecordAttempt(ctx, "e@example.com")
	if got := l.Tracked(); got != 2 {
		t.Fatalf("expected only d and e to remain, tracked %d", got)
	}
	if l.Attempts("a@example.com") != 0 || l.Attempts("d@example.com") != 1 {
		t.Fatal("sweep dropped the wrong records")
	}
}

func TestLimiterClearRemovesRecord(t *testing.T) {
	for _, tc := range newLimiters(t) {
		t.Run(tc.name, func(t *testing.T) {
			defer tc.done()
			ctx := context.Background()

			for i := 0; i < 6; i++ {
				_ = tc.limiter.CheckAndRecordAttempt(ctx, "a@example.com")
			}
			if err := tc.limiter.Clear(ctx, "a@example.com"); err != nil {
				t.Fatalf("Clear failed: %v", err)
			}
			if got := tc.attempts("a@example.com"); got != 0 {
				t.Fatalf("expected record removed, got count %d", got)
			}
			if err := tc.limiter.CheckAndRecordAttempt(ctx, "a@example.com"); err != nil {
				t.Fatalf("expected fresh attempt to pass, got %v", err)
			}
		})
	}
}

func TestLimiterIdentifiersAreIndependentAndNormalized(t *testing.T) {
	for _, tc := range newLimiters(t) {
		t.Run(tc.name, func(t *testing.T) {
			defer tc.done()
			ctx := context.Background()

			for i := 0; i < 5; i++ {
				_ = tc.limiter.CheckAndRecordAttempt(ctx, " A@Example.com ")
			}
			if err := tc.limiter.CheckAndRecordAttempt(ctx, "a@example.com"); !errors.Is(err, ErrRateLimited) {
				t.Fatalf("expected normalized identifier to share the record, got %v", err)
			}
			if err := tc.limiter.CheckAndRecordAttempt(ctx, "b@example.com"); err != nil {
				t.Fatalf("expected other identifier to pass, got %v", err)
			}
		})
	}
}

func TestMemoryLimiterConcurrentAttemptsNeverExceedMax(t *testing.T) {
	l := NewMemory(testConfig, nil)
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.CheckAndRecordAttempt(ctx, "race@example.com"); err == nil {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed != 5 {
		t.Fatalf("expected exactly 5 allowed attempts, got %d", allowed)
	}
	if got := l.Attempts("race@example.com"); got != 5 {
		t.Fatalf("expected counter 5, got %d", got)
	}
}

func TestRedisLimiterUnavailable(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	mr.Close()

	l := NewRedis(rdb, testConfig, nil)
	if err := l.CheckAndRecordAttempt(context.Background(), "a@example.com"); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}
