package rate

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Config holds limiter tuning parameters.
type Config struct {
	MaxAttempts int
	Window      time.Duration
}

// Limiter is satisfied by both limiter implementations.
type Limiter interface {
	CheckAndRecordAttempt(ctx context.Context, identifier string) error
	Clear(ctx context.Context, identifier string) error
}

type attemptRecord struct {
	count       int
	windowStart time.Time
	locked      bool
}

// MemoryLimiter keeps LoginAttemptRecords in process memory. The zero value is
// not usable; construct with [NewMemory].
type MemoryLimiter struct {
	config Config
	now    func() time.Time

	mu        sync.Mutex
	records   map[string]*attemptRecord
	lastSweep time.Time
}

// NewMemory creates an in-memory limiter. A nil clock defaults to time.Now.
func NewMemory(cfg Config, now func() time.Time) *MemoryLimiter {
	if now == nil {
		now = time.Now
	}
	return &MemoryLimiter{
		config:    cfg,
		now:       now,
		records:   make(map[string]*attemptRecord),
		lastSweep: now(),
	}
}

// CheckAndRecordAttempt counts one attempt for identifier and returns a
// *LockoutError when the identifier is locked. The check and the increment
// happen under one lock. At most once per window, records whose window has
// expired are dropped so identifiers that never return do not accumulate.
func (l *MemoryLimiter) CheckAndRecordAttempt(_ context.Context, identifier string) error {
	key := NormalizeIdentifier(identifier)
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) >= l.config.Window {
		l.sweepLocked(now)
	}

	rec, ok := l.records[key]
	if !ok || now.Sub(rec.windowStart) > l.config.Window {
		l.records[key] = &attemptRecord{count: 1, windowStart: now}
		return nil
	}

	if rec.locked {
		return &LockoutError{Remaining: rec.windowStart.Add(l.config.Window).Sub(now)}
	}

	if rec.count >= l.config.MaxAttempts {
		rec.locked = true
		return &LockoutError{Remaining: rec.windowStart.Add(l.config.Window).Sub(now)}
	}

	rec.count++
	return nil
}

func (l *MemoryLimiter) sweepLocked(now time.Time) {
	for key, rec := range l.records {
		if now.Sub(rec.windowStart) > l.config.Window {
			delete(l.records, key)
		}
	}
	l.lastSweep = now
}

// Tracked returns the number of identifiers currently holding a record.
func (l *MemoryLimiter) Tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

// Clear removes the record for identifier.
func (l *MemoryLimiter) Clear(_ context.Context, identifier string) error {
	key := NormalizeIdentifier(identifier)

	l.mu.Lock()
	delete(l.records, key)
	l.mu.Unlock()
	return nil
}

// Attempts returns the current counter for identifier, 0 when absent.
func (l *MemoryLimiter) Attempts(identifier string) int {
	key := NormalizeIdentifier(identifier)

	l.mu.Lock()
	defer l.mu.Unlock()
	if rec, ok := l.records[key]; ok {
		return rec.count
	}
	return 0
}

// NormalizeIdentifier trims and lower-cases login identifiers so that
// "A@example.com " and "a@example.com" share one record.
func NormalizeIdentifier(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}
