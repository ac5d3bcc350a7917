package csrf

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrSlotUnavailable wraps storage failures.
var ErrSlotUnavailable = errors.New("csrf slot unavailable")

// Slot stores at most one pending token.
type Slot interface {
	// Put replaces the pending token.
	Put(ctx context.Context, token string) error
	// Take removes and returns the pending token. ok is false when the slot was empty.
	Take(ctx context.Context) (token string, ok bool, err error)
}

// MemorySlot keeps the pending token in memory.
type MemorySlot struct {
	mu      sync.Mutex
	token   string
	present bool
}

// NewMemorySlot returns an empty in-memory slot.
func NewMemorySlot() *MemorySlot {
	return &MemorySlot{}
}

func (s *MemorySlot) Put(_ context.Context, token string) error {
	s.mu.Lock()
	s.token = token
	s.present = true
	s.mu.Unlock()
	return nil
}

func (s *MemorySlot) Take(_ context.Context) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tok, ok := s.token, s.present
	s.token = ""
	s.present = false
	return tok, ok, nil
}

// RedisSlot keeps the pending token under one Redis key per session so that
// several front-end replicas can serve the same login handshake.
type RedisSlot struct {
	redis redis.UniversalClient
	key   string
	ttl   time.Duration
}

// NewRedisSlot creates a slot stored at "hcsrf:<sessionID>".
func NewRedisSlot(redisClient redis.UniversalClient, sessionID string, ttl time.Duration) *RedisSlot {
	return &RedisSlot{
		redis: redisClient,
		key:   "hcsrf:" + sessionID,
		ttl:   ttl,
	}
}

func (s *RedisSlot) Put(ctx context.Context, token string) error {
	if err := s.redis.Set(ctx, s.key, token, s.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrSlotUnavailable, err)
	}
	return nil
}

func (s *RedisSlot) Take(ctx context.Context) (string, bool, error) {
	tok, err := s.redis.GetDel(ctx, s.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("%w: %v", ErrSlotUnavailable, err)
	}
	return tok, true, nil
}
