package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// SentLedger records which notifications have already been delivered so
// overlapping tolerance bands across cycles cannot double-send. Ledger
// failures fail open: a duplicate push beats a dropped one.
type SentLedger interface {
	// Seen reports whether the key was already marked.
	Seen(ctx context.Context, key string) (bool, error)
	// Mark records the key. Called only after a successful send, so a
	// transient delivery failure stays eligible for the next cycle.
	Mark(ctx context.Context, key string) error
}

// --------------------------------------------------------------------------
// Redis ledger
// --------------------------------------------------------------------------

const redisKeyPrefix = "nextclass:sent:"

// RedisLedger is a Redis-backed SentLedger with per-entry TTL.
type RedisLedger struct {
	client *redis.Client
}

// NewRedisLedger connects to Redis and verifies the connection.
func NewRedisLedger(ctx context.Context, addr string) (*RedisLedger, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis at %s: %w", addr, err)
	}
	return &RedisLedger{client: client}, nil
}

func (l *RedisLedger) Seen(ctx context.Context, key string) (bool, error) {
	n, err := l.client.Exists(ctx, redisKeyPrefix+key).Result()
	if err != nil {
		return false, fmt.Errorf("ledger exists: %w", err)
	}
	return n > 0, nil
}

func (l *RedisLedger) Mark(ctx context.Context, key string) error {
	if err := l.client.Set(ctx, redisKeyPrefix+key, "1", ledgerTTL).Err(); err != nil {
		return fmt.Errorf("ledger set: %w", err)
	}
	return nil
}

// Close releases the Redis connection.
func (l *RedisLedger) Close() error {
	return l.client.Close()
}

// --------------------------------------------------------------------------
// In-memory ledger
// --------------------------------------------------------------------------

// MemoryLedger is a process-local SentLedger for single-instance deployments
// and tests. Entries expire after ledgerTTL, same as the Redis ledger, so a
// weekly recurring slot key suppresses only the day it was sent. The set is
// additionally bounded at memoryLedgerMax entries.
type MemoryLedger struct {
	mu   sync.Mutex
	now  func() time.Time
	sent map[string]time.Time // key -> marked-at
}

// NewMemoryLedger creates an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{now: time.Now, sent: make(map[string]time.Time)}
}

func (l *MemoryLedger) Seen(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	at, ok := l.sent[key]
	if !ok {
		return false, nil
	}
	if l.now().Sub(at) > ledgerTTL {
		delete(l.sent, key)
		return false, nil
	}
	return true, nil
}

func (l *MemoryLedger) Mark(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.sent) >= memoryLedgerMax {
		l.sweep()
	}
	l.sent[key] = l.now()
	return nil
}

// sweep drops expired entries; if everything is still fresh the set is
// cleared outright to keep the bound hard.
func (l *MemoryLedger) sweep() {
	cutoff := l.now().Add(-ledgerTTL)
	for k, at := range l.sent {
		if at.Before(cutoff) {
			delete(l.sent, k)
		}
	}
	if len(l.sent) >= memoryLedgerMax {
		l.sent = make(map[string]time.Time)
	}
}
