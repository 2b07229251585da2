// Package quota enforces a fixed-window request limit per caller identity.
// Counts live in an external key-value store with a TTL equal to the
// window; expiry is the only reset mechanism, so each identity's window
// slides from its first request rather than aligning to the wall clock.
// Supports both in-memory (single instance) and Redis (distributed) backends.
package quota

import (
	"context"
	"strconv"
	"sync"
	"time"
)

const keyPrefix = "ratelimit:"

// Store is the key-value backend holding request counts.
type Store interface {
	// Get returns the stored value for key, or "" when the key is absent
	// or expired.
	Get(ctx context.Context, key string) (string, error)
	// Put stores value under key with the given time-to-live.
	Put(ctx context.Context, key, value string, ttl time.Duration) error
	// TTL reports the remaining lifetime of key. Returns 0 when the key
	// does not exist.
	TTL(ctx context.Context, key string) (time.Duration, error)
}

// incrementer is implemented by stores that can atomically increment a
// counter, setting the TTL on first write. Using it strengthens the
// read-then-write contract; it never weakens it.
type incrementer interface {
	Incr(ctx context.Context, key string, ttl time.Duration) (int, error)
}

// Limiter gatekeeps proxy traffic per identity.
type Limiter struct {
	store  Store
	window time.Duration
	limit  int
}

func NewLimiter(store Store, window time.Duration, limit int) *Limiter {
	return &Limiter{store: store, window: window, limit: limit}
}

// Limit returns the configured maximum requests per window.
func (l *Limiter) Limit() int { return l.limit }

// Window returns the configured window duration.
func (l *Limiter) Window() time.Duration { return l.window }

// Consult returns the current request count for identity within its
// window. A missing or expired record reads as zero.
func (l *Limiter) Consult(ctx context.Context, identity string) (int, error) {
	val, err := l.store.Get(ctx, keyPrefix+identity)
	if err != nil {
		return 0, err
	}
	if val == "" {
		return 0, nil
	}
	count, err := strconv.Atoi(val)
	if err != nil {
		// A corrupt record starts a fresh window rather than locking the
		// caller out for its remainder.
		return 0, nil
	}
	return count, nil
}

// Allowed reports whether a request with the given current count may
// proceed.
func (l *Limiter) Allowed(count int) bool {
	return count < l.limit
}

// Reserve persists the new count for identity with the window TTL. When
// the store supports an atomic increment the stored counter is bumped
// directly and the passed count is ignored; otherwise the count computed
// by the caller from Consult is written back.
func (l *Limiter) Reserve(ctx context.Context, identity string, count int) error {
	key := keyPrefix + identity
	if inc, ok := l.store.(incrementer); ok {
		_, err := inc.Incr(ctx, key, l.window)
		return err
	}
	return l.store.Put(ctx, key, strconv.Itoa(count), l.window)
}

// ResetIn reports how long until the identity's window expires. A missing
// record means a full window is available.
func (l *Limiter) ResetIn(ctx context.Context, identity string) (time.Duration, error) {
	ttl, err := l.store.TTL(ctx, keyPrefix+identity)
	if err != nil {
		return 0, err
	}
	if ttl <= 0 {
		return l.window, nil
	}
	return ttl, nil
}

// MemoryStore is a Store kept in process memory. Suitable for single
// instance deployments and tests.
type MemoryStore struct {
	mu    sync.Mutex
	items map[string]memoryItem
}

type memoryItem struct {
	value     string
	expiresAt time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]memoryItem)}
}

func (s *MemoryStore) Get(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[key]
	if !ok || time.Now().After(item.expiresAt) {
		delete(s.items, key)
		return "", nil
	}
	return item.value, nil
}

func (s *MemoryStore) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items[key] = memoryItem{value: value, expiresAt: time.Now().Add(ttl)}
	return nil
}

// Incr bumps the counter under key, starting a fresh window with the
// given TTL when the key is absent or expired. Later increments keep the
// original expiry so the window never slides.
func (s *MemoryStore) Incr(ctx context.Context, key string, ttl time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[key]
	if !ok || time.Now().After(item.expiresAt) {
		s.items[key] = memoryItem{value: "1", expiresAt: time.Now().Add(ttl)}
		return 1, nil
	}

	count, err := strconv.Atoi(item.value)
	if err != nil {
		count = 0
	}
	count++
	s.items[key] = memoryItem{value: strconv.Itoa(count), expiresAt: item.expiresAt}
	return count, nil
}

func (s *MemoryStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[key]
	if !ok {
		return 0, nil
	}
	remaining := time.Until(item.expiresAt)
	if remaining < 0 {
		return 0, nil
	}
	return remaining, nil
}
