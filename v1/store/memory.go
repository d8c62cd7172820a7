package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	warperrors "github.com/mirkobrombin/go-warp-sync/v1/errors"
)

// defaultCleanupInterval is the default period for removing expired items.
const defaultCleanupInterval = time.Minute

type entry struct {
	value   Value
	version uint64
}

// InMemory implements Store in process memory. It is meant for tests and
// for coordinating goroutines of a single process; it offers no sharing
// across processes.
type InMemory struct {
	mu      sync.Mutex
	items   *gocache.Cache
	version uint64
	closed  bool

	cleanupInterval time.Duration
}

// InMemoryOption configures an InMemory store.
type InMemoryOption func(*InMemory)

// WithCleanupInterval sets the interval at which expired items are removed.
// A zero or negative duration disables the background janitor; expired
// items are still never returned.
func WithCleanupInterval(d time.Duration) InMemoryOption {
	return func(s *InMemory) {
		s.cleanupInterval = d
	}
}

// NewInMemory returns a new in-memory store.
func NewInMemory(opts ...InMemoryOption) *InMemory {
	s := &InMemory{cleanupInterval: defaultCleanupInterval}
	for _, opt := range opts {
		opt(s)
	}
	s.items = gocache.New(gocache.NoExpiration, s.cleanupInterval)
	return s
}

func memoryExpiration(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return gocache.NoExpiration
	}
	return ttl
}

// lookup must be called with s.mu held.
func (s *InMemory) lookup(key string) (entry, time.Time, bool) {
	v, exp, ok := s.items.GetWithExpiration(key)
	if !ok {
		return entry{}, time.Time{}, false
	}
	return v.(entry), exp, true
}

// store must be called with s.mu held.
func (s *InMemory) store(key string, value Value, d time.Duration) {
	s.version++
	s.items.Set(key, entry{value: value, version: s.version}, d)
}

func (s *InMemory) begin(ctx context.Context) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return warperrors.ErrConnectionClosed
	}
	return nil
}

// Get implements Store.Get.
func (s *InMemory) Get(ctx context.Context, key string) (Value, bool, error) {
	if err := s.begin(ctx); err != nil {
		return Value{}, false, err
	}
	defer s.mu.Unlock()
	e, _, ok := s.lookup(key)
	return e.value, ok, nil
}

// GetForUpdate implements Store.GetForUpdate.
func (s *InMemory) GetForUpdate(ctx context.Context, key string) (Item, bool, error) {
	if err := s.begin(ctx); err != nil {
		return Item{}, false, err
	}
	defer s.mu.Unlock()
	e, _, ok := s.lookup(key)
	if !ok {
		return Item{}, false, nil
	}
	return Item{Key: key, Value: e.value, token: e.version}, true, nil
}

// Add implements Store.Add.
func (s *InMemory) Add(ctx context.Context, key string, value Value, ttl time.Duration) (bool, error) {
	if err := s.begin(ctx); err != nil {
		return false, err
	}
	defer s.mu.Unlock()
	if _, _, ok := s.lookup(key); ok {
		return false, nil
	}
	s.store(key, value, memoryExpiration(ttl))
	return true, nil
}

// CompareAndSwap implements Store.CompareAndSwap.
func (s *InMemory) CompareAndSwap(ctx context.Context, item Item, value Value, ttl time.Duration) (bool, error) {
	version, ok := item.token.(uint64)
	if !ok {
		return false, errForeignToken
	}
	if err := s.begin(ctx); err != nil {
		return false, err
	}
	defer s.mu.Unlock()
	e, _, ok := s.lookup(item.Key)
	if !ok || e.version != version {
		return false, nil
	}
	s.store(item.Key, value, memoryExpiration(ttl))
	return true, nil
}

// Increment implements Store.Increment. The entry keeps its expiration.
func (s *InMemory) Increment(ctx context.Context, key string, delta int64) (int64, bool, error) {
	if err := s.begin(ctx); err != nil {
		return 0, false, err
	}
	defer s.mu.Unlock()
	e, exp, ok := s.lookup(key)
	if !ok {
		return 0, false, nil
	}
	n, isInt := e.value.Int()
	if !isInt {
		return 0, false, fmt.Errorf("%w: key %q holds a %s value", warperrors.ErrTypeCollision, key, e.value.Kind())
	}
	d := gocache.NoExpiration
	if !exp.IsZero() {
		d = time.Until(exp)
		if d <= 0 {
			return 0, false, nil
		}
	}
	n += delta
	s.store(key, Int(n), d)
	return n, true, nil
}

// Set implements Store.Set.
func (s *InMemory) Set(ctx context.Context, key string, value Value, ttl time.Duration) error {
	if err := s.begin(ctx); err != nil {
		return err
	}
	defer s.mu.Unlock()
	s.store(key, value, memoryExpiration(ttl))
	return nil
}

// Delete implements Store.Delete.
func (s *InMemory) Delete(ctx context.Context, key string) error {
	if err := s.begin(ctx); err != nil {
		return err
	}
	defer s.mu.Unlock()
	s.items.Delete(key)
	return nil
}

// Len reports the number of entries, including expired ones not yet swept.
func (s *InMemory) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items.ItemCount()
}

// Close drops every entry. Further calls return ErrConnectionClosed.
func (s *InMemory) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.items.Flush()
}
