package store

import (
	"context"
	stdErrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/bradfitz/gomemcache/memcache"

	warperrors "github.com/mirkobrombin/go-warp-sync/v1/errors"
)

// Memcache implements Store on Memcached, using its native gets/cas tokens.
// The client has no context support, so contexts are only checked before
// each call.
type Memcache struct {
	client *memcache.Client
}

// NewMemcache returns a new Memcached store using the provided client.
func NewMemcache(client *memcache.Client) *Memcache {
	return &Memcache{client: client}
}

// memcacheExpiration rounds ttl up to whole seconds. Memcached treats values
// above thirty days as absolute timestamps, which callers should avoid.
func memcacheExpiration(ttl time.Duration) int32 {
	if ttl <= 0 {
		return 0
	}
	return int32((ttl + time.Second - 1) / time.Second)
}

// Get implements Store.Get.
func (m *Memcache) Get(ctx context.Context, key string) (Value, bool, error) {
	item, ok, err := m.GetForUpdate(ctx, key)
	return item.Value, ok, err
}

// GetForUpdate implements Store.GetForUpdate.
func (m *Memcache) GetForUpdate(ctx context.Context, key string) (Item, bool, error) {
	if err := checkContext(ctx); err != nil {
		return Item{}, false, err
	}
	it, err := m.client.Get(key)
	if stdErrors.Is(err, memcache.ErrCacheMiss) {
		return Item{}, false, nil
	}
	if err != nil {
		return Item{}, false, err
	}
	return Item{Key: key, Value: Parse(string(it.Value)), token: it}, true, nil
}

// Add implements Store.Add.
func (m *Memcache) Add(ctx context.Context, key string, value Value, ttl time.Duration) (bool, error) {
	if err := checkContext(ctx); err != nil {
		return false, err
	}
	err := m.client.Add(&memcache.Item{
		Key:        key,
		Value:      []byte(value.String()),
		Expiration: memcacheExpiration(ttl),
	})
	if stdErrors.Is(err, memcache.ErrNotStored) {
		return false, nil
	}
	return err == nil, err
}

// CompareAndSwap implements Store.CompareAndSwap.
func (m *Memcache) CompareAndSwap(ctx context.Context, item Item, value Value, ttl time.Duration) (bool, error) {
	it, ok := item.token.(*memcache.Item)
	if !ok {
		return false, errForeignToken
	}
	if err := checkContext(ctx); err != nil {
		return false, err
	}
	next := *it
	next.Value = []byte(value.String())
	next.Expiration = memcacheExpiration(ttl)
	err := m.client.CompareAndSwap(&next)
	if stdErrors.Is(err, memcache.ErrCASConflict) || stdErrors.Is(err, memcache.ErrNotStored) {
		return false, nil
	}
	return err == nil, err
}

// Increment implements Store.Increment. Memcached clamps decrements at zero.
func (m *Memcache) Increment(ctx context.Context, key string, delta int64) (int64, bool, error) {
	if err := checkContext(ctx); err != nil {
		return 0, false, err
	}
	var (
		n   uint64
		err error
	)
	if delta >= 0 {
		n, err = m.client.Increment(key, uint64(delta))
	} else {
		n, err = m.client.Decrement(key, uint64(-delta))
	}
	if stdErrors.Is(err, memcache.ErrCacheMiss) {
		return 0, false, nil
	}
	if err != nil {
		if strings.Contains(err.Error(), "non-numeric") {
			return 0, false, fmt.Errorf("%w: key %q does not hold an integer", warperrors.ErrTypeCollision, key)
		}
		return 0, false, err
	}
	return int64(n), true, nil
}

// Set implements Store.Set.
func (m *Memcache) Set(ctx context.Context, key string, value Value, ttl time.Duration) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	return m.client.Set(&memcache.Item{
		Key:        key,
		Value:      []byte(value.String()),
		Expiration: memcacheExpiration(ttl),
	})
}

// Delete implements Store.Delete.
func (m *Memcache) Delete(ctx context.Context, key string) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	err := m.client.Delete(key)
	if stdErrors.Is(err, memcache.ErrCacheMiss) {
		return nil
	}
	return err
}
