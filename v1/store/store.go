package store

import (
	"context"
	stdErrors "errors"
	"time"
)

// Store is an atomic cache shared by every process taking part in a
// coordination protocol. A ttl of zero stores the entry without expiry.
type Store interface {
	// Get reads the value for key. The boolean reports whether it exists.
	Get(ctx context.Context, key string) (Value, bool, error)
	// GetForUpdate reads the value for key together with a token that a
	// subsequent CompareAndSwap uses to detect concurrent writers.
	GetForUpdate(ctx context.Context, key string) (Item, bool, error)
	// Add stores value only if key is absent. It reports whether the value
	// was stored.
	Add(ctx context.Context, key string, value Value, ttl time.Duration) (bool, error)
	// CompareAndSwap replaces the entry read by GetForUpdate if nobody
	// modified it since. It reports whether the swap happened.
	CompareAndSwap(ctx context.Context, item Item, value Value, ttl time.Duration) (bool, error)
	// Increment atomically adds delta to an integer entry and returns the
	// new value. An absent key is left untouched and reported as not found.
	// A non-integer entry yields an error wrapping ErrTypeCollision.
	Increment(ctx context.Context, key string, delta int64) (int64, bool, error)
	// Set stores value unconditionally.
	Set(ctx context.Context, key string, value Value, ttl time.Duration) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}

// Item is an entry read for update. The token is opaque and only
// meaningful to the store that produced it.
type Item struct {
	Key   string
	Value Value
	token any
}

var errForeignToken = stdErrors.New("warp: compare-and-swap token was issued by another store")

// checkContext returns the context error, if any, without blocking.
func checkContext(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
