package lock

import "github.com/mirkobrombin/go-warp-sync/v1/store"

// Lock is a Semaphore with a single permit.
type Lock struct {
	*Semaphore
}

// NewLock returns a mutual exclusion lock on key.
func NewLock(s store.Store, key string, opts ...Option) *Lock {
	return &Lock{Semaphore: &Semaphore{
		store:    s,
		key:      key,
		capacity: 1,
		opts:     newOptions(opts),
	}}
}
