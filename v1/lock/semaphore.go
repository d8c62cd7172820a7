package lock

import (
	"context"
	stdErrors "errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	warperrors "github.com/mirkobrombin/go-warp-sync/v1/errors"
	"github.com/mirkobrombin/go-warp-sync/v1/metrics"
	"github.com/mirkobrombin/go-warp-sync/v1/store"
)

var tracer = otel.Tracer("github.com/mirkobrombin/go-warp-sync/v1/lock")

// Semaphore bounds the number of concurrent holders of a key across every
// process sharing the store. The store entry holds the number of permits
// still available.
type Semaphore struct {
	store    store.Store
	key      string
	capacity int
	opts     options
}

// NewSemaphore returns a semaphore with capacity permits on key.
func NewSemaphore(s store.Store, key string, capacity int, opts ...Option) (*Semaphore, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("%w: got %d", warperrors.ErrInvalidCapacity, capacity)
	}
	return &Semaphore{
		store:    s,
		key:      key,
		capacity: capacity,
		opts:     newOptions(opts),
	}, nil
}

// Key returns the store key of the semaphore.
func (s *Semaphore) Key() string { return s.key }

// Capacity returns the number of permits the semaphore was built with.
func (s *Semaphore) Capacity() int { return s.capacity }

// TryAcquire makes a single attempt to take a permit.
func (s *Semaphore) TryAcquire(ctx context.Context) (bool, error) {
	ok, err := s.tryAcquire(ctx)
	if ok {
		metrics.AcquireCounter.Inc()
		s.opts.logger.Debug("warp: semaphore acquired", "key", s.key)
	}
	return ok, err
}

func (s *Semaphore) tryAcquire(ctx context.Context) (bool, error) {
	item, ok, err := s.store.GetForUpdate(ctx, s.key)
	if err != nil {
		return false, err
	}
	if !ok {
		// The first holder seeds the counter with its own permit taken.
		return s.store.Add(ctx, s.key, store.Int(int64(s.capacity-1)), s.opts.deadline)
	}
	n, isInt := item.Value.Int()
	if !isInt {
		metrics.TypeCollisionCounter.Inc()
		s.opts.logger.Warn("warp: semaphore key holds a foreign value", "key", s.key, "kind", item.Value.Kind())
		return false, fmt.Errorf("%w: semaphore %q holds a %s value", warperrors.ErrTypeCollision, s.key, item.Value.Kind())
	}
	if n <= 0 {
		return false, nil
	}
	return s.store.CompareAndSwap(ctx, item, store.Int(n-1), s.opts.deadline)
}

// Acquire blocks until a permit is obtained. Without WithTimeout it waits
// until ctx is done. ErrTypeCollision and store errors end the wait at once.
func (s *Semaphore) Acquire(ctx context.Context, opts ...WaitOption) error {
	ctx, span := tracer.Start(ctx, "Semaphore.Acquire", trace.WithAttributes(
		attribute.String("warp.lock.key", s.key),
		attribute.Int("warp.lock.capacity", s.capacity),
	))
	defer span.End()

	err := poll(ctx, s.opts, newWaitOptions(opts), s.key, s.tryAcquire)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	metrics.AcquireCounter.Inc()
	s.opts.logger.Debug("warp: semaphore acquired", "key", s.key)
	return nil
}

// Release returns a permit. The counter is not capped, so releasing more
// often than acquiring lifts it above the capacity. Releasing after the
// entry expired is a no-op.
func (s *Semaphore) Release(ctx context.Context) error {
	n, ok, err := s.store.Increment(ctx, s.key, 1)
	if err != nil {
		return err
	}
	if !ok {
		s.opts.logger.Debug("warp: semaphore released after its entry expired", "key", s.key)
		return nil
	}
	metrics.ReleaseCounter.Inc()
	s.opts.logger.Debug("warp: semaphore released", "key", s.key, "available", n)
	return nil
}

// Do runs fn while holding a permit. The permit is released on every exit
// path of fn, including panics and cancellation of ctx.
func (s *Semaphore) Do(ctx context.Context, fn func(context.Context) error, opts ...WaitOption) (err error) {
	if err := s.Acquire(ctx, opts...); err != nil {
		return err
	}
	defer func() {
		if rerr := s.Release(context.WithoutCancel(ctx)); rerr != nil {
			err = stdErrors.Join(err, fmt.Errorf("release %q: %w", s.key, rerr))
		}
	}()
	return fn(ctx)
}

// Available reads the number of free permits. The boolean is false when the
// semaphore has no entry, meaning every permit is free.
func (s *Semaphore) Available(ctx context.Context) (int64, bool, error) {
	v, ok, err := s.store.Get(ctx, s.key)
	if err != nil || !ok {
		return int64(s.capacity), ok, err
	}
	n, isInt := v.Int()
	if !isInt {
		return 0, true, fmt.Errorf("%w: semaphore %q holds a %s value", warperrors.ErrTypeCollision, s.key, v.Kind())
	}
	return n, true, nil
}
