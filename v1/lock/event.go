package lock

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	warperrors "github.com/mirkobrombin/go-warp-sync/v1/errors"
	"github.com/mirkobrombin/go-warp-sync/v1/metrics"
	"github.com/mirkobrombin/go-warp-sync/v1/store"
)

// Event is a boolean signal shared through the store. A set event reverts
// to unset on its own once its deadline passes without another Set, so the
// deadline must outlast the expected wait.
type Event struct {
	store store.Store
	key   string
	opts  options
}

// NewEvent returns an event on key.
func NewEvent(s store.Store, key string, opts ...Option) *Event {
	return &Event{store: s, key: key, opts: newOptions(opts)}
}

// Key returns the store key of the event.
func (e *Event) Key() string { return e.key }

// Set signals the event for the configured deadline.
func (e *Event) Set(ctx context.Context) error {
	if err := e.store.Set(ctx, e.key, store.Bool(true), e.opts.deadline); err != nil {
		return err
	}
	metrics.EventSetCounter.Inc()
	e.opts.logger.Debug("warp: event set", "key", e.key, "deadline", e.opts.deadline)
	return nil
}

// Clear resets the event. Clearing an unset event is not an error.
func (e *Event) Clear(ctx context.Context) error {
	if err := e.store.Delete(ctx, e.key); err != nil {
		return err
	}
	e.opts.logger.Debug("warp: event cleared", "key", e.key)
	return nil
}

// IsSet reports whether the event is set.
func (e *Event) IsSet(ctx context.Context) (bool, error) {
	v, ok, err := e.store.Get(ctx, e.key)
	if err != nil || !ok {
		return false, err
	}
	b, isBool := v.Bool()
	if !isBool {
		metrics.TypeCollisionCounter.Inc()
		e.opts.logger.Warn("warp: event key holds a foreign value", "key", e.key, "kind", v.Kind())
		return false, fmt.Errorf("%w: event %q holds a %s value", warperrors.ErrTypeCollision, e.key, v.Kind())
	}
	return b, nil
}

// Wait blocks until the event is set. It returns without sleeping when the
// event is already set.
func (e *Event) Wait(ctx context.Context, opts ...WaitOption) error {
	ctx, span := tracer.Start(ctx, "Event.Wait", trace.WithAttributes(attribute.String("warp.lock.key", e.key)))
	defer span.End()

	if err := poll(ctx, e.opts, newWaitOptions(opts), e.key, e.IsSet); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}
