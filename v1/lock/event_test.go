package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	warperrors "github.com/mirkobrombin/go-warp-sync/v1/errors"
	"github.com/mirkobrombin/go-warp-sync/v1/store"
)

func newTestEvent(t *testing.T, key string, opts ...Option) (*Event, *store.InMemory, *clockwork.FakeClock) {
	t.Helper()
	st := store.NewInMemory()
	t.Cleanup(st.Close)
	fc := clockwork.NewFakeClock()
	return NewEvent(st, key, append([]Option{WithClock(fc)}, opts...)...), st, fc
}

func TestEventSetIsSetClear(t *testing.T) {
	ev, _, _ := newTestEvent(t, "ready")
	ctx := context.Background()
	if set, err := ev.IsSet(ctx); err != nil || set {
		t.Fatalf("expected unset event, set %v err %v", set, err)
	}
	if err := ev.Set(ctx); err != nil {
		t.Fatalf("set: %v", err)
	}
	if set, err := ev.IsSet(ctx); err != nil || !set {
		t.Fatalf("expected set event, set %v err %v", set, err)
	}
	if err := ev.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if set, err := ev.IsSet(ctx); err != nil || set {
		t.Fatalf("expected cleared event, set %v err %v", set, err)
	}
	if err := ev.Clear(ctx); err != nil {
		t.Fatalf("second clear: %v", err)
	}
}

func TestEventWaitAfterSetReturnsImmediately(t *testing.T) {
	ev, _, _ := newTestEvent(t, "ready")
	ctx := context.Background()
	_ = ev.Set(ctx)

	done := make(chan error, 1)
	go func() { done <- ev.Wait(ctx) }()
	if err := recvErr(t, done); err != nil {
		t.Fatalf("wait: %v", err)
	}
}

func TestEventWaitObservesSet(t *testing.T) {
	ev, _, fc := newTestEvent(t, "ready")
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- ev.Wait(ctx) }()
	waitSleeping(t, fc)
	assertPending(t, done)

	other := NewEvent(ev.store, "ready")
	if err := other.Set(ctx); err != nil {
		t.Fatalf("set: %v", err)
	}
	fc.Advance(DefaultPollInterval)
	if err := recvErr(t, done); err != nil {
		t.Fatalf("wait: %v", err)
	}
}

func TestEventWaitTimeout(t *testing.T) {
	ev, _, fc := newTestEvent(t, "never", WithPollInterval(500*time.Millisecond))
	ctx := context.Background()

	start := fc.Now()
	done := make(chan error, 1)
	go func() { done <- ev.Wait(ctx, WithTimeout(time.Second)) }()

	advance(t, fc, 500*time.Millisecond)
	waitSleeping(t, fc)
	assertPending(t, done)
	fc.Advance(500 * time.Millisecond)

	if err := recvErr(t, done); !errors.Is(err, warperrors.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if elapsed := fc.Since(start); elapsed != time.Second {
		t.Fatalf("expected to give up after 1s, got %v", elapsed)
	}
}

func TestEventTypeCollision(t *testing.T) {
	ev, st, _ := newTestEvent(t, "shared")
	ctx := context.Background()
	_ = st.Set(ctx, "shared", store.Int(2), time.Minute)

	done := make(chan error, 1)
	go func() { done <- ev.Wait(ctx) }()
	if err := recvErr(t, done); !errors.Is(err, warperrors.ErrTypeCollision) {
		t.Fatalf("expected ErrTypeCollision, got %v", err)
	}
}

func TestEventSelfExpires(t *testing.T) {
	st := store.NewInMemory()
	defer st.Close()
	ev := NewEvent(st, "ready", WithDeadline(10*time.Millisecond))
	ctx := context.Background()
	_ = ev.Set(ctx)
	time.Sleep(20 * time.Millisecond)
	if set, err := ev.IsSet(ctx); err != nil || set {
		t.Fatalf("expected event to expire, set %v err %v", set, err)
	}
}
