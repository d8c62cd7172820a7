package lock

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

// waitSleeping blocks until exactly one goroutine sleeps on fc.
func waitSleeping(t *testing.T, fc *clockwork.FakeClock) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := fc.BlockUntilContext(ctx, 1); err != nil {
		t.Fatalf("no waiter went to sleep: %v", err)
	}
}

// advance wakes the sleeping waiter after d.
func advance(t *testing.T, fc *clockwork.FakeClock, d time.Duration) {
	t.Helper()
	waitSleeping(t, fc)
	fc.Advance(d)
}

func recvErr(t *testing.T, ch <-chan error) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for result")
		return nil
	}
}

func assertPending(t *testing.T, ch <-chan error) {
	t.Helper()
	select {
	case err := <-ch:
		t.Fatalf("expected call to still be waiting, returned %v", err)
	default:
	}
}
