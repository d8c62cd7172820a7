package store

import (
	"context"
	"errors"
	"testing"
	"time"

	warperrors "github.com/mirkobrombin/go-warp-sync/v1/errors"
)

// testStoreConformance exercises the Store contract shared by every backend.
// prefix keeps keys apart when the backend is a shared server.
func testStoreConformance(t *testing.T, s Store, prefix string) {
	t.Helper()
	ctx := context.Background()

	t.Run("AddOnlyWhenAbsent", func(t *testing.T) {
		key := prefix + "add"
		_ = s.Delete(ctx, key)
		ok, err := s.Add(ctx, key, Int(3), time.Minute)
		if err != nil || !ok {
			t.Fatalf("add: %v ok %v", err, ok)
		}
		if ok, err := s.Add(ctx, key, Int(7), time.Minute); err != nil || ok {
			t.Fatalf("expected second add to be rejected, ok %v err %v", ok, err)
		}
		v, ok, err := s.Get(ctx, key)
		if err != nil || !ok {
			t.Fatalf("get: %v ok %v", err, ok)
		}
		if n, isInt := v.Int(); !isInt || n != 3 {
			t.Fatalf("expected 3, got %v", v)
		}
	})

	t.Run("CompareAndSwapRejectsStaleToken", func(t *testing.T) {
		key := prefix + "cas"
		if err := s.Set(ctx, key, Int(3), time.Minute); err != nil {
			t.Fatalf("set: %v", err)
		}
		first, ok, err := s.GetForUpdate(ctx, key)
		if err != nil || !ok {
			t.Fatalf("get for update: %v ok %v", err, ok)
		}
		second, _, _ := s.GetForUpdate(ctx, key)
		if ok, err := s.CompareAndSwap(ctx, first, Int(2), time.Minute); err != nil || !ok {
			t.Fatalf("cas: %v ok %v", err, ok)
		}
		if ok, err := s.CompareAndSwap(ctx, second, Int(9), time.Minute); err != nil || ok {
			t.Fatalf("expected stale cas to fail, ok %v err %v", ok, err)
		}
		v, _, _ := s.Get(ctx, key)
		if n, _ := v.Int(); n != 2 {
			t.Fatalf("expected 2, got %v", v)
		}
	})

	t.Run("CompareAndSwapOnDeletedKey", func(t *testing.T) {
		key := prefix + "cas-deleted"
		_ = s.Set(ctx, key, Int(1), time.Minute)
		item, _, _ := s.GetForUpdate(ctx, key)
		if err := s.Delete(ctx, key); err != nil {
			t.Fatalf("delete: %v", err)
		}
		if ok, err := s.CompareAndSwap(ctx, item, Int(0), time.Minute); err != nil || ok {
			t.Fatalf("expected cas on deleted key to fail, ok %v err %v", ok, err)
		}
	})

	t.Run("IncrementExisting", func(t *testing.T) {
		key := prefix + "incr"
		_ = s.Set(ctx, key, Int(0), time.Minute)
		n, ok, err := s.Increment(ctx, key, 1)
		if err != nil || !ok || n != 1 {
			t.Fatalf("increment: n %d ok %v err %v", n, ok, err)
		}
		v, _, _ := s.Get(ctx, key)
		if got, _ := v.Int(); got != 1 {
			t.Fatalf("expected 1, got %v", v)
		}
	})

	t.Run("IncrementAbsentIsNoop", func(t *testing.T) {
		key := prefix + "incr-absent"
		_ = s.Delete(ctx, key)
		if _, ok, err := s.Increment(ctx, key, 1); err != nil || ok {
			t.Fatalf("expected no-op, ok %v err %v", ok, err)
		}
		if _, ok, _ := s.Get(ctx, key); ok {
			t.Fatal("increment created an absent key")
		}
	})

	t.Run("IncrementNonInteger", func(t *testing.T) {
		key := prefix + "incr-bool"
		_ = s.Set(ctx, key, Bool(true), time.Minute)
		if _, _, err := s.Increment(ctx, key, 1); !errors.Is(err, warperrors.ErrTypeCollision) {
			t.Fatalf("expected ErrTypeCollision, got %v", err)
		}
	})

	t.Run("SetBoolAndDelete", func(t *testing.T) {
		key := prefix + "flag"
		if err := s.Set(ctx, key, Bool(true), time.Minute); err != nil {
			t.Fatalf("set: %v", err)
		}
		v, ok, err := s.Get(ctx, key)
		if err != nil || !ok {
			t.Fatalf("get: %v ok %v", err, ok)
		}
		if b, isBool := v.Bool(); !isBool || !b {
			t.Fatalf("expected true, got %v", v)
		}
		if err := s.Delete(ctx, key); err != nil {
			t.Fatalf("delete: %v", err)
		}
		if err := s.Delete(ctx, key); err != nil {
			t.Fatalf("second delete: %v", err)
		}
		if _, ok, _ := s.Get(ctx, key); ok {
			t.Fatal("key still present after delete")
		}
	})

	t.Run("NonPositiveTTLNeverExpires", func(t *testing.T) {
		key := prefix + "no-ttl"
		_ = s.Delete(ctx, key)
		if ok, err := s.Add(ctx, key, Int(1), -5*time.Second); err != nil || !ok {
			t.Fatalf("add: %v ok %v", err, ok)
		}
		item, ok, err := s.GetForUpdate(ctx, key)
		if err != nil || !ok {
			t.Fatalf("get for update: %v ok %v", err, ok)
		}
		if ok, err := s.CompareAndSwap(ctx, item, Int(0), -time.Second); err != nil || !ok {
			t.Fatalf("cas: %v ok %v", err, ok)
		}
		if err := s.Set(ctx, key, Bool(true), -time.Nanosecond); err != nil {
			t.Fatalf("set: %v", err)
		}
		v, ok, err := s.Get(ctx, key)
		if err != nil || !ok {
			t.Fatalf("get: %v ok %v", err, ok)
		}
		if b, _ := v.Bool(); !b {
			t.Fatalf("expected true, got %v", v)
		}
	})
}
