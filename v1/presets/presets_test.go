package presets

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mirkobrombin/go-warp-sync/v1/lock"
	"github.com/mirkobrombin/go-warp-sync/v1/store"
)

func TestOpenInMemory(t *testing.T) {
	ctx := context.Background()
	s, closeFn, err := Open(ctx, DefaultConfig())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer closeFn()

	l := lock.NewLock(s, "foo")
	if ok, err := l.TryAcquire(ctx); err != nil || !ok {
		t.Fatalf("tryacquire: %v ok %v", err, ok)
	}
}

func TestOpenRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run: %v", err)
	}
	defer mr.Close()

	cfg := DefaultConfig()
	cfg.Backend = BackendRedis
	cfg.Redis.Addr = mr.Addr()
	ctx := context.Background()
	s, closeFn, err := Open(ctx, cfg, store.WithMetrics(prometheus.NewRegistry()))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer closeFn()
	if _, ok := s.(*store.Instrumented); !ok {
		t.Fatalf("expected instrumented store, got %T", s)
	}

	if err := lock.NewEvent(s, "ready").Set(ctx); err != nil {
		t.Fatalf("set: %v", err)
	}
	if got, _ := mr.Get("ready"); got != "true" {
		t.Fatalf("expected event stored in redis, got %q", got)
	}
}

func TestOpenUnreachableRedis(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = BackendRedis
	cfg.Redis.Addr = "127.0.0.1:1"
	cfg.ConnectRetries = 0
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, _, err := Open(ctx, cfg); err == nil {
		t.Fatal("expected error for unreachable backend")
	}
}

func TestOpenUnknownBackend(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = "zookeeper"
	if _, _, err := Open(context.Background(), cfg); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestOpenEtcdWithoutEndpoints(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = BackendEtcd
	cfg.Etcd.Endpoints = nil
	if _, _, err := Open(context.Background(), cfg); err == nil {
		t.Fatal("expected error without endpoints")
	}
}

func TestOpenMemcacheClosesClient(t *testing.T) {
	addr := os.Getenv("WARPSYNC_MEMCACHE_ADDR")
	if addr == "" {
		t.Skip("WARPSYNC_MEMCACHE_ADDR not set")
	}
	cfg := DefaultConfig()
	cfg.Backend = BackendMemcache
	cfg.Memcache.Servers = strings.Split(addr, ",")
	ctx := context.Background()
	s, closeFn, err := Open(ctx, cfg)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := lock.NewEvent(s, "presets:memcache").Set(ctx); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := closeFn(); err != nil {
		t.Fatalf("close: %v", err)
	}
}
