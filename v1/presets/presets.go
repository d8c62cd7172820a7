package presets

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/cenkalti/backoff/v4"
	redis "github.com/redis/go-redis/v9"
	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/mirkobrombin/go-warp-sync/v1/store"
)

// Backend names an atomic store implementation.
type Backend string

const (
	BackendMemory   Backend = "memory"
	BackendRedis    Backend = "redis"
	BackendMemcache Backend = "memcache"
	BackendEtcd     Backend = "etcd"
)

// RedisOptions configures the connection to Redis.
type RedisOptions struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// MemcacheOptions configures the connection to Memcached.
type MemcacheOptions struct {
	Servers []string      `mapstructure:"servers"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// EtcdOptions configures the connection to etcd.
type EtcdOptions struct {
	Endpoints   []string      `mapstructure:"endpoints"`
	DialTimeout time.Duration `mapstructure:"dial-timeout"`
	Username    string        `mapstructure:"username"`
	Password    string        `mapstructure:"password"`
}

// Config selects and configures a backend.
type Config struct {
	Backend  Backend         `mapstructure:"backend"`
	Redis    RedisOptions    `mapstructure:"redis"`
	Memcache MemcacheOptions `mapstructure:"memcache"`
	Etcd     EtcdOptions     `mapstructure:"etcd"`
	// ConnectRetries is how many times an unreachable backend is probed
	// again, with exponential backoff, before Open gives up.
	ConnectRetries uint64 `mapstructure:"connect-retries"`
}

// DefaultConfig returns a configuration for local servers on their
// standard ports, using the in-memory backend.
func DefaultConfig() Config {
	return Config{
		Backend:        BackendMemory,
		Redis:          RedisOptions{Addr: "localhost:6379"},
		Memcache:       MemcacheOptions{Servers: []string{"localhost:11211"}},
		Etcd:           EtcdOptions{Endpoints: []string{"localhost:2379"}, DialTimeout: 5 * time.Second},
		ConnectRetries: 5,
	}
}

// Open builds the store selected by cfg and waits until the backend answers.
// The returned function releases the connection. When opts are given the
// store is wrapped with store.Instrument.
func Open(ctx context.Context, cfg Config, opts ...store.InstrumentOption) (store.Store, func() error, error) {
	var (
		s       store.Store
		ping    func(context.Context) error
		closeFn func() error
	)
	switch cfg.Backend {
	case BackendMemory, "":
		m := store.NewInMemory()
		s = m
		ping = func(context.Context) error { return nil }
		closeFn = func() error { m.Close(); return nil }
	case BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		s = store.NewRedis(client)
		ping = func(ctx context.Context) error { return client.Ping(ctx).Err() }
		closeFn = client.Close
	case BackendMemcache:
		client := memcache.New(cfg.Memcache.Servers...)
		if cfg.Memcache.Timeout > 0 {
			client.Timeout = cfg.Memcache.Timeout
		}
		s = store.NewMemcache(client)
		ping = func(context.Context) error { return client.Ping() }
		closeFn = client.Close
	case BackendEtcd:
		if len(cfg.Etcd.Endpoints) == 0 {
			return nil, nil, fmt.Errorf("warp: etcd backend needs at least one endpoint")
		}
		client, err := clientv3.New(clientv3.Config{
			Endpoints:   cfg.Etcd.Endpoints,
			DialTimeout: cfg.Etcd.DialTimeout,
			Username:    cfg.Etcd.Username,
			Password:    cfg.Etcd.Password,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("warp: etcd client: %w", err)
		}
		s = store.NewEtcd(client)
		ping = func(ctx context.Context) error {
			_, err := client.Status(ctx, cfg.Etcd.Endpoints[0])
			return err
		}
		closeFn = client.Close
	default:
		return nil, nil, fmt.Errorf("warp: unknown backend %q", cfg.Backend)
	}

	if err := probe(ctx, cfg.ConnectRetries, ping); err != nil {
		_ = closeFn()
		return nil, nil, fmt.Errorf("warp: %s backend unreachable: %w", cfg.Backend, err)
	}
	if len(opts) > 0 {
		s = store.Instrument(s, opts...)
	}
	return s, closeFn, nil
}

func probe(ctx context.Context, retries uint64, ping func(context.Context) error) error {
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), retries), ctx)
	return backoff.RetryNotify(func() error { return ping(ctx) }, b, func(err error, d time.Duration) {
		slog.Warn("warp: backend not reachable, retrying", "error", err, "retry_in", d)
	})
}
