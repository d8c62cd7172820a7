package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mirkobrombin/go-warp-sync/v1/lock"
	"github.com/mirkobrombin/go-warp-sync/v1/metrics"
	"github.com/mirkobrombin/go-warp-sync/v1/presets"
	"github.com/mirkobrombin/go-warp-sync/v1/store"
)

// app carries what every subcommand needs once the root command ran.
type app struct {
	v      *viper.Viper
	out    io.Writer
	logger *slog.Logger
	store  store.Store

	cleanup []func(context.Context) error
}

func (a *app) primitiveOptions() []lock.Option {
	return []lock.Option{
		lock.WithPollInterval(a.v.GetDuration("poll-interval")),
		lock.WithDeadline(a.v.GetDuration("deadline")),
		lock.WithLogger(a.logger),
	}
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}
	defaults := presets.DefaultConfig()

	root := &cobra.Command{
		Use:          "warp-sync",
		Short:        "Distributed semaphores, locks and events over a shared atomic cache",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			a.out = cmd.OutOrStdout()
			if err := a.setup(cmd.Context(), cmd.ErrOrStderr()); err != nil {
				return errors.Join(err, a.teardown(context.WithoutCancel(cmd.Context())))
			}
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "config file (yaml, toml or json)")
	flags.String("backend", string(defaults.Backend), "store backend: memory, redis, memcache or etcd")
	flags.String("redis-addr", defaults.Redis.Addr, "Redis address")
	flags.String("redis-password", "", "Redis password")
	flags.Int("redis-db", 0, "Redis database")
	flags.StringSlice("memcache-servers", defaults.Memcache.Servers, "Memcached servers")
	flags.Duration("memcache-timeout", 0, "Memcached socket timeout")
	flags.StringSlice("etcd-endpoints", defaults.Etcd.Endpoints, "etcd endpoints")
	flags.Duration("etcd-dial-timeout", defaults.Etcd.DialTimeout, "etcd dial timeout")
	flags.Uint64("connect-retries", defaults.ConnectRetries, "probes of an unreachable backend before giving up")
	flags.Duration("poll-interval", lock.DefaultPollInterval, "delay between two attempts of a waiter")
	flags.Duration("deadline", lock.DefaultDeadline, "TTL of counters and signals")
	flags.String("log-level", "info", "log level: debug, info, warn or error")
	flags.Bool("trace", false, "print OpenTelemetry spans to stderr")
	flags.String("metrics-addr", "", "serve Prometheus metrics on this address")

	bindings := map[string]string{
		"config":            "config",
		"backend":           "backend",
		"redis.addr":        "redis-addr",
		"redis.password":    "redis-password",
		"redis.db":          "redis-db",
		"memcache.servers":  "memcache-servers",
		"memcache.timeout":  "memcache-timeout",
		"etcd.endpoints":    "etcd-endpoints",
		"etcd.dial-timeout": "etcd-dial-timeout",
		"connect-retries":   "connect-retries",
		"poll-interval":     "poll-interval",
		"deadline":          "deadline",
		"log-level":         "log-level",
		"trace":             "trace",
		"metrics-addr":      "metrics-addr",
	}
	for key, flag := range bindings {
		_ = a.v.BindPFlag(key, flags.Lookup(flag))
	}
	a.v.SetEnvPrefix("WARPSYNC")
	a.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	a.v.AutomaticEnv()

	root.AddCommand(
		newSemaphoreCmd(a),
		newLockCmd(a),
		newEventCmd(a),
		newBenchCmd(a),
	)
	a.tearDownAfter(root)
	return root
}

// tearDownAfter wraps every runnable command so cleanup also happens when
// it fails. Cobra skips post-run hooks after a RunE error.
func (a *app) tearDownAfter(cmd *cobra.Command) {
	if run := cmd.RunE; run != nil {
		cmd.RunE = func(cmd *cobra.Command, args []string) error {
			err := run(cmd, args)
			return errors.Join(err, a.teardown(context.WithoutCancel(cmd.Context())))
		}
	}
	for _, sub := range cmd.Commands() {
		a.tearDownAfter(sub)
	}
}

func (a *app) setup(ctx context.Context, stderr io.Writer) error {
	if path := a.v.GetString("config"); path != "" {
		a.v.SetConfigFile(path)
		if err := a.v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config: %w", err)
		}
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(a.v.GetString("log-level"))); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	a.logger = slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(a.logger)

	var cfg presets.Config
	if err := a.v.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}

	var instrument []store.InstrumentOption
	if a.v.GetBool("trace") {
		shutdown, err := setupTracing(stderr)
		if err != nil {
			return fmt.Errorf("tracing: %w", err)
		}
		a.cleanup = append(a.cleanup, shutdown)
		instrument = append(instrument, store.WithTracing())
	}
	if addr := a.v.GetString("metrics-addr"); addr != "" {
		reg := metrics.NewRegistry()
		metrics.RegisterSyncMetrics(reg)
		reg.MustRegister(collectors.NewGoCollector())
		a.cleanup = append(a.cleanup, serveMetrics(addr, reg, a.logger))
		instrument = append(instrument, store.WithMetrics(reg))
	}

	s, closeStore, err := presets.Open(ctx, cfg, instrument...)
	if err != nil {
		return err
	}
	a.store = s
	a.cleanup = append(a.cleanup, func(context.Context) error { return closeStore() })
	a.logger.Debug("warp: store ready", "backend", cfg.Backend)
	return nil
}

func (a *app) teardown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	var first error
	for i := len(a.cleanup) - 1; i >= 0; i-- {
		if err := a.cleanup[i](ctx); err != nil && first == nil {
			first = err
		}
	}
	a.cleanup = nil
	return first
}

// waitOptions turns the --timeout flag into a wait option when it was given.
func waitOptions(cmd *cobra.Command) ([]lock.WaitOption, error) {
	if !cmd.Flags().Changed("timeout") {
		return nil, nil
	}
	d, err := cmd.Flags().GetDuration("timeout")
	if err != nil {
		return nil, err
	}
	return []lock.WaitOption{lock.WithTimeout(d)}, nil
}
