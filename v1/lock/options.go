package lock

import (
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
)

const (
	// DefaultPollInterval is how long a waiter sleeps between attempts.
	DefaultPollInterval = time.Second
	// DefaultDeadline is the TTL applied to permit counters and signals.
	DefaultDeadline = 60 * time.Second
)

type options struct {
	pollInterval time.Duration
	deadline     time.Duration
	clock        clockwork.Clock
	logger       *slog.Logger
}

// Option configures a Semaphore, Lock or Event.
type Option func(*options)

// WithPollInterval sets the delay between two attempts of a waiter.
// Non-positive values are ignored.
func WithPollInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.pollInterval = d
		}
	}
}

// WithDeadline sets the TTL of the store entry. A holder that crashes
// without releasing gives its permits back once the entry expires.
// Zero disables expiry; negative values are ignored.
func WithDeadline(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.deadline = d
		}
	}
}

// WithClock replaces the clock used to sleep between attempts.
func WithClock(c clockwork.Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithLogger sets the logger. slog.Default is used otherwise.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func newOptions(opts []Option) options {
	o := options{
		pollInterval: DefaultPollInterval,
		deadline:     DefaultDeadline,
		clock:        clockwork.NewRealClock(),
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

type waitOptions struct {
	timeout time.Duration
	bounded bool
}

// WaitOption configures a single Acquire or Wait call.
type WaitOption func(*waitOptions)

// WithTimeout bounds the wait. The budget is spent one poll interval per
// failed attempt; once it is exhausted the call fails with ErrTimeout.
// A zero timeout makes exactly one attempt.
func WithTimeout(d time.Duration) WaitOption {
	return func(w *waitOptions) {
		w.timeout = d
		w.bounded = true
	}
}

func newWaitOptions(opts []WaitOption) waitOptions {
	var w waitOptions
	for _, opt := range opts {
		opt(&w)
	}
	return w
}
