package store

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/mirkobrombin/go-warp-sync/v1/store")

// Instrumented wraps a Store and records latency, errors and traces for
// every operation. Errors are returned unchanged.
type Instrumented struct {
	inner Store

	latencyHist  *prometheus.HistogramVec
	errorCounter *prometheus.CounterVec
	traceEnabled bool
}

// InstrumentOption configures an Instrumented store.
type InstrumentOption func(*Instrumented)

// WithMetrics enables Prometheus metrics collection using the provided registerer.
func WithMetrics(reg prometheus.Registerer) InstrumentOption {
	return func(s *Instrumented) {
		s.latencyHist = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "warp_store_latency_seconds",
			Help:    "Latency of atomic store operations",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"})
		s.errorCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "warp_store_errors_total",
			Help: "Total number of failed atomic store operations",
		}, []string{"op"})
		reg.MustRegister(s.latencyHist, s.errorCounter)
	}
}

// WithTracing enables OpenTelemetry tracing for store operations.
func WithTracing() InstrumentOption {
	return func(s *Instrumented) {
		s.traceEnabled = true
	}
}

// Instrument decorates inner with the given options.
func Instrument(inner Store, opts ...InstrumentOption) *Instrumented {
	s := &Instrumented{inner: inner}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// observe starts timing op and returns the context to pass to the inner
// store along with a function that records the outcome.
func (s *Instrumented) observe(ctx context.Context, op, key string) (context.Context, func(error)) {
	var span trace.Span
	if s.traceEnabled {
		ctx, span = tracer.Start(ctx, "Store."+op, trace.WithAttributes(attribute.String("warp.store.key", key)))
	}
	start := time.Now()
	return ctx, func(err error) {
		latency := time.Since(start)
		if s.latencyHist != nil {
			s.latencyHist.WithLabelValues(op).Observe(latency.Seconds())
		}
		if err != nil && s.errorCounter != nil {
			s.errorCounter.WithLabelValues(op).Inc()
		}
		if span != nil {
			span.SetAttributes(attribute.Int64("warp.store.latency_ms", latency.Milliseconds()))
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}
			span.End()
		}
	}
}

// Get implements Store.Get.
func (s *Instrumented) Get(ctx context.Context, key string) (Value, bool, error) {
	ctx, done := s.observe(ctx, "Get", key)
	v, ok, err := s.inner.Get(ctx, key)
	done(err)
	return v, ok, err
}

// GetForUpdate implements Store.GetForUpdate.
func (s *Instrumented) GetForUpdate(ctx context.Context, key string) (Item, bool, error) {
	ctx, done := s.observe(ctx, "GetForUpdate", key)
	item, ok, err := s.inner.GetForUpdate(ctx, key)
	done(err)
	return item, ok, err
}

// Add implements Store.Add.
func (s *Instrumented) Add(ctx context.Context, key string, value Value, ttl time.Duration) (bool, error) {
	ctx, done := s.observe(ctx, "Add", key)
	ok, err := s.inner.Add(ctx, key, value, ttl)
	done(err)
	return ok, err
}

// CompareAndSwap implements Store.CompareAndSwap.
func (s *Instrumented) CompareAndSwap(ctx context.Context, item Item, value Value, ttl time.Duration) (bool, error) {
	ctx, done := s.observe(ctx, "CompareAndSwap", item.Key)
	ok, err := s.inner.CompareAndSwap(ctx, item, value, ttl)
	done(err)
	return ok, err
}

// Increment implements Store.Increment.
func (s *Instrumented) Increment(ctx context.Context, key string, delta int64) (int64, bool, error) {
	ctx, done := s.observe(ctx, "Increment", key)
	n, ok, err := s.inner.Increment(ctx, key, delta)
	done(err)
	return n, ok, err
}

// Set implements Store.Set.
func (s *Instrumented) Set(ctx context.Context, key string, value Value, ttl time.Duration) error {
	ctx, done := s.observe(ctx, "Set", key)
	err := s.inner.Set(ctx, key, value, ttl)
	done(err)
	return err
}

// Delete implements Store.Delete.
func (s *Instrumented) Delete(ctx context.Context, key string) error {
	ctx, done := s.observe(ctx, "Delete", key)
	err := s.inner.Delete(ctx, key)
	done(err)
	return err
}
