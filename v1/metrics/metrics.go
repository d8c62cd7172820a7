package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// AcquireCounter tracks the number of permits obtained.
	AcquireCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "warp_semaphore_acquire_total",
		Help: "Total number of semaphore permits acquired",
	})
	// AcquireTimeoutCounter tracks acquisitions and waits that ran out of budget.
	AcquireTimeoutCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "warp_wait_timeout_total",
		Help: "Total number of semaphore acquisitions and event waits that timed out",
	})
	// TypeCollisionCounter tracks keys found holding a value of the wrong kind.
	TypeCollisionCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "warp_type_collision_total",
		Help: "Total number of keys found holding a value of the wrong kind",
	})
	// ReleaseCounter tracks the number of permits returned.
	ReleaseCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "warp_semaphore_release_total",
		Help: "Total number of semaphore permits released",
	})
	// EventSetCounter tracks the number of events signalled.
	EventSetCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "warp_event_set_total",
		Help: "Total number of events set",
	})
	// WaitersGauge reports the number of goroutines currently polling.
	WaitersGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "warp_waiters",
		Help: "Current number of goroutines waiting on a semaphore or event",
	})
	// AcquireWaitHistogram observes how long successful waits took.
	AcquireWaitHistogram = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "warp_wait_seconds",
		Help:    "Time spent waiting before a permit or signal was observed",
		Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
	})
)

// NewRegistry creates a new Prometheus registry.
func NewRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

// RegisterSyncMetrics registers the synchronization metrics on the provided registry.
func RegisterSyncMetrics(reg prometheus.Registerer) {
	reg.MustRegister(
		AcquireCounter,
		AcquireTimeoutCounter,
		TypeCollisionCounter,
		ReleaseCounter,
		EventSetCounter,
		WaitersGauge,
		AcquireWaitHistogram,
	)
}
