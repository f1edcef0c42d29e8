package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry served on /metrics.
	Registry = prometheus.NewRegistry()

	RoutingQueries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "routing_queries_total", Help: "Pairwise routing queries by outcome."},
		[]string{"outcome"},
	)
	RoutingDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "routing_query_duration_seconds", Help: "Pairwise routing query latency.", Buckets: prometheus.DefBuckets},
	)
	MatrixBuilds = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "matrix_builds_total", Help: "Distance matrix builds by result (complete, partial, superseded, stale)."},
		[]string{"result"},
	)
	StopSetGeneration = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "stopset_generation", Help: "Live stop set generation."},
	)
	Permutations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "permutations_total", Help: "Optimizer answers by result."},
		[]string{"result"},
	)
	DispatcherEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "dispatcher_events_total", Help: "Inbound dispatcher events by type."},
		[]string{"type"},
	)
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
)

var regOnce sync.Once

// RegisterDefault registers all collectors on Registry. Safe to call more than once.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(
			RoutingQueries,
			RoutingDuration,
			MatrixBuilds,
			StopSetGeneration,
			Permutations,
			DispatcherEvents,
			HTTPRequests,
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	})
}
