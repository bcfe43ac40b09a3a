package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Topology metrics
	InstancesKnown = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ecomesh_instances_known",
			Help: "Number of instances currently in the topology",
		},
	)

	DevicesKnown = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ecomesh_devices_known",
			Help: "Number of devices currently in the topology",
		},
	)

	EcosystemHealthScore = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ecomesh_health_score",
			Help: "Aggregate ecosystem health score (0-1)",
		},
	)

	NetworkPerformanceScore = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ecomesh_network_performance",
			Help: "Mean pairwise connection reliability (0-1)",
		},
	)

	// Discovery metrics
	DiscoveryRunsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ecomesh_discovery_runs_total",
			Help: "Total number of discovery passes",
		},
	)

	DiscoveryDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ecomesh_discovery_duration_seconds",
			Help:    "Discovery pass duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	NodesEvictedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ecomesh_nodes_evicted_total",
			Help: "Total number of nodes evicted for staleness",
		},
	)

	// Session metrics
	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ecomesh_sessions_active",
			Help: "Number of non-terminal coordination sessions",
		},
	)

	SessionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecomesh_sessions_total",
			Help: "Total number of terminal sessions by type and status",
		},
		[]string{"type", "status"},
	)

	SessionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ecomesh_session_duration_seconds",
			Help:    "Session duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Synchronization metrics
	SyncRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecomesh_sync_requests_total",
			Help: "Total number of synchronization requests by status",
		},
		[]string{"status"},
	)

	CoherenceObserved = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ecomesh_sync_coherence",
			Help:    "Coherence level per synchronization request",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		},
	)
)

func init() {
	prometheus.MustRegister(InstancesKnown)
	prometheus.MustRegister(DevicesKnown)
	prometheus.MustRegister(EcosystemHealthScore)
	prometheus.MustRegister(NetworkPerformanceScore)
	prometheus.MustRegister(DiscoveryRunsTotal)
	prometheus.MustRegister(DiscoveryDuration)
	prometheus.MustRegister(NodesEvictedTotal)
	prometheus.MustRegister(ActiveSessions)
	prometheus.MustRegister(SessionsTotal)
	prometheus.MustRegister(SessionDuration)
	prometheus.MustRegister(SyncRequestsTotal)
	prometheus.MustRegister(CoherenceObserved)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
