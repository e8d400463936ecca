package orchestrator

import "github.com/prometheus/client_golang/prometheus"

var (
	queriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "adapterd",
			Subsystem: "core",
			Name:      "queries_total",
			Help:      "Total queries answered, by outcome",
		},
		[]string{"outcome"},
	)

	routerFallbacksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "adapterd",
			Subsystem: "core",
			Name:      "router_fallbacks_total",
			Help:      "Queries answered base-only because no domain cleared the threshold",
		},
	)

	swapRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "adapterd",
			Subsystem: "core",
			Name:      "swap_retries_total",
			Help:      "Attachment attempts retried after SwapInProgress",
		},
	)

	consensusMethodTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "adapterd",
			Subsystem: "core",
			Name:      "consensus_method_total",
			Help:      "Consensus results produced, by method",
		},
		[]string{"method"},
	)

	queryDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "adapterd",
			Subsystem: "core",
			Name:      "query_duration_seconds",
			Help:      "End-to-end query latency including swaps",
			Buckets:   prometheus.DefBuckets,
		},
	)

	inferencesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "adapterd",
			Subsystem: "core",
			Name:      "inferences_total",
			Help:      "Inference passes run, by adapter (base for base-only)",
		},
		[]string{"adapter"},
	)
)

func init() {
	prometheus.MustRegister(
		queriesTotal,
		routerFallbacksTotal,
		swapRetriesTotal,
		consensusMethodTotal,
		queryDuration,
		inferencesTotal,
	)
}
