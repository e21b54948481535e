// Package metrics defines the process-wide Prometheus instruments. Importing
// it registers everything with the default registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Coordination round metrics
	RoundsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "openscout_coordination_rounds_started_total",
			Help: "Total number of coordination rounds started",
		},
	)

	RoundsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "openscout_coordination_rounds_completed_total",
			Help: "Total number of coordination rounds completed",
		},
		[]string{"status"},
	)

	RoundDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "openscout_coordination_round_duration_seconds",
			Help:    "Coordination round duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Agent metrics
	AgentRounds = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "openscout_agent_rounds_total",
			Help: "Total number of per-agent rounds by outcome",
		},
		[]string{"agent", "status"},
	)

	AgentDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "openscout_agent_round_duration_seconds",
			Help:    "Per-agent round duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"agent"},
	)

	AgentTimeouts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "openscout_agent_timeouts_total",
			Help: "Total number of per-agent timeouts",
		},
		[]string{"agent"},
	)

	// Research tree metrics
	ResearchRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "openscout_research_runs_total",
			Help: "Total number of recursive research runs",
		},
		[]string{"status"},
	)

	ResearchNodes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "openscout_research_nodes_total",
			Help: "Total number of research nodes by terminal status",
		},
		[]string{"status"},
	)

	ResearchTreeDepth = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "openscout_research_tree_depth",
			Help:    "Depth reached by completed research trees",
			Buckets: []float64{1, 2, 3, 4, 5},
		},
	)

	// Cache metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "openscout_result_cache_hits_total",
			Help: "Result cache hits by tier (local, redis)",
		},
		[]string{"tier"},
	)

	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "openscout_result_cache_misses_total",
			Help: "Result cache misses",
		},
	)

	CacheInvalidations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "openscout_result_cache_invalidations_total",
			Help: "Explicit result cache invalidations",
		},
	)

	CacheLocalSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "openscout_result_cache_local_entries",
			Help: "Entries currently held in the local cache tier",
		},
	)

	// Streaming metrics
	StreamSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "openscout_stream_subscribers",
			Help: "Currently connected progress subscribers",
		},
	)

	StreamEventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "openscout_stream_events_dropped_total",
			Help: "Progress events dropped because a subscriber was slow",
		},
	)

	// Document index metrics
	DocIndexStores = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "openscout_doc_index_stores_total",
			Help: "Document index store calls by outcome",
		},
		[]string{"status"},
	)

	DocIndexSearches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "openscout_doc_index_searches_total",
			Help: "Document index search calls by outcome",
		},
		[]string{"status"},
	)
)
