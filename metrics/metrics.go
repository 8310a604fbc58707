package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "gatherinfo"

var (
	SearchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_total",
			Help:      "Web searches by provider and outcome",
		},
		[]string{"provider", "outcome"},
	)

	DownloadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "page_downloads_total",
			Help:      "Page fetch-and-convert results: ok, skipped or error",
		},
		[]string{"outcome"},
	)

	ConversionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "markdown_conversions_total",
			Help:      "Markdown conversions by converter actually used",
		},
		[]string{"converter"},
	)

	CompletionAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "completion_attempts_total",
			Help:      "Single completion attempts by outcome",
		},
		[]string{"outcome"},
	)

	CompletionRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "completion_retries_total",
			Help:      "Completion attempts scheduled after a transient failure",
		},
	)

	RetrievalParses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrieval_parse_total",
			Help:      "How ranking responses were parsed: strict, recovered or heuristic",
		},
		[]string{"outcome"},
	)

	WorkflowDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "workflow_duration_seconds",
			Help:      "Workflow run duration in seconds",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80, 160},
		},
		[]string{"workflow", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		SearchesTotal,
		DownloadsTotal,
		ConversionsTotal,
		CompletionAttempts,
		CompletionRetries,
		RetrievalParses,
		WorkflowDuration,
	)
}
