package gohelix

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are registered against the default Prometheus registry so the
// embedding process can mount its own /metrics handler; gohelix never opens
// a listener of its own.
var (
	messagesProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "helix_participant_messages_processed_total",
			Help: "Number of messages handled by the executor, by outcome.",
		},
		[]string{"outcome"},
	)

	transitionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "helix_participant_transition_duration_seconds",
			Help:    "Duration of a single transition task, from handler dispatch to message removal.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"state_model_def"},
	)

	accessorUpdateRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "helix_accessor_update_retries_total",
			Help: "Number of optimistic-concurrency retries performed by DataAccessor.Update.",
		},
	)
)

func init() {
	prometheus.MustRegister(messagesProcessed, transitionDuration, accessorUpdateRetries)
}
