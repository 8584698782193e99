package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	matchTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "match_transitions_total",
			Help: "Match lifecycle transitions by outcome",
		},
		[]string{"transition", "outcome"},
	)

	pairingCandidates = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pairing_candidates",
			Help:    "Number of pairings returned per query",
			Buckets: prometheus.LinearBuckets(0, 5, 10),
		},
	)

	pairingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pairing_query_duration_seconds",
			Help:    "Duration of pairing discovery",
			Buckets: prometheus.DefBuckets,
		},
	)

	lifecycleEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lifecycle_events_total",
			Help: "Lifecycle events handed to the event sink",
		},
		[]string{"type", "outcome"},
	)
)

// Outcomes used as label values.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// TrackTransition counts one lifecycle call.
func TrackTransition(transition, outcome string) {
	matchTransitions.WithLabelValues(transition, outcome).Inc()
}

// TrackPairingQuery records a pairing discovery run.
func TrackPairingQuery(returned int, took time.Duration) {
	pairingCandidates.Observe(float64(returned))
	pairingDuration.Observe(took.Seconds())
}

// TrackEvent counts a lifecycle event emission attempt.
func TrackEvent(eventType, outcome string) {
	lifecycleEvents.WithLabelValues(eventType, outcome).Inc()
}
