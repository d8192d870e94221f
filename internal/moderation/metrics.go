package moderation

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	verdictsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatwarden_verdicts_total",
			Help: "Total number of moderation verdicts issued",
		},
		[]string{"verdict"},
	)

	violationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatwarden_violations_total",
			Help: "Total number of detected violations",
		},
		[]string{"kind"},
	)

	decisionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chatwarden_decision_duration_seconds",
			Help:    "Time spent producing one moderation decision",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func RegisterMetrics(registerer prometheus.Registerer) {
	registerer.MustRegister(verdictsTotal, violationsTotal, decisionDuration)
}

func recordVerdict(verdict Verdict) {
	verdictsTotal.WithLabelValues(string(verdict.Kind)).Inc()
	for _, violation := range verdict.Violations {
		violationsTotal.WithLabelValues(string(violation)).Inc()
	}
}
