package metrics

import (
	"receipt-verification-api/pkg/appstore"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for receipt verification
type Metrics struct {
	Attempts        *prometheus.CounterVec
	AttemptDuration *prometheus.HistogramVec
	Verifications   *prometheus.CounterVec
}

// New creates and registers all metrics with reg
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Attempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "receipt_verification_attempts_total",
			Help: "Round trips to the App Store verifyReceipt endpoints",
		}, []string{"environment", "outcome"}),
		AttemptDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "receipt_verification_attempt_duration_seconds",
			Help:    "Latency of a single verifyReceipt round trip",
			Buckets: prometheus.DefBuckets,
		}, []string{"environment"}),
		Verifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "receipt_verifications_total",
			Help: "Finished receipt verifications, after retries and environment switches",
		}, []string{"outcome"}),
	}
}

// ObserveAttempt records one round trip made by the verifier
func (m *Metrics) ObserveAttempt(a appstore.Attempt) {
	m.Attempts.WithLabelValues(a.Environment.Name, appstore.ErrorKind(a.Err)).Inc()
	m.AttemptDuration.WithLabelValues(a.Environment.Name).Observe(a.Duration.Seconds())
}

// IncrementVerifications counts a finished verification by outcome
func (m *Metrics) IncrementVerifications(outcome string) {
	m.Verifications.WithLabelValues(outcome).Inc()
}
