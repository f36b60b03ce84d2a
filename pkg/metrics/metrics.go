package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	applyPlanner = "apply_planner"

	verificationSessionCount = "verification_session_count"
	applicationStatusTotal   = "application_status_total"
	ingestedPostingsTotal    = "ingested_postings_total"
	embeddingFailuresTotal   = "embedding_failures_total"

	statusLabel  = "status"
	companyLabel = "company"
)

var verificationSessionCountMetric = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Subsystem: applyPlanner,
		Name:      verificationSessionCount,
		Help:      "number of live browser verification sessions held in memory",
	},
)

var applicationStatusTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: applyPlanner,
		Name:      applicationStatusTotal,
		Help:      "number of application status transitions by target status",
	},
	[]string{statusLabel},
)

var ingestedPostingsTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: applyPlanner,
		Name:      ingestedPostingsTotal,
		Help:      "number of job postings upserted by the ingestion pipeline",
	},
	[]string{companyLabel},
)

var embeddingFailuresTotalMetric = prometheus.NewCounter(
	prometheus.CounterOpts{
		Subsystem: applyPlanner,
		Name:      embeddingFailuresTotal,
		Help:      "number of embedding requests that fell back to a zero vector",
	},
)

func SetVerificationSessionCount(n int) {
	verificationSessionCountMetric.Set(float64(n))
}

func IncreaseApplicationStatusTotal(status string) {
	applicationStatusTotalMetric.WithLabelValues(status).Inc()
}

func IncreaseIngestedPostingsTotal(company string) {
	ingestedPostingsTotalMetric.WithLabelValues(company).Inc()
}

func IncreaseEmbeddingFailuresTotal() {
	embeddingFailuresTotalMetric.Inc()
}

func RegisterMetrics() {
	prometheus.MustRegister(verificationSessionCountMetric)
	prometheus.MustRegister(applicationStatusTotalMetric)
	prometheus.MustRegister(ingestedPostingsTotalMetric)
	prometheus.MustRegister(embeddingFailuresTotalMetric)
}
