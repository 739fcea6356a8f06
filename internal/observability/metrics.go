// Package observability provides Prometheus metrics and the structured
// trace sink for monitoring the evolution pipeline.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Evolution pipeline metrics
	EvolutionsProposed prometheus.Counter
	EvolutionsDeployed prometheus.Counter
	EvolutionsRejected *prometheus.CounterVec
	ValidatorDuration  *prometheus.HistogramVec
	Rollbacks          prometheus.Counter

	// Guardrail metrics
	KillSwitchActive prometheus.Gauge
	AccountEquity    prometheus.Gauge

	// Memory metrics
	EvaluationsClosed prometheus.Counter
	BlacklistSize     prometheus.Gauge

	// Upstream metrics
	UpstreamFailures *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "evolab"
	}

	return &Metrics{
		EvolutionsProposed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "evolution",
			Name:      "proposed_total",
			Help:      "Total number of suggestions entering the pipeline",
		}),
		EvolutionsDeployed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "evolution",
			Name:      "deployed_total",
			Help:      "Total number of candidates deployed as the active version",
		}),
		EvolutionsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "evolution",
			Name:      "rejected_total",
			Help:      "Total number of candidates rejected by pipeline stage",
		}, []string{"stage"}),
		ValidatorDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "evolution",
			Name:      "validator_duration_seconds",
			Help:      "Validator run duration by validator",
			Buckets:   prometheus.DefBuckets,
		}, []string{"validator"}),
		Rollbacks: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "evolution",
			Name:      "rollbacks_total",
			Help:      "Total number of live-fault rollbacks",
		}),

		KillSwitchActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "guardrail",
			Name:      "kill_switch_active",
			Help:      "1 when the kill switch is latched, 0 otherwise",
		}),
		AccountEquity: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "guardrail",
			Name:      "account_equity",
			Help:      "Most recent account equity sample",
		}),

		EvaluationsClosed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "memory",
			Name:      "evaluations_closed_total",
			Help:      "Total number of evaluation windows closed",
		}),
		BlacklistSize: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "memory",
			Name:      "blacklist_size",
			Help:      "Current number of blacklisted fingerprints",
		}),

		UpstreamFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "failures_total",
			Help:      "Total number of upstream failures by source",
		}, []string{"source"}),
	}
}

// Handler returns an HTTP handler serving the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordProposed increments the proposed counter.
func RecordProposed() {
	DefaultMetrics.EvolutionsProposed.Inc()
}

// RecordDeployed increments the deployed counter.
func RecordDeployed() {
	DefaultMetrics.EvolutionsDeployed.Inc()
}

// RecordRejected records a rejection at the given pipeline stage.
func RecordRejected(stage string) {
	DefaultMetrics.EvolutionsRejected.WithLabelValues(stage).Inc()
}

// RecordValidatorDuration observes a validator run duration.
func RecordValidatorDuration(validator string, seconds float64) {
	DefaultMetrics.ValidatorDuration.WithLabelValues(validator).Observe(seconds)
}

// RecordRollback increments the rollback counter.
func RecordRollback() {
	DefaultMetrics.Rollbacks.Inc()
}

// SetKillSwitch updates the kill switch gauge.
func SetKillSwitch(active bool) {
	if active {
		DefaultMetrics.KillSwitchActive.Set(1)
	} else {
		DefaultMetrics.KillSwitchActive.Set(0)
	}
}

// SetEquity updates the account equity gauge.
func SetEquity(equity float64) {
	DefaultMetrics.AccountEquity.Set(equity)
}

// RecordEvaluationsClosed adds closed evaluation windows to the counter.
func RecordEvaluationsClosed(n int) {
	DefaultMetrics.EvaluationsClosed.Add(float64(n))
}

// SetBlacklistSize updates the blacklist size gauge.
func SetBlacklistSize(n int) {
	DefaultMetrics.BlacklistSize.Set(float64(n))
}

// RecordUpstreamFailure records a failed upstream call.
func RecordUpstreamFailure(source string) {
	DefaultMetrics.UpstreamFailures.WithLabelValues(source).Inc()
}
