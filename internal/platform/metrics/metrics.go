package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the reconciliation engine.
type Metrics struct {
	StatusesResolved  *prometheus.CounterVec
	ConflictsDetected *prometheus.CounterVec
	FraudAlerts       *prometheus.CounterVec
	ResolutionActions *prometheus.CounterVec
	LedgerAppends     *prometheus.CounterVec
	FraudScanDuration prometheus.Histogram
	HTTPDuration      *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		StatusesResolved: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "participation_statuses_resolved_total",
			Help: "Canonical statuses resolved, labeled by resulting status",
		}, []string{"status"}),
		ConflictsDetected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "participation_conflicts_detected_total",
			Help: "Conflicts detected during resolution, labeled by type and severity",
		}, []string{"type", "severity"}),
		FraudAlerts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "participation_fraud_alerts_total",
			Help: "Fraud alerts emitted by event scans, labeled by type and severity",
		}, []string{"type", "severity"}),
		ResolutionActions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "participation_resolution_actions_total",
			Help: "Batch resolution actions processed, labeled by action and outcome",
		}, []string{"action", "outcome"}),
		LedgerAppends: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "participation_ledger_appends_total",
			Help: "Audit entries appended to the change ledger, labeled by action type",
		}, []string{"action"}),
		FraudScanDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "participation_fraud_scan_duration_seconds",
			Help:    "Wall time of full-event fraud scans",
			Buckets: prometheus.DefBuckets,
		}),
		HTTPDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "participation_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status class",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "status"}),
	}
}

func (m *Metrics) IncStatusResolved(status string) {
	m.StatusesResolved.WithLabelValues(status).Inc()
}

func (m *Metrics) IncConflictDetected(conflictType, severity string) {
	m.ConflictsDetected.WithLabelValues(conflictType, severity).Inc()
}

func (m *Metrics) IncFraudAlert(alertType, severity string) {
	m.FraudAlerts.WithLabelValues(alertType, severity).Inc()
}

func (m *Metrics) IncResolutionAction(action, outcome string) {
	m.ResolutionActions.WithLabelValues(action, outcome).Inc()
}

func (m *Metrics) IncLedgerAppend(action string) {
	m.LedgerAppends.WithLabelValues(action).Inc()
}

func (m *Metrics) ObserveFraudScan(d time.Duration) {
	m.FraudScanDuration.Observe(d.Seconds())
}
