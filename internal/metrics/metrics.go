// Package metrics exposes Prometheus instrumentation for ledger operations.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"tradedesk-ledger/internal/util"
)

// Metrics holds the counters and histograms updated by the services.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	operations          *prometheus.CounterVec
	operationDuration   *prometheus.HistogramVec
	ledgerMutations     *prometheus.CounterVec
	settledStakes       *prometheus.CounterVec
	invariantViolations prometheus.Counter
	notifyFailures      prometheus.Counter
	expirySweeps        *prometheus.CounterVec
}

// New registers every metric on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		operations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_operations_total",
			Help: "Core operations by name and result (ok, rejected, error)",
		}, []string{"operation", "result"}),
		operationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ledger_operation_duration_seconds",
			Help:    "Wall time of core operations including store round trips",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		ledgerMutations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_balance_mutations_total",
			Help: "Balance row mutations by journal kind",
		}, []string{"kind"}),
		settledStakes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_signal_stakes_resolved_total",
			Help: "Signal stakes resolved by outcome (profit, loss, refund)",
		}, []string{"outcome"}),
		invariantViolations: f.NewCounter(prometheus.CounterOpts{
			Name: "ledger_invariant_violations_total",
			Help: "Accounting invariant violations; any non-zero value needs investigation",
		}),
		notifyFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "ledger_notification_failures_total",
			Help: "Best-effort notifications that could not be delivered",
		}),
		expirySweeps: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_signal_expiry_sweeps_total",
			Help: "Scheduled expiry sweeps by result",
		}, []string{"result"}),
	}
}

// ObserveOperation records one call of op that started at start and ended with err.
func (m *Metrics) ObserveOperation(op string, start time.Time, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
		if util.IsUserError(err) {
			result = "rejected"
		}
	}
	m.operations.WithLabelValues(op, result).Inc()
	m.operationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// LedgerMutation counts one committed-or-pending balance mutation.
func (m *Metrics) LedgerMutation(kind string) {
	if m == nil {
		return
	}
	m.ledgerMutations.WithLabelValues(kind).Inc()
}

// StakeResolved counts one stake settled or refunded.
func (m *Metrics) StakeResolved(outcome string) {
	if m == nil {
		return
	}
	m.settledStakes.WithLabelValues(outcome).Inc()
}

// InvariantViolation counts one detected accounting drift.
func (m *Metrics) InvariantViolation() {
	if m == nil {
		return
	}
	m.invariantViolations.Inc()
}

// NotificationFailed counts one undelivered notification.
func (m *Metrics) NotificationFailed() {
	if m == nil {
		return
	}
	m.notifyFailures.Inc()
}

// ExpirySweep counts one scheduled sweep.
func (m *Metrics) ExpirySweep(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.expirySweeps.WithLabelValues(result).Inc()
}
