package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MarketMetrics tracks orchestration activity: how many listing, delist and
// purchase flows start, how they finish, and how long the client spends
// waiting on transaction confirmation.
type MarketMetrics struct {
	orchestrations *prometheus.CounterVec
	outcomes       *prometheus.CounterVec
	transactions   *prometheus.CounterVec
	watcherWait    prometheus.Histogram
}

var (
	marketMetricsOnce sync.Once
	marketRegistry    *MarketMetrics
)

// Market returns the lazily-initialised metrics registry shared by all
// orchestrators in the process.
func Market() *MarketMetrics {
	marketMetricsOnce.Do(func() {
		marketRegistry = &MarketMetrics{
			orchestrations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "tunemarket",
				Subsystem: "market",
				Name:      "orchestrations_total",
				Help:      "Orchestrations started, segmented by flow.",
			}, []string{"flow"}),
			outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "tunemarket",
				Subsystem: "market",
				Name:      "orchestration_outcomes_total",
				Help:      "Terminal orchestration outcomes segmented by flow and outcome.",
			}, []string{"flow", "outcome"}),
			transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "tunemarket",
				Subsystem: "ledger",
				Name:      "transactions_total",
				Help:      "Submitted transactions segmented by kind and terminal status.",
			}, []string{"kind", "status"}),
			watcherWait: prometheus.NewHistogram(prometheus.HistogramOpts{
				Namespace: "tunemarket",
				Subsystem: "ledger",
				Name:      "confirmation_wait_seconds",
				Help:      "Time spent waiting for a submitted transaction to reach a terminal status.",
				Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			}),
		}
		prometheus.MustRegister(
			marketRegistry.orchestrations,
			marketRegistry.outcomes,
			marketRegistry.transactions,
			marketRegistry.watcherWait,
		)
	})
	return marketRegistry
}

// RecordOrchestration notes that an orchestration flow has been entered.
func (m *MarketMetrics) RecordOrchestration(flow string) {
	if m == nil {
		return
	}
	m.orchestrations.WithLabelValues(flow).Inc()
}

// RecordOutcome notes a terminal orchestration outcome ("success" or "error").
func (m *MarketMetrics) RecordOutcome(flow, outcome string) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(flow, outcome).Inc()
}

// RecordTransaction notes the terminal status of a submitted transaction.
func (m *MarketMetrics) RecordTransaction(kind, status string) {
	if m == nil {
		return
	}
	m.transactions.WithLabelValues(kind, status).Inc()
}

// ObserveConfirmationWait records how long the watcher waited on one
// transaction.
func (m *MarketMetrics) ObserveConfirmationWait(d time.Duration) {
	if m == nil {
		return
	}
	m.watcherWait.Observe(d.Seconds())
}
