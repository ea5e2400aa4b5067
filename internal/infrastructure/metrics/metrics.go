package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Banking metrics
	BankingOperations *prometheus.CounterVec
	BankedAmount      prometheus.Histogram
	AppliedAmount     prometheus.Histogram
	BankingErrors     *prometheus.CounterVec

	// Pool metrics
	PoolsCreated       prometheus.Counter
	PoolSize           prometheus.Histogram
	PoolSettlementTime prometheus.Histogram
	PoolErrors         *prometheus.CounterVec

	// Ledger metrics
	LedgerUpdates       *prometheus.CounterVec
	InvariantViolations prometheus.Counter
	ReconciliationRuns  *prometheus.CounterVec

	// Storage metrics
	TxRetries   prometheus.Counter
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter
}

// New creates and registers all Prometheus metrics
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the metrics on reg.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		BankingOperations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cbledger_banking_operations_total",
				Help: "Total banking operations by type",
			},
			[]string{"operation"},
		),
		BankedAmount: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "cbledger_banked_amount",
			Help:    "Amounts banked, in gCO2e",
			Buckets: prometheus.ExponentialBuckets(1e3, 10, 10),
		}),
		AppliedAmount: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "cbledger_applied_amount",
			Help:    "Amounts applied from bank, in gCO2e",
			Buckets: prometheus.ExponentialBuckets(1e3, 10, 10),
		}),
		BankingErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cbledger_banking_errors_total",
				Help: "Total banking errors by type",
			},
			[]string{"operation", "error_type"},
		),

		PoolsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "cbledger_pools_created_total",
			Help: "Total number of pools settled",
		}),
		PoolSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "cbledger_pool_size",
			Help:    "Number of members per settled pool",
			Buckets: []float64{1, 2, 3, 5, 10, 20, 50, 100},
		}),
		PoolSettlementTime: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "cbledger_pool_settlement_duration_seconds",
			Help:    "Duration of pool settlement",
			Buckets: prometheus.DefBuckets,
		}),
		PoolErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cbledger_pool_errors_total",
				Help: "Total pool creation errors by type",
			},
			[]string{"error_type"},
		),

		LedgerUpdates: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cbledger_ledger_updates_total",
				Help: "Total ledger record mutations by kind",
			},
			[]string{"kind"},
		),
		InvariantViolations: factory.NewCounter(prometheus.CounterOpts{
			Name: "cbledger_ledger_invariant_violations_total",
			Help: "Ledger updates rejected by invariant checks",
		}),
		ReconciliationRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cbledger_reconciliation_runs_total",
				Help: "Reconciliation runs by outcome",
			},
			[]string{"outcome"},
		),

		TxRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "cbledger_tx_retries_total",
			Help: "Transactions retried after a storage conflict",
		}),
		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "cbledger_cache_hits_total",
			Help: "Adjusted balance cache hits",
		}),
		CacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "cbledger_cache_misses_total",
			Help: "Adjusted balance cache misses",
		}),
	}
}
