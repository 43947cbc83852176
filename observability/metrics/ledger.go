package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// LedgerMetrics tracks pool and custody activity for operational dashboards.
type LedgerMetrics struct {
	operations      *prometheus.CounterVec
	operationErrors *prometheus.CounterVec
	poolLiquidity   prometheus.Gauge
	totalBorrowed   prometheus.Gauge
	borrowRateBps   prometheus.Gauge
	replaysRejected prometheus.Counter
	liquidations    prometheus.Counter
}

var (
	ledgerOnce     sync.Once
	ledgerRegistry *LedgerMetrics
)

// Ledger returns the process-wide ledger metrics, registering them on first
// use.
func Ledger() *LedgerMetrics {
	ledgerOnce.Do(func() {
		ledgerRegistry = &LedgerMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "lend_operations_total",
				Help: "Count of accepted ledger operations by kind.",
			}, []string{"op"}),
			operationErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "lend_operation_errors_total",
				Help: "Count of rejected ledger operations by kind.",
			}, []string{"op"}),
			poolLiquidity: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "lend_pool_liquidity",
				Help: "Base-asset liquidity currently available in the pool.",
			}),
			totalBorrowed: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "lend_pool_total_borrowed",
				Help: "Outstanding borrowed amount including accrued interest.",
			}),
			borrowRateBps: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "lend_borrow_rate_bps",
				Help: "Current pool borrow rate in basis points.",
			}),
			replaysRejected: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "lend_bridge_replays_rejected_total",
				Help: "Number of inbound bridge messages rejected by the replay guard.",
			}),
			liquidations: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "lend_liquidations_total",
				Help: "Number of executed liquidations.",
			}),
		}
		prometheus.MustRegister(
			ledgerRegistry.operations,
			ledgerRegistry.operationErrors,
			ledgerRegistry.poolLiquidity,
			ledgerRegistry.totalBorrowed,
			ledgerRegistry.borrowRateBps,
			ledgerRegistry.replaysRejected,
			ledgerRegistry.liquidations,
		)
	})
	return ledgerRegistry
}

// ObserveOperation records an accepted or rejected operation outcome.
func (m *LedgerMetrics) ObserveOperation(op string, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.operationErrors.WithLabelValues(op).Inc()
		return
	}
	m.operations.WithLabelValues(op).Inc()
}

// SetPoolGauges refreshes the pool snapshot gauges.
func (m *LedgerMetrics) SetPoolGauges(liquidity, totalBorrowed float64, rateBps uint64) {
	if m == nil {
		return
	}
	m.poolLiquidity.Set(liquidity)
	m.totalBorrowed.Set(totalBorrowed)
	m.borrowRateBps.Set(float64(rateBps))
}

// ReplayRejected counts a replay-guard rejection.
func (m *LedgerMetrics) ReplayRejected() {
	if m == nil {
		return
	}
	m.replaysRejected.Inc()
}

// LiquidationExecuted counts an executed liquidation.
func (m *LedgerMetrics) LiquidationExecuted() {
	if m == nil {
		return
	}
	m.liquidations.Inc()
}
