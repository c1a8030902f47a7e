package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type MarketMetrics struct {
	tokensCreated prometheus.Counter
	trades        *prometheus.CounterVec
	feeUpdates    prometheus.Counter
	withdrawals   prometheus.Counter
	rpcRequests   *prometheus.CounterVec
}

var (
	marketOnce     sync.Once
	marketRegistry *MarketMetrics
)

func Market() *MarketMetrics {
	marketOnce.Do(func() {
		marketRegistry = &MarketMetrics{
			tokensCreated: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "market_tokens_created_total",
				Help: "Count of tokens launched through the factory.",
			}),
			trades: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "market_trades_total",
				Help: "Count of settled trades by direction.",
			}, []string{"direction"}),
			feeUpdates: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "market_fee_updates_total",
				Help: "Count of fee schedule replacements.",
			}),
			withdrawals: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "market_emergency_withdrawals_total",
				Help: "Count of emergency sweeps of unallocated value.",
			}),
			rpcRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "market_rpc_requests_total",
				Help: "Count of JSON-RPC requests by method and outcome.",
			}, []string{"method", "outcome"}),
		}
		prometheus.MustRegister(
			marketRegistry.tokensCreated,
			marketRegistry.trades,
			marketRegistry.feeUpdates,
			marketRegistry.withdrawals,
			marketRegistry.rpcRequests,
		)
	})
	return marketRegistry
}

func (m *MarketMetrics) ObserveTokenCreated() {
	if m == nil {
		return
	}
	m.tokensCreated.Inc()
}

func (m *MarketMetrics) ObserveTrade(direction string) {
	if m == nil {
		return
	}
	if direction == "" {
		direction = "unknown"
	}
	m.trades.WithLabelValues(direction).Inc()
}

func (m *MarketMetrics) ObserveFeeUpdate() {
	if m == nil {
		return
	}
	m.feeUpdates.Inc()
}

func (m *MarketMetrics) ObserveEmergencyWithdraw() {
	if m == nil {
		return
	}
	m.withdrawals.Inc()
}

func (m *MarketMetrics) ObserveRPCRequest(method, outcome string) {
	if m == nil {
		return
	}
	if method == "" {
		method = "unknown"
	}
	if outcome == "" {
		outcome = "unknown"
	}
	m.rpcRequests.WithLabelValues(method, outcome).Inc()
}
