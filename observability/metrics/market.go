package metrics

import (
	"math/big"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type MarketMetrics struct {
	operations       *prometheus.CounterVec
	settlementVolume prometheus.Counter
	withdrawalVolume prometheus.Counter
	escrowedBids     prometheus.Gauge
}

var (
	marketOnce     sync.Once
	marketRegistry *MarketMetrics
)

func Market() *MarketMetrics {
	marketOnce.Do(func() {
		marketRegistry = &MarketMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "market_operations_total",
				Help: "Count of ledger operations by method and result.",
			}, []string{"method", "result"}),
			settlementVolume: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "market_settlement_volume_total",
				Help: "Cumulative gross value settled through offer and bid acceptance.",
			}),
			withdrawalVolume: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "market_withdrawal_volume_total",
				Help: "Cumulative value paid out through the pending-balance ledger.",
			}),
			escrowedBids: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "market_escrowed_bid_funds",
				Help: "Value currently escrowed in active bids.",
			}),
		}
		prometheus.MustRegister(
			marketRegistry.operations,
			marketRegistry.settlementVolume,
			marketRegistry.withdrawalVolume,
			marketRegistry.escrowedBids,
		)
	})
	return marketRegistry
}

func amountValue(v *big.Int) float64 {
	if v == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(v).Float64()
	return f
}

func (m *MarketMetrics) ObserveOperation(method, result string) {
	if m == nil {
		return
	}
	if result == "" {
		result = "ok"
	}
	m.operations.WithLabelValues(method, result).Inc()
}

func (m *MarketMetrics) AddSettlementVolume(amount *big.Int) {
	if m == nil {
		return
	}
	m.settlementVolume.Add(amountValue(amount))
}

func (m *MarketMetrics) AddWithdrawalVolume(amount *big.Int) {
	if m == nil {
		return
	}
	m.withdrawalVolume.Add(amountValue(amount))
}

func (m *MarketMetrics) AddEscrowedBid(amount *big.Int) {
	if m == nil {
		return
	}
	m.escrowedBids.Add(amountValue(amount))
}

func (m *MarketMetrics) SubEscrowedBid(amount *big.Int) {
	if m == nil {
		return
	}
	m.escrowedBids.Sub(amountValue(amount))
}
