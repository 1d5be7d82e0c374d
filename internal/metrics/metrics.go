// Package metrics exposes the bot's operational counters in Prometheus text
// format:
//   - bot_cycles_total                    – decision cycles completed
//   - bot_decisions_total{action,result}  – per-trader outcomes
//   - bot_orders_total{side,result}       – order placements by confirmation
//   - bot_portfolio_value                 – latest holdings valuation (gauge)
//   - bot_wallet_cool                     – current cool scalar (gauge)
//   - bot_live_traders / bot_open_deals   – roster gauges
//   - bot_cycle_duration_seconds          – cycle wall time histogram
//
// Everything is registered in init() and served at /metrics.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	Cycles = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bot_cycles_total",
			Help: "Decision cycles completed",
		},
	)

	Decisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_decisions_total",
			Help: "Per-trader cycle outcomes",
		},
		[]string{"action", "result"},
	)

	Orders = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_orders_total",
			Help: "Orders placed, split by side and confirmation",
		},
		[]string{"side", "result"},
	)

	PortfolioValue = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bot_portfolio_value",
			Help: "Latest valuation of all holdings in quote currency",
		},
	)

	WalletCool = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bot_wallet_cool",
			Help: "Current wallet cool scalar",
		},
	)

	LiveTraders = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bot_live_traders",
			Help: "Registered traders",
		},
	)

	OpenDeals = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bot_open_deals",
			Help: "Open deals across all traders",
		},
	)

	CycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bot_cycle_duration_seconds",
			Help:    "Wall time of one decision cycle",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
		},
	)
)

func init() {
	prometheus.MustRegister(
		Cycles,
		Decisions,
		Orders,
		PortfolioValue,
		WalletCool,
		LiveTraders,
		OpenDeals,
		CycleDuration,
	)
}
