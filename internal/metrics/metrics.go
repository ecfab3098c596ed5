// Package metrics registers the Prometheus collectors of the trading engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Signals counts predictions by strategy and signal.
	Signals = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fxbot_signals_total",
		Help: "Predictions produced, by strategy and signal",
	}, []string{"strategy", "signal"})

	// Admissions counts executions admitted by the risk gate.
	Admissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fxbot_admissions_total",
		Help: "Executions admitted by the risk gate",
	}, []string{"account"})

	// Rejections counts refused proposals by kind (risk|ledger) and reason.
	Rejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fxbot_rejections_total",
		Help: "Proposals refused, by kind and reason",
	}, []string{"account", "kind", "reason"})

	// TradesClosed counts closed trades.
	TradesClosed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fxbot_trades_closed_total",
		Help: "Trades closed",
	}, []string{"account"})

	// PredictorFallbacks counts ticks answered by the local strategy after the
	// external predictor failed.
	PredictorFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fxbot_predictor_fallbacks_total",
		Help: "External predictor failures recovered by the local strategy",
	})

	// Balance tracks the account balance.
	Balance = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "fxbot_balance",
		Help: "Account balance",
	}, []string{"account"})

	// OpenPositions tracks open trades per account.
	OpenPositions = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "fxbot_open_positions",
		Help: "Open trades",
	}, []string{"account"})

	// TickDuration observes controller tick latency.
	TickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fxbot_tick_duration_seconds",
		Help:    "Controller tick duration",
		Buckets: prometheus.DefBuckets,
	})
)
