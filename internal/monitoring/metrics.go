package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// EngineStates lists every engine state label exported by the state gauge
var EngineStates = []string{"STOPPED", "STARTING", "RUNNING", "STOPPING", "ERROR"}

var (
	// Trading metrics
	tradesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trading_bot_trades_total",
			Help: "Total number of trades executed",
		},
		[]string{"symbol", "side", "strategy"},
	)

	tradeNotional = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trading_bot_trade_notional",
			Help:    "Distribution of trade notionals",
			Buckets: prometheus.ExponentialBuckets(10, 2, 12),
		},
		[]string{"symbol"},
	)

	signalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trading_bot_signals_total",
			Help: "Signals produced by strategies",
		},
		[]string{"strategy", "action"},
	)

	rejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trading_bot_signal_rejections_total",
			Help: "Signals rejected, by pipeline stage",
		},
		[]string{"stage"},
	)

	// Engine metrics
	engineState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "trading_bot_engine_state",
			Help: "1 for the current engine state, 0 otherwise",
		},
		[]string{"state"},
	)

	cycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "trading_bot_cycle_duration_seconds",
			Help:    "Duration of one trading cycle",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Portfolio and risk metrics
	portfolioValue = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "trading_bot_portfolio_value",
		Help: "Marked-to-market portfolio value",
	})

	drawdown = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "trading_bot_drawdown_ratio",
		Help: "Current drawdown from peak portfolio value",
	})

	dailyPnL = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "trading_bot_daily_pnl",
		Help: "Realized P&L since the last UTC reset",
	})

	valueAtRisk = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "trading_bot_var_95",
		Help: "Historical-simulation VaR at 95% confidence",
	})

	// Market data metrics
	currentPrice = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "trading_bot_current_price",
			Help: "Current price of trading symbol",
		},
		[]string{"symbol"},
	)

	// Strategy metrics
	strategyWeight = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "trading_bot_strategy_weight",
			Help: "Performance weight applied to a strategy's signals",
		},
		[]string{"strategy"},
	)

	// Error metrics
	errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trading_bot_errors_total",
			Help: "Total number of errors",
		},
		[]string{"category"},
	)
)

func init() {
	prometheus.MustRegister(
		tradesTotal,
		tradeNotional,
		signalsTotal,
		rejectionsTotal,
		engineState,
		cycleDuration,
		portfolioValue,
		drawdown,
		dailyPnL,
		valueAtRisk,
		currentPrice,
		strategyWeight,
		errorsTotal,
	)
}

// MetricsHandler serves the Prometheus metrics endpoint
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// RecordTrade records an executed trade
func RecordTrade(symbol, side, strategy string, notional float64) {
	tradesTotal.WithLabelValues(symbol, side, strategy).Inc()
	tradeNotional.WithLabelValues(symbol).Observe(notional)
}

// RecordSignal counts a raw strategy signal
func RecordSignal(strategy, action string) {
	signalsTotal.WithLabelValues(strategy, action).Inc()
}

// RecordRejection counts a signal dropped at stage
func RecordRejection(stage string) {
	rejectionsTotal.WithLabelValues(stage).Inc()
}

// SetEngineState flags state as current
func SetEngineState(state string) {
	for _, s := range EngineStates {
		v := 0.0
		if s == state {
			v = 1
		}
		engineState.WithLabelValues(s).Set(v)
	}
}

// ObserveCycle records the duration of one cycle
func ObserveCycle(d time.Duration) {
	cycleDuration.Observe(d.Seconds())
}

// UpdateRisk publishes the portfolio and risk gauges
func UpdateRisk(value, currentDrawdown, pnl, var95 float64) {
	portfolioValue.Set(value)
	drawdown.Set(currentDrawdown)
	dailyPnL.Set(pnl)
	valueAtRisk.Set(var95)
}

// UpdatePrice updates the current price metric
func UpdatePrice(symbol string, price float64) {
	currentPrice.WithLabelValues(symbol).Set(price)
}

// UpdateStrategyWeight updates the strategy weight metric
func UpdateStrategyWeight(strategy string, weight float64) {
	strategyWeight.WithLabelValues(strategy).Set(weight)
}

// RecordError records an error metric
func RecordError(category string) {
	errorsTotal.WithLabelValues(category).Inc()
}
