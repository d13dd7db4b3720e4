// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Evaluation metrics
	LaunchesEvaluated prometheus.Counter
	LaunchesAccepted  prometheus.Counter
	LaunchesRejected  *prometheus.CounterVec

	// Trading metrics
	EntriesExecuted *prometheus.CounterVec
	EntriesFailed   *prometheus.CounterVec
	ExitsExecuted   *prometheus.CounterVec
	ExitsFailed     prometheus.Counter
	RealizedPnLSOL  prometheus.Gauge
	OpenPositions   prometheus.Gauge
	ExposureSOL     prometheus.Gauge
	CopyExposureSOL prometheus.Gauge
	SwapLatency     *prometheus.HistogramVec

	// Copy-trade metrics
	CopyTradesHandled   *prometheus.CounterVec
	CopyTradeRejections *prometheus.CounterVec
	PendingApprovals    prometheus.Gauge

	// Feed metrics
	TradesObserved prometheus.Counter
	FeedReconnects prometheus.Counter

	// Health metrics
	KillSwitchEngaged  prometheus.Gauge
	TradingHalted      prometheus.Gauge
	LastEvaluationTick prometheus.Gauge
	LastExitTick       prometheus.Gauge
	UptimeSeconds      prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "launch_trader"
	}

	return &Metrics{
		// Evaluation metrics
		LaunchesEvaluated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "evaluation",
			Name:      "launches_evaluated_total",
			Help:      "Total number of launch candidates evaluated",
		}),
		LaunchesAccepted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "evaluation",
			Name:      "launches_accepted_total",
			Help:      "Total number of launch candidates that passed evaluation",
		}),
		LaunchesRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "evaluation",
			Name:      "launches_rejected_total",
			Help:      "Total number of launch candidates rejected by reason",
		}, []string{"reason"}),

		// Trading metrics
		EntriesExecuted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "entries_executed_total",
			Help:      "Total number of entries executed by source",
		}, []string{"source"}),
		EntriesFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "entries_failed_total",
			Help:      "Total number of entry attempts failed by stage",
		}, []string{"stage"}),
		ExitsExecuted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "exits_executed_total",
			Help:      "Total number of exit actions executed by reason",
		}, []string{"reason"}),
		ExitsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "exits_failed_total",
			Help:      "Total number of failed exit swap attempts",
		}),
		RealizedPnLSOL: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "realized_pnl_sol",
			Help:      "Cumulative realized PnL in SOL across closed positions",
		}),
		OpenPositions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "open_positions",
			Help:      "Current number of non-terminal positions",
		}),
		ExposureSOL: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "exposure_sol",
			Help:      "Current committed exposure in SOL including reservations",
		}),
		CopyExposureSOL: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "copy_exposure_sol",
			Help:      "Current copy-sourced exposure in SOL",
		}),
		SwapLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "swap_latency_seconds",
			Help:      "Swap execution latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"direction"}),

		// Copy-trade metrics
		CopyTradesHandled: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "copytrade",
			Name:      "handled_total",
			Help:      "Total number of observed trades handled by outcome",
		}, []string{"outcome"}),
		CopyTradeRejections: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "copytrade",
			Name:      "rejections_total",
			Help:      "Total number of copy-trade rejections by reason",
		}, []string{"reason"}),
		PendingApprovals: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "copytrade",
			Name:      "pending_approvals",
			Help:      "Current size of the copy-trade approval queue",
		}),

		// Feed metrics
		TradesObserved: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "trades_observed_total",
			Help:      "Total number of smart-money trades delivered by the feed",
		}),
		FeedReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "reconnects_total",
			Help:      "Total number of feed reconnect attempts",
		}),

		// Health metrics
		KillSwitchEngaged: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "kill_switch_engaged",
			Help:      "1 when entries are disabled, 0 otherwise",
		}),
		TradingHalted: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "trading_halted",
			Help:      "1 once the halt signal has fired, 0 otherwise",
		}),
		LastEvaluationTick: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_evaluation_tick_timestamp",
			Help:      "Unix timestamp of the last completed evaluation tick",
		}),
		LastExitTick: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_exit_tick_timestamp",
			Help:      "Unix timestamp of the last completed exit tick",
		}),
		UptimeSeconds: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "uptime_seconds_total",
			Help:      "Total uptime in seconds",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordEvaluation records one evaluated launch candidate.
func RecordEvaluation(accepted bool, reason string) {
	DefaultMetrics.LaunchesEvaluated.Inc()
	if accepted {
		DefaultMetrics.LaunchesAccepted.Inc()
		return
	}
	DefaultMetrics.LaunchesRejected.WithLabelValues(reason).Inc()
}

// RecordEntry records an executed entry.
func RecordEntry(source string) {
	DefaultMetrics.EntriesExecuted.WithLabelValues(source).Inc()
}

// RecordEntryFailure records a failed entry attempt.
func RecordEntryFailure(stage string) {
	DefaultMetrics.EntriesFailed.WithLabelValues(stage).Inc()
}

// RecordExit records an executed exit action.
func RecordExit(reason string) {
	DefaultMetrics.ExitsExecuted.WithLabelValues(reason).Inc()
}

// RecordExitFailure records a failed exit swap attempt.
func RecordExitFailure() {
	DefaultMetrics.ExitsFailed.Inc()
}

// RecordClose adds a terminal close's PnL to the realized total.
func RecordClose(pnl float64) {
	DefaultMetrics.RealizedPnLSOL.Add(pnl)
}

// UpdateExposure updates the position and exposure gauges.
func UpdateExposure(openPositions int, totalSOL, copySOL float64) {
	DefaultMetrics.OpenPositions.Set(float64(openPositions))
	DefaultMetrics.ExposureSOL.Set(totalSOL)
	DefaultMetrics.CopyExposureSOL.Set(copySOL)
}

// RecordSwapLatency records swap execution latency.
func RecordSwapLatency(direction string, seconds float64) {
	DefaultMetrics.SwapLatency.WithLabelValues(direction).Observe(seconds)
}

// RecordCopyTrade records a handled observation; rejections also count by
// reason.
func RecordCopyTrade(outcome, reason string) {
	DefaultMetrics.CopyTradesHandled.WithLabelValues(outcome).Inc()
	if reason != "" {
		DefaultMetrics.CopyTradeRejections.WithLabelValues(reason).Inc()
	}
}

// SetPendingApprovals updates the approval queue gauge.
func SetPendingApprovals(n int) {
	DefaultMetrics.PendingApprovals.Set(float64(n))
}

// RecordTradeObserved increments the feed delivery counter.
func RecordTradeObserved() {
	DefaultMetrics.TradesObserved.Inc()
}

// RecordFeedReconnect increments the feed reconnect counter.
func RecordFeedReconnect() {
	DefaultMetrics.FeedReconnects.Inc()
}

// SetKillSwitch updates the kill switch gauge.
func SetKillSwitch(engaged bool) {
	if engaged {
		DefaultMetrics.KillSwitchEngaged.Set(1)
		return
	}
	DefaultMetrics.KillSwitchEngaged.Set(0)
}

// SetHalted updates the halt gauge.
func SetHalted(halted bool) {
	if halted {
		DefaultMetrics.TradingHalted.Set(1)
		return
	}
	DefaultMetrics.TradingHalted.Set(0)
}

// MarkEvaluationTick stamps a completed evaluation tick.
func MarkEvaluationTick(unixSeconds float64) {
	DefaultMetrics.LastEvaluationTick.Set(unixSeconds)
}

// MarkExitTick stamps a completed exit tick.
func MarkExitTick(unixSeconds float64) {
	DefaultMetrics.LastExitTick.Set(unixSeconds)
}

// AddUptime advances the uptime counter. Driven by the daemon heartbeat.
func AddUptime(seconds float64) {
	DefaultMetrics.UptimeSeconds.Add(seconds)
}
