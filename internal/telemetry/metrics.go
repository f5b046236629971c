// Package telemetry exposes Prometheus metrics for the API server and
// its background workers. Metrics are registered on the default
// registry and served from /metrics.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ============ HTTP metrics ============

// HTTPRequestsTotal counts requests by method, route, and status class
var HTTPRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "polybot",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests handled",
	},
	[]string{"method", "route", "status"},
)

// HTTPRequestDuration observes request latency per route
var HTTPRequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "polybot",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration in seconds",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	},
	[]string{"method", "route"},
)

// WebsocketConnections tracks currently connected websocket clients
var WebsocketConnections = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "polybot",
		Subsystem: "http",
		Name:      "websocket_connections",
		Help:      "Current number of websocket clients",
	},
)

// ============ Bot proxy metrics ============

// BotPollsTotal counts bot health polls by result
var BotPollsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "polybot",
		Subsystem: "bot",
		Name:      "polls_total",
		Help:      "Total number of bot health polls",
	},
	[]string{"result"}, // ok, failed, rejected
)

// BotUp reports whether the bot was reachable on the last poll
var BotUp = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "polybot",
		Subsystem: "bot",
		Name:      "up",
		Help:      "Whether the trading bot is reachable (1=up, 0=down)",
	},
)

// ============ Alert metrics ============

// AlertsReceivedTotal counts accepted TradingView alerts
var AlertsReceivedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "polybot",
		Subsystem: "alerts",
		Name:      "received_total",
		Help:      "Total number of webhook alerts accepted",
	},
	[]string{"action"},
)

// AlertsRejectedTotal counts rejected webhook deliveries
var AlertsRejectedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "polybot",
		Subsystem: "alerts",
		Name:      "rejected_total",
		Help:      "Total number of webhook alerts rejected",
	},
	[]string{"reason"}, // bad_secret, malformed, unknown_action
)

// AlertsForwardedTotal counts alert forward attempts by result
var AlertsForwardedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "polybot",
		Subsystem: "alerts",
		Name:      "forwarded_total",
		Help:      "Total number of alert forward attempts",
	},
	[]string{"result"}, // ok, failed
)

// ============ Domain metrics ============

// TradesRecordedTotal counts trades written through the API
var TradesRecordedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "polybot",
		Subsystem: "trading",
		Name:      "trades_recorded_total",
		Help:      "Total number of trades recorded",
	},
	[]string{"platform", "simulated"},
)

// BacktestsRunTotal counts completed backtest runs
var BacktestsRunTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "polybot",
		Subsystem: "backtest",
		Name:      "runs_total",
		Help:      "Total number of backtests executed",
	},
)

// LoginsTotal counts login attempts by outcome
var LoginsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "polybot",
		Subsystem: "auth",
		Name:      "logins_total",
		Help:      "Total number of login attempts",
	},
	[]string{"result"}, // ok, failed
)

// VenueRequestsTotal counts upstream market data calls by venue and result
var VenueRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "polybot",
		Subsystem: "venues",
		Name:      "requests_total",
		Help:      "Total number of upstream venue API requests",
	},
	[]string{"venue", "result"},
)

// CacheHealthy reports Redis availability
var CacheHealthy = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "polybot",
		Subsystem: "cache",
		Name:      "healthy",
		Help:      "Whether Redis is available (1=yes, 0=no)",
	},
)

// ============ Helpers ============

// RecordBotPoll records a bot poll outcome and updates the up gauge
func RecordBotPoll(result string) {
	BotPollsTotal.WithLabelValues(result).Inc()
	if result == "ok" {
		BotUp.Set(1)
	} else {
		BotUp.Set(0)
	}
}

// RecordAlertAccepted records an accepted webhook alert
func RecordAlertAccepted(action string) {
	AlertsReceivedTotal.WithLabelValues(action).Inc()
}

// RecordAlertRejected records a rejected webhook delivery
func RecordAlertRejected(reason string) {
	AlertsRejectedTotal.WithLabelValues(reason).Inc()
}

// RecordTrade records a trade write
func RecordTrade(platform string, simulated bool) {
	sim := "false"
	if simulated {
		sim = "true"
	}
	TradesRecordedTotal.WithLabelValues(platform, sim).Inc()
}

// RecordLogin records a login attempt
func RecordLogin(success bool) {
	if success {
		LoginsTotal.WithLabelValues("ok").Inc()
	} else {
		LoginsTotal.WithLabelValues("failed").Inc()
	}
}

// RecordVenueRequest records an upstream venue call
func RecordVenueRequest(venue string, err error) {
	result := "ok"
	if err != nil {
		result = "failed"
	}
	VenueRequestsTotal.WithLabelValues(venue, result).Inc()
}
