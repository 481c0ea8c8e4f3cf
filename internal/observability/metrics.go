// Package observability provides Prometheus metrics for monitoring. The core
// replay packages never touch metrics; the runner, feed, and cmds record
// through the helpers here.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Simulation metrics
	SimulationsRun  *prometheus.CounterVec
	RunDuration     prometheus.Histogram
	TradesSimulated prometheus.Counter
	FillsRejected   prometheus.Counter
	CandlesReplayed prometheus.Counter

	// Ingestion metrics
	CandlesIngested prometheus.Counter
	FeedMessages    prometheus.Counter
	FeedErrors      *prometheus.CounterVec
	FeedReconnects  prometheus.Counter

	// Pipeline metrics
	AggregatesComputed prometheus.Counter
	ReportsGenerated   prometheus.Counter
	TradesVerified     *prometheus.CounterVec

	// Health metrics
	LastSuccessfulIngestion prometheus.Gauge
}

// NewMetrics creates a Metrics instance with all metrics registered on the
// default registry. Call at most once per process.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "token_replay_lab"
	}

	return &Metrics{
		SimulationsRun: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "runs_total",
			Help:      "Total number of simulation runs by status",
		}, []string{"status"}),
		RunDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "run_duration_seconds",
			Help:      "Simulation run duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		TradesSimulated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "trades_total",
			Help:      "Total number of trades produced by simulations",
		}),
		FillsRejected: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "fills_rejected_total",
			Help:      "Total number of execution model fill rejections",
		}),
		CandlesReplayed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "candles_replayed_total",
			Help:      "Total number of candles processed by the replay engine",
		}),

		CandlesIngested: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "candles_ingested_total",
			Help:      "Total number of candles stored from the feed",
		}),
		FeedMessages: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "feed_messages_total",
			Help:      "Total number of websocket feed messages received",
		}),
		FeedErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "feed_errors_total",
			Help:      "Total number of feed errors by type",
		}, []string{"error_type"}),
		FeedReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "feed_reconnects_total",
			Help:      "Total number of websocket reconnects",
		}),

		AggregatesComputed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "aggregates_computed_total",
			Help:      "Total number of strategy aggregates computed",
		}),
		ReportsGenerated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "reports_generated_total",
			Help:      "Total number of reports generated",
		}),
		TradesVerified: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "verification",
			Name:      "trades_verified_total",
			Help:      "Total number of trades verified by result",
		}, []string{"result"}),

		LastSuccessfulIngestion: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_ingestion_timestamp",
			Help:      "Unix timestamp of the last successful candle insert",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordSimulation increments the run counter and observes duration.
func RecordSimulation(status string, seconds float64) {
	DefaultMetrics.SimulationsRun.WithLabelValues(status).Inc()
	DefaultMetrics.RunDuration.Observe(seconds)
}

// RecordTrades adds to the simulated trade counter.
func RecordTrades(n int) {
	DefaultMetrics.TradesSimulated.Add(float64(n))
}

// RecordFillRejections adds to the rejected fill counter.
func RecordFillRejections(n int) {
	DefaultMetrics.FillsRejected.Add(float64(n))
}

// RecordCandlesReplayed adds to the replayed candle counter.
func RecordCandlesReplayed(n int) {
	DefaultMetrics.CandlesReplayed.Add(float64(n))
}

// RecordCandlesIngested adds to the ingested candle counter and refreshes the
// ingestion health timestamp.
func RecordCandlesIngested(n int, unixTs float64) {
	DefaultMetrics.CandlesIngested.Add(float64(n))
	DefaultMetrics.LastSuccessfulIngestion.Set(unixTs)
}

// RecordVerification increments the verification counter for one result.
func RecordVerification(match bool) {
	result := "divergent"
	if match {
		result = "match"
	}
	DefaultMetrics.TradesVerified.WithLabelValues(result).Inc()
}
