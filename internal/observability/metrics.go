package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "weather_etl"

// Metrics holds the Prometheus counters, histograms, and gauges for the weather ETL.
type Metrics struct {
	// Fetch metrics.
	FetchAttempts        *prometheus.CounterVec // labels: outcome={success,<kind>}
	FetchResults         *prometheus.CounterVec // labels: outcome={success,terminal,exhausted}
	FetchBackoff         prometheus.Histogram
	FetchAttemptDuration prometheus.Histogram
	CircuitBreakerState  prometheus.Gauge // 0 closed, 1 half-open, 2 open

	// Monitor metrics.
	MonitorTicks *prometheus.CounterVec // labels: result={stored,failed}

	// Batch metrics.
	PipelineRunning  prometheus.Gauge
	PipelineRuns     *prometheus.CounterVec // labels: outcome={success,error}
	BatchDuration    prometheus.Histogram
	RecordsDropped   *prometheus.CounterVec // labels: reason={invalid,duplicate}
	RecordsStored    *prometheus.CounterVec // labels: sink
	SinkWriteErrors  *prometheus.CounterVec // labels: sink
	ObservationsSeen prometheus.Gauge
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()

	prometheus.MustRegister(
		m.FetchAttempts,
		m.FetchResults,
		m.FetchBackoff,
		m.FetchAttemptDuration,
		m.CircuitBreakerState,
		m.MonitorTicks,
		m.PipelineRunning,
		m.PipelineRuns,
		m.BatchDuration,
		m.RecordsDropped,
		m.RecordsStored,
		m.SinkWriteErrors,
		m.ObservationsSeen,
	)

	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		FetchAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_attempts_total",
			Help:      "Weather API attempts by outcome or failure kind.",
		}, []string{"outcome"}),
		FetchResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_results_total",
			Help:      "Per-city fetch results after retries.",
		}, []string{"outcome"}),
		FetchBackoff: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_backoff_seconds",
			Help:      "Backoff delays slept before retrying a city.",
			Buckets:   []float64{1, 5, 10, 20, 40, 80, 160, 320},
		}),
		FetchAttemptDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_attempt_duration_seconds",
			Help:      "Duration of a single weather API attempt.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
		}),
		CircuitBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Weather API circuit breaker state: 0 closed, 1 half-open, 2 open.",
		}),
		MonitorTicks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "monitor_ticks_total",
			Help:      "Monitor loop ticks by result.",
		}, []string{"result"}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 while a batch or monitor run is active, 0 otherwise.",
		}),
		PipelineRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_runs_total",
			Help:      "Completed batch runs by outcome.",
		}, []string{"outcome"}),
		BatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_duration_seconds",
			Help:      "Duration of a complete fetch-clean-analyze-load batch.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		RecordsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_dropped_total",
			Help:      "Records removed by cleaning, by reason.",
		}, []string{"reason"}),
		RecordsStored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_stored_total",
			Help:      "Records written to a sink.",
		}, []string{"sink"}),
		SinkWriteErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_write_errors_total",
			Help:      "Failed sink writes.",
		}, []string{"sink"}),
		ObservationsSeen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_batch_observations",
			Help:      "Number of cleaned observations in the most recent batch.",
		}),
	}
}
