package fetch

import (
	"log/slog"
	"time"

	"github.com/couchcryptid/weather-observation-etl/internal/observability"
)

// EventType identifies a step of the retry loop.
type EventType int

const (
	EventAttempt EventType = iota
	EventSuccess
	EventRetry
	EventTerminal
	EventExhausted
)

func (t EventType) String() string {
	switch t {
	case EventAttempt:
		return "attempt"
	case EventSuccess:
		return "success"
	case EventRetry:
		return "retry"
	case EventTerminal:
		return "terminal"
	case EventExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Event describes one step of a city fetch.
type Event struct {
	Type        EventType
	City        string
	Attempt     int
	MaxAttempts int
	Kind        Kind          // failure kind; unset for attempt and success events
	StatusCode  int           // HTTP status of the failed attempt, if any
	Delay       time.Duration // backoff after the attempt (retry and exhausted events)
	Duration    time.Duration // time spent in the attempt; unset for attempt events
	Err         error
}

// Observer receives fetch progress and diagnostics.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) Observe(e Event) { f(e) }

// Observers fans an event out to each observer in order.
type Observers []Observer

func (o Observers) Observe(e Event) {
	for _, obs := range o {
		if obs != nil {
			obs.Observe(e)
		}
	}
}

// LogObserver writes fetch events to a structured logger.
type LogObserver struct {
	logger *slog.Logger
}

// NewLogObserver creates an observer logging to logger.
func NewLogObserver(logger *slog.Logger) *LogObserver {
	return &LogObserver{logger: logger}
}

func (o *LogObserver) Observe(e Event) {
	switch e.Type {
	case EventAttempt:
		o.logger.Info("fetching city weather", "city", e.City, "attempt", e.Attempt, "max_attempts", e.MaxAttempts)
	case EventSuccess:
		o.logger.Info("city weather fetched", "city", e.City, "attempt", e.Attempt, "duration", e.Duration)
	case EventRetry:
		o.logger.Warn("fetch failed, retrying after backoff",
			"city", e.City,
			"attempt", e.Attempt,
			"kind", e.Kind.String(),
			"status", e.StatusCode,
			"delay", e.Delay,
			"error", e.Err,
		)
	case EventTerminal:
		o.logger.Error("fetch failed, not retrying",
			"city", e.City,
			"attempt", e.Attempt,
			"kind", e.Kind.String(),
			"status", e.StatusCode,
			"error", e.Err,
		)
	case EventExhausted:
		o.logger.Error("all fetch attempts failed",
			"city", e.City,
			"attempts", e.Attempt,
			"kind", e.Kind.String(),
			"backoff", e.Delay,
			"error", e.Err,
		)
	}
}

// MetricsObserver records fetch events as Prometheus metrics.
type MetricsObserver struct {
	metrics *observability.Metrics
}

// NewMetricsObserver creates an observer updating metrics.
func NewMetricsObserver(metrics *observability.Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: metrics}
}

func (o *MetricsObserver) Observe(e Event) {
	switch e.Type {
	case EventSuccess:
		o.metrics.FetchAttempts.WithLabelValues("success").Inc()
		o.metrics.FetchAttemptDuration.Observe(e.Duration.Seconds())
		o.metrics.FetchResults.WithLabelValues("success").Inc()
	case EventRetry:
		o.metrics.FetchAttempts.WithLabelValues(e.Kind.String()).Inc()
		o.metrics.FetchAttemptDuration.Observe(e.Duration.Seconds())
		o.metrics.FetchBackoff.Observe(e.Delay.Seconds())
	case EventTerminal:
		o.metrics.FetchAttempts.WithLabelValues(e.Kind.String()).Inc()
		o.metrics.FetchAttemptDuration.Observe(e.Duration.Seconds())
		o.metrics.FetchResults.WithLabelValues("terminal").Inc()
	case EventExhausted:
		o.metrics.FetchAttempts.WithLabelValues(e.Kind.String()).Inc()
		o.metrics.FetchAttemptDuration.Observe(e.Duration.Seconds())
		o.metrics.FetchBackoff.Observe(e.Delay.Seconds())
		o.metrics.FetchResults.WithLabelValues("exhausted").Inc()
	}
}
