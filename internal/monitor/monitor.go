// Package monitor polls the weather of a single city at a fixed interval and
// forwards each observation to a sink.
package monitor

import (
	"context"
	"iter"
	"log/slog"
	"time"

	"github.com/couchcryptid/weather-observation-etl/internal/domain"
	"github.com/couchcryptid/weather-observation-etl/internal/observability"
	"github.com/jonboulle/clockwork"
)

// Fetcher retrieves the current weather for one city, retrying transient failures.
type Fetcher interface {
	Fetch(ctx context.Context, city string) (domain.WeatherRecord, error)
}

// Summary counts the outcome of a monitor run.
type Summary struct {
	Iterations int  `json:"iterations"`
	Ticks      int  `json:"ticks"`
	Stored     int  `json:"stored"`
	Failed     int  `json:"failed"`
	Cancelled  bool `json:"cancelled"`
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithClock sets the clock used for inter-tick sleeps and ingestion timestamps.
func WithClock(c clockwork.Clock) Option {
	return func(m *Monitor) { m.clock = c }
}

// Monitor runs the single-city polling loop.
type Monitor struct {
	fetcher Fetcher
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics
}

// New creates a Monitor.
func New(f Fetcher, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Monitor {
	m := &Monitor{
		fetcher: f,
		clock:   clockwork.NewRealClock(),
		logger:  logger,
		metrics: metrics,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Iterations is the number of ticks a run of duration performs at interval.
func Iterations(duration, interval time.Duration) int {
	if interval <= 0 || duration <= 0 {
		return 0
	}
	return int(duration / interval)
}

// Ticks returns a lazy sequence with one element per tick. A successful tick
// yields the record stamped with its ingestion time; a failed tick yields the
// fetch error and the sequence continues. The loop sleeps interval between
// ticks, never after the last one, and stops when ctx is done.
func (m *Monitor) Ticks(ctx context.Context, city string, duration, interval time.Duration) iter.Seq2[domain.WeatherRecord, error] {
	n := Iterations(duration, interval)
	return func(yield func(domain.WeatherRecord, error) bool) {
		for i := range n {
			if ctx.Err() != nil {
				return
			}

			rec, err := m.fetcher.Fetch(ctx, city)
			if ctx.Err() != nil {
				return
			}
			if err == nil {
				rec.IngestedAt = m.clock.Now().UTC()
			}
			if !yield(rec, err) {
				return
			}

			if i < n-1 && !m.sleep(ctx, interval) {
				return
			}
		}
	}
}

// Run drives Ticks to completion, appending every record to sink. Failed
// fetches and sink errors are logged and counted; neither ends the run.
func (m *Monitor) Run(ctx context.Context, city string, duration, interval time.Duration, sink Sink) Summary {
	s := Summary{Iterations: Iterations(duration, interval)}

	m.logger.Info("monitor started",
		"city", city,
		"iterations", s.Iterations,
		"interval", interval,
		"duration", duration,
	)
	m.metrics.PipelineRunning.Set(1)
	defer m.metrics.PipelineRunning.Set(0)

	for rec, err := range m.Ticks(ctx, city, duration, interval) {
		s.Ticks++
		if err != nil {
			s.Failed++
			m.metrics.MonitorTicks.WithLabelValues("failed").Inc()
			m.logger.Warn("monitor tick failed", "city", city, "tick", s.Ticks, "error", err)
			continue
		}

		if err := sink.Append(ctx, rec); err != nil {
			s.Failed++
			m.metrics.MonitorTicks.WithLabelValues("sink_error").Inc()
			m.logger.Error("store observation failed", "city", city, "tick", s.Ticks, "error", err)
			continue
		}

		s.Stored++
		m.metrics.MonitorTicks.WithLabelValues("stored").Inc()
		m.logger.Info("observation stored",
			"city", rec.City,
			"tick", s.Ticks,
			"of", s.Iterations,
			"temperature", rec.Temperature,
			"humidity", rec.Humidity,
			"description", rec.Description,
		)
	}

	s.Cancelled = ctx.Err() != nil
	m.logger.Info("monitor finished",
		"city", city,
		"ticks", s.Ticks,
		"stored", s.Stored,
		"failed", s.Failed,
		"cancelled", s.Cancelled,
	)
	return s
}

func (m *Monitor) sleep(ctx context.Context, d time.Duration) bool {
	timer := m.clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}
