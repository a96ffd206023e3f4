package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/couchcryptid/weather-observation-etl/internal/analysis"
	"github.com/couchcryptid/weather-observation-etl/internal/domain"
	"github.com/couchcryptid/weather-observation-etl/internal/fetch"
	"github.com/couchcryptid/weather-observation-etl/internal/observability"
	"github.com/jonboulle/clockwork"
)

// ErrNoObservations is returned when no city produced a usable observation.
var ErrNoObservations = errors.New("batch produced no observations")

// BatchFetcher fetches every city independently, preserving input order.
type BatchFetcher interface {
	FetchAll(ctx context.Context, cities []string) []fetch.Result
}

// BatchLoader writes a cleaned batch to a destination.
type BatchLoader interface {
	LoadBatch(ctx context.Context, obs []domain.Observation) error
}

// LoaderFunc adapts a function to BatchLoader.
type LoaderFunc func(ctx context.Context, obs []domain.Observation) error

func (f LoaderFunc) LoadBatch(ctx context.Context, obs []domain.Observation) error { return f(ctx, obs) }

// ChartRenderer draws a cleaned batch.
type ChartRenderer interface {
	Render(obs []domain.Observation) ([]string, error)
}

// Config is the per-run batch configuration.
type Config struct {
	Cities   []string
	Units    domain.Units
	Language string
	Analysis analysis.Options
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLoader adds a named destination. Loaders run in the order added.
func WithLoader(name string, l BatchLoader) Option {
	return func(p *Pipeline) { p.loaders = append(p.loaders, namedLoader{name: name, BatchLoader: l}) }
}

// WithCharts renders every batch with r.
func WithCharts(r ChartRenderer) Option {
	return func(p *Pipeline) { p.charts = r }
}

// WithClock sets the clock used for report timestamps and durations.
func WithClock(c clockwork.Clock) Option {
	return func(p *Pipeline) { p.clock = c }
}

type namedLoader struct {
	name string
	BatchLoader
}

// Pipeline orchestrates the fetch-clean-analyze-load batch.
type Pipeline struct {
	fetcher BatchFetcher
	loaders []namedLoader
	charts  ChartRenderer
	cfg     Config
	logger  *slog.Logger
	metrics *observability.Metrics
	clock   clockwork.Clock
	ready   atomic.Bool
	latest  atomic.Pointer[analysis.Report]
}

// New creates a Pipeline with the given stages and observability.
func New(f BatchFetcher, cfg Config, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Pipeline {
	p := &Pipeline{
		fetcher: f,
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		clock:   clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CheckReadiness returns nil once a batch has been loaded, or an error
// describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no batch has been loaded yet")
	}
	return nil
}

// LatestReport returns the report of the most recent batch that produced
// observations.
func (p *Pipeline) LatestReport() (analysis.Report, bool) {
	r := p.latest.Load()
	if r == nil {
		return analysis.Report{}, false
	}
	return *r, true
}

// RunOnce executes one batch. Cities that fail are omitted and listed in the
// report; a failing loader does not stop the others.
func (p *Pipeline) RunOnce(ctx context.Context) (analysis.Report, error) {
	start := p.clock.Now()
	p.logger.Info("batch started", "cities", len(p.cfg.Cities), "units", p.cfg.Units)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	results := p.fetcher.FetchAll(ctx, p.cfg.Cities)
	if err := ctx.Err(); err != nil {
		return analysis.Report{}, err
	}
	omitted := p.omissions(results)

	obs, cleaning := p.transform(fetch.Records(results))
	if len(obs) == 0 {
		p.metrics.PipelineRuns.WithLabelValues("error").Inc()
		p.logger.Error("batch produced no observations", "omitted", len(omitted))
		return analysis.Report{}, ErrNoObservations
	}

	report := analysis.Summarize(obs, cleaning, p.cfg.Units, p.cfg.Analysis, p.clock.Now())
	report.Omitted = omitted
	p.logReport(report)
	p.renderCharts(obs)

	loadErr := p.load(ctx, obs)

	p.latest.Store(&report)
	p.metrics.ObservationsSeen.Set(float64(len(obs)))
	p.metrics.BatchDuration.Observe(p.clock.Since(start).Seconds())

	if loadErr != nil {
		p.metrics.PipelineRuns.WithLabelValues("error").Inc()
		return report, loadErr
	}
	p.ready.Store(true)
	p.metrics.PipelineRuns.WithLabelValues("success").Inc()
	p.logger.Info("batch finished", "observations", len(obs), "omitted", len(omitted), "duration", p.clock.Since(start))
	return report, nil
}

func (p *Pipeline) omissions(results []fetch.Result) []analysis.Omission {
	var out []analysis.Omission
	for _, r := range results {
		if r.OK() {
			continue
		}
		o := analysis.Omission{
			City:      r.City,
			Reason:    fetch.KindOf(r.Err).String(),
			Exhausted: errors.Is(r.Err, fetch.ErrRetriesExhausted),
		}
		p.logger.Warn("city omitted from batch", "city", o.City, "reason", o.Reason, "exhausted", o.Exhausted)
		out = append(out, o)
	}
	return out
}

func (p *Pipeline) renderCharts(obs []domain.Observation) {
	if p.charts == nil {
		return
	}
	paths, err := p.charts.Render(obs)
	if err != nil {
		p.logger.Warn("render charts failed", "error", err)
		return
	}
	p.logger.Info("charts written", "files", len(paths))
}

// load hands the batch to every loader and joins their errors.
func (p *Pipeline) load(ctx context.Context, obs []domain.Observation) error {
	var errs []error
	for _, l := range p.loaders {
		if err := l.LoadBatch(ctx, obs); err != nil {
			p.metrics.SinkWriteErrors.WithLabelValues(l.name).Inc()
			p.logger.Error("load batch failed", "loader", l.name, "error", err, "batch_size", len(obs))
			errs = append(errs, fmt.Errorf("%s: %w", l.name, err))
			continue
		}
		p.metrics.RecordsStored.WithLabelValues(l.name).Add(float64(len(obs)))
		p.logger.Info("batch loaded", "loader", l.name, "batch_size", len(obs))
	}
	return errors.Join(errs...)
}

func (p *Pipeline) logReport(r analysis.Report) {
	attrs := []any{
		"observations", r.Temperature.Count,
		"temperature_mean", r.Temperature.Mean,
		"humidity_mean", r.Humidity.Mean,
		"daytime_rows", r.Daytime.Rows,
		"daytime_fell_back", r.Daytime.FellBack,
	}
	if r.Extremes != nil {
		attrs = append(attrs,
			"hottest", r.Extremes.Hottest.City,
			"coldest", r.Extremes.Coldest.City,
			"most_humid", r.Extremes.MostHumid.City,
			"windiest", r.Extremes.Windiest.City,
		)
	}
	if r.Correlation != nil {
		attrs = append(attrs, "temperature_humidity_correlation", *r.Correlation)
	}
	p.logger.Info("batch analyzed", attrs...)
}
