package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	httpadapter "github.com/couchcryptid/weather-observation-etl/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/weather-observation-etl/internal/adapter/kafka"
	mongoadapter "github.com/couchcryptid/weather-observation-etl/internal/adapter/mongo"
	"github.com/couchcryptid/weather-observation-etl/internal/analysis"
	"github.com/couchcryptid/weather-observation-etl/internal/chart"
	"github.com/couchcryptid/weather-observation-etl/internal/config"
	"github.com/couchcryptid/weather-observation-etl/internal/domain"
	"github.com/couchcryptid/weather-observation-etl/internal/fetch"
	"github.com/couchcryptid/weather-observation-etl/internal/monitor"
	"github.com/couchcryptid/weather-observation-etl/internal/observability"
	"github.com/couchcryptid/weather-observation-etl/internal/pipeline"
)

const (
	modeBatch         = "batch"
	modeMonitor       = "monitor"
	modeMonitorReport = "monitor-report"
)

func main() {
	mode := flag.String("mode", modeBatch, "run mode: batch, monitor, or monitor-report")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *mode, cfg, logger, metrics); err != nil {
		logger.Error("run failed", "mode", *mode, "error", err)
		stop()
		os.Exit(1)
	}
}

// app holds the collaborators shared by every mode.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *observability.Metrics
	fetcher *fetch.Fetcher
	store   *mongoadapter.Store
	writer  *kafkaadapter.Writer
}

func run(ctx context.Context, mode string, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) error {
	switch mode {
	case modeBatch, modeMonitor, modeMonitorReport:
	default:
		return fmt.Errorf("unknown mode %q", mode)
	}

	a := &app{cfg: cfg, logger: logger, metrics: metrics, fetcher: newFetcher(cfg, logger, metrics)}

	if cfg.MongoEnabled() {
		store, err := mongoadapter.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase, mongoadapter.Collections{
			Primary: cfg.MongoCollection,
			History: cfg.MongoHistoryCollection,
			Monitor: cfg.MongoMonitorCollection,
		}, cfg.MongoTimeout)
		if err != nil {
			return fmt.Errorf("connect mongo: %w", err)
		}
		a.store = store
		logger.Info("mongo enabled", "database", cfg.MongoDatabase)
	} else {
		logger.Info("mongo disabled")
	}
	if cfg.KafkaEnabled() {
		a.writer = kafkaadapter.NewWriter(cfg.KafkaBrokers, cfg.KafkaSinkTopic, cfg.Units, logger)
		logger.Info("kafka enabled", "topic", cfg.KafkaSinkTopic)
	}
	defer a.close()

	switch mode {
	case modeMonitor:
		return a.serve(ctx, a.storeReadiness(), nil, a.runMonitor)
	case modeMonitorReport:
		return a.runMonitorReport(ctx)
	default:
		p := a.newPipeline()
		return a.serve(ctx, p, p, func(ctx context.Context) error { return a.runBatch(ctx, p) })
	}
}

func newFetcher(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) *fetch.Fetcher {
	opts := []fetch.Option{
		fetch.WithObserver(fetch.Observers{fetch.NewLogObserver(logger), fetch.NewMetricsObserver(metrics)}),
	}
	if cfg.CircuitBreakerEnabled {
		opts = append(opts, fetch.WithCircuitBreaker(
			fetch.NewBreaker(uint32(cfg.CircuitBreakerFailures), cfg.CircuitBreakerCooldown, logger, metrics), //nolint:gosec // bounded by config validation
		))
		logger.Info("circuit breaker enabled", "failures", cfg.CircuitBreakerFailures, "cooldown", cfg.CircuitBreakerCooldown)
	}
	return fetch.New(cfg.FetchConfig(), opts...)
}

func (a *app) newPipeline() *pipeline.Pipeline {
	opts := []pipeline.Option{}
	if a.store != nil {
		opts = append(opts, pipeline.WithLoader("mongo", a.store))
	}
	if a.writer != nil {
		opts = append(opts, pipeline.WithLoader("kafka", pipeline.LoaderFunc(a.writer.Publish)))
	}
	if a.cfg.ChartDir != "" {
		opts = append(opts, pipeline.WithCharts(chart.NewRenderer(a.cfg.ChartDir, a.cfg.Units)))
	}
	return pipeline.New(a.fetcher, pipeline.Config{
		Cities:   a.cfg.Cities,
		Units:    a.cfg.Units,
		Language: a.cfg.Language,
		Analysis: a.cfg.AnalysisOptions(),
	}, a.logger, a.metrics, opts...)
}

// serve runs work with the HTTP server alongside and shuts the server down
// once work returns.
func (a *app) serve(ctx context.Context, ready httpadapter.ReadinessChecker, reports httpadapter.ReportSource, work func(context.Context) error) error {
	srv := httpadapter.NewServer(a.cfg.HTTPAddr, ready, reports, a.logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", "error", err)
		}
	}()

	err := work(ctx)

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if serr := srv.Shutdown(shutdownCtx); serr != nil {
		a.logger.Error("http server shutdown error", "error", serr)
	}
	return err
}

func (a *app) runBatch(ctx context.Context, p *pipeline.Pipeline) error {
	if a.cfg.BatchSchedule != "" {
		return pipeline.Schedule(ctx, a.cfg.BatchSchedule, p, a.logger)
	}

	if _, err := p.RunOnce(ctx); err != nil {
		return err
	}
	if a.store != nil {
		inspectStore(ctx, a.store, a.cfg, a.logger)
	}
	return nil
}

func (a *app) runMonitor(ctx context.Context) error {
	collector := &monitor.Collector{}
	sinks := monitor.Sinks{collector}
	if a.store != nil {
		sinks = append(sinks, a.store)
	}
	if a.writer != nil {
		sinks = append(sinks, a.writer)
	}

	m := monitor.New(a.fetcher, a.logger, a.metrics)
	summary := m.Run(ctx, a.cfg.MonitorCity, a.cfg.MonitorDuration, a.cfg.MonitorInterval, sinks)
	a.logger.Info("monitor summary",
		"city", a.cfg.MonitorCity,
		"iterations", summary.Iterations,
		"stored", summary.Stored,
		"failed", summary.Failed,
		"cancelled", summary.Cancelled,
	)

	a.reportHourly(analysis.HourlyAverages(collector.Records()))
	return nil
}

func (a *app) runMonitorReport(ctx context.Context) error {
	if a.store == nil {
		return errors.New("monitor-report mode requires MONGO_URI")
	}
	records, err := a.store.MonitorRecords(ctx)
	if err != nil {
		return fmt.Errorf("monitor records: %w", err)
	}
	if len(records) > 0 {
		a.logger.Info("monitor records loaded",
			"count", len(records),
			"first_ingested", records[0].IngestedAt,
			"last_ingested", records[len(records)-1].IngestedAt,
		)
	}

	avgs, err := a.store.HourlyAverages(ctx)
	if err != nil {
		return fmt.Errorf("hourly averages: %w", err)
	}
	if len(avgs) == 0 {
		a.logger.Warn("monitor collection is empty", "collection", a.cfg.MongoMonitorCollection)
		return nil
	}
	a.reportHourly(avgs)
	return nil
}

func (a *app) reportHourly(avgs []domain.HourlyAverage) {
	for _, h := range avgs {
		a.logger.Info("hourly average",
			"city", a.cfg.MonitorCity,
			"hour_utc", h.Hour,
			"avg_temperature", h.AvgTemperature,
			"avg_humidity", h.AvgHumidity,
			"avg_wind_speed", h.AvgWindSpeed,
			"count", h.Count,
		)
	}
	if a.cfg.ChartDir == "" || len(avgs) == 0 {
		return
	}
	path, err := chart.NewRenderer(a.cfg.ChartDir, a.cfg.Units).RenderHourly(a.cfg.MonitorCity, avgs)
	if err != nil {
		a.logger.Warn("render hourly chart failed", "error", err)
		return
	}
	a.logger.Info("hourly chart written", "path", path)
}

// storeReadiness reports ready when no store is configured, otherwise when
// the store answers a ping.
func (a *app) storeReadiness() httpadapter.ReadinessChecker {
	if a.store != nil {
		return a.store
	}
	return readinessFunc(func(context.Context) error { return nil })
}

type readinessFunc func(ctx context.Context) error

func (f readinessFunc) CheckReadiness(ctx context.Context) error { return f(ctx) }

func (a *app) close() {
	if a.writer != nil {
		if err := a.writer.Close(); err != nil {
			a.logger.Error("kafka writer close error", "error", err)
		}
	}
	if a.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
		defer cancel()
		if err := a.store.Close(ctx); err != nil {
			a.logger.Error("mongo close error", "error", err)
		}
	}
	a.logger.Info("shutdown complete")
}
