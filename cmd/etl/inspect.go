package main

import (
	"context"
	"errors"
	"log/slog"

	mongoadapter "github.com/couchcryptid/weather-observation-etl/internal/adapter/mongo"
	"github.com/couchcryptid/weather-observation-etl/internal/analysis"
	"github.com/couchcryptid/weather-observation-etl/internal/config"
)

const (
	topN              = 5
	humidityThreshold = 75
	annotation        = "Condiciones monitoreadas"
)

// inspectStore runs the post-load queries against the latest batch and the
// history collection and logs what they return. Query failures are logged
// and do not fail the run.
func inspectStore(ctx context.Context, store *mongoadapter.Store, cfg *config.Config, logger *slog.Logger) {
	log := logger.With("component", "store_inspection")

	if top, err := store.TopByTemperature(ctx, topN); err != nil {
		log.Warn("top by temperature failed", "error", err)
	} else {
		for i, o := range top {
			log.Info("hottest observation", "rank", i+1, "city", o.City, "temperature", o.Temperature)
		}
	}

	if len(cfg.Cities) > 1 {
		city := cfg.Cities[1]
		if docs, err := store.ByCity(ctx, city); err != nil {
			log.Warn("query by city failed", "city", city, "error", err)
		} else {
			log.Info("observations by city", "city", city, "count", len(docs))
		}
	}

	if humid, err := store.HumidityAbove(ctx, humidityThreshold); err != nil {
		log.Warn("humidity query failed", "error", err)
	} else {
		for _, o := range humid {
			log.Info("humid observation", "city", o.City, "humidity", o.Humidity, "threshold", humidityThreshold)
		}
	}

	city := cfg.Cities[0]
	if n, err := store.Annotate(ctx, city, annotation); err != nil {
		log.Warn("annotate failed", "city", city, "error", err)
	} else {
		log.Info("observations annotated", "city", city, "modified", n)
	}

	history, err := store.LoadHistory(ctx)
	switch {
	case errors.Is(err, mongoadapter.ErrNoData):
		log.Warn("history is empty")
		return
	case err != nil:
		log.Warn("load history failed", "error", err)
		return
	}

	opts := cfg.AnalysisOptions()
	daytime, fellBack := analysis.FilterLocalHours(history, opts.UTCOffset, opts.FromHour, opts.ToHour)
	log.Info("history loaded", "rows", len(history), "daytime_rows", len(daytime), "daytime_fell_back", fellBack)
	for _, s := range analysis.SummarizeByCity(daytime) {
		log.Info("history daytime summary",
			"city", s.City,
			"count", s.Count,
			"temperature_mean", s.TemperatureMean,
			"humidity_mean", s.HumidityMean,
			"humidity_std", s.HumidityStd,
		)
	}
}
