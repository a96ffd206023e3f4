// Command mockapi serves an OpenWeather-compatible current weather endpoint
// from fixture data, so the ETL can run locally without a real API key.
//
// Usage:
//
//	go run ./cmd/mockapi -addr :8081 -failures 1 -failure-status 503
//	OPENWEATHER_BASE_URL=http://localhost:8081/data/2.5/weather OPENWEATHER_API_KEY=dev go run ./cmd/etl
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/couchcryptid/weather-observation-etl/internal/config"
	"github.com/couchcryptid/weather-observation-etl/internal/mockapi"
)

func main() {
	if err := run(); err != nil {
		slog.Error("mockapi failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", ":8081", "listen address")
	apiKey := flag.String("api-key", "", "reject requests whose appid differs (empty accepts any)")
	failures := flag.Int("failures", 0, "initial failing responses per city")
	failureStatus := flag.Int("failure-status", http.StatusTooManyRequests, "status of injected failures (429 or 503)")
	logLevel := flag.String("log-level", "info", "debug, info, warn or error")
	logFormat := flag.String("log-format", "text", "json or text")
	flag.Parse()

	if err := config.ValidateLogging(*logLevel, *logFormat); err != nil {
		return err
	}
	logger := sharedobs.NewLogger(*logLevel, *logFormat)

	if *failureStatus != http.StatusTooManyRequests && *failureStatus != http.StatusServiceUnavailable {
		return errors.New("-failure-status must be 429 or 503")
	}

	handler, err := mockapi.New(mockapi.Config{
		APIKey:        *apiKey,
		Failures:      *failures,
		FailureStatus: *failureStatus,
	}, logger)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		logger.Info("mock weather API listening", "addr", *addr, "path", mockapi.WeatherPath, "cities", handler.Cities())
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}
