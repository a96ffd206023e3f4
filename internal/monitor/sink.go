package monitor

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/couchcryptid/weather-observation-etl/internal/domain"
)

// Sink receives monitor observations one at a time.
type Sink interface {
	Append(ctx context.Context, rec domain.WeatherRecord) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, rec domain.WeatherRecord) error

func (f SinkFunc) Append(ctx context.Context, rec domain.WeatherRecord) error { return f(ctx, rec) }

// Sinks writes each record to every sink and joins their errors.
type Sinks []Sink

func (s Sinks) Append(ctx context.Context, rec domain.WeatherRecord) error {
	var errs []error
	for _, sink := range s {
		if err := sink.Append(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Collector keeps appended records in memory.
type Collector struct {
	mu      sync.Mutex
	records []domain.WeatherRecord
}

func (c *Collector) Append(_ context.Context, rec domain.WeatherRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, rec)
	return nil
}

// Records returns a copy of the collected records in arrival order.
func (c *Collector) Records() []domain.WeatherRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.records)
}
