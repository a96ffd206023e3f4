package kafka

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/couchcryptid/weather-observation-etl/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs   []kafkago.Message
	calls  int
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func newTestWriter(fw *fakeWriter) *Writer {
	return &Writer{writer: fw, units: domain.UnitsMetric, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

var observed = time.Date(2023, time.November, 14, 22, 13, 20, 0, time.UTC)

func TestSerialize(t *testing.T) {
	w := newTestWriter(&fakeWriter{})
	rec := domain.WeatherRecord{City: "Bogota", Temperature: 18.5, Description: "cielo claro", ObservedAt: observed}

	msg, err := w.serialize(rec.City, rec.ObservedAt, rec)
	require.NoError(t, err)

	assert.Equal(t, []byte("Bogota"), msg.Key)
	assert.Contains(t, string(msg.Value), `"observed_at_utc":"2023-11-14T22:13:20Z"`)
	assert.NotContains(t, string(msg.Value), "ingested_at_utc")
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "units", msg.Headers[0].Key)
	assert.Equal(t, []byte("metric"), msg.Headers[0].Value)
	assert.Equal(t, "observed_at", msg.Headers[1].Key)
	assert.Equal(t, []byte("2023-11-14T22:13:20Z"), msg.Headers[1].Value)
}

func TestPublish(t *testing.T) {
	fw := &fakeWriter{}
	w := newTestWriter(fw)

	obs := []domain.Observation{
		{WeatherRecord: domain.WeatherRecord{City: "Bogota", ObservedAt: observed}, TemperatureCategory: domain.CategoryMild},
		{WeatherRecord: domain.WeatherRecord{City: "Cairo", ObservedAt: observed}, TemperatureCategory: domain.CategoryExtremeHeat},
	}
	require.NoError(t, w.Publish(context.Background(), obs))

	assert.Equal(t, 1, fw.calls)
	require.Len(t, fw.msgs, 2)
	assert.Equal(t, []byte("Cairo"), fw.msgs[1].Key)
	assert.Contains(t, string(fw.msgs[1].Value), `"temperature_category":"extreme_heat"`)
}

func TestPublish_Empty(t *testing.T) {
	fw := &fakeWriter{}
	require.NoError(t, newTestWriter(fw).Publish(context.Background(), nil))
	assert.Zero(t, fw.calls)
}

func TestAppend(t *testing.T) {
	fw := &fakeWriter{}
	w := newTestWriter(fw)

	rec := domain.WeatherRecord{City: "Bogota", ObservedAt: observed, IngestedAt: observed.Add(time.Minute)}
	require.NoError(t, w.Append(context.Background(), rec))
	require.Len(t, fw.msgs, 1)
	assert.Contains(t, string(fw.msgs[0].Value), `"ingested_at_utc":"2023-11-14T22:14:20Z"`)

	fw.err = errors.New("broker down")
	assert.ErrorIs(t, w.Append(context.Background(), rec), fw.err)

	require.NoError(t, w.Close())
	assert.True(t, fw.closed)
}
