//go:build integration

package integration_test

import (
	"context"
	"testing"
	"time"

	"github.com/couchcryptid/weather-observation-etl/internal/adapter/mongo"
	"github.com/couchcryptid/weather-observation-etl/internal/analysis"
	"github.com/couchcryptid/weather-observation-etl/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var observedAt = time.Date(2023, time.November, 14, 17, 0, 0, 0, time.UTC)

func cleaned(t *testing.T, records ...domain.WeatherRecord) []domain.Observation {
	t.Helper()
	obs, _ := domain.Clean(records, domain.UnitsMetric, "es")
	require.Len(t, obs, len(records))
	return obs
}

func rec(city string, temp float64, humidity int, at time.Time) domain.WeatherRecord {
	return domain.WeatherRecord{
		City:        city,
		Temperature: temp,
		Humidity:    humidity,
		Pressure:    1010,
		Description: "nubes dispersas",
		WindSpeed:   3.5,
		ObservedAt:  at,
	}
}

func connectStore(ctx context.Context, t *testing.T, uri string, cols mongo.Collections) *mongo.Store {
	t.Helper()
	store, err := mongo.Connect(ctx, uri, "clima_test", cols, 10*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close(context.Background()) })
	require.NoError(t, store.CheckReadiness(ctx))
	return store
}

func TestMongoStore(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	uri := startMongo(ctx, t)

	t.Run("batch load replaces primary and appends history", func(t *testing.T) {
		store := connectStore(ctx, t, uri, mongo.Collections{Primary: "batch", History: "batch_history", Monitor: "batch_monitor"})

		first := cleaned(t, rec("Bogota", 14.2, 77, observedAt), rec("Cairo", 33.9, 18, observedAt))
		second := cleaned(t,
			rec("Bogota", 15.0, 80, observedAt.Add(time.Hour)),
			rec("Medellin", 22.8, 68, observedAt.Add(time.Hour)),
			rec("Cali", 27.3, 61, observedAt.Add(time.Hour)),
		)
		require.NoError(t, store.LoadBatch(ctx, first))
		require.NoError(t, store.LoadBatch(ctx, second))

		top, err := store.TopByTemperature(ctx, 2)
		require.NoError(t, err)
		require.Len(t, top, 2)
		assert.Equal(t, "Cali", top[0].City)
		assert.Equal(t, "Medellin", top[1].City)
		assert.Equal(t, domain.CategoryWarm, top[0].TemperatureCategory)
		assert.Equal(t, "martes", top[0].DayOfWeek)

		bogota, err := store.ByCity(ctx, "Bogota")
		require.NoError(t, err)
		require.Len(t, bogota, 1)
		assert.InDelta(t, 15.0, bogota[0].Temperature, 1e-9)
		assert.True(t, bogota[0].ObservedAt.Equal(observedAt.Add(time.Hour)))

		humid, err := store.HumidityAbove(ctx, 75)
		require.NoError(t, err)
		require.Len(t, humid, 1)
		assert.Equal(t, "Bogota", humid[0].City)

		n, err := store.Annotate(ctx, "Bogota", "Condiciones monitoreadas")
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		history, err := store.LoadHistory(ctx)
		require.NoError(t, err)
		require.Len(t, history, 5)
		assert.True(t, history[0].ObservedAt.Equal(observedAt), "history is ordered by observation time")

		stats := analysis.SummarizeByCity(history)
		require.Len(t, stats, 4)
		assert.Equal(t, "Bogota", stats[0].City)
		assert.Equal(t, 2, stats[0].Count)
	})

	t.Run("empty batch clears primary", func(t *testing.T) {
		store := connectStore(ctx, t, uri, mongo.Collections{Primary: "clear", History: "clear_history", Monitor: "clear_monitor"})

		require.NoError(t, store.LoadBatch(ctx, cleaned(t, rec("Cali", 27.3, 61, observedAt))))
		n, err := store.ReplaceAll(ctx, nil)
		require.NoError(t, err)
		assert.Zero(t, n)

		top, err := store.TopByTemperature(ctx, 5)
		require.NoError(t, err)
		assert.Empty(t, top)
	})

	t.Run("history seeds from primary", func(t *testing.T) {
		store := connectStore(ctx, t, uri, mongo.Collections{Primary: "seed", History: "seed_history", Monitor: "seed_monitor"})

		_, err := store.LoadHistory(ctx)
		require.ErrorIs(t, err, mongo.ErrNoData)

		n, err := store.ReplaceAll(ctx, cleaned(t, rec("Sydney", 21.5, 64, observedAt), rec("London", 9.4, 86, observedAt)))
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		history, err := store.LoadHistory(ctx)
		require.NoError(t, err)
		assert.Len(t, history, 2)

		// Seeding happens once.
		history, err = store.LoadHistory(ctx)
		require.NoError(t, err)
		assert.Len(t, history, 2)
	})

	t.Run("monitor hourly averages", func(t *testing.T) {
		store := connectStore(ctx, t, uri, mongo.Collections{Primary: "mon", History: "mon_history", Monitor: "mon_monitor"})

		observed := time.Date(2023, time.November, 14, 9, 55, 0, 0, time.UTC)
		ingest := observed.Add(10 * time.Minute)
		for i, temp := range []float64{14, 16, 18} {
			r := rec("Bogota", temp, 70+i, observed.Add(time.Duration(i)*5*time.Minute))
			r.IngestedAt = ingest.Add(time.Duration(i) * 5 * time.Minute)
			require.NoError(t, store.Append(ctx, r))
		}

		records, err := store.MonitorRecords(ctx)
		require.NoError(t, err)
		require.Len(t, records, 3)
		assert.True(t, records[0].IngestedAt.Equal(ingest))

		avgs, err := store.HourlyAverages(ctx)
		require.NoError(t, err)
		assert.Equal(t, analysis.HourlyAverages(records), avgs)
		require.Len(t, avgs, 2)
		assert.Equal(t, domain.HourlyAverage{Hour: 9, AvgTemperature: 14, AvgHumidity: 70, AvgWindSpeed: 3.5, Count: 1}, avgs[0])
		assert.Equal(t, domain.HourlyAverage{Hour: 10, AvgTemperature: 17, AvgHumidity: 71.5, AvgWindSpeed: 3.5, Count: 2}, avgs[1])
	})
}
