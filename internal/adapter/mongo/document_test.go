package mongo

import (
	"testing"
	"time"

	"github.com/couchcryptid/weather-observation-etl/internal/domain"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

var observed = time.Date(2023, time.November, 14, 22, 13, 20, 0, time.UTC)

func sampleObservation() domain.Observation {
	return domain.Observation{
		WeatherRecord: domain.WeatherRecord{
			City:        "Bogota",
			Temperature: 18.5,
			FeelsLike:   17.9,
			TempMin:     17,
			TempMax:     20,
			Humidity:    70,
			Pressure:    1012,
			Description: "cielo claro",
			WindSpeed:   2.1,
			CloudPct:    10,
			ObservedAt:  observed,
		},
		DayOfWeek:           "martes",
		TemperatureCategory: domain.CategoryMild,
		ProcessedAt:         observed.Add(time.Minute),
	}
}

func TestDocument_ObservationRoundTrip(t *testing.T) {
	want := sampleObservation()

	raw, err := bson.Marshal(fromObservation(want))
	require.NoError(t, err)

	var decoded document
	require.NoError(t, bson.Unmarshal(raw, &decoded))

	if diff := cmp.Diff(want, decoded.observation()); diff != "" {
		t.Errorf("observation mismatch (-want +got):\n%s", diff)
	}
}

func TestDocument_FieldNames(t *testing.T) {
	raw, err := bson.Marshal(fromObservation(sampleObservation()))
	require.NoError(t, err)

	var m bson.M
	require.NoError(t, bson.Unmarshal(raw, &m))

	for _, key := range []string{"city", "temperature", "humidity", "description", "wind_speed", "observed_at_utc", "temperature_category", "day_of_week"} {
		assert.Contains(t, m, key)
	}
	// Unset optional fields are omitted.
	assert.NotContains(t, m, "ingested_at_utc")
	assert.NotContains(t, m, "inserted_at")
	assert.NotContains(t, m, "note")
}

func TestDocument_MonitorRecord(t *testing.T) {
	rec := sampleObservation().WeatherRecord
	rec.IngestedAt = observed.Add(5 * time.Minute)

	raw, err := bson.Marshal(fromRecord(rec))
	require.NoError(t, err)

	var m bson.M
	require.NoError(t, bson.Unmarshal(raw, &m))
	assert.Contains(t, m, "ingested_at_utc")
	assert.NotContains(t, m, "temperature_category")

	var decoded document
	require.NoError(t, bson.Unmarshal(raw, &decoded))
	assert.Equal(t, rec, decoded.record())
}

func TestObservationDocs_StampsInsertedAt(t *testing.T) {
	at := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	docs := observationDocs([]domain.Observation{sampleObservation(), sampleObservation()}, at)
	require.Len(t, docs, 2)
	for _, d := range docs {
		doc, ok := d.(document)
		require.True(t, ok)
		require.NotNil(t, doc.InsertedAt)
		assert.Equal(t, at, *doc.InsertedAt)
	}

	plain := observationDocs([]domain.Observation{sampleObservation()}, time.Time{})
	assert.Nil(t, plain[0].(document).InsertedAt)
}

func TestHourlyPipeline(t *testing.T) {
	p := hourlyPipeline()
	require.Len(t, p, 2)
	assert.Equal(t, "$group", p[0][0].Key)
	assert.Equal(t, "$sort", p[1][0].Key)

	group, ok := p[0][0].Value.(bson.D)
	require.True(t, ok)
	keys := make([]string, len(group))
	for i, e := range group {
		keys[i] = e.Key
	}
	assert.Equal(t, []string{"_id", "avg_temperature", "avg_humidity", "avg_wind_speed", "count"}, keys)
	assert.Equal(t, bson.D{{Key: "$hour", Value: "$observed_at_utc"}}, group[0].Value)
}
