package chart

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/couchcryptid/weather-observation-etl/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func observation(city string, temp float64, humidity int) domain.Observation {
	return domain.Observation{
		WeatherRecord: domain.WeatherRecord{
			City:        city,
			Temperature: temp,
			Humidity:    humidity,
			WindSpeed:   3.2,
			Pressure:    1012,
			Description: "nubes",
			ObservedAt:  time.Date(2024, time.March, 1, 14, 0, 0, 0, time.UTC),
		},
		TemperatureCategory: domain.Categorize(temp, domain.UnitsMetric),
	}
}

var pngMagic = []byte{0x89, 'P', 'N', 'G'}

func assertPNG(t *testing.T, path string) {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Greater(t, len(data), len(pngMagic))
	assert.Equal(t, pngMagic, data[:len(pngMagic)], path)
}

func TestRender(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "charts")
	r := NewRenderer(dir, domain.UnitsMetric)

	paths, err := r.Render([]domain.Observation{
		observation("Bogota", 14, 80),
		observation("Cairo", 31, 20),
		observation("London", 8, 90),
		observation("Sydney", 22, 55),
	})
	require.NoError(t, err)
	require.Len(t, paths, 6)

	for _, p := range paths {
		assert.Equal(t, dir, filepath.Dir(p))
		assertPNG(t, p)
	}
	assert.FileExists(t, filepath.Join(dir, "temperature_histogram.png"))
}

func TestRender_SingleObservation(t *testing.T) {
	r := NewRenderer(t.TempDir(), domain.UnitsImperial)
	paths, err := r.Render([]domain.Observation{observation("Cali", 80, 60)})
	require.NoError(t, err)
	assert.Len(t, paths, 6)
}

func TestRender_Empty(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "never")
	paths, err := NewRenderer(dir, domain.UnitsMetric).Render(nil)
	require.NoError(t, err)
	assert.Empty(t, paths)
	assert.NoDirExists(t, dir)
}

func TestRenderHourly(t *testing.T) {
	r := NewRenderer(t.TempDir(), domain.UnitsMetric)
	path, err := r.RenderHourly("New York", []domain.HourlyAverage{
		{Hour: 8, AvgTemperature: 12.5, Count: 2},
		{Hour: 9, AvgTemperature: 13.1, Count: 3},
		{Hour: 10, AvgTemperature: 15.0, Count: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, "hourly_temperature_new_york.png", filepath.Base(path))
	assertPNG(t, path)

	path, err = r.RenderHourly("Bogota", nil)
	require.NoError(t, err)
	assert.Empty(t, path)
}
