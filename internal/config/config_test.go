package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/couchcryptid/weather-observation-etl/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAPIKey = "test-key-123"

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("OPENWEATHER_API_KEY", testAPIKey)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, testAPIKey, cfg.APIKey)
	assert.Equal(t, "https://api.openweathermap.org/data/2.5/weather", cfg.BaseURL)
	assert.Equal(t, []string{"Bogota", "Medellin", "Cali", "London", "New York", "Sydney", "Cairo", "Rio de Janeiro"}, cfg.Cities)
	assert.Equal(t, domain.UnitsMetric, cfg.Units)
	assert.Equal(t, "es", cfg.Language)
	assert.Equal(t, 15*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 5*time.Second, cfg.RetryBaseDelay)
	assert.Equal(t, 1, cfg.FetchConcurrency)
	assert.Equal(t, "Bogota", cfg.MonitorCity)
	assert.Equal(t, time.Hour, cfg.MonitorDuration)
	assert.Equal(t, 5*time.Minute, cfg.MonitorInterval)
	assert.False(t, cfg.MongoEnabled())
	assert.Equal(t, "clima", cfg.MongoDatabase)
	assert.Equal(t, "weather_observations", cfg.MongoCollection)
	assert.Equal(t, "weather_observations_history", cfg.MongoHistoryCollection)
	assert.Equal(t, "weather_monitor", cfg.MongoMonitorCollection)
	assert.Equal(t, 5*time.Second, cfg.MongoTimeout)
	assert.False(t, cfg.KafkaEnabled())
	assert.Equal(t, "weather-observations", cfg.KafkaSinkTopic)
	assert.False(t, cfg.CircuitBreakerEnabled)
	assert.Equal(t, 5, cfg.CircuitBreakerFailures)
	assert.Equal(t, time.Minute, cfg.CircuitBreakerCooldown)
	assert.Empty(t, cfg.ChartDir)
	assert.Empty(t, cfg.BatchSchedule)
	assert.Equal(t, -5*time.Hour, cfg.AnalysisUTCOffset)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("OPENWEATHER_API_KEY", testAPIKey)
	t.Setenv("OPENWEATHER_BASE_URL", "http://localhost:8081/data/2.5/weather")
	t.Setenv("WEATHER_CITIES", " Lima , Quito,, Santiago ")
	t.Setenv("WEATHER_UNITS", "Imperial")
	t.Setenv("WEATHER_LANG", "en")
	t.Setenv("REQUEST_TIMEOUT", "3s")
	t.Setenv("MAX_RETRIES", "5")
	t.Setenv("RETRY_BASE_DELAY", "250ms")
	t.Setenv("FETCH_CONCURRENCY", "4")
	t.Setenv("MONITOR_CITY", "Quito")
	t.Setenv("MONITOR_DURATION", "10m")
	t.Setenv("MONITOR_INTERVAL", "30s")
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("CIRCUIT_BREAKER_ENABLED", "true")
	t.Setenv("CIRCUIT_BREAKER_FAILURES", "3")
	t.Setenv("CHART_DIR", "/tmp/charts")
	t.Setenv("BATCH_SCHEDULE", "*/30 * * * *")
	t.Setenv("ANALYSIS_UTC_OFFSET", "1h")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"Lima", "Quito", "Santiago"}, cfg.Cities)
	assert.Equal(t, domain.UnitsImperial, cfg.Units)
	assert.Equal(t, 5, cfg.MaxRetries)
	assert.Equal(t, 4, cfg.FetchConcurrency)
	assert.Equal(t, "Quito", cfg.MonitorCity)
	assert.True(t, cfg.MongoEnabled())
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.KafkaEnabled())
	assert.True(t, cfg.CircuitBreakerEnabled)
	assert.Equal(t, 3, cfg.CircuitBreakerFailures)
	assert.Equal(t, "*/30 * * * *", cfg.BatchSchedule)
	assert.Equal(t, time.Hour, cfg.AnalysisOptions().UTCOffset)
	assert.Equal(t, 8, cfg.AnalysisOptions().FromHour)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)

	fc := cfg.FetchConfig()
	assert.Equal(t, testAPIKey, fc.APIKey)
	assert.Equal(t, "http://localhost:8081/data/2.5/weather", fc.BaseURL)
	assert.Equal(t, domain.UnitsImperial, fc.Units)
	assert.Equal(t, "en", fc.Language)
	assert.Equal(t, 3*time.Second, fc.RequestTimeout)
	assert.Equal(t, 5, fc.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, fc.BaseDelay)
	assert.Equal(t, 4, fc.Concurrency)
}

func TestLoad_MissingAPIKey(t *testing.T) {
	t.Setenv("OPENWEATHER_API_KEY", "")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OPENWEATHER_API_KEY")
}

func TestLoad_InvalidValues(t *testing.T) {
	cases := []struct {
		key, value string
	}{
		{"WEATHER_UNITS", "kelvin"},
		{"REQUEST_TIMEOUT", "soon"},
		{"REQUEST_TIMEOUT", "0s"},
		{"RETRY_BASE_DELAY", "-1s"},
		{"MAX_RETRIES", "0"},
		{"MAX_RETRIES", "11"},
		{"MAX_RETRIES", "three"},
		{"FETCH_CONCURRENCY", "0"},
		{"MONITOR_INTERVAL", "2h"},
		{"CIRCUIT_BREAKER_ENABLED", "maybe"},
		{"BATCH_SCHEDULE", "every tuesday"},
		{"ANALYSIS_UTC_OFFSET", "five"},
		{"SHUTDOWN_TIMEOUT", "-1s"},
		{"WEATHER_CITIES", " , "},
		{"LOG_LEVEL", "verbose"},
		{"LOG_FORMAT", "xml"},
	}

	for _, tc := range cases {
		t.Run(tc.key+"="+tc.value, func(t *testing.T) {
			t.Setenv("OPENWEATHER_API_KEY", testAPIKey)
			t.Setenv(tc.key, tc.value)

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.key)
		})
	}
}

func TestValidateLogging(t *testing.T) {
	for _, lvl := range []string{"debug", "INFO", "warn", "warning", "error"} {
		assert.NoError(t, ValidateLogging(lvl, "json"), lvl)
	}
	assert.NoError(t, ValidateLogging("info", "Text"))
	assert.Error(t, ValidateLogging("", "json"))
	assert.Error(t, ValidateLogging("info", ""))
}

func TestLoad_DotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("OPENWEATHER_API_KEY=from-file\nWEATHER_LANG=pt\n"), 0o600))

	unset(t, "OPENWEATHER_API_KEY")
	unset(t, "WEATHER_LANG")
	t.Setenv("ENV_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.APIKey)
	assert.Equal(t, "pt", cfg.Language)
}

func TestLoad_DotEnvDoesNotOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("OPENWEATHER_API_KEY=from-file\n"), 0o600))

	t.Setenv("OPENWEATHER_API_KEY", testAPIKey)
	t.Setenv("ENV_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, testAPIKey, cfg.APIKey)
}

// unset removes key for the duration of the test; t.Setenv restores it afterwards.
func unset(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	require.NoError(t, os.Unsetenv(key))
}
