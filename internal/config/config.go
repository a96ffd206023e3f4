package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/couchcryptid/weather-observation-etl/internal/analysis"
	"github.com/couchcryptid/weather-observation-etl/internal/domain"
	"github.com/couchcryptid/weather-observation-etl/internal/fetch"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

const defaultCities = "Bogota,Medellin,Cali,London,New York,Sydney,Cairo,Rio de Janeiro"

// Config holds all service settings, populated from environment variables.
type Config struct {
	// OpenWeather request settings.
	APIKey           string
	BaseURL          string
	Cities           []string
	Units            domain.Units
	Language         string
	RequestTimeout   time.Duration
	MaxRetries       int
	RetryBaseDelay   time.Duration
	FetchConcurrency int

	// Monitor mode.
	MonitorCity     string
	MonitorDuration time.Duration
	MonitorInterval time.Duration

	// Document store; disabled when MongoURI is empty.
	MongoURI               string
	MongoDatabase          string
	MongoCollection        string
	MongoHistoryCollection string
	MongoMonitorCollection string
	MongoTimeout           time.Duration

	// Event stream; disabled when KafkaBrokers is empty.
	KafkaBrokers   []string
	KafkaSinkTopic string

	CircuitBreakerEnabled  bool
	CircuitBreakerFailures int
	CircuitBreakerCooldown time.Duration

	ChartDir          string
	BatchSchedule     string
	AnalysisUTCOffset time.Duration

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables, applying defaults where
// unset. Variables from a .env file (ENV_FILE, default ".env") are loaded first
// without overriding the environment.
func Load() (*Config, error) {
	if err := loadDotEnv(sharedcfg.EnvOrDefault("ENV_FILE", ".env")); err != nil {
		return nil, err
	}

	units, err := domain.ParseUnits(sharedcfg.EnvOrDefault("WEATHER_UNITS", string(domain.UnitsMetric)))
	if err != nil {
		return nil, fmt.Errorf("invalid WEATHER_UNITS: %w", err)
	}

	cfg := &Config{
		APIKey:   strings.TrimSpace(os.Getenv("OPENWEATHER_API_KEY")),
		BaseURL:  sharedcfg.EnvOrDefault("OPENWEATHER_BASE_URL", fetch.DefaultBaseURL),
		Cities:   sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("WEATHER_CITIES", defaultCities)),
		Units:    units,
		Language: sharedcfg.EnvOrDefault("WEATHER_LANG", "es"),

		MonitorCity: sharedcfg.EnvOrDefault("MONITOR_CITY", "Bogota"),

		MongoURI:               os.Getenv("MONGO_URI"),
		MongoDatabase:          sharedcfg.EnvOrDefault("MONGO_DATABASE", "clima"),
		MongoCollection:        sharedcfg.EnvOrDefault("MONGO_COLLECTION", "weather_observations"),
		MongoHistoryCollection: sharedcfg.EnvOrDefault("MONGO_HISTORY_COLLECTION", "weather_observations_history"),
		MongoMonitorCollection: sharedcfg.EnvOrDefault("MONGO_MONITOR_COLLECTION", "weather_monitor"),

		KafkaBrokers:   sharedcfg.ParseBrokers(os.Getenv("KAFKA_BROKERS")),
		KafkaSinkTopic: sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "weather-observations"),

		ChartDir:      os.Getenv("CHART_DIR"),
		BatchSchedule: strings.TrimSpace(os.Getenv("BATCH_SCHEDULE")),

		HTTPAddr:  sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:  sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat: sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
	}

	durations := []struct {
		name     string
		def      string
		dst      *time.Duration
		positive bool
	}{
		{"REQUEST_TIMEOUT", "15s", &cfg.RequestTimeout, true},
		{"RETRY_BASE_DELAY", "5s", &cfg.RetryBaseDelay, false},
		{"MONITOR_DURATION", "60m", &cfg.MonitorDuration, true},
		{"MONITOR_INTERVAL", "5m", &cfg.MonitorInterval, true},
		{"MONGO_TIMEOUT", "5s", &cfg.MongoTimeout, true},
		{"CIRCUIT_BREAKER_COOLDOWN", "60s", &cfg.CircuitBreakerCooldown, true},
	}
	for _, d := range durations {
		v, err := parseDuration(d.name, d.def, d.positive)
		if err != nil {
			return nil, err
		}
		*d.dst = v
	}

	if cfg.ShutdownTimeout, err = sharedcfg.ParseShutdownTimeout(); err != nil {
		return nil, err
	}

	// The offset may be negative, so it skips the positivity check.
	cfg.AnalysisUTCOffset, err = time.ParseDuration(sharedcfg.EnvOrDefault("ANALYSIS_UTC_OFFSET", "-5h"))
	if err != nil {
		return nil, fmt.Errorf("invalid ANALYSIS_UTC_OFFSET: %w", err)
	}

	if cfg.MaxRetries, err = parseInt("MAX_RETRIES", 3, 1, 10); err != nil {
		return nil, err
	}
	if cfg.FetchConcurrency, err = parseInt("FETCH_CONCURRENCY", 1, 1, 64); err != nil {
		return nil, err
	}
	if cfg.CircuitBreakerFailures, err = parseInt("CIRCUIT_BREAKER_FAILURES", 5, 1, 1000); err != nil {
		return nil, err
	}
	if cfg.CircuitBreakerEnabled, err = parseBool("CIRCUIT_BREAKER_ENABLED", false); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.APIKey == "" {
		return errors.New("OPENWEATHER_API_KEY is required")
	}
	if len(c.Cities) == 0 {
		return errors.New("WEATHER_CITIES must list at least one city")
	}
	if c.MonitorCity == "" {
		return errors.New("MONITOR_CITY is required")
	}
	if c.MonitorInterval > c.MonitorDuration {
		return errors.New("MONITOR_INTERVAL must not exceed MONITOR_DURATION")
	}
	if c.MongoURI != "" && c.MongoDatabase == "" {
		return errors.New("MONGO_DATABASE is required when MONGO_URI is set")
	}
	if len(c.KafkaBrokers) > 0 && c.KafkaSinkTopic == "" {
		return errors.New("KAFKA_SINK_TOPIC is required when KAFKA_BROKERS is set")
	}
	if err := ValidateLogging(c.LogLevel, c.LogFormat); err != nil {
		return err
	}
	if c.BatchSchedule != "" {
		if _, err := cron.ParseStandard(c.BatchSchedule); err != nil {
			return fmt.Errorf("invalid BATCH_SCHEDULE: %w", err)
		}
	}
	return nil
}

// FetchConfig returns the fetcher settings.
func (c *Config) FetchConfig() fetch.Config {
	return fetch.Config{
		APIKey:         c.APIKey,
		BaseURL:        c.BaseURL,
		Units:          c.Units,
		Language:       c.Language,
		RequestTimeout: c.RequestTimeout,
		MaxAttempts:    c.MaxRetries,
		BaseDelay:      c.RetryBaseDelay,
		Concurrency:    c.FetchConcurrency,
	}
}

// AnalysisOptions returns the daytime window used by batch reports.
func (c *Config) AnalysisOptions() analysis.Options {
	opts := analysis.DefaultOptions
	opts.UTCOffset = c.AnalysisUTCOffset
	return opts
}

// MongoEnabled reports whether a document store is configured.
func (c *Config) MongoEnabled() bool { return c.MongoURI != "" }

// KafkaEnabled reports whether an event stream is configured.
func (c *Config) KafkaEnabled() bool { return len(c.KafkaBrokers) > 0 }

func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// ValidateLogging rejects log settings the shared logger would silently
// replace with its defaults.
func ValidateLogging(level, format string) error {
	switch strings.ToLower(level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid LOG_LEVEL %q: must be debug, info, warn or error", level)
	}
	switch strings.ToLower(format) {
	case "json", "text":
	default:
		return fmt.Errorf("invalid LOG_FORMAT %q: must be json or text", format)
	}
	return nil
}

func parseDuration(key, def string, positive bool) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d < 0 || (positive && d == 0) {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return d, nil
}

func parseInt(key string, def, minVal, maxVal int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if n < minVal || n > maxVal {
		return 0, fmt.Errorf("invalid %s: must be between %d and %d", key, minVal, maxVal)
	}
	return n, nil
}

func parseBool(key string, def bool) (bool, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}
