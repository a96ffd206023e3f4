package domain

import (
	"fmt"
	"strings"
	"time"
)

// Units is the OpenWeather unit system requested for a whole run.
type Units string

const (
	UnitsMetric   Units = "metric"
	UnitsImperial Units = "imperial"
)

// ParseUnits validates a unit system name. Matching is case-insensitive.
func ParseUnits(s string) (Units, error) {
	switch Units(strings.ToLower(strings.TrimSpace(s))) {
	case UnitsMetric:
		return UnitsMetric, nil
	case UnitsImperial:
		return UnitsImperial, nil
	default:
		return "", fmt.Errorf("unknown unit system %q", s)
	}
}

// Symbol returns the temperature scale letter used in labels.
func (u Units) Symbol() string {
	if u == UnitsImperial {
		return "F"
	}
	return "C"
}

// WeatherRecord is one current-weather observation for a city. Values are
// copied out of the API payload once and never mutated afterwards.
type WeatherRecord struct {
	City        string    `json:"city"`
	Temperature float64   `json:"temperature"`
	FeelsLike   float64   `json:"feels_like"`
	TempMin     float64   `json:"temp_min"`
	TempMax     float64   `json:"temp_max"`
	Humidity    int       `json:"humidity"`
	Pressure    int       `json:"pressure"`
	Description string    `json:"description"`
	WindSpeed   float64   `json:"wind_speed"`
	CloudPct    int       `json:"cloud_pct"`
	ObservedAt  time.Time `json:"observed_at_utc"`

	// IngestedAt is only set in monitor mode.
	IngestedAt time.Time `json:"ingested_at_utc,omitzero"`
}

// Observation is a cleaned copy of a WeatherRecord with derived columns.
type Observation struct {
	WeatherRecord

	DayOfWeek           string              `json:"day_of_week"`
	TemperatureCategory TemperatureCategory `json:"temperature_category"`
	ProcessedAt         time.Time           `json:"processed_at"`
}

// HourlyAverage aggregates monitor observations sharing the same UTC hour.
type HourlyAverage struct {
	Hour           int     `json:"hour"`
	AvgTemperature float64 `json:"avg_temperature"`
	AvgHumidity    float64 `json:"avg_humidity"`
	AvgWindSpeed   float64 `json:"avg_wind_speed"`
	Count          int     `json:"count"`
}
