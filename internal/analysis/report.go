package analysis

import (
	"time"

	"github.com/couchcryptid/weather-observation-etl/internal/domain"
)

// Options controls the daytime window of a Report.
type Options struct {
	UTCOffset time.Duration // local time = UTC + offset
	FromHour  int
	ToHour    int
}

// DefaultOptions is the 08:00-18:00 window at UTC-5.
var DefaultOptions = Options{UTCOffset: -5 * time.Hour, FromHour: 8, ToHour: 18}

// Daytime is the per-city summary restricted to local daytime hours.
type Daytime struct {
	FromHour int         `json:"from_hour"`
	ToHour   int         `json:"to_hour"`
	Rows     int         `json:"rows"`
	FellBack bool        `json:"fell_back"` // no row in the window; all rows used
	ByCity   []CityStats `json:"by_city"`
	Extremes *Extremes   `json:"extremes,omitempty"`
}

// Omission names a city left out of a batch and why.
type Omission struct {
	City      string `json:"city"`
	Reason    string `json:"reason"`
	Exhausted bool   `json:"retries_exhausted"`
}

// Report bundles the analysis of one batch.
type Report struct {
	GeneratedAt time.Time          `json:"generated_at"`
	Units       domain.Units       `json:"units"`
	Cleaning    domain.CleanReport `json:"cleaning"`
	Temperature Description        `json:"temperature"`
	Humidity    Description        `json:"humidity"`
	Cities      []Count            `json:"cities"`
	Categories  []Count            `json:"categories"`
	ByCity      []CityStats        `json:"by_city"`
	Extremes    *Extremes          `json:"extremes,omitempty"`
	Correlation *float64           `json:"temperature_humidity_correlation,omitempty"`
	Daytime     Daytime            `json:"daytime"`
	Omitted     []Omission         `json:"omitted,omitempty"`
}

// Summarize analyzes cleaned observations.
func Summarize(obs []domain.Observation, cleaning domain.CleanReport, units domain.Units, opts Options, now time.Time) Report {
	cities := make([]string, len(obs))
	categories := make([]string, len(obs))
	for i, o := range obs {
		cities[i] = o.City
		categories[i] = string(o.TemperatureCategory)
	}

	r := Report{
		GeneratedAt: now.UTC(),
		Units:       units,
		Cleaning:    cleaning,
		Temperature: Describe(column(obs, func(o domain.Observation) float64 { return o.Temperature })),
		Humidity:    Describe(column(obs, func(o domain.Observation) float64 { return float64(o.Humidity) })),
		Cities:      ValueCounts(cities),
		Categories:  ValueCounts(categories),
		ByCity:      SummarizeByCity(obs),
	}
	if ext, ok := FindExtremes(obs); ok {
		r.Extremes = &ext
	}
	if c, ok := Correlation(obs); ok {
		r.Correlation = &c
	}

	daytime, fellBack := FilterLocalHours(obs, opts.UTCOffset, opts.FromHour, opts.ToHour)
	r.Daytime = Daytime{
		FromHour: opts.FromHour,
		ToHour:   opts.ToHour,
		Rows:     len(daytime),
		FellBack: fellBack,
		ByCity:   SummarizeByCity(daytime),
	}
	if ext, ok := FindExtremes(daytime); ok {
		r.Daytime.Extremes = &ext
	}
	return r
}
