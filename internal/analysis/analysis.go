// Package analysis computes descriptive statistics over cleaned weather
// observations: per-city summaries, extremes, correlation and hourly averages.
package analysis

import (
	"cmp"
	"math"
	"slices"
	"time"

	"github.com/couchcryptid/weather-observation-etl/internal/domain"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Description is the count, mean, spread and quartiles of a numeric column.
type Description struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Std    float64 `json:"std"`
	Min    float64 `json:"min"`
	Q1     float64 `json:"q1"`
	Median float64 `json:"median"`
	Q3     float64 `json:"q3"`
	Max    float64 `json:"max"`
}

// Describe summarizes values. Std is the sample standard deviation and is 0
// for fewer than two values.
func Describe(values []float64) Description {
	if len(values) == 0 {
		return Description{}
	}

	sorted := slices.Clone(values)
	slices.Sort(sorted)

	d := Description{
		Count:  len(sorted),
		Mean:   stat.Mean(sorted, nil),
		Min:    sorted[0],
		Q1:     stat.Quantile(0.25, stat.LinInterp, sorted, nil),
		Median: stat.Quantile(0.5, stat.LinInterp, sorted, nil),
		Q3:     stat.Quantile(0.75, stat.LinInterp, sorted, nil),
		Max:    sorted[len(sorted)-1],
	}
	if len(sorted) > 1 {
		d.Std = stat.StdDev(sorted, nil)
	}
	return d
}

// Count is the number of occurrences of a value.
type Count struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// ValueCounts counts each distinct key, most frequent first. Ties keep the
// order of first appearance.
func ValueCounts(keys []string) []Count {
	index := make(map[string]int)
	var counts []Count
	for _, k := range keys {
		if i, ok := index[k]; ok {
			counts[i].Count++
			continue
		}
		index[k] = len(counts)
		counts = append(counts, Count{Value: k, Count: 1})
	}
	slices.SortStableFunc(counts, func(a, b Count) int {
		return cmp.Compare(b.Count, a.Count)
	})
	return counts
}

// CityStats aggregates the observations of one city. Values are rounded to
// two decimals.
type CityStats struct {
	City            string  `json:"city"`
	Count           int     `json:"count"`
	TemperatureMean float64 `json:"temperature_mean"`
	TemperatureMin  float64 `json:"temperature_min"`
	TemperatureMax  float64 `json:"temperature_max"`
	HumidityMean    float64 `json:"humidity_mean"`
	HumidityMin     float64 `json:"humidity_min"`
	HumidityMax     float64 `json:"humidity_max"`
	HumidityStd     float64 `json:"humidity_std"`
	WindSpeedMean   float64 `json:"wind_speed_mean"`
	PressureMean    float64 `json:"pressure_mean"`
}

// SummarizeByCity groups observations by city, sorted by city name.
func SummarizeByCity(obs []domain.Observation) []CityStats {
	groups := make(map[string][]domain.Observation)
	for _, o := range obs {
		groups[o.City] = append(groups[o.City], o)
	}

	out := make([]CityStats, 0, len(groups))
	for city, rows := range groups {
		temps := column(rows, func(o domain.Observation) float64 { return o.Temperature })
		hums := column(rows, func(o domain.Observation) float64 { return float64(o.Humidity) })
		winds := column(rows, func(o domain.Observation) float64 { return o.WindSpeed })
		press := column(rows, func(o domain.Observation) float64 { return float64(o.Pressure) })

		cs := CityStats{
			City:            city,
			Count:           len(rows),
			TemperatureMean: round2(stat.Mean(temps, nil)),
			TemperatureMin:  round2(floats.Min(temps)),
			TemperatureMax:  round2(floats.Max(temps)),
			HumidityMean:    round2(stat.Mean(hums, nil)),
			HumidityMin:     round2(floats.Min(hums)),
			HumidityMax:     round2(floats.Max(hums)),
			WindSpeedMean:   round2(stat.Mean(winds, nil)),
			PressureMean:    round2(stat.Mean(press, nil)),
		}
		if len(rows) > 1 {
			cs.HumidityStd = round2(stat.StdDev(hums, nil))
		}
		out = append(out, cs)
	}

	slices.SortFunc(out, func(a, b CityStats) int { return cmp.Compare(a.City, b.City) })
	return out
}

// Extreme names the city holding an extreme value.
type Extreme struct {
	City        string  `json:"city"`
	Value       float64 `json:"value"`
	Temperature float64 `json:"temperature"`
	Humidity    int     `json:"humidity"`
}

// Extremes collects the cities at the edges of each measured column.
type Extremes struct {
	Hottest         Extreme `json:"hottest"`
	Coldest         Extreme `json:"coldest"`
	MostHumid       Extreme `json:"most_humid"`
	LeastHumid      Extreme `json:"least_humid"`
	Windiest        Extreme `json:"windiest"`
	HighestPressure Extreme `json:"highest_pressure"`
}

// FindExtremes returns the extremes of obs and false when obs is empty. The
// first occurrence wins ties.
func FindExtremes(obs []domain.Observation) (Extremes, bool) {
	if len(obs) == 0 {
		return Extremes{}, false
	}

	temp := func(o domain.Observation) float64 { return o.Temperature }
	hum := func(o domain.Observation) float64 { return float64(o.Humidity) }
	wind := func(o domain.Observation) float64 { return o.WindSpeed }
	press := func(o domain.Observation) float64 { return float64(o.Pressure) }

	return Extremes{
		Hottest:         extreme(obs, temp, 1),
		Coldest:         extreme(obs, temp, -1),
		MostHumid:       extreme(obs, hum, 1),
		LeastHumid:      extreme(obs, hum, -1),
		Windiest:        extreme(obs, wind, 1),
		HighestPressure: extreme(obs, press, 1),
	}, true
}

// extreme picks the row maximizing sign*value(row).
func extreme(obs []domain.Observation, value func(domain.Observation) float64, sign float64) Extreme {
	best := 0
	for i := 1; i < len(obs); i++ {
		if sign*value(obs[i]) > sign*value(obs[best]) {
			best = i
		}
	}
	o := obs[best]
	return Extreme{City: o.City, Value: value(o), Temperature: o.Temperature, Humidity: o.Humidity}
}

// Correlation is the Pearson correlation of temperature and humidity rounded
// to two decimals. It reports false when fewer than two rows exist or either
// column is constant.
func Correlation(obs []domain.Observation) (float64, bool) {
	if len(obs) < 2 {
		return 0, false
	}
	temps := column(obs, func(o domain.Observation) float64 { return o.Temperature })
	hums := column(obs, func(o domain.Observation) float64 { return float64(o.Humidity) })

	r := stat.Correlation(temps, hums, nil)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0, false
	}
	return round2(r), true
}

// FilterLocalHours keeps observations whose local hour, obtained by shifting
// the UTC observation time by offset, lies in [from, to]. When no row matches
// it returns every row and true.
func FilterLocalHours(obs []domain.Observation, offset time.Duration, from, to int) ([]domain.Observation, bool) {
	var out []domain.Observation
	for _, o := range obs {
		h := o.ObservedAt.UTC().Add(offset).Hour()
		if h >= from && h <= to {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		return obs, true
	}
	return out, false
}

// HourlyAverages groups records by the UTC hour of their observation time,
// ordered by hour.
func HourlyAverages(records []domain.WeatherRecord) []domain.HourlyAverage {
	type acc struct {
		temp, hum, wind float64
		n               int
	}
	var buckets [24]acc
	for _, r := range records {
		b := &buckets[r.ObservedAt.UTC().Hour()]
		b.temp += r.Temperature
		b.hum += float64(r.Humidity)
		b.wind += r.WindSpeed
		b.n++
	}

	var out []domain.HourlyAverage
	for hour, b := range buckets {
		if b.n == 0 {
			continue
		}
		n := float64(b.n)
		out = append(out, domain.HourlyAverage{
			Hour:           hour,
			AvgTemperature: round2(b.temp / n),
			AvgHumidity:    round2(b.hum / n),
			AvgWindSpeed:   round2(b.wind / n),
			Count:          b.n,
		})
	}
	return out
}

func column(obs []domain.Observation, value func(domain.Observation) float64) []float64 {
	out := make([]float64, len(obs))
	for i, o := range obs {
		out[i] = value(o)
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
