package domain

import (
	"math"
	"strings"
	"time"
)

// TemperatureCategory buckets a temperature into a coarse comfort label.
type TemperatureCategory string

const (
	CategoryExtremeCold TemperatureCategory = "extreme_cold"
	CategoryCold        TemperatureCategory = "cold"
	CategoryMild        TemperatureCategory = "mild"
	CategoryWarm        TemperatureCategory = "warm"
	CategoryExtremeHeat TemperatureCategory = "extreme_heat"
)

// Categories lists every category from coldest to hottest.
var Categories = []TemperatureCategory{
	CategoryExtremeCold,
	CategoryCold,
	CategoryMild,
	CategoryWarm,
	CategoryExtremeHeat,
}

// celsiusBounds are the upper (exclusive) limits of the first four categories.
var celsiusBounds = [4]float64{10, 18, 25, 30}

// Categorize classifies temp, which must be expressed in units.
//
//	°C: <10 extreme cold | <18 cold | <25 mild | <30 warm | else extreme heat
//
// Imperial runs use the same boundaries converted to °F (50, 64.4, 77, 86).
func Categorize(temp float64, units Units) TemperatureCategory {
	for i, bound := range celsiusBounds {
		if units == UnitsImperial {
			bound = bound*9/5 + 32
		}
		if temp < bound {
			return Categories[i]
		}
	}
	return CategoryExtremeHeat
}

var spanishWeekdays = [7]string{"domingo", "lunes", "martes", "miércoles", "jueves", "viernes", "sábado"}

// DayName returns the weekday of t in the requested language. Only Spanish is
// localized; any other language falls back to English names.
func DayName(t time.Time, lang string) string {
	if strings.HasPrefix(strings.ToLower(lang), "es") {
		return spanishWeekdays[t.Weekday()]
	}
	return t.Weekday().String()
}

// CleanReport summarizes what Clean removed.
type CleanReport struct {
	Input             int `json:"input"`
	DroppedInvalid    int `json:"dropped_invalid"`
	DroppedDuplicates int `json:"dropped_duplicates"`
	Output            int `json:"output"`
}

// Clean drops records unusable for analysis, derives the day of week and
// temperature category on copies, and removes exact duplicates. A record is
// unusable when its city or description is blank or its temperature is not a
// finite number. Input order is preserved.
func Clean(records []WeatherRecord, units Units, lang string) ([]Observation, CleanReport) {
	report := CleanReport{Input: len(records)}
	out := make([]Observation, 0, len(records))
	seen := make(map[WeatherRecord]struct{}, len(records))
	now := clock.Now().UTC()

	for _, rec := range records {
		if strings.TrimSpace(rec.City) == "" || strings.TrimSpace(rec.Description) == "" ||
			math.IsNaN(rec.Temperature) || math.IsInf(rec.Temperature, 0) {
			report.DroppedInvalid++
			continue
		}
		if _, dup := seen[rec]; dup {
			report.DroppedDuplicates++
			continue
		}
		seen[rec] = struct{}{}

		out = append(out, Observation{
			WeatherRecord:       rec,
			DayOfWeek:           DayName(rec.ObservedAt, lang),
			TemperatureCategory: Categorize(rec.Temperature, units),
			ProcessedAt:         now,
		})
	}

	report.Output = len(out)
	return out, report
}
