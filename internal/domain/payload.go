package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrMalformedPayload is returned when the response body is not a JSON object.
var ErrMalformedPayload = errors.New("malformed weather payload")

// MissingFieldError reports a required field absent from an otherwise valid payload.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("weather payload missing required field %q", e.Field)
}

// currentWeatherPayload mirrors the subset of the OpenWeather current weather
// response we read. Pointers distinguish an absent field from a zero value.
type currentWeatherPayload struct {
	Name *string `json:"name"`
	Main *struct {
		Temp      *float64 `json:"temp"`
		FeelsLike *float64 `json:"feels_like"`
		TempMin   *float64 `json:"temp_min"`
		TempMax   *float64 `json:"temp_max"`
		Humidity  *float64 `json:"humidity"`
		Pressure  *float64 `json:"pressure"`
	} `json:"main"`
	Weather []struct {
		Description *string `json:"description"`
	} `json:"weather"`
	Wind *struct {
		Speed *float64 `json:"speed"`
	} `json:"wind"`
	Clouds *struct {
		All *float64 `json:"all"`
	} `json:"clouds"`
	Dt *int64 `json:"dt"`
}

// ParseCurrentWeather extracts a WeatherRecord from a current weather payload.
// The city name is optional. Every other payload field is required and its
// absence yields a *MissingFieldError.
func ParseCurrentWeather(body []byte) (WeatherRecord, error) {
	var p *currentWeatherPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return WeatherRecord{}, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}
	// A bare null decodes cleanly but is not an object.
	if p == nil {
		return WeatherRecord{}, fmt.Errorf("%w: body is null", ErrMalformedPayload)
	}

	if p.Main == nil {
		return WeatherRecord{}, &MissingFieldError{Field: "main"}
	}
	required := []struct {
		name  string
		value *float64
	}{
		{"main.temp", p.Main.Temp},
		{"main.feels_like", p.Main.FeelsLike},
		{"main.temp_min", p.Main.TempMin},
		{"main.temp_max", p.Main.TempMax},
		{"main.humidity", p.Main.Humidity},
		{"main.pressure", p.Main.Pressure},
	}
	for _, f := range required {
		if f.value == nil {
			return WeatherRecord{}, &MissingFieldError{Field: f.name}
		}
	}
	if len(p.Weather) == 0 || p.Weather[0].Description == nil {
		return WeatherRecord{}, &MissingFieldError{Field: "weather[0].description"}
	}
	if p.Wind == nil || p.Wind.Speed == nil {
		return WeatherRecord{}, &MissingFieldError{Field: "wind.speed"}
	}
	if p.Clouds == nil || p.Clouds.All == nil {
		return WeatherRecord{}, &MissingFieldError{Field: "clouds.all"}
	}
	if p.Dt == nil {
		return WeatherRecord{}, &MissingFieldError{Field: "dt"}
	}

	var city string
	if p.Name != nil {
		city = *p.Name
	}

	return WeatherRecord{
		City:        city,
		Temperature: *p.Main.Temp,
		FeelsLike:   *p.Main.FeelsLike,
		TempMin:     *p.Main.TempMin,
		TempMax:     *p.Main.TempMax,
		Humidity:    roundInt(*p.Main.Humidity),
		Pressure:    roundInt(*p.Main.Pressure),
		Description: *p.Weather[0].Description,
		WindSpeed:   *p.Wind.Speed,
		CloudPct:    roundInt(*p.Clouds.All),
		ObservedAt:  time.Unix(*p.Dt, 0).UTC(),
	}, nil
}

func roundInt(v float64) int {
	return int(math.Round(v))
}
