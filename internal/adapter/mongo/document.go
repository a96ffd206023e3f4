package mongo

import (
	"time"

	"github.com/couchcryptid/weather-observation-etl/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
)

// document is the stored shape of an observation. Monitor documents carry
// only the record fields plus ingested_at_utc.
type document struct {
	City                string     `bson:"city"`
	Temperature         float64    `bson:"temperature"`
	FeelsLike           float64    `bson:"feels_like"`
	TempMin             float64    `bson:"temp_min"`
	TempMax             float64    `bson:"temp_max"`
	Humidity            int        `bson:"humidity"`
	Pressure            int        `bson:"pressure"`
	Description         string     `bson:"description"`
	WindSpeed           float64    `bson:"wind_speed"`
	CloudPct            int        `bson:"cloud_pct"`
	ObservedAt          time.Time  `bson:"observed_at_utc"`
	IngestedAt          *time.Time `bson:"ingested_at_utc,omitempty"`
	DayOfWeek           string     `bson:"day_of_week,omitempty"`
	TemperatureCategory string     `bson:"temperature_category,omitempty"`
	ProcessedAt         *time.Time `bson:"processed_at,omitempty"`
	InsertedAt          *time.Time `bson:"inserted_at,omitempty"`
	Note                string     `bson:"note,omitempty"`
}

func fromRecord(r domain.WeatherRecord) document {
	return document{
		City:        r.City,
		Temperature: r.Temperature,
		FeelsLike:   r.FeelsLike,
		TempMin:     r.TempMin,
		TempMax:     r.TempMax,
		Humidity:    r.Humidity,
		Pressure:    r.Pressure,
		Description: r.Description,
		WindSpeed:   r.WindSpeed,
		CloudPct:    r.CloudPct,
		ObservedAt:  r.ObservedAt.UTC(),
		IngestedAt:  timePtr(r.IngestedAt),
	}
}

func fromObservation(o domain.Observation) document {
	d := fromRecord(o.WeatherRecord)
	d.DayOfWeek = o.DayOfWeek
	d.TemperatureCategory = string(o.TemperatureCategory)
	d.ProcessedAt = timePtr(o.ProcessedAt)
	return d
}

func (d document) record() domain.WeatherRecord {
	r := domain.WeatherRecord{
		City:        d.City,
		Temperature: d.Temperature,
		FeelsLike:   d.FeelsLike,
		TempMin:     d.TempMin,
		TempMax:     d.TempMax,
		Humidity:    d.Humidity,
		Pressure:    d.Pressure,
		Description: d.Description,
		WindSpeed:   d.WindSpeed,
		CloudPct:    d.CloudPct,
		ObservedAt:  d.ObservedAt.UTC(),
	}
	if d.IngestedAt != nil {
		r.IngestedAt = d.IngestedAt.UTC()
	}
	return r
}

func (d document) observation() domain.Observation {
	o := domain.Observation{
		WeatherRecord:       d.record(),
		DayOfWeek:           d.DayOfWeek,
		TemperatureCategory: domain.TemperatureCategory(d.TemperatureCategory),
	}
	if d.ProcessedAt != nil {
		o.ProcessedAt = d.ProcessedAt.UTC()
	}
	return o
}

func observationDocs(obs []domain.Observation, insertedAt time.Time) []interface{} {
	docs := make([]interface{}, len(obs))
	for i, o := range obs {
		d := fromObservation(o)
		if !insertedAt.IsZero() {
			d.InsertedAt = timePtr(insertedAt)
		}
		docs[i] = d
	}
	return docs
}

// hourlyPipeline groups monitor documents by UTC hour of ingestion, falling
// back to the observation time.
func hourlyPipeline() mongodriver.Pipeline {
	return mongodriver.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.D{{Key: "$hour", Value: "$observed_at_utc"}}},
			{Key: "avg_temperature", Value: bson.D{{Key: "$avg", Value: "$temperature"}}},
			{Key: "avg_humidity", Value: bson.D{{Key: "$avg", Value: "$humidity"}}},
			{Key: "avg_wind_speed", Value: bson.D{{Key: "$avg", Value: "$wind_speed"}}},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
	}
}

type hourlyRow struct {
	Hour           int     `bson:"_id"`
	AvgTemperature float64 `bson:"avg_temperature"`
	AvgHumidity    float64 `bson:"avg_humidity"`
	AvgWindSpeed   float64 `bson:"avg_wind_speed"`
	Count          int     `bson:"count"`
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}
