package pipeline

import (
	"github.com/couchcryptid/weather-observation-etl/internal/domain"
)

// transform cleans fetched records into observations and records what was dropped.
func (p *Pipeline) transform(records []domain.WeatherRecord) ([]domain.Observation, domain.CleanReport) {
	obs, report := domain.Clean(records, p.cfg.Units, p.cfg.Language)

	if report.DroppedInvalid > 0 {
		p.metrics.RecordsDropped.WithLabelValues("invalid").Add(float64(report.DroppedInvalid))
	}
	if report.DroppedDuplicates > 0 {
		p.metrics.RecordsDropped.WithLabelValues("duplicate").Add(float64(report.DroppedDuplicates))
	}
	p.logger.Info("records cleaned",
		"input", report.Input,
		"dropped_invalid", report.DroppedInvalid,
		"dropped_duplicates", report.DroppedDuplicates,
		"output", report.Output,
	)
	return obs, report
}
