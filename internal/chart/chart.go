// Package chart renders batch and monitor observations to PNG files.
package chart

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/couchcryptid/weather-observation-etl/internal/analysis"
	"github.com/couchcryptid/weather-observation-etl/internal/domain"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

const (
	width  = 10 * vg.Inch
	height = 6 * vg.Inch

	histogramBins = 5
)

// Renderer writes charts into a directory.
type Renderer struct {
	dir   string
	units domain.Units
}

// NewRenderer creates a Renderer writing to dir. Temperature axes are
// labelled in the scale of units.
func NewRenderer(dir string, units domain.Units) *Renderer {
	return &Renderer{dir: dir, units: units}
}

// Render draws the batch charts and returns the written paths. It writes
// nothing for an empty batch.
func (r *Renderer) Render(obs []domain.Observation) ([]string, error) {
	if len(obs) == 0 {
		return nil, nil
	}
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create chart dir: %w", err)
	}

	byCity := analysis.SummarizeByCity(obs)

	charts := []struct {
		name string
		draw func() (*plot.Plot, error)
	}{
		{"temperature_by_city.png", func() (*plot.Plot, error) { return r.temperatureBars(obs) }},
		{"temperature_vs_humidity.png", func() (*plot.Plot, error) { return r.humidityScatter(obs) }},
		{"temperature_histogram.png", func() (*plot.Plot, error) { return r.temperatureHistogram(obs) }},
		{"temperature_by_category.png", func() (*plot.Plot, error) { return r.categoryBoxes(obs) }},
		{"wind_by_city.png", func() (*plot.Plot, error) {
			return cityBars(byCity, "Average Wind Speed by City", "Wind speed ("+r.speedUnit()+")",
				func(c analysis.CityStats) float64 { return c.WindSpeedMean })
		}},
		{"pressure_by_city.png", func() (*plot.Plot, error) {
			return cityBars(byCity, "Average Pressure by City", "Pressure (hPa)",
				func(c analysis.CityStats) float64 { return c.PressureMean })
		}},
	}

	paths := make([]string, 0, len(charts))
	for _, c := range charts {
		p, err := c.draw()
		if err != nil {
			return paths, fmt.Errorf("draw %s: %w", c.name, err)
		}
		path := filepath.Join(r.dir, c.name)
		if err := p.Save(width, height, path); err != nil {
			return paths, fmt.Errorf("save %s: %w", c.name, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// RenderHourly draws the average temperature per UTC hour of a monitor run.
func (r *Renderer) RenderHourly(city string, avgs []domain.HourlyAverage) (string, error) {
	if len(avgs) == 0 {
		return "", nil
	}
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return "", fmt.Errorf("create chart dir: %w", err)
	}

	p := plot.New()
	p.Title.Text = "Average Temperature by Hour in " + city
	p.X.Label.Text = "Hour of day (UTC)"
	p.Y.Label.Text = r.temperatureLabel("Average temperature")
	p.Add(plotter.NewGrid())

	pts := make(plotter.XYs, len(avgs))
	labels := make([]string, len(avgs))
	for i, a := range avgs {
		pts[i].X = float64(a.Hour)
		pts[i].Y = a.AvgTemperature
		labels[i] = fmt.Sprintf("%.1f°%s", a.AvgTemperature, r.units.Symbol())
	}

	line, points, err := plotter.NewLinePoints(pts)
	if err != nil {
		return "", fmt.Errorf("draw hourly line: %w", err)
	}
	values, err := plotter.NewLabels(plotter.XYLabels{XYs: pts, Labels: labels})
	if err != nil {
		return "", fmt.Errorf("draw hourly labels: %w", err)
	}
	p.Add(line, points, values)

	path := filepath.Join(r.dir, "hourly_temperature_"+slug(city)+".png")
	if err := p.Save(width, height, path); err != nil {
		return "", fmt.Errorf("save hourly chart: %w", err)
	}
	return path, nil
}

func (r *Renderer) temperatureBars(obs []domain.Observation) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = r.temperatureLabel("Current Temperature by City")
	p.Y.Label.Text = r.temperatureLabel("Temperature")

	values := make(plotter.Values, len(obs))
	names := make([]string, len(obs))
	for i, o := range obs {
		values[i] = o.Temperature
		names[i] = o.City
	}

	bars, err := plotter.NewBarChart(values, vg.Points(20))
	if err != nil {
		return nil, err
	}
	p.Add(plotter.NewGrid(), bars)
	p.NominalX(names...)
	return p, nil
}

func (r *Renderer) humidityScatter(obs []domain.Observation) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = r.temperatureLabel("Temperature vs Humidity by City")
	p.X.Label.Text = "Humidity (%)"
	p.Y.Label.Text = r.temperatureLabel("Temperature")

	pts := make(plotter.XYs, len(obs))
	names := make([]string, len(obs))
	for i, o := range obs {
		pts[i].X = float64(o.Humidity)
		pts[i].Y = o.Temperature
		names[i] = o.City
	}

	scatter, err := plotter.NewScatter(pts)
	if err != nil {
		return nil, err
	}
	labels, err := plotter.NewLabels(plotter.XYLabels{XYs: pts, Labels: names})
	if err != nil {
		return nil, err
	}
	p.Add(plotter.NewGrid(), scatter, labels)
	return p, nil
}

func (r *Renderer) temperatureHistogram(obs []domain.Observation) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = r.temperatureLabel("Temperature Distribution")
	p.X.Label.Text = r.temperatureLabel("Temperature")
	p.Y.Label.Text = "Frequency"

	values := make(plotter.Values, len(obs))
	for i, o := range obs {
		values[i] = o.Temperature
	}

	hist, err := plotter.NewHist(values, histogramBins)
	if err != nil {
		return nil, err
	}
	p.Add(plotter.NewGrid(), hist)
	return p, nil
}

func (r *Renderer) categoryBoxes(obs []domain.Observation) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = r.temperatureLabel("Temperature by Category")
	p.Y.Label.Text = r.temperatureLabel("Temperature")

	grouped := make(map[domain.TemperatureCategory]plotter.Values)
	for _, o := range obs {
		grouped[o.TemperatureCategory] = append(grouped[o.TemperatureCategory], o.Temperature)
	}

	var names []string
	for _, cat := range domain.Categories {
		values := grouped[cat]
		if len(values) == 0 {
			continue
		}
		box, err := plotter.NewBoxPlot(vg.Points(30), float64(len(names)), values)
		if err != nil {
			return nil, err
		}
		p.Add(box)
		names = append(names, string(cat))
	}
	p.NominalX(names...)
	return p, nil
}

func cityBars(stats []analysis.CityStats, title, yLabel string, value func(analysis.CityStats) float64) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.Y.Label.Text = yLabel

	values := make(plotter.Values, len(stats))
	names := make([]string, len(stats))
	for i, s := range stats {
		values[i] = value(s)
		names[i] = s.City
	}

	bars, err := plotter.NewBarChart(values, vg.Points(20))
	if err != nil {
		return nil, err
	}
	p.Add(plotter.NewGrid(), bars)
	p.NominalX(names...)
	return p, nil
}

func (r *Renderer) temperatureLabel(s string) string {
	return fmt.Sprintf("%s (°%s)", s, r.units.Symbol())
}

func (r *Renderer) speedUnit() string {
	if r.units == domain.UnitsImperial {
		return "mph"
	}
	return "m/s"
}

func slug(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "_")
}
