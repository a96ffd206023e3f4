// Package mockapi serves an OpenWeather-compatible current weather endpoint
// backed by fixture data, so the service can run without a real API key.
package mockapi

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"slices"
	"strings"
	"sync"

	"github.com/jonboulle/clockwork"
)

// WeatherPath is the route the fetcher requests by default.
const WeatherPath = "/data/2.5/weather"

//go:embed fixtures/cities.json
var defaultFixtures []byte

// Fixture is the metric reading served for one city.
type Fixture struct {
	Name          string  `json:"name"`
	ID            int     `json:"id"`
	Country       string  `json:"country"`
	Temp          float64 `json:"temp"`
	FeelsLike     float64 `json:"feels_like"`
	TempMin       float64 `json:"temp_min"`
	TempMax       float64 `json:"temp_max"`
	Humidity      int     `json:"humidity"`
	Pressure      int     `json:"pressure"`
	WindSpeed     float64 `json:"wind_speed"`
	Clouds        int     `json:"clouds"`
	DescriptionES string  `json:"description_es"`
	DescriptionEN string  `json:"description_en"`
}

// Config controls the injected failures.
type Config struct {
	// APIKey, when set, must match the appid parameter or the request gets 401.
	APIKey string
	// Failures is the number of initial requests per city answered with FailureStatus.
	Failures int
	// FailureStatus defaults to 429.
	FailureStatus int
}

// Option configures a Server.
type Option func(*Server)

// WithClock sets the clock used for the dt field.
func WithClock(c clockwork.Clock) Option {
	return func(s *Server) { s.clock = c }
}

// WithFixtures replaces the embedded fixtures.
func WithFixtures(f []Fixture) Option {
	return func(s *Server) { s.fixtures = index(f) }
}

// Server is an http.Handler mimicking the current weather endpoint.
type Server struct {
	cfg      Config
	fixtures map[string]Fixture
	clock    clockwork.Clock
	logger   *slog.Logger
	mux      *http.ServeMux

	mu   sync.Mutex
	hits map[string]int
}

// New builds a Server from the embedded fixtures.
func New(cfg Config, logger *slog.Logger, opts ...Option) (*Server, error) {
	if cfg.FailureStatus == 0 {
		cfg.FailureStatus = http.StatusTooManyRequests
	}
	if cfg.Failures < 0 {
		return nil, fmt.Errorf("failures must not be negative, got %d", cfg.Failures)
	}

	fixtures, err := ParseFixtures(defaultFixtures)
	if err != nil {
		return nil, err
	}
	s := &Server{
		cfg:      cfg,
		fixtures: index(fixtures),
		clock:    clockwork.NewRealClock(),
		logger:   logger,
		hits:     make(map[string]int),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.mux = http.NewServeMux()
	s.mux.HandleFunc("GET "+WeatherPath, s.handleWeather)
	return s, nil
}

// ParseFixtures decodes a JSON array of fixtures.
func ParseFixtures(data []byte) ([]Fixture, error) {
	var f []Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixtures: %w", err)
	}
	return f, nil
}

// Cities lists the fixture city names in alphabetical order.
func (s *Server) Cities() []string {
	out := make([]string, 0, len(s.fixtures))
	for _, f := range s.fixtures {
		out = append(out, f.Name)
	}
	slices.Sort(out)
	return out
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleWeather(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	city := strings.TrimSpace(q.Get("q"))
	log := s.logger.With("city", city)

	if s.cfg.APIKey != "" && q.Get("appid") != s.cfg.APIKey {
		log.Info("rejected request", "status", http.StatusUnauthorized)
		writeError(w, http.StatusUnauthorized, "Invalid API key. Please see https://openweathermap.org/faq#error401 for more info.")
		return
	}
	if city == "" {
		writeError(w, http.StatusBadRequest, "Nothing to geocode")
		return
	}

	if n := s.hit(city); n <= s.cfg.Failures {
		log.Info("injected failure", "status", s.cfg.FailureStatus, "request", n)
		writeError(w, s.cfg.FailureStatus, http.StatusText(s.cfg.FailureStatus))
		return
	}

	f, ok := s.fixtures[key(city)]
	if !ok {
		log.Info("unknown city", "status", http.StatusNotFound)
		writeError(w, http.StatusNotFound, "city not found")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.payload(f, q.Get("units"), q.Get("lang"))); err != nil {
		log.Error("encode payload", "error", err)
	}
}

func (s *Server) hit(city string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hits[key(city)]++
	return s.hits[key(city)]
}

type payloadMain struct {
	Temp      float64 `json:"temp"`
	FeelsLike float64 `json:"feels_like"`
	TempMin   float64 `json:"temp_min"`
	TempMax   float64 `json:"temp_max"`
	Pressure  int     `json:"pressure"`
	Humidity  int     `json:"humidity"`
}

type payloadWeather struct {
	ID          int    `json:"id"`
	Main        string `json:"main"`
	Description string `json:"description"`
}

type payload struct {
	Weather []payloadWeather `json:"weather"`
	Main    payloadMain      `json:"main"`
	Wind    struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Clouds struct {
		All int `json:"all"`
	} `json:"clouds"`
	Dt  int64 `json:"dt"`
	Sys struct {
		Country string `json:"country"`
	} `json:"sys"`
	ID   int    `json:"id"`
	Name string `json:"name"`
	Cod  int    `json:"cod"`
}

// payload renders f the way OpenWeather would for the requested units and
// language. Fixtures are metric; imperial converts temperatures to °F and
// wind to mph.
func (s *Server) payload(f Fixture, units, lang string) payload {
	temp := func(c float64) float64 { return c }
	wind := f.WindSpeed
	if units == "imperial" {
		temp = func(c float64) float64 { return round2(c*9/5 + 32) }
		wind = round2(wind * 2.23694)
	}
	desc := f.DescriptionEN
	if strings.EqualFold(lang, "es") {
		desc = f.DescriptionES
	}

	var p payload
	p.Weather = []payloadWeather{{ID: 800, Main: "Clouds", Description: desc}}
	p.Main = payloadMain{
		Temp:      temp(f.Temp),
		FeelsLike: temp(f.FeelsLike),
		TempMin:   temp(f.TempMin),
		TempMax:   temp(f.TempMax),
		Pressure:  f.Pressure,
		Humidity:  f.Humidity,
	}
	p.Wind.Speed = wind
	p.Clouds.All = f.Clouds
	p.Dt = s.clock.Now().Unix()
	p.Sys.Country = f.Country
	p.ID = f.ID
	p.Name = f.Name
	p.Cod = http.StatusOK
	return p
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"cod": fmt.Sprint(status), "message": msg})
}

func index(fixtures []Fixture) map[string]Fixture {
	m := make(map[string]Fixture, len(fixtures))
	for _, f := range fixtures {
		m[key(f.Name)] = f
	}
	return m
}

// key folds case and drops a ",CC" country suffix.
func key(city string) string {
	if i := strings.IndexByte(city, ','); i >= 0 {
		city = city[:i]
	}
	return strings.ToLower(strings.TrimSpace(city))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
