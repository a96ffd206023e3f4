package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/couchcryptid/weather-observation-etl/internal/domain"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultBaseURL        = "https://api.openweathermap.org/data/2.5/weather"
	DefaultMaxAttempts    = 3
	DefaultBaseDelay      = 5 * time.Second
	DefaultRequestTimeout = 15 * time.Second

	maxErrorBody = 512
)

// Config is the process-wide fetch configuration. It is validated once by the
// caller and never re-checked per city.
type Config struct {
	APIKey         string
	BaseURL        string
	Units          domain.Units
	Language       string
	RequestTimeout time.Duration // per attempt
	MaxAttempts    int
	BaseDelay      time.Duration // doubles after every retried attempt
	Concurrency    int           // cities fetched in parallel by FetchAll
}

// Result is the outcome of fetching one city in a batch.
type Result struct {
	City   string
	Record domain.WeatherRecord
	Err    error
}

// OK reports whether the city produced a record.
func (r Result) OK() bool { return r.Err == nil }

// Records returns the successful records of results, in order.
func Records(results []Result) []domain.WeatherRecord {
	out := make([]domain.WeatherRecord, 0, len(results))
	for _, r := range results {
		if r.OK() {
			out = append(out, r.Record)
		}
	}
	return out
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient sets the client used for API requests.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// WithClock sets the clock used for backoff sleeps and attempt timing.
func WithClock(c clockwork.Clock) Option {
	return func(f *Fetcher) { f.clock = c }
}

// WithObserver sets the receiver of fetch events.
func WithObserver(o Observer) Option {
	return func(f *Fetcher) { f.observer = o }
}

// WithCircuitBreaker routes every attempt through b.
func WithCircuitBreaker(b *Breaker) Option {
	return func(f *Fetcher) { f.breaker = b }
}

// Fetcher retrieves current weather for cities from an OpenWeather-compatible
// endpoint, retrying transient failures with exponential backoff.
type Fetcher struct {
	cfg      Config
	client   *http.Client
	clock    clockwork.Clock
	observer Observer
	breaker  *Breaker
}

// New creates a Fetcher. Zero-valued settings fall back to the package defaults.
func New(cfg Config, opts ...Option) *Fetcher {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Units == "" {
		cfg.Units = domain.UnitsMetric
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.BaseDelay < 0 {
		cfg.BaseDelay = 0
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}

	f := &Fetcher{
		cfg:      cfg,
		client:   &http.Client{},
		clock:    clockwork.NewRealClock(),
		observer: NewLogObserver(slog.Default()),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch retrieves the current weather for city. A failed fetch returns a
// *Error; errors.Is(err, ErrRetriesExhausted) tells an exhausted retry budget
// apart from a terminal failure. Cancellation of ctx returns ctx.Err() unclassified.
func (f *Fetcher) Fetch(ctx context.Context, city string) (domain.WeatherRecord, error) {
	delay := f.cfg.BaseDelay
	var (
		last        *Error
		lastElapsed time.Duration
		lastDelay   time.Duration
	)

	for attempt := 1; attempt <= f.cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return domain.WeatherRecord{}, err
		}

		f.observer.Observe(Event{Type: EventAttempt, City: city, Attempt: attempt, MaxAttempts: f.cfg.MaxAttempts})

		start := f.clock.Now()
		rec, ferr := f.attempt(ctx, city)
		elapsed := f.clock.Since(start)

		if ctx.Err() != nil {
			return domain.WeatherRecord{}, ctx.Err()
		}

		switch decide(ferr) {
		case DecisionSuccess:
			f.observer.Observe(Event{Type: EventSuccess, City: city, Attempt: attempt, MaxAttempts: f.cfg.MaxAttempts, Duration: elapsed})
			return rec, nil

		case DecisionTerminal:
			ferr.City = city
			ferr.Attempts = attempt
			f.observer.Observe(f.failureEvent(EventTerminal, ferr, elapsed, 0))
			return domain.WeatherRecord{}, ferr

		case DecisionRetry:
			ferr.City = city
			ferr.Attempts = attempt
			last, lastElapsed, lastDelay = ferr, elapsed, delay
			if attempt < f.cfg.MaxAttempts {
				f.observer.Observe(f.failureEvent(EventRetry, ferr, elapsed, delay))
			}
			// Every retryable outcome backs off, the last one included.
			if !f.sleep(ctx, delay) {
				return domain.WeatherRecord{}, ctx.Err()
			}
			delay *= 2
		}
	}

	last.Exhausted = true
	f.observer.Observe(f.failureEvent(EventExhausted, last, lastElapsed, lastDelay))
	return domain.WeatherRecord{}, last
}

// FetchAll fetches every city independently and returns one Result per city
// in input order. With Concurrency > 1 up to that many cities are in flight.
func (f *Fetcher) FetchAll(ctx context.Context, cities []string) []Result {
	results := make([]Result, len(cities))

	if f.cfg.Concurrency <= 1 {
		for i, city := range cities {
			rec, err := f.Fetch(ctx, city)
			results[i] = Result{City: city, Record: rec, Err: err}
		}
		return results
	}

	var g errgroup.Group
	g.SetLimit(f.cfg.Concurrency)
	for i, city := range cities {
		g.Go(func() error {
			rec, err := f.Fetch(ctx, city)
			results[i] = Result{City: city, Record: rec, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// attempt performs one bounded request, through the circuit breaker when set.
func (f *Fetcher) attempt(ctx context.Context, city string) (domain.WeatherRecord, *Error) {
	ctx, cancel := context.WithTimeout(ctx, f.cfg.RequestTimeout)
	defer cancel()

	if f.breaker != nil {
		return f.breaker.execute(func() (domain.WeatherRecord, *Error) {
			return f.roundTrip(ctx, city)
		})
	}
	return f.roundTrip(ctx, city)
}

func (f *Fetcher) roundTrip(ctx context.Context, city string) (domain.WeatherRecord, *Error) {
	reqURL, err := f.requestURL(city)
	if err != nil {
		return domain.WeatherRecord{}, &Error{Kind: KindUnknown, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return domain.WeatherRecord{}, &Error{Kind: KindUnknown, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return domain.WeatherRecord{}, &Error{Kind: classifyTransport(err), Err: redactKey(err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return domain.WeatherRecord{}, &Error{
			Kind:       classifyStatus(resp.StatusCode),
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("weather API error: status %d: %s", resp.StatusCode, body),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.WeatherRecord{}, &Error{Kind: classifyTransport(err), StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}

	rec, err := domain.ParseCurrentWeather(body)
	if err != nil {
		return domain.WeatherRecord{}, &Error{Kind: classifyPayload(err), StatusCode: resp.StatusCode, Err: err}
	}
	return rec, nil
}

func (f *Fetcher) requestURL(city string) (string, error) {
	u, err := url.Parse(f.cfg.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parse base URL: %w", err)
	}
	q := u.Query()
	q.Set("q", city)
	q.Set("appid", f.cfg.APIKey)
	q.Set("units", string(f.cfg.Units))
	if f.cfg.Language != "" {
		q.Set("lang", f.cfg.Language)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (f *Fetcher) failureEvent(t EventType, err *Error, elapsed, delay time.Duration) Event {
	return Event{
		Type:        t,
		City:        err.City,
		Attempt:     err.Attempts,
		MaxAttempts: f.cfg.MaxAttempts,
		Kind:        err.Kind,
		StatusCode:  err.StatusCode,
		Delay:       delay,
		Duration:    elapsed,
		Err:         err.Err,
	}
}

// sleep waits d on the fetcher clock. It returns false if ctx ends first.
func (f *Fetcher) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := f.clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}

// redactKey strips the API key from the URL carried by transport errors.
func redactKey(err error) error {
	var uerr *url.Error
	if !errors.As(err, &uerr) {
		return err
	}
	u, perr := url.Parse(uerr.URL)
	if perr != nil {
		return err
	}
	q := u.Query()
	if q.Has("appid") {
		q.Set("appid", "REDACTED")
		u.RawQuery = q.Encode()
		uerr.URL = u.String()
	}
	return err
}
