package fetch

import (
	"errors"
	"log/slog"
	"time"

	"github.com/couchcryptid/weather-observation-etl/internal/domain"
	"github.com/couchcryptid/weather-observation-etl/internal/observability"
	"github.com/sony/gobreaker"
)

// Breaker is a circuit breaker guarding the weather API. Only retryable
// failures count against it; terminal outcomes such as 404 or schema errors
// pass through without tripping it.
type Breaker struct {
	cb *gobreaker.CircuitBreaker
}

// NewBreaker trips after failures consecutive transient failures and probes
// again once cooldown has elapsed. metrics may be nil.
func NewBreaker(failures uint32, cooldown time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Breaker {
	if failures == 0 {
		failures = 1
	}
	settings := gobreaker.Settings{
		Name:        "openweather",
		MaxRequests: 1,
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
			if metrics != nil {
				metrics.CircuitBreakerState.Set(stateValue(to))
			}
		},
	}
	return &Breaker{cb: gobreaker.NewCircuitBreaker(settings)}
}

// State returns the current breaker state name.
func (b *Breaker) State() string {
	return b.cb.State().String()
}

func (b *Breaker) execute(fn func() (domain.WeatherRecord, *Error)) (domain.WeatherRecord, *Error) {
	var terminal *Error
	out, err := b.cb.Execute(func() (interface{}, error) {
		rec, ferr := fn()
		if ferr != nil && ferr.Kind.Retryable() {
			return nil, ferr
		}
		terminal = ferr
		return rec, nil
	})
	if err != nil {
		var ferr *Error
		if errors.As(err, &ferr) {
			return domain.WeatherRecord{}, ferr
		}
		// Rejected without a request: open or half-open at capacity.
		return domain.WeatherRecord{}, &Error{Kind: classifyTransport(err), Err: err}
	}
	if terminal != nil {
		return domain.WeatherRecord{}, terminal
	}
	return out.(domain.WeatherRecord), nil
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
