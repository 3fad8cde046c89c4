package resilience

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/vaxcart-api/internal/obs"
)

// ErrOpenCircuit is returned when the circuit breaker refuses a request.
var ErrOpenCircuit = errors.New("resilience: circuit breaker open")

// BreakerConfig tunes a Breaker.
type BreakerConfig struct {
	// Target labels metrics and logs, e.g. the courier name.
	Target string
	// ConsecutiveFailures trips the breaker. Defaults to 5.
	ConsecutiveFailures uint32
	// OpenFor is the cool-off before a half-open trial request. Defaults to 30s.
	OpenFor time.Duration
	// HalfOpenRequests is the number of requests admitted while half-open.
	HalfOpenRequests uint32
	// Ignore reports errors that reach the caller without counting as failures.
	Ignore func(error) bool
	Logger *zerolog.Logger
}

// Breaker guards calls to a downstream dependency returning T.
type Breaker[T any] struct {
	cb     *gobreaker.CircuitBreaker[T]
	target string
}

// NewBreaker builds a breaker that trips after consecutive failures and
// publishes its state to the breaker metrics.
func NewBreaker[T any](cfg BreakerConfig) *Breaker[T] {
	target := strings.TrimSpace(cfg.Target)
	if target == "" {
		target = "default"
	}
	failures := cfg.ConsecutiveFailures
	if failures == 0 {
		failures = 5
	}
	openFor := cfg.OpenFor
	if openFor <= 0 {
		openFor = 30 * time.Second
	}
	trial := cfg.HalfOpenRequests
	if trial == 0 {
		trial = 1
	}
	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	b := &Breaker[T]{target: target}
	b.cb = gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:        target,
		MaxRequests: trial,
		Timeout:     openFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			// Caller cancellations say nothing about the dependency.
			if err == nil || errors.Is(err, context.Canceled) {
				return true
			}
			if cfg.Ignore != nil && cfg.Ignore(err) {
				obs.Inc(obs.BreakerIgnoredTotal, target)
				return true
			}
			return false
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			recordTransition(name, from, to)
			logger.Info().Str("target", name).Str("from_state", from.String()).Str("to_state", to.String()).Msg("breaker_transition")
		},
	})
	recordState(target, gobreaker.StateClosed)
	return b
}

// Execute runs fn unless the breaker is open.
func (b *Breaker[T]) Execute(ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	out, err := b.cb.Execute(func() (T, error) {
		return fn(ctx)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		var zero T
		if traceID := traceIDFromContext(ctx); traceID != "" {
			zerolog.Ctx(ctx).Debug().Str("target", b.target).Str("trace_id", traceID).Msg("breaker rejected call")
		}
		return zero, ErrOpenCircuit
	}
	return out, err
}

// State reports the breaker state as closed, open or half_open.
func (b *Breaker[T]) State() string {
	return stateLabel(b.cb.State())
}

// Backoff returns an exponential backoff duration for the provided attempt.
// Jitter is expressed as a fraction (e.g. 0.2 == 20%).
func Backoff(base time.Duration, attempt int, jitterPct float64) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	d := base * time.Duration(1<<uint(attempt-1))
	if jitterPct <= 0 {
		return d
	}
	jitter := float64(d) * jitterPct
	delta := (rand.Float64()*2 - 1) * jitter
	return d + time.Duration(delta)
}

func recordState(target string, state gobreaker.State) {
	obs.SetGauge(obs.BreakerState, stateGaugeValue(state), target)
}

func recordTransition(target string, from, to gobreaker.State) {
	recordState(target, to)
	obs.Inc(obs.BreakerTransitionsTotal, target, stateLabel(from), stateLabel(to))
	if to == gobreaker.StateOpen {
		obs.Inc(obs.BreakerOpenedTotal, target)
	}
}

func stateLabel(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateOpen:
		return "open"
	case gobreaker.StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

func stateGaugeValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateOpen:
		return 1
	case gobreaker.StateHalfOpen:
		return 2
	default:
		return -1
	}
}

func traceIDFromContext(ctx context.Context) string {
	span := trace.SpanContextFromContext(ctx)
	if span.IsValid() {
		return span.TraceID().String()
	}
	return ""
}
