package tracking

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noah-isme/vaxcart-api/internal/obs"
	"github.com/noah-isme/vaxcart-api/internal/resilience"
)

var (
	// ErrProviderUnavailable wraps courier failures that are worth retrying.
	ErrProviderUnavailable = errors.New("courier provider unavailable")
	// ErrTrackingRejected marks a 4xx answer from the courier.
	ErrTrackingRejected = errors.New("courier rejected tracking request")
)

// RejectedError carries the status of a courier 4xx answer.
type RejectedError struct {
	Status int
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("%s: status %d", ErrTrackingRejected, e.Status)
}

func (e *RejectedError) Unwrap() error { return ErrTrackingRejected }

// TrackReq identifies a parcel at a courier.
type TrackReq struct {
	Courier        string
	TrackingNumber string
}

// TrackEvent is one scan reported by a courier.
type TrackEvent struct {
	Status      string    `json:"status"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	OccurredAt  time.Time `json:"occurredAt"`
}

// Provider fetches the scan history for a parcel.
type Provider interface {
	Track(ctx context.Context, req TrackReq) ([]TrackEvent, error)
}

// HTTPProviderConfig configures HTTPProvider.
type HTTPProviderConfig struct {
	BaseURL         string
	APIKey          string
	Timeout         time.Duration
	BreakerFailures uint32
	BreakerTimeout  time.Duration
	Logger          zerolog.Logger
}

// HTTPProvider talks to a courier aggregator over JSON.
type HTTPProvider struct {
	client  *resty.Client
	breaker *resilience.Breaker[[]TrackEvent]
}

type trackResponse struct {
	Events []TrackEvent `json:"events"`
}

// NewHTTPProvider builds a provider whose calls are traced and guarded by a
// circuit breaker.
func NewHTTPProvider(cfg HTTPProviderConfig) (*HTTPProvider, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("tracking: courier base url is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(timeout).
		SetRetryCount(0).
		SetTransport(otelhttp.NewTransport(http.DefaultTransport)).
		SetHeader("Accept", "application/json")
	if cfg.APIKey != "" {
		client.SetHeader("X-API-Key", cfg.APIKey)
	}
	logger := cfg.Logger
	return &HTTPProvider{
		client: client,
		breaker: resilience.NewBreaker[[]TrackEvent](resilience.BreakerConfig{
			Target:              "courier",
			ConsecutiveFailures: cfg.BreakerFailures,
			OpenFor:             cfg.BreakerTimeout,
			Ignore:              isRejected,
			Logger:              &logger,
		}),
	}, nil
}

// Track fetches and time-orders the parcel's scans.
func (p *HTTPProvider) Track(ctx context.Context, req TrackReq) ([]TrackEvent, error) {
	start := time.Now()
	events, err := p.breaker.Execute(ctx, func(ctx context.Context) ([]TrackEvent, error) {
		var out trackResponse
		resp, err := p.client.R().
			SetContext(ctx).
			SetPathParams(map[string]string{
				"courier": req.Courier,
				"number":  req.TrackingNumber,
			}).
			SetResult(&out).
			Get("/v1/tracking/{courier}/{number}")
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
		}
		if resp.StatusCode() >= http.StatusInternalServerError {
			return nil, fmt.Errorf("%w: status %d", ErrProviderUnavailable, resp.StatusCode())
		}
		if resp.IsError() {
			return nil, &RejectedError{Status: resp.StatusCode()}
		}
		return out.Events, nil
	})
	observeCourier(req.Courier, err, time.Since(start))
	if err != nil {
		if errors.Is(err, resilience.ErrOpenCircuit) {
			return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
		}
		return nil, err
	}
	sortEvents(events)
	return events, nil
}

// MockProvider reports a fixed scan history, for development.
type MockProvider struct {
	Now func() time.Time
}

// Track returns a pickup followed by an in-transit scan.
func (m MockProvider) Track(_ context.Context, req TrackReq) ([]TrackEvent, error) {
	now := time.Now().UTC()
	if m.Now != nil {
		now = m.Now()
	}
	return []TrackEvent{
		{Status: "picked_up", Description: "Parcel collected by " + req.Courier, Location: "Cold-chain depot", OccurredAt: now.Add(-2 * time.Hour)},
		{Status: "in_transit", Description: "Parcel on route", Location: "Distribution hub", OccurredAt: now.Add(-time.Hour)},
	}, nil
}

func isRejected(err error) bool {
	return errors.Is(err, ErrTrackingRejected)
}

func sortEvents(events []TrackEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].OccurredAt.Before(events[j].OccurredAt)
	})
}

func observeCourier(courier string, err error, elapsed time.Duration) {
	if obs.CourierRequestLatency == nil {
		return
	}
	result := "ok"
	switch {
	case errors.Is(err, ErrTrackingRejected):
		result = "rejected"
	case err != nil:
		result = "error"
	}
	obs.CourierRequestLatency.WithLabelValues(normaliseLabel(courier), result).Observe(float64(elapsed.Milliseconds()))
}

func normaliseLabel(value string) string {
	trimmed := strings.TrimSpace(strings.ToLower(value))
	if trimmed == "" {
		return "unknown"
	}
	return trimmed
}
