package app

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/noah-isme/vaxcart-api/internal/config"
	"github.com/noah-isme/vaxcart-api/internal/tracking"
)

// CourierProvider selects the tracking provider named in cfg.
func CourierProvider(cfg config.CourierConfig, logger zerolog.Logger) (tracking.Provider, error) {
	switch cfg.Provider {
	case "", "mock":
		return tracking.MockProvider{}, nil
	case "http":
		return tracking.NewHTTPProvider(tracking.HTTPProviderConfig{
			BaseURL:         cfg.BaseURL,
			APIKey:          cfg.APIKey,
			Timeout:         cfg.Timeout,
			BreakerFailures: cfg.BreakerFailures,
			BreakerTimeout:  cfg.BreakerTimeout,
			Logger:          logger.With().Str("component", "courier").Logger(),
		})
	default:
		return nil, fmt.Errorf("unknown courier provider %q", cfg.Provider)
	}
}
