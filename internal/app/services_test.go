package app

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/vaxcart-api/internal/config"
	"github.com/noah-isme/vaxcart-api/internal/pricing"
	"github.com/noah-isme/vaxcart-api/internal/tracking"
)

func TestPricingPolicyFromConfig(t *testing.T) {
	got := PricingPolicy(config.PricingConfig{TaxBps: 1800, FreeShippingOver: 10000, ShippingFee: 1500, PointValue: 1, PointsCapBps: 1000})
	require.Equal(t, pricing.DefaultPolicy(), got)
}

func TestCourierProviderSelection(t *testing.T) {
	p, err := CourierProvider(config.CourierConfig{Provider: "mock"}, zerolog.Nop())
	require.NoError(t, err)
	require.IsType(t, tracking.MockProvider{}, p)

	p, err = CourierProvider(config.CourierConfig{Provider: "http", BaseURL: "http://courier.local", Timeout: time.Second}, zerolog.Nop())
	require.NoError(t, err)
	require.IsType(t, &tracking.HTTPProvider{}, p)

	_, err = CourierProvider(config.CourierConfig{Provider: "http"}, zerolog.Nop())
	require.Error(t, err)

	_, err = CourierProvider(config.CourierConfig{Provider: "pigeon"}, zerolog.Nop())
	require.Error(t, err)
}
