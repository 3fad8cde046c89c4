package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func baseEnv() map[string]string {
	return map[string]string{
		"DATABASE_URL":    "postgres://localhost/vaxcart",
		"REDIS_URL":       "redis://localhost:6379/0",
		"AUTH_JWT_SECRET": "secret",
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadForTests(baseEnv())
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.HTTPAddr())
	require.Equal(t, "DOP", cfg.Currency)
	require.Equal(t, 7*24*time.Hour, cfg.Cart.TTL)
	require.Equal(t, 30*time.Second, cfg.Cart.UndoTTL)
	require.Equal(t, 1800, cfg.Pricing.TaxBps)
	require.Equal(t, int64(10000), cfg.Pricing.FreeShippingOver)
	require.Equal(t, int64(1500), cfg.Pricing.ShippingFee)
	require.Equal(t, "mock", cfg.Courier.Provider)
	require.Equal(t, "admin", cfg.Auth.AdminRole)
	require.Equal(t, int64(1<<20), cfg.HTTP.BodyLimitBytes)
	require.Equal(t, 20*time.Second, cfg.HTTP.ShutdownTimeout)
}

func TestLoadOverrides(t *testing.T) {
	env := baseEnv()
	env["PORT"] = ":9090"
	env["CART_UNDO_TTL"] = "45s"
	env["PRICING_TAX_BPS"] = "1600"
	env["CORS_ALLOWED_ORIGINS"] = "https://a.example, ,https://b.example"
	env["COURIER_PROVIDER"] = "HTTP"
	env["COURIER_BASE_URL"] = "https://courier.example/"

	cfg, err := LoadForTests(env)
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.HTTPAddr())
	require.Equal(t, 45*time.Second, cfg.Cart.UndoTTL)
	require.Equal(t, 1600, cfg.Pricing.TaxBps)
	require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
	require.Equal(t, "http", cfg.Courier.Provider)
	require.Equal(t, "https://courier.example", cfg.Courier.BaseURL)
}

func TestLoadRequiresSecrets(t *testing.T) {
	env := baseEnv()
	env["AUTH_JWT_SECRET"] = ""
	_, err := LoadForTests(env)
	require.ErrorContains(t, err, "AUTH_JWT_SECRET")

	env = baseEnv()
	env["COURIER_PROVIDER"] = "http"
	env["COURIER_BASE_URL"] = ""
	_, err = LoadForTests(env)
	require.ErrorContains(t, err, "COURIER_BASE_URL")
}

func TestInvalidValuesFallBack(t *testing.T) {
	env := baseEnv()
	env["CART_TTL"] = "soon"
	env["PRICING_SHIPPING_FEE"] = "-4"
	cfg, err := LoadForTests(env)
	require.NoError(t, err)
	require.Equal(t, 7*24*time.Hour, cfg.Cart.TTL)
	require.Equal(t, int64(1500), cfg.Pricing.ShippingFee)
}
