package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	LogFormat          string
	LogLevel           string
	DatabaseURL        string
	RedisURL           string
	CORSAllowedOrigins []string
	Currency           string

	HTTP     HTTPConfig
	Auth     AuthConfig
	Cart     CartConfig
	Catalog  CatalogConfig
	Pricing  PricingConfig
	Courier  CourierConfig
	Limits   RateLimitConfig
	Worker   WorkerConfig
	Tracing  TracingConfig
	Webhooks WebhookConfig
}

// HTTPConfig tunes the API server.
type HTTPConfig struct {
	BodyLimitBytes  int64
	HSTSMaxAge      int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	MetricsBuckets  string
}

// AuthConfig describes how bearer tokens issued by the hosted backend are verified.
type AuthConfig struct {
	JWTSecret string
	Issuer    string
	Audience  string
	Skew      time.Duration
	AdminRole string
}

type CartConfig struct {
	TTL            time.Duration
	UndoTTL        time.Duration
	LockTTL        time.Duration
	IdempotencyTTL time.Duration
}

type CatalogConfig struct {
	CacheTTL time.Duration
}

// PricingConfig mirrors pricing.Policy. Amounts are minor units; rates are basis points.
type PricingConfig struct {
	TaxBps           int
	FreeShippingOver int64
	ShippingFee      int64
	PointValue       int64
	PointsCapBps     int
}

type CourierConfig struct {
	Provider        string
	BaseURL         string
	APIKey          string
	Timeout         time.Duration
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

type RateLimitConfig struct {
	Public   string
	Checkout string
	Webhook  string
}

type WorkerConfig struct {
	Concurrency   int
	PollInterval  string
	PollBatchSize int
	MetricsAddr   string
}

type TracingConfig struct {
	Endpoint    string
	ServiceName string
	Insecure    bool
}

type WebhookConfig struct {
	Secret    string
	ReplayTTL time.Duration
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		LogFormat:          valueOrDefault(k.String("LOG_FORMAT"), "json"),
		LogLevel:           valueOrDefault(k.String("LOG_LEVEL"), "info"),
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		Currency:           strings.ToUpper(valueOrDefault(k.String("CURRENCY"), "DOP")),
		HTTP: HTTPConfig{
			BodyLimitBytes:  int64(parseInt(k.String("HTTP_BODY_LIMIT_BYTES"), 1<<20)),
			HSTSMaxAge:      parseInt(k.String("HTTP_HSTS_MAX_AGE"), 0),
			ReadTimeout:     parseDuration(k.String("HTTP_READ_TIMEOUT"), "15s"),
			WriteTimeout:    parseDuration(k.String("HTTP_WRITE_TIMEOUT"), "30s"),
			ShutdownTimeout: parseDuration(k.String("HTTP_SHUTDOWN_TIMEOUT"), "20s"),
			MetricsBuckets:  k.String("METRICS_BUCKETS_MS"),
		},
		Auth: AuthConfig{
			JWTSecret: k.String("AUTH_JWT_SECRET"),
			Issuer:    strings.TrimSpace(k.String("AUTH_JWT_ISSUER")),
			Audience:  strings.TrimSpace(k.String("AUTH_JWT_AUDIENCE")),
			Skew:      parseDuration(k.String("AUTH_JWT_SKEW"), "30s"),
			AdminRole: valueOrDefault(k.String("AUTH_ADMIN_ROLE"), "admin"),
		},
		Cart: CartConfig{
			TTL:            parseDuration(k.String("CART_TTL"), "168h"),
			UndoTTL:        parseDuration(k.String("CART_UNDO_TTL"), "30s"),
			LockTTL:        parseDuration(k.String("CART_LOCK_TTL"), "5s"),
			IdempotencyTTL: parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),
		},
		Catalog: CatalogConfig{
			CacheTTL: parseDuration(k.String("CATALOG_CACHE_TTL"), "60s"),
		},
		Pricing: PricingConfig{
			TaxBps:           parseInt(k.String("PRICING_TAX_BPS"), 1800),
			FreeShippingOver: int64(parseInt(k.String("PRICING_FREE_SHIPPING_OVER"), 10000)),
			ShippingFee:      int64(parseInt(k.String("PRICING_SHIPPING_FEE"), 1500)),
			PointValue:       int64(parseInt(k.String("PRICING_POINT_VALUE"), 1)),
			PointsCapBps:     parseInt(k.String("PRICING_POINTS_CAP_BPS"), 1000),
		},
		Courier: CourierConfig{
			Provider:        strings.ToLower(valueOrDefault(k.String("COURIER_PROVIDER"), "mock")),
			BaseURL:         strings.TrimRight(strings.TrimSpace(k.String("COURIER_BASE_URL")), "/"),
			APIKey:          k.String("COURIER_API_KEY"),
			Timeout:         parseDuration(k.String("COURIER_TIMEOUT"), "5s"),
			BreakerFailures: uint32(parseInt(k.String("COURIER_BREAKER_FAILURES"), 5)),
			BreakerTimeout:  parseDuration(k.String("COURIER_BREAKER_TIMEOUT"), "30s"),
		},
		Limits: RateLimitConfig{
			Public:   valueOrDefault(k.String("RATE_LIMIT_PUBLIC"), "120-M"),
			Checkout: valueOrDefault(k.String("RATE_LIMIT_CHECKOUT"), "10-M"),
			Webhook:  valueOrDefault(k.String("RATE_LIMIT_WEBHOOK"), "600-M"),
		},
		Worker: WorkerConfig{
			Concurrency:   parseInt(k.String("WORKER_CONCURRENCY"), 10),
			PollInterval:  valueOrDefault(k.String("TRACKING_POLL_CRON"), "@every 5m"),
			PollBatchSize: parseInt(k.String("TRACKING_POLL_BATCH"), 50),
			MetricsAddr:   valueOrDefault(k.String("WORKER_METRICS_ADDR"), ":9091"),
		},
		Tracing: TracingConfig{
			Endpoint:    strings.TrimSpace(k.String("OTEL_EXPORTER_OTLP_ENDPOINT")),
			ServiceName: valueOrDefault(k.String("OTEL_SERVICE_NAME"), "vaxcart-api"),
			Insecure:    parseBool(k.String("OTEL_EXPORTER_OTLP_INSECURE")),
		},
		Webhooks: WebhookConfig{
			Secret:    k.String("TRACKING_WEBHOOK_SECRET"),
			ReplayTTL: parseDuration(k.String("TRACKING_WEBHOOK_REPLAY_TTL"), "24h"),
		},
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("AUTH_JWT_SECRET is required")
	}
	if cfg.Courier.Provider != "mock" && cfg.Courier.BaseURL == "" {
		return nil, errors.New("COURIER_BASE_URL is required for non-mock courier providers")
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// IsProduction reports whether the service runs with production defaults.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseInt(value string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// MustLoad behaves like Load but panics on error. Useful for command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
