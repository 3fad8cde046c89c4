package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	limiter "github.com/ulule/limiter/v3"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/noah-isme/vaxcart-api/internal/config"
	dbgen "github.com/noah-isme/vaxcart-api/internal/db/gen"
	"github.com/noah-isme/vaxcart-api/internal/health"
	"github.com/noah-isme/vaxcart-api/internal/obs"
)

// Dependencies holds the infrastructure clients shared by the API and the worker.
type Dependencies struct {
	Config       *config.Config
	Logger       zerolog.Logger
	DB           *pgxpool.Pool
	Queries      *dbgen.Queries
	Redis        *redis.Client
	RedisConnOpt asynq.RedisConnOpt
	TaskClient   *asynq.Client
	LimiterStore limiter.Store

	shutdownTracer func(context.Context) error
}

// New connects to Postgres and Redis, installs tracing and builds the task
// client. appName tags connections and spans.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger, appName string) (*Dependencies, error) {
	d := &Dependencies{Config: cfg, Logger: logger}

	shutdown, err := obs.InitTracer(ctx, obs.TracingConfig{
		ServiceName:   cfg.Tracing.ServiceName + "-" + appName,
		Endpoint:      cfg.Tracing.Endpoint,
		Insecure:      cfg.Tracing.Insecure,
		SamplingRatio: 1.0,
		Environment:   cfg.AppEnv,
	})
	if err != nil {
		logger.Error().Err(err).Msg("initialise tracing")
		shutdown = func(context.Context) error { return nil }
	}
	d.shutdownTracer = shutdown

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := newPool(connectCtx, cfg.DatabaseURL, appName)
	if err != nil {
		d.Close(ctx)
		return nil, err
	}
	d.DB = pool
	d.Queries = dbgen.New(pool)

	rdb, err := newRedis(connectCtx, cfg.RedisURL, logger)
	if err != nil {
		d.Close(ctx)
		return nil, err
	}
	d.Redis = rdb

	connOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		d.Close(ctx)
		return nil, fmt.Errorf("parse redis url for tasks: %w", err)
	}
	d.RedisConnOpt = connOpt
	d.TaskClient = asynq.NewClient(connOpt)

	store, err := limiterredis.NewStoreWithOptions(rdb, limiter.StoreOptions{Prefix: "ratelimit"})
	if err != nil {
		d.Close(ctx)
		return nil, fmt.Errorf("init rate limit store: %w", err)
	}
	d.LimiterStore = store
	return d, nil
}

// HealthClients returns the readiness checker for the shared clients.
func (d *Dependencies) HealthClients() health.Clients {
	return health.Clients{DB: d.DB, Redis: d.Redis}
}

// Close releases every client that was opened. It is safe on a partially built value.
func (d *Dependencies) Close(ctx context.Context) {
	if d.TaskClient != nil {
		if err := d.TaskClient.Close(); err != nil {
			d.Logger.Error().Err(err).Msg("close task client")
		}
	}
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			d.Logger.Error().Err(err).Msg("close redis")
		}
	}
	if d.DB != nil {
		d.DB.Close()
	}
	if d.shutdownTracer != nil {
		if err := d.shutdownTracer(ctx); err != nil {
			d.Logger.Error().Err(err).Msg("shutdown tracer")
		}
	}
}

func newPool(ctx context.Context, databaseURL, appName string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = "vaxcart-" + appName

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

func newRedis(ctx context.Context, redisURL string, logger zerolog.Logger) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if err := redisotel.InstrumentMetrics(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis metrics")
	}
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errors.Join(fmt.Errorf("ping redis: %w", err), client.Close())
	}
	return client, nil
}
