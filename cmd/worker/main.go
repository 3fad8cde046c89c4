package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/noah-isme/vaxcart-api/internal/app"
	"github.com/noah-isme/vaxcart-api/internal/config"
	"github.com/noah-isme/vaxcart-api/internal/obs"
	"github.com/noah-isme/vaxcart-api/internal/resilience"
	"github.com/noah-isme/vaxcart-api/internal/tracking"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("env", cfg.AppEnv).Str("component", "worker").Logger()
	obs.MustRegisterDomainMetrics("vaxcart", nil)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := app.New(ctx, cfg, logger, "worker")
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise dependencies")
	}
	defer deps.Close(context.Background())

	svcs, err := deps.Services()
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise services")
	}

	asynqLog := asynqLogger{l: logger}
	srv := asynq.NewServer(deps.RedisConnOpt, asynq.Config{
		Concurrency: cfg.Worker.Concurrency,
		Queues:      map[string]int{tracking.QueueTracking: 1},
		RetryDelayFunc: func(n int, _ error, _ *asynq.Task) time.Duration {
			return resilience.Backoff(5*time.Second, n+1, 0.2)
		},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			logger.Warn().Err(err).Str("task", task.Type()).Msg("task failed")
		}),
		Logger:          asynqLog,
		ShutdownTimeout: 20 * time.Second,
	})
	mux := asynq.NewServeMux()
	tracking.Worker{Svc: svcs.Tracking, BatchSize: int32(cfg.Worker.PollBatchSize)}.Register(mux)

	scheduler := asynq.NewScheduler(deps.RedisConnOpt, &asynq.SchedulerOpts{Location: time.UTC, Logger: asynqLog})
	entryID, err := scheduler.Register(cfg.Worker.PollInterval, tracking.NewPollOpenTask(),
		asynq.Queue(tracking.QueueTracking),
		asynq.Unique(time.Minute),
		asynq.MaxRetry(0),
	)
	if err != nil {
		logger.Fatal().Err(err).Str("spec", cfg.Worker.PollInterval).Msg("register tracking poll")
	}
	logger.Info().Str("entry", entryID).Str("spec", cfg.Worker.PollInterval).Msg("tracking poll scheduled")

	metricsSrv := &http.Server{Addr: cfg.Worker.MetricsAddr, Handler: promhttp.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics server stopped")
		}
	}()

	if err := srv.Start(mux); err != nil {
		logger.Fatal().Err(err).Msg("start task server")
	}
	if err := scheduler.Start(); err != nil {
		logger.Fatal().Err(err).Msg("start scheduler")
	}
	logger.Info().Int("concurrency", cfg.Worker.Concurrency).Msg("worker starting")

	<-ctx.Done()
	logger.Info().Msg("worker shutting down")
	scheduler.Shutdown()
	srv.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsSrv.Shutdown(shutdownCtx)
	logger.Info().Msg("worker shutdown complete")
}

// asynqLogger routes asynq's internal logs through zerolog.
type asynqLogger struct {
	l zerolog.Logger
}

func (a asynqLogger) Debug(args ...interface{}) { a.l.Debug().Msg(fmt.Sprint(args...)) }
func (a asynqLogger) Info(args ...interface{})  { a.l.Info().Msg(fmt.Sprint(args...)) }
func (a asynqLogger) Warn(args ...interface{})  { a.l.Warn().Msg(fmt.Sprint(args...)) }
func (a asynqLogger) Error(args ...interface{}) { a.l.Error().Msg(fmt.Sprint(args...)) }
func (a asynqLogger) Fatal(args ...interface{}) { a.l.Fatal().Msg(fmt.Sprint(args...)) }
