package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"genstudio/internal/infra"
	"genstudio/internal/service"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: db connection failed")
	}
	defer pool.Close()

	runner := infra.NewSQLRunner(pool, logger)

	reg := prometheus.NewRegistry()
	metrics := infra.NewMetrics(reg)

	svc, err := service.New(ctx, cfg, runner, &logger, metrics)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure generation service")
	}
	defer svc.Close()

	// the worker keeps its own registry; the API process exposes another
	if addr := cfg.WorkerMetricsAddr; addr != "" {
		srv := &http.Server{
			Addr:              addr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error().Err(err).Msg("worker: metrics server failed")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	poller := svc.Poller()
	if err := poller.Start(ctx, cfg.PollSchedule); err != nil {
		logger.Fatal().Err(err).Str("schedule", cfg.PollSchedule).Msg("worker: invalid poll schedule")
	}

	logger.Info().
		Dur("max_age", cfg.PollMaxAge).
		Int("batch_size", cfg.PollBatchSize).
		Msg("worker started")

	<-ctx.Done()
	<-poller.Stopped()
	logger.Info().Msg("worker stopped")
}
