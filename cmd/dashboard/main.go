package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kjstillabower/energy-forecast-service/internal/circuitbreaker"
	"github.com/kjstillabower/energy-forecast-service/internal/client"
	"github.com/kjstillabower/energy-forecast-service/internal/config"
	"github.com/kjstillabower/energy-forecast-service/internal/dashboard"
	httphandler "github.com/kjstillabower/energy-forecast-service/internal/http"
	"github.com/kjstillabower/energy-forecast-service/internal/lifecycle"
	"github.com/kjstillabower/energy-forecast-service/internal/observability"
	"github.com/kjstillabower/energy-forecast-service/internal/store"
	"github.com/kjstillabower/energy-forecast-service/internal/ws"
)

func main() {
	logger, err := observability.NewLogger("dashboard")
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Fatal("timezone", zap.Error(err), zap.String("timezone", cfg.Timezone))
	}

	history, err := store.NewSQLiteStore(context.Background(), cfg.HistoryDBPath, loc)
	if err != nil {
		logger.Fatal("history store", zap.Error(err), zap.String("path", cfg.HistoryDBPath))
	}

	predictionClient, err := newPredictionClient(cfg, logger)
	if err != nil {
		logger.Fatal("prediction client", zap.Error(err))
	}

	hub := ws.NewHub(logger)
	server, err := dashboard.NewServer(predictionClient, history, hub, dashboard.Options{
		Location:    loc,
		DefaultLang: cfg.DefaultLang,
		HistoryRows: cfg.HistoryRows,
	}, logger)
	if err != nil {
		logger.Fatal("dashboard", zap.Error(err))
	}

	router := mux.NewRouter()
	router.Use(httphandler.CorrelationIDMiddleware(logger))
	router.Use(httphandler.MetricsMiddleware)
	router.Handle("/metrics", observability.MetricsHandler())
	server.Register(router)

	srv := &http.Server{
		Addr:         ":" + cfg.DashboardPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: serverWriteTimeout(cfg),
	}

	lifecycle.MarkStarted(time.Now())
	observability.RegisterUptimeGauge(lifecycle.UptimeSeconds)

	go func() {
		logger.Info("dashboard starting",
			zap.String("addr", ":"+cfg.DashboardPort),
			zap.String("api_url", cfg.PredictionAPIURL),
			zap.String("history_db", cfg.HistoryDBPath),
			zap.String("timezone", cfg.Timezone))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	lifecycle.SetShuttingDown(true)
	hub.CloseAll()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	waitCtx, waitCancel := context.WithTimeout(context.Background(), cfg.ShutdownInFlightTimeout)
	defer waitCancel()
	if err := httphandler.WaitForInFlight(waitCtx, cfg.ShutdownInFlightCheckInterval); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
	}

	if err := observability.FlushTelemetry(context.Background(), logger); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

// newPredictionClient builds the retrying HTTP client, wrapped in a circuit breaker when one is configured.
func newPredictionClient(cfg *config.Config, logger *zap.Logger) (client.PredictionClient, error) {
	httpClient, err := client.NewPredictionClientWithRetry(
		cfg.PredictionAPIURL,
		cfg.APITimeout,
		cfg.RetryAttempts,
		cfg.RetryBaseDelay,
		cfg.RetryMaxDelay,
	)
	if err != nil {
		return nil, err
	}
	if cfg.BreakerFailures <= 0 {
		return httpClient, nil
	}
	logger.Info("circuit breaker enabled",
		zap.Int("failure_threshold", cfg.BreakerFailures),
		zap.Duration("cooldown", cfg.BreakerCooldown))
	return client.NewBreakerClient(httpClient, circuitbreaker.Config{
		FailureThreshold: cfg.BreakerFailures,
		SuccessThreshold: cfg.BreakerSuccesses,
		Cooldown:         cfg.BreakerCooldown,
	}, logger), nil
}

// serverWriteTimeout covers every attempt plus backoff. With no API timeout a form POST
// may wait on the service indefinitely, so the server sets none either.
func serverWriteTimeout(cfg *config.Config) time.Duration {
	if cfg.APITimeout <= 0 {
		return 0
	}
	return cfg.APITimeout*time.Duration(cfg.RetryAttempts) + cfg.RetryMaxDelay + 10*time.Second
}
