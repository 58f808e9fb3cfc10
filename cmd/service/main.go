package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/climate-api/internal/config"
	"github.com/kjstillabower/climate-api/internal/degraded"
	httphandler "github.com/kjstillabower/climate-api/internal/http"
	"github.com/kjstillabower/climate-api/internal/lifecycle"
	"github.com/kjstillabower/climate-api/internal/observability"
	"github.com/kjstillabower/climate-api/internal/service"
	"github.com/kjstillabower/climate-api/internal/store"
)

func main() {
	startTime := time.Now()
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}
	if cfg.Debug {
		observability.EnableDebug()
		logger.Debug("debug logging enabled")
	}

	st, err := store.Open(store.Config{
		Path:         cfg.DatabasePath,
		DSN:          cfg.DatabaseDSN,
		MaxOpenConns: cfg.DatabaseMaxOpenConns,
		BusyTimeout:  cfg.DatabaseBusyTimeout,
		LogQueries:   cfg.LogQueries,
	}, logger)
	if err != nil {
		logger.Fatal("store", zap.Error(err), zap.String("path", cfg.DatabasePath))
	}
	logger.Info("store opened", zap.String("path", cfg.DatabasePath), zap.Bool("log_queries", cfg.LogQueries))
	lifecycle.SetReady(true)

	recoveryCtx, stopRecovery := context.WithCancel(context.Background())
	defer stopRecovery()
	if cfg.DegradedRetryInitial > 0 {
		degraded.StartRecoveryListener(recoveryCtx, st.HealthCheck, cfg.DegradedRetryInitial, cfg.DegradedRetryMax,
			func(err error) {
				observability.RecordRecoveryAttempt(err)
				if err != nil {
					logger.Warn("store recovery probe failed", zap.Error(err))
					return
				}
				logger.Info("store recovered")
			},
			func() {
				logger.Error("store recovery exhausted; draining")
				lifecycle.SetShuttingDown(true)
			})
	}

	climate := service.NewClimateService(st)
	handler := httphandler.NewHandler(climate, st, &httphandler.HealthConfig{
		DegradedWindow:         cfg.DegradedWindow,
		DegradedErrorPct:       cfg.DegradedErrorPct,
		IdleWindow:             cfg.IdleWindow,
		IdleThresholdReqPerMin: cfg.IdleThresholdReqPerMin,
		MinimumLifespan:        cfg.MinimumLifespan,
		StartTime:              startTime,
	}, logger)

	srv := &http.Server{
		Addr:        ":" + cfg.ServerPort,
		Handler:     httphandler.NewRouter(handler, logger),
		ReadTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	lifecycle.SetShuttingDown(true)
	stopRecovery()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	inFlight := httphandler.InFlightCount()
	logger.Info("waiting for in-flight requests", zap.Int64("count", inFlight))
	observability.RecordShutdownInFlight(inFlight)
	waitCtx, waitCancel := context.WithTimeout(context.Background(), cfg.ShutdownInFlightTimeout)
	defer waitCancel()
	if err := httphandler.WaitForInFlight(waitCtx, cfg.ShutdownInFlightCheckInterval); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
	}

	if err := st.Close(); err != nil {
		logger.Error("store close", zap.Error(err))
	}
	if err := observability.FlushTelemetry(context.Background(), logger); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}
	logger.Info("shutdown complete")
}
