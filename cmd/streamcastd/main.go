package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"streamcast/internal/core/ports"
	"streamcast/internal/core/services"
	httphandlers "streamcast/internal/handlers/http"
	"streamcast/internal/infrastructure/capture"
	"streamcast/internal/infrastructure/compositor"
	"streamcast/internal/infrastructure/devices"
	"streamcast/internal/infrastructure/middleware"
	"streamcast/internal/infrastructure/monitoring"
	"streamcast/internal/infrastructure/repositories"
	"streamcast/internal/infrastructure/transport"
	"streamcast/pkg/config"
	"streamcast/pkg/logger"
	"streamcast/pkg/tracing"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		cfg = config.DefaultConfig()
	}

	var zapLogger *zap.Logger
	if cfg.Logging.Format == "console" {
		zapLogger = logger.NewConsole(cfg.Logging.Level)
	} else {
		zapLogger = logger.New(cfg.Logging.Level)
	}
	defer zapLogger.Sync()
	log := zapLogger.Sugar()

	tp, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: "streamcast",
		JaegerURL:   cfg.Tracing.JaegerURL,
		Environment: cfg.Tracing.Environment,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		log.Fatalw("failed to init tracing", "error", err)
	}

	repoFactory, err := repositories.NewFactory(cfg, log)
	if err != nil {
		log.Fatalw("failed to create repository factory", "error", err)
	}
	defer repoFactory.Close()

	catalog := devices.NewCatalog(log, cfg.Capture.DeviceCacheTTL)
	acquirer := capture.NewAcquirer(log, cfg.Native.EncoderPath, cfg.Capture.TrackStopTimeout)
	comp := compositor.New(log)

	clips := transport.NewClipBuffer(cfg.Clips.Capacity)
	transports := transport.NewFactory(log, cfg, clips)

	monitor := services.NewHealthMonitor(log, cfg.Monitoring.HealthInterval)

	var collector *monitoring.PrometheusCollector
	if cfg.Monitoring.PrometheusEnabled {
		collector = monitoring.NewPrometheusCollector()
	}

	sessionService := services.NewSessionService(
		log,
		services.SessionConfig{
			ClipDir:          cfg.Clips.OutputDir,
			TrackStopTimeout: cfg.Capture.TrackStopTimeout,
			ReadyTimeout:     cfg.Relay.ReadyTimeout,
			RelayRTMPURL:     cfg.Relay.RTMPURL,
			DefaultFrameRate: cfg.Capture.DefaultFrameRate,
		},
		acquirer,
		comp,
		transports,
		monitor,
		repoFactory.SessionRepository(),
		clips,
		metricsSink(collector),
	)

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.ErrorHandlerMiddleware(log))
	if cfg.Tracing.Enabled {
		router.Use(middleware.TracingMiddleware())
	}
	router.Use(middleware.AuthMiddleware(cfg))

	handler := httphandlers.NewSessionHandler(sessionService, catalog, acquirer, collector)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:         cfg.Control.Address,
		Handler:      router,
		ReadTimeout:  cfg.Control.ReadTimeout,
		WriteTimeout: cfg.Control.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infow("starting control server", "address", cfg.Control.Address)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Fatalw("control server failed", "error", err)
	case sig := <-sigChan:
		log.Infow("shutdown signal received", "signal", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Control.ShutdownTimeout)
	defer cancel()

	// An active broadcast ends before the HTTP server so viewers get a
	// clean stream-ended instead of a dead socket.
	if err := sessionService.Stop(shutdownCtx); err != nil {
		log.Errorw("failed to stop session during shutdown", "error", err)
	}

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("error during server shutdown", "error", err)
		srv.Close()
	}

	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.Errorw("error shutting down tracer", "error", err)
	}

	log.Infow("shutdown complete")
}

func loadConfig() (*config.Config, error) {
	paths := []string{
		os.Getenv("STREAMCAST_CONFIG"),
		"configs/config.yaml",
		"config.yaml",
	}
	var cfg *config.Config
	var err error
	for _, path := range paths {
		if path == "" {
			continue
		}
		cfg, err = config.Load(path)
		if err == nil {
			return cfg, nil
		}
	}
	return nil, err
}

// metricsSink avoids handing the session service a typed nil. A
// disabled collector must read as a nil interface.
func metricsSink(c *monitoring.PrometheusCollector) ports.MetricsSink {
	if c == nil {
		return nil
	}
	return c
}
