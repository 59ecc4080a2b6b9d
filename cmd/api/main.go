package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/zatekoja/facility-discovery/internal/api/handlers"
	"github.com/zatekoja/facility-discovery/internal/api/routes"
	"github.com/zatekoja/facility-discovery/internal/bootstrap"
	"github.com/zatekoja/facility-discovery/internal/infrastructure/observability"
	"github.com/zatekoja/facility-discovery/pkg/config"
)

func main() {
	// .env is optional; real deployments set the environment directly
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to read .env: %v\n", err)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	observability.InitLogger(cfg.OTEL.ServiceName, cfg.Env)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize OpenTelemetry if enabled
	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to set up OpenTelemetry")
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					log.Error().Err(err).Msg("Error shutting down OpenTelemetry")
				}
			}()
			log.Info().Str("endpoint", cfg.OTEL.Endpoint).Msg("OpenTelemetry initialized")
		}
	}

	engine, err := bootstrap.New(ctx, cfg, bootstrap.Options{ListenForInvalidation: true})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build discovery engine")
	}
	defer func() {
		if err := engine.Close(); err != nil {
			log.Error().Err(err).Msg("Error releasing engine resources")
		}
	}()

	checks := make(map[string]handlers.HealthCheck, len(engine.Checks))
	for name, check := range engine.Checks {
		checks[name] = check
	}

	router := routes.NewRouter(
		handlers.NewFacilityHandler(engine.Discovery),
		handlers.NewGeolocationHandler(engine.Discovery),
		handlers.NewAdminHandler(engine.Discovery),
		handlers.NewHealthHandler(engine.Providers(), checks).WithCircuits(engine.CircuitStates),
		cfg.Server.AllowedOrigins,
		engine.Metrics,
	)

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:    serverAddr,
		Handler: router.SetupRoutes(),
		// a search may legitimately take the whole global timeout
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Discovery.GlobalTimeout + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", serverAddr).Msg("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Server shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during server shutdown")
	}
	log.Info().Msg("Server stopped")
}
