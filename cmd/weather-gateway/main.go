package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	httpapi "github.com/i474232898/weather-gateway/internal/api/http"
	"github.com/i474232898/weather-gateway/internal/cache"
	"github.com/i474232898/weather-gateway/internal/config"
	"github.com/i474232898/weather-gateway/internal/observability"
	"github.com/i474232898/weather-gateway/internal/scheduler"
	"github.com/i474232898/weather-gateway/internal/weather"
	"github.com/i474232898/weather-gateway/internal/weather/providers"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	metrics := observability.NewMetrics()

	// Shared HTTP client for outbound provider calls.
	client := providers.NewHTTPClient(cfg.ProviderTimeout)

	if cfg.OpenWeatherMapAPIKey == "" {
		logger.Warn("OPENWEATHERMAP_API_KEY not set; openweathermap requests will fail fast")
	}
	if cfg.WeatherAPIKey == "" {
		logger.Warn("WEATHERAPI_KEY not set; weatherapi requests will fail fast")
	}

	service := weather.NewService(
		cache.NewMemoryCache(nil),
		providers.DefaultChain(client, cfg.OpenWeatherMapAPIKey, cfg.WeatherAPIKey),
		logger,
		metrics,
	).WithAttemptTimeout(cfg.ProviderTimeout)

	// Keeps the configured locations warm in the cache.
	sched := scheduler.New(cfg.WarmLocations, cfg.WarmInterval, cfg.WarmMaxRetries, service, logger, metrics)
	if err := sched.Start(); err != nil {
		logger.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}
	defer sched.Stop()

	app := httpapi.NewApp(service)

	go func() {
		logger.Info("listening", "port", cfg.Port, "providers", service.Providers())
		if err := app.Listen(":" + cfg.Port); err != nil {
			logger.Error("fiber server stopped", "error", err)
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("error during shutdown", "error", err)
	}
}
