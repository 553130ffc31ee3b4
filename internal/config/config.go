package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/i474232898/weather-gateway/internal/weather"
)

var validate = validator.New()

type AppConfig struct {
	// Optional provider keys; a provider without a key still sits in the
	// chain and fails fast.
	OpenWeatherMapAPIKey string
	WeatherAPIKey        string

	// ProviderTimeout bounds one upstream attempt.
	ProviderTimeout time.Duration `validate:"gt=0"`

	// Cache warmer.
	WarmLocations  []weather.Coordinates `validate:"dive"`
	WarmInterval   time.Duration         `validate:"gt=0"`
	WarmMaxRetries int                   `validate:"gte=0"`

	Port            string        `validate:"required,numeric"`
	LogLevel        string        `validate:"oneof=debug info warn error DEBUG INFO WARN ERROR"`
	LogFormat       string        `validate:"oneof=json text"`
	ShutdownTimeout time.Duration `validate:"gt=0"`
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	cfg := &AppConfig{}

	cfg.OpenWeatherMapAPIKey = os.Getenv("OPENWEATHERMAP_API_KEY")
	cfg.WeatherAPIKey = os.Getenv("WEATHERAPI_KEY")

	var err error
	if cfg.ProviderTimeout, err = getenvDuration("PROVIDER_TIMEOUT", "8s"); err != nil {
		return nil, err
	}
	if cfg.WarmInterval, err = getenvDuration("WARM_INTERVAL", "9m"); err != nil {
		return nil, err
	}
	if cfg.ShutdownTimeout, err = getenvDuration("SHUTDOWN_TIMEOUT", "10s"); err != nil {
		return nil, err
	}
	if cfg.WarmMaxRetries, err = getenvInt("WARM_MAX_RETRIES", 2); err != nil {
		return nil, err
	}

	locs, err := parseLocations(os.Getenv("WARM_LOCATIONS"))
	if err != nil {
		return nil, err
	}
	cfg.WarmLocations = locs

	cfg.Port = getenvDefault("PORT", "8080")
	cfg.LogLevel = getenvDefault("LOG_LEVEL", "info")
	cfg.LogFormat = getenvDefault("LOG_FORMAT", "json")

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// parseLocations parses "lat,lon;lat,lon". Empty input yields no locations.
func parseLocations(s string) ([]weather.Coordinates, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	var locs []weather.Coordinates
	for _, pair := range strings.Split(s, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.Split(pair, ",")
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid WARM_LOCATIONS entry %q: want lat,lon", pair)
		}
		lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid WARM_LOCATIONS latitude %q: %w", parts[0], err)
		}
		lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid WARM_LOCATIONS longitude %q: %w", parts[1], err)
		}
		locs = append(locs, weather.Coordinates{Latitude: lat, Longitude: lon})
	}
	return locs, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getenvDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
