package weather

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/i474232898/weather-gateway/internal/observability"
)

// DefaultAttemptTimeout bounds a single provider attempt.
const DefaultAttemptTimeout = 8 * time.Second

// ErrAllProvidersFailed is the only error GetWeather returns. Individual
// provider failures are logged and counted, never surfaced.
var ErrAllProvidersFailed = errors.New("all weather providers failed")

// Service serves weather reports from its cache, falling back through an
// ordered list of providers on a miss.
type Service struct {
	cache          Cache
	providers      []Provider
	attemptTimeout time.Duration
	logger         *slog.Logger
	metrics        *observability.Metrics
}

// NewService creates a new Service. The providers slice is the fallback
// order and is copied; it cannot change after construction.
func NewService(cache Cache, providers []Provider, logger *slog.Logger, metrics *observability.Metrics) *Service {
	chain := make([]Provider, len(providers))
	copy(chain, providers)

	return &Service{
		cache:          cache,
		providers:      chain,
		attemptTimeout: DefaultAttemptTimeout,
		logger:         logger,
		metrics:        metrics,
	}
}

// WithAttemptTimeout overrides the per-provider timeout.
func (s *Service) WithAttemptTimeout(d time.Duration) *Service {
	if d > 0 {
		s.attemptTimeout = d
	}
	return s
}

// Providers returns the names of the chain in the order they are tried.
func (s *Service) Providers() []ProviderName {
	names := make([]ProviderName, 0, len(s.providers))
	for _, p := range s.providers {
		names = append(names, p.Name())
	}
	return names
}

// GetWeather returns the report for (lat, lon). The caller is expected to
// have validated the coordinate ranges.
func (s *Service) GetWeather(ctx context.Context, lat, lon float64) (Report, error) {
	if cached, ok := s.cache.GetCachedWeather(lat, lon); ok {
		s.metrics.CacheLookups.WithLabelValues("hit").Inc()
		s.logger.Debug("weather served from cache", "lat", lat, "lon", lon, "provider", cached.Provider)
		return cached, nil
	}
	s.metrics.CacheLookups.WithLabelValues("miss").Inc()

	return s.fetchAndCache(ctx, lat, lon)
}

// Refresh skips the cache read and replaces the entry for (lat, lon) with a
// fresh report from the chain. A failed refresh leaves the old entry alone.
func (s *Service) Refresh(ctx context.Context, lat, lon float64) (Report, error) {
	return s.fetchAndCache(ctx, lat, lon)
}

func (s *Service) fetchAndCache(ctx context.Context, lat, lon float64) (Report, error) {
	for i, p := range s.providers {
		report, err := s.attempt(ctx, p, lat, lon)
		if err != nil {
			if i < len(s.providers)-1 {
				s.logger.Warn("weather provider failed, trying next",
					"provider", p.Name(), "next", s.providers[i+1].Name(), "error", err)
			} else {
				s.logger.Error("weather provider failed", "provider", p.Name(), "error", err)
			}
			continue
		}

		report.CachedAt = nil
		s.cache.SetCachedWeather(lat, lon, report)
		return report, nil
	}

	s.metrics.ChainExhausted.Inc()
	s.logger.Error("no weather provider succeeded", "lat", lat, "lon", lon, "providers", len(s.providers))
	return Report{}, ErrAllProvidersFailed
}

func (s *Service) attempt(ctx context.Context, p Provider, lat, lon float64) (Report, error) {
	ctx, cancel := context.WithTimeout(ctx, s.attemptTimeout)
	defer cancel()

	name := string(p.Name())
	start := time.Now()
	report, err := p.Fetch(ctx, lat, lon)
	s.metrics.ProviderDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	if err != nil {
		s.metrics.ProviderAttempts.WithLabelValues(name, "error").Inc()
		return Report{}, err
	}
	s.metrics.ProviderAttempts.WithLabelValues(name, "success").Inc()
	return report, nil
}
