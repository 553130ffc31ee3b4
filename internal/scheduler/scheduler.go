package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-co-op/gocron"

	"github.com/i474232898/weather-gateway/internal/observability"
	"github.com/i474232898/weather-gateway/internal/weather"
)

const (
	// defaultInterval stays under the cache TTL so a refreshed entry never
	// expires between runs.
	defaultInterval = 9 * time.Minute

	// jobTimeout bounds one location's warm-up including retries; it covers a
	// full chain of three 8s attempts with headroom.
	jobTimeout = 60 * time.Second
)

// Fetcher is the part of weather.Service the warmer drives. Refresh must
// bypass the cache read, or a still-fresh entry would never be renewed.
type Fetcher interface {
	Refresh(ctx context.Context, lat, lon float64) (weather.Report, error)
}

// Scheduler periodically fetches weather for hot locations so their cache
// entries are refreshed before user requests arrive.
type Scheduler struct {
	scheduler  *gocron.Scheduler
	fetcher    Fetcher
	locations  []weather.Coordinates
	interval   time.Duration
	maxRetries uint64
	logger     *slog.Logger
	metrics    *observability.Metrics

	newBackOff func() backoff.BackOff
}

// New creates a new Scheduler.
func New(
	locations []weather.Coordinates,
	interval time.Duration,
	maxRetries int,
	fetcher Fetcher,
	logger *slog.Logger,
	metrics *observability.Metrics,
) *Scheduler {
	if interval <= 0 {
		interval = defaultInterval
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Scheduler{
		scheduler:  gocron.NewScheduler(time.UTC),
		fetcher:    fetcher,
		locations:  locations,
		interval:   interval,
		maxRetries: uint64(maxRetries),
		logger:     logger,
		metrics:    metrics,
		newBackOff: func() backoff.BackOff { return backoff.NewExponentialBackOff() },
	}
}

// Start schedules the periodic job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	if len(s.locations) == 0 {
		s.logger.Info("scheduler: no warm locations configured; nothing to schedule")
		return nil
	}

	_, err := s.scheduler.Every(s.interval).Do(s.warmAll)
	if err != nil {
		return err
	}

	s.logger.Info("scheduler: cache warmer started", "locations", len(s.locations), "interval", s.interval)
	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

func (s *Scheduler) warmAll() {
	s.logger.Debug("scheduler: running cache warm job")

	var wg sync.WaitGroup
	for _, loc := range s.locations {
		loc := loc
		wg.Add(1)
		go func() {
			defer wg.Done()

			ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
			defer cancel()

			if err := s.warm(ctx, loc); err != nil {
				s.logger.Warn("scheduler: warm failed", "location", loc.String(), "error", err)
			}
		}()
	}
	wg.Wait()
	s.logger.Debug("scheduler: completed cache warm job")
}

// warm fetches one location, retrying with exponential backoff. Retries
// wrap the whole fallback chain, never a single provider.
func (s *Scheduler) warm(ctx context.Context, loc weather.Coordinates) error {
	op := func() error {
		_, err := s.fetcher.Refresh(ctx, loc.Latitude, loc.Longitude)
		return err
	}

	b := backoff.WithContext(backoff.WithMaxRetries(s.newBackOff(), s.maxRetries), ctx)
	if err := backoff.Retry(op, b); err != nil {
		s.metrics.WarmRuns.WithLabelValues("error").Inc()
		return err
	}
	s.metrics.WarmRuns.WithLabelValues("success").Inc()
	return nil
}
