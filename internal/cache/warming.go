package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-resolver/internal/observability"
)

// LocationRefresher is implemented by the service layer to resolve weather for a stored location.
// Used by Warmer to avoid a circular dependency on the service package.
type LocationRefresher interface {
	RefreshLocation(ctx context.Context, locationID string) error
}

// Warmer keeps the tiers warm for a fixed set of tracked locations.
type Warmer struct {
	refresher LocationRefresher
	logger    *zap.Logger

	mu        sync.Mutex
	scheduler *gocron.Scheduler
}

// NewWarmer creates a Warmer that uses the given refresher and logger.
func NewWarmer(refresher LocationRefresher, logger *zap.Logger) *Warmer {
	return &Warmer{refresher: refresher, logger: logger}
}

// Warm refreshes each location concurrently. Returns the joined errors of failed locations.
func (w *Warmer) Warm(ctx context.Context, locationIDs []string) error {
	start := time.Now()
	observability.CacheWarmingTotal.Inc()
	if w.logger != nil {
		w.logger.Info("warming cache", zap.Int("locations", len(locationIDs)))
	}
	var wg sync.WaitGroup
	errCh := make(chan error, len(locationIDs))
	for _, id := range locationIDs {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if err := w.refresher.RefreshLocation(ctx, id); err != nil {
				errCh <- fmt.Errorf("warm %s: %w", id, err)
			}
		}(id)
	}
	wg.Wait()
	close(errCh)
	var errs []error
	for err := range errCh {
		errs = append(errs, err)
	}
	duration := time.Since(start).Seconds()
	observability.CacheWarmingDurationSeconds.Observe(duration)
	if w.logger != nil {
		w.logger.Info("cache warming complete", zap.Int("locations", len(locationIDs)), zap.Int("errors", len(errs)), zap.Float64("duration_seconds", duration))
	}
	if len(errs) > 0 {
		observability.CacheWarmingErrorsTotal.Inc()
		return errors.Join(errs...)
	}
	return nil
}

// Schedule runs Warm every interval, starting one interval from now. Each run is bounded
// by runTimeout. Overlapping runs are skipped. Call Stop during shutdown.
func (w *Warmer) Schedule(locationIDs []string, interval, runTimeout time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("warm interval must be positive, got %v", interval)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.scheduler != nil {
		return errors.New("warmer already scheduled")
	}
	s := gocron.NewScheduler(time.UTC)
	_, err := s.Every(interval).WaitForSchedule().SingletonMode().Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
		defer cancel()
		if err := w.Warm(ctx, locationIDs); err != nil && w.logger != nil {
			w.logger.Warn("periodic cache warm failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("schedule warming: %w", err)
	}
	s.StartAsync()
	w.scheduler = s
	return nil
}

// Stop halts scheduled warming. Safe to call when nothing is scheduled.
func (w *Warmer) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.scheduler != nil {
		w.scheduler.Stop()
		w.scheduler = nil
	}
}
