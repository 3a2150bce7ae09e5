package background

import (
	"context"
	"log/slog"
	"time"

	"github.com/mwhitfield/sentinel/internal/cache"
	"github.com/mwhitfield/sentinel/internal/repositories"
)

// CacheRefresher periodically overwrites locally cached attempt windows
// with authoritative backend reads, so degraded decisions made from the
// cache converge back to backend state once connectivity returns.
type CacheRefresher struct {
	attemptRepo *repositories.LoginAttemptRepository
	localCache  *cache.LocalCache
	windowSize  int
	logger      *slog.Logger
	interval    time.Duration
	stopCh      chan struct{}
}

// NewCacheRefresher creates a new cache refresher
func NewCacheRefresher(
	attemptRepo *repositories.LoginAttemptRepository,
	localCache *cache.LocalCache,
	windowSize int,
	logger *slog.Logger,
	interval time.Duration,
) *CacheRefresher {
	return &CacheRefresher{
		attemptRepo: attemptRepo,
		localCache:  localCache,
		windowSize:  windowSize,
		logger:      logger,
		interval:    interval,
		stopCh:      make(chan struct{}),
	}
}

// Start begins the periodic refresh task
func (cr *CacheRefresher) Start(ctx context.Context) {
	ticker := time.NewTicker(cr.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cr.runRefresh(ctx)
		case <-cr.stopCh:
			cr.logger.Info("cache refresher stopped")
			return
		case <-ctx.Done():
			cr.logger.Info("cache refresher context cancelled")
			return
		}
	}
}

// runRefresh resyncs every cached attempt window from the backend
func (cr *CacheRefresher) runRefresh(ctx context.Context) {
	emails := cr.localCache.CachedEmails()
	if len(emails) == 0 {
		return
	}

	refreshCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	refreshed := 0
	for _, email := range emails {
		attempts, err := cr.attemptRepo.ListAttempts(refreshCtx, email, cr.windowSize)
		if err != nil {
			// The next tick retries; the stale window keeps serving
			cr.logger.Error("failed to refresh attempt window", slog.Any("error", err))
			continue
		}
		cr.localCache.ReplaceAttempts(email, attempts)
		refreshed++
	}

	cr.logger.Debug("cache refresh completed",
		slog.Int("windows_refreshed", refreshed),
		slog.Int("windows_total", len(emails)))
}

// Stop signals the refresher to stop
func (cr *CacheRefresher) Stop() {
	close(cr.stopCh)
}
