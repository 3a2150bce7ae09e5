package background

import (
	"context"
	"log/slog"
	"time"

	"github.com/mwhitfield/sentinel/internal/repositories"
)

// CleanupManager periodically removes expired login attempts and released
// lockouts from the database. Lockout release itself is lazy and never
// waits for this task; the sweep only reclaims storage.
type CleanupManager struct {
	attemptRepo *repositories.LoginAttemptRepository
	lockoutRepo *repositories.LockoutRepository
	logger      *slog.Logger
	interval    time.Duration
	stopCh      chan struct{}
}

// NewCleanupManager creates a new cleanup manager
func NewCleanupManager(
	attemptRepo *repositories.LoginAttemptRepository,
	lockoutRepo *repositories.LockoutRepository,
	logger *slog.Logger,
	interval time.Duration,
) *CleanupManager {
	return &CleanupManager{
		attemptRepo: attemptRepo,
		lockoutRepo: lockoutRepo,
		logger:      logger,
		interval:    interval,
		stopCh:      make(chan struct{}),
	}
}

// Start begins the periodic cleanup task
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	// Run immediately on startup
	cm.runCleanup(ctx)

	for {
		select {
		case <-ticker.C:
			cm.runCleanup(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

// runCleanup removes expired attempt and lockout rows
func (cm *CleanupManager) runCleanup(ctx context.Context) {
	cm.logger.Info("starting expired record cleanup")

	cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	attemptsDeleted, err := cm.attemptRepo.DeleteExpiredAttempts(cleanupCtx)
	if err != nil {
		cm.logger.Error("failed to cleanup expired attempts", slog.Any("error", err))
	}

	lockoutsDeleted, err := cm.lockoutRepo.DeleteExpired(cleanupCtx)
	if err != nil {
		cm.logger.Error("failed to cleanup expired lockouts", slog.Any("error", err))
	}

	if attemptsDeleted > 0 || lockoutsDeleted > 0 {
		cm.logger.Info("expired record cleanup completed",
			slog.Int64("attempts_deleted", attemptsDeleted),
			slog.Int64("lockouts_deleted", lockoutsDeleted))
	}
}

// Stop signals the cleanup manager to stop
func (cm *CleanupManager) Stop() {
	close(cm.stopCh)
}
