package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/mwhitfield/sentinel/internal/database"
	"github.com/mwhitfield/sentinel/internal/models"
	"github.com/redis/go-redis/v9"
)

// RPCLockoutCounter runs the record_login_attempt_and_check_lockout
// function server-side, so the insert and the threshold check happen in
// one statement.
type RPCLockoutCounter struct {
	db *database.DB
}

// NewRPCLockoutCounter creates a counter backed by the Postgres function.
func NewRPCLockoutCounter(db *database.DB) *RPCLockoutCounter {
	return &RPCLockoutCounter{db: db}
}

// RecordAndCheck atomically records a failure and evaluates the lockout
// threshold.
func (c *RPCLockoutCounter) RecordAndCheck(ctx context.Context, email string, maxAttempts int, window, lockout time.Duration) (*models.AtomicCheckResult, error) {
	query := `
		SELECT should_lockout, lockout_duration_minutes, failed_attempts_count
		FROM record_login_attempt_and_check_lockout($1, $2, $3, $4)
	`

	var res models.AtomicCheckResult
	err := c.db.Pool.QueryRow(ctx, query,
		email, maxAttempts,
		int(window.Minutes()), int(lockout.Minutes()),
	).Scan(&res.ShouldLockout, &res.LockoutDurationMinutes, &res.FailedAttemptsCount)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &res, nil
}

// Reset clears the server-side failure count after a successful login.
func (c *RPCLockoutCounter) Reset(ctx context.Context, email string) error {
	_, err := c.db.Pool.Exec(ctx, `SELECT reset_login_failures($1)`, email)
	return database.MapPostgresError(err)
}

// RedisLockoutCounter keeps the failure count in Redis via INCR with a
// window-scoped TTL. Used when the deployment has Redis closer than
// Postgres, or as a second atomic option.
type RedisLockoutCounter struct {
	client *redis.Client
}

// NewRedisLockoutCounter creates a counter backed by Redis INCR.
func NewRedisLockoutCounter(client *redis.Client) *RedisLockoutCounter {
	return &RedisLockoutCounter{client: client}
}

func failureKey(email string) string {
	return fmt.Sprintf("sentinel:failures:%s", email)
}

// RecordAndCheck atomically increments the failure count and evaluates
// the lockout threshold. The key expires with the failure window so stale
// counts age out without a sweeper.
func (c *RedisLockoutCounter) RecordAndCheck(ctx context.Context, email string, maxAttempts int, window, lockout time.Duration) (*models.AtomicCheckResult, error) {
	key := failureKey(email)

	count, err := c.client.Incr(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to increment failure count: %w", err)
	}

	// Set the window TTL on first failure only; later failures keep the
	// original window anchor.
	if count == 1 {
		if err := c.client.Expire(ctx, key, window).Err(); err != nil {
			return nil, fmt.Errorf("failed to set failure window: %w", err)
		}
	}

	return &models.AtomicCheckResult{
		ShouldLockout:          int(count) >= maxAttempts,
		LockoutDurationMinutes: int(lockout.Minutes()),
		FailedAttemptsCount:    int(count),
	}, nil
}

// Reset clears the failure count after a successful login.
func (c *RedisLockoutCounter) Reset(ctx context.Context, email string) error {
	if err := c.client.Del(ctx, failureKey(email)).Err(); err != nil {
		return fmt.Errorf("failed to reset failure count: %w", err)
	}
	return nil
}
