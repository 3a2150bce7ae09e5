package integration

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/mwhitfield/sentinel/internal/database"
	"github.com/mwhitfield/sentinel/internal/models"
	"github.com/mwhitfield/sentinel/internal/repositories"
)

// TestDB manages PostgreSQL testcontainer and database operations
type TestDB struct {
	Container  testcontainers.Container
	ConnString string
	Pool       *pgxpool.Pool
	DB         *database.DB
}

// SetupTestDatabase creates a PostgreSQL testcontainer, runs migrations, returns TestDB
func SetupTestDatabase(ctx context.Context) (*TestDB, error) {
	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("sentinel"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get connection string: %w", err)
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := runMigrations(ctx, pool); err != nil {
		pool.Close()
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	return &TestDB{
		Container:  container,
		ConnString: connStr,
		Pool:       pool,
		DB:         database.NewFromPool(pool, logger),
	}, nil
}

// runMigrations executes all goose migrations
func runMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	migrationsDir, err := filepath.Abs("../../migrations")
	if err != nil {
		return fmt.Errorf("failed to get migrations path: %w", err)
	}

	goose.SetLogger(log.New(io.Discard, "", 0))

	// Goose needs a database/sql connection; adapt from the pgx pool
	sqlDB := stdlib.OpenDB(*pool.Config().ConnConfig)
	defer sqlDB.Close()

	if err := goose.UpContext(ctx, sqlDB, migrationsDir); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	return nil
}

// Teardown stops the container and closes the connection pool
func (db *TestDB) Teardown(ctx context.Context) error {
	if db.Pool != nil {
		db.Pool.Close()
	}
	if db.Container != nil {
		return db.Container.Terminate(ctx)
	}
	return nil
}

// CleanupTables truncates all tables for test isolation
func (db *TestDB) CleanupTables(ctx context.Context) error {
	tables := []string{
		"login_attempts",
		"trusted_devices",
		"lockouts",
		"security_alerts",
		"failure_resets",
		"failure_counters",
	}

	for _, table := range tables {
		if _, err := db.Pool.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)); err != nil {
			return fmt.Errorf("failed to truncate table %s: %w", table, err)
		}
	}

	return nil
}

// InitializeRepositories creates all repository instances from database wrapper
func InitializeRepositories(db *database.DB) (
	*repositories.LoginAttemptRepository,
	*repositories.DeviceRepository,
	*repositories.LockoutRepository,
	*repositories.AlertRepository,
	*repositories.RPCLockoutCounter,
) {
	return repositories.NewLoginAttemptRepository(db, 50),
		repositories.NewDeviceRepository(db),
		repositories.NewLockoutRepository(db),
		repositories.NewAlertRepository(db, 20),
		repositories.NewRPCLockoutCounter(db)
}

// SeedAttempt inserts a login attempt row directly
func SeedAttempt(ctx context.Context, pool *pgxpool.Pool, email string, success bool, at time.Time) error {
	query := `
		INSERT INTO login_attempts (id, email, success, attempt_time, device_fingerprint, ip_address, country, failure_reason, suspicious_flags, expires_at)
		VALUES (gen_random_uuid(), $1, $2, $3, '', '', '', '', '{}', $4)
	`

	_, err := pool.Exec(ctx, query, email, success, at, at.Add(30*24*time.Hour))
	if err != nil {
		return fmt.Errorf("failed to insert login attempt: %w", err)
	}
	return nil
}

// SeedDevice inserts a device record for a user
func SeedDevice(ctx context.Context, pool *pgxpool.Pool, userID, fingerprint string, trusted bool, expiresAt *time.Time) error {
	query := `
		INSERT INTO trusted_devices (user_id, device_fingerprint, name, os_name, os_version, app_version, trusted, trust_expires_at, first_seen, last_seen)
		VALUES ($1, $2, '', 'ios', '17.4', '3.2.1', $3, $4, NOW(), NOW())
	`

	_, err := pool.Exec(ctx, query, userID, fingerprint, trusted, expiresAt)
	if err != nil {
		return fmt.Errorf("failed to insert device: %w", err)
	}
	return nil
}

// SeedAlert inserts a security alert row
func SeedAlert(ctx context.Context, pool *pgxpool.Pool, alert *models.SecurityAlert) error {
	query := `
		INSERT INTO security_alerts (id, user_email, alert_type, severity, title, message, recommendation, created_at, resolved)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := pool.Exec(ctx, query,
		alert.ID, alert.UserEmail, alert.Type, alert.Severity,
		alert.Title, alert.Message, alert.Recommendation,
		alert.CreatedAt, alert.Resolved,
	)
	if err != nil {
		return fmt.Errorf("failed to insert alert: %w", err)
	}
	return nil
}
