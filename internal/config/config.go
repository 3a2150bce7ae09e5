package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Security SecurityConfig
	Redis    RedisConfig
	Email    EmailConfig
	GeoIP    GeoIPConfig
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	AllowedOrigins []string
	JWTSecret      string
	TokenExpiry    time.Duration
	ServiceKeys    map[string]string // App id -> bcrypt hash of its provisioned API key
}

// SecurityConfig holds the canonical lockout and trust policy. The
// defaults (5 failures / 60 min window / 15 min lockout) are the single
// source of truth for every component that needs them.
type SecurityConfig struct {
	MaxFailedAttempts    int           // Failures within the window that trigger lockout
	FailureWindow        time.Duration // Trailing window for counting failures
	LockoutDuration      time.Duration // How long a triggered lock holds
	RapidFailureCount    int           // Failures for the rapid_failures flag
	RapidFailureWindow   time.Duration // Trailing window for rapid_failures
	UnusualHourStart     int           // Local hour at or after which attempts are unusual
	UnusualHourEnd       int           // Local hour before which attempts are unusual
	DeviceTrustTTL       time.Duration // Trust grant lifetime
	AttemptWindowSize    int           // Rolling attempts retained per user
	AttemptRetention     time.Duration // How long attempt rows are kept
	AlertRetention       int           // Alerts retained per user
	CleanupInterval      time.Duration // Background purge cadence
	CacheRefreshInterval time.Duration // Local cache refresh cadence
	UseAtomicRPC         bool          // Prefer the server-side atomic path
}

// RedisConfig configures the optional atomic failure counter. An empty
// Addr disables it and the Postgres RPC or client-side count is used.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// EmailConfig configures best-effort alert notification via SES.
// An empty FromAddress disables sending.
type EmailConfig struct {
	AWSRegion   string
	FromAddress string
}

// GeoIPConfig points at a local GeoLite2 country database. An empty path
// disables location resolution and the unusual_location flag never fires.
type GeoIPConfig struct {
	DBPath string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	env := getEnv("ENV", "development")

	serviceKeys, err := parseServiceKeys(getEnv("SERVICE_API_KEYS", ""))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "sentinel"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
		},
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Env:            env,
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			AllowedOrigins: parseAllowedOrigins(env),
			JWTSecret:      jwtSecret,
			TokenExpiry:    getEnvAsDuration("TOKEN_EXPIRY", 24*time.Hour),
			ServiceKeys:    serviceKeys,
		},
		Security: SecurityConfig{
			MaxFailedAttempts:    getEnvAsInt("MAX_FAILED_ATTEMPTS", 5),
			FailureWindow:        getEnvAsDuration("FAILURE_WINDOW", 60*time.Minute),
			LockoutDuration:      getEnvAsDuration("LOCKOUT_DURATION", 15*time.Minute),
			RapidFailureCount:    getEnvAsInt("RAPID_FAILURE_COUNT", 3),
			RapidFailureWindow:   getEnvAsDuration("RAPID_FAILURE_WINDOW", 5*time.Minute),
			UnusualHourStart:     getEnvAsInt("UNUSUAL_HOUR_START", 22),
			UnusualHourEnd:       getEnvAsInt("UNUSUAL_HOUR_END", 6),
			DeviceTrustTTL:       getEnvAsDuration("DEVICE_TRUST_TTL", 30*24*time.Hour),
			AttemptWindowSize:    getEnvAsInt("ATTEMPT_WINDOW_SIZE", 50),
			AttemptRetention:     getEnvAsDuration("ATTEMPT_RETENTION", 30*24*time.Hour),
			AlertRetention:       getEnvAsInt("ALERT_RETENTION", 20),
			CleanupInterval:      getEnvAsDuration("CLEANUP_INTERVAL", 1*time.Hour),
			CacheRefreshInterval: getEnvAsDuration("CACHE_REFRESH_INTERVAL", 5*time.Minute),
			UseAtomicRPC:         getEnvAsBool("USE_ATOMIC_RPC", true),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASS", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Email: EmailConfig{
			AWSRegion:   getEnv("AWS_REGION", "us-east-1"),
			FromAddress: getEnv("ALERT_FROM_ADDRESS", ""),
		},
		GeoIP: GeoIPConfig{
			DBPath: getEnv("GEOIP_DB_PATH", ""),
		},
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}

	if err := validateJWTSecret(jwtSecret, env); err != nil {
		return nil, err
	}

	if err := cfg.Security.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *SecurityConfig) validate() error {
	if c.MaxFailedAttempts < 1 {
		return fmt.Errorf("MAX_FAILED_ATTEMPTS must be at least 1")
	}
	if c.FailureWindow <= 0 || c.LockoutDuration <= 0 {
		return fmt.Errorf("FAILURE_WINDOW and LOCKOUT_DURATION must be positive")
	}
	if c.UnusualHourStart < 0 || c.UnusualHourStart > 23 || c.UnusualHourEnd < 0 || c.UnusualHourEnd > 23 {
		return fmt.Errorf("unusual hour bounds must be within 0-23")
	}
	if c.AttemptWindowSize < c.MaxFailedAttempts {
		return fmt.Errorf("ATTEMPT_WINDOW_SIZE must be at least MAX_FAILED_ATTEMPTS")
	}
	return nil
}

// parseServiceKeys parses SERVICE_API_KEYS entries of the form
// "appID:bcryptHash", comma separated. Empty input means no keys are
// provisioned and token issuance rejects everything.
func parseServiceKeys(s string) (map[string]string, error) {
	keys := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, ":", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("SERVICE_API_KEYS entry %q must be appID:bcryptHash", pair)
		}
		keys[parts[0]] = parts[1]
	}
	return keys, nil
}

// validateJWTSecret enforces minimum security standards for the JWT secret
func validateJWTSecret(secret, env string) error {
	minLength := 16
	if env == "production" {
		minLength = 32
	}

	if len(secret) < minLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("JWT_SECRET cannot be a common weak value")
		}
	}

	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

func parseAllowedOrigins(env string) []string {
	if env == "production" {
		originsStr := getEnv("ALLOWED_ORIGINS", "")
		if originsStr == "" {
			return []string{}
		}
		origins := strings.Split(originsStr, ",")
		for i, origin := range origins {
			origins[i] = strings.TrimSpace(origin)
		}
		return origins
	}

	// Development: allow localhost variants
	return []string{
		"http://localhost:3000",
		"http://localhost:8080",
		"http://localhost:19006", // Expo web default
		"http://127.0.0.1:3000",
		"http://127.0.0.1:8080",
		"http://127.0.0.1:19006",
	}
}
