package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mwhitfield/sentinel/internal/auth"
	"github.com/mwhitfield/sentinel/internal/background"
	"github.com/mwhitfield/sentinel/internal/cache"
	"github.com/mwhitfield/sentinel/internal/config"
	"github.com/mwhitfield/sentinel/internal/database"
	"github.com/mwhitfield/sentinel/internal/geo"
	"github.com/mwhitfield/sentinel/internal/handlers"
	middlewareCustom "github.com/mwhitfield/sentinel/internal/middleware"
	"github.com/mwhitfield/sentinel/internal/repositories"
	"github.com/mwhitfield/sentinel/internal/routes"
	"github.com/mwhitfield/sentinel/internal/services"
	pkghttp "github.com/mwhitfield/sentinel/pkg/http"
	pkglogger "github.com/mwhitfield/sentinel/pkg/logger"
	"github.com/redis/go-redis/v9"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	// Initialize database
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	// Initialize GeoIP resolver (disabled when no database is configured)
	geoResolver, err := geo.NewResolver(cfg.GeoIP.DBPath)
	if err != nil {
		logger.Error("failed to open geoip database", slog.Any("error", err))
		os.Exit(1)
	}
	defer geoResolver.Close()

	// Local fallback cache
	localCache := cache.New(cfg.Security.FailureWindow, cfg.Security.AttemptWindowSize)

	// Initialize repositories
	attemptRepo := repositories.NewLoginAttemptRepository(db, cfg.Security.AttemptWindowSize)
	deviceRepo := repositories.NewDeviceRepository(db)
	lockoutRepo := repositories.NewLockoutRepository(db)
	alertRepo := repositories.NewAlertRepository(db, cfg.Security.AlertRetention)

	// Atomic failure counter: Redis when configured, otherwise the
	// Postgres function, otherwise client-side counting.
	var counter services.FailureCounter
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		counter = repositories.NewRedisLockoutCounter(redisClient)
		logger.Info("using redis failure counter", slog.String("addr", cfg.Redis.Addr))
	} else if cfg.Security.UseAtomicRPC {
		counter = repositories.NewRPCLockoutCounter(db)
		logger.Info("using postgres atomic failure counter")
	}

	// Alert email delivery is best effort and off unless configured
	var notifier services.AlertNotifier
	if cfg.Email.FromAddress != "" {
		sesNotifier, err := services.NewAWSSESAlertNotifier(cfg.Email.AWSRegion, cfg.Email.FromAddress, logger)
		if err != nil {
			logger.Error("failed to initialize alert notifier", slog.Any("error", err))
			os.Exit(1)
		}
		notifier = sesNotifier
	}

	// Initialize services
	lockoutService := services.NewLockoutService(lockoutRepo, localCache, services.LockoutConfig{
		MaxFailedAttempts: cfg.Security.MaxFailedAttempts,
		FailureWindow:     cfg.Security.FailureWindow,
		LockoutDuration:   cfg.Security.LockoutDuration,
	}, logger)

	trustService := services.NewDeviceTrustService(deviceRepo, localCache, services.DeviceTrustConfig{
		TrustTTL: cfg.Security.DeviceTrustTTL,
	}, logger)

	analyzerService := services.NewAnalyzerService(attemptRepo, trustService, geoResolver, services.AnalyzerConfig{
		RapidFailureCount:  cfg.Security.RapidFailureCount,
		RapidFailureWindow: cfg.Security.RapidFailureWindow,
		UnusualHourStart:   cfg.Security.UnusualHourStart,
		UnusualHourEnd:     cfg.Security.UnusualHourEnd,
	}, logger)

	alertService := services.NewAlertService(alertRepo, notifier, logger)

	recorderService := services.NewRecorderService(
		attemptRepo,
		counter,
		analyzerService,
		lockoutService,
		alertService,
		trustService,
		geoResolver,
		localCache,
		services.RecorderConfig{
			MaxFailedAttempts: cfg.Security.MaxFailedAttempts,
			FailureWindow:     cfg.Security.FailureWindow,
			LockoutDuration:   cfg.Security.LockoutDuration,
			AttemptRetention:  cfg.Security.AttemptRetention,
		},
		logger,
	)

	// Initialize token manager and audit logger
	tokenManager := auth.NewTokenManager(cfg.Server.JWTSecret, cfg.Server.TokenExpiry)
	auditLogger := pkglogger.NewAuditLogger(logger)

	if len(cfg.Server.ServiceKeys) == 0 {
		logger.Warn("no service api keys provisioned, token issuance is disabled")
	}

	// Initialize handlers
	ipConfig := &pkghttp.IPConfig{}
	tokenHandler := handlers.NewTokenHandler(cfg.Server.ServiceKeys, tokenManager, cfg.Server.TokenExpiry)
	attemptHandler := handlers.NewAttemptHandler(recorderService, lockoutService, auditLogger, ipConfig)
	deviceHandler := handlers.NewDeviceHandler(trustService, auditLogger)
	alertHandler := handlers.NewAlertHandler(alertService)

	// Background tasks
	cleanupManager := background.NewCleanupManager(attemptRepo, lockoutRepo, logger, cfg.Security.CleanupInterval)
	cacheRefresher := background.NewCacheRefresher(attemptRepo, localCache, cfg.Security.AttemptWindowSize, logger, cfg.Security.CacheRefreshInterval)

	// Setup CORS middleware
	corsConfig := middlewareCustom.DefaultCORSConfig(cfg.Server.Env)
	corsConfig.AllowedOrigins = cfg.Server.AllowedOrigins

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(corsConfig))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	// Register routes
	routes.RegisterRoutes(router, tokenHandler, attemptHandler, deviceHandler, alertHandler, tokenManager)

	// Health check with database
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.HealthCheck(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy","database":"down"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","database":"up"}`))
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start background tasks
	backgroundCtx, backgroundCancel := context.WithCancel(context.Background())
	defer backgroundCancel()

	go cleanupManager.Start(backgroundCtx)
	go cacheRefresher.Start(backgroundCtx)

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	backgroundCancel()
	cleanupManager.Stop()
	cacheRefresher.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}
