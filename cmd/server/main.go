package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/dynastyhq/dynasty-backend/internal/api"
	"github.com/dynastyhq/dynasty-backend/internal/api/handlers"
	"github.com/dynastyhq/dynasty-backend/internal/api/middleware"
	"github.com/dynastyhq/dynasty-backend/internal/cache"
	"github.com/dynastyhq/dynasty-backend/internal/services"
	"github.com/dynastyhq/dynasty-backend/internal/source"
	"github.com/dynastyhq/dynasty-backend/pkg/config"
	"github.com/dynastyhq/dynasty-backend/pkg/database"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	// Setup logging
	logger := logrus.StandardLogger()
	if cfg.IsDevelopment() {
		logger.SetLevel(logrus.DebugLevel)
		gin.SetMode(gin.DebugMode)
	} else {
		logger.SetLevel(logrus.InfoLevel)
		logger.SetFormatter(&logrus.JSONFormatter{})
		gin.SetMode(gin.ReleaseMode)
	}

	// Connect to database
	db, err := database.NewConnection(cfg.DatabaseURL, cfg.IsDevelopment())
	if err != nil {
		logrus.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Connect to Redis if configured; the response memo cache is optional
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logrus.Fatalf("Failed to parse Redis URL: %v", err)
		}
		redisClient = redis.NewClient(opt)
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logrus.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisClient.Close()
	}
	responseCache := services.NewResponseCache(redisClient, cfg.ResponseCacheTTL)

	// Build the stats source from configuration
	statsSource, err := source.New(source.Settings{
		Kind:             cfg.StatsSource,
		PythonBin:        cfg.PythonBin,
		ScriptPath:       cfg.StatsScriptPath,
		ServiceURL:       cfg.StatsServiceURL,
		Timeout:          cfg.ExtractTimeout,
		RatePerMinute:    cfg.StatsRateLimit,
		BreakerThreshold: cfg.CircuitBreakerThreshold,
	}, logger)
	if err != nil {
		logrus.Fatalf("Failed to build stats source: %v", err)
	}

	logger.WithFields(logrus.Fields{
		"stats_source":  statsSource.Name(),
		"cache_enabled": cfg.CacheEnabled,
	}).Info("Starting dynasty backend")

	// Initialize the cache orchestrator
	orchestrator := cache.NewOrchestrator(db, statsSource, logger)
	orchestrator.SetCacheEnabled(cfg.CacheEnabled)

	// Background maintenance jobs
	var scheduler *services.MaintenanceScheduler
	if cfg.EnableBackgroundJobs {
		scheduler = services.NewMaintenanceScheduler(
			orchestrator,
			logger,
			cfg.ExpirySweepSchedule,
			cfg.CacheWarmSchedule,
			cfg.WarmSeasons,
			cfg.WarmPositions,
		)
		if err := scheduler.Start(); err != nil {
			logrus.Errorf("Failed to start maintenance scheduler: %v", err)
		} else {
			defer scheduler.Stop()
		}
	}

	// Setup Gin router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(logger))
	router.Use(middleware.CORS(cfg.CorsOrigins))

	// Health check endpoints
	healthHandler := handlers.NewHealthHandler(db, responseCache, scheduler, logger)
	router.GET("/health", healthHandler.GetHealth)
	router.GET("/ready", healthHandler.GetReady)

	// Setup API routes under /api/v1
	apiV1 := router.Group("/api/v1")
	api.SetupRoutes(apiV1, orchestrator, responseCache, logger)

	// Setup server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 3 * time.Minute, // extraction fetch-through can take ~2 minutes
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logrus.Infof("Starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}

	logrus.Info("Server exited")
}
