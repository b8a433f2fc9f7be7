package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"habit-tracker/internal/auth"
	"habit-tracker/internal/config"
	"habit-tracker/internal/database"
	"habit-tracker/internal/logger"
	"habit-tracker/internal/query"
	"habit-tracker/internal/queue"
	"habit-tracker/internal/telemetry"
	"habit-tracker/middleware"
	"habit-tracker/routes"
	"habit-tracker/services"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
)

const serviceName = "habit-tracker-api"

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	logger.InitLogger(cfg.GinMode)
	log := logger.With("component", "api")

	if cfg.OTelEnabled {
		shutdown, err := telemetry.InitTracer(context.Background(), telemetry.TracerConfig{
			ServiceName: serviceName,
			Version:     cfg.AppVersion,
			Environment: cfg.GinMode,
			Endpoint:    cfg.OTelEndpoint,
			SampleRatio: 1,
		})
		if err != nil {
			log.Warn("Tracing disabled", "error", err)
		} else {
			defer shutdown(context.Background())
		}
	}

	metrics, err := telemetry.InitMetrics()
	if err != nil {
		log.Error("Failed to initialize metrics", "error", err)
		os.Exit(1)
	}

	// Connect to MongoDB
	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Error("Failed to connect to MongoDB", "error", err)
		os.Exit(1)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		mongoClient.Disconnect(ctx)
	}()
	db := mongoClient.Database(cfg.DBName)

	rdb, err := config.NewRedisClient(cfg)
	if err != nil {
		log.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer rdb.Close()

	queueClient := asynq.NewClient(config.AsynqRedisOpt(cfg))
	defer queueClient.Close()
	queueInspector := asynq.NewInspector(config.AsynqRedisOpt(cfg))
	defer queueInspector.Close()

	// Reads go through the executor; missing composite indexes are filed
	// with the worker instead of failing the request.
	store := database.NewStore(db, database.NewIndexCatalog(database.MongoLister(db), cfg.IndexCatalogTTL))
	statusStore := queue.NewMongoStatusStore(db)
	requester := queue.NewRequester(queueClient, queueInspector, statusStore, queue.RequesterConfig{
		RatePerSecond: cfg.IndexRequestRate,
		Burst:         5,
		MaxRetry:      cfg.IndexProvisionMaxRetry,
	}, logger.With("component", "index-requester"))

	executor := query.NewExecutor(store,
		query.WithIndexRequester(metrics.WrapRequester(requester)),
		query.WithLogger(logger.With("component", "query")),
		query.WithObserver(func(collection string, outcome query.Outcome) {
			metrics.RecordQuery(collection, string(outcome))
		}),
	)

	tokens, err := auth.NewTokenManager(cfg.AccessSecret, cfg.RefreshSecret, auth.NewRedisRegistry(rdb))
	if err != nil {
		log.Error("Failed to initialize token manager", "error", err)
		os.Exit(1)
	}

	habitService := services.NewHabitService(executor, database.NewHabitRepo(db), cfg.Location(), logger.With("component", "habits"))
	analyticsService := services.NewAnalyticsService(habitService)
	userService := services.NewUserService(database.NewUserRepo(db), tokens, logger.With("component", "users"))

	// Initialize Gin router
	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.TracingMiddleware(serviceName))
	router.Use(middleware.EnrichTrace())
	router.Use(middleware.MetricsMiddleware(metrics))
	router.Use(middleware.AccessLog(logger.With("component", "http")))
	router.Use(middleware.CORSMiddlewareWithOrigins(cfg.CORSOrigins))
	router.Use(middleware.RequestSizeLimit(cfg.MaxBodySize))
	router.Use(middleware.RateLimitMiddleware(
		middleware.NewRedisCounter(rdb),
		cfg.RateLimitReqs,
		time.Duration(cfg.RateLimitWindow)*time.Second,
		logger.With("component", "ratelimit"),
	))

	authMiddleware := middleware.NewAuthMiddleware(tokens)

	// Setup routes
	routes.SetupSystemRoutes(router, cfg.AppVersion,
		store.Ping,
		func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		statusStore, authMiddleware, log)
	routes.SetupAuthRoutes(router, userService, authMiddleware, log)
	routes.SetupUserRoutes(router, userService, authMiddleware, log)
	routes.SetupHabitRoutes(router, habitService, authMiddleware, log)
	routes.SetupAnalyticsRoutes(router, analyticsService, authMiddleware, log)

	// Create HTTP server
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info("Server starting", "port", cfg.Port, "version", cfg.AppVersion, "timezone", cfg.Timezone)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}
	// Let index requests still being filed reach the queue before the
	// client closes.
	executor.Close()

	log.Info("Server exited")
}
