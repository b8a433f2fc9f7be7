package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"habit-tracker/internal/config"
	"habit-tracker/internal/database"
	"habit-tracker/internal/logger"
	"habit-tracker/internal/queue"
	"habit-tracker/services"

	"github.com/hibiken/asynq"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	logger.InitLogger(cfg.GinMode)
	log := logger.With("component", "worker")

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

	store := database.NewStore(db, database.NewIndexCatalog(database.MongoLister(db), cfg.IndexCatalogTTL))
	statusStore := queue.NewMongoStatusStore(db)

	// Redis options for Asynq
	redisOpt := config.AsynqRedisOpt(cfg)

	// Create Asynq server
	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: cfg.WorkerConcurrency,
			Queues: map[string]int{
				queue.QueueLow: 1,
			},
			RetryDelayFunc: queue.RetryDelay,
			Logger:         newAsynqLogger(logger.With("component", "asynq")),
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				retried, _ := asynq.GetRetryCount(ctx)
				maxRetry, _ := asynq.GetMaxRetry(ctx)
				log.Error("Task failed", "type", task.Type(), "retried", retried, "max_retry", maxRetry, "error", err)
			}),
		},
	)

	// Create task processor
	processor := queue.NewTaskProcessor(store, statusStore, logger.With("component", "provisioner"))

	// Create mux and register handlers
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TaskProvisionIndex, processor.ProvisionIndex)

	// The reconciler resubmits through its own client so stale requests reach
	// the queue even when the API is down.
	client := asynq.NewClient(redisOpt)
	defer client.Close()
	inspector := asynq.NewInspector(redisOpt)
	defer inspector.Close()
	requester := queue.NewRequester(client, inspector, statusStore, queue.RequesterConfig{
		RatePerSecond: cfg.IndexRequestRate,
		Burst:         5,
		MaxRetry:      cfg.IndexProvisionMaxRetry,
	}, logger.With("component", "index-requester"))

	reconciler := services.NewIndexReconciler(statusStore, store, requester, logger.With("component", "reconciler"))
	cron := services.NewCronService(reconciler, cfg.IndexReconcileInterval, logger.With("component", "cron"))
	if err := cron.Start(); err != nil {
		log.Error("Failed to start reconciler", "error", err)
		os.Exit(1)
	}
	defer cron.Stop()

	log.Info("Starting Asynq worker",
		"concurrency", cfg.WorkerConcurrency,
		"queue", queue.QueueLow,
		"redis", redisOpt.Addr,
	)

	if err := server.Start(mux); err != nil {
		log.Error("Failed to start worker", "error", err)
		os.Exit(1)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down worker...")
	server.Shutdown()
}
