package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"cinema-ticketing/cmd"
	"cinema-ticketing/internal/data/repository"
	"cinema-ticketing/internal/notification"
	"cinema-ticketing/internal/wire"
	"cinema-ticketing/pkg/database"
	"cinema-ticketing/pkg/lock"
	"cinema-ticketing/pkg/utils"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	// Load config
	config, err := utils.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logger, err := utils.InitLogger(config.App.Name, config.App.LogPath, config.App.Debug)
	if err != nil {
		log.Printf("Failed to init logger: %v. Using standard log.", err)
		logger, _ = zap.NewProduction()
	}
	defer logger.Sync()

	logger.Info("Starting application",
		zap.String("port", config.App.Port),
		zap.Bool("debug", config.App.Debug),
		zap.String("lock_driver", config.Lock.Driver),
		zap.String("notify_driver", config.Notify.Driver),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to database
	db, err := database.InitDB(config.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := database.Migrate(ctx, db); err != nil {
		logger.Fatal("Failed to apply schema", zap.Error(err))
	}
	logger.Info("Database connected successfully")

	// Per-schedule lock
	locker, redisClient, err := newLocker(ctx, config, logger)
	if err != nil {
		logger.Fatal("Failed to initialize schedule lock", zap.Error(err))
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	// Confirmation delivery
	notifier := notification.NewNotifier(newDispatcher(config, logger), config.Notify.Timeout, logger)

	// Initialize all repositories and wire dependencies
	repos := repository.NewRepository(db, logger)
	app := wire.Wiring(repos, locker, notifier, config, logger)

	var jobs sync.WaitGroup
	jobs.Add(1)
	go func() {
		defer jobs.Done()
		cmd.RunScheduleSweeper(ctx, app.Service.Schedule, config.App.SweepInterval, logger)
	}()

	if err := cmd.APIServer(ctx, app.Router, config.App.Port, logger); err != nil {
		logger.Error("HTTP server stopped", zap.Error(err))
	}
	stop()
	jobs.Wait()

	drainCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := notifier.Close(drainCtx); err != nil {
		logger.Warn("Failed to close notifier", zap.Error(err))
	}

	logger.Info("Shutdown complete")
}

func newLocker(ctx context.Context, config *utils.Config, logger *zap.Logger) (lock.Locker, *redis.Client, error) {
	if config.Lock.Driver != "redis" {
		return lock.NewLocalLocker(), nil, nil
	}

	client, err := lock.NewRedisClient(ctx, config.Redis.Addr, config.Redis.Password, config.Redis.DB)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("Redis connected", zap.String("addr", config.Redis.Addr))
	return lock.NewRedisLocker(client, config.Lock.TTL, logger), client, nil
}

func newDispatcher(config *utils.Config, logger *zap.Logger) notification.Dispatcher {
	if config.Notify.Driver == "amqp" {
		return notification.NewAMQPDispatcher(config.Notify.RabbitMQURL, config.Notify.Queue, logger)
	}
	return notification.NewLogDispatcher(logger)
}
