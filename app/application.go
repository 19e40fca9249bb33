// Package app assembles the application from its components and manages
// their lifecycle.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"

	"weathernotify.app/api"
	"weathernotify.app/config"
	"weathernotify.app/database"
	"weathernotify.app/errors"
	"weathernotify.app/jobs"
	"weathernotify.app/metrics"
	"weathernotify.app/providers"
	"weathernotify.app/providers/cache"
	"weathernotify.app/queue"
	"weathernotify.app/repository"
	"weathernotify.app/service"
)

// Application owns every long-lived component of the process.
type Application struct {
	config    *config.Config
	db        *gorm.DB
	redis     *redis.Client
	server    *api.Server
	workers   *queue.WorkerPool
	scheduler *queue.Scheduler
}

// New builds the application: storage, providers, services, pipeline,
// and the HTTP server, in dependency order.
func New(cfg *config.Config) (*Application, error) {
	db, err := database.InitDB(cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := database.RunMigrations(db); err != nil {
		return nil, err
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return nil, errors.NewConfigurationError("failed to connect to redis", err)
	}

	m := metrics.New()

	subscriptionRepo := repository.NewSubscriptionRepository(db)
	emailLogRepo := repository.NewEmailLogRepository(db)

	breakerSettings := providers.DefaultBreakerSettings()
	weatherChain := providers.NewProviderChain(m,
		providers.NewCircuitBreaker(providers.NewWeatherAPIProvider(&cfg.Weather), breakerSettings),
		providers.NewCircuitBreaker(providers.NewOpenMeteoProvider(), breakerSettings),
	)
	weatherCache := cache.NewRedisStore(redisClient)
	weatherService := service.NewWeatherService(weatherChain, weatherCache, cfg.Weather.CacheTTL, m)

	emailProvider := providers.NewSMTPEmailProvider(&cfg.Email)
	emailService := service.NewEmailService(emailProvider, cfg)

	queueStore := queue.NewRedisStore(redisClient)
	pipeline := queue.NewPipeline(queueStore, cfg.Queue.MaxRetries)

	subscriptionService := service.NewSubscriptionService(subscriptionRepo, pipeline)

	workers := queue.NewWorkerPool(queueStore, jobs.Queues(),
		queue.WithConcurrency(cfg.Queue.Concurrency),
		queue.WithPollInterval(cfg.Queue.PollInterval),
		queue.WithBackoff(queue.NewExponentialBackoff(cfg.Queue.RetryBackoff, time.Minute)),
		queue.WithMetrics(m),
	)
	workers.Register(jobs.JobConfirmEmail,
		jobs.NewConfirmEmailProcessor(emailService, emailLogRepo, m))
	workers.Register(jobs.JobSendWeatherUpdateEmail,
		jobs.NewSendWeatherUpdateProcessor(emailService, subscriptionRepo, emailLogRepo, m))
	workers.Register(jobs.JobUpdateWeatherData,
		jobs.NewUpdateWeatherDataProcessor(subscriptionRepo, weatherService, pipeline))

	scheduler := queue.NewScheduler(queueStore, cfg.Queue.SchedulerInterval, cfg.Queue.MaxRetries)

	server := api.NewServer(subscriptionService, weatherService, m)

	return &Application{
		config:    cfg,
		db:        db,
		redis:     redisClient,
		server:    server,
		workers:   workers,
		scheduler: scheduler,
	}, nil
}

// Run starts the background components and serves HTTP until the server
// stops.
func (a *Application) Run() error {
	a.workers.Start()
	a.scheduler.Start()

	addr := fmt.Sprintf(":%d", a.config.Server.Port)
	slog.Info("starting server", "addr", addr)
	return a.server.Run(addr)
}

// Shutdown stops background processing and closes connections.
func (a *Application) Shutdown() {
	slog.Info("shutting down")

	a.scheduler.Stop()
	a.workers.Stop()

	if err := a.redis.Close(); err != nil {
		slog.Error("failed to close redis connection", "error", err)
	}
	if err := database.CloseDB(a.db); err != nil {
		slog.Error("failed to close database connection", "error", err)
	}
}
