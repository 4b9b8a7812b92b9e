package main

import (
	"context"
	"log"

	"payflow/config"
	"payflow/internal/handler"
	"payflow/internal/middleware"
	"payflow/internal/redis"
	"payflow/internal/repository"
	"payflow/internal/server"
	"payflow/internal/services"
	"payflow/pkg/database"
	"payflow/pkg/logger"

	"github.com/joho/godotenv"
)

func main() {
	// Missing .env is fine in containerized deployments.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	l := logger.New(cfg.Server.Environment)
	logger.SetGlobalLogger(l)

	ctx := context.Background()

	db, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		l.Errorf("Failed to connect to database: %v", err)
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := repository.InitSchema(ctx, db); err != nil {
		log.Fatalf("Failed to apply migrations: %v", err)
	}

	redisClient := redis.NewClient(cfg.Redis)
	defer redisClient.Close()

	txRunner := repository.NewTxRunner(db)
	paymentRepo := repository.NewPaymentRepository(db)
	eventRepo := repository.NewEventRepository(db)

	guard := redis.NewIdempotencyGuard(redisClient)
	limiter := redis.NewRateLimiter(redisClient, cfg.Resilience)
	bus := redis.NewPublisher(redisClient)

	mutator := services.NewMutator(txRunner, paymentRepo, eventRepo, l)
	gateway := services.NewSimulatedGateway(cfg.Gateway.ApprovalRate, l)
	notifier := services.NewEventPublisher(bus, l)

	paymentService := services.NewPaymentService(
		txRunner,
		paymentRepo,
		eventRepo,
		guard,
		mutator,
		gateway,
		notifier,
		l,
		cfg.Gateway.Timeout,
	)

	breaker := middleware.NewCircuitBreaker(cfg.Resilience, l)

	srv := server.New(cfg, l)
	srv.SetupRoutes(&server.Handlers{
		Payment: handler.NewPaymentHandler(paymentService, l),
	}, db, limiter, breaker)

	if err := srv.Start(); err != nil {
		log.Fatalf("Server shutdown error: %v", err)
	}
}
