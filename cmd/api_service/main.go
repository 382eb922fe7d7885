package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/pattty847/Multi-Agent-Team/internal/api_service/api"
	"github.com/pattty847/Multi-Agent-Team/internal/api_service/consumer"
	"github.com/pattty847/Multi-Agent-Team/internal/api_service/publisher"
	"github.com/pattty847/Multi-Agent-Team/internal/api_service/service"
	"github.com/pattty847/Multi-Agent-Team/internal/api_service/store"
	"github.com/pattty847/Multi-Agent-Team/internal/config"
	"github.com/pattty847/Multi-Agent-Team/internal/database/kafka"
	"github.com/pattty847/Multi-Agent-Team/internal/database/mongo"
	"github.com/pattty847/Multi-Agent-Team/internal/database/mysql"
	"github.com/pattty847/Multi-Agent-Team/internal/discovery/etcd"
	"github.com/pattty847/Multi-Agent-Team/internal/llm"
	"github.com/pattty847/Multi-Agent-Team/internal/models"
	"github.com/pattty847/Multi-Agent-Team/internal/orchestrator"
	"github.com/pattty847/Multi-Agent-Team/pkg/circuitbreaker"
	"github.com/pattty847/Multi-Agent-Team/pkg/logger"
)

const workflowCollection = "workflows"

func main() {
	// Load configuration
	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logLevel, err := logrus.ParseLevel(cfg.Logger.Level)
	if err != nil {
		log.Fatalf("Invalid logger level: %v", err)
	}
	logger.Init(logLevel)
	serviceLogger := logger.New("api_service", "", "")

	// Connect to MongoDB using the singleton GetClient
	mongoClient, err := mongo.GetClient(&cfg.Databases.MongoDB)
	if err != nil {
		serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Fatal("Failed to connect to MongoDB")
	}
	db := mongoClient.Database(cfg.Databases.MongoDB.Database)
	serviceLogger.Info("Successfully connected to MongoDB")

	// Connect to MySQL for the workflow ledger
	gormDB, err := mysql.GetDB(&cfg.Databases.MySQL)
	if err != nil {
		serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Fatal("Failed to connect to MySQL")
	}
	ledger, err := orchestrator.NewLedger(gormDB)
	if err != nil {
		serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Fatal("Failed to migrate ledger schema")
	}

	// Ensure Kafka topics exist
	kafkaClient, err := kafka.GetClient(&cfg.Databases.Kafka)
	if err != nil {
		serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Fatal("Failed to initialize Kafka")
	}

	// Service discovery for worker replicas
	discovery, err := etcd.NewServiceDiscovery(cfg.Databases.Etcd.Endpoints)
	if err != nil {
		serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Fatal("Failed to connect to etcd")
	}

	// LLM client for task decomposition
	llmClient, err := llm.NewClient(cfg.LLM)
	if err != nil {
		serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Fatal("Failed to create LLM client")
	}
	if cfg.Middleware.CircuitBreaker.Enabled {
		timeout, parseErr := time.ParseDuration(cfg.Middleware.CircuitBreaker.Timeout)
		if parseErr != nil {
			timeout = 30 * time.Second
		}
		llmClient = llm.WithCircuitBreaker(llmClient, circuitbreaker.New(
			cfg.Middleware.CircuitBreaker.FailureThreshold,
			cfg.Middleware.CircuitBreaker.SuccessThreshold,
			timeout,
		))
	}

	// Create components with logger injection
	workflowStore := store.NewMongoWorkflowStore(db, workflowCollection)
	taskPublisher := publisher.NewTaskPublisher(cfg.Databases.Kafka.Brokers, cfg.Databases.Kafka.TasksTopic, serviceLogger)
	eventPublisher := kafka.NewEventPublisher(cfg.Databases.Kafka.Brokers, cfg.Databases.Kafka.EventsTopic)
	decomposer := orchestrator.NewDecomposer(llmClient)
	scheduler := orchestrator.NewScheduler(cfg.Orchestrator, workflowStore, taskPublisher, eventPublisher, ledger)
	orchestratorService := service.NewOrchestratorService(workflowStore, decomposer, scheduler, discovery, serviceLogger)
	resultConsumer := consumer.NewResultConsumer(cfg.Databases.Kafka.Brokers, cfg.Databases.Kafka.ResultsTopic,
		"api-service-group", serviceLogger)

	// Start the stall watchdog and the result consumer
	ctx, cancel := context.WithCancel(context.Background())
	scheduler.Start(ctx)
	resultConsumer.Start(ctx, orchestratorService.HandleResult)
	serviceLogger.Info("Scheduler and Kafka result consumer started")

	// Setup HTTP server
	gin.SetMode(gin.ReleaseMode)
	router := gin.Default()
	apiHandler := api.NewAPI(orchestratorService, serviceLogger)
	api.RegisterRoutes(router, apiHandler, cfg)

	srv := &http.Server{
		Addr:    cfg.Services.APIAddress,
		Handler: router,
	}

	// Start server
	go func() {
		serviceLogger.Info("Starting HTTP server on " + srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Fatal("HTTP server failed to start")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	serviceLogger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Fatal("Server forced to shutdown")
	}

	cancel()
	if err := taskPublisher.Close(); err != nil {
		serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Error closing Kafka task publisher")
	}
	if err := eventPublisher.Close(); err != nil {
		serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Error closing Kafka event publisher")
	}
	if err := resultConsumer.Close(); err != nil {
		serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Error closing Kafka consumer")
	}
	if err := kafkaClient.Close(); err != nil {
		serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Error closing Kafka admin connection")
	}
	if err := discovery.Close(); err != nil {
		serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Error closing etcd client")
	}
	if err := mysql.Close(); err != nil {
		serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Error closing MySQL connection")
	}
	if err := mongo.Close(context.Background()); err != nil {
		serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Error disconnecting from MongoDB")
	}

	serviceLogger.Info("Server gracefully stopped")
}
