package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/pattty847/Multi-Agent-Team/internal/config"
	"github.com/pattty847/Multi-Agent-Team/internal/database/kafka"
	"github.com/pattty847/Multi-Agent-Team/internal/database/minio"
	"github.com/pattty847/Multi-Agent-Team/internal/discovery/etcd"
	"github.com/pattty847/Multi-Agent-Team/internal/llm"
	"github.com/pattty847/Multi-Agent-Team/internal/models"
	"github.com/pattty847/Multi-Agent-Team/internal/worker_service/consumer"
	"github.com/pattty847/Multi-Agent-Team/internal/worker_service/publisher"
	"github.com/pattty847/Multi-Agent-Team/internal/worker_service/service"
	"github.com/pattty847/Multi-Agent-Team/internal/worker_service/store"
	"github.com/pattty847/Multi-Agent-Team/internal/workspace"
	"github.com/pattty847/Multi-Agent-Team/pkg/circuitbreaker"
	"github.com/pattty847/Multi-Agent-Team/pkg/logger"
)

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
	serviceLogger := logger.New("worker_service", "", "")

	// Each replica gets a stable identity for the lifetime of the process.
	hostname, _ := os.Hostname()
	workerID := fmt.Sprintf("%s-%s", hostname, uuid.New().String()[:8])

	// Ensure Kafka topics exist
	kafkaClient, err := kafka.GetClient(&cfg.Databases.Kafka)
	if err != nil {
		serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Fatal("Failed to initialize Kafka")
	}

	// LLM client powering the agent team
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

	// Docker workspace for sandboxed code execution
	ctx, cancel := context.WithCancel(context.Background())
	workspaceManager, err := workspace.NewManager(cfg.Workspace)
	if err != nil {
		serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Fatal("Failed to create workspace manager")
	}
	if err := workspaceManager.EnsureVolumes(ctx); err != nil {
		serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Fatal("Failed to ensure workspace volumes")
	}
	if err := workspaceManager.CleanupUnused(ctx); err != nil {
		serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Warn("Failed to clean up leftover containers")
	}

	// MinIO for workflow artifacts
	var artifactStore service.ArtifactUploader
	minioClient, err := minio.GetClient(&cfg.Databases.MinIO)
	if err != nil {
		serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Warn("MinIO unavailable, artifact upload disabled")
	} else {
		artifactStore = store.NewArtifactStore(minioClient, cfg.Databases.MinIO.Bucket, serviceLogger)
	}

	// Register this replica in etcd so the API can list workers
	discovery, err := etcd.NewServiceDiscovery(cfg.Databases.Etcd.Endpoints)
	if err != nil {
		serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Fatal("Failed to connect to etcd")
	}
	stopHeartbeat, err := discovery.Register("worker_service", workerID, cfg.Services.WorkerTTL)
	if err != nil {
		serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Fatal("Failed to register worker in etcd")
	}
	serviceLogger.Info("Worker registered in etcd as " + workerID)

	// Create components with logger injection
	resultPublisher := publisher.NewResultPublisher(cfg.Databases.Kafka.Brokers, cfg.Databases.Kafka.ResultsTopic, serviceLogger)
	eventPublisher := kafka.NewEventPublisher(cfg.Databases.Kafka.Brokers, cfg.Databases.Kafka.EventsTopic)
	coordinator := service.NewCoordinator(workerID, llmClient, workspaceManager, resultPublisher,
		eventPublisher, artifactStore, cfg.Orchestrator.MaxRounds, serviceLogger)
	taskConsumer := consumer.NewTaskConsumer(cfg.Databases.Kafka.Brokers, cfg.Databases.Kafka.TasksTopic,
		"worker-service-group", serviceLogger)

	taskConsumer.Start(ctx, coordinator.ProcessTask)
	serviceLogger.Info("Kafka task consumer started")

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	serviceLogger.Info("Shutting down worker...")

	close(stopHeartbeat)
	cancel()
	if err := taskConsumer.Close(); err != nil {
		serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Error closing Kafka consumer")
	}
	if err := resultPublisher.Close(); err != nil {
		serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Error closing Kafka result publisher")
	}
	if err := eventPublisher.Close(); err != nil {
		serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Error closing Kafka event publisher")
	}
	if err := kafkaClient.Close(); err != nil {
		serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Error closing Kafka admin connection")
	}
	if err := discovery.Close(); err != nil {
		serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Error closing etcd client")
	}

	serviceLogger.Info("Worker gracefully stopped")
}
