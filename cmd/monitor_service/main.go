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

	"github.com/pattty847/Multi-Agent-Team/internal/config"
	"github.com/pattty847/Multi-Agent-Team/internal/database/redis"
	"github.com/pattty847/Multi-Agent-Team/internal/models"
	"github.com/pattty847/Multi-Agent-Team/internal/monitor"
	"github.com/pattty847/Multi-Agent-Team/pkg/logger"
)

const (
	// Matches the original monitor's 0.1s node update interval.
	broadcastInterval = 100 * time.Millisecond
	maxBufferedNodes  = 100
	metricsInterval   = time.Second
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
	serviceLogger := logger.New("monitor_service", "", "")

	// Redis keeps agent state across monitor restarts
	redisClient, err := redis.GetClient(&cfg.Databases.Redis)
	if err != nil {
		serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Warn("Redis unavailable, agent state will not survive restarts")
		redisClient = nil
	}

	buffer := monitor.NewNodeUpdateBuffer(maxBufferedNodes, broadcastInterval)
	tracker := monitor.NewStateTracker(buffer, redisClient)

	ctx, cancel := context.WithCancel(context.Background())
	if err := tracker.Restore(ctx); err != nil {
		serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Warn("Failed to restore agent state from Redis")
	}

	// Consume monitoring events from Kafka
	eventConsumer := monitor.NewEventConsumer(cfg.Databases.Kafka.Brokers, cfg.Databases.Kafka.EventsTopic,
		"monitor-service-group", tracker, serviceLogger)
	eventConsumer.Start(ctx)
	serviceLogger.Info("Kafka event consumer started")

	// Sample host CPU and memory
	collector := monitor.NewCollector(tracker, metricsInterval)
	collector.Start(ctx)

	// Setup HTTP server
	gin.SetMode(gin.ReleaseMode)
	router := gin.Default()
	hub := monitor.NewHub()
	apiHandler := monitor.NewAPI(tracker, buffer, hub, serviceLogger)
	apiHandler.StartBroadcasting(ctx, broadcastInterval)
	monitor.RegisterRoutes(router, apiHandler)

	srv := &http.Server{
		Addr:    cfg.Services.MonitorAddress,
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
	serviceLogger.Info("Shutting down monitor...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Fatal("Server forced to shutdown")
	}

	cancel()
	if err := eventConsumer.Close(); err != nil {
		serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Error closing Kafka consumer")
	}
	if redisClient != nil {
		if err := redis.Close(); err != nil {
			serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Error closing Redis client")
		}
	}

	serviceLogger.Info("Monitor gracefully stopped")
}
