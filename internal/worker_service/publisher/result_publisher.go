package publisher

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"

	"github.com/pattty847/Multi-Agent-Team/internal/models"
	"github.com/pattty847/Multi-Agent-Team/pkg/logger"
)

// ResultPublisher is responsible for publishing task results back to the
// orchestration service.
type ResultPublisher struct {
	writer *kafka.Writer
	logger *logger.Logger
}

// NewResultPublisher creates a new ResultPublisher for the results topic.
func NewResultPublisher(brokers []string, topic string, log *logger.Logger) *ResultPublisher {
	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers:  brokers,
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	})
	return &ResultPublisher{
		writer: writer,
		logger: log,
	}
}

// Publish sends a task result, keyed by workflow so the scheduler sees a
// workflow's results in order.
func (p *ResultPublisher) Publish(ctx context.Context, result *models.TaskResult) error {
	msgBytes, err := json.Marshal(result)
	if err != nil {
		p.logger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Failed to marshal task result for Kafka")
		return err
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(result.WorkflowID),
		Value: msgBytes,
	})
	if err != nil {
		p.logger.WithError(models.ErrorInfo{Message: err.Error()}).WithPayload(map[string]interface{}{
			"topic":  p.writer.Topic,
			"taskID": result.TaskID,
		}).Error("Failed to write task result to Kafka")
		return err
	}
	return nil
}

// Close closes the underlying Kafka writer.
func (p *ResultPublisher) Close() error {
	return p.writer.Close()
}
