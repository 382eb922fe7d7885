package monitor

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"

	"github.com/pattty847/Multi-Agent-Team/internal/models"
	"github.com/pattty847/Multi-Agent-Team/pkg/logger"
)

// EventConsumer 消费事件主题，把事件应用到状态跟踪器。
type EventConsumer struct {
	reader  *kafka.Reader
	tracker *StateTracker
	logger  *logger.Logger
}

// NewEventConsumer 创建事件消费者。
func NewEventConsumer(brokers []string, topic, groupID string, tracker *StateTracker, log *logger.Logger) *EventConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		GroupID:  groupID,
		Topic:    topic,
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})
	return &EventConsumer{reader: reader, tracker: tracker, logger: log}
}

// Start 启动消费循环，直到 ctx 结束。
func (c *EventConsumer) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				c.logger.Info("Stopping monitor event consumer...")
				return
			default:
				msg, err := c.reader.FetchMessage(ctx)
				if err != nil {
					if ctx.Err() == nil {
						c.logger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Error fetching event from Kafka")
					}
					continue
				}

				var event models.Event
				if err := json.Unmarshal(msg.Value, &event); err != nil {
					c.logger.WithError(models.ErrorInfo{Message: err.Error()}).WithPayload(map[string]interface{}{
						"topic":  msg.Topic,
						"offset": msg.Offset,
					}).Error("Dropping undecodable event")
				} else {
					c.tracker.Apply(ctx, &event)
				}

				if err := c.reader.CommitMessages(ctx, msg); err != nil {
					c.logger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Failed to commit event message")
				}
			}
		}
	}()
}

// Close 关闭底层的 Kafka reader。
func (c *EventConsumer) Close() error {
	return c.reader.Close()
}
