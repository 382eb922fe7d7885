package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pattty847/Multi-Agent-Team/internal/models"
	"github.com/segmentio/kafka-go"
)

// EventPublisher 封装了向事件主题发送监控事件的逻辑。
// 编排器和 worker 都通过它向监控服务广播状态变化。
type EventPublisher struct {
	writer *kafka.Writer
}

// NewEventPublisher 创建一个新的 EventPublisher 实例。
func NewEventPublisher(brokers []string, topic string) *EventPublisher {
	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers:      brokers,
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		BatchSize:    100,
	})
	return &EventPublisher{writer: writer}
}

// Publish 将事件序列化为 JSON 并发送到事件主题。
// 事件按工作流 ID 作为 key，保证同一工作流的事件有序。
func (p *EventPublisher) Publish(ctx context.Context, event *models.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	jsonData, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.WorkflowID),
		Value: jsonData,
	})
	if err != nil {
		return fmt.Errorf("failed to write event to kafka: %w", err)
	}

	return nil
}

// Close 关闭底层的 writer 连接。
func (p *EventPublisher) Close() error {
	return p.writer.Close()
}
