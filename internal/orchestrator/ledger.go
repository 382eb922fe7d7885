package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/pattty847/Multi-Agent-Team/internal/models"
)

// Ledger 把工作流事件追加到 MySQL 账本，并按 Agent 聚合任务成败指标。
type Ledger struct {
	db *gorm.DB
}

// NewLedger 创建账本并迁移所需的表结构。
func NewLedger(db *gorm.DB) (*Ledger, error) {
	if err := db.AutoMigrate(&models.WorkflowEvent{}, &models.AgentMetric{}); err != nil {
		return nil, fmt.Errorf("failed to migrate ledger tables: %w", err)
	}
	return &Ledger{db: db}, nil
}

// RecordEvent 追加一条账本记录。details 会被 JSON 编码后存入 Details 列。
func (l *Ledger) RecordEvent(ctx context.Context, workflowID, taskID, agentID string, eventType models.EventType, details interface{}) error {
	var encoded string
	if details != nil {
		raw, err := json.Marshal(details)
		if err != nil {
			return fmt.Errorf("failed to encode event details: %w", err)
		}
		encoded = string(raw)
	}

	event := models.WorkflowEvent{
		WorkflowID: workflowID,
		TaskID:     taskID,
		AgentID:    agentID,
		EventType:  eventType,
		Details:    encoded,
		OccurredAt: time.Now().UTC(),
	}
	if err := l.db.WithContext(ctx).Create(&event).Error; err != nil {
		return fmt.Errorf("failed to record workflow event: %w", err)
	}
	return nil
}

// RecordTaskOutcome 更新某个 Agent 的任务成败计数和成功率。
func (l *Ledger) RecordTaskOutcome(ctx context.Context, agentID string, success bool) error {
	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var metric models.AgentMetric
		err := tx.Where("agent_id = ?", agentID).First(&metric).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			metric = models.AgentMetric{AgentID: agentID}
		} else if err != nil {
			return err
		}

		if success {
			metric.SuccessfulTasks++
		} else {
			metric.FailedTasks++
		}
		total := metric.SuccessfulTasks + metric.FailedTasks
		if total > 0 {
			metric.SuccessRate = float64(metric.SuccessfulTasks) / float64(total)
		}
		return tx.Save(&metric).Error
	})
}

// Events 按时间顺序返回某个工作流的全部账本记录。
func (l *Ledger) Events(ctx context.Context, workflowID string) ([]models.WorkflowEvent, error) {
	var events []models.WorkflowEvent
	err := l.db.WithContext(ctx).
		Where("workflow_id = ?", workflowID).
		Order("occurred_at asc").
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load workflow events: %w", err)
	}
	return events, nil
}

// Metrics 返回全部 Agent 的聚合指标。
func (l *Ledger) Metrics(ctx context.Context) ([]models.AgentMetric, error) {
	var metrics []models.AgentMetric
	if err := l.db.WithContext(ctx).Order("agent_id asc").Find(&metrics).Error; err != nil {
		return nil, fmt.Errorf("failed to load agent metrics: %w", err)
	}
	return metrics, nil
}
