package models

import (
	"time"

	"gorm.io/gorm"
)

// EventType 标识了事件总线上各类事件的种类。
type EventType string

const (
	EventWorkflowStarted   EventType = "workflow_started"
	EventWorkflowUpdated   EventType = "workflow_updated"
	EventWorkflowCompleted EventType = "workflow_completed"
	EventWorkflowFailed    EventType = "workflow_failed"
	EventWorkflowStalled   EventType = "workflow_stalled"
	EventWorkflowReplanned EventType = "workflow_replanned"
	EventTaskScheduled     EventType = "task_scheduled"
	EventTaskCompleted     EventType = "task_completed"
	EventTaskFailed        EventType = "task_failed"
	EventAgentStatus       EventType = "agent_status"
	EventInteraction       EventType = "interaction"
)

// Interaction 记录了一次 Agent 之间的消息传递，供监控端绘制消息流。
type Interaction struct {
	WorkflowID string    `json:"workflow_id"`
	TaskID     string    `json:"task_id,omitempty"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	Preview    string    `json:"preview"` // 消息内容截断后的预览
	Timestamp  time.Time `json:"timestamp"`
}

// Event 是事件主题上的统一信封，按 Type 填充对应的负载字段。
type Event struct {
	Type        EventType       `json:"type"`
	WorkflowID  string          `json:"workflow_id,omitempty"`
	TaskID      string          `json:"task_id,omitempty"`
	AgentState  *AgentState     `json:"agent_state,omitempty"`
	Interaction *Interaction    `json:"interaction,omitempty"`
	Workflow    *WorkflowSummary `json:"workflow,omitempty"`
	Detail      string          `json:"detail,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
}

// WorkflowEvent 是工作流账本中的一条持久化记录。
type WorkflowEvent struct {
	gorm.Model

	WorkflowID string    `gorm:"index;size:64;not null" json:"workflow_id"`
	TaskID     string    `gorm:"size:64" json:"task_id,omitempty"`
	AgentID    string    `gorm:"size:128" json:"agent_id,omitempty"`
	EventType  EventType `gorm:"size:64;not null" json:"event_type"`
	Details    string    `gorm:"type:text" json:"details,omitempty"` // JSON 编码的事件细节
	OccurredAt time.Time `gorm:"index;not null" json:"occurred_at"`
}

// AgentMetric 按 Agent 聚合任务成败，用于角色再分配时的参考。
type AgentMetric struct {
	gorm.Model

	AgentID         string  `gorm:"uniqueIndex;size:128;not null" json:"agent_id"`
	SuccessfulTasks int     `gorm:"not null;default:0" json:"successful_tasks"`
	FailedTasks     int     `gorm:"not null;default:0" json:"failed_tasks"`
	SuccessRate     float64 `gorm:"not null;default:0" json:"success_rate"`
}
