package models

import "time"

// TaskStatus 定义了子任务的几种可能状态。
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusReady     TaskStatus = "ready"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
)

// IsTerminal 判断任务是否已进入终态。
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// SubTask 代表由任务分解器产出的一个可独立执行的子任务。
// ID 形如 "task_0", "task_1"，Dependencies 引用同一工作流内的其他子任务 ID。
type SubTask struct {
	ID            string      `bson:"id" json:"id"`
	WorkflowID    string      `bson:"workflow_id" json:"workflow_id"`
	Description   string      `bson:"description" json:"description"`
	RequiredRoles []AgentRole `bson:"required_roles" json:"required_roles"`
	Dependencies  []string    `bson:"dependencies" json:"dependencies"`
	AssignedRole  AgentRole   `bson:"assigned_role" json:"assigned_role"`
	Status        TaskStatus  `bson:"status" json:"status"`
	Result        string      `bson:"result,omitempty" json:"result,omitempty"`
	Error         string      `bson:"error,omitempty" json:"error,omitempty"`
	Attempts      int         `bson:"attempts" json:"attempts"`
	StartedAt     time.Time   `bson:"started_at,omitempty" json:"started_at,omitempty"`
	CompletedAt   time.Time   `bson:"completed_at,omitempty" json:"completed_at,omitempty"`
}

// TaskResult 是 worker 通过结果主题回传的子任务终态。
type TaskResult struct {
	WorkflowID   string     `json:"workflow_id"`
	TaskID       string     `json:"task_id"`
	Status       TaskStatus `json:"status"`
	Result       string     `json:"result,omitempty"`
	Error        string     `json:"error,omitempty"`
	Participants []string   `json:"participants,omitempty"` // 参与执行的 Agent 名称
	WorkerID     string     `json:"worker_id,omitempty"`
	CompletedAt  time.Time  `json:"completed_at"`
}
