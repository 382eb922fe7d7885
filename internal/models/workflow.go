package models

import "time"

// WorkflowStatus 定义了工作流的生命周期状态。
type WorkflowStatus string

const (
	WorkflowStatusPending    WorkflowStatus = "pending"
	WorkflowStatusPlanning   WorkflowStatus = "planning"
	WorkflowStatusRunning    WorkflowStatus = "running"
	WorkflowStatusStalled    WorkflowStatus = "stalled"
	WorkflowStatusReplanning WorkflowStatus = "replanning"
	WorkflowStatusCompleted  WorkflowStatus = "completed"
	WorkflowStatusFailed     WorkflowStatus = "failed"
	WorkflowStatusStopped    WorkflowStatus = "stopped"
)

// IsTerminal 判断工作流是否已进入终态。
func (s WorkflowStatus) IsTerminal() bool {
	return s == WorkflowStatusCompleted || s == WorkflowStatusFailed || s == WorkflowStatusStopped
}

// Workflow 代表一次完整的多 Agent 协作：一个目标被分解为带依赖关系的子任务集。
type Workflow struct {
	ID           string               `bson:"_id" json:"id"`
	UserID       string               `bson:"user_id" json:"user_id"`
	Objective    string               `bson:"objective" json:"objective"`
	Type         string               `bson:"type" json:"type"` // 例如 "research", "development", "viz"
	Status       WorkflowStatus       `bson:"status" json:"status"`
	SubTasks     []SubTask            `bson:"subtasks" json:"subtasks"`
	Assignments  map[string]AgentRole `bson:"assignments" json:"assignments"` // task id -> 主责角色
	ReplanCount  int                  `bson:"replan_count" json:"replan_count"`
	Error        string               `bson:"error,omitempty" json:"error,omitempty"`
	SubmittedAt  time.Time            `bson:"submitted_at" json:"submitted_at"`
	CompletedAt  time.Time            `bson:"completed_at,omitempty" json:"completed_at,omitempty"`
	LastProgress time.Time            `bson:"last_progress" json:"last_progress"`
}

// TasksCompleted 统计已完成的子任务数。
func (w *Workflow) TasksCompleted() int {
	n := 0
	for i := range w.SubTasks {
		if w.SubTasks[i].Status == TaskStatusCompleted {
			n++
		}
	}
	return n
}

// FindTask 按 ID 返回子任务，不存在时返回 nil。
func (w *Workflow) FindTask(taskID string) *SubTask {
	for i := range w.SubTasks {
		if w.SubTasks[i].ID == taskID {
			return &w.SubTasks[i]
		}
	}
	return nil
}

// WorkflowSummary 是工作流状态查询的轻量视图。
type WorkflowSummary struct {
	ID             string               `json:"id"`
	Objective      string               `json:"objective"`
	Status         WorkflowStatus       `json:"status"`
	TasksTotal     int                  `json:"tasks_total"`
	TasksCompleted int                  `json:"tasks_completed"`
	Assignments    map[string]AgentRole `json:"assignments"`
	ReplanCount    int                  `json:"replan_count"`
	SubmittedAt    time.Time            `json:"submitted_at"`
}

// Summary 生成工作流的轻量视图。
func (w *Workflow) Summary() WorkflowSummary {
	return WorkflowSummary{
		ID:             w.ID,
		Objective:      w.Objective,
		Status:         w.Status,
		TasksTotal:     len(w.SubTasks),
		TasksCompleted: w.TasksCompleted(),
		Assignments:    w.Assignments,
		ReplanCount:    w.ReplanCount,
		SubmittedAt:    w.SubmittedAt,
	}
}
