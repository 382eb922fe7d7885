package models

import "time"

// AgentRole 定义了系统支持的五种专家 Agent 角色。
type AgentRole string

const (
	RoleResearch AgentRole = "research" // 资料收集与分析
	RoleCode     AgentRole = "code"     // 编程与技术任务
	RoleViz      AgentRole = "viz"      // 数据可视化与展示
	RoleQA       AgentRole = "qa"       // 质量保证与测试
	RolePM       AgentRole = "pm"       // 项目管理与协调
)

// AllRoles 按固定顺序列出全部角色，供校验和默认团队编排使用。
var AllRoles = []AgentRole{RoleResearch, RoleCode, RoleViz, RoleQA, RolePM}

// IsValidRole 判断给定字符串是否为已知的 Agent 角色。
func IsValidRole(role string) bool {
	for _, r := range AllRoles {
		if string(r) == role {
			return true
		}
	}
	return false
}

// AgentStatus 定义了 Agent 在监控视图中的几种可能状态。
type AgentStatus string

const (
	AgentStatusIdle   AgentStatus = "idle"
	AgentStatusActive AgentStatus = "active"
	AgentStatusBusy   AgentStatus = "busy"
	AgentStatusError  AgentStatus = "error"
)

// AgentState 表示单个 Agent 的实时状态快照，供监控服务展示。
type AgentState struct {
	Name           string      `json:"name"`
	Role           AgentRole   `json:"role"`
	Status         AgentStatus `json:"status"`
	WorkflowID     string      `json:"workflow_id,omitempty"`
	CurrentTask    string      `json:"current_task,omitempty"`
	TasksCompleted int         `json:"tasks_completed"`
	CPUPercent     float64     `json:"cpu_percent"`
	MemoryMB       float64     `json:"memory_mb"`
	LastActive     time.Time   `json:"last_active"`
}

// AgentMetadata 包含了描述一个 Agent 能力所需的所有信息。
type AgentMetadata struct {
	Name        string    `json:"name"`        // Agent 的唯一名称，用作标识符
	Role        AgentRole `json:"role"`        // Agent 承担的角色
	Description string    `json:"description"` // 对 Agent 能力的总体描述
}
