package agent

import (
	"context"

	"github.com/pattty847/Multi-Agent-Team/internal/llm"
	"github.com/pattty847/Multi-Agent-Team/internal/models"
)

// Agent 定义了团队中所有专家 Agent 必须实现的接口。
type Agent interface {
	// Metadata 返回 Agent 的能力描述。
	Metadata() models.AgentMetadata
	// Respond 根据当前的对话历史生成该 Agent 本轮的发言。
	Respond(ctx context.Context, history []llm.Message) (string, error)
}

// CodeRunner 在隔离的工作区中执行一段代码并返回其输出。
// 由 workspace 包实现；在测试中可以用假实现替代。
type CodeRunner interface {
	RunCode(ctx context.Context, workflowID, code string) (string, error)
}
