package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/pattty847/Multi-Agent-Team/internal/llm"
	"github.com/pattty847/Multi-Agent-Team/internal/models"
)

const researchSystemMessage = `You are a research specialist focused on analyzing academic papers and research findings.
Your strengths include:
1. Summarizing complex research papers
2. Identifying key findings and methodologies
3. Comparing different research approaches
4. Suggesting relevant papers and citations

Always structure your responses clearly and cite sources when available.
Include links to papers when possible.`

const codeSystemMessage = `You are a code expert specialized in:
1. Code review and optimization
2. Best practices and design patterns
3. Performance analysis
4. Security review

When analyzing code:
1. First identify potential issues
2. Suggest specific improvements
3. Provide example code when helpful
4. Consider both functionality and maintainability

When code needs to be executed, wrap it in a fenced python block.`

const vizSystemMessage = `You are a data visualization specialist who excels at:
1. Creating clear and informative visualizations
2. Choosing appropriate chart types
3. Color theory and accessibility
4. Interactive visualization design

Always consider:
1. The target audience
2. The story the data tells
3. Best practices in visualization
4. Performance and interactivity`

const qaSystemMessage = `You are a QA specialist focused on:
1. Test case design
2. Edge case identification
3. Performance testing
4. User experience testing

Always:
1. Think about potential failure modes
2. Consider different user scenarios
3. Verify requirements are met
4. Document test results clearly`

const pmSystemMessage = `You are a project manager responsible for:
1. Task coordination between different agents
2. Workflow optimization
3. Progress tracking
4. Resource allocation

Your role is to:
1. Break down complex tasks
2. Assign work to appropriate specialists
3. Monitor progress and handle blockers
4. Ensure quality and completeness

When the task is fully solved and verified, end your message with TERMINATE.`

// assistant 是基于 LLM 的 Agent 通用实现，各专家 Agent 仅在系统提示词上不同。
type assistant struct {
	meta         models.AgentMetadata
	systemPrompt string
	client       llm.LLM
}

func newAssistant(name string, role models.AgentRole, description, systemPrompt string, client llm.LLM) *assistant {
	return &assistant{
		meta: models.AgentMetadata{
			Name:        name,
			Role:        role,
			Description: description,
		},
		systemPrompt: systemPrompt,
		client:       client,
	}
}

func (a *assistant) Metadata() models.AgentMetadata {
	return a.meta
}

func (a *assistant) Respond(ctx context.Context, history []llm.Message) (string, error) {
	messages := make([]llm.Message, 0, len(history)+1)
	messages = append(messages, llm.Message{Role: llm.SpeakerSystem, Content: a.systemPrompt})
	messages = append(messages, history...)

	resp, err := a.client.GenerateContent(ctx, &llm.GenerateContentRequest{Messages: messages})
	if err != nil {
		return "", fmt.Errorf("agent %s failed to respond: %w", a.meta.Name, err)
	}
	return resp.Text, nil
}

// NewResearchAgent 创建研究专家。擅长信息收集与文献分析。
func NewResearchAgent(client llm.LLM) Agent {
	return newAssistant("research_assistant", models.RoleResearch,
		"Gathers and analyzes information, papers and sources", researchSystemMessage, client)
}

// NewVisualizationAgent 创建数据可视化专家。
func NewVisualizationAgent(client llm.LLM) Agent {
	return newAssistant("visualization_expert", models.RoleViz,
		"Designs charts and data presentations", vizSystemMessage, client)
}

// NewQAAgent 创建测试与质量保障专家。
func NewQAAgent(client llm.LLM) Agent {
	return newAssistant("qa_expert", models.RoleQA,
		"Designs test cases and verifies results", qaSystemMessage, client)
}

// NewProjectManagerAgent 创建项目经理。负责协调并在任务完成时发出终止标记。
func NewProjectManagerAgent(client llm.LLM) Agent {
	return newAssistant("project_manager", models.RolePM,
		"Coordinates the team and tracks progress", pmSystemMessage, client)
}

// codeAgent 在通用 assistant 的基础上增加代码执行能力：
// 回复中的 python 代码块会被送入工作区容器执行，输出追加在回复之后。
type codeAgent struct {
	*assistant
	runner     CodeRunner
	workflowID string
}

// NewCodeAgent 创建代码专家。runner 为 nil 时只生成代码而不执行。
func NewCodeAgent(client llm.LLM, runner CodeRunner, workflowID string) Agent {
	return &codeAgent{
		assistant: newAssistant("code_expert", models.RoleCode,
			"Writes, reviews and executes code", codeSystemMessage, client),
		runner:     runner,
		workflowID: workflowID,
	}
}

func (c *codeAgent) Respond(ctx context.Context, history []llm.Message) (string, error) {
	reply, err := c.assistant.Respond(ctx, history)
	if err != nil {
		return "", err
	}
	if c.runner == nil {
		return reply, nil
	}

	blocks := ExtractCodeBlocks(reply)
	if len(blocks) == 0 {
		return reply, nil
	}

	var sb strings.Builder
	sb.WriteString(reply)
	for _, block := range blocks {
		output, runErr := c.runner.RunCode(ctx, c.workflowID, block)
		if runErr != nil {
			sb.WriteString(fmt.Sprintf("\n\nExecution error:\n```\n%s\n```", runErr.Error()))
			continue
		}
		sb.WriteString(fmt.Sprintf("\n\nExecution output:\n```\n%s\n```", strings.TrimRight(output, "\n")))
	}
	return sb.String(), nil
}

// ExtractCodeBlocks 从 markdown 文本中提取 python 围栏代码块的内容。
func ExtractCodeBlocks(text string) []string {
	var blocks []string
	lines := strings.Split(text, "\n")
	var current []string
	inBlock := false

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if !inBlock {
			if trimmed == "```python" || trimmed == "```py" {
				inBlock = true
				current = current[:0]
			}
			continue
		}
		if trimmed == "```" {
			inBlock = false
			if len(current) > 0 {
				blocks = append(blocks, strings.Join(current, "\n"))
			}
			continue
		}
		current = append(current, line)
	}
	return blocks
}

// NewTeamRegistry 构建包含全部五名专家的注册表。
func NewTeamRegistry(client llm.LLM, runner CodeRunner, workflowID string) *Registry {
	r := NewRegistry()
	r.Register(NewResearchAgent(client))
	r.Register(NewCodeAgent(client, runner, workflowID))
	r.Register(NewVisualizationAgent(client))
	r.Register(NewQAAgent(client))
	r.Register(NewProjectManagerAgent(client))
	return r
}
