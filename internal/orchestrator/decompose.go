package orchestrator

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/pattty847/Multi-Agent-Team/internal/llm"
	"github.com/pattty847/Multi-Agent-Team/internal/models"
)

// decomposerSystemMessage 约定了分解器输出的行格式，解析器严格依赖该格式。
const decomposerSystemMessage = `You are an expert at breaking down complex tasks into smaller, manageable subtasks.
For each subtask, provide:
1. A clear description
2. Required agent types (must include at least one of: research, code, viz, qa, pm)
3. Any dependencies on other subtasks

Format each subtask as:
### Subtask [number]: [title]
Description: [detailed description]
Required Agents: [comma-separated list of required agents]
Dependencies: [comma-separated list of subtask numbers or 'none']

Example:
### Subtask 1: Research Latest Papers
Description: Gather and analyze recent research papers on the topic
Required Agents: research, qa
Dependencies: none

Available agent types:
- research: For gathering and analyzing information
- code: For programming and technical tasks
- viz: For data visualization and presentation
- qa: For quality assurance and testing
- pm: For project management and coordination`

// Decomposer 调用 LLM 把一个目标拆解为带依赖关系的子任务列表。
type Decomposer struct {
	client llm.LLM
}

// NewDecomposer 创建一个任务分解器。
func NewDecomposer(client llm.LLM) *Decomposer {
	return &Decomposer{client: client}
}

// Decompose 请求 LLM 按约定格式拆解目标，并把回复解析为子任务。
func (d *Decomposer) Decompose(ctx context.Context, workflowID, objective string) ([]*models.SubTask, error) {
	prompt := fmt.Sprintf(`Please break down this task into subtasks:
%s

Follow the format specified in your instructions, ensuring each subtask
has required agents and dependencies clearly specified.`, objective)

	resp, err := d.client.GenerateContent(ctx, &llm.GenerateContentRequest{
		Messages: []llm.Message{
			{Role: llm.SpeakerSystem, Content: decomposerSystemMessage},
			{Role: llm.SpeakerUser, Content: prompt},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("task decomposition request failed: %w", err)
	}

	subtasks, err := ParseDecomposition(workflowID, resp.Text)
	if err != nil {
		return nil, err
	}
	if err := ValidateSubTasks(subtasks); err != nil {
		return nil, err
	}
	return subtasks, nil
}

// ParseDecomposition 把分解器的回复逐行解析为子任务。
// 子任务 id 为稠密的 task_<n>；依赖中的编号 n 解析为 task_<n-1>。
func ParseDecomposition(workflowID, response string) ([]*models.SubTask, error) {
	var subtasks []*models.SubTask
	var current *models.SubTask

	flush := func() {
		if current != nil && strings.TrimSpace(current.Description) != "" {
			current.Description = strings.TrimSpace(current.Description)
			subtasks = append(subtasks, current)
		}
	}

	for _, raw := range strings.Split(response, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "### Subtask") {
			flush()
			current = &models.SubTask{
				ID:         fmt.Sprintf("task_%d", len(subtasks)),
				WorkflowID: workflowID,
				Status:     models.TaskStatusPending,
			}
			if _, title, found := strings.Cut(line, ":"); found {
				current.Description = strings.TrimSpace(title) + "\n"
			}
			continue
		}
		if current == nil {
			continue
		}

		lower := strings.ToLower(line)
		switch {
		case strings.HasPrefix(lower, "description:"):
			_, desc, _ := strings.Cut(line, ":")
			current.Description += strings.TrimSpace(desc) + "\n"

		case strings.HasPrefix(lower, "required agents:"):
			_, agents, _ := strings.Cut(line, ":")
			for _, a := range strings.Split(agents, ",") {
				role := models.AgentRole(strings.ToLower(strings.TrimSpace(a)))
				if role != "" && !containsRole(current.RequiredRoles, role) {
					current.RequiredRoles = append(current.RequiredRoles, role)
				}
			}

		case strings.HasPrefix(lower, "dependencies:"):
			_, deps, _ := strings.Cut(line, ":")
			deps = strings.TrimSpace(deps)
			if strings.EqualFold(deps, "none") {
				continue
			}
			for _, d := range strings.Split(deps, ",") {
				n, err := strconv.Atoi(strings.TrimSpace(d))
				if err != nil {
					continue
				}
				current.Dependencies = append(current.Dependencies, fmt.Sprintf("task_%d", n-1))
			}

		default:
			current.Description += line + "\n"
		}
	}
	flush()

	if len(subtasks) == 0 {
		return nil, fmt.Errorf("decomposition produced no subtasks")
	}
	return subtasks, nil
}

func containsRole(roles []models.AgentRole, role models.AgentRole) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

// ValidateSubTasks 校验每个子任务都有合法的角色和可解析的依赖。
func ValidateSubTasks(subtasks []*models.SubTask) error {
	known := make(map[string]bool, len(subtasks))
	for _, t := range subtasks {
		known[t.ID] = true
	}

	for _, t := range subtasks {
		if len(t.RequiredRoles) == 0 {
			return fmt.Errorf("task %s has no required agents specified", t.ID)
		}
		for _, role := range t.RequiredRoles {
			if !models.IsValidRole(string(role)) {
				return fmt.Errorf("task %s has invalid agent type: %s", t.ID, role)
			}
		}
		for _, dep := range t.Dependencies {
			if !known[dep] {
				return fmt.Errorf("task %s has invalid dependency: %s", t.ID, dep)
			}
			if dep == t.ID {
				return fmt.Errorf("task %s depends on itself", t.ID)
			}
		}
	}
	return nil
}
