package agent

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pattty847/Multi-Agent-Team/internal/llm"
	"github.com/pattty847/Multi-Agent-Team/internal/models"
)

// TerminateMarker 是项目经理用来声明任务完成的终止标记。
const TerminateMarker = "TERMINATE"

// interactionPreviewLimit 限制记录到监控端的消息摘要长度。
const interactionPreviewLimit = 200

// InteractionLogger 在每次 Agent 发言后被调用，用于把交互推送给监控端。
type InteractionLogger func(models.Interaction)

// RunResult 是一次团队会话的结果。
type RunResult struct {
	Result       string
	Participants []string
	Rounds       int
	Transcript   []llm.Message
}

// Team 让一组专家 Agent 围绕一个子任务进行多轮群聊协作。
// 发言顺序基于上一条消息的内容路由到最合适的专家，无法路由时轮流发言。
type Team struct {
	members        []Agent
	maxRounds      int
	logInteraction InteractionLogger
}

// NewTeam 按角色列表从注册表中挑选成员组建团队。
// 至少需要一名成员；logInteraction 可以为 nil。
func NewTeam(registry *Registry, roles []models.AgentRole, maxRounds int, logInteraction InteractionLogger) (*Team, error) {
	members := registry.Select(roles)
	if len(members) == 0 {
		return nil, fmt.Errorf("no registered agents for roles %v", roles)
	}
	if maxRounds <= 0 {
		maxRounds = 50
	}
	return &Team{
		members:        members,
		maxRounds:      maxRounds,
		logInteraction: logInteraction,
	}, nil
}

// Participants 返回成员名称列表。
func (t *Team) Participants() []string {
	names := make([]string, 0, len(t.members))
	for _, m := range t.members {
		names = append(names, m.Metadata().Name)
	}
	return names
}

// Run 执行一次完整的团队会话，直到项目经理发出终止标记或达到轮数上限。
func (t *Team) Run(ctx context.Context, task *models.SubTask) (*RunResult, error) {
	transcript := []llm.Message{
		{Role: llm.SpeakerUser, Content: FormatTask(task.Description)},
	}

	lastSpeaker := "user"
	lastIdx := -1
	lastReply := ""
	rounds := 0

	for rounds < t.maxRounds {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rounds++

		idx := t.selectSpeaker(transcript[len(transcript)-1].Content, lastIdx)
		speaker := t.members[idx]
		name := speaker.Metadata().Name

		reply, err := speaker.Respond(ctx, t.historyFor(idx, transcript))
		if err != nil {
			return nil, fmt.Errorf("team conversation failed at round %d: %w", rounds, err)
		}

		t.record(task, name, lastSpeaker, reply)

		transcript = append(transcript, llm.Message{
			Role:    llm.SpeakerModel,
			Content: fmt.Sprintf("%s: %s", name, reply),
		})

		if strings.TrimSpace(reply) != "" {
			lastReply = reply
		}
		lastSpeaker = name
		lastIdx = idx

		if strings.Contains(reply, TerminateMarker) {
			break
		}
	}

	result := strings.TrimSpace(strings.ReplaceAll(lastReply, TerminateMarker, ""))
	if result == "" {
		return nil, fmt.Errorf("team conversation produced no result after %d rounds", rounds)
	}

	return &RunResult{
		Result:       result,
		Participants: t.Participants(),
		Rounds:       rounds,
		Transcript:   transcript,
	}, nil
}

// selectSpeaker 根据上一条消息的内容把发言权路由给最合适的专家。
// 匹配不到关键词时按轮流顺序选择下一位，并避免同一成员连续发言。
func (t *Team) selectSpeaker(lastContent string, lastIdx int) int {
	content := strings.ToLower(lastContent)

	routes := []struct {
		role     models.AgentRole
		keywords []string
	}{
		{models.RoleCode, []string{"code", "implement", "bug", "script", "refactor"}},
		{models.RoleViz, []string{"visualiz", "chart", "plot", "graph", "dashboard"}},
		{models.RoleQA, []string{"test", "verify", "quality", "edge case", "validate"}},
		{models.RoleResearch, []string{"research", "paper", "source", "gather", "literature"}},
		{models.RolePM, []string{"plan", "coordinat", "assign", "breakdown", "progress"}},
	}

	for _, route := range routes {
		for _, kw := range route.keywords {
			if !strings.Contains(content, kw) {
				continue
			}
			for i, m := range t.members {
				if m.Metadata().Role == route.role && i != lastIdx {
					return i
				}
			}
		}
	}

	next := (lastIdx + 1) % len(t.members)
	if next == lastIdx {
		next = (next + 1) % len(t.members)
	}
	return next
}

// historyFor 把群聊记录转换为某个成员视角下的对话历史：
// 自己的发言是 assistant 消息，其他成员和用户的发言是 user 消息。
func (t *Team) historyFor(memberIdx int, transcript []llm.Message) []llm.Message {
	prefix := t.members[memberIdx].Metadata().Name + ": "
	history := make([]llm.Message, 0, len(transcript))
	for _, m := range transcript {
		if m.Role == llm.SpeakerModel && strings.HasPrefix(m.Content, prefix) {
			history = append(history, llm.Message{
				Role:    llm.SpeakerModel,
				Content: strings.TrimPrefix(m.Content, prefix),
			})
			continue
		}
		history = append(history, llm.Message{Role: llm.SpeakerUser, Content: m.Content})
	}
	return history
}

func (t *Team) record(task *models.SubTask, from, to, message string) {
	if t.logInteraction == nil {
		return
	}
	preview := message
	if len(preview) > interactionPreviewLimit {
		cut := interactionPreviewLimit
		// 不能切在多字节字符中间。
		for cut > 0 && !utf8.RuneStart(preview[cut]) {
			cut--
		}
		preview = preview[:cut]
	}
	t.logInteraction(models.Interaction{
		WorkflowID: task.WorkflowID,
		TaskID:     task.ID,
		From:       from,
		To:         to,
		Preview:    preview,
		Timestamp:  time.Now().UTC(),
	})
}

// FormatTask 把子任务描述包装为带协作指引的开场消息。
func FormatTask(description string) string {
	return fmt.Sprintf(`TASK DESCRIPTION:
%s

COLLABORATION GUIDELINES:
1. Project Manager (pm) should coordinate the overall effort
2. Each specialist should contribute based on their expertise
3. Maintain clear communication and documentation
4. Verify results and quality at each step

EXPECTED OUTCOMES:
1. Clear documentation of the process
2. Quality-assured results
3. Proper testing and validation
4. Performance considerations

Please begin with task planning and proceed with execution.`, description)
}
