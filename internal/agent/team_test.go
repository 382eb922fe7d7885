package agent

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/pattty847/Multi-Agent-Team/internal/llm"
	"github.com/pattty847/Multi-Agent-Team/internal/models"
)

// scriptedLLM 按顺序返回预设的回复，超出后重复最后一条。
type scriptedLLM struct {
	replies []string
	calls   int
}

func (s *scriptedLLM) GenerateContent(_ context.Context, _ *llm.GenerateContentRequest) (*llm.GenerateContentResponse, error) {
	idx := s.calls
	if idx >= len(s.replies) {
		idx = len(s.replies) - 1
	}
	s.calls++
	return &llm.GenerateContentResponse{Text: s.replies[idx]}, nil
}

func newTask(desc string) *models.SubTask {
	return &models.SubTask{
		ID:          "task_0",
		WorkflowID:  "wf-1",
		Description: desc,
	}
}

func TestTeamRunStopsOnTerminate(t *testing.T) {
	client := &scriptedLLM{replies: []string{
		"Plan looks good, all outcomes verified. TERMINATE",
	}}
	registry := NewTeamRegistry(client, nil, "wf-1")

	team, err := NewTeam(registry, []models.AgentRole{models.RolePM, models.RoleQA}, 10, nil)
	if err != nil {
		t.Fatalf("NewTeam failed: %v", err)
	}

	result, err := team.Run(context.Background(), newTask("summarize findings"))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Rounds != 1 {
		t.Errorf("expected 1 round, got %d", result.Rounds)
	}
	if strings.Contains(result.Result, TerminateMarker) {
		t.Errorf("terminate marker should be stripped from result: %q", result.Result)
	}
	if len(result.Participants) != 2 {
		t.Errorf("expected 2 participants, got %v", result.Participants)
	}
}

func TestTeamRunHitsMaxRounds(t *testing.T) {
	client := &scriptedLLM{replies: []string{"still working on it"}}
	registry := NewTeamRegistry(client, nil, "wf-1")

	team, err := NewTeam(registry, []models.AgentRole{models.RoleResearch, models.RoleQA}, 3, nil)
	if err != nil {
		t.Fatalf("NewTeam failed: %v", err)
	}

	result, err := team.Run(context.Background(), newTask("open ended question"))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Rounds != 3 {
		t.Errorf("expected run to stop at 3 rounds, got %d", result.Rounds)
	}
	if result.Result != "still working on it" {
		t.Errorf("unexpected result: %q", result.Result)
	}
}

func TestTeamRequiresMembers(t *testing.T) {
	registry := NewRegistry()
	if _, err := NewTeam(registry, []models.AgentRole{models.RoleCode}, 10, nil); err == nil {
		t.Fatal("expected error for empty team")
	}
}

func TestTeamLogsInteractions(t *testing.T) {
	client := &scriptedLLM{replies: []string{
		"drafting an answer",
		"done, verified. TERMINATE",
	}}
	registry := NewTeamRegistry(client, nil, "wf-1")

	var interactions []models.Interaction
	team, err := NewTeam(registry, []models.AgentRole{models.RolePM}, 10, func(i models.Interaction) {
		interactions = append(interactions, i)
	})
	if err != nil {
		t.Fatalf("NewTeam failed: %v", err)
	}

	result, err := team.Run(context.Background(), newTask("write a report"))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(interactions) != result.Rounds {
		t.Fatalf("expected %d interactions, got %d", result.Rounds, len(interactions))
	}
	first := interactions[0]
	if first.WorkflowID != "wf-1" || first.TaskID != "task_0" {
		t.Errorf("interaction missing workflow context: %+v", first)
	}
	if first.To != "user" {
		t.Errorf("first interaction should address the user, got %q", first.To)
	}
}

func TestInteractionPreviewKeepsValidUTF8(t *testing.T) {
	// 300 bytes of three-byte runes: the byte limit lands mid-rune.
	reply := strings.Repeat("界", 100)
	client := &scriptedLLM{replies: []string{reply}}
	registry := NewTeamRegistry(client, nil, "wf-1")

	var interactions []models.Interaction
	team, err := NewTeam(registry, []models.AgentRole{models.RolePM}, 1, func(i models.Interaction) {
		interactions = append(interactions, i)
	})
	if err != nil {
		t.Fatalf("NewTeam failed: %v", err)
	}
	if _, err := team.Run(context.Background(), newTask("write a report")); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(interactions) != 1 {
		t.Fatalf("expected 1 interaction, got %d", len(interactions))
	}
	preview := interactions[0].Preview
	if len(preview) > interactionPreviewLimit {
		t.Fatalf("preview is %d bytes, limit is %d", len(preview), interactionPreviewLimit)
	}
	if !utf8.ValidString(preview) {
		t.Fatalf("preview is not valid UTF-8: %q", preview)
	}
}

func TestSelectSpeakerRoutesByContent(t *testing.T) {
	client := &scriptedLLM{replies: []string{"ok"}}
	registry := NewTeamRegistry(client, nil, "wf-1")
	team, err := NewTeam(registry, models.AllRoles, 10, nil)
	if err != nil {
		t.Fatalf("NewTeam failed: %v", err)
	}

	cases := []struct {
		content string
		want    models.AgentRole
	}{
		{"please implement the parser in code", models.RoleCode},
		{"we need a chart of the results", models.RoleViz},
		{"someone should test the edge cases", models.RoleQA},
		{"gather the relevant literature first", models.RoleResearch},
		{"update the plan and track progress", models.RolePM},
	}
	for _, tc := range cases {
		idx := team.selectSpeaker(tc.content, -1)
		if got := team.members[idx].Metadata().Role; got != tc.want {
			t.Errorf("content %q routed to %s, want %s", tc.content, got, tc.want)
		}
	}
}

func TestSelectSpeakerAvoidsRepeat(t *testing.T) {
	client := &scriptedLLM{replies: []string{"ok"}}
	registry := NewTeamRegistry(client, nil, "wf-1")
	team, err := NewTeam(registry, []models.AgentRole{models.RoleCode, models.RoleQA}, 10, nil)
	if err != nil {
		t.Fatalf("NewTeam failed: %v", err)
	}

	// code 关键词命中，但 code 刚刚发过言，应轮到下一位。
	idx := team.selectSpeaker("more code changes needed", 0)
	if idx == 0 {
		t.Error("speaker should not repeat when another member is available")
	}
}
