package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/pattty847/Multi-Agent-Team/internal/models"
)

type fakeRunner struct {
	output string
	err    error
	runs   []string
}

func (f *fakeRunner) RunCode(_ context.Context, _ string, code string) (string, error) {
	f.runs = append(f.runs, code)
	if f.err != nil {
		return "", f.err
	}
	return f.output, nil
}

func TestExtractCodeBlocks(t *testing.T) {
	text := "analysis first\n```python\nprint(1)\nprint(2)\n```\nthen more text\n```py\nx = 3\n```\n```\nnot python\n```"
	blocks := ExtractCodeBlocks(text)
	if len(blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %d: %v", len(blocks), blocks)
	}
	if blocks[0] != "print(1)\nprint(2)" {
		t.Errorf("unexpected first block: %q", blocks[0])
	}
	if blocks[1] != "x = 3" {
		t.Errorf("unexpected second block: %q", blocks[1])
	}
}

func TestExtractCodeBlocksUnclosed(t *testing.T) {
	if blocks := ExtractCodeBlocks("```python\nprint(1)"); len(blocks) != 0 {
		t.Errorf("unclosed block should be ignored, got %v", blocks)
	}
}

func TestCodeAgentExecutesBlocks(t *testing.T) {
	client := &scriptedLLM{replies: []string{"here you go\n```python\nprint('hi')\n```"}}
	runner := &fakeRunner{output: "hi\n"}
	a := NewCodeAgent(client, runner, "wf-1")

	reply, err := a.Respond(context.Background(), nil)
	if err != nil {
		t.Fatalf("Respond failed: %v", err)
	}
	if len(runner.runs) != 1 || runner.runs[0] != "print('hi')" {
		t.Fatalf("runner received wrong code: %v", runner.runs)
	}
	if !strings.Contains(reply, "Execution output:") || !strings.Contains(reply, "hi") {
		t.Errorf("reply should contain execution output: %q", reply)
	}
}

func TestCodeAgentReportsExecutionError(t *testing.T) {
	client := &scriptedLLM{replies: []string{"```python\nboom()\n```"}}
	runner := &fakeRunner{err: errors.New("exit status 1")}
	a := NewCodeAgent(client, runner, "wf-1")

	reply, err := a.Respond(context.Background(), nil)
	if err != nil {
		t.Fatalf("Respond failed: %v", err)
	}
	if !strings.Contains(reply, "Execution error:") {
		t.Errorf("reply should surface execution error: %q", reply)
	}
}

func TestCodeAgentWithoutRunner(t *testing.T) {
	client := &scriptedLLM{replies: []string{"```python\nprint(1)\n```"}}
	a := NewCodeAgent(client, nil, "wf-1")

	reply, err := a.Respond(context.Background(), nil)
	if err != nil {
		t.Fatalf("Respond failed: %v", err)
	}
	if strings.Contains(reply, "Execution output:") {
		t.Errorf("no runner configured, reply should be unmodified: %q", reply)
	}
}

func TestRegistryListMetadataOrder(t *testing.T) {
	client := &scriptedLLM{replies: []string{"ok"}}
	registry := NewTeamRegistry(client, nil, "wf-1")

	metas := registry.ListMetadata()
	if len(metas) != len(models.AllRoles) {
		t.Fatalf("expected %d agents, got %d", len(models.AllRoles), len(metas))
	}
	for i, role := range models.AllRoles {
		if metas[i].Role != role {
			t.Errorf("position %d: got role %s, want %s", i, metas[i].Role, role)
		}
	}
}

func TestRegistrySelectSkipsUnknownRoles(t *testing.T) {
	client := &scriptedLLM{replies: []string{"ok"}}
	registry := NewRegistry()
	registry.Register(NewQAAgent(client))

	selected := registry.Select([]models.AgentRole{models.RoleQA, models.RoleCode})
	if len(selected) != 1 {
		t.Fatalf("expected 1 selected agent, got %d", len(selected))
	}
	if selected[0].Metadata().Role != models.RoleQA {
		t.Errorf("unexpected agent selected: %s", selected[0].Metadata().Role)
	}
}

func TestRegistrySelectDedupesRoles(t *testing.T) {
	client := &scriptedLLM{replies: []string{"ok"}}
	registry := NewTeamRegistry(client, nil, "wf-1")

	selected := registry.Select([]models.AgentRole{models.RoleResearch, models.RoleResearch, models.RoleQA})
	if len(selected) != 2 {
		t.Fatalf("expected 2 selected agents, got %d", len(selected))
	}
	if selected[0].Metadata().Role != models.RoleResearch || selected[1].Metadata().Role != models.RoleQA {
		t.Errorf("unexpected selection order: %s, %s",
			selected[0].Metadata().Role, selected[1].Metadata().Role)
	}
}
