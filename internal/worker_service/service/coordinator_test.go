package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/segmentio/kafka-go"

	"github.com/pattty847/Multi-Agent-Team/internal/llm"
	"github.com/pattty847/Multi-Agent-Team/internal/models"
	"github.com/pattty847/Multi-Agent-Team/pkg/logger"
)

type scriptedLLM struct {
	replies []string
	err     error
	calls   int
}

func (s *scriptedLLM) GenerateContent(ctx context.Context, req *llm.GenerateContentRequest) (*llm.GenerateContentResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	idx := s.calls
	if idx >= len(s.replies) {
		idx = len(s.replies) - 1
	}
	s.calls++
	return &llm.GenerateContentResponse{Text: s.replies[idx]}, nil
}

type fakeResults struct {
	published []*models.TaskResult
}

func (f *fakeResults) Publish(ctx context.Context, result *models.TaskResult) error {
	f.published = append(f.published, result)
	return nil
}

type fakeEvents struct {
	events []*models.Event
}

func (f *fakeEvents) Publish(ctx context.Context, event *models.Event) error {
	f.events = append(f.events, event)
	return nil
}

func (f *fakeEvents) byType(t models.EventType) []*models.Event {
	var out []*models.Event
	for _, e := range f.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type fakeWorkspace struct {
	artifacts []string
	runOutput string
}

func (f *fakeWorkspace) RunCode(ctx context.Context, workflowID, code string) (string, error) {
	return f.runOutput, nil
}

func (f *fakeWorkspace) Artifacts(workflowID string) ([]string, error) {
	return f.artifacts, nil
}

type fakeUploader struct {
	workflowID string
	paths      []string
}

func (f *fakeUploader) UploadArtifacts(ctx context.Context, workflowID string, paths []string) ([]string, error) {
	f.workflowID = workflowID
	f.paths = paths
	objects := make([]string, 0, len(paths))
	for _, p := range paths {
		objects = append(objects, workflowID+"/"+p)
	}
	return objects, nil
}

func taskMessage(t *testing.T, task models.SubTask) kafka.Message {
	t.Helper()
	value, err := json.Marshal(task)
	if err != nil {
		t.Fatalf("marshal task: %v", err)
	}
	return kafka.Message{Value: value}
}

func pmTask() models.SubTask {
	return models.SubTask{
		ID:            "task_0",
		WorkflowID:    "wf-1",
		Description:   "Summarize the findings",
		RequiredRoles: []models.AgentRole{models.RolePM},
		Status:        models.TaskStatusRunning,
	}
}

func TestProcessTaskPublishesCompletedResult(t *testing.T) {
	client := &scriptedLLM{replies: []string{"Summary of the findings. TERMINATE"}}
	results := &fakeResults{}
	events := &fakeEvents{}
	c := NewCoordinator("worker-1", client, nil, results, events, nil, 5, logger.New("worker_service", "", ""))

	if err := c.ProcessTask(context.Background(), taskMessage(t, pmTask())); err != nil {
		t.Fatalf("ProcessTask: %v", err)
	}

	if len(results.published) != 1 {
		t.Fatalf("published %d results, want 1", len(results.published))
	}
	res := results.published[0]
	if res.Status != models.TaskStatusCompleted {
		t.Fatalf("result status = %s, want completed", res.Status)
	}
	if strings.Contains(res.Result, "TERMINATE") {
		t.Fatalf("result still contains the terminate marker: %q", res.Result)
	}
	if res.WorkerID != "worker-1" {
		t.Fatalf("worker ID = %q, want worker-1", res.WorkerID)
	}
	if len(res.Participants) != 1 || res.Participants[0] != "project_manager" {
		t.Fatalf("participants = %v, want [project_manager]", res.Participants)
	}
}

func TestProcessTaskPublishesAgentStatusAndInteractions(t *testing.T) {
	client := &scriptedLLM{replies: []string{"Done. TERMINATE"}}
	results := &fakeResults{}
	events := &fakeEvents{}
	c := NewCoordinator("worker-1", client, nil, results, events, nil, 5, logger.New("worker_service", "", ""))

	if err := c.ProcessTask(context.Background(), taskMessage(t, pmTask())); err != nil {
		t.Fatalf("ProcessTask: %v", err)
	}

	statuses := events.byType(models.EventAgentStatus)
	if len(statuses) != 2 {
		t.Fatalf("got %d agent_status events, want busy and idle", len(statuses))
	}
	if statuses[0].AgentState.Status != models.AgentStatusBusy {
		t.Fatalf("first status = %s, want busy", statuses[0].AgentState.Status)
	}
	if statuses[1].AgentState.Status != models.AgentStatusIdle {
		t.Fatalf("second status = %s, want idle", statuses[1].AgentState.Status)
	}
	if statuses[1].AgentState.CurrentTask != "" {
		t.Fatal("idle status should clear the current task")
	}

	interactions := events.byType(models.EventInteraction)
	if len(interactions) != 1 {
		t.Fatalf("got %d interaction events, want 1", len(interactions))
	}
	if interactions[0].Interaction.From != "project_manager" {
		t.Fatalf("interaction from = %q, want project_manager", interactions[0].Interaction.From)
	}
}

func TestProcessTaskPublishesFailureOnModelError(t *testing.T) {
	client := &scriptedLLM{err: errors.New("model unavailable")}
	results := &fakeResults{}
	events := &fakeEvents{}
	c := NewCoordinator("worker-1", client, nil, results, events, nil, 5, logger.New("worker_service", "", ""))

	if err := c.ProcessTask(context.Background(), taskMessage(t, pmTask())); err != nil {
		t.Fatalf("ProcessTask: %v", err)
	}

	if len(results.published) != 1 {
		t.Fatalf("published %d results, want 1", len(results.published))
	}
	res := results.published[0]
	if res.Status != models.TaskStatusFailed {
		t.Fatalf("result status = %s, want failed", res.Status)
	}
	if !strings.Contains(res.Error, "model unavailable") {
		t.Fatalf("result error = %q, want model error surfaced", res.Error)
	}
}

func TestProcessTaskUploadsArtifacts(t *testing.T) {
	client := &scriptedLLM{replies: []string{"Done. TERMINATE"}}
	results := &fakeResults{}
	events := &fakeEvents{}
	ws := &fakeWorkspace{artifacts: []string{"docker_workspace/workspace/wf-1/chart.png"}}
	uploader := &fakeUploader{}
	c := NewCoordinator("worker-1", client, ws, results, events, uploader, 5, logger.New("worker_service", "", ""))

	if err := c.ProcessTask(context.Background(), taskMessage(t, pmTask())); err != nil {
		t.Fatalf("ProcessTask: %v", err)
	}

	if uploader.workflowID != "wf-1" {
		t.Fatalf("upload workflow = %q, want wf-1", uploader.workflowID)
	}
	if len(uploader.paths) != 1 || !strings.HasSuffix(uploader.paths[0], "chart.png") {
		t.Fatalf("uploaded paths = %v, want the chart artifact", uploader.paths)
	}
}

func TestProcessTaskRejectsMalformedPayload(t *testing.T) {
	c := NewCoordinator("worker-1", &scriptedLLM{replies: []string{"x"}}, nil, &fakeResults{}, &fakeEvents{}, nil, 5,
		logger.New("worker_service", "", ""))

	if err := c.ProcessTask(context.Background(), kafka.Message{Value: []byte("not json")}); err == nil {
		t.Fatal("expected unmarshal error")
	}
}
