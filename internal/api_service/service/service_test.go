package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/segmentio/kafka-go"

	"github.com/pattty847/Multi-Agent-Team/internal/config"
	"github.com/pattty847/Multi-Agent-Team/internal/models"
	"github.com/pattty847/Multi-Agent-Team/internal/orchestrator"
	"github.com/pattty847/Multi-Agent-Team/pkg/logger"
)

type fakeWorkflowStore struct {
	created   []*models.Workflow
	workflows map[string]*models.Workflow
}

func newFakeWorkflowStore() *fakeWorkflowStore {
	return &fakeWorkflowStore{workflows: make(map[string]*models.Workflow)}
}

func (f *fakeWorkflowStore) Create(ctx context.Context, wf *models.Workflow) error {
	copied := *wf
	f.created = append(f.created, &copied)
	f.workflows[wf.ID] = &copied
	return nil
}

func (f *fakeWorkflowStore) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	wf, ok := f.workflows[id]
	if !ok {
		return nil, nil
	}
	copied := *wf
	return &copied, nil
}

func (f *fakeWorkflowStore) GetByUserID(ctx context.Context, userID string, page, limit int) ([]*models.Workflow, error) {
	var result []*models.Workflow
	for _, wf := range f.workflows {
		if wf.UserID == userID {
			copied := *wf
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (f *fakeWorkflowStore) Update(ctx context.Context, wf *models.Workflow) error {
	copied := *wf
	copied.SubTasks = append([]models.SubTask(nil), wf.SubTasks...)
	f.workflows[wf.ID] = &copied
	return nil
}

type fakeDecomposer struct {
	subtasks func(workflowID string) []*models.SubTask
	err      error
}

func (f *fakeDecomposer) Decompose(ctx context.Context, workflowID, objective string) ([]*models.SubTask, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.subtasks(workflowID), nil
}

type fakeTaskPublisher struct {
	published []string
	err       error
}

func (f *fakeTaskPublisher) PublishTask(ctx context.Context, task *models.SubTask) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, task.ID)
	return nil
}

type fakeEventSink struct {
	events []*models.Event
}

func (f *fakeEventSink) Publish(ctx context.Context, event *models.Event) error {
	f.events = append(f.events, event)
	return nil
}

type fakeEventLedger struct{}

func (f *fakeEventLedger) RecordEvent(ctx context.Context, workflowID, taskID, agentID string, eventType models.EventType, details interface{}) error {
	return nil
}

func (f *fakeEventLedger) RecordTaskOutcome(ctx context.Context, agentID string, success bool) error {
	return nil
}

func testOrchestratorConfig() config.OrchestratorConfig {
	return config.OrchestratorConfig{
		MaxRounds:          10,
		MaxTaskAttempts:    2,
		MaxReplans:         1,
		StallTimeout:       "1m",
		StallCheckInterval: "10s",
	}
}

// chainTasks builds task_0 <- task_1, so only task_0 is initially ready.
func chainTasks(workflowID string) []*models.SubTask {
	return []*models.SubTask{
		{
			ID:            "task_0",
			WorkflowID:    workflowID,
			Description:   "Gather background material",
			RequiredRoles: []models.AgentRole{models.RoleResearch},
			Status:        models.TaskStatusPending,
		},
		{
			ID:            "task_1",
			WorkflowID:    workflowID,
			Description:   "Summarize findings",
			RequiredRoles: []models.AgentRole{models.RolePM},
			Dependencies:  []string{"task_0"},
			Status:        models.TaskStatusPending,
		},
	}
}

func newTestService(st *fakeWorkflowStore, dec Decomposer, tasks *fakeTaskPublisher) (*OrchestratorService, *orchestrator.Scheduler) {
	sched := orchestrator.NewScheduler(testOrchestratorConfig(), st, tasks, &fakeEventSink{}, &fakeEventLedger{})
	svc := NewOrchestratorService(st, dec, sched, nil, logger.New("api_service", "", ""))
	return svc, sched
}

func TestSubmitWorkflowLaunchesReadyTasks(t *testing.T) {
	st := newFakeWorkflowStore()
	tasks := &fakeTaskPublisher{}
	svc, _ := newTestService(st, &fakeDecomposer{subtasks: chainTasks}, tasks)

	wf, err := svc.SubmitWorkflow(context.Background(), "user-1", "research the topic", "research")
	if err != nil {
		t.Fatalf("SubmitWorkflow: %v", err)
	}
	if wf.Status != models.WorkflowStatusRunning {
		t.Fatalf("workflow status = %s, want running", wf.Status)
	}
	if len(st.created) != 1 {
		t.Fatalf("store.Create called %d times, want 1", len(st.created))
	}
	if len(tasks.published) != 1 || tasks.published[0] != "task_0" {
		t.Fatalf("published = %v, want [task_0]", tasks.published)
	}
	if got := wf.FindTask("task_1").Status; got != models.TaskStatusPending {
		t.Fatalf("task_1 status = %s, want pending", got)
	}
}

func TestSubmitWorkflowPlanningFailurePersisted(t *testing.T) {
	st := newFakeWorkflowStore()
	svc, _ := newTestService(st, &fakeDecomposer{err: errors.New("model unavailable")}, &fakeTaskPublisher{})

	_, err := svc.SubmitWorkflow(context.Background(), "user-1", "research the topic", "")
	if err == nil {
		t.Fatal("expected planning error")
	}
	if len(st.created) != 1 {
		t.Fatalf("store.Create called %d times, want 1", len(st.created))
	}
	persisted := st.workflows[st.created[0].ID]
	if persisted.Status != models.WorkflowStatusFailed {
		t.Fatalf("persisted status = %s, want failed", persisted.Status)
	}
	if !strings.Contains(persisted.Error, "model unavailable") {
		t.Fatalf("persisted error = %q, want planning error recorded", persisted.Error)
	}
}

func TestHandleResultAdvancesDependents(t *testing.T) {
	st := newFakeWorkflowStore()
	tasks := &fakeTaskPublisher{}
	svc, _ := newTestService(st, &fakeDecomposer{subtasks: chainTasks}, tasks)

	wf, err := svc.SubmitWorkflow(context.Background(), "user-1", "research the topic", "")
	if err != nil {
		t.Fatalf("SubmitWorkflow: %v", err)
	}

	result := models.TaskResult{
		WorkflowID:   wf.ID,
		TaskID:       "task_0",
		Status:       models.TaskStatusCompleted,
		Result:       "notes collected",
		Participants: []string{"research_assistant"},
	}
	value, _ := json.Marshal(result)
	if err := svc.HandleResult(kafka.Message{Value: value}); err != nil {
		t.Fatalf("HandleResult: %v", err)
	}

	if len(tasks.published) != 2 || tasks.published[1] != "task_1" {
		t.Fatalf("published = %v, want [task_0 task_1]", tasks.published)
	}
}

func TestGetWorkflowAuthorization(t *testing.T) {
	st := newFakeWorkflowStore()
	svc, _ := newTestService(st, &fakeDecomposer{subtasks: chainTasks}, &fakeTaskPublisher{})

	wf, err := svc.SubmitWorkflow(context.Background(), "user-1", "research the topic", "")
	if err != nil {
		t.Fatalf("SubmitWorkflow: %v", err)
	}

	got, err := svc.GetWorkflow(context.Background(), wf.ID, "user-2")
	if err != nil {
		t.Fatalf("GetWorkflow: %v", err)
	}
	if got != nil {
		t.Fatal("expected nil workflow for unauthorized user")
	}

	got, err = svc.GetWorkflow(context.Background(), wf.ID, "user-1")
	if err != nil {
		t.Fatalf("GetWorkflow: %v", err)
	}
	if got == nil || got.ID != wf.ID {
		t.Fatalf("owner lookup returned %v, want workflow %s", got, wf.ID)
	}
}

func TestStopWorkflowStoreFallback(t *testing.T) {
	st := newFakeWorkflowStore()
	svc, _ := newTestService(st, &fakeDecomposer{subtasks: chainTasks}, &fakeTaskPublisher{})

	// A workflow left active in the store from before a restart: the
	// scheduler does not know it.
	st.workflows["wf-orphan"] = &models.Workflow{
		ID:     "wf-orphan",
		UserID: "user-1",
		Status: models.WorkflowStatusRunning,
	}

	if err := svc.StopWorkflow(context.Background(), "wf-orphan", "user-1"); err != nil {
		t.Fatalf("StopWorkflow: %v", err)
	}
	if got := st.workflows["wf-orphan"].Status; got != models.WorkflowStatusStopped {
		t.Fatalf("store status = %s, want stopped", got)
	}
}

func TestStopWorkflowUnknown(t *testing.T) {
	st := newFakeWorkflowStore()
	svc, _ := newTestService(st, &fakeDecomposer{subtasks: chainTasks}, &fakeTaskPublisher{})

	if err := svc.StopWorkflow(context.Background(), "missing", "user-1"); err == nil {
		t.Fatal("expected error for unknown workflow")
	}
}
