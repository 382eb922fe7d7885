package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/segmentio/kafka-go"

	"github.com/pattty847/Multi-Agent-Team/internal/api_service/store"
	"github.com/pattty847/Multi-Agent-Team/internal/models"
	"github.com/pattty847/Multi-Agent-Team/internal/orchestrator"
	"github.com/pattty847/Multi-Agent-Team/pkg/logger"
)

// Decomposer turns an objective into a validated subtask list.
type Decomposer interface {
	Decompose(ctx context.Context, workflowID, objective string) ([]*models.SubTask, error)
}

// WorkerDiscovery lists live worker replicas registered in etcd.
type WorkerDiscovery interface {
	DiscoverServices(prefix string) (map[string]string, error)
}

// OrchestratorService wires planning, scheduling and persistence behind
// the workflow API.
type OrchestratorService struct {
	store       store.WorkflowStore
	decomposer  Decomposer
	scheduler   *orchestrator.Scheduler
	connManager *ConnectionManager
	discovery   WorkerDiscovery
	logger      *logger.Logger

	// 工作流 ID -> 提交用户，用于 WebSocket 推送寻址。
	ownersMu sync.Mutex
	owners   map[string]string
}

// NewOrchestratorService creates the service and registers the workflow
// update hook on the scheduler.
func NewOrchestratorService(st store.WorkflowStore, decomposer Decomposer, scheduler *orchestrator.Scheduler,
	discovery WorkerDiscovery, log *logger.Logger) *OrchestratorService {
	s := &OrchestratorService{
		store:       st,
		decomposer:  decomposer,
		scheduler:   scheduler,
		connManager: NewConnectionManager(),
		discovery:   discovery,
		logger:      log,
		owners:      make(map[string]string),
	}
	scheduler.SetNotify(s.pushWorkflowUpdate)
	return s
}

// AddConnection adds a WebSocket connection for a user.
func (s *OrchestratorService) AddConnection(userID string, conn *websocket.Conn) {
	s.connManager.Add(userID, conn)
	s.logger.Info("WebSocket connection added for user: " + userID)
}

// RemoveConnection removes a WebSocket connection for a user.
func (s *OrchestratorService) RemoveConnection(userID string) {
	s.connManager.Remove(userID)
	s.logger.Info("WebSocket connection removed for user: " + userID)
}

// SubmitWorkflow creates a workflow, plans it and launches execution.
// Planning errors leave a failed workflow behind for inspection.
func (s *OrchestratorService) SubmitWorkflow(ctx context.Context, userID, objective, workflowType string) (*models.Workflow, error) {
	wf := &models.Workflow{
		ID:          uuid.New().String(),
		UserID:      userID,
		Objective:   objective,
		Type:        workflowType,
		Status:      models.WorkflowStatusPlanning,
		SubmittedAt: time.Now().UTC(),
	}
	if err := s.store.Create(ctx, wf); err != nil {
		s.logger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Failed to create workflow in store")
		return nil, err
	}
	s.ownersMu.Lock()
	s.owners[wf.ID] = userID
	s.ownersMu.Unlock()

	subtasks, err := s.decomposer.Decompose(ctx, wf.ID, objective)
	if err == nil {
		err = orchestrator.BuildPlan(wf, subtasks)
	}
	if err != nil {
		s.logger.WithError(models.ErrorInfo{Message: err.Error()}).
			WithPayload(map[string]interface{}{"workflowID": wf.ID}).Error("Workflow planning failed")
		wf.Status = models.WorkflowStatusFailed
		wf.Error = err.Error()
		wf.CompletedAt = time.Now().UTC()
		_ = s.store.Update(ctx, wf)
		return nil, fmt.Errorf("workflow planning failed: %w", err)
	}

	if err := s.scheduler.Launch(ctx, wf); err != nil {
		return nil, err
	}
	return wf, nil
}

// HandleResult processes a task result message consumed from Kafka.
func (s *OrchestratorService) HandleResult(msg kafka.Message) error {
	var result models.TaskResult
	if err := json.Unmarshal(msg.Value, &result); err != nil {
		s.logger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Failed to unmarshal task result from Kafka")
		return err
	}
	return s.scheduler.HandleResult(context.Background(), &result)
}

// GetWorkflow returns a workflow visible to the given user. The live
// scheduler view wins over the persisted snapshot.
func (s *OrchestratorService) GetWorkflow(ctx context.Context, workflowID, userID string) (*models.Workflow, error) {
	if wf, ok := s.scheduler.Get(workflowID); ok {
		if wf.UserID != userID {
			return nil, nil
		}
		return wf, nil
	}

	wf, err := s.store.GetByID(ctx, workflowID)
	if err != nil {
		s.logger.WithError(models.ErrorInfo{Message: err.Error()}).
			WithPayload(map[string]interface{}{"workflowID": workflowID}).Error("Failed to get workflow from store")
		return nil, err
	}
	if wf != nil && wf.UserID != userID {
		s.logger.WithPayload(map[string]interface{}{
			"workflowID":       workflowID,
			"requestingUserID": userID,
		}).Warn("User attempted to access unauthorized workflow")
		return nil, nil
	}
	return wf, nil
}

// GetUserWorkflows returns a page of the user's workflows.
func (s *OrchestratorService) GetUserWorkflows(ctx context.Context, userID string, page, limit int) ([]*models.Workflow, error) {
	workflows, err := s.store.GetByUserID(ctx, userID, page, limit)
	if err != nil {
		s.logger.WithError(models.ErrorInfo{Message: err.Error()}).
			WithPayload(map[string]interface{}{"userID": userID}).Error("Failed to list workflows")
		return nil, err
	}
	return workflows, nil
}

// StopWorkflow stops a running workflow. Stopping a terminal or unknown
// workflow is a no-op.
func (s *OrchestratorService) StopWorkflow(ctx context.Context, workflowID, userID string) error {
	wf, err := s.GetWorkflow(ctx, workflowID, userID)
	if err != nil {
		return err
	}
	if wf == nil {
		return fmt.Errorf("workflow not found")
	}
	if wf.Status.IsTerminal() {
		return nil
	}

	if err := s.scheduler.Stop(ctx, workflowID); err != nil {
		return err
	}
	// 调度器不认识的活跃工作流（例如重启后遗留的）直接在存储里收尾。
	if _, active := s.scheduler.Get(workflowID); !active && !wf.Status.IsTerminal() {
		wf.Status = models.WorkflowStatusStopped
		wf.CompletedAt = time.Now().UTC()
		if err := s.store.Update(ctx, wf); err != nil {
			return err
		}
	}
	return nil
}

// Workers returns the worker replicas currently registered in etcd.
func (s *OrchestratorService) Workers() (map[string]string, error) {
	if s.discovery == nil {
		return nil, nil
	}
	return s.discovery.DiscoverServices("worker_service")
}

// pushWorkflowUpdate sends the latest workflow summary to its owner.
func (s *OrchestratorService) pushWorkflowUpdate(wf *models.Workflow) {
	s.ownersMu.Lock()
	userID, ok := s.owners[wf.ID]
	if !ok {
		userID = wf.UserID
	}
	if wf.Status.IsTerminal() {
		delete(s.owners, wf.ID)
	}
	s.ownersMu.Unlock()

	if userID == "" {
		return
	}
	payload, err := json.Marshal(wf.Summary())
	if err != nil {
		return
	}
	s.connManager.SendMessage(userID, payload)
}
