package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/pattty847/Multi-Agent-Team/internal/agent"
	"github.com/pattty847/Multi-Agent-Team/internal/llm"
	"github.com/pattty847/Multi-Agent-Team/internal/models"
	"github.com/pattty847/Multi-Agent-Team/pkg/logger"
)

// Workspace provides sandboxed code execution and access to the files a
// team session leaves behind.
type Workspace interface {
	RunCode(ctx context.Context, workflowID, code string) (string, error)
	Artifacts(workflowID string) ([]string, error)
}

// ResultPublisher sends task results back to the orchestration service.
type ResultPublisher interface {
	Publish(ctx context.Context, result *models.TaskResult) error
}

// EventPublisher broadcasts monitoring events.
type EventPublisher interface {
	Publish(ctx context.Context, event *models.Event) error
}

// ArtifactUploader persists workspace files to object storage.
type ArtifactUploader interface {
	UploadArtifacts(ctx context.Context, workflowID string, paths []string) ([]string, error)
}

// Coordinator consumes subtasks, assembles an agent team for each one, runs
// the team conversation and publishes the outcome.
type Coordinator struct {
	workerID  string
	client    llm.LLM
	workspace Workspace
	results   ResultPublisher
	events    EventPublisher
	artifacts ArtifactUploader
	maxRounds int
	logger    *logger.Logger
}

// NewCoordinator creates a new Coordinator. workspace and artifacts may be
// nil; the team then runs without code execution or artifact upload.
func NewCoordinator(workerID string, client llm.LLM, workspace Workspace, results ResultPublisher,
	events EventPublisher, artifacts ArtifactUploader, maxRounds int, log *logger.Logger) *Coordinator {
	return &Coordinator{
		workerID:  workerID,
		client:    client,
		workspace: workspace,
		results:   results,
		events:    events,
		artifacts: artifacts,
		maxRounds: maxRounds,
		logger:    log,
	}
}

// ProcessTask is the handler for each Kafka message.
func (c *Coordinator) ProcessTask(ctx context.Context, msg kafka.Message) error {
	var task models.SubTask
	if err := json.Unmarshal(msg.Value, &task); err != nil {
		c.logger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Failed to unmarshal subtask from Kafka")
		return err
	}

	taskLogger := logger.New("worker_service", task.WorkflowID, "")
	taskLogger.WithPayload(map[string]interface{}{
		"taskID": task.ID,
		"roles":  task.RequiredRoles,
	}).Info("Starting team session for subtask")

	registry := agent.NewTeamRegistry(c.client, c.workspace, task.WorkflowID)
	members := registry.Select(task.RequiredRoles)

	team, err := agent.NewTeam(registry, task.RequiredRoles, c.maxRounds, c.interactionLogger(ctx))
	if err != nil {
		taskLogger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Failed to assemble team")
		return c.publishResult(ctx, &task, nil, err)
	}

	c.publishAgentStatus(ctx, members, models.AgentStatusBusy, &task)
	runResult, runErr := team.Run(ctx, &task)
	c.publishAgentStatus(ctx, members, models.AgentStatusIdle, &task)

	if runErr != nil {
		taskLogger.WithError(models.ErrorInfo{Message: runErr.Error()}).WithPayload(map[string]interface{}{
			"taskID": task.ID,
		}).Error("Team session failed")
		return c.publishResult(ctx, &task, nil, runErr)
	}

	taskLogger.WithPayload(map[string]interface{}{
		"taskID": task.ID,
		"rounds": runResult.Rounds,
	}).Info("Team session completed")

	c.uploadArtifacts(ctx, &task, taskLogger)
	return c.publishResult(ctx, &task, runResult, nil)
}

// uploadArtifacts pushes files left in the workflow's workspace directory to
// object storage. Upload failures are logged, not fatal: the task result
// itself already carries the team's answer.
func (c *Coordinator) uploadArtifacts(ctx context.Context, task *models.SubTask, taskLogger *logger.Logger) {
	if c.workspace == nil || c.artifacts == nil {
		return
	}
	paths, err := c.workspace.Artifacts(task.WorkflowID)
	if err != nil {
		taskLogger.WithError(models.ErrorInfo{Message: err.Error()}).Warn("Failed to list workspace artifacts")
		return
	}
	if len(paths) == 0 {
		return
	}
	objects, err := c.artifacts.UploadArtifacts(ctx, task.WorkflowID, paths)
	if err != nil {
		taskLogger.WithError(models.ErrorInfo{Message: err.Error()}).Warn("Failed to upload workspace artifacts")
		return
	}
	taskLogger.WithPayload(map[string]interface{}{
		"taskID":    task.ID,
		"artifacts": objects,
	}).Info("Workspace artifacts uploaded")
}

func (c *Coordinator) publishResult(ctx context.Context, task *models.SubTask, runResult *agent.RunResult, runErr error) error {
	result := &models.TaskResult{
		WorkflowID:  task.WorkflowID,
		TaskID:      task.ID,
		WorkerID:    c.workerID,
		CompletedAt: time.Now().UTC(),
	}
	if runErr != nil {
		result.Status = models.TaskStatusFailed
		result.Error = runErr.Error()
	} else {
		result.Status = models.TaskStatusCompleted
		result.Result = runResult.Result
		result.Participants = runResult.Participants
	}

	if err := c.results.Publish(ctx, result); err != nil {
		c.logger.WithError(models.ErrorInfo{Message: err.Error()}).WithPayload(map[string]interface{}{
			"taskID": task.ID,
		}).Error("Failed to publish task result to Kafka")
		return err
	}
	return nil
}

// interactionLogger forwards every agent message to the monitoring event
// topic.
func (c *Coordinator) interactionLogger(ctx context.Context) agent.InteractionLogger {
	return func(interaction models.Interaction) {
		event := &models.Event{
			Type:        models.EventInteraction,
			WorkflowID:  interaction.WorkflowID,
			TaskID:      interaction.TaskID,
			Interaction: &interaction,
			Timestamp:   interaction.Timestamp,
		}
		if err := c.events.Publish(ctx, event); err != nil {
			c.logger.WithError(models.ErrorInfo{Message: err.Error()}).Warn("Failed to publish interaction event")
		}
	}
}

func (c *Coordinator) publishAgentStatus(ctx context.Context, members []agent.Agent, status models.AgentStatus, task *models.SubTask) {
	now := time.Now().UTC()
	for _, m := range members {
		meta := m.Metadata()
		event := &models.Event{
			Type:       models.EventAgentStatus,
			WorkflowID: task.WorkflowID,
			TaskID:     task.ID,
			AgentState: &models.AgentState{
				Name:        meta.Name,
				Role:        meta.Role,
				Status:      status,
				WorkflowID:  task.WorkflowID,
				CurrentTask: task.ID,
				LastActive:  now,
			},
			Timestamp: now,
		}
		if status == models.AgentStatusIdle {
			event.AgentState.WorkflowID = ""
			event.AgentState.CurrentTask = ""
		}
		if err := c.events.Publish(ctx, event); err != nil {
			c.logger.WithError(models.ErrorInfo{Message: err.Error()}).Warn(
				fmt.Sprintf("Failed to publish agent status for %s", meta.Name))
		}
	}
}
