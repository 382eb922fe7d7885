package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pattty847/Multi-Agent-Team/internal/config"
	"github.com/pattty847/Multi-Agent-Team/internal/models"
	"github.com/pattty847/Multi-Agent-Team/pkg/logger"
)

// TaskPublisher 把就绪的子任务投递到任务主题。
type TaskPublisher interface {
	PublishTask(ctx context.Context, task *models.SubTask) error
}

// EventSink 把编排过程中产生的事件广播给监控端。
type EventSink interface {
	Publish(ctx context.Context, event *models.Event) error
}

// WorkflowStore 持久化工作流快照。
type WorkflowStore interface {
	Update(ctx context.Context, wf *models.Workflow) error
}

// EventLedger 是账本的最小接口，测试中用假实现替换。
type EventLedger interface {
	RecordEvent(ctx context.Context, workflowID, taskID, agentID string, eventType models.EventType, details interface{}) error
	RecordTaskOutcome(ctx context.Context, agentID string, success bool) error
}

// Scheduler 按依赖关系推进工作流：就绪的子任务被发布到任务主题，
// 结果到达后推进 DAG，停滞的工作流由看门狗重排。
type Scheduler struct {
	cfg    config.OrchestratorConfig
	store  WorkflowStore
	tasks  TaskPublisher
	events EventSink
	ledger EventLedger
	notify func(*models.Workflow)

	mu        sync.Mutex
	workflows map[string]*models.Workflow
}

// NewScheduler 创建调度器。notify 可以为 nil。
func NewScheduler(cfg config.OrchestratorConfig, store WorkflowStore, tasks TaskPublisher, events EventSink, ledger EventLedger) *Scheduler {
	return &Scheduler{
		cfg:       cfg,
		store:     store,
		tasks:     tasks,
		events:    events,
		ledger:    ledger,
		workflows: make(map[string]*models.Workflow),
	}
}

// SetNotify 注册工作流状态变化的回调（用于 WebSocket 推送）。
func (s *Scheduler) SetNotify(fn func(*models.Workflow)) {
	s.notify = fn
}

// Start 启动停滞检测看门狗，直到 ctx 结束。
func (s *Scheduler) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.cfg.StallCheckIntervalDuration())
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.checkStalls(ctx)
			}
		}
	}()
}

// Launch 登记一个已完成规划的工作流并发布初始就绪集。
func (s *Scheduler) Launch(ctx context.Context, wf *models.Workflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	wf.Status = models.WorkflowStatusRunning
	wf.LastProgress = time.Now().UTC()
	s.workflows[wf.ID] = wf

	if err := s.ledger.RecordEvent(ctx, wf.ID, "", "", models.EventWorkflowStarted,
		map[string]string{"objective": wf.Objective}); err != nil {
		s.logError(wf.ID, "failed to record workflow start", err)
	}
	s.emit(ctx, models.EventWorkflowStarted, wf, "", "")

	s.advance(ctx, wf)
	s.finalize(ctx, wf)
	s.persist(ctx, wf)
	return nil
}

// Get 返回某个活跃工作流的快照副本。
func (s *Scheduler) Get(id string) (*models.Workflow, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wf, ok := s.workflows[id]
	if !ok {
		return nil, false
	}
	snapshot := *wf
	snapshot.SubTasks = append([]models.SubTask(nil), wf.SubTasks...)
	return &snapshot, true
}

// HandleResult 消费一条 worker 回传的任务结果并推进工作流。
// 未知的工作流或任务会被记录并忽略。
func (s *Scheduler) HandleResult(ctx context.Context, res *models.TaskResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	wf, ok := s.workflows[res.WorkflowID]
	if !ok {
		logger.New("api_service", res.WorkflowID, "").Warn(
			fmt.Sprintf("received result for unknown workflow, task %s dropped", res.TaskID))
		return nil
	}
	task := wf.FindTask(res.TaskID)
	if task == nil {
		s.logWarn(wf.ID, fmt.Sprintf("received result for unknown task %s", res.TaskID))
		return nil
	}
	if task.Status.IsTerminal() {
		// 重复投递，丢弃。
		return nil
	}

	now := time.Now().UTC()
	wf.LastProgress = now

	switch res.Status {
	case models.TaskStatusCompleted:
		task.Status = models.TaskStatusCompleted
		task.Result = res.Result
		task.CompletedAt = now
		if err := s.ledger.RecordEvent(ctx, wf.ID, task.ID, res.WorkerID, models.EventTaskCompleted,
			map[string]interface{}{"participants": res.Participants}); err != nil {
			s.logError(wf.ID, "failed to record task completion", err)
		}
		s.recordOutcomes(ctx, res.Participants, true)
		s.emit(ctx, models.EventTaskCompleted, wf, task.ID, "")

	default:
		task.Error = res.Error
		if err := s.ledger.RecordEvent(ctx, wf.ID, task.ID, res.WorkerID, models.EventTaskFailed,
			map[string]interface{}{"error": res.Error, "attempt": task.Attempts}); err != nil {
			s.logError(wf.ID, "failed to record task failure", err)
		}
		s.recordOutcomes(ctx, res.Participants, false)
		s.emit(ctx, models.EventTaskFailed, wf, task.ID, res.Error)

		if task.Attempts >= s.cfg.MaxTaskAttempts {
			task.Status = models.TaskStatusFailed
			task.CompletedAt = now
		} else {
			// 还有重试额度，放回待调度集。
			task.Status = models.TaskStatusPending
		}
	}

	s.advance(ctx, wf)
	s.finalize(ctx, wf)
	s.persist(ctx, wf)
	return nil
}

// Stop 停止一个工作流。幂等：已终止的工作流是空操作。
func (s *Scheduler) Stop(ctx context.Context, workflowID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	wf, ok := s.workflows[workflowID]
	if !ok || wf.Status.IsTerminal() {
		return nil
	}

	wf.Status = models.WorkflowStatusStopped
	wf.CompletedAt = time.Now().UTC()
	if err := s.ledger.RecordEvent(ctx, wf.ID, "", "", models.EventWorkflowUpdated,
		map[string]string{"reason": "stopped by user"}); err != nil {
		s.logError(wf.ID, "failed to record workflow stop", err)
	}
	s.emit(ctx, models.EventWorkflowUpdated, wf, "", "stopped by user")
	s.persist(ctx, wf)
	delete(s.workflows, workflowID)
	return nil
}

// checkStalls 扫描活跃工作流，对停滞者触发重排。
func (s *Scheduler) checkStalls(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stallTimeout := s.cfg.StallTimeoutDuration()
	now := time.Now().UTC()

	for _, wf := range s.workflows {
		if wf.Status != models.WorkflowStatusRunning {
			continue
		}
		if s.inFlight(wf) == 0 {
			continue
		}
		if now.Sub(wf.LastProgress) < stallTimeout {
			continue
		}
		s.replan(ctx, wf)
	}
}

// replan 处理一个停滞的工作流：重发在途任务，超过重排上限则判定失败。
func (s *Scheduler) replan(ctx context.Context, wf *models.Workflow) {
	wf.Status = models.WorkflowStatusStalled
	wf.ReplanCount++

	if err := s.ledger.RecordEvent(ctx, wf.ID, "", "", models.EventWorkflowStalled,
		map[string]interface{}{"replan_count": wf.ReplanCount}); err != nil {
		s.logError(wf.ID, "failed to record stall", err)
	}
	s.emit(ctx, models.EventWorkflowStalled, wf, "", "")
	s.logWarn(wf.ID, fmt.Sprintf("workflow stalled, replan %d of %d", wf.ReplanCount, s.cfg.MaxReplans))

	if wf.ReplanCount > s.cfg.MaxReplans {
		s.fail(ctx, wf, "workflow stalled too many times")
		s.persist(ctx, wf)
		return
	}

	wf.Status = models.WorkflowStatusReplanning
	now := time.Now().UTC()
	for i := range wf.SubTasks {
		task := &wf.SubTasks[i]
		if task.Status != models.TaskStatusReady && task.Status != models.TaskStatusRunning {
			continue
		}
		if task.Attempts >= s.cfg.MaxTaskAttempts {
			task.Status = models.TaskStatusFailed
			task.Error = "task exceeded attempt limit while stalled"
			task.CompletedAt = now
			continue
		}
		task.Status = models.TaskStatusPending
	}

	s.emit(ctx, models.EventWorkflowReplanned, wf, "", "")
	wf.Status = models.WorkflowStatusRunning
	wf.LastProgress = now

	s.advance(ctx, wf)
	s.finalize(ctx, wf)
	s.persist(ctx, wf)
}

// advance 把依赖全部完成的待调度任务发布到任务主题。调用方持有锁。
func (s *Scheduler) advance(ctx context.Context, wf *models.Workflow) {
	if wf.Status != models.WorkflowStatusRunning && wf.Status != models.WorkflowStatusReplanning {
		return
	}

	completed := make(map[string]bool, len(wf.SubTasks))
	for i := range wf.SubTasks {
		if wf.SubTasks[i].Status == models.TaskStatusCompleted {
			completed[wf.SubTasks[i].ID] = true
		}
	}

	for i := range wf.SubTasks {
		task := &wf.SubTasks[i]
		if task.Status != models.TaskStatusPending {
			continue
		}
		ready := true
		for _, dep := range task.Dependencies {
			if !completed[dep] {
				ready = false
				break
			}
		}
		if ready {
			task.Status = models.TaskStatusReady
		}
	}

	now := time.Now().UTC()
	for i := range wf.SubTasks {
		task := &wf.SubTasks[i]
		if task.Status != models.TaskStatusReady {
			continue
		}

		task.Attempts++
		task.StartedAt = now
		if err := s.tasks.PublishTask(ctx, task); err != nil {
			// 发布失败的任务留在就绪集，等待下一次推进或看门狗重试。
			task.Attempts--
			s.logError(wf.ID, fmt.Sprintf("failed to publish task %s", task.ID), err)
			continue
		}
		task.Status = models.TaskStatusRunning

		if err := s.ledger.RecordEvent(ctx, wf.ID, task.ID, "", models.EventTaskScheduled,
			map[string]interface{}{"attempt": task.Attempts, "role": task.AssignedRole}); err != nil {
			s.logError(wf.ID, "failed to record task scheduling", err)
		}
		s.emit(ctx, models.EventTaskScheduled, wf, task.ID, "")
	}
}

// finalize 在没有在途任务时收敛工作流的终态。调用方持有锁。
func (s *Scheduler) finalize(ctx context.Context, wf *models.Workflow) {
	if wf.Status != models.WorkflowStatusRunning {
		return
	}
	if s.inFlight(wf) > 0 {
		return
	}

	failed := 0
	pending := 0
	for i := range wf.SubTasks {
		switch wf.SubTasks[i].Status {
		case models.TaskStatusFailed:
			failed++
		case models.TaskStatusPending:
			pending++
		}
	}

	if failed == 0 && pending == 0 {
		wf.Status = models.WorkflowStatusCompleted
		wf.CompletedAt = time.Now().UTC()
		if err := s.ledger.RecordEvent(ctx, wf.ID, "", "", models.EventWorkflowCompleted, nil); err != nil {
			s.logError(wf.ID, "failed to record workflow completion", err)
		}
		s.emit(ctx, models.EventWorkflowCompleted, wf, "", "")
		delete(s.workflows, wf.ID)
		return
	}

	// 剩余的待调度任务只可能被失败的依赖阻塞（环在规划期已被拒绝）。
	s.fail(ctx, wf, fmt.Sprintf("%d task(s) failed, %d blocked", failed, pending))
}

// fail 把工作流置为失败终态。调用方持有锁。
func (s *Scheduler) fail(ctx context.Context, wf *models.Workflow, reason string) {
	wf.Status = models.WorkflowStatusFailed
	wf.Error = reason
	wf.CompletedAt = time.Now().UTC()
	if err := s.ledger.RecordEvent(ctx, wf.ID, "", "", models.EventWorkflowFailed,
		map[string]string{"error": reason}); err != nil {
		s.logError(wf.ID, "failed to record workflow failure", err)
	}
	s.emit(ctx, models.EventWorkflowFailed, wf, "", reason)
	delete(s.workflows, wf.ID)
}

func (s *Scheduler) inFlight(wf *models.Workflow) int {
	n := 0
	for i := range wf.SubTasks {
		status := wf.SubTasks[i].Status
		if status == models.TaskStatusReady || status == models.TaskStatusRunning {
			n++
		}
	}
	return n
}

func (s *Scheduler) recordOutcomes(ctx context.Context, participants []string, success bool) {
	for _, agentID := range participants {
		if err := s.ledger.RecordTaskOutcome(ctx, agentID, success); err != nil {
			logger.New("api_service", "", "").Error(
				fmt.Sprintf("failed to record outcome for agent %s: %v", agentID, err))
		}
	}
}

func (s *Scheduler) emit(ctx context.Context, eventType models.EventType, wf *models.Workflow, taskID, detail string) {
	summary := wf.Summary()
	event := &models.Event{
		Type:       eventType,
		WorkflowID: wf.ID,
		TaskID:     taskID,
		Workflow:   &summary,
		Detail:     detail,
		Timestamp:  time.Now().UTC(),
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logError(wf.ID, fmt.Sprintf("failed to publish %s event", eventType), err)
	}
}

func (s *Scheduler) persist(ctx context.Context, wf *models.Workflow) {
	if s.store != nil {
		if err := s.store.Update(ctx, wf); err != nil {
			s.logError(wf.ID, "failed to persist workflow snapshot", err)
		}
	}
	if s.notify != nil {
		snapshot := *wf
		snapshot.SubTasks = append([]models.SubTask(nil), wf.SubTasks...)
		s.notify(&snapshot)
	}
}

func (s *Scheduler) logWarn(workflowID, message string) {
	logger.New("api_service", workflowID, "").Warn(message)
}

func (s *Scheduler) logError(workflowID, message string, err error) {
	logger.New("api_service", workflowID, "").WithError(models.ErrorInfo{
		Message: err.Error(),
	}).Error(message)
}
