package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/pattty847/Multi-Agent-Team/internal/models"
	"github.com/pattty847/Multi-Agent-Team/pkg/logger"
)

// redisAgentKey 是 Redis 中 Agent 状态快照的 Hash 键。
const redisAgentKey = "monitor:agents"

// 每个工作流保留的交互记录上限。
const maxInteractionsPerWorkflow = 500

// Counters 是监控服务的累计计数。
type Counters struct {
	MessagesProcessed int64 `json:"messages_processed"`
	ActiveWorkflows   int   `json:"active_workflows"`
	TasksCompleted    int64 `json:"tasks_completed"`
	UnknownEvents     int64 `json:"unknown_events"`
}

// HostMetrics 是监控进程所在主机的资源采样。
type HostMetrics struct {
	CPUPercent    float64   `json:"cpu_percent"`
	MemoryPercent float64   `json:"memory_percent"`
	MemoryUsedMB  float64   `json:"memory_used_mb"`
	SampledAt     time.Time `json:"sampled_at"`
}

// StateTracker 消费事件主题，维护 Agent 与工作流的实时视图，
// 并把 Agent 快照同步到 Redis 供重启后恢复。
type StateTracker struct {
	mu           sync.RWMutex
	agents       map[string]*models.AgentState
	workflows    map[string]*models.WorkflowSummary
	interactions map[string][]models.Interaction
	counters     Counters
	host         HostMetrics

	buffer *NodeUpdateBuffer
	rdb    *redis.Client // 可以为 nil（纯内存模式）
}

// NewStateTracker 创建状态跟踪器。rdb 为 nil 时跳过快照持久化。
func NewStateTracker(buffer *NodeUpdateBuffer, rdb *redis.Client) *StateTracker {
	return &StateTracker{
		agents:       make(map[string]*models.AgentState),
		workflows:    make(map[string]*models.WorkflowSummary),
		interactions: make(map[string][]models.Interaction),
		buffer:       buffer,
		rdb:          rdb,
	}
}

// Restore 从 Redis 恢复 Agent 快照（服务重启后调用一次）。
func (t *StateTracker) Restore(ctx context.Context) error {
	if t.rdb == nil {
		return nil
	}
	entries, err := t.rdb.HGetAll(ctx, redisAgentKey).Result()
	if err != nil {
		return fmt.Errorf("failed to restore agent snapshots: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for name, raw := range entries {
		var state models.AgentState
		if err := json.Unmarshal([]byte(raw), &state); err != nil {
			continue
		}
		t.agents[name] = &state
	}
	return nil
}

// Apply 把一条事件应用到实时视图。未知的事件类型只计数，不报错。
func (t *StateTracker) Apply(ctx context.Context, event *models.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.counters.MessagesProcessed++

	switch event.Type {
	case models.EventAgentStatus:
		if event.AgentState == nil {
			return
		}
		state := *event.AgentState
		if state.LastActive.IsZero() {
			state.LastActive = event.Timestamp
		}
		t.agents[state.Name] = &state
		t.buffer.Add("agent:"+state.Name, state)
		t.snapshotAgent(ctx, &state)

	case models.EventInteraction:
		if event.Interaction == nil {
			return
		}
		i := *event.Interaction
		log := t.interactions[i.WorkflowID]
		log = append(log, i)
		if len(log) > maxInteractionsPerWorkflow {
			log = log[len(log)-maxInteractionsPerWorkflow:]
		}
		t.interactions[i.WorkflowID] = log
		t.buffer.Add("interaction:"+i.WorkflowID, i)

	case models.EventTaskCompleted:
		t.counters.TasksCompleted++
		t.applyWorkflow(event)

	case models.EventWorkflowStarted, models.EventWorkflowUpdated, models.EventWorkflowCompleted,
		models.EventWorkflowFailed, models.EventWorkflowStalled, models.EventWorkflowReplanned,
		models.EventTaskScheduled, models.EventTaskFailed:
		t.applyWorkflow(event)

	default:
		t.counters.UnknownEvents++
	}
}

// applyWorkflow 更新工作流视图并刷新活跃计数。调用方持有锁。
func (t *StateTracker) applyWorkflow(event *models.Event) {
	if event.Workflow == nil {
		return
	}
	summary := *event.Workflow
	t.workflows[summary.ID] = &summary
	t.buffer.Add("workflow:"+summary.ID, summary)

	active := 0
	for _, wf := range t.workflows {
		if !wf.Status.IsTerminal() {
			active++
		}
	}
	t.counters.ActiveWorkflows = active
}

func (t *StateTracker) snapshotAgent(ctx context.Context, state *models.AgentState) {
	if t.rdb == nil {
		return
	}
	raw, err := json.Marshal(state)
	if err != nil {
		return
	}
	if err := t.rdb.HSet(ctx, redisAgentKey, state.Name, raw).Err(); err != nil {
		logger.New("monitor_service", "", "").Warn(
			fmt.Sprintf("failed to snapshot agent %s to redis: %v", state.Name, err))
	}
}

// SetHostMetrics 记录最近一次主机资源采样。
func (t *StateTracker) SetHostMetrics(m HostMetrics) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.host = m
	t.buffer.Add("host", m)
}

// Agents 返回 Agent 状态列表，role 非空时按角色过滤。
func (t *StateTracker) Agents(role models.AgentRole) []models.AgentState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var states []models.AgentState
	for _, s := range t.agents {
		if role != "" && s.Role != role {
			continue
		}
		states = append(states, *s)
	}
	return states
}

// Workflows 返回全部工作流摘要。
func (t *StateTracker) Workflows() []models.WorkflowSummary {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var summaries []models.WorkflowSummary
	for _, wf := range t.workflows {
		summaries = append(summaries, *wf)
	}
	return summaries
}

// Interactions 返回某个工作流的交互记录。
func (t *StateTracker) Interactions(workflowID string) []models.Interaction {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]models.Interaction(nil), t.interactions[workflowID]...)
}

// Snapshot 返回计数器和主机指标的当前值。
func (t *StateTracker) Snapshot() (Counters, HostMetrics) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.counters, t.host
}
