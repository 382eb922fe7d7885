package agent

import (
	"sync"

	"github.com/pattty847/Multi-Agent-Team/internal/models"
)

// Registry 在内存中按角色存储和管理 Agent 实例。
type Registry struct {
	agents map[models.AgentRole]Agent
	mutex  sync.RWMutex
}

// NewRegistry 创建一个新的本地注册表实例。
func NewRegistry() *Registry {
	return &Registry{
		agents: make(map[models.AgentRole]Agent),
	}
}

// Register 将一个 Agent 实例添加到注册表。同一角色后注册的会覆盖先注册的。
func (r *Registry) Register(a Agent) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.agents[a.Metadata().Role] = a
}

// Get 根据角色检索一个 Agent。
func (r *Registry) Get(role models.AgentRole) (Agent, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	a, found := r.agents[role]
	return a, found
}

// ListMetadata 返回所有已注册 Agent 的元数据列表。
func (r *Registry) ListMetadata() []models.AgentMetadata {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	var metadataList []models.AgentMetadata
	for _, role := range models.AllRoles {
		if a, ok := r.agents[role]; ok {
			metadataList = append(metadataList, a.Metadata())
		}
	}
	return metadataList
}

// Select 按给定的角色列表挑选 Agent，跳过未注册和重复的角色。
func (r *Registry) Select(roles []models.AgentRole) []Agent {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	var selected []Agent
	seen := make(map[models.AgentRole]bool, len(roles))
	for _, role := range roles {
		if seen[role] {
			continue
		}
		seen[role] = true
		if a, ok := r.agents[role]; ok {
			selected = append(selected, a)
		}
	}
	return selected
}
