package orchestrator

import (
	"errors"
	"fmt"

	"github.com/pattty847/Multi-Agent-Team/internal/models"
)

// ErrDependencyCycle 表示子任务依赖图中存在环，无法拓扑排序。
var ErrDependencyCycle = errors.New("dependency cycle detected")

// ValidateDependencies 用 Kahn 算法检查依赖图是否为有向无环图。
func ValidateDependencies(subtasks []*models.SubTask) error {
	indegree := make(map[string]int, len(subtasks))
	dependents := make(map[string][]string, len(subtasks))

	for _, t := range subtasks {
		indegree[t.ID] += 0
		for _, dep := range t.Dependencies {
			if _, ok := indegree[dep]; !ok {
				if !containsTask(subtasks, dep) {
					return fmt.Errorf("task %s has invalid dependency: %s", t.ID, dep)
				}
			}
			indegree[t.ID]++
			dependents[dep] = append(dependents[dep], t.ID)
		}
	}

	var queue []string
	for _, t := range subtasks {
		if indegree[t.ID] == 0 {
			queue = append(queue, t.ID)
		}
	}

	visited := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		visited++
		for _, next := range dependents[id] {
			indegree[next]--
			if indegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if visited != len(subtasks) {
		return ErrDependencyCycle
	}
	return nil
}

// AssignRoles 为每个子任务选定主责角色：取所需角色中的第一个，
// 未指定任何角色时兜底到项目经理。
func AssignRoles(subtasks []*models.SubTask) map[string]models.AgentRole {
	assignments := make(map[string]models.AgentRole, len(subtasks))
	for _, t := range subtasks {
		role := models.RolePM
		if len(t.RequiredRoles) > 0 {
			role = t.RequiredRoles[0]
		}
		t.AssignedRole = role
		assignments[t.ID] = role
	}
	return assignments
}

// BuildPlan 对分解结果做完整规划：结构校验、环检测、角色分配，
// 并把子任务挂载到工作流上。
func BuildPlan(wf *models.Workflow, subtasks []*models.SubTask) error {
	if err := ValidateSubTasks(subtasks); err != nil {
		return err
	}
	if err := ValidateDependencies(subtasks); err != nil {
		return err
	}

	wf.Assignments = AssignRoles(subtasks)
	wf.SubTasks = make([]models.SubTask, 0, len(subtasks))
	for _, t := range subtasks {
		wf.SubTasks = append(wf.SubTasks, *t)
	}
	return nil
}

func containsTask(subtasks []*models.SubTask, id string) bool {
	for _, t := range subtasks {
		if t.ID == id {
			return true
		}
	}
	return false
}
