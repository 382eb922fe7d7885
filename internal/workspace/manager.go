package workspace

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/pattty847/Multi-Agent-Team/internal/config"
	"github.com/pattty847/Multi-Agent-Team/pkg/logger"
)

// Runner 执行一条外部命令并返回合并后的输出。
// 生产实现调用 docker CLI，测试中用假实现替换。
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (string, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	return string(out), err
}

// Manager 管理代码执行用的 Docker 工作区：持久化的工作卷、
// 包缓存卷，以及带资源限制的一次性执行容器。
type Manager struct {
	cfg    config.WorkspaceConfig
	runner Runner
}

// NewManager 创建工作区管理器并准备宿主机目录。
func NewManager(cfg config.WorkspaceConfig) (*Manager, error) {
	return NewManagerWithRunner(cfg, execRunner{})
}

// NewManagerWithRunner 允许注入命令执行器，测试专用。
func NewManagerWithRunner(cfg config.WorkspaceConfig, runner Runner) (*Manager, error) {
	if cfg.BaseDir == "" {
		cfg.BaseDir = "docker_workspace"
	}
	if err := os.MkdirAll(filepath.Join(cfg.BaseDir, "workspace"), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create workspace directory: %w", err)
	}
	return &Manager{cfg: cfg, runner: runner}, nil
}

// EnsureVolumes 并发检查两个数据卷，缺失的补建。
func (m *Manager) EnsureVolumes(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, name := range []string{m.cfg.WorkVolume, m.cfg.CacheVolume} {
		name := name
		g.Go(func() error {
			return m.ensureVolume(ctx, name)
		})
	}
	return g.Wait()
}

func (m *Manager) ensureVolume(ctx context.Context, name string) error {
	if name == "" {
		return fmt.Errorf("volume name is empty")
	}
	if _, err := m.runner.Run(ctx, "docker", "volume", "inspect", name); err == nil {
		return nil
	}
	out, err := m.runner.Run(ctx, "docker", "volume", "create", "--driver", "local", name)
	if err != nil {
		return fmt.Errorf("failed to create volume %s: %w (%s)", name, err, strings.TrimSpace(out))
	}
	logger.New("worker_service", "", "").Info(fmt.Sprintf("created docker volume %s", name))
	return nil
}

// RunCode 把代码片段写入工作流专属目录，在一次性容器里执行并返回输出。
// 容器只读挂载片段目录，工作卷和包缓存卷保持可写，由 --rm 负责回收。
func (m *Manager) RunCode(ctx context.Context, workflowID, code string) (string, error) {
	srcDir, err := m.snippetDir(workflowID)
	if err != nil {
		return "", err
	}
	fileName := fmt.Sprintf("snippet_%s.py", uuid.NewString())
	if err := os.WriteFile(filepath.Join(srcDir, fileName), []byte(code), 0o644); err != nil {
		return "", fmt.Errorf("failed to write code snippet: %w", err)
	}

	absSrc, err := filepath.Abs(srcDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve snippet directory: %w", err)
	}

	args := []string{
		"run", "--rm",
		"--label", fmt.Sprintf("created_by=%s", m.cfg.ContainerLabel),
		"-v", fmt.Sprintf("%s:/workspace", m.cfg.WorkVolume),
		"-v", fmt.Sprintf("%s:/root/.cache/pip", m.cfg.CacheVolume),
		"-v", fmt.Sprintf("%s:/src:ro", absSrc),
		"-w", "/workspace",
	}
	if m.cfg.CPULimit != "" {
		args = append(args, "--cpus", m.cfg.CPULimit)
	}
	if m.cfg.MemoryLimit != "" {
		args = append(args, "--memory", m.cfg.MemoryLimit)
	}
	args = append(args, m.cfg.Image, "python", "/src/"+fileName)

	runCtx, cancel := context.WithTimeout(ctx, m.cfg.ExecTimeoutDuration())
	defer cancel()

	out, err := m.runner.Run(runCtx, "docker", args...)
	if err != nil {
		return out, fmt.Errorf("code execution failed: %w (%s)", err, strings.TrimSpace(out))
	}
	return out, nil
}

// CleanupUnused 删除带本工作区标签且已退出的容器。数据卷永远保留。
func (m *Manager) CleanupUnused(ctx context.Context) error {
	out, err := m.runner.Run(ctx, "docker", "ps", "-a", "-q",
		"--filter", fmt.Sprintf("label=created_by=%s", m.cfg.ContainerLabel),
		"--filter", "status=exited")
	if err != nil {
		return fmt.Errorf("failed to list exited containers: %w", err)
	}

	log := logger.New("worker_service", "", "")
	for _, id := range strings.Fields(out) {
		if _, err := m.runner.Run(ctx, "docker", "rm", id); err != nil {
			log.Warn(fmt.Sprintf("failed to remove container %s: %v", id, err))
			continue
		}
		log.Info(fmt.Sprintf("removed unused container %s", id))
	}
	return nil
}

// Artifacts 返回工作流目录下生成的全部文件路径（不含代码片段）。
func (m *Manager) Artifacts(workflowID string) ([]string, error) {
	dir := filepath.Join(m.cfg.BaseDir, "workspace", workflowID)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list workspace artifacts: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), "snippet_") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	return files, nil
}

func (m *Manager) snippetDir(workflowID string) (string, error) {
	dir := filepath.Join(m.cfg.BaseDir, "workspace", workflowID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create workflow workspace: %w", err)
	}
	return dir, nil
}
