package workspace

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/pattty847/Multi-Agent-Team/internal/config"
)

// fakeRunner 记录每次调用，并按命令前缀返回预设结果。
type fakeRunner struct {
	calls   [][]string
	outputs map[string]string
	errors  map[string]error
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{
		outputs: make(map[string]string),
		errors:  make(map[string]error),
	}
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) (string, error) {
	call := append([]string{name}, args...)
	f.calls = append(f.calls, call)
	key := strings.Join(call[:min(3, len(call))], " ")
	if err, ok := f.errors[key]; ok {
		return f.outputs[key], err
	}
	return f.outputs[key], nil
}

func testWorkspaceConfig(t *testing.T) config.WorkspaceConfig {
	t.Helper()
	return config.WorkspaceConfig{
		BaseDir:        t.TempDir(),
		Image:          "python:3.11-slim",
		WorkVolume:     "workspace_volume",
		CacheVolume:    "pip_cache_volume",
		ContainerLabel: "team_code_agent",
		CPULimit:       "1.0",
		MemoryLimit:    "512m",
		ExecTimeout:    "30s",
	}
}

func (f *fakeRunner) callsWith(prefix ...string) [][]string {
	var matched [][]string
	for _, call := range f.calls {
		if len(call) < len(prefix) {
			continue
		}
		ok := true
		for i, p := range prefix {
			if call[i] != p {
				ok = false
				break
			}
		}
		if ok {
			matched = append(matched, call)
		}
	}
	return matched
}

func TestEnsureVolumesCreatesMissing(t *testing.T) {
	runner := newFakeRunner()
	runner.errors["docker volume inspect"] = errors.New("no such volume")

	m, err := NewManagerWithRunner(testWorkspaceConfig(t), runner)
	if err != nil {
		t.Fatalf("NewManagerWithRunner failed: %v", err)
	}
	if err := m.EnsureVolumes(context.Background()); err != nil {
		t.Fatalf("EnsureVolumes failed: %v", err)
	}

	creates := runner.callsWith("docker", "volume", "create")
	if len(creates) != 2 {
		t.Fatalf("expected 2 volume creates, got %d: %v", len(creates), runner.calls)
	}
}

func TestEnsureVolumesSkipsExisting(t *testing.T) {
	runner := newFakeRunner()
	m, err := NewManagerWithRunner(testWorkspaceConfig(t), runner)
	if err != nil {
		t.Fatalf("NewManagerWithRunner failed: %v", err)
	}
	if err := m.EnsureVolumes(context.Background()); err != nil {
		t.Fatalf("EnsureVolumes failed: %v", err)
	}
	if creates := runner.callsWith("docker", "volume", "create"); len(creates) != 0 {
		t.Fatalf("existing volumes should not be recreated: %v", creates)
	}
}

func TestRunCodeBuildsDockerCommand(t *testing.T) {
	runner := newFakeRunner()
	runner.outputs["docker run --rm"] = "hello\n"

	m, err := NewManagerWithRunner(testWorkspaceConfig(t), runner)
	if err != nil {
		t.Fatalf("NewManagerWithRunner failed: %v", err)
	}

	out, err := m.RunCode(context.Background(), "wf-1", "print('hello')")
	if err != nil {
		t.Fatalf("RunCode failed: %v", err)
	}
	if out != "hello\n" {
		t.Errorf("unexpected output: %q", out)
	}

	runs := runner.callsWith("docker", "run")
	if len(runs) != 1 {
		t.Fatalf("expected one docker run, got %v", runner.calls)
	}
	cmd := strings.Join(runs[0], " ")
	for _, want := range []string{
		"--rm",
		"--label created_by=team_code_agent",
		"workspace_volume:/workspace",
		"pip_cache_volume:/root/.cache/pip",
		":/src:ro",
		"--cpus 1.0",
		"--memory 512m",
		"python:3.11-slim python /src/snippet_",
	} {
		if !strings.Contains(cmd, want) {
			t.Errorf("docker run missing %q: %s", want, cmd)
		}
	}
}

func TestRunCodeSurfacesFailureOutput(t *testing.T) {
	runner := newFakeRunner()
	runner.outputs["docker run --rm"] = "Traceback: boom"
	runner.errors["docker run --rm"] = errors.New("exit status 1")

	m, err := NewManagerWithRunner(testWorkspaceConfig(t), runner)
	if err != nil {
		t.Fatalf("NewManagerWithRunner failed: %v", err)
	}

	_, err = m.RunCode(context.Background(), "wf-1", "boom()")
	if err == nil || !strings.Contains(err.Error(), "Traceback: boom") {
		t.Fatalf("execution error should carry container output, got %v", err)
	}
}

func TestCleanupUnusedRemovesExitedOnly(t *testing.T) {
	runner := newFakeRunner()
	runner.outputs["docker ps -a"] = "abc123\ndef456\n"

	m, err := NewManagerWithRunner(testWorkspaceConfig(t), runner)
	if err != nil {
		t.Fatalf("NewManagerWithRunner failed: %v", err)
	}
	if err := m.CleanupUnused(context.Background()); err != nil {
		t.Fatalf("CleanupUnused failed: %v", err)
	}

	lists := runner.callsWith("docker", "ps")
	if len(lists) != 1 {
		t.Fatalf("expected one docker ps, got %v", runner.calls)
	}
	listCmd := strings.Join(lists[0], " ")
	if !strings.Contains(listCmd, "label=created_by=team_code_agent") || !strings.Contains(listCmd, "status=exited") {
		t.Errorf("cleanup must filter by label and exited status: %s", listCmd)
	}

	removes := runner.callsWith("docker", "rm")
	if len(removes) != 2 {
		t.Fatalf("expected 2 removals, got %v", removes)
	}
	for _, call := range runner.calls {
		if call[1] == "volume" && call[2] == "rm" {
			t.Fatal("cleanup must never remove volumes")
		}
	}
}

func TestArtifactsSkipSnippets(t *testing.T) {
	runner := newFakeRunner()
	runner.outputs["docker run --rm"] = "ok"

	cfg := testWorkspaceConfig(t)
	m, err := NewManagerWithRunner(cfg, runner)
	if err != nil {
		t.Fatalf("NewManagerWithRunner failed: %v", err)
	}
	// 生成一个 snippet 文件。
	if _, err := m.RunCode(context.Background(), "wf-1", "print(1)"); err != nil {
		t.Fatalf("RunCode failed: %v", err)
	}

	files, err := m.Artifacts("wf-1")
	if err != nil {
		t.Fatalf("Artifacts failed: %v", err)
	}
	if len(files) != 0 {
		t.Errorf("snippet files must not be reported as artifacts: %v", files)
	}

	if _, err := m.Artifacts("missing-wf"); err != nil {
		t.Errorf("missing workflow dir should yield no error, got %v", err)
	}
}
