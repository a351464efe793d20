package sandbox

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/spectralhq/spectral/internal/config"
	"github.com/spectralhq/spectral/pkg/models"
)

func testConfig() config.SandboxConfig {
	return config.SandboxConfig{
		PythonBin:     "python3",
		SyntaxTimeout: 10 * time.Second,
		TestTimeout:   30 * time.Second,
		SmokeTimeout:  10 * time.Second,
	}
}

func requirePython(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("python3"); err != nil {
		t.Skip("python3 not available")
	}
}

func requirePytest(t *testing.T) {
	t.Helper()
	requirePython(t)
	if err := exec.Command("python3", "-m", "pytest", "--version").Run(); err != nil {
		t.Skip("pytest not available")
	}
}

func TestRunRejectsTopLevelMainloop(t *testing.T) {
	m := NewManager(t.TempDir(), testConfig(), nil, nil)
	code := "import tkinter\nroot = tkinter.Tk()\nroot.mainloop()\n"

	result, err := m.Run(context.Background(), code, "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Status != models.SandboxError {
		t.Errorf("Status = %s, want %s", result.Status, models.SandboxError)
	}
	if !result.IsGUI {
		t.Errorf("IsGUI = false, want true")
	}
	if len(result.GatesPassed) != 0 {
		t.Errorf("GatesPassed = %v, want no gates run", result.GatesPassed)
	}
}

func TestRunSyntaxErrorCleansUp(t *testing.T) {
	requirePython(t)
	root := t.TempDir()
	m := NewManager(root, testConfig(), nil, nil)

	result, err := m.Run(context.Background(), "def broken(:\n", "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Status != models.SandboxSyntaxError {
		t.Fatalf("Status = %s, want %s", result.Status, models.SandboxSyntaxError)
	}
	if result.GatesPassed["syntax"] {
		t.Errorf("GatesPassed[syntax] = true, want false")
	}
	if _, err := os.Stat(filepath.Join(root, result.RunID)); err == nil {
		t.Errorf("failed run directory %s not cleaned up", result.RunID)
	}
}

func TestRunKeepsFailedRunsWhenConfigured(t *testing.T) {
	requirePython(t)
	root := t.TempDir()
	cfg := testConfig()
	cfg.KeepFailedRuns = true
	m := NewManager(root, cfg, nil, nil)

	result, err := m.Run(context.Background(), "def broken(:\n", "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	runDir := filepath.Join(root, result.RunID)
	if _, err := os.Stat(runDir); err != nil {
		t.Fatalf("kept run directory missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(runDir, "run_metadata.json")); err != nil {
		t.Errorf("run_metadata.json missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(runDir, "logs", "syntax.log")); err != nil {
		t.Errorf("logs/syntax.log missing: %v", err)
	}
}

func TestRunCLIProgramThroughAllGates(t *testing.T) {
	requirePytest(t)
	root := t.TempDir()
	m := NewManager(root, testConfig(), nil, nil)

	code := "name = input()\nprint(f'hello {name}')\n"
	result, err := m.Run(context.Background(), code, "world\n")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Status != models.SandboxSuccess {
		t.Fatalf("Status = %s (%s), want success", result.Status, result.ErrorMessage)
	}
	for _, gate := range []string{"syntax", "tests", "smoke"} {
		if !result.GatesPassed[gate] {
			t.Errorf("GatesPassed[%s] = false, want true", gate)
		}
	}
	if result.Stdout == "" {
		t.Errorf("Stdout empty, want smoke output")
	}
	if _, err := os.Stat(filepath.Join(root, result.RunID, "run_metadata.json")); err != nil {
		t.Errorf("run_metadata.json missing for successful run: %v", err)
	}
}

func TestRunGUIProgramSkipsTestAndSmokeGates(t *testing.T) {
	requirePython(t)
	root := t.TempDir()
	m := NewManager(root, testConfig(), nil, nil)

	code := "import tkinter\n\ndef main():\n    root = tkinter.Tk()\n    root.mainloop()\n\nif __name__ == '__main__':\n    main()\n"
	result, err := m.Run(context.Background(), code, "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Status != models.SandboxSuccess {
		t.Fatalf("Status = %s (%s), want success", result.Status, result.ErrorMessage)
	}
	if !result.IsGUI {
		t.Errorf("IsGUI = false, want true")
	}
	if _, ran := result.GatesPassed["tests"]; ran {
		t.Errorf("tests gate ran for GUI program")
	}
	if _, ran := result.GatesPassed["smoke"]; ran {
		t.Errorf("smoke gate ran for GUI program")
	}
}
