// Package sandbox runs generated programs through verification gates inside
// isolated run directories: byte-compile, test harness, smoke execution.
package sandbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spectralhq/spectral/internal/config"
	"github.com/spectralhq/spectral/internal/observability"
	"github.com/spectralhq/spectral/pkg/models"
)

const programFile = "program.py"

// Manager creates and verifies sandbox runs under a common root.
type Manager struct {
	root    string
	python  string
	cfg     config.SandboxConfig
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewManager creates a sandbox manager rooted at root.
func NewManager(root string, cfg config.SandboxConfig, logger *slog.Logger, metrics *observability.Metrics) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	python := cfg.PythonBin
	if python == "" {
		python = "python3"
	}
	return &Manager{
		root:    root,
		python:  python,
		cfg:     cfg,
		metrics: metrics,
		logger:  logger.With("component", "sandbox"),
	}
}

// Run writes code into a fresh run directory and applies the gates in
// order: syntax, tests (skipped for GUI), smoke (CLI only). stdin is fed to
// the smoke run as one blob. Failed runs are removed unless configured
// otherwise.
func (m *Manager) Run(ctx context.Context, code, stdin string) (*models.SandboxResult, error) {
	runID := fmt.Sprintf("run_%s_%s", time.Now().UTC().Format("20060102_150405"), uuid.NewString()[:8])
	runDir := filepath.Join(m.root, runID)

	result := &models.SandboxResult{
		RunID:       runID,
		GatesPassed: map[string]bool{},
		IsGUI:       DetectGUI(code),
		CreatedAt:   time.Now().UTC(),
	}
	started := time.Now()

	defer func() {
		result.DurationSeconds = time.Since(started).Seconds()
		m.writeMetadata(runDir, result)
		if result.Status != models.SandboxSuccess && !m.cfg.KeepFailedRuns {
			if err := os.RemoveAll(runDir); err != nil {
				m.logger.Warn("could not clean up failed run", "run_id", runID, "error", err)
			}
		}
	}()

	if result.IsGUI && HasTopLevelMainloop(code) {
		result.Status = models.SandboxError
		result.ErrorMessage = "program calls a blocking GUI loop at top level; gate it behind if __name__ == '__main__'"
		return result, nil
	}

	if err := m.materialize(runDir, code, result); err != nil {
		result.Status = models.SandboxError
		result.ErrorMessage = err.Error()
		return result, err
	}

	if !m.runSyntaxGate(ctx, runDir, result) {
		return result, nil
	}
	if !result.IsGUI {
		if !m.runTestGate(ctx, runDir, result) {
			return result, nil
		}
		if !m.runSmokeGate(ctx, runDir, stdin, result) {
			return result, nil
		}
	}

	result.Status = models.SandboxSuccess
	m.logger.Info("sandbox run passed", "run_id", runID, "gui", result.IsGUI)
	return result, nil
}

// materialize lays out code/, tests/ and logs/ and writes the program plus,
// for non-GUI programs, an auto-generated import/compile test.
func (m *Manager) materialize(runDir, code string, result *models.SandboxResult) error {
	for _, sub := range []string{"code", "tests", "logs"} {
		if err := os.MkdirAll(filepath.Join(runDir, sub), 0o755); err != nil {
			return fmt.Errorf("create run directory: %w", err)
		}
	}
	codePath := filepath.Join(runDir, "code", programFile)
	if err := os.WriteFile(codePath, []byte(code), 0o644); err != nil {
		return fmt.Errorf("write program: %w", err)
	}
	result.CodePath = codePath

	if !result.IsGUI {
		testPath := filepath.Join(runDir, "tests", "test_program.py")
		if err := os.WriteFile(testPath, []byte(autoTest), 0o644); err != nil {
			return fmt.Errorf("write auto test: %w", err)
		}
		result.TestPaths = []string{testPath}
	}
	return nil
}

// autoTest asserts the program byte-compiles and is importable without
// executing its top level.
const autoTest = `import pathlib
import py_compile
import importlib.util

CODE = pathlib.Path(__file__).resolve().parent.parent / "code" / "program.py"


def test_compiles():
    py_compile.compile(str(CODE), doraise=True)


def test_importable():
    spec = importlib.util.spec_from_file_location("program", CODE)
    assert spec is not None
    assert spec.loader is not None
`

func (m *Manager) runSyntaxGate(ctx context.Context, runDir string, result *models.SandboxResult) bool {
	out, exitCode, err := m.runGate(ctx, runDir, m.cfg.SyntaxTimeout, "syntax",
		nil, m.python, "-m", "py_compile", filepath.Join("code", programFile))
	passed := err == nil && exitCode == 0
	result.GatesPassed["syntax"] = passed
	m.metrics.SandboxGate("syntax", passed)
	if passed {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		result.Status = models.SandboxTimeout
		result.ErrorMessage = fmt.Sprintf("syntax check timed out after %s", m.cfg.SyntaxTimeout)
	} else {
		result.Status = models.SandboxSyntaxError
		result.ErrorMessage = firstNonEmpty(out, "byte-compilation failed")
	}
	result.Stderr = out
	result.ExitCode = exitCode
	return false
}

func (m *Manager) runTestGate(ctx context.Context, runDir string, result *models.SandboxResult) bool {
	out, exitCode, err := m.runGate(ctx, runDir, m.cfg.TestTimeout, "tests",
		nil, m.python, "-m", "pytest", "tests", "-q")
	result.PytestSummary = pytestSummary(out)
	passed := err == nil && exitCode == 0
	result.GatesPassed["tests"] = passed
	m.metrics.SandboxGate("tests", passed)
	if passed {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		result.Status = models.SandboxTimeout
		result.ErrorMessage = fmt.Sprintf("tests timed out after %s", m.cfg.TestTimeout)
	} else {
		result.Status = models.SandboxTestFailure
		result.ErrorMessage = firstNonEmpty(result.PytestSummary, "tests failed")
	}
	result.Stderr = out
	result.ExitCode = exitCode
	return false
}

func (m *Manager) runSmokeGate(ctx context.Context, runDir, stdin string, result *models.SandboxResult) bool {
	var in *strings.Reader
	if stdin != "" {
		in = strings.NewReader(stdin)
	}
	out, exitCode, err := m.runGate(ctx, runDir, m.cfg.SmokeTimeout, "smoke",
		in, m.python, filepath.Join("code", programFile))
	passed := err == nil && exitCode == 0
	result.GatesPassed["smoke"] = passed
	m.metrics.SandboxGate("smoke", passed)
	result.Stdout = out
	result.ExitCode = exitCode
	if passed {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		result.Status = models.SandboxTimeout
		result.ErrorMessage = fmt.Sprintf("smoke run timed out after %s", m.cfg.SmokeTimeout)
	} else {
		result.Status = models.SandboxError
		result.ErrorMessage = firstNonEmpty(lastLines(out, 5), "smoke run failed")
	}
	return false
}

// runGate executes one gate subprocess with the run directory as working
// directory, capturing combined output into logs/<gate>.log.
func (m *Manager) runGate(ctx context.Context, runDir string, timeout time.Duration, gate string, stdin *strings.Reader, argv ...string) (string, int, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = runDir
	if stdin != nil {
		cmd.Stdin = stdin
	}
	out, err := cmd.CombinedOutput()

	logPath := filepath.Join(runDir, "logs", gate+".log")
	if werr := os.WriteFile(logPath, out, 0o644); werr != nil {
		m.logger.Warn("could not write gate log", "gate", gate, "error", werr)
	}

	exitCode := 0
	if err != nil {
		exitCode = -1
		if cmd.ProcessState != nil {
			exitCode = cmd.ProcessState.ExitCode()
		}
		if ctx.Err() != nil {
			err = context.DeadlineExceeded
		}
	}
	return string(out), exitCode, err
}

func (m *Manager) writeMetadata(runDir string, result *models.SandboxResult) {
	if _, err := os.Stat(runDir); err != nil {
		return
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return
	}
	path := filepath.Join(runDir, "run_metadata.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		m.logger.Warn("could not write run metadata", "error", err)
	}
}

// pytestSummary extracts the terse result line pytest prints last.
func pytestSummary(out string) string {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if strings.Contains(line, "passed") || strings.Contains(line, "failed") || strings.Contains(line, "error") {
			return strings.Trim(line, "= ")
		}
	}
	if len(lines) > 0 {
		return lines[len(lines)-1]
	}
	return ""
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
