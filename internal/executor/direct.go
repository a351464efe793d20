package executor

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spectralhq/spectral/internal/archive"
	"github.com/spectralhq/spectral/internal/config"
	"github.com/spectralhq/spectral/internal/errs"
	"github.com/spectralhq/spectral/internal/llm"
	"github.com/spectralhq/spectral/internal/observability"
	"github.com/spectralhq/spectral/internal/sandbox"
	"github.com/spectralhq/spectral/pkg/models"
)

// CodeRunner verifies one generated program. Satisfied by sandbox.Manager.
type CodeRunner interface {
	Run(ctx context.Context, code, stdin string) (*models.SandboxResult, error)
}

// ExecutionSaver persists execution records. Satisfied by memory.Manager.
type ExecutionSaver interface {
	SaveExecution(ctx context.Context, exec *models.ExecutionMemory, turnID string) error
}

// Direct is the code-generation path: request to code to sandbox
// verification to archive export, with a fix-and-retry loop driven by gate
// failures.
type Direct struct {
	client  llm.Client
	runner  CodeRunner
	sink    *archive.Sink
	memory  ExecutionSaver
	cfg     config.SandboxConfig
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewDirect wires the code path. sink and memory may be nil; export and
// persistence are then skipped.
func NewDirect(client llm.Client, runner CodeRunner, sink *archive.Sink, mem ExecutionSaver, cfg config.SandboxConfig, logger *slog.Logger, metrics *observability.Metrics) *Direct {
	if logger == nil {
		logger = slog.Default()
	}
	return &Direct{
		client:  client,
		runner:  runner,
		sink:    sink,
		memory:  mem,
		cfg:     cfg,
		metrics: metrics,
		logger:  logger.With("component", "direct"),
	}
}

// GenerateOptions tune one code-generation request.
type GenerateOptions struct {
	// MaxAttempts caps the fix-and-retry loop. Zero falls back to the
	// configured maximum.
	MaxAttempts int
	// TargetDir, when set, is where the program should write its outputs.
	TargetDir string
	// TurnID links the persisted execution record to a conversation turn.
	TurnID string
}

// GenerateResult is the aggregate of one code-generation request.
type GenerateResult struct {
	RequestID    string
	Code         string
	Attempts     int
	Success      bool
	ExportedPath string
	Sandbox      *models.SandboxResult
	Message      string
}

// Generate runs the code path to completion.
func (d *Direct) Generate(ctx context.Context, userInput string, opts GenerateOptions) (*GenerateResult, error) {
	return d.generate(ctx, userInput, opts, nil)
}

// GenerateStream runs the code path, emitting progress lines as attempts
// advance.
func (d *Direct) GenerateStream(ctx context.Context, userInput string, opts GenerateOptions, emit func(string)) (*GenerateResult, error) {
	return d.generate(ctx, userInput, opts, emit)
}

func (d *Direct) generate(ctx context.Context, userInput string, opts GenerateOptions, emit func(string)) (*GenerateResult, error) {
	if strings.TrimSpace(userInput) == "" {
		return nil, errs.Validationf("empty code request")
	}
	if emit == nil {
		emit = func(string) {}
	}
	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = d.cfg.MaxAttempts
	}
	if maxAttempts <= 0 {
		maxAttempts = 10
	}

	result := &GenerateResult{
		RequestID: fmt.Sprintf("req_%s_%s", time.Now().UTC().Format("20060102_150405"), uuid.NewString()[:8]),
	}
	started := time.Now()
	prompt := buildCodegenPrompt(userInput, opts.TargetDir)

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Attempts = attempt
		emit(fmt.Sprintf("Generating code (attempt %d/%d)...\n", attempt, maxAttempts))

		reply, err := d.client.Generate(ctx, codegenSystemPrompt, prompt)
		d.metrics.LLMCall(d.client.Name(), err)
		if err != nil {
			return result, err
		}
		code := stripCodeFences(reply)
		if code == "" {
			prompt = buildCodegenPrompt(userInput, opts.TargetDir)
			continue
		}
		if opts.TargetDir != "" {
			code = rewriteOutputPaths(code, opts.TargetDir)
		}
		result.Code = code

		stdin := synthesizeStdin(sandbox.AnalyzeInputCalls(code))
		run, runErr := d.runner.Run(ctx, code, stdin)
		if run == nil {
			return result, fmt.Errorf("sandbox run: %w", runErr)
		}
		result.Sandbox = run
		d.archiveAttempt(result.RequestID, attempt, code, run)

		if run.Status == models.SandboxSuccess {
			d.finalize(ctx, userInput, opts, result, run)
			emit(fmt.Sprintf("Code verified after %d attempt(s).\n", attempt))
			if result.ExportedPath != "" {
				emit(fmt.Sprintf("Exported to %s\n", result.ExportedPath))
			}
			d.logger.Info("code generation succeeded",
				"request_id", result.RequestID,
				"attempts", attempt,
				"elapsed", time.Since(started).Round(time.Millisecond))
			return result, nil
		}

		emit(fmt.Sprintf("  ✗ %s: %s\n", run.Status, run.ErrorMessage))
		d.logger.Warn("sandbox gates failed",
			"request_id", result.RequestID,
			"attempt", attempt,
			"status", run.Status)
		prompt = buildFixPrompt(userInput, code, run)
	}

	if d.sink != nil {
		d.sink.MarkFailed(result.RequestID, result.Attempts)
	}
	result.Message = fmt.Sprintf("code generation failed after %d attempts", result.Attempts)
	emit(result.Message + "\n")
	return result, nil
}

func (d *Direct) archiveAttempt(requestID string, attempt int, code string, run *models.SandboxResult) {
	if d.sink == nil {
		return
	}
	meta := map[string]any{
		"run_id":        run.RunID,
		"status":        string(run.Status),
		"gates_passed":  run.GatesPassed,
		"error_message": run.ErrorMessage,
	}
	if _, err := d.sink.SaveAttempt(requestID, attempt, code, "py", meta); err != nil {
		d.logger.Warn("could not archive attempt", "request_id", requestID, "error", err)
	}
}

// finalize exports the verified code and records the execution so later
// turns can refer back to it.
func (d *Direct) finalize(ctx context.Context, userInput string, opts GenerateOptions, result *GenerateResult, run *models.SandboxResult) {
	result.Success = true
	result.Message = "code generated and verified"

	if d.sink != nil {
		meta := map[string]any{
			"run_id":       run.RunID,
			"attempts":     result.Attempts,
			"user_request": userInput,
		}
		path, err := d.sink.SaveFinal(result.RequestID, result.Attempts, result.Code, "py", meta)
		if err != nil {
			d.logger.Warn("could not export final code", "request_id", result.RequestID, "error", err)
		} else {
			result.ExportedPath = path
		}
	}

	if d.memory == nil {
		return
	}
	mode := "cli"
	if run.IsGUI {
		mode = "gui"
	}
	locations := []string{}
	if run.CodePath != "" {
		locations = append(locations, run.CodePath)
	}
	if result.ExportedPath != "" {
		locations = append(locations, result.ExportedPath)
	}
	exec := &models.ExecutionMemory{
		UserRequest:     userInput,
		Description:     "generated python program: " + userInput,
		CodeGenerated:   result.Code,
		FileLocations:   locations,
		Output:          run.Stdout,
		Success:         true,
		Tags:            []string{"python", "sandbox_verification", mode},
		ExecutionTimeMs: int64(run.DurationSeconds * 1000),
	}
	if err := d.memory.SaveExecution(ctx, exec, opts.TurnID); err != nil {
		d.logger.Warn("could not persist execution", "request_id", result.RequestID, "error", err)
	}
}

const codegenSystemPrompt = `You write complete, runnable Python programs.

Rules:
- Reply with Python source only. No prose, no markdown fences.
- One self-contained file; standard library only unless the request names a package.
- Command-line programs read input with input() and print their results.
- GUI programs must gate window creation and the event loop behind
  if __name__ == '__main__'.
- Handle the obvious error cases; do not swallow exceptions silently.`

func buildCodegenPrompt(userInput, targetDir string) string {
	var b strings.Builder
	b.WriteString("Write a Python program for this request:\n\n")
	b.WriteString(userInput)
	if targetDir != "" {
		fmt.Fprintf(&b, "\n\nAny files the program creates must be written under %s", targetDir)
	}
	return b.String()
}

// buildFixPrompt feeds the failing code and the captured gate output back so
// the model can repair its own mistake.
func buildFixPrompt(userInput, code string, run *models.SandboxResult) string {
	var b strings.Builder
	b.WriteString("The previous program failed verification. Fix it and reply with the complete corrected program.\n\n")
	fmt.Fprintf(&b, "Original request:\n%s\n\n", userInput)
	fmt.Fprintf(&b, "Previous program:\n%s\n\n", code)
	fmt.Fprintf(&b, "Failure (%s): %s\n", run.Status, run.ErrorMessage)
	if out := tail(run.Stderr, 10); out != "" {
		fmt.Fprintf(&b, "\nCaptured output:\n%s\n", out)
	}
	if run.PytestSummary != "" {
		fmt.Fprintf(&b, "\nTest summary: %s\n", run.PytestSummary)
	}
	return b.String()
}

var codeFenceRe = regexp.MustCompile("(?s)```[a-zA-Z0-9]*\n?(.*?)```")

// stripCodeFences extracts the program from a reply that may wrap it in
// markdown fences or surround it with prose.
func stripCodeFences(reply string) string {
	if m := codeFenceRe.FindStringSubmatch(reply); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(reply)
}

// rewriteOutputPaths points desktop-relative paths at the requested target
// directory.
func rewriteOutputPaths(code, targetDir string) string {
	return strings.ReplaceAll(code, "~/Desktop", targetDir)
}

// synthesizeStdin produces one dummy line per input() call so the smoke gate
// never blocks on a prompt.
func synthesizeStdin(inputCalls int) string {
	if inputCalls <= 0 {
		return ""
	}
	return strings.Repeat("test\n", inputCalls)
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	lines := strings.Split(s, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
