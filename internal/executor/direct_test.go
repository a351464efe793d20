package executor

import (
	"context"
	"strings"
	"testing"

	"github.com/spectralhq/spectral/internal/archive"
	"github.com/spectralhq/spectral/internal/config"
	"github.com/spectralhq/spectral/internal/llm"
	"github.com/spectralhq/spectral/internal/memory"
	"github.com/spectralhq/spectral/internal/storage"
	"github.com/spectralhq/spectral/pkg/models"
)

type fakeClient struct {
	replies []string
	calls   int
	prompts []string
}

func (f *fakeClient) Name() string { return "fake" }

func (f *fakeClient) Generate(_ context.Context, _, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	reply := f.replies[len(f.replies)-1]
	if f.calls < len(f.replies) {
		reply = f.replies[f.calls]
	}
	f.calls++
	return reply, nil
}

func (f *fakeClient) Chat(ctx context.Context, msgs []llm.Message) (string, error) {
	return f.Generate(ctx, "", msgs[len(msgs)-1].Content)
}

func (f *fakeClient) Stream(ctx context.Context, msgs []llm.Message, onDelta func(string)) (string, error) {
	reply, err := f.Chat(ctx, msgs)
	if err == nil && onDelta != nil {
		onDelta(reply)
	}
	return reply, err
}

// fakeRunner returns scripted sandbox results in order, repeating the last.
type fakeRunner struct {
	results []*models.SandboxResult
	calls   int
	stdins  []string
}

func (f *fakeRunner) Run(_ context.Context, _, stdin string) (*models.SandboxResult, error) {
	f.stdins = append(f.stdins, stdin)
	r := f.results[len(f.results)-1]
	if f.calls < len(f.results) {
		r = f.results[f.calls]
	}
	f.calls++
	return r, nil
}

func passResult() *models.SandboxResult {
	return &models.SandboxResult{
		RunID:       "run_ok",
		Status:      models.SandboxSuccess,
		CodePath:    "/tmp/run_ok/code/program.py",
		Stdout:      "hello\n",
		GatesPassed: map[string]bool{"syntax": true, "tests": true, "smoke": true},
	}
}

func failResult(status models.SandboxStatus, msg string) *models.SandboxResult {
	return &models.SandboxResult{
		RunID:        "run_bad",
		Status:       status,
		ErrorMessage: msg,
		GatesPassed:  map[string]bool{"syntax": false},
	}
}

func testMemory(t *testing.T) *memory.Manager {
	t.Helper()
	store, err := storage.OpenJSONFile("")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return memory.NewManager(store)
}

func TestGenerateFirstAttemptSucceeds(t *testing.T) {
	client := &fakeClient{replies: []string{"```python\nname = input()\nprint(name)\n```"}}
	runner := &fakeRunner{results: []*models.SandboxResult{passResult()}}
	sink := archive.NewSink(t.TempDir(), nil)
	mem := testMemory(t)
	d := NewDirect(client, runner, sink, mem, config.SandboxConfig{MaxAttempts: 3}, nil, nil)

	res, err := d.Generate(context.Background(), "echo my name", GenerateOptions{TurnID: "turn_1"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !res.Success || res.Attempts != 1 {
		t.Errorf("Success = %v, Attempts = %d, want success on attempt 1", res.Success, res.Attempts)
	}
	if strings.Contains(res.Code, "```") {
		t.Errorf("fences not stripped: %q", res.Code)
	}
	if res.ExportedPath == "" {
		t.Errorf("ExportedPath empty, want FINAL export")
	}
	if runner.stdins[0] != "test\n" {
		t.Errorf("stdin = %q, want one synthesized line for one input()", runner.stdins[0])
	}

	execs, err := mem.GetExecutionsByTag(context.Background(), "sandbox_verification")
	if err != nil {
		t.Fatalf("GetExecutionsByTag: %v", err)
	}
	if len(execs) != 1 {
		t.Fatalf("persisted executions = %d, want 1", len(execs))
	}
	got := execs[0]
	if got.CodeGenerated == "" || !got.Success {
		t.Errorf("execution record incomplete: %+v", got)
	}
	wantTags := map[string]bool{"python": true, "sandbox_verification": true, "cli": true}
	for _, tag := range got.Tags {
		delete(wantTags, tag)
	}
	if len(wantTags) != 0 {
		t.Errorf("missing tags %v in %v", wantTags, got.Tags)
	}
	if len(got.FileLocations) != 2 {
		t.Errorf("FileLocations = %v, want code path and exported path", got.FileLocations)
	}
}

func TestGenerateRetriesWithFixPrompt(t *testing.T) {
	client := &fakeClient{replies: []string{
		"print('broken'\n",
		"print('fixed')\n",
	}}
	runner := &fakeRunner{results: []*models.SandboxResult{
		failResult(models.SandboxSyntaxError, "unexpected EOF"),
		passResult(),
	}}
	d := NewDirect(client, runner, nil, nil, config.SandboxConfig{MaxAttempts: 5}, nil, nil)

	res, err := d.Generate(context.Background(), "print fixed", GenerateOptions{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !res.Success || res.Attempts != 2 {
		t.Errorf("Success = %v, Attempts = %d, want success on attempt 2", res.Success, res.Attempts)
	}
	fix := client.prompts[1]
	if !strings.Contains(fix, "print('broken'") {
		t.Errorf("fix prompt missing previous code:\n%s", fix)
	}
	if !strings.Contains(fix, "unexpected EOF") {
		t.Errorf("fix prompt missing error output:\n%s", fix)
	}
}

func TestGenerateExhaustsAttempts(t *testing.T) {
	client := &fakeClient{replies: []string{"print('still broken'\n"}}
	runner := &fakeRunner{results: []*models.SandboxResult{
		failResult(models.SandboxSyntaxError, "unexpected EOF"),
	}}
	d := NewDirect(client, runner, nil, nil, config.SandboxConfig{MaxAttempts: 3}, nil, nil)

	res, err := d.Generate(context.Background(), "never works", GenerateOptions{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.Success {
		t.Errorf("Success = true, want false")
	}
	if res.Attempts != 3 || runner.calls != 3 {
		t.Errorf("Attempts = %d, runner calls = %d, want 3 each", res.Attempts, runner.calls)
	}
	if !strings.Contains(res.Message, "failed after 3 attempts") {
		t.Errorf("Message = %q", res.Message)
	}
}

func TestGenerateExplicitAttemptLimitWins(t *testing.T) {
	client := &fakeClient{replies: []string{"print('broken'\n"}}
	runner := &fakeRunner{results: []*models.SandboxResult{
		failResult(models.SandboxSyntaxError, "unexpected EOF"),
	}}
	d := NewDirect(client, runner, nil, nil, config.SandboxConfig{MaxAttempts: 10}, nil, nil)

	res, err := d.Generate(context.Background(), "never works", GenerateOptions{MaxAttempts: 2})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", res.Attempts)
	}
}

func TestGenerateRejectsEmptyInput(t *testing.T) {
	d := NewDirect(&fakeClient{replies: []string{"x"}}, &fakeRunner{results: []*models.SandboxResult{passResult()}}, nil, nil, config.SandboxConfig{}, nil, nil)
	if _, err := d.Generate(context.Background(), "   ", GenerateOptions{}); err == nil {
		t.Fatal("Generate accepted empty input")
	}
}

func TestRewriteOutputPaths(t *testing.T) {
	code := "open('~/Desktop/report.txt', 'w')"
	got := rewriteOutputPaths(code, "/srv/out")
	if got != "open('/srv/out/report.txt', 'w')" {
		t.Errorf("rewriteOutputPaths() = %q", got)
	}
}
