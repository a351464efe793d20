package executor

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spectralhq/spectral/internal/tools"
	"github.com/spectralhq/spectral/internal/verify"
	"github.com/spectralhq/spectral/pkg/models"
)

func testServer(t *testing.T, allow []string) *Server {
	t.Helper()
	r := tools.NewRegistry()
	env := &tools.Env{Paths: tools.PathPolicy{Allow: allow}}
	tools.RegisterFileTools(r, env)
	tools.RegisterShellTools(r, env)
	return NewServer(r, verify.New(nil, nil), true, nil)
}

func TestExecuteStepCreateAndVerify(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hello.txt")
	s := testServer(t, []string{dir})

	step := models.PlanStep{
		StepNumber:    1,
		Description:   "Create the file " + path + " with contents 'hi'",
		RequiredTools: []string{"file_create"},
	}
	res, err := s.ExecuteStep(context.Background(), step, nil, nil)
	if err != nil {
		t.Fatalf("ExecuteStep: %v", err)
	}
	if !res.Success || !res.Verified {
		t.Fatalf("ExecuteStep = %+v, want success and verified", res)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "hi" {
		t.Errorf("file contents = %q, want %q", data, "hi")
	}
	if size, ok := res.Data["size"].(int); !ok || size != 2 {
		t.Errorf("Data[size] = %v, want 2", res.Data["size"])
	}
}

func TestExecuteStepOverridesWin(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "override.txt")
	s := testServer(t, []string{dir})

	step := models.PlanStep{
		StepNumber:    1,
		Description:   "Create the file /elsewhere/ignored.txt",
		RequiredTools: []string{"file_create"},
	}
	res, err := s.ExecuteStep(context.Background(), step, nil, map[string]any{"path": path, "content": "x"})
	if err != nil {
		t.Fatalf("ExecuteStep: %v", err)
	}
	if !res.Success {
		t.Fatalf("ExecuteStep = %+v, want success", res)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("override path not created: %v", err)
	}
}

func TestExecuteStepContextPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "from-prior.txt")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	s := testServer(t, []string{dir})

	step := models.PlanStep{
		StepNumber:    2,
		Description:   "Delete that file",
		RequiredTools: []string{"file_delete"},
	}
	stepContext := map[string]any{
		"step_1_result": map[string]any{"path": path},
	}
	res, err := s.ExecuteStep(context.Background(), step, stepContext, nil)
	if err != nil {
		t.Fatalf("ExecuteStep: %v", err)
	}
	if !res.Success || !res.Verified {
		t.Fatalf("ExecuteStep = %+v, want success and verified", res)
	}
	if _, err := os.Stat(path); err == nil {
		t.Errorf("%s still exists after delete", path)
	}
}

func TestExecuteStepNoTools(t *testing.T) {
	s := testServer(t, nil)
	step := models.PlanStep{StepNumber: 1, Description: "do something"}
	if _, err := s.ExecuteStep(context.Background(), step, nil, nil); err == nil {
		t.Fatal("ExecuteStep without tools = nil error, want ValidationError")
	}
}

func TestExecuteStepVerificationFailureFlipsSuccess(t *testing.T) {
	dir := t.TempDir()
	s := testServer(t, []string{dir})

	// file_delete on a missing path: the adapter reports failure, so
	// verification never runs and success stays false.
	step := models.PlanStep{
		StepNumber:    1,
		Description:   "Delete the file " + filepath.Join(dir, "absent.txt"),
		RequiredTools: []string{"file_delete"},
	}
	res, err := s.ExecuteStep(context.Background(), step, nil, nil)
	if err != nil {
		t.Fatalf("ExecuteStep: %v", err)
	}
	if res.Success {
		t.Errorf("ExecuteStep = %+v, want failure for missing file", res)
	}
}

func TestSynthesizeParams(t *testing.T) {
	tests := []struct {
		action string
		desc   string
		want   map[string]any
	}{
		{
			action: "file_create",
			desc:   "Create the file /tmp/sandbox/hello.txt with contents 'hi'",
			want:   map[string]any{"path": "/tmp/sandbox/hello.txt", "content": "hi"},
		},
		{
			action: "file_move",
			desc:   "Move /tmp/a.txt to /tmp/b.txt",
			want:   map[string]any{"source": "/tmp/a.txt", "destination": "/tmp/b.txt"},
		},
		{
			action: "gui_click_mouse",
			desc:   "Right click at (100, 250)",
			want:   map[string]any{"x": 100, "y": 250, "button": "right"},
		},
		{
			action: "subprocess_open_application",
			desc:   "Open the calculator",
			want:   map[string]any{"application": "calculator"},
		},
		{
			action: "typing_type_text",
			desc:   `Type "hello world" into the editor`,
			want:   map[string]any{"text": "hello world"},
		},
	}

	for _, tt := range tests {
		got := SynthesizeParams(tt.action, tt.desc, nil)
		for k, want := range tt.want {
			if got[k] != want {
				t.Errorf("SynthesizeParams(%s, %q)[%s] = %v, want %v", tt.action, tt.desc, k, got[k], want)
			}
		}
	}
}
