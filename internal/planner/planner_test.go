package planner

import (
	"context"
	"strings"
	"testing"

	"github.com/spectralhq/spectral/internal/config"
	"github.com/spectralhq/spectral/internal/llm"
	"github.com/spectralhq/spectral/internal/tools"
)

type fakeLLM struct {
	reply string
	err   error
	calls int
}

func (f *fakeLLM) Name() string { return "fake" }

func (f *fakeLLM) Generate(_ context.Context, _, _ string) (string, error) {
	f.calls++
	return f.reply, f.err
}

func (f *fakeLLM) Chat(ctx context.Context, _ []llm.Message) (string, error) {
	return f.Generate(ctx, "", "")
}

func (f *fakeLLM) Stream(ctx context.Context, _ []llm.Message, onDelta func(string)) (string, error) {
	text, err := f.Generate(ctx, "", "")
	if err == nil && onDelta != nil {
		onDelta(text)
	}
	return text, err
}

func testRegistry(t *testing.T) *tools.Registry {
	t.Helper()
	r := tools.NewRegistry()
	env := &tools.Env{DryRun: true}
	tools.RegisterDefaultCatalog(r, env, tools.CatalogDeps{})
	return r
}

func testPlanner(t *testing.T, client *fakeLLM) *Planner {
	t.Helper()
	cfg := config.PlannerConfig{SafetyValidation: true}
	return New(client, testRegistry(t), nil, cfg, nil)
}

func TestCreatePlanFromWellFormedReply(t *testing.T) {
	client := &fakeLLM{reply: `{
		"description": "Create a file",
		"steps": [
			{"step_number": 1, "description": "Create /tmp/sandbox/hello.txt", "required_tools": ["file_create"], "safety_flags": ["file_modification"]},
			{"step_number": 2, "description": "Verify contents", "required_tools": ["file_read"], "dependencies": [1]}
		]
	}`}

	plan, err := testPlanner(t, client).CreatePlan(context.Background(), "Create the file /tmp/sandbox/hello.txt")
	if err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}
	if len(plan.Steps) != 2 {
		t.Fatalf("len(Steps) = %d, want 2", len(plan.Steps))
	}
	if !plan.ValidationResult.IsValid {
		t.Errorf("IsValid = false, issues: %v", plan.ValidationResult.Issues)
	}
	if plan.IsSafe {
		t.Errorf("IsSafe = true for file_modification flag, want false")
	}
	if got := plan.Steps[0].RequiredTools[0]; got != "file_create" {
		t.Errorf("Steps[0].RequiredTools[0] = %q, want file_create", got)
	}
	if got := plan.Steps[1].Dependencies; len(got) != 1 || got[0] != 1 {
		t.Errorf("Steps[1].Dependencies = %v, want [1]", got)
	}
	if plan.VerifiedAt.IsZero() {
		t.Errorf("VerifiedAt not stamped")
	}
}

func TestCreatePlanRepairsMalformedJSON(t *testing.T) {
	client := &fakeLLM{reply: "Here you go:\n```json\n{'description': 'list files', 'steps': [{'step_number': 1, 'description': 'List files in the folder', 'required_tools': ['file_list'],}],}\n```"}

	plan, err := testPlanner(t, client).CreatePlan(context.Background(), "show me the files in /tmp")
	if err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}
	if len(plan.Steps) != 1 || plan.Steps[0].RequiredTools[0] != "file_list" {
		t.Fatalf("Steps = %+v, want one file_list step", plan.Steps)
	}
}

func TestCreatePlanBareArrayIsSteps(t *testing.T) {
	client := &fakeLLM{reply: `[{"step_number": 1, "description": "Show system information", "required_tools": ["system_info"]}]`}

	plan, err := testPlanner(t, client).CreatePlan(context.Background(), "what is my system info")
	if err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}
	if len(plan.Steps) != 1 || plan.Steps[0].RequiredTools[0] != "system_info" {
		t.Fatalf("Steps = %+v, want one system_info step", plan.Steps)
	}
}

func TestCreatePlanFallsBackOnGarbage(t *testing.T) {
	client := &fakeLLM{reply: "I cannot help with that."}

	plan, err := testPlanner(t, client).CreatePlan(context.Background(), "list the files in my documents folder")
	if err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}
	if len(plan.Steps) != 1 {
		t.Fatalf("len(Steps) = %d, want 1 fallback step", len(plan.Steps))
	}
	if got := plan.Steps[0].RequiredTools[0]; got != "file_list" {
		t.Errorf("fallback tool = %q, want file_list", got)
	}
	if !strings.HasPrefix(plan.Steps[0].Description, "Use file_list to ") {
		t.Errorf("fallback description = %q, want Use file_list to ... prefix", plan.Steps[0].Description)
	}
}

func TestCreatePlanDropsUnknownToolsAndInjects(t *testing.T) {
	client := &fakeLLM{reply: `{"steps": [{"step_number": 1, "description": "Open the calculator", "required_tools": ["launch_app"]}]}`}

	plan, err := testPlanner(t, client).CreatePlan(context.Background(), "open calculator")
	if err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}
	if got := plan.Steps[0].RequiredTools; len(got) != 1 || got[0] != "subprocess_open_application" {
		t.Errorf("RequiredTools = %v, want [subprocess_open_application]", got)
	}
}

func TestCreatePlanCoercesNumbersAndClampsDeps(t *testing.T) {
	client := &fakeLLM{reply: `{"steps": [
		{"step_number": 3, "description": "First step", "required_tools": ["system_info"], "dependencies": [5]},
		{"step_number": 7, "description": "Second step", "required_tools": ["system_info"], "dependencies": [1, 2]}
	]}`}

	plan, err := testPlanner(t, client).CreatePlan(context.Background(), "do two things")
	if err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}
	if plan.Steps[0].StepNumber != 1 || plan.Steps[1].StepNumber != 2 {
		t.Errorf("step numbers = %d, %d, want 1, 2", plan.Steps[0].StepNumber, plan.Steps[1].StepNumber)
	}
	if len(plan.Steps[0].Dependencies) != 0 {
		t.Errorf("Steps[0].Dependencies = %v, want none", plan.Steps[0].Dependencies)
	}
	if got := plan.Steps[1].Dependencies; len(got) != 1 || got[0] != 1 {
		t.Errorf("Steps[1].Dependencies = %v, want [1]", got)
	}
	if !plan.ValidationResult.IsValid {
		t.Errorf("IsValid = false, issues: %v", plan.ValidationResult.Issues)
	}
}

func TestCreatePlanEmptyInput(t *testing.T) {
	client := &fakeLLM{reply: "{}"}
	if _, err := testPlanner(t, client).CreatePlan(context.Background(), "   "); err == nil {
		t.Fatal("CreatePlan(empty) = nil error, want ValidationError")
	}
	if client.calls != 0 {
		t.Errorf("LLM called %d times for empty input, want 0", client.calls)
	}
}

func TestCreatePlanStreamSinglePass(t *testing.T) {
	client := &fakeLLM{reply: `{"steps": [{"step_number": 1, "description": "Show system information", "required_tools": ["system_info"]}]}`}

	var chunks []string
	plan, err := testPlanner(t, client).CreatePlanStream(context.Background(), "system info", func(s string) {
		chunks = append(chunks, s)
	})
	if err != nil {
		t.Fatalf("CreatePlanStream: %v", err)
	}
	if client.calls != 1 {
		t.Errorf("LLM called %d times, want exactly 1", client.calls)
	}
	if len(plan.Steps) != 1 {
		t.Fatalf("len(Steps) = %d, want 1", len(plan.Steps))
	}
	joined := strings.Join(chunks, "")
	if !strings.Contains(joined, "Planning...") {
		t.Errorf("stream missing Planning marker: %q", joined)
	}
	if !strings.Contains(joined, "Step 1:") {
		t.Errorf("stream missing step line: %q", joined)
	}
	if !strings.Contains(joined, "Safe:") {
		t.Errorf("stream missing safety marker: %q", joined)
	}
}

func TestPlanIDsMonotone(t *testing.T) {
	client := &fakeLLM{reply: `{"steps": [{"step_number": 1, "description": "Show system information", "required_tools": ["system_info"]}]}`}
	p := testPlanner(t, client)

	first, err := p.CreatePlan(context.Background(), "one")
	if err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}
	second, err := p.CreatePlan(context.Background(), "two")
	if err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}
	if !strings.HasPrefix(first.PlanID, "plan_") || !strings.HasPrefix(second.PlanID, "plan_") {
		t.Errorf("plan IDs %q, %q missing plan_ prefix", first.PlanID, second.PlanID)
	}
	if first.PlanID >= second.PlanID {
		t.Errorf("plan IDs not monotone: %q then %q", first.PlanID, second.PlanID)
	}
}

func TestInferTool(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"create the file report.txt", "file_create"},
		{"make a new folder for photos", "dir_create"},
		{"delete that file", "file_delete"},
		{"list the files in my documents folder", "file_list"},
		{"open the calculator", "subprocess_open_application"},
		{"show me system information", "system_info"},
		{"what processes are running", "process_list"},
		{"tell me a joke", "system_info"},
	}
	for _, tt := range tests {
		if got := inferTool(tt.text); got != tt.want {
			t.Errorf("inferTool(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}
