package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/spectralhq/spectral/internal/config"
	"github.com/spectralhq/spectral/internal/executor"
	"github.com/spectralhq/spectral/internal/tools"
	"github.com/spectralhq/spectral/pkg/models"
)

type fakeSleeper struct {
	delays []time.Duration
}

func (s *fakeSleeper) Sleep(_ context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return nil
}

// scriptedAdapter fails with the scripted errors in order, then succeeds.
type scriptedAdapter struct {
	name   string
	errors []string
	calls  int
	data   map[string]any
}

func (a *scriptedAdapter) Name() string        { return a.name }
func (a *scriptedAdapter) Family() string      { return "test" }
func (a *scriptedAdapter) Description() string { return "scripted test adapter" }

func (a *scriptedAdapter) Execute(_ context.Context, _ map[string]any) *models.ActionResult {
	a.calls++
	if a.calls <= len(a.errors) {
		return &models.ActionResult{ActionType: a.name, Error: a.errors[a.calls-1]}
	}
	return &models.ActionResult{Success: true, ActionType: a.name, Message: "done", Data: a.data}
}

func testDispatcher(t *testing.T, cfg config.DispatchConfig, adapters ...tools.Adapter) (*Dispatcher, *fakeSleeper) {
	t.Helper()
	r := tools.NewRegistry()
	for _, a := range adapters {
		r.Register(a)
	}
	exec := executor.NewServer(r, nil, false, nil)
	sleeper := &fakeSleeper{}
	return New(exec, cfg, nil, WithSleeper(sleeper)), sleeper
}

func validPlan(toolNames ...string) *models.Plan {
	steps := make([]models.PlanStep, len(toolNames))
	for i, name := range toolNames {
		steps[i] = models.PlanStep{
			StepNumber:    i + 1,
			Description:   "run " + name,
			RequiredTools: []string{name},
			Status:        models.StepPending,
		}
	}
	return &models.Plan{
		PlanID:           "plan_test",
		Steps:            steps,
		ValidationResult: models.PlanValidationResult{IsValid: true},
	}
}

func TestDispatchBackoffSequence(t *testing.T) {
	adapter := &scriptedAdapter{name: "flaky", errors: []string{"temporary glitch", "temporary glitch", "temporary glitch", "temporary glitch"}}
	cfg := config.DispatchConfig{MaxRetries: 3, BackoffBase: time.Second}
	d, sleeper := testDispatcher(t, cfg, adapter)

	summary, outcomes, err := d.Dispatch(context.Background(), validPlan("flaky"))
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	if len(sleeper.delays) != len(want) {
		t.Fatalf("sleeps = %v, want %v", sleeper.delays, want)
	}
	for i := range want {
		if sleeper.delays[i] != want[i] {
			t.Errorf("sleep %d = %v, want %v", i, sleeper.delays[i], want[i])
		}
	}
	if len(outcomes[0].Attempts) != 4 {
		t.Errorf("attempts = %d, want 4", len(outcomes[0].Attempts))
	}
	if summary.TotalRetries != 3 {
		t.Errorf("TotalRetries = %d, want 3", summary.TotalRetries)
	}
}

func TestDispatchZeroRetriesSingleAttempt(t *testing.T) {
	adapter := &scriptedAdapter{name: "flaky", errors: []string{"temporary glitch"}}
	cfg := config.DispatchConfig{MaxRetries: 0}
	d, sleeper := testDispatcher(t, cfg, adapter)

	_, outcomes, err := d.Dispatch(context.Background(), validPlan("flaky"))
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if adapter.calls != 1 {
		t.Errorf("adapter called %d times, want 1", adapter.calls)
	}
	if len(sleeper.delays) != 0 {
		t.Errorf("sleeps = %v, want none", sleeper.delays)
	}
	if outcomes[0].Success {
		t.Errorf("outcome success = true, want false")
	}
}

func TestDispatchPermanentErrorHaltsRetries(t *testing.T) {
	adapter := &scriptedAdapter{name: "doomed", errors: []string{"file does not exist", "unused"}}
	cfg := config.DispatchConfig{MaxRetries: 5}
	d, sleeper := testDispatcher(t, cfg, adapter)

	_, outcomes, err := d.Dispatch(context.Background(), validPlan("doomed"))
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if adapter.calls != 1 {
		t.Errorf("adapter called %d times, want 1 for permanent error", adapter.calls)
	}
	if len(sleeper.delays) != 0 {
		t.Errorf("sleeps = %v, want none", sleeper.delays)
	}
	if outcomes[0].Success {
		t.Errorf("outcome success = true, want false")
	}
}

func TestDispatchAlternativeSubstitution(t *testing.T) {
	primary := &scriptedAdapter{name: "primary", errors: []string{"temporary glitch", "temporary glitch", "temporary glitch"}}
	alternative := &scriptedAdapter{name: "fallback", data: map[string]any{"path": "/tmp/x"}}
	cfg := config.DispatchConfig{
		MaxRetries:   2,
		Alternatives: map[string]string{"primary": "fallback"},
	}
	d, _ := testDispatcher(t, cfg, primary, alternative)

	_, outcomes, err := d.Dispatch(context.Background(), validPlan("primary"))
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	outcome := outcomes[0]
	if !outcome.Success {
		t.Fatalf("outcome = %+v, want success via alternative", outcome)
	}
	if len(outcome.Attempts) != 2 {
		t.Fatalf("attempts = %d, want 2", len(outcome.Attempts))
	}
	second := outcome.Attempts[1]
	if !second.UsedAlternative || second.AlternativeAction != "fallback" {
		t.Errorf("attempt 2 = %+v, want used_alternative with fallback", second)
	}
	if primary.calls != 1 || alternative.calls != 1 {
		t.Errorf("calls primary=%d fallback=%d, want 1 and 1", primary.calls, alternative.calls)
	}
}

func TestDispatchFatalAbortsPlan(t *testing.T) {
	bad := &scriptedAdapter{name: "bad", errors: []string{"fatal: device on fire"}}
	never := &scriptedAdapter{name: "never"}
	cfg := config.DispatchConfig{MaxRetries: 0}
	d, _ := testDispatcher(t, cfg, bad, never)

	summary, outcomes, err := d.Dispatch(context.Background(), validPlan("bad", "never", "never"))
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if !summary.AbortedFatal {
		t.Errorf("AbortedFatal = false, want true")
	}
	if summary.Failed != 1 || summary.Skipped != 2 {
		t.Errorf("summary = %+v, want 1 failed and 2 skipped", summary)
	}
	if never.calls != 0 {
		t.Errorf("later adapter called %d times after fatal, want 0", never.calls)
	}
	if len(outcomes) != 3 {
		t.Errorf("outcomes = %d, want 3", len(outcomes))
	}
}

func TestDispatchContextFlowsBetweenSteps(t *testing.T) {
	first := &scriptedAdapter{name: "producer", data: map[string]any{"path": "/tmp/produced.txt"}}
	second := &scriptedAdapter{name: "consumer"}
	cfg := config.DispatchConfig{MaxRetries: 0}
	d, _ := testDispatcher(t, cfg, first, second)

	summary, outcomes, err := d.Dispatch(context.Background(), validPlan("producer", "consumer"))
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if summary.Succeeded != 2 {
		t.Fatalf("summary = %+v, want 2 succeeded", summary)
	}
	if outcomes[0].Data["path"] != "/tmp/produced.txt" {
		t.Errorf("outcome data = %v, want produced path", outcomes[0].Data)
	}
}

func TestDispatchSubscriberPanicIsIsolated(t *testing.T) {
	adapter := &scriptedAdapter{name: "ok"}
	cfg := config.DispatchConfig{MaxRetries: 0}
	d, _ := testDispatcher(t, cfg, adapter)

	var seen []int
	d.Subscribe(func(models.StepOutcome) { panic("observer bug") })
	d.Subscribe(func(o models.StepOutcome) { seen = append(seen, o.StepNumber) })

	summary, _, err := d.Dispatch(context.Background(), validPlan("ok", "ok"))
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if summary.Succeeded != 2 {
		t.Errorf("Succeeded = %d, want 2", summary.Succeeded)
	}
	if len(seen) != 2 || seen[0] != 1 || seen[1] != 2 {
		t.Errorf("subscriber saw %v, want [1 2]", seen)
	}
}

func TestDispatchRejectsInvalidPlan(t *testing.T) {
	d, _ := testDispatcher(t, config.DispatchConfig{})
	plan := validPlan("ok")
	plan.ValidationResult = models.PlanValidationResult{IsValid: false, Issues: []string{"broken"}}
	if _, _, err := d.Dispatch(context.Background(), plan); err == nil {
		t.Fatal("Dispatch(invalid plan) = nil error, want ValidationError")
	}
}
