// Package dispatch walks a validated plan step by step, retrying failures
// with exponential backoff, substituting configured alternatives, and
// aborting early on permanent or fatal errors.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/spectralhq/spectral/internal/backoff"
	"github.com/spectralhq/spectral/internal/config"
	"github.com/spectralhq/spectral/internal/errs"
	"github.com/spectralhq/spectral/internal/executor"
	"github.com/spectralhq/spectral/internal/observability"
	"github.com/spectralhq/spectral/pkg/models"
)

// Subscriber observes step outcomes as they complete. Panics inside a
// subscriber are swallowed; dispatch never stops for an observer.
type Subscriber func(models.StepOutcome)

// Dispatcher executes plans through the executor server.
type Dispatcher struct {
	exec    *executor.Server
	cfg     config.DispatchConfig
	policy  backoff.Policy
	sleeper backoff.Sleeper
	metrics *observability.Metrics
	logger  *slog.Logger

	mu          sync.Mutex
	subscribers []Subscriber
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithSleeper replaces the backoff sleeper, letting tests observe delays.
func WithSleeper(s backoff.Sleeper) Option {
	return func(d *Dispatcher) { d.sleeper = s }
}

// WithMetrics attaches pipeline instruments.
func WithMetrics(m *observability.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// New creates a dispatcher.
func New(exec *executor.Server, cfg config.DispatchConfig, logger *slog.Logger, opts ...Option) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	base := cfg.BackoffBase
	if base <= 0 {
		base = time.Second
	}
	d := &Dispatcher{
		exec:    exec,
		cfg:     cfg,
		policy:  backoff.Policy{Base: base, Multiplier: 2, Max: 60 * time.Second},
		sleeper: backoff.RealSleeper{},
		logger:  logger.With("component", "dispatch"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Subscribe registers a step-outcome observer.
func (d *Dispatcher) Subscribe(fn Subscriber) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.subscribers = append(d.subscribers, fn)
}

// Dispatch runs the plan with the configured retry budget.
func (d *Dispatcher) Dispatch(ctx context.Context, plan *models.Plan) (models.DispatchSummary, []models.StepOutcome, error) {
	return d.run(ctx, plan, d.cfg.MaxRetries, nil, nil)
}

// DispatchWithRetries overrides the per-step retry budget, used when the
// request carries an explicit directive.
func (d *Dispatcher) DispatchWithRetries(ctx context.Context, plan *models.Plan, maxRetries int) (models.DispatchSummary, []models.StepOutcome, error) {
	return d.run(ctx, plan, maxRetries, nil, nil)
}

// DispatchStream is Dispatch with textual progress sent to emit.
func (d *Dispatcher) DispatchStream(ctx context.Context, plan *models.Plan, emit func(string)) (models.DispatchSummary, []models.StepOutcome, error) {
	return d.run(ctx, plan, d.cfg.MaxRetries, nil, emit)
}

// DispatchStreamSeeded streams a plan run with a per-request retry budget
// and pre-resolved context values, used when the request references earlier
// executions.
func (d *Dispatcher) DispatchStreamSeeded(ctx context.Context, plan *models.Plan, maxRetries int, seed map[string]any, emit func(string)) (models.DispatchSummary, []models.StepOutcome, error) {
	return d.run(ctx, plan, maxRetries, seed, emit)
}

func (d *Dispatcher) run(ctx context.Context, plan *models.Plan, maxRetries int, seed map[string]any, emit func(string)) (models.DispatchSummary, []models.StepOutcome, error) {
	if plan == nil || len(plan.Steps) == 0 {
		return models.DispatchSummary{}, nil, errs.Validationf("plan has no steps")
	}
	if !plan.ValidationResult.IsValid {
		return models.DispatchSummary{}, nil, errs.Validationf("plan %s failed validation: %s",
			plan.PlanID, strings.Join(plan.ValidationResult.Issues, "; "))
	}
	if maxRetries < 0 {
		maxRetries = 0
	}

	started := time.Now()
	summary := models.DispatchSummary{PlanID: plan.PlanID, TotalSteps: len(plan.Steps)}
	outcomes := make([]models.StepOutcome, 0, len(plan.Steps))
	stepContext := map[string]any{}
	for k, v := range seed {
		stepContext[k] = v
	}
	aborted := false

	for i := range plan.Steps {
		step := &plan.Steps[i]

		if aborted {
			step.Status = models.StepSkipped
			outcome := models.StepOutcome{
				StepNumber:      step.StepNumber,
				StepDescription: step.Description,
				Message:         "skipped after fatal error",
			}
			outcomes = append(outcomes, outcome)
			summary.Skipped++
			d.notify(outcome)
			continue
		}

		if emit != nil {
			emit(fmt.Sprintf("Step %d/%d: %s\n", step.StepNumber, len(plan.Steps), step.Description))
		}
		outcome := d.runStep(ctx, step, stepContext, maxRetries, emit)
		outcomes = append(outcomes, outcome)
		summary.TotalRetries += max(0, len(outcome.Attempts)-1)

		if outcome.Success {
			step.Status = models.StepCompleted
			summary.Succeeded++
			if outcome.Data != nil {
				stepContext[fmt.Sprintf("step_%d_result", step.StepNumber)] = outcome.Data
			}
			d.metrics.StepCompleted("completed", time.Duration(outcome.ExecutionTimeMs)*time.Millisecond)
		} else {
			step.Status = models.StepFailed
			summary.Failed++
			d.metrics.StepCompleted("failed", time.Duration(outcome.ExecutionTimeMs)*time.Millisecond)
			if errs.IsFatal(outcome.Error) {
				aborted = true
				summary.AbortedFatal = true
				d.logger.Error("fatal step error, aborting plan", "plan_id", plan.PlanID, "step", step.StepNumber)
				if emit != nil {
					emit(fmt.Sprintf("  fatal error, aborting remaining steps: %s\n", outcome.Error))
				}
			}
		}
		d.notify(outcome)

		if err := ctx.Err(); err != nil {
			return summary, outcomes, err
		}
	}

	summary.Elapsed = time.Since(started)
	summary.FinalMessage = fmt.Sprintf("%d/%d steps succeeded", summary.Succeeded, summary.TotalSteps)
	d.logger.Info("plan dispatched",
		"plan_id", plan.PlanID,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"skipped", summary.Skipped,
		"retries", summary.TotalRetries)
	return summary, outcomes, nil
}

// runStep executes one step with up to maxRetries retries after the first
// attempt. A configured alternative action is substituted from the second
// attempt onward.
func (d *Dispatcher) runStep(ctx context.Context, step *models.PlanStep, stepContext map[string]any, maxRetries int, emit func(string)) models.StepOutcome {
	step.Status = models.StepInProgress
	outcome := models.StepOutcome{
		StepNumber:      step.StepNumber,
		StepDescription: step.Description,
	}
	started := time.Now()
	actionType := ""
	if len(step.RequiredTools) > 0 {
		actionType = step.RequiredTools[0]
	}

	maxAttempts := maxRetries + 1
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		current := *step
		usedAlternative := false
		alternative := ""
		if attempt > 1 {
			if alt, ok := d.cfg.Alternatives[actionType]; ok && alt != "" {
				current.RequiredTools = append([]string{alt}, current.RequiredTools[1:]...)
				usedAlternative = true
				alternative = alt
			}
		}

		result, err := d.exec.ExecuteStep(ctx, current, stepContext, nil)
		if err != nil {
			result = &models.ExecutionResult{
				ActionType: actionType,
				Error:      err.Error(),
			}
		}

		attemptResult := models.AttemptResult{
			AttemptNumber:     attempt,
			Success:           result.Success,
			Verified:          result.Verified,
			ActionType:        result.ActionType,
			UsedAlternative:   usedAlternative,
			AlternativeAction: alternative,
			Error:             result.Error,
			ExecutionTimeMs:   result.ExecutionTimeMs,
		}
		outcome.Attempts = append(outcome.Attempts, attemptResult)

		if result.Success {
			outcome.Success = true
			outcome.Message = result.Message
			outcome.Data = result.Data
			outcome.Verified = result.Verified
			outcome.VerificationMessage = result.VerificationMessage
			outcome.ExecutionTimeMs = time.Since(started).Milliseconds()
			if emit != nil {
				emit(fmt.Sprintf("  ✓ %s\n", result.Message))
			}
			return outcome
		}

		outcome.Error = result.Error
		if errs.IsPermanent(result.Error) || errs.IsVerifierPermanent(result.Error) {
			d.metrics.PermanentFailure()
			d.logger.Warn("permanent step failure, not retrying",
				"step", step.StepNumber, "error", result.Error)
			if emit != nil {
				emit(fmt.Sprintf("  ✗ permanent failure: %s\n", result.Error))
			}
			break
		}
		if attempt == maxAttempts {
			if emit != nil {
				emit(fmt.Sprintf("  ✗ failed after %d attempts: %s\n", attempt, result.Error))
			}
			break
		}

		delay := d.policy.Delay(attempt)
		d.metrics.StepRetried()
		d.logger.Info("retrying step",
			"step", step.StepNumber, "attempt", attempt+1, "backoff", delay, "error", result.Error)
		if emit != nil {
			emit(fmt.Sprintf("  attempt %d failed (%s), retrying in %s\n", attempt, result.Error, delay))
		}
		if err := d.sleeper.Sleep(ctx, delay); err != nil {
			outcome.Error = err.Error()
			break
		}
	}

	outcome.ExecutionTimeMs = time.Since(started).Milliseconds()
	return outcome
}

func (d *Dispatcher) notify(outcome models.StepOutcome) {
	d.mu.Lock()
	subs := make([]Subscriber, len(d.subscribers))
	copy(subs, d.subscribers)
	d.mu.Unlock()

	for _, fn := range subs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					d.logger.Warn("subscriber panicked", "panic", r)
				}
			}()
			fn(outcome)
		}()
	}
}
