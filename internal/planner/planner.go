// Package planner turns a free-form request into a validated plan of tool
// invocations. The model's reply is parsed defensively, missing tools are
// filled in by keyword heuristics, and the result is structurally verified
// before anything executes.
package planner

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/spectralhq/spectral/internal/config"
	"github.com/spectralhq/spectral/internal/errs"
	"github.com/spectralhq/spectral/internal/llm"
	"github.com/spectralhq/spectral/internal/rag"
	"github.com/spectralhq/spectral/internal/tools"
	"github.com/spectralhq/spectral/pkg/models"
)

// Planner generates and validates plans. It holds references to the shared
// registry and RAG service; it never owns them.
type Planner struct {
	client   llm.Client
	registry *tools.Registry
	rag      *rag.Service
	cfg      config.PlannerConfig
	logger   *slog.Logger
	seq      atomic.Int64
}

// New creates a planner. ragService may be nil to disable enrichment.
func New(client llm.Client, registry *tools.Registry, ragService *rag.Service, cfg config.PlannerConfig, logger *slog.Logger) *Planner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{
		client:   client,
		registry: registry,
		rag:      ragService,
		cfg:      cfg,
		logger:   logger.With("component", "planner"),
	}
}

// CreatePlan runs one full planning pass: prompt, parse, repair, heuristic
// tool injection, structural verification.
func (p *Planner) CreatePlan(ctx context.Context, userInput string) (*models.Plan, error) {
	return p.plan(ctx, userInput, nil)
}

// CreatePlanStream is CreatePlan with human-readable progress markers sent
// to emit. The same pass produces both the stream and the returned plan.
func (p *Planner) CreatePlanStream(ctx context.Context, userInput string, emit func(string)) (*models.Plan, error) {
	if emit == nil {
		emit = func(string) {}
	}
	return p.plan(ctx, userInput, emit)
}

func (p *Planner) plan(ctx context.Context, userInput string, emit func(string)) (*models.Plan, error) {
	if strings.TrimSpace(userInput) == "" {
		return nil, errs.Validationf("empty user input")
	}
	if emit != nil {
		emit("Planning...\n")
	}

	prompt := p.buildPrompt(ctx, userInput)
	reply, err := p.client.Generate(ctx, planningSystemPrompt, prompt)
	if err != nil {
		return nil, fmt.Errorf("planning call: %w", err)
	}

	raw := p.parseReply(reply)
	steps := p.buildSteps(raw.Steps)
	steps = p.resolveTools(steps, userInput)
	if len(steps) == 0 {
		p.logger.Warn("model reply produced no steps, synthesizing fallback plan")
		steps = p.fallbackSteps(userInput)
	}

	plan := &models.Plan{
		PlanID:      p.nextPlanID(),
		UserInput:   userInput,
		Description: raw.Description,
		Steps:       steps,
		GeneratedAt: time.Now().UTC(),
	}
	if plan.Description == "" {
		plan.Description = userInput
	}

	p.verify(plan)

	if emit != nil {
		for _, step := range plan.Steps {
			emit(fmt.Sprintf("Step %d: %s\n", step.StepNumber, step.Description))
		}
		if plan.IsSafe {
			emit("Safe: ✓\n")
		} else {
			emit("Safe: ✗\n")
		}
	}

	p.logger.Info("plan created",
		"plan_id", plan.PlanID,
		"steps", len(plan.Steps),
		"is_valid", plan.ValidationResult.IsValid,
		"is_safe", plan.IsSafe)
	return plan, nil
}

// nextPlanID issues monotone-prefixed unique plan identifiers.
func (p *Planner) nextPlanID() string {
	return fmt.Sprintf("plan_%06d_%s", p.seq.Add(1), uuid.NewString()[:8])
}
