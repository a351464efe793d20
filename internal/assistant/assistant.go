// Package assistant orchestrates a user turn end to end: intent
// classification, plan or code-generation pipeline, transcript formatting
// and turn persistence.
package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spectralhq/spectral/internal/config"
	"github.com/spectralhq/spectral/internal/errs"
	"github.com/spectralhq/spectral/internal/executor"
	"github.com/spectralhq/spectral/internal/llm"
	"github.com/spectralhq/spectral/internal/observability"
	"github.com/spectralhq/spectral/pkg/models"
)

// PlanCreator produces validated plans. Satisfied by planner.Planner.
type PlanCreator interface {
	CreatePlanStream(ctx context.Context, userInput string, emit func(string)) (*models.Plan, error)
}

// PlanDispatcher executes plans. Satisfied by dispatch.Dispatcher.
type PlanDispatcher interface {
	DispatchStreamSeeded(ctx context.Context, plan *models.Plan, maxRetries int, seed map[string]any, emit func(string)) (models.DispatchSummary, []models.StepOutcome, error)
}

// CodeGenerator runs the code path. Satisfied by executor.Direct.
type CodeGenerator interface {
	GenerateStream(ctx context.Context, userInput string, opts executor.GenerateOptions, emit func(string)) (*executor.GenerateResult, error)
}

// TurnStore persists turns and resolves references to earlier work.
// Satisfied by memory.Manager.
type TurnStore interface {
	SaveConversationTurn(ctx context.Context, turn *models.ConversationMemory) error
	SaveExecution(ctx context.Context, exec *models.ExecutionMemory, turnID string) error
	GetFileLocations(ctx context.Context, description string) ([]string, error)
	GetRecentContext(ctx context.Context, numTurns int) (string, error)
}

// Assistant drives one logical pipeline per user turn.
type Assistant struct {
	client     llm.Client
	planner    PlanCreator
	dispatcher PlanDispatcher
	codegen    CodeGenerator
	memory     TurnStore
	cfg        *config.Config
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// New wires the assistant. memory and codegen may be nil; persistence and
// the code path are then unavailable.
func New(client llm.Client, pl PlanCreator, disp PlanDispatcher, gen CodeGenerator, mem TurnStore, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) *Assistant {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Assistant{
		client:     client,
		planner:    pl,
		dispatcher: disp,
		codegen:    gen,
		memory:     mem,
		cfg:        cfg,
		metrics:    metrics,
		logger:     logger.With("component", "assistant"),
	}
}

// ProcessCommand handles one request and returns the full transcript.
func (a *Assistant) ProcessCommand(ctx context.Context, text string) (string, error) {
	return a.process(ctx, text, nil)
}

// ProcessCommandStream handles one request, emitting transcript chunks as
// they are produced, and returns the aggregate at end of stream.
func (a *Assistant) ProcessCommandStream(ctx context.Context, text string, emit func(string)) (string, error) {
	return a.process(ctx, text, emit)
}

func (a *Assistant) process(ctx context.Context, text string, emit func(string)) (string, error) {
	input := strings.TrimSpace(text)
	if input == "" {
		return "", errs.Validationf("empty command")
	}

	var transcript strings.Builder
	out := func(chunk string) {
		transcript.WriteString(chunk)
		if emit != nil {
			emit(chunk)
		}
	}

	turnID := uuid.NewString()
	intent := ClassifyIntent(input)
	a.logger.Info("processing command", "turn_id", turnID, "intent", intent)

	var err error
	switch intent {
	case IntentChat:
		err = a.handleChat(ctx, input, turnID, out)
	case IntentCodegen:
		err = a.handleCodegen(ctx, input, turnID, out)
	default:
		err = a.handleAction(ctx, input, turnID, out)
	}
	return transcript.String(), err
}

func (a *Assistant) handleChat(ctx context.Context, input, turnID string, out func(string)) error {
	reply, err := a.conversationalReply(ctx, input, "")
	if err != nil {
		return err
	}
	out(reply + "\n")
	a.saveTurn(ctx, &models.ConversationMemory{
		TurnID:            turnID,
		UserMessage:       input,
		AssistantResponse: reply,
		ContextTags:       []string{"chat"},
	})
	return nil
}

func (a *Assistant) handleCodegen(ctx context.Context, input, turnID string, out func(string)) error {
	if a.codegen == nil {
		return errs.Validationf("code generation is not configured")
	}
	opts := executor.GenerateOptions{TurnID: turnID}
	if retries, ok := ParseRetryDirective(input); ok {
		opts.MaxAttempts = retries + 1
	}

	out("[Executing...]\n")
	res, err := a.codegen.GenerateStream(ctx, input, opts, out)
	if err != nil {
		return err
	}

	out("\nExecution Result:\n")
	out(res.Message + "\n")
	if res.ExportedPath != "" {
		out("Saved to: " + res.ExportedPath + "\n")
	}

	response := res.Message
	if reply, err := a.conversationalReply(ctx, input, res.Message); err == nil && reply != "" {
		out("\n" + reply + "\n")
		response = reply
	}
	a.saveTurn(ctx, &models.ConversationMemory{
		TurnID:            turnID,
		UserMessage:       input,
		AssistantResponse: response,
		ContextTags:       []string{"codegen"},
	})
	return nil
}

func (a *Assistant) handleAction(ctx context.Context, input, turnID string, out func(string)) error {
	retries := a.cfg.Dispatch.MaxRetries
	if n, ok := ParseRetryDirective(input); ok {
		retries = n
	}
	seed := a.resolveReferences(ctx, input)

	plan, err := a.planner.CreatePlanStream(ctx, input, out)
	if err != nil {
		return err
	}
	if !plan.IsSafe && len(plan.ValidationResult.SafetyConcerns) > 0 {
		out("Warning: " + strings.Join(plan.ValidationResult.SafetyConcerns, "; ") + "\n")
	}

	out("\n[Executing...]\n")
	summary, outcomes, err := a.dispatcher.DispatchStreamSeeded(ctx, plan, retries, seed, out)
	if err != nil {
		return err
	}

	out("\nExecution Result:\n")
	out(summary.FinalMessage + "\n")
	for _, o := range outcomes {
		if !o.Success && o.Error != "" {
			out(fmt.Sprintf("Step %d failed: %s\n", o.StepNumber, o.Error))
		}
	}

	response := summary.FinalMessage
	if reply, err := a.conversationalReply(ctx, input, summary.FinalMessage); err == nil && reply != "" {
		out("\n" + reply + "\n")
		response = reply
	}

	exec := &models.ExecutionMemory{
		UserRequest:     input,
		Description:     plan.Description,
		FileLocations:   collectLocations(outcomes),
		Success:         summary.Failed == 0 && !summary.AbortedFatal,
		Tags:            []string{"plan"},
		ExecutionTimeMs: summary.Elapsed.Milliseconds(),
	}
	a.saveTurn(ctx, &models.ConversationMemory{
		TurnID:            turnID,
		UserMessage:       input,
		AssistantResponse: response,
		ExecutionHistory:  []models.ExecutionMemory{*exec},
		ContextTags:       []string{"action"},
	})
	if a.memory != nil {
		if err := a.memory.SaveExecution(ctx, exec, turnID); err != nil {
			a.logger.Warn("could not persist execution", "turn_id", turnID, "error", err)
		}
	}
	return nil
}

// resolveReferences maps "delete that file" onto the location recorded by
// the best-matching earlier execution. The resolved path is seeded into the
// dispatch context where later step results take precedence over it.
func (a *Assistant) resolveReferences(ctx context.Context, input string) map[string]any {
	if a.memory == nil || !ReferencesEarlierWork(input) {
		return nil
	}
	locations, err := a.memory.GetFileLocations(ctx, input)
	if err != nil || len(locations) == 0 {
		return nil
	}
	a.logger.Info("resolved reference to earlier execution", "path", locations[0])
	return map[string]any{
		"step_0_result": map[string]any{"path": locations[0]},
	}
}

const chatSystemPrompt = `You are Spectral, a desktop action assistant. Reply
conversationally in at most three sentences. When given an execution outcome,
summarize it for the user; otherwise just answer the message.`

func (a *Assistant) conversationalReply(ctx context.Context, input, outcome string) (string, error) {
	if a.client == nil {
		return "", errs.Validationf("no llm client configured")
	}
	prompt := input
	if outcome != "" {
		prompt = fmt.Sprintf("The user asked: %s\nThe outcome was: %s\nReply to the user.", input, outcome)
	}
	if a.memory != nil {
		if recent, err := a.memory.GetRecentContext(ctx, a.cfg.Planner.ContextTurns); err == nil && recent != "" {
			prompt = "Recent conversation:\n" + recent + "\n\n" + prompt
		}
	}
	reply, err := a.client.Generate(ctx, chatSystemPrompt, prompt)
	a.metrics.LLMCall(a.client.Name(), err)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(reply), nil
}

func (a *Assistant) saveTurn(ctx context.Context, turn *models.ConversationMemory) {
	if a.memory == nil {
		return
	}
	turn.Timestamp = time.Now().UTC()
	if err := a.memory.SaveConversationTurn(ctx, turn); err != nil {
		a.logger.Warn("could not persist turn", "turn_id", turn.TurnID, "error", err)
	}
}

func collectLocations(outcomes []models.StepOutcome) []string {
	var locations []string
	seen := map[string]bool{}
	for _, o := range outcomes {
		for _, field := range []string{"path", "destination"} {
			if v, ok := o.Data[field].(string); ok && v != "" && !seen[v] {
				seen[v] = true
				locations = append(locations, v)
			}
		}
	}
	return locations
}
