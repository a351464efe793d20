// Package executor maps plan steps onto registry calls. The server path
// synthesizes adapter params from the step description and execution
// context, routes the action, then confirms the side effect through the
// verifier.
package executor

import (
	"context"
	"log/slog"

	"github.com/spectralhq/spectral/internal/errs"
	"github.com/spectralhq/spectral/internal/tools"
	"github.com/spectralhq/spectral/internal/verify"
	"github.com/spectralhq/spectral/pkg/models"
)

// Server executes single plan steps against the tool registry.
type Server struct {
	registry     *tools.Registry
	verifier     *verify.Verifier
	verification bool
	logger       *slog.Logger
}

// NewServer creates an executor server. verifier may be nil when
// verification is disabled.
func NewServer(registry *tools.Registry, verifier *verify.Verifier, verification bool, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		registry:     registry,
		verifier:     verifier,
		verification: verification && verifier != nil,
		logger:       logger.With("component", "executor"),
	}
}

// ExecuteStep routes the step's first required tool with params synthesized
// from its description and the accumulated step context, overlaid with any
// dispatcher overrides. Success is the conjunction of adapter success and,
// when enabled, verification.
func (s *Server) ExecuteStep(ctx context.Context, step models.PlanStep, stepContext, overrides map[string]any) (*models.ExecutionResult, error) {
	if len(step.RequiredTools) == 0 {
		return nil, errs.Validationf("step %d has no required tools", step.StepNumber)
	}
	actionType := step.RequiredTools[0]
	params := SynthesizeParams(actionType, step.Description, stepContext)
	for k, v := range overrides {
		params[k] = v
	}

	result, err := s.registry.Route(ctx, actionType, params)
	if err != nil {
		return nil, err
	}

	out := &models.ExecutionResult{
		Success:         result.Success,
		ActionType:      result.ActionType,
		Message:         result.Message,
		Data:            result.Data,
		Error:           result.Error,
		ExecutionTimeMs: result.ExecutionTimeMs,
	}

	if !s.verification {
		out.Verified = true
		return out, nil
	}
	if !result.Success {
		return out, nil
	}

	vr := s.verifier.Verify(actionType, result.Data, params)
	out.Verified = vr.Verified
	out.VerificationMessage = vr.Message
	if !vr.Verified {
		out.Success = false
		if out.Error == "" {
			out.Error = vr.Error
		}
		s.logger.Warn("verification failed",
			"action", actionType,
			"step", step.StepNumber,
			"error", vr.Error)
	}
	return out, nil
}
