package planner

import (
	"fmt"
	"time"

	"github.com/spectralhq/spectral/pkg/models"
)

// verify runs the structural checks and stamps the result onto the plan.
// The plan is valid iff no issues were found; it is safe iff safety
// validation is enabled and no safety concerns were raised.
func (p *Planner) verify(plan *models.Plan) {
	var result models.PlanValidationResult

	for _, step := range plan.Steps {
		for _, dep := range step.Dependencies {
			if dep < 1 || dep > len(plan.Steps) {
				result.Issues = append(result.Issues,
					fmt.Sprintf("step %d depends on nonexistent step %d", step.StepNumber, dep))
			} else if dep >= step.StepNumber {
				result.Issues = append(result.Issues,
					fmt.Sprintf("step %d depends on later step %d", step.StepNumber, dep))
			}
		}
	}

	for i, step := range plan.Steps {
		if step.StepNumber != i+1 {
			result.Issues = append(result.Issues,
				fmt.Sprintf("step numbers are not contiguous: position %d has number %d", i+1, step.StepNumber))
		}
	}

	for _, step := range plan.Steps {
		if step.Description == "" {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("step %d has an empty description", step.StepNumber))
		}
		if step.StepNumber == 1 && len(step.Dependencies) > 0 {
			result.Warnings = append(result.Warnings, "step 1 declares dependencies")
		}
	}

	if p.cfg.SafetyValidation {
		for _, step := range plan.Steps {
			for _, flag := range []models.SafetyFlag{
				models.FlagDestructive,
				models.FlagSystemCommand,
				models.FlagFileModification,
			} {
				if step.HasFlag(flag) {
					result.SafetyConcerns = append(result.SafetyConcerns,
						fmt.Sprintf("step %d is flagged %s", step.StepNumber, flag))
				}
			}
		}
	}

	result.IsValid = len(result.Issues) == 0
	plan.ValidationResult = result
	plan.IsSafe = p.cfg.SafetyValidation && len(result.SafetyConcerns) == 0
	plan.VerifiedAt = time.Now().UTC()
}
