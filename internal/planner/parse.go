package planner

import (
	"encoding/json"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/spectralhq/spectral/internal/llm"
	"github.com/spectralhq/spectral/pkg/models"
)

// planSchema is a permissive shape check on the model's reply. A violation
// is logged and the reply still goes through defensive coercion; the schema
// catches drift early without making parsing brittle.
var planSchema = jsonschema.MustCompileString("plan.json", `{
	"type": "object",
	"properties": {
		"description": {"type": "string"},
		"steps": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"step_number": {"type": "integer"},
					"description": {"type": "string"},
					"required_tools": {"type": "array", "items": {"type": "string"}},
					"dependencies": {"type": "array", "items": {"type": "integer"}},
					"safety_flags": {"type": "array", "items": {"type": "string"}},
					"estimated_duration": {"type": "string"}
				}
			}
		}
	}
}`)

type rawStep struct {
	StepNumber        int      `json:"step_number"`
	Description       string   `json:"description"`
	RequiredTools     []string `json:"required_tools"`
	Dependencies      []int    `json:"dependencies"`
	SafetyFlags       []string `json:"safety_flags"`
	EstimatedDuration string   `json:"estimated_duration"`
}

type rawPlan struct {
	Description string    `json:"description"`
	Steps       []rawStep `json:"steps"`
}

// parseReply extracts and decodes the plan JSON. A bare array is treated as
// the steps list; any failure yields an empty rawPlan and the caller falls
// back to a synthesized plan.
func (p *Planner) parseReply(reply string) rawPlan {
	doc, err := llm.ExtractJSON(reply)
	if err != nil {
		p.logger.Warn("could not extract plan JSON", "error", err)
		return rawPlan{}
	}

	var shape any
	if err := json.Unmarshal([]byte(doc), &shape); err == nil {
		if err := planSchema.Validate(shape); err != nil {
			p.logger.Warn("plan JSON deviates from expected shape", "error", err)
		}
	}

	if strings.HasPrefix(strings.TrimSpace(doc), "[") {
		var steps []rawStep
		if err := json.Unmarshal([]byte(doc), &steps); err != nil {
			p.logger.Warn("could not decode steps array", "error", err)
			return rawPlan{}
		}
		return rawPlan{Steps: steps}
	}

	var plan rawPlan
	if err := json.Unmarshal([]byte(doc), &plan); err != nil {
		p.logger.Warn("could not decode plan object", "error", err)
		return rawPlan{}
	}
	return plan
}

// buildSteps coerces raw steps into PlanSteps: contiguous 1..n numbering,
// recognized safety flags only, dependencies clamped to earlier steps.
func (p *Planner) buildSteps(raw []rawStep) []models.PlanStep {
	steps := make([]models.PlanStep, 0, len(raw))
	for i, rs := range raw {
		number := i + 1
		step := models.PlanStep{
			StepNumber:        number,
			Description:       strings.TrimSpace(rs.Description),
			RequiredTools:     dedupeStrings(rs.RequiredTools),
			EstimatedDuration: rs.EstimatedDuration,
			Status:            models.StepPending,
		}
		for _, flag := range rs.SafetyFlags {
			sf := models.SafetyFlag(strings.ToLower(strings.TrimSpace(flag)))
			if models.KnownSafetyFlags[sf] {
				step.SafetyFlags = append(step.SafetyFlags, sf)
			}
		}
		for _, dep := range rs.Dependencies {
			if dep >= 1 && dep < number {
				step.Dependencies = append(step.Dependencies, dep)
			}
		}
		steps = append(steps, step)
	}
	return steps
}

func dedupeStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
