package models

import (
	"time"
)

// StepStatus tracks a step through the dispatch lifecycle.
type StepStatus string

const (
	StepPending    StepStatus = "pending"
	StepInProgress StepStatus = "in_progress"
	StepCompleted  StepStatus = "completed"
	StepFailed     StepStatus = "failed"
	StepSkipped    StepStatus = "skipped"
)

// SafetyFlag marks a step as needing extra scrutiny before execution.
type SafetyFlag string

const (
	FlagDestructive        SafetyFlag = "destructive"
	FlagNetworkAccess      SafetyFlag = "network_access"
	FlagFileModification   SafetyFlag = "file_modification"
	FlagSystemCommand      SafetyFlag = "system_command"
	FlagExternalDependency SafetyFlag = "external_dependency"
)

// KnownSafetyFlags enumerates the recognized flags; anything else coming back
// from the model is dropped during plan construction.
var KnownSafetyFlags = map[SafetyFlag]bool{
	FlagDestructive:        true,
	FlagNetworkAccess:      true,
	FlagFileModification:   true,
	FlagSystemCommand:      true,
	FlagExternalDependency: true,
}

// PlanStep is a single action in a plan. Step numbers are 1-based and
// contiguous after validation; dependencies reference strictly smaller steps.
type PlanStep struct {
	StepNumber        int          `json:"step_number"`
	Description       string       `json:"description"`
	RequiredTools     []string     `json:"required_tools"`
	Dependencies      []int        `json:"dependencies,omitempty"`
	SafetyFlags       []SafetyFlag `json:"safety_flags,omitempty"`
	EstimatedDuration string       `json:"estimated_duration,omitempty"`
	Status            StepStatus   `json:"status"`
}

// HasFlag reports whether the step carries the given safety flag.
func (s *PlanStep) HasFlag(flag SafetyFlag) bool {
	for _, f := range s.SafetyFlags {
		if f == flag {
			return true
		}
	}
	return false
}

// PlanValidationResult holds the outcome of structural plan verification.
type PlanValidationResult struct {
	IsValid        bool     `json:"is_valid"`
	Issues         []string `json:"issues,omitempty"`
	Warnings       []string `json:"warnings,omitempty"`
	SafetyConcerns []string `json:"safety_concerns,omitempty"`
}

// Plan is an ordered, validated description of actions. Plans are handed by
// value to the dispatcher and do not survive the process.
type Plan struct {
	PlanID           string               `json:"plan_id"`
	UserInput        string               `json:"user_input"`
	Description      string               `json:"description"`
	Steps            []PlanStep           `json:"steps"`
	ValidationResult PlanValidationResult `json:"validation_result"`
	IsSafe           bool                 `json:"is_safe"`
	GeneratedAt      time.Time            `json:"generated_at"`
	VerifiedAt       time.Time            `json:"verified_at,omitempty"`
}

// AttemptResult records one execution attempt of a step.
type AttemptResult struct {
	AttemptNumber     int    `json:"attempt_number"`
	Success           bool   `json:"success"`
	Verified          bool   `json:"verified"`
	ActionType        string `json:"action_type"`
	UsedAlternative   bool   `json:"used_alternative,omitempty"`
	AlternativeAction string `json:"alternative_action,omitempty"`
	Error             string `json:"error,omitempty"`
	ExecutionTimeMs   int64  `json:"execution_time_ms"`
}

// StepOutcome is the terminal result of a step after all attempts.
type StepOutcome struct {
	StepNumber          int             `json:"step_number"`
	StepDescription     string          `json:"step_description"`
	Success             bool            `json:"success"`
	Message             string          `json:"message,omitempty"`
	Data                map[string]any  `json:"data,omitempty"`
	Error               string          `json:"error,omitempty"`
	ExecutionTimeMs     int64           `json:"execution_time_ms"`
	Verified            bool            `json:"verified"`
	VerificationMessage string          `json:"verification_message,omitempty"`
	Attempts            []AttemptResult `json:"attempts"`
}

// DispatchSummary aggregates a full plan run for the user-visible transcript.
type DispatchSummary struct {
	PlanID        string        `json:"plan_id"`
	TotalSteps    int           `json:"total_steps"`
	Succeeded     int           `json:"succeeded"`
	Failed        int           `json:"failed"`
	Skipped       int           `json:"skipped"`
	TotalRetries  int           `json:"total_retries"`
	Elapsed       time.Duration `json:"elapsed"`
	AbortedFatal  bool          `json:"aborted_fatal,omitempty"`
	FinalMessage  string        `json:"final_message,omitempty"`
}
