package models

// ActionResult is what every tool adapter returns. Success reflects the
// adapter's own view; verification happens separately.
type ActionResult struct {
	Success         bool           `json:"success"`
	ActionType      string         `json:"action_type"`
	Message         string         `json:"message,omitempty"`
	Data            map[string]any `json:"data,omitempty"`
	Error           string         `json:"error,omitempty"`
	ExecutionTimeMs int64          `json:"execution_time_ms"`
}

// VerificationResult reports whether an action's intended side effect is
// observable in the environment.
type VerificationResult struct {
	Verified   bool           `json:"verified"`
	ActionType string         `json:"action_type"`
	Message    string         `json:"message,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	Error      string         `json:"error,omitempty"`
	// Advisory marks checks that are inherently racy (pointer position) and
	// must not be treated as authoritative.
	Advisory bool `json:"advisory,omitempty"`
	// Skipped marks checks that do not apply on this platform or action type.
	Skipped bool `json:"skipped,omitempty"`
}

// ExecutionResult is the executor server's combined view of one step
// invocation: adapter outcome plus verification.
type ExecutionResult struct {
	Success             bool           `json:"success"`
	ActionType          string         `json:"action_type"`
	Message             string         `json:"message,omitempty"`
	Data                map[string]any `json:"data,omitempty"`
	Error               string         `json:"error,omitempty"`
	ExecutionTimeMs     int64          `json:"execution_time_ms"`
	Verified            bool           `json:"verified"`
	VerificationMessage string         `json:"verification_message,omitempty"`
}
