package models

import (
	"time"
)

// SandboxStatus is the terminal state of a sandbox run.
type SandboxStatus string

const (
	SandboxSuccess     SandboxStatus = "success"
	SandboxSyntaxError SandboxStatus = "syntax_error"
	SandboxTestFailure SandboxStatus = "test_failure"
	SandboxTimeout     SandboxStatus = "timeout"
	SandboxError       SandboxStatus = "error"
)

// SandboxResult captures one isolated verification run of generated code.
type SandboxResult struct {
	RunID           string          `json:"run_id"`
	Status          SandboxStatus   `json:"status"`
	CodePath        string          `json:"code_path"`
	TestPaths       []string        `json:"test_paths,omitempty"`
	Stdout          string          `json:"stdout,omitempty"`
	Stderr          string          `json:"stderr,omitempty"`
	ExitCode        int             `json:"exit_code"`
	PytestSummary   string          `json:"pytest_summary,omitempty"`
	ErrorMessage    string          `json:"error_message,omitempty"`
	GatesPassed     map[string]bool `json:"gates_passed"`
	DurationSeconds float64         `json:"duration_seconds"`
	IsGUI           bool            `json:"is_gui,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}
