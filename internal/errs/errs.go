// Package errs defines the error taxonomy shared across the pipeline so every
// layer can classify failures without importing its callers.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

// ErrShutdown is returned by process-wide services after Close.
var ErrShutdown = errors.New("service is shut down")

// ValidationError reports malformed input: empty requests, plans that stay
// broken after repair, dependency cycles, unknown action families. Never
// retried.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return "validation: " + e.Msg }

// Validationf builds a ValidationError.
func Validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// StorageError wraps a backend I/O failure. Surfaced, not retried in the core.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return "storage " + e.Op + ": " + e.Err.Error() }
func (e *StorageError) Unwrap() error { return e.Err }

// ProviderError reports LLM connectivity or transport failure, distinguishable
// from an empty or invalid reply.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return "provider " + e.Provider + ": " + e.Err.Error()
}
func (e *ProviderError) Unwrap() error { return e.Err }

// TimeoutError reports a subprocess or LLM call exceeding its deadline.
// Transient unless retries are exhausted.
type TimeoutError struct {
	Op      string
	Seconds float64
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %.1fs", e.Op, e.Seconds)
}

// permanentMarkers terminate a step's retry loop when they appear in an
// adapter error message.
var permanentMarkers = []string{
	"not found",
	"no such file",
	"permission denied",
	"access denied",
	"not installed",
	"does not exist",
}

// verifierPermanentMarkers terminate retries when they appear in a verifier
// error message.
var verifierPermanentMarkers = []string{
	"does not exist",
	"not found",
	"locked",
	"permission denied",
}

// IsPermanent reports whether an adapter error message indicates a failure
// that further retries cannot fix.
func IsPermanent(msg string) bool {
	return containsAny(msg, permanentMarkers)
}

// IsVerifierPermanent is the permanent classifier for verification failures.
func IsVerifierPermanent(msg string) bool {
	return containsAny(msg, verifierPermanentMarkers)
}

// IsFatal reports whether an error message should abort the remaining plan.
func IsFatal(msg string) bool {
	return strings.Contains(strings.ToLower(msg), "fatal")
}

func containsAny(msg string, markers []string) bool {
	lower := strings.ToLower(msg)
	for _, m := range markers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}
