// Package tools provides the process-wide registry of action adapters and a
// representative adapter catalog (file, shell, subprocess, gui, typing,
// winreg, ocr families).
package tools

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/spectralhq/spectral/internal/errs"
	"github.com/spectralhq/spectral/pkg/models"
)

// Adapter is a named unit of side-effecting work. Adapters report failures
// inside the ActionResult rather than as Go errors; Route only errors on
// unknown actions or after shutdown.
type Adapter interface {
	Name() string
	Family() string
	Description() string
	Execute(ctx context.Context, params map[string]any) *models.ActionResult
}

// Env is the shared execution environment handed to adapters at
// construction: dry-run flag, filesystem policy and the per-adapter timeout.
type Env struct {
	DryRun  bool
	Paths   PathPolicy
	Timeout time.Duration
}

// Registry routes (action_type, params) to the registered adapter.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
	closed   bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

// Register adds an adapter; same-name registration replaces.
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Name()] = a
}

// Has reports whether an action type is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.adapters[name]
	return ok
}

// Names returns all registered action types, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ListAvailableActions returns {family: {name: description}} for the planner
// prompt catalog.
func (r *Registry) ListAvailableActions() map[string]map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	catalog := make(map[string]map[string]string)
	for name, a := range r.adapters {
		fam := catalog[a.Family()]
		if fam == nil {
			fam = make(map[string]string)
			catalog[a.Family()] = fam
		}
		fam[name] = a.Description()
	}
	return catalog
}

// Route executes the named action with the given params, stamping the
// execution time when the adapter did not.
func (r *Registry) Route(ctx context.Context, actionType string, params map[string]any) (*models.ActionResult, error) {
	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		return nil, errs.ErrShutdown
	}
	adapter, ok := r.adapters[actionType]
	r.mu.RUnlock()
	if !ok {
		return nil, errs.Validationf("unknown action type %q", actionType)
	}

	start := time.Now()
	result := adapter.Execute(ctx, params)
	if result == nil {
		result = failure(actionType, "adapter returned no result")
	}
	if result.ActionType == "" {
		result.ActionType = actionType
	}
	if result.ExecutionTimeMs == 0 {
		result.ExecutionTimeMs = time.Since(start).Milliseconds()
	}
	return result, nil
}

// Close rejects further routing.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
}

// success builds a successful ActionResult.
func success(actionType, message string, data map[string]any) *models.ActionResult {
	return &models.ActionResult{
		Success:    true,
		ActionType: actionType,
		Message:    message,
		Data:       data,
	}
}

// failure builds a failed ActionResult.
func failure(actionType, errMsg string) *models.ActionResult {
	return &models.ActionResult{
		Success:    false,
		ActionType: actionType,
		Error:      errMsg,
	}
}

// dryRunResult reports what would have happened without side effects.
func dryRunResult(actionType, would string) *models.ActionResult {
	return success(actionType, "[DRY RUN] Would "+would, nil)
}

// stringParam extracts a required string parameter.
func stringParam(params map[string]any, key string) (string, error) {
	v, ok := params[key]
	if !ok {
		return "", fmt.Errorf("missing required parameter %q", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("parameter %q must be a string", key)
	}
	return s, nil
}

// optString extracts an optional string parameter.
func optString(params map[string]any, key string) string {
	s, _ := params[key].(string)
	return s
}

// optInt extracts an optional integer parameter, accepting JSON numbers.
func optInt(params map[string]any, key string) (int, bool) {
	switch v := params[key].(type) {
	case int:
		return v, true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}
