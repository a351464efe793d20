package planner

import (
	"strings"

	"github.com/spectralhq/spectral/pkg/models"
)

// resolveTools drops tool names the registry does not know and infers
// replacements from the step description and original request. When tools
// are injected, the description is rewritten to name the tool unless it
// already does.
func (p *Planner) resolveTools(steps []models.PlanStep, userInput string) []models.PlanStep {
	for i := range steps {
		step := &steps[i]

		known := step.RequiredTools[:0]
		for _, name := range step.RequiredTools {
			if p.registry.Has(name) {
				known = append(known, name)
			} else {
				p.logger.Debug("dropping unknown tool", "tool", name, "step", step.StepNumber)
			}
		}
		step.RequiredTools = known

		if len(step.RequiredTools) == 0 {
			inferred := inferTool(step.Description + " " + userInput)
			step.RequiredTools = []string{inferred}
			if !strings.Contains(strings.ToLower(step.Description), inferred) {
				step.Description = "Use " + inferred + " to " + lowerFirst(step.Description)
			}
		}
	}
	return steps
}

// fallbackSteps synthesizes a single-step plan from the request alone.
func (p *Planner) fallbackSteps(userInput string) []models.PlanStep {
	tool := inferTool(userInput)
	return []models.PlanStep{{
		StepNumber:    1,
		Description:   "Use " + tool + " to handle: " + userInput,
		RequiredTools: []string{tool},
		Status:        models.StepPending,
	}}
}

// inferTool maps request keywords to a registered action, falling back to a
// safe informational default.
func inferTool(text string) string {
	t := strings.ToLower(text)
	fileish := containsAny(t, "file", "folder", "directory", "document")

	switch {
	case containsAny(t, "create", "make", "new") && containsAny(t, "folder", "directory"):
		return "dir_create"
	case containsAny(t, "create", "make", "write") && fileish:
		return "file_create"
	case containsAny(t, "delete", "remove") && containsAny(t, "folder", "directory"):
		return "dir_delete"
	case containsAny(t, "delete", "remove") && fileish:
		return "file_delete"
	case strings.Contains(t, "move") && fileish:
		return "file_move"
	case strings.Contains(t, "copy") && fileish:
		return "file_copy"
	case containsAny(t, "read", "contents of") && fileish:
		return "file_read"
	case containsAny(t, "list", "show") && fileish:
		return "file_list"
	case strings.Contains(t, "type"):
		return "typing_type_text"
	case strings.Contains(t, "click"):
		return "gui_click_mouse"
	case containsAny(t, "system info", "system information"):
		return "system_info"
	case containsAny(t, "process", "processes"):
		return "process_list"
	case containsAny(t, "service", "services"):
		return "service_list"
	case containsAny(t, "open", "launch", "start"):
		return "subprocess_open_application"
	default:
		return "system_info"
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
