package tools

import (
	"context"
	"fmt"
	"sync"

	"github.com/spectralhq/spectral/pkg/models"
)

// Automator abstracts pointer and keyboard control so the gui/typing families
// work headless in tests and degrade gracefully where no display exists.
type Automator interface {
	MoveMouse(x, y int) error
	ClickMouse(x, y int, button string) error
	TypeText(text string) error
	// PointerPosition returns the current pointer location, or ok=false when
	// the position cannot be read.
	PointerPosition() (x, y int, ok bool)
}

// SoftwareAutomator tracks a virtual pointer in memory. It is the default
// when no platform automator is wired; its verifications are advisory only.
type SoftwareAutomator struct {
	mu   sync.Mutex
	x, y int
	set  bool
}

func (a *SoftwareAutomator) MoveMouse(x, y int) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.x, a.y, a.set = x, y, true
	return nil
}

func (a *SoftwareAutomator) ClickMouse(x, y int, _ string) error {
	return a.MoveMouse(x, y)
}

func (a *SoftwareAutomator) TypeText(string) error { return nil }

func (a *SoftwareAutomator) PointerPosition() (int, int, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.x, a.y, a.set
}

// RegisterGUITools adds the gui and typing families backed by the automator.
func RegisterGUITools(r *Registry, env *Env, auto Automator) {
	r.Register(&mouseMove{base{"gui_move_mouse", "gui", "Move the mouse pointer to screen coordinates", env}, auto})
	r.Register(&mouseClick{base{"gui_click_mouse", "gui", "Click the mouse at screen coordinates", env}, auto})
	r.Register(&typeText{base{"typing_type_text", "typing", "Type text at the current focus", env}, auto})
}

type mouseMove struct {
	base
	auto Automator
}

func (t *mouseMove) Execute(_ context.Context, params map[string]any) *models.ActionResult {
	x, okX := optInt(params, "x")
	y, okY := optInt(params, "y")
	if !okX || !okY {
		return failure(t.name, "parameters x and y are required")
	}
	if t.env.DryRun {
		return dryRunResult(t.name, fmt.Sprintf("move mouse to (%d, %d)", x, y))
	}
	if err := t.auto.MoveMouse(x, y); err != nil {
		return failure(t.name, fmt.Sprintf("move mouse: %v", err))
	}
	return success(t.name, fmt.Sprintf("Moved mouse to (%d, %d)", x, y), map[string]any{"x": x, "y": y})
}

type mouseClick struct {
	base
	auto Automator
}

func (t *mouseClick) Execute(_ context.Context, params map[string]any) *models.ActionResult {
	x, okX := optInt(params, "x")
	y, okY := optInt(params, "y")
	if !okX || !okY {
		return failure(t.name, "parameters x and y are required")
	}
	button := optString(params, "button")
	if button == "" {
		button = "left"
	}
	if t.env.DryRun {
		return dryRunResult(t.name, fmt.Sprintf("%s-click at (%d, %d)", button, x, y))
	}
	if err := t.auto.ClickMouse(x, y, button); err != nil {
		return failure(t.name, fmt.Sprintf("click mouse: %v", err))
	}
	return success(t.name, fmt.Sprintf("Clicked %s at (%d, %d)", button, x, y), map[string]any{
		"x": x, "y": y, "button": button,
	})
}

type typeText struct {
	base
	auto Automator
}

func (t *typeText) Execute(_ context.Context, params map[string]any) *models.ActionResult {
	text, err := stringParam(params, "text")
	if err != nil {
		return failure(t.name, err.Error())
	}
	if t.env.DryRun {
		return dryRunResult(t.name, fmt.Sprintf("type %d characters", len(text)))
	}
	if err := t.auto.TypeText(text); err != nil {
		return failure(t.name, fmt.Sprintf("type text: %v", err))
	}
	return success(t.name, fmt.Sprintf("Typed %d characters", len(text)), map[string]any{"length": len(text)})
}
