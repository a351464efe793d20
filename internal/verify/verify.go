// Package verify confirms an action's real-world side effects after the
// adapter reports success: file present, registry value set, pointer at the
// requested coordinate.
package verify

import (
	"fmt"
	"os"

	"github.com/spectralhq/spectral/internal/tools"
	"github.com/spectralhq/spectral/pkg/models"
)

// pointerTolerancePx is how far the observed pointer may sit from the
// requested coordinate and still verify. Pointer checks are advisory; the
// cursor can move between action and check.
const pointerTolerancePx = 5

// Verifier dispatches side-effect checks by action type.
type Verifier struct {
	keys    tools.KeyStore
	pointer tools.Automator
}

// New creates a verifier. keys and pointer may be nil; the corresponding
// checks are then reported as skipped.
func New(keys tools.KeyStore, pointer tools.Automator) *Verifier {
	return &Verifier{keys: keys, pointer: pointer}
}

// Verify checks that the action's intended side effect is observable.
// Actions without a rule verify trivially.
func (v *Verifier) Verify(actionType string, resultData, actionParams map[string]any) models.VerificationResult {
	switch actionType {
	case "file_create":
		return v.verifyFileCreate(actionType, resultData, actionParams)
	case "dir_create":
		return v.verifyDirCreate(actionType, resultData, actionParams)
	case "file_delete", "dir_delete":
		return v.verifyAbsent(actionType, resultData, actionParams)
	case "file_move":
		return v.verifyMove(actionType, resultData, actionParams)
	case "file_copy":
		return v.verifyCopy(actionType, resultData, actionParams)
	case "registry_write_value":
		return v.verifyRegistryWrite(actionType, actionParams)
	case "registry_delete_value":
		return v.verifyRegistryDelete(actionType, actionParams)
	case "gui_move_mouse", "gui_click_mouse":
		return v.verifyPointer(actionType, actionParams)
	default:
		return models.VerificationResult{
			Verified:   true,
			ActionType: actionType,
			Message:    "verification not applicable",
			Skipped:    true,
		}
	}
}

func (v *Verifier) verifyFileCreate(actionType string, data, params map[string]any) models.VerificationResult {
	path := pathParam(data, params, "path")
	if path == "" {
		return failMsg(actionType, "no path to verify")
	}
	info, err := os.Stat(path)
	if err != nil {
		return failMsg(actionType, fmt.Sprintf("file %s does not exist", path))
	}
	if info.IsDir() {
		return failMsg(actionType, fmt.Sprintf("%s is a directory, expected a file", path))
	}
	return models.VerificationResult{
		Verified:   true,
		ActionType: actionType,
		Message:    fmt.Sprintf("file %s exists (%d bytes)", path, info.Size()),
		Details:    map[string]any{"path": path, "size": info.Size()},
	}
}

func (v *Verifier) verifyDirCreate(actionType string, data, params map[string]any) models.VerificationResult {
	path := pathParam(data, params, "path")
	if path == "" {
		return failMsg(actionType, "no path to verify")
	}
	info, err := os.Stat(path)
	if err != nil {
		return failMsg(actionType, fmt.Sprintf("directory %s does not exist", path))
	}
	if !info.IsDir() {
		return failMsg(actionType, fmt.Sprintf("%s is not a directory", path))
	}
	return models.VerificationResult{
		Verified:   true,
		ActionType: actionType,
		Message:    fmt.Sprintf("directory %s exists", path),
		Details:    map[string]any{"path": path},
	}
}

func (v *Verifier) verifyAbsent(actionType string, data, params map[string]any) models.VerificationResult {
	path := pathParam(data, params, "path")
	if path == "" {
		return failMsg(actionType, "no path to verify")
	}
	if _, err := os.Stat(path); err == nil {
		return failMsg(actionType, fmt.Sprintf("%s still exists", path))
	}
	return models.VerificationResult{
		Verified:   true,
		ActionType: actionType,
		Message:    fmt.Sprintf("%s is gone", path),
		Details:    map[string]any{"path": path},
	}
}

func (v *Verifier) verifyMove(actionType string, data, params map[string]any) models.VerificationResult {
	src := pathParam(data, params, "source")
	dst := pathParam(data, params, "destination")
	if src == "" || dst == "" {
		return failMsg(actionType, "no source/destination to verify")
	}
	if _, err := os.Stat(src); err == nil {
		return failMsg(actionType, fmt.Sprintf("source %s still exists", src))
	}
	if _, err := os.Stat(dst); err != nil {
		return failMsg(actionType, fmt.Sprintf("destination %s does not exist", dst))
	}
	return models.VerificationResult{
		Verified:   true,
		ActionType: actionType,
		Message:    fmt.Sprintf("moved %s to %s", src, dst),
		Details:    map[string]any{"source": src, "destination": dst},
	}
}

func (v *Verifier) verifyCopy(actionType string, data, params map[string]any) models.VerificationResult {
	src := pathParam(data, params, "source")
	dst := pathParam(data, params, "destination")
	if src == "" || dst == "" {
		return failMsg(actionType, "no source/destination to verify")
	}
	if _, err := os.Stat(src); err != nil {
		return failMsg(actionType, fmt.Sprintf("source %s does not exist", src))
	}
	if _, err := os.Stat(dst); err != nil {
		return failMsg(actionType, fmt.Sprintf("destination %s does not exist", dst))
	}
	return models.VerificationResult{
		Verified:   true,
		ActionType: actionType,
		Message:    fmt.Sprintf("both %s and %s exist", src, dst),
		Details:    map[string]any{"source": src, "destination": dst},
	}
}

func (v *Verifier) verifyRegistryWrite(actionType string, params map[string]any) models.VerificationResult {
	if v.keys == nil {
		return skipped(actionType, "registry verification unavailable on this platform")
	}
	key, _ := params["key"].(string)
	name, _ := params["name"].(string)
	value, ok, err := v.keys.ReadValue(key, name)
	if err != nil {
		return models.VerificationResult{ActionType: actionType, Error: err.Error()}
	}
	if !ok {
		return failMsg(actionType, fmt.Sprintf("registry value %s\\%s does not exist", key, name))
	}
	if expected, has := params["value"].(string); has && expected != "" && value != expected {
		return failMsg(actionType, fmt.Sprintf("registry value %s\\%s is %q, expected %q", key, name, value, expected))
	}
	return models.VerificationResult{
		Verified:   true,
		ActionType: actionType,
		Message:    fmt.Sprintf("registry value %s\\%s set", key, name),
	}
}

func (v *Verifier) verifyRegistryDelete(actionType string, params map[string]any) models.VerificationResult {
	if v.keys == nil {
		return skipped(actionType, "registry verification unavailable on this platform")
	}
	key, _ := params["key"].(string)
	name, _ := params["name"].(string)
	_, ok, err := v.keys.ReadValue(key, name)
	if err != nil {
		return models.VerificationResult{ActionType: actionType, Error: err.Error()}
	}
	if ok {
		return failMsg(actionType, fmt.Sprintf("registry value %s\\%s still exists", key, name))
	}
	return models.VerificationResult{
		Verified:   true,
		ActionType: actionType,
		Message:    fmt.Sprintf("registry value %s\\%s absent", key, name),
	}
}

func (v *Verifier) verifyPointer(actionType string, params map[string]any) models.VerificationResult {
	if v.pointer == nil {
		return skipped(actionType, "pointer position unavailable")
	}
	wantX, okX := intParam(params, "x")
	wantY, okY := intParam(params, "y")
	if !okX || !okY {
		return skipped(actionType, "no target coordinate to verify")
	}
	gotX, gotY, ok := v.pointer.PointerPosition()
	if !ok {
		return skipped(actionType, "pointer position unavailable")
	}
	dx, dy := abs(gotX-wantX), abs(gotY-wantY)
	if dx > pointerTolerancePx || dy > pointerTolerancePx {
		return models.VerificationResult{
			ActionType: actionType,
			Error:      fmt.Sprintf("pointer at (%d, %d), expected within %dpx of (%d, %d)", gotX, gotY, pointerTolerancePx, wantX, wantY),
			Advisory:   true,
		}
	}
	return models.VerificationResult{
		Verified:   true,
		ActionType: actionType,
		Message:    fmt.Sprintf("pointer at (%d, %d)", gotX, gotY),
		Advisory:   true,
	}
}

func pathParam(data, params map[string]any, key string) string {
	if s, ok := params[key].(string); ok && s != "" {
		return s
	}
	if data != nil {
		if s, ok := data[key].(string); ok {
			return s
		}
	}
	return ""
}

func intParam(params map[string]any, key string) (int, bool) {
	switch v := params[key].(type) {
	case int:
		return v, true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func failMsg(actionType, msg string) models.VerificationResult {
	return models.VerificationResult{ActionType: actionType, Error: msg}
}

func skipped(actionType, msg string) models.VerificationResult {
	return models.VerificationResult{
		Verified:   true,
		ActionType: actionType,
		Message:    msg,
		Skipped:    true,
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
