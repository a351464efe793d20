package sandbox

import (
	"regexp"
	"strings"
)

// guiFrameworks are the module identifiers whose presence marks a program
// as GUI. GUI programs skip the test and smoke gates.
var guiFrameworks = []string{
	"tkinter",
	"Tkinter",
	"PyQt5",
	"PyQt6",
	"PySide2",
	"PySide6",
	"pygame",
	"kivy",
	"wx",
}

var (
	importRe   = regexp.MustCompile(`(?m)^\s*(?:import|from)\s+([A-Za-z_][A-Za-z0-9_.]*)`)
	mainloopRe = regexp.MustCompile(`\.mainloop\(\)|\bapp\.run\(\)`)
	mainGateRe = regexp.MustCompile(`^if\s+__name__\s*==`)
)

// DetectGUI reports whether the program imports a known GUI framework.
func DetectGUI(code string) bool {
	for _, m := range importRe.FindAllStringSubmatch(code, -1) {
		root := strings.SplitN(m[1], ".", 2)[0]
		for _, fw := range guiFrameworks {
			if root == fw {
				return true
			}
		}
	}
	return false
}

// HasTopLevelMainloop reports whether the program calls a blocking GUI loop
// (mainloop() or app.run()) outside an `if __name__ == ...` gated block.
// Such programs would hang any automated execution and are rejected before
// running gates.
func HasTopLevelMainloop(code string) bool {
	inMainBlock := false
	for _, line := range strings.Split(code, "\n") {
		trimmed := strings.TrimLeft(line, " \t")
		indented := len(trimmed) < len(line)

		if mainGateRe.MatchString(trimmed) {
			inMainBlock = true
			continue
		}
		if inMainBlock {
			// The gated block ends at the next non-blank top-level line.
			if trimmed != "" && !indented {
				inMainBlock = false
			} else {
				continue
			}
		}
		if mainloopRe.MatchString(line) {
			return true
		}
	}
	return false
}

// AnalyzeInputCalls counts input() prompts so the caller can synthesize a
// stdin blob for the smoke gate.
func AnalyzeInputCalls(code string) int {
	count := 0
	for _, line := range strings.Split(code, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") {
			continue
		}
		count += strings.Count(trimmed, "input(")
	}
	return count
}
