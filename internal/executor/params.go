package executor

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var (
	unixPathRe    = regexp.MustCompile(`(?:~|/)[A-Za-z0-9._+-]+(?:/[A-Za-z0-9._+-]+)*/?`)
	windowsPathRe = regexp.MustCompile(`[A-Za-z]:\\[^\s'"]+`)
	quotedRe      = regexp.MustCompile(`'([^']*)'|"([^"]*)"`)
	coordsRe      = regexp.MustCompile(`\(?\s*(\d+)\s*,\s*(\d+)\s*\)?`)
	registryKeyRe = regexp.MustCompile(`HK[A-Z_]*\\[^\s'"]+`)
	appAfterVerb  = regexp.MustCompile(`(?i)\b(?:open|launch|start)\s+(?:the\s+)?([A-Za-z0-9._-]+)`)
)

// SynthesizeParams builds the adapter params for an action from the step
// description, filling gaps from prior step results in the execution
// context. Dispatcher overrides are applied by the caller afterwards.
func SynthesizeParams(actionType, description string, stepContext map[string]any) map[string]any {
	params := map[string]any{}
	paths := extractPaths(description)
	quoted := extractQuoted(description)

	switch actionType {
	case "file_create", "file_write":
		if p := firstOr(paths, contextPath(stepContext)); p != "" {
			params["path"] = p
		}
		if len(quoted) > 0 {
			params["content"] = quoted[len(quoted)-1]
		}
	case "file_read", "file_delete", "file_list", "dir_create", "dir_delete":
		if p := firstOr(paths, contextPath(stepContext)); p != "" {
			params["path"] = p
		}
	case "file_move", "file_copy":
		if len(paths) > 0 {
			params["source"] = paths[0]
		} else if p := contextPath(stepContext); p != "" {
			params["source"] = p
		}
		if len(paths) > 1 {
			params["destination"] = paths[1]
		}
	case "gui_move_mouse", "gui_click_mouse":
		if m := coordsRe.FindStringSubmatch(description); m != nil {
			x, _ := strconv.Atoi(m[1])
			y, _ := strconv.Atoi(m[2])
			params["x"] = x
			params["y"] = y
		}
		if actionType == "gui_click_mouse" {
			lower := strings.ToLower(description)
			for _, button := range []string{"right", "middle", "double"} {
				if strings.Contains(lower, button) {
					params["button"] = button
					break
				}
			}
		}
	case "typing_type_text":
		if len(quoted) > 0 {
			params["text"] = quoted[0]
		} else {
			params["text"] = description
		}
	case "powershell_execute", "cmd_execute":
		if len(quoted) > 0 {
			params["command"] = quoted[0]
		} else {
			params["command"] = description
		}
	case "subprocess_open_application":
		if m := appAfterVerb.FindStringSubmatch(description); m != nil {
			params["application"] = m[1]
		} else if len(quoted) > 0 {
			params["application"] = quoted[0]
		}
	case "registry_write_value", "registry_read_value", "registry_delete_value":
		if key := registryKeyRe.FindString(description); key != "" {
			params["key"] = key
		}
		if len(quoted) > 0 {
			params["name"] = quoted[0]
		}
		if len(quoted) > 1 {
			params["value"] = quoted[1]
		}
	case "ocr_extract_text":
		if p := firstOr(paths, contextPath(stepContext)); p != "" {
			params["image_path"] = p
		}
	}

	return params
}

// extractPaths returns path-like tokens in order of appearance.
func extractPaths(description string) []string {
	var paths []string
	for _, m := range windowsPathRe.FindAllString(description, -1) {
		paths = append(paths, m)
	}
	for _, m := range unixPathRe.FindAllString(description, -1) {
		paths = append(paths, strings.TrimSuffix(m, "."))
	}
	return paths
}

func extractQuoted(description string) []string {
	var out []string
	for _, m := range quotedRe.FindAllStringSubmatch(description, -1) {
		if m[1] != "" {
			out = append(out, m[1])
		} else if m[2] != "" {
			out = append(out, m[2])
		}
	}
	return out
}

// contextPath pulls a path from the most recent prior step result that
// carries one, so a step can target what the previous step produced.
func contextPath(stepContext map[string]any) string {
	if len(stepContext) == 0 {
		return ""
	}
	keys := make([]string, 0, len(stepContext))
	for k := range stepContext {
		if strings.HasPrefix(k, "step_") && strings.HasSuffix(k, "_result") {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for i := len(keys) - 1; i >= 0; i-- {
		data, ok := stepContext[keys[i]].(map[string]any)
		if !ok {
			continue
		}
		for _, field := range []string{"path", "destination", "source"} {
			if p, ok := data[field].(string); ok && p != "" {
				return p
			}
		}
	}
	return ""
}

func firstOr(paths []string, fallback string) string {
	if len(paths) > 0 {
		return paths[0]
	}
	return fallback
}
