package llm

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/spectralhq/spectral/internal/errs"
)

var (
	fenceRe         = regexp.MustCompile("(?s)```[a-zA-Z0-9]*\n?(.*?)```")
	trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)
)

// ExtractJSON pulls the first JSON object or array out of raw model output,
// stripping markdown fences and repairing the usual generation defects:
// smart quotes, single-quoted strings, trailing commas, unclosed brackets.
func ExtractJSON(raw string) (string, error) {
	candidate := sliceOutermost(stripFences(raw))
	if candidate == "" {
		return "", errs.Validationf("no JSON object or array in reply")
	}
	if json.Valid([]byte(candidate)) {
		return candidate, nil
	}
	repaired := Repair(candidate)
	if json.Valid([]byte(repaired)) {
		return repaired, nil
	}
	return "", errs.Validationf("reply contains malformed JSON that repair could not fix")
}

// Repair applies the defect fixes in order. Applying Repair to its own
// output returns the same string.
func Repair(s string) string {
	s = normalizeQuotes(s)
	s = singleToDouble(s)
	s = trailingCommaRe.ReplaceAllString(s, "$1")
	s = balanceBrackets(s)
	return s
}

// stripFences unwraps ```json ... ``` blocks, keeping their inner text.
func stripFences(s string) string {
	if !strings.Contains(s, "```") {
		return s
	}
	if m := fenceRe.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return strings.ReplaceAll(s, "```", "")
}

// sliceOutermost returns the substring from the first { or [ through its
// matching close bracket. An unterminated body runs to the end of input so
// Repair can close it.
func sliceOutermost(s string) string {
	start := -1
	var open, close rune
	for i, r := range s {
		if r == '{' || r == '[' {
			start = i
			open = r
			close = '}'
			if r == '[' {
				close = ']'
			}
			break
		}
	}
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i, r := range s[start:] {
		if escaped {
			escaped = false
			continue
		}
		switch {
		case r == '\\' && inString:
			escaped = true
		case r == '"':
			inString = !inString
		case inString:
		case r == open:
			depth++
		case r == close:
			depth--
			if depth == 0 {
				return s[start : start+i+1]
			}
		}
	}
	return s[start:]
}

// normalizeQuotes replaces typographic quotes with ASCII ones.
func normalizeQuotes(s string) string {
	return strings.NewReplacer(
		"“", `"`,
		"”", `"`,
		"‘", "'",
		"’", "'",
	).Replace(s)
}

// singleToDouble converts single-quoted strings to double-quoted ones,
// escaping any embedded double quotes. Apostrophes inside double-quoted
// strings are left alone.
func singleToDouble(s string) string {
	var out strings.Builder
	out.Grow(len(s))
	inDouble := false
	inSingle := false
	escaped := false
	for _, r := range s {
		if escaped {
			out.WriteRune(r)
			escaped = false
			continue
		}
		switch r {
		case '\\':
			out.WriteRune(r)
			escaped = true
		case '"':
			if inSingle {
				out.WriteString(`\"`)
			} else {
				inDouble = !inDouble
				out.WriteRune(r)
			}
		case '\'':
			if inDouble {
				out.WriteRune(r)
			} else {
				inSingle = !inSingle
				out.WriteRune('"')
			}
		default:
			out.WriteRune(r)
		}
	}
	return out.String()
}

// balanceBrackets appends closers for any brackets left open outside
// strings.
func balanceBrackets(s string) string {
	var stack []rune
	inString := false
	escaped := false
	for _, r := range s {
		if escaped {
			escaped = false
			continue
		}
		switch {
		case r == '\\' && inString:
			escaped = true
		case r == '"':
			inString = !inString
		case inString:
		case r == '{' || r == '[':
			stack = append(stack, r)
		case r == '}' || r == ']':
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}
	if len(stack) == 0 {
		return s
	}
	var out strings.Builder
	out.WriteString(s)
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == '{' {
			out.WriteRune('}')
		} else {
			out.WriteRune(']')
		}
	}
	return out.String()
}
