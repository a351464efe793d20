package assistant

import (
	"regexp"
	"strconv"
	"strings"
)

// Intent is the coarse routing decision for a user turn.
type Intent string

const (
	// IntentChat short-circuits to a conversational reply.
	IntentChat Intent = "chat"
	// IntentAction routes through the plan pipeline.
	IntentAction Intent = "action"
	// IntentCodegen routes through the sandbox code path.
	IntentCodegen Intent = "codegen"
)

var codegenMarkers = []string{
	"write a program",
	"write a script",
	"write code",
	"write me a",
	"generate code",
	"generate a program",
	"code a",
	"python program",
	"python script",
	"build a game",
	"build an app",
	"make a game",
	"make an app",
	"create a program",
	"create a script",
	"create a game",
	"create an app",
	"create a calculator",
}

var actionVerbs = []string{
	"create", "make", "delete", "remove", "move", "copy", "rename",
	"open", "launch", "start", "close", "list", "show", "read",
	"click", "type", "run", "execute", "kill", "install",
}

var chatMarkers = []string{
	"hello", "hi", "hey", "thanks", "thank you", "how are you",
	"who are you", "what can you do", "good morning", "good evening",
}

// ClassifyIntent decides how to handle the request. Code generation wins
// over action verbs because codegen requests usually contain them ("create
// a program"); pure pleasantries short-circuit to chat.
func ClassifyIntent(input string) Intent {
	lower := strings.ToLower(strings.TrimSpace(input))
	for _, m := range codegenMarkers {
		if strings.Contains(lower, m) {
			return IntentCodegen
		}
	}
	for _, v := range actionVerbs {
		if containsWord(lower, v) {
			return IntentAction
		}
	}
	for _, m := range chatMarkers {
		if strings.Contains(lower, m) {
			return IntentChat
		}
	}
	if strings.HasSuffix(lower, "?") {
		return IntentChat
	}
	return IntentAction
}

func containsWord(text, word string) bool {
	idx := 0
	for {
		i := strings.Index(text[idx:], word)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(word)
		leftOK := start == 0 || !isWordChar(text[start-1])
		rightOK := end == len(text) || !isWordChar(text[end])
		if leftOK && rightOK {
			return true
		}
		idx = start + 1
	}
}

func isWordChar(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9' || b == '_'
}

var retryDirectiveRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bretry\s+(?:up\s+to\s+)?(\d+)\s+times?\b`),
	regexp.MustCompile(`(?i)\bup\s+to\s+(\d+)\s+(?:retries|tries)\b`),
}

var attemptDirectiveRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bat\s+most\s+(\d+)\s+attempts?\b`),
	regexp.MustCompile(`(?i)\bmaximum\s+(?:of\s+)?(\d+)\s+attempts?\b`),
	regexp.MustCompile(`(?i)\bup\s+to\s+(\d+)\s+attempts?\b`),
}

// ParseRetryDirective extracts an explicit retry budget from the request.
// "retry up to N times" means N retries; "at most N attempts" means N total
// attempts, so N-1 retries.
func ParseRetryDirective(input string) (int, bool) {
	for _, re := range retryDirectiveRes {
		if m := re.FindStringSubmatch(input); m != nil {
			n, err := strconv.Atoi(m[1])
			if err == nil && n >= 0 {
				return n, true
			}
		}
	}
	for _, re := range attemptDirectiveRes {
		if m := re.FindStringSubmatch(input); m != nil {
			n, err := strconv.Atoi(m[1])
			if err == nil && n >= 1 {
				return n - 1, true
			}
		}
	}
	return 0, false
}

// ReferencesEarlierWork reports whether the request points back at a prior
// execution ("delete that file") rather than naming its target outright.
func ReferencesEarlierWork(input string) bool {
	lower := strings.ToLower(input)
	if strings.Contains(lower, "that file") ||
		strings.Contains(lower, "that folder") ||
		strings.Contains(lower, "that directory") ||
		strings.Contains(lower, "that program") ||
		strings.Contains(lower, "the same file") ||
		strings.Contains(lower, "the last file") ||
		strings.Contains(lower, "the previous file") ||
		strings.Contains(lower, "you created") ||
		strings.Contains(lower, "you made") ||
		strings.Contains(lower, "you generated") {
		return true
	}
	return false
}
