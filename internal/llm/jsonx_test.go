package llm

import (
	"encoding/json"
	"testing"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "plain object",
			raw:  `{"steps": []}`,
			want: `{"steps": []}`,
		},
		{
			name: "fenced with language tag",
			raw:  "Here is the plan:\n```json\n{\"steps\": [1]}\n```\nDone.",
			want: `{"steps": [1]}`,
		},
		{
			name: "surrounded by prose",
			raw:  `Sure! {"a": 1} hope that helps`,
			want: `{"a": 1}`,
		},
		{
			name: "trailing comma",
			raw:  `{"a": 1, "b": [2, 3,],}`,
			want: `{"a": 1, "b": [2, 3]}`,
		},
		{
			name: "single quotes",
			raw:  `{'name': 'report', 'done': true}`,
			want: `{"name": "report", "done": true}`,
		},
		{
			name: "smart quotes",
			raw:  "{“a”: “b”}",
			want: `{"a": "b"}`,
		},
		{
			name: "unclosed braces",
			raw:  `{"a": {"b": [1, 2`,
			want: `{"a": {"b": [1, 2]}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.raw)
			if err != nil {
				t.Fatalf("ExtractJSON(%q) error: %v", tt.raw, err)
			}
			if got != tt.want {
				t.Errorf("ExtractJSON(%q) = %q, want %q", tt.raw, got, tt.want)
			}
			if !json.Valid([]byte(got)) {
				t.Errorf("ExtractJSON(%q) produced invalid JSON %q", tt.raw, got)
			}
		})
	}
}

func TestExtractJSONErrors(t *testing.T) {
	for _, raw := range []string{"", "no json here", "just words and numbers 42"} {
		if got, err := ExtractJSON(raw); err == nil {
			t.Errorf("ExtractJSON(%q) = %q, want error", raw, got)
		}
	}
}

func TestRepairIdempotent(t *testing.T) {
	inputs := []string{
		`{'a': 'b',}`,
		`{"a": [1, 2,`,
		"{“key”: “value”}",
		`{"nested": {"ok": true}}`,
	}
	for _, in := range inputs {
		once := Repair(in)
		twice := Repair(once)
		if once != twice {
			t.Errorf("Repair not idempotent for %q: first %q, second %q", in, once, twice)
		}
	}
}

func TestSliceOutermostPrefersFirstValue(t *testing.T) {
	got := sliceOutermost(`text [1, 2] {"a": 1}`)
	if got != "[1, 2]" {
		t.Errorf("sliceOutermost() = %q, want %q", got, "[1, 2]")
	}
}
