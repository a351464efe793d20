package assistant

import "testing"

func TestClassifyIntent(t *testing.T) {
	tests := []struct {
		input string
		want  Intent
	}{
		{"hello there", IntentChat},
		{"how are you today", IntentChat},
		{"what is the capital of France?", IntentChat},
		{"create a folder called projects", IntentAction},
		{"delete the old report", IntentAction},
		{"open notepad and type hello", IntentAction},
		{"write a program that prints primes", IntentCodegen},
		{"create a calculator app", IntentCodegen},
		{"make a game of snake in python", IntentCodegen},
		{"please write me a python script to rename photos", IntentCodegen},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ClassifyIntent(tt.input); got != tt.want {
				t.Errorf("ClassifyIntent(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseRetryDirective(t *testing.T) {
	tests := []struct {
		input string
		want  int
		found bool
	}{
		{"create the file, retry up to 5 times", 5, true},
		{"retry 3 times if it fails", 3, true},
		{"at most 4 attempts please", 3, true},
		{"maximum of 2 attempts", 1, true},
		{"up to 6 attempts", 5, true},
		{"just create the file", 0, false},
		{"the 3 times table", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, found := ParseRetryDirective(tt.input)
			if found != tt.found || got != tt.want {
				t.Errorf("ParseRetryDirective(%q) = %d, %v, want %d, %v", tt.input, got, found, tt.want, tt.found)
			}
		})
	}
}

func TestReferencesEarlierWork(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"delete that file", true},
		{"move the file you created to the desktop", true},
		{"open the same file again", true},
		{"delete /tmp/report.txt", false},
		{"create a new folder", false},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ReferencesEarlierWork(tt.input); got != tt.want {
				t.Errorf("ReferencesEarlierWork(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
