package rag

import (
	"strings"
	"testing"
)

func TestSplitTextEmpty(t *testing.T) {
	if got := SplitText("   \n\t ", DefaultChunkerConfig()); got != nil {
		t.Errorf("SplitText(whitespace) = %v, want nil", got)
	}
}

func TestSplitTextShortDocument(t *testing.T) {
	content := "A single short document."
	got := SplitText(content, DefaultChunkerConfig())
	if len(got) != 1 || got[0] != content {
		t.Errorf("SplitText = %v, want one chunk equal to input", got)
	}
}

func TestSplitTextOverlap(t *testing.T) {
	content := strings.Repeat("abcdefghij", 30)
	cfg := ChunkerConfig{ChunkSize: 100, ChunkOverlap: 20}
	chunks := SplitText(content, cfg)
	if len(chunks) < 3 {
		t.Fatalf("chunks = %d, want at least 3", len(chunks))
	}
	// Without sentence terminators each window is exactly ChunkSize wide and
	// consecutive chunks share the overlap region.
	if len(chunks[0]) != 100 {
		t.Errorf("first chunk length = %d, want 100", len(chunks[0]))
	}
	tail := chunks[0][len(chunks[0])-20:]
	if !strings.HasPrefix(chunks[1], tail) {
		t.Errorf("second chunk does not start with the first chunk's overlap tail")
	}
}

func TestSplitTextExtendsToSentence(t *testing.T) {
	content := strings.Repeat("x", 95) + " end of sentence. " + strings.Repeat("y", 200)
	cfg := ChunkerConfig{ChunkSize: 100, ChunkOverlap: 0}
	chunks := SplitText(content, cfg)
	if len(chunks) < 2 {
		t.Fatalf("chunks = %d, want at least 2", len(chunks))
	}
	if !strings.HasSuffix(chunks[0], "end of sentence.") {
		t.Errorf("first chunk = %q, want it to end at the sentence terminator", chunks[0])
	}
}

func TestSplitTextInvalidOverlapIgnored(t *testing.T) {
	content := strings.Repeat("z", 250)
	cfg := ChunkerConfig{ChunkSize: 100, ChunkOverlap: 100}
	chunks := SplitText(content, cfg)
	if len(chunks) != 3 {
		t.Errorf("chunks = %d, want 3 with overlap dropped", len(chunks))
	}
}
