// Package rag provides chunking, ingestion and lexical retrieval over the
// memory module, plus prompt enrichment for the planner and code generator.
package rag

import (
	"strings"
)

// sentenceLookahead bounds how far past the target window the chunker will
// scan for a sentence terminator.
const sentenceLookahead = 100

// ChunkerConfig controls document splitting.
type ChunkerConfig struct {
	// ChunkSize is the target chunk length in characters.
	ChunkSize int
	// ChunkOverlap is how many characters consecutive chunks share.
	ChunkOverlap int
}

// DefaultChunkerConfig returns the standard splitting parameters.
func DefaultChunkerConfig() ChunkerConfig {
	return ChunkerConfig{ChunkSize: 500, ChunkOverlap: 50}
}

// SplitText produces overlapping chunks of roughly ChunkSize characters with
// stride ChunkSize-ChunkOverlap. Each window end is extended to the nearest
// sentence terminator within a bounded look-ahead so chunks break on
// sentences when possible. Empty content yields no chunks.
func SplitText(content string, cfg ChunkerConfig) []string {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}
	size := cfg.ChunkSize
	if size <= 0 {
		size = DefaultChunkerConfig().ChunkSize
	}
	overlap := cfg.ChunkOverlap
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	stride := size - overlap

	var chunks []string
	for start := 0; start < len(content); start += stride {
		end := start + size
		if end >= len(content) {
			chunks = append(chunks, strings.TrimSpace(content[start:]))
			break
		}
		end = extendToSentence(content, end)
		chunk := strings.TrimSpace(content[start:end])
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end >= len(content) {
			break
		}
	}
	return chunks
}

// extendToSentence moves end forward to just past the nearest sentence
// terminator, scanning at most sentenceLookahead characters. Falls back to
// the raw window when none is found.
func extendToSentence(content string, end int) int {
	limit := end + sentenceLookahead
	if limit > len(content) {
		limit = len(content)
	}
	for i := end; i < limit; i++ {
		switch content[i] {
		case '.', '!', '?':
			return i + 1
		case '\n':
			// Paragraph break counts as a boundary.
			if i+1 < limit && content[i+1] == '\n' {
				return i + 1
			}
		}
	}
	return end
}
