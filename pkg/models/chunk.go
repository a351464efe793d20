package models

import (
	"time"
)

// MemoryType partitions knowledge chunks for retrieval filtering.
type MemoryType string

const (
	MemoryToolKnowledge  MemoryType = "tool_knowledge"
	MemoryTaskHistory    MemoryType = "task_history"
	MemoryUserPreference MemoryType = "user_preference"
)

// DocumentChunk is a sentence-boundary-aligned, overlapping slice of a source
// document indexed for lexical retrieval. ChunkIndex is unique within a
// source document.
type DocumentChunk struct {
	ChunkID    string         `json:"chunk_id"`
	Content    string         `json:"content"`
	ChunkIndex int            `json:"chunk_index"`
	SourceDoc  string         `json:"source_doc"`
	MemoryType MemoryType     `json:"memory_type"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// RetrievedChunk is a scored retrieval hit with a display snippet.
type RetrievedChunk struct {
	Chunk   DocumentChunk `json:"chunk"`
	Score   float64       `json:"score"`
	Snippet string        `json:"snippet"`
}
