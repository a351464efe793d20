// Package models defines the core data types for Spectral.
package models

import (
	"time"
)

// Well-known memory categories.
const (
	CategoryPreferences     = "preferences"
	CategoryTasks           = "tasks"
	CategoryConversations   = "conversations"
	CategoryExecutions      = "executions"
	CategoryKnowledgeChunks = "knowledge_chunks"
)

// MemoryEntry is the unit of persistent storage. Every module writes its
// durable state as entries; the value payload is an arbitrary JSON document.
type MemoryEntry struct {
	ID         string         `json:"id"`
	Category   string         `json:"category"`
	Key        string         `json:"key"`
	Value      map[string]any `json:"value"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id,omitempty"`
	Tags       []string       `json:"tags"`
	Timestamp  time.Time      `json:"timestamp"`
	Provenance Provenance     `json:"provenance"`
}

// Provenance records where an entry came from and when it was touched.
type Provenance struct {
	Module    string    `json:"module,omitempty"`
	TaskID    string    `json:"task_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MemoryQuery filters entries; zero-valued fields match everything.
type MemoryQuery struct {
	Category   string
	EntityType string
	EntityID   string
	Tags       []string
	Key        string
	Limit      int
}

// ConversationMemory is one user turn plus the assistant's full response.
type ConversationMemory struct {
	TurnID            string            `json:"turn_id"`
	Timestamp         time.Time         `json:"timestamp"`
	UserMessage       string            `json:"user_message"`
	AssistantResponse string            `json:"assistant_response"`
	ExecutionHistory  []ExecutionMemory `json:"execution_history,omitempty"`
	ContextTags       []string          `json:"context_tags,omitempty"`
	SessionID         string            `json:"session_id,omitempty"`
	Embedding         []float32         `json:"-"`
}

// ExecutionMemory records a completed execution so later turns can refer back
// to it ("delete that file"). Description is the semantic summary used for
// reference resolution.
type ExecutionMemory struct {
	ExecutionID     string    `json:"execution_id"`
	Timestamp       time.Time `json:"timestamp"`
	UserRequest     string    `json:"user_request"`
	Description     string    `json:"description"`
	CodeGenerated   string    `json:"code_generated,omitempty"`
	FileLocations   []string  `json:"file_locations,omitempty"`
	Output          string    `json:"output,omitempty"`
	Success         bool      `json:"success"`
	Tags            []string  `json:"tags,omitempty"`
	ExecutionTimeMs int64     `json:"execution_time_ms,omitempty"`
	ErrorMessage    string    `json:"error_message,omitempty"`
}
