// Package memory wraps the storage backend with semantic helpers and the
// conversation/execution specializations the pipeline records turns with.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spectralhq/spectral/internal/errs"
	"github.com/spectralhq/spectral/internal/storage"
	"github.com/spectralhq/spectral/pkg/models"
)

// Manager coordinates memory storage and retrieval. Safe for concurrent
// readers; writes are serialized by the backend.
type Manager struct {
	store  storage.Store
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
}

// NewManager creates a manager over the given backend.
func NewManager(store storage.Store) *Manager {
	return &Manager{
		store:  store,
		logger: slog.Default().With("component", "memory"),
	}
}

// CreateParams names the fields of a memory write.
type CreateParams struct {
	Category   string
	Key        string
	Value      map[string]any
	EntityType string
	EntityID   string
	Tags       []string
	Module     string
	TaskID     string
}

// CreateMemory stores a new entry and returns its id.
func (m *Manager) CreateMemory(ctx context.Context, p CreateParams) (string, error) {
	if err := m.guard(); err != nil {
		return "", err
	}
	entry := &models.MemoryEntry{
		ID:         uuid.New().String(),
		Category:   p.Category,
		Key:        p.Key,
		Value:      p.Value,
		EntityType: p.EntityType,
		EntityID:   p.EntityID,
		Tags:       p.Tags,
		Provenance: models.Provenance{
			Module: p.Module,
			TaskID: p.TaskID,
		},
	}
	if err := m.store.Create(ctx, entry); err != nil {
		return "", &errs.StorageError{Op: "create", Err: err}
	}
	return entry.ID, nil
}

// GetMemory returns an entry by id, or nil when absent.
func (m *Manager) GetMemory(ctx context.Context, id string) (*models.MemoryEntry, error) {
	if err := m.guard(); err != nil {
		return nil, err
	}
	entry, err := m.store.Read(ctx, id)
	if err == storage.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, &errs.StorageError{Op: "read", Err: err}
	}
	return entry, nil
}

// UpdateMemory mutates an entry through the single update path, which stamps
// the timestamp and provenance.
func (m *Manager) UpdateMemory(ctx context.Context, entry *models.MemoryEntry) error {
	if err := m.guard(); err != nil {
		return err
	}
	if err := m.store.Update(ctx, entry); err != nil {
		if err == storage.ErrNotFound {
			return err
		}
		return &errs.StorageError{Op: "update", Err: err}
	}
	return nil
}

// DeleteMemory removes an entry by id.
func (m *Manager) DeleteMemory(ctx context.Context, id string) error {
	if err := m.guard(); err != nil {
		return err
	}
	if err := m.store.Delete(ctx, id); err != nil {
		return &errs.StorageError{Op: "delete", Err: err}
	}
	return nil
}

// GetMemoriesByCategory returns entries in a category, newest first.
func (m *Manager) GetMemoriesByCategory(ctx context.Context, category string, limit int) ([]*models.MemoryEntry, error) {
	return m.query(ctx, models.MemoryQuery{Category: category, Limit: limit})
}

// GetMemoriesByEntity returns entries for an entity.
func (m *Manager) GetMemoriesByEntity(ctx context.Context, entityType, entityID string) ([]*models.MemoryEntry, error) {
	return m.query(ctx, models.MemoryQuery{EntityType: entityType, EntityID: entityID})
}

// GetMemoriesByTags returns entries carrying any of the given tags.
func (m *Manager) GetMemoriesByTags(ctx context.Context, tags []string) ([]*models.MemoryEntry, error) {
	return m.query(ctx, models.MemoryQuery{Tags: tags})
}

// GetMemoryByKey returns the first entry with the given key, or nil.
func (m *Manager) GetMemoryByKey(ctx context.Context, key string) (*models.MemoryEntry, error) {
	entries, err := m.query(ctx, models.MemoryQuery{Key: key, Limit: 1})
	if err != nil || len(entries) == 0 {
		return nil, err
	}
	return entries[0], nil
}

// PurgeCategory deletes every entry in a category and returns the count.
func (m *Manager) PurgeCategory(ctx context.Context, category string) (int, error) {
	entries, err := m.query(ctx, models.MemoryQuery{Category: category})
	if err != nil {
		return 0, err
	}
	for _, entry := range entries {
		if err := m.DeleteMemory(ctx, entry.ID); err != nil {
			return 0, err
		}
	}
	return len(entries), nil
}

// SaveConversationTurn persists a turn under the conversations category.
func (m *Manager) SaveConversationTurn(ctx context.Context, turn *models.ConversationMemory) error {
	if turn.TurnID == "" {
		turn.TurnID = uuid.New().String()
	}
	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now().UTC()
	}
	value, err := toDocument(turn)
	if err != nil {
		return err
	}
	_, err = m.CreateMemory(ctx, CreateParams{
		Category:   models.CategoryConversations,
		Key:        "turn_" + turn.TurnID,
		Value:      value,
		EntityType: "conversation",
		EntityID:   turn.TurnID,
		Tags:       turn.ContextTags,
		Module:     "assistant",
	})
	return err
}

// GetConversationHistory returns the most recent turns, newest first.
func (m *Manager) GetConversationHistory(ctx context.Context, limit int) ([]*models.ConversationMemory, error) {
	entries, err := m.query(ctx, models.MemoryQuery{Category: models.CategoryConversations, Limit: limit})
	if err != nil {
		return nil, err
	}
	turns := make([]*models.ConversationMemory, 0, len(entries))
	for _, entry := range entries {
		var turn models.ConversationMemory
		if err := fromDocument(entry.Value, &turn); err != nil {
			m.logger.Warn("skipping undecodable conversation entry", "id", entry.ID, "error", err)
			continue
		}
		turns = append(turns, &turn)
	}
	return turns, nil
}

// SaveExecution persists an execution record linked to the conversation turn
// that produced it.
func (m *Manager) SaveExecution(ctx context.Context, exec *models.ExecutionMemory, turnID string) error {
	if exec.ExecutionID == "" {
		exec.ExecutionID = uuid.New().String()
	}
	if exec.Timestamp.IsZero() {
		exec.Timestamp = time.Now().UTC()
	}
	value, err := toDocument(exec)
	if err != nil {
		return err
	}
	value["turn_id"] = turnID
	_, err = m.CreateMemory(ctx, CreateParams{
		Category:   models.CategoryExecutions,
		Key:        "execution_" + exec.ExecutionID,
		Value:      value,
		EntityType: "execution",
		EntityID:   turnID,
		Tags:       exec.Tags,
		Module:     "executor",
		TaskID:     exec.ExecutionID,
	})
	return err
}

// SearchByDescription returns executions whose description or request shares
// words with the query, best match first.
func (m *Manager) SearchByDescription(ctx context.Context, query string, limit int) ([]*models.ExecutionMemory, error) {
	execs, err := m.allExecutions(ctx)
	if err != nil {
		return nil, err
	}
	return rankExecutions(execs, query, limit), nil
}

// GetExecutionsByTag returns executions carrying the tag.
func (m *Manager) GetExecutionsByTag(ctx context.Context, tag string) ([]*models.ExecutionMemory, error) {
	entries, err := m.query(ctx, models.MemoryQuery{Category: models.CategoryExecutions, Tags: []string{tag}})
	if err != nil {
		return nil, err
	}
	return decodeExecutions(entries, m.logger), nil
}

// GetFileLocations returns the file paths recorded by the execution best
// matching the description, or nil when nothing matches.
func (m *Manager) GetFileLocations(ctx context.Context, description string) ([]string, error) {
	matches, err := m.SearchByDescription(ctx, description, 1)
	if err != nil || len(matches) == 0 {
		return nil, err
	}
	return matches[0].FileLocations, nil
}

// GetRecentContext renders the last numTurns turns as a transcript for
// prompt injection. Oldest first so the prompt reads chronologically.
func (m *Manager) GetRecentContext(ctx context.Context, numTurns int) (string, error) {
	turns, err := m.GetConversationHistory(ctx, numTurns)
	if err != nil {
		return "", err
	}
	if len(turns) == 0 {
		return "", nil
	}
	var b strings.Builder
	for i := len(turns) - 1; i >= 0; i-- {
		turn := turns[i]
		fmt.Fprintf(&b, "User: %s\n", turn.UserMessage)
		fmt.Fprintf(&b, "Assistant: %s\n", turn.AssistantResponse)
		for _, exec := range turn.ExecutionHistory {
			status := "failed"
			if exec.Success {
				status = "succeeded"
			}
			fmt.Fprintf(&b, "  [execution %s: %s]\n", status, exec.Description)
		}
	}
	return b.String(), nil
}

// Close shuts the manager down; subsequent operations fail with ErrShutdown.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	return m.store.Close()
}

func (m *Manager) guard() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return errs.ErrShutdown
	}
	return nil
}

func (m *Manager) query(ctx context.Context, q models.MemoryQuery) ([]*models.MemoryEntry, error) {
	if err := m.guard(); err != nil {
		return nil, err
	}
	entries, err := m.store.Query(ctx, q)
	if err != nil {
		return nil, &errs.StorageError{Op: "query", Err: err}
	}
	return entries, nil
}

func (m *Manager) allExecutions(ctx context.Context) ([]*models.ExecutionMemory, error) {
	entries, err := m.query(ctx, models.MemoryQuery{Category: models.CategoryExecutions})
	if err != nil {
		return nil, err
	}
	return decodeExecutions(entries, m.logger), nil
}

func decodeExecutions(entries []*models.MemoryEntry, logger *slog.Logger) []*models.ExecutionMemory {
	execs := make([]*models.ExecutionMemory, 0, len(entries))
	for _, entry := range entries {
		var exec models.ExecutionMemory
		if err := fromDocument(entry.Value, &exec); err != nil {
			logger.Warn("skipping undecodable execution entry", "id", entry.ID, "error", err)
			continue
		}
		execs = append(execs, &exec)
	}
	return execs
}

func toDocument(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return doc, nil
}

func fromDocument(doc map[string]any, v any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
