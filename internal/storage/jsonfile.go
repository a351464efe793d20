package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spectralhq/spectral/pkg/models"
)

// JSONFileStore keeps every entry in a single JSON document. Intended for
// small deployments and tests; the whole document is rewritten on each write
// via an atomic rename.
type JSONFileStore struct {
	mu      sync.RWMutex
	path    string
	entries map[string]*models.MemoryEntry
	closed  bool
}

type jsonDocument struct {
	Version int                            `json:"version"`
	Entries map[string]*models.MemoryEntry `json:"entries"`
}

// OpenJSONFile loads (or creates) the document store at path. An empty path
// keeps everything in memory.
func OpenJSONFile(path string) (*JSONFileStore, error) {
	s := &JSONFileStore{
		path:    path,
		entries: make(map[string]*models.MemoryEntry),
	}
	if path == "" {
		return s, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read store: %w", err)
	}
	var doc jsonDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode store %s: %w", path, err)
	}
	if doc.Entries != nil {
		s.entries = doc.Entries
	}
	return s, nil
}

// Create inserts a new entry.
func (s *JSONFileStore) Create(ctx context.Context, entry *models.MemoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	prepareForCreate(entry)
	if _, exists := s.entries[entry.ID]; exists {
		return fmt.Errorf("duplicate entry id %s", entry.ID)
	}
	s.entries[entry.ID] = cloneEntry(entry)
	return s.persistLocked()
}

// Read returns the entry with the given id, or ErrNotFound.
func (s *JSONFileStore) Read(ctx context.Context, id string) (*models.MemoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	entry, ok := s.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneEntry(entry), nil
}

// Update rewrites an existing entry, stamping updated_at.
func (s *JSONFileStore) Update(ctx context.Context, entry *models.MemoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if _, ok := s.entries[entry.ID]; !ok {
		return ErrNotFound
	}
	entry.Provenance.UpdatedAt = time.Now().UTC()
	entry.Timestamp = entry.Provenance.UpdatedAt
	s.entries[entry.ID] = cloneEntry(entry)
	return s.persistLocked()
}

// Delete removes an entry by id. Deleting a missing id is not an error.
func (s *JSONFileStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	delete(s.entries, id)
	return s.persistLocked()
}

// ListAll returns every entry, newest first.
func (s *JSONFileStore) ListAll(ctx context.Context) ([]*models.MemoryEntry, error) {
	return s.Query(ctx, models.MemoryQuery{})
}

// Query returns entries matching all set fields of q, newest first.
func (s *JSONFileStore) Query(ctx context.Context, q models.MemoryQuery) ([]*models.MemoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	var out []*models.MemoryEntry
	for _, entry := range s.entries {
		if matchesQuery(entry, q) {
			out = append(out, cloneEntry(entry))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// Close flushes and marks the store closed.
func (s *JSONFileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	err := s.persistLocked()
	s.closed = true
	return err
}

func (s *JSONFileStore) persistLocked() error {
	if s.path == "" {
		return nil
	}
	doc := jsonDocument{Version: 1, Entries: s.entries}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode store: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}
	tmp := s.path + ".tmp." + uuid.NewString()[:8]
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write store: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace store: %w", err)
	}
	return nil
}

func cloneEntry(entry *models.MemoryEntry) *models.MemoryEntry {
	clone := *entry
	if entry.Value != nil {
		clone.Value = make(map[string]any, len(entry.Value))
		for k, v := range entry.Value {
			clone.Value[k] = v
		}
	}
	clone.Tags = append([]string(nil), entry.Tags...)
	return &clone
}
