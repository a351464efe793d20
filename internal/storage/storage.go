// Package storage provides the persistent keyed store for memory entries.
// Two backends ship: a sqlite row store with indexed columns and a
// single-document JSON file store for small deployments. Both support
// concurrent readers with single-writer consistency.
package storage

import (
	"context"
	"errors"

	"github.com/spectralhq/spectral/pkg/models"
)

var (
	// ErrNotFound is returned when an entry id does not exist.
	ErrNotFound = errors.New("entry not found")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("storage is closed")
)

// Store is the abstract keyed store over memory entries.
type Store interface {
	Create(ctx context.Context, entry *models.MemoryEntry) error
	Read(ctx context.Context, id string) (*models.MemoryEntry, error)
	Update(ctx context.Context, entry *models.MemoryEntry) error
	Delete(ctx context.Context, id string) error
	ListAll(ctx context.Context) ([]*models.MemoryEntry, error)
	Query(ctx context.Context, q models.MemoryQuery) ([]*models.MemoryEntry, error)
	Close() error
}

// matchesQuery implements the filter semantics shared by both backends:
// all set fields must match; tags match when any requested tag is present.
func matchesQuery(entry *models.MemoryEntry, q models.MemoryQuery) bool {
	if q.Category != "" && entry.Category != q.Category {
		return false
	}
	if q.EntityType != "" && entry.EntityType != q.EntityType {
		return false
	}
	if q.EntityID != "" && entry.EntityID != q.EntityID {
		return false
	}
	if q.Key != "" && entry.Key != q.Key {
		return false
	}
	if len(q.Tags) > 0 {
		found := false
		for _, want := range q.Tags {
			for _, have := range entry.Tags {
				if want == have {
					found = true
					break
				}
			}
			if found {
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
