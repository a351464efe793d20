// Package archive exports generated programs to a browsable directory
// layout: <root>/<date>/<request-id>/attempt_<k>/, with a FINAL copy for
// the successful attempt and a MANIFEST.json index at the root.
package archive

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const manifestFile = "MANIFEST.json"

// Sink writes attempts and finals under its root.
type Sink struct {
	root   string
	logger *slog.Logger
	mu     sync.Mutex
}

// ManifestEntry is one request in the root index.
type ManifestEntry struct {
	RequestID string    `json:"request_id"`
	Date      string    `json:"date"`
	Status    string    `json:"status"`
	Attempts  int       `json:"attempts"`
	FinalPath string    `json:"final_path,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewSink creates an archive sink rooted at root.
func NewSink(root string, logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{root: root, logger: logger.With("component", "archive")}
}

// SaveAttempt writes one generation attempt: the code as generated.<ext>
// plus a metadata.json. Returns the attempt directory.
func (s *Sink) SaveAttempt(requestID string, attempt int, code, ext string, meta map[string]any) (string, error) {
	dir := filepath.Join(s.requestDir(requestID), fmt.Sprintf("attempt_%d", attempt))
	if err := s.writeBundle(dir, code, ext, meta); err != nil {
		return "", err
	}
	s.updateManifest(requestID, "in_progress", attempt, "")
	return dir, nil
}

// SaveFinal copies the successful code into FINAL/ and marks the request
// complete in the manifest. Returns the exported code path.
func (s *Sink) SaveFinal(requestID string, attempts int, code, ext string, meta map[string]any) (string, error) {
	dir := filepath.Join(s.requestDir(requestID), "FINAL")
	if err := s.writeBundle(dir, code, ext, meta); err != nil {
		return "", err
	}
	finalPath := filepath.Join(dir, "generated."+ext)
	s.updateManifest(requestID, "success", attempts, finalPath)
	s.logger.Info("final code archived", "request_id", requestID, "path", finalPath)
	return finalPath, nil
}

// MarkFailed records a request that exhausted its attempts.
func (s *Sink) MarkFailed(requestID string, attempts int) {
	s.updateManifest(requestID, "failed", attempts, "")
}

func (s *Sink) requestDir(requestID string) string {
	return filepath.Join(s.root, time.Now().UTC().Format("2006-01-02"), requestID)
}

func (s *Sink) writeBundle(dir, code, ext string, meta map[string]any) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create archive directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "generated."+ext), []byte(code), 0o644); err != nil {
		return fmt.Errorf("write code: %w", err)
	}
	if meta == nil {
		meta = map[string]any{}
	}
	meta["archived_at"] = time.Now().UTC().Format(time.RFC3339)
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "metadata.json"), data, 0o644); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	return nil
}

// updateManifest rewrites the root index with this request's latest state.
// Manifest problems are logged, never surfaced; archiving must not fail a
// successful generation.
func (s *Sink) updateManifest(requestID, status string, attempts int, finalPath string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.readManifest()
	now := time.Now().UTC()
	found := false
	for i := range entries {
		if entries[i].RequestID == requestID {
			entries[i].Status = status
			entries[i].Attempts = attempts
			entries[i].UpdatedAt = now
			if finalPath != "" {
				entries[i].FinalPath = finalPath
			}
			found = true
			break
		}
	}
	if !found {
		entries = append(entries, ManifestEntry{
			RequestID: requestID,
			Date:      now.Format("2006-01-02"),
			Status:    status,
			Attempts:  attempts,
			FinalPath: finalPath,
			UpdatedAt: now,
		})
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		s.logger.Warn("could not encode manifest", "error", err)
		return
	}
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		s.logger.Warn("could not create archive root", "error", err)
		return
	}
	path := filepath.Join(s.root, manifestFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		s.logger.Warn("could not write manifest", "error", err)
		return
	}
	if err := os.Rename(tmp, path); err != nil {
		s.logger.Warn("could not replace manifest", "error", err)
	}
}

func (s *Sink) readManifest() []ManifestEntry {
	data, err := os.ReadFile(filepath.Join(s.root, manifestFile))
	if err != nil {
		return nil
	}
	var entries []ManifestEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		s.logger.Warn("manifest unreadable, starting fresh", "error", err)
		return nil
	}
	return entries
}
