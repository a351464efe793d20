package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spectralhq/spectral/pkg/models"
	_ "modernc.org/sqlite" // Pure-Go SQLite driver
)

// SQLiteStore is the row-oriented backend with indexed columns on category,
// entity_type, entity_id and timestamp. Tags are serialized as JSON and
// queried by substring membership.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and runs forward-only,
// idempotent migrations. Use ":memory:" for tests.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path == "" {
		path = ":memory:"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// Serialize writers; sqlite allows many readers but one writer.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS memory_entries (
			id TEXT PRIMARY KEY,
			category TEXT NOT NULL,
			key TEXT NOT NULL DEFAULT '',
			value TEXT NOT NULL DEFAULT '{}',
			entity_type TEXT NOT NULL DEFAULT '',
			entity_id TEXT NOT NULL DEFAULT '',
			tags TEXT NOT NULL DEFAULT '[]',
			timestamp DATETIME NOT NULL,
			module TEXT NOT NULL DEFAULT '',
			task_id TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("create memory_entries table: %w", err)
	}

	// Forward-only additive migrations for databases created by older
	// releases. Each is a no-op when the column already exists.
	for _, col := range []struct{ name, ddl string }{
		{"entity_id", "ALTER TABLE memory_entries ADD COLUMN entity_id TEXT NOT NULL DEFAULT ''"},
		{"task_id", "ALTER TABLE memory_entries ADD COLUMN task_id TEXT NOT NULL DEFAULT ''"},
		{"code_generated", "ALTER TABLE memory_entries ADD COLUMN code_generated TEXT NOT NULL DEFAULT ''"},
	} {
		has, err := s.hasColumn(col.name)
		if err != nil {
			return err
		}
		if !has {
			if _, err := s.db.Exec(col.ddl); err != nil {
				return fmt.Errorf("add column %s: %w", col.name, err)
			}
		}
	}

	// Backfill from equivalent legacy columns: early schemas stored generated
	// code under a bare "code" column.
	hasLegacy, err := s.hasColumn("code")
	if err != nil {
		return err
	}
	if hasLegacy {
		_, err := s.db.Exec(`
			UPDATE memory_entries
			SET code_generated = code
			WHERE (code_generated IS NULL OR code_generated = '')
			  AND code IS NOT NULL AND code != ''
		`)
		if err != nil {
			return fmt.Errorf("backfill code_generated: %w", err)
		}
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_entries_category ON memory_entries(category)",
		"CREATE INDEX IF NOT EXISTS idx_entries_entity_type ON memory_entries(entity_type)",
		"CREATE INDEX IF NOT EXISTS idx_entries_entity_id ON memory_entries(entity_id)",
		"CREATE INDEX IF NOT EXISTS idx_entries_timestamp ON memory_entries(timestamp)",
	}
	for _, idx := range indexes {
		if _, err := s.db.Exec(idx); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) hasColumn(name string) (bool, error) {
	rows, err := s.db.Query("PRAGMA table_info(memory_entries)")
	if err != nil {
		return false, fmt.Errorf("table_info: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var cid int
		var colName, colType string
		var notNull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &colName, &colType, &notNull, &dflt, &pk); err != nil {
			return false, err
		}
		if colName == name {
			return true, nil
		}
	}
	return false, rows.Err()
}

// Create inserts a new entry, assigning an id and provenance timestamps when
// missing.
func (s *SQLiteStore) Create(ctx context.Context, entry *models.MemoryEntry) error {
	prepareForCreate(entry)
	valueJSON, tagsJSON, err := marshalEntry(entry)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO memory_entries
			(id, category, key, value, entity_type, entity_id, tags, timestamp, module, task_id, created_at, updated_at, code_generated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		entry.ID, entry.Category, entry.Key, valueJSON, entry.EntityType, entry.EntityID,
		tagsJSON, entry.Timestamp, entry.Provenance.Module, entry.Provenance.TaskID,
		entry.Provenance.CreatedAt, entry.Provenance.UpdatedAt, codeGenerated(entry),
	)
	if err != nil {
		return fmt.Errorf("insert entry: %w", err)
	}
	return nil
}

// Read returns the entry with the given id, or ErrNotFound.
func (s *SQLiteStore) Read(ctx context.Context, id string) (*models.MemoryEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, category, key, value, entity_type, entity_id, tags, timestamp, module, task_id, created_at, updated_at
		FROM memory_entries WHERE id = ?
	`, id)
	entry, err := scanEntry(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return entry, err
}

// Update rewrites an existing entry, stamping updated_at.
func (s *SQLiteStore) Update(ctx context.Context, entry *models.MemoryEntry) error {
	entry.Provenance.UpdatedAt = time.Now().UTC()
	entry.Timestamp = entry.Provenance.UpdatedAt
	valueJSON, tagsJSON, err := marshalEntry(entry)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE memory_entries
		SET category = ?, key = ?, value = ?, entity_type = ?, entity_id = ?, tags = ?,
			timestamp = ?, module = ?, task_id = ?, updated_at = ?, code_generated = ?
		WHERE id = ?
	`,
		entry.Category, entry.Key, valueJSON, entry.EntityType, entry.EntityID, tagsJSON,
		entry.Timestamp, entry.Provenance.Module, entry.Provenance.TaskID,
		entry.Provenance.UpdatedAt, codeGenerated(entry), entry.ID,
	)
	if err != nil {
		return fmt.Errorf("update entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes an entry by id. Deleting a missing id is not an error.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM memory_entries WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	return nil
}

// ListAll returns every entry ordered by timestamp descending.
func (s *SQLiteStore) ListAll(ctx context.Context) ([]*models.MemoryEntry, error) {
	return s.queryRows(ctx, `
		SELECT id, category, key, value, entity_type, entity_id, tags, timestamp, module, task_id, created_at, updated_at
		FROM memory_entries ORDER BY timestamp DESC
	`)
}

// Query returns entries matching all set fields of q, newest first.
func (s *SQLiteStore) Query(ctx context.Context, q models.MemoryQuery) ([]*models.MemoryEntry, error) {
	var conds []string
	var args []any
	if q.Category != "" {
		conds = append(conds, "category = ?")
		args = append(args, q.Category)
	}
	if q.EntityType != "" {
		conds = append(conds, "entity_type = ?")
		args = append(args, q.EntityType)
	}
	if q.EntityID != "" {
		conds = append(conds, "entity_id = ?")
		args = append(args, q.EntityID)
	}
	if q.Key != "" {
		conds = append(conds, "key = ?")
		args = append(args, q.Key)
	}
	if len(q.Tags) > 0 {
		// Any-match over the JSON-serialized tag array.
		var tagConds []string
		for _, tag := range q.Tags {
			tagConds = append(tagConds, "tags LIKE ?")
			encoded, err := json.Marshal(tag)
			if err != nil {
				return nil, fmt.Errorf("encode tag: %w", err)
			}
			args = append(args, "%"+string(encoded)+"%")
		}
		conds = append(conds, "("+strings.Join(tagConds, " OR ")+")")
	}

	query := `
		SELECT id, category, key, value, entity_type, entity_id, tags, timestamp, module, task_id, created_at, updated_at
		FROM memory_entries
	`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY timestamp DESC"
	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", q.Limit)
	}
	return s.queryRows(ctx, query, args...)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) queryRows(ctx context.Context, query string, args ...any) ([]*models.MemoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.MemoryEntry
	for rows.Next() {
		entry, err := scanEntry(rows.Scan)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func scanEntry(scan func(dest ...any) error) (*models.MemoryEntry, error) {
	var entry models.MemoryEntry
	var valueJSON, tagsJSON string
	err := scan(
		&entry.ID, &entry.Category, &entry.Key, &valueJSON, &entry.EntityType, &entry.EntityID,
		&tagsJSON, &entry.Timestamp, &entry.Provenance.Module, &entry.Provenance.TaskID,
		&entry.Provenance.CreatedAt, &entry.Provenance.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(valueJSON), &entry.Value); err != nil {
		return nil, fmt.Errorf("decode value for %s: %w", entry.ID, err)
	}
	if err := json.Unmarshal([]byte(tagsJSON), &entry.Tags); err != nil {
		return nil, fmt.Errorf("decode tags for %s: %w", entry.ID, err)
	}
	return &entry, nil
}

func marshalEntry(entry *models.MemoryEntry) (valueJSON, tagsJSON string, err error) {
	if entry.Value == nil {
		entry.Value = map[string]any{}
	}
	if entry.Tags == nil {
		entry.Tags = []string{}
	}
	value, err := json.Marshal(entry.Value)
	if err != nil {
		return "", "", fmt.Errorf("encode value: %w", err)
	}
	tags, err := json.Marshal(entry.Tags)
	if err != nil {
		return "", "", fmt.Errorf("encode tags: %w", err)
	}
	return string(value), string(tags), nil
}

func prepareForCreate(entry *models.MemoryEntry) {
	now := time.Now().UTC()
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = now
	}
	if entry.Provenance.CreatedAt.IsZero() {
		entry.Provenance.CreatedAt = now
	}
	if entry.Provenance.UpdatedAt.IsZero() {
		entry.Provenance.UpdatedAt = now
	}
}

// codeGenerated materializes the executions' code payload into its indexed
// column so legacy tooling keeps working.
func codeGenerated(entry *models.MemoryEntry) string {
	if entry.Category != models.CategoryExecutions {
		return ""
	}
	if code, ok := entry.Value["code_generated"].(string); ok {
		return code
	}
	return ""
}
