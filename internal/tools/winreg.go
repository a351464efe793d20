package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spectralhq/spectral/pkg/models"
)

// KeyStore abstracts the registry-family backend. On Windows it maps to the
// system registry; elsewhere a file-backed store keeps the family and its
// verifier exercisable.
type KeyStore interface {
	WriteValue(key, name string, value string) error
	ReadValue(key, name string) (string, bool, error)
	DeleteValue(key, name string) error
}

// FileKeyStore persists key/value pairs in a JSON file.
type FileKeyStore struct {
	mu   sync.Mutex
	path string
}

// NewFileKeyStore creates a file-backed key store at path.
func NewFileKeyStore(path string) *FileKeyStore {
	return &FileKeyStore{path: path}
}

func (s *FileKeyStore) load() (map[string]map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return map[string]map[string]string{}, nil
	}
	if err != nil {
		return nil, err
	}
	var doc map[string]map[string]string
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		doc = map[string]map[string]string{}
	}
	return doc, nil
}

func (s *FileKeyStore) save(doc map[string]map[string]string) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o644)
}

func (s *FileKeyStore) WriteValue(key, name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.load()
	if err != nil {
		return err
	}
	if doc[key] == nil {
		doc[key] = map[string]string{}
	}
	doc[key][name] = value
	return s.save(doc)
}

func (s *FileKeyStore) ReadValue(key, name string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.load()
	if err != nil {
		return "", false, err
	}
	values, ok := doc[key]
	if !ok {
		return "", false, nil
	}
	value, ok := values[name]
	return value, ok, nil
}

func (s *FileKeyStore) DeleteValue(key, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.load()
	if err != nil {
		return err
	}
	if values, ok := doc[key]; ok {
		delete(values, name)
		if len(values) == 0 {
			delete(doc, key)
		}
	}
	return s.save(doc)
}

// RegisterRegistryTools adds the registry family backed by the key store.
func RegisterRegistryTools(r *Registry, env *Env, store KeyStore) {
	r.Register(&regWrite{base{"registry_write_value", "registry", "Write a registry value under a key", env}, store})
	r.Register(&regRead{base{"registry_read_value", "registry", "Read a registry value", env}, store})
	r.Register(&regDelete{base{"registry_delete_value", "registry", "Delete a registry value", env}, store})
}

type regWrite struct {
	base
	store KeyStore
}

func (t *regWrite) Execute(_ context.Context, params map[string]any) *models.ActionResult {
	key, err := stringParam(params, "key")
	if err != nil {
		return failure(t.name, err.Error())
	}
	name, err := stringParam(params, "name")
	if err != nil {
		return failure(t.name, err.Error())
	}
	value := optString(params, "value")
	if t.env.DryRun {
		return dryRunResult(t.name, fmt.Sprintf("write %s\\%s", key, name))
	}
	if err := t.store.WriteValue(key, name, value); err != nil {
		return failure(t.name, fmt.Sprintf("write registry value: %v", err))
	}
	return success(t.name, fmt.Sprintf("Wrote %s\\%s", key, name), map[string]any{
		"key": key, "name": name, "value": value,
	})
}

type regRead struct {
	base
	store KeyStore
}

func (t *regRead) Execute(_ context.Context, params map[string]any) *models.ActionResult {
	key, err := stringParam(params, "key")
	if err != nil {
		return failure(t.name, err.Error())
	}
	name, err := stringParam(params, "name")
	if err != nil {
		return failure(t.name, err.Error())
	}
	value, ok, err := t.store.ReadValue(key, name)
	if err != nil {
		return failure(t.name, fmt.Sprintf("read registry value: %v", err))
	}
	if !ok {
		return failure(t.name, fmt.Sprintf("registry value %s\\%s does not exist", key, name))
	}
	return success(t.name, fmt.Sprintf("Read %s\\%s", key, name), map[string]any{
		"key": key, "name": name, "value": value,
	})
}

type regDelete struct {
	base
	store KeyStore
}

func (t *regDelete) Execute(_ context.Context, params map[string]any) *models.ActionResult {
	key, err := stringParam(params, "key")
	if err != nil {
		return failure(t.name, err.Error())
	}
	name, err := stringParam(params, "name")
	if err != nil {
		return failure(t.name, err.Error())
	}
	if t.env.DryRun {
		return dryRunResult(t.name, fmt.Sprintf("delete %s\\%s", key, name))
	}
	if err := t.store.DeleteValue(key, name); err != nil {
		return failure(t.name, fmt.Sprintf("delete registry value: %v", err))
	}
	return success(t.name, fmt.Sprintf("Deleted %s\\%s", key, name), map[string]any{
		"key": key, "name": name,
	})
}
