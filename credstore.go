package wazzap

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	toml "github.com/pelletier/go-toml/v2"
)

// FileCredentialStore persists credentials into one table of a TOML file.
// Other tables in the file are preserved on every write, so the store can
// share a file with the CLI configuration.
type FileCredentialStore struct {
	mu      sync.Mutex
	path    string
	section string
}

// NewFileCredentialStore returns a store that keeps its keys in the given
// table of the TOML file at path. The file is created on first write.
func NewFileCredentialStore(path, section string) *FileCredentialStore {
	if section == "" {
		section = "auth"
	}
	return &FileCredentialStore{path: path, section: section}
}

func (f *FileCredentialStore) Get(key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, err := f.load()
	if err != nil {
		return "", false
	}
	v, ok := table(doc, f.section)[key].(string)
	return v, ok
}

func (f *FileCredentialStore) Set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, err := f.load()
	if err != nil {
		return err
	}
	t := table(doc, f.section)
	t[key] = value
	doc[f.section] = t
	return f.save(doc)
}

func (f *FileCredentialStore) Remove(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, err := f.load()
	if err != nil {
		return err
	}
	t := table(doc, f.section)
	if _, ok := t[key]; !ok {
		return nil
	}
	delete(t, key)
	doc[f.section] = t
	return f.save(doc)
}

func (f *FileCredentialStore) load() (map[string]any, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("cannot read credentials: %w", err)
	}
	doc := map[string]any{}
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("cannot parse credentials: %w", err)
	}
	return doc, nil
}

func (f *FileCredentialStore) save(doc map[string]any) error {
	data, err := toml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("cannot marshal credentials: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("cannot create credentials directory: %w", err)
	}
	if err := os.WriteFile(f.path, data, 0o600); err != nil {
		return fmt.Errorf("cannot write credentials: %w", err)
	}
	return nil
}

func table(doc map[string]any, name string) map[string]any {
	if t, ok := doc[name].(map[string]any); ok {
		return t
	}
	return map[string]any{}
}
