package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// fileData is the on-disk layout of a JSONFileStore.
type fileData map[Namespace]map[string]string

// JSONFileStore implements Store on a single JSON file. It suits small
// single-user setups where a database is unwanted.
type JSONFileStore struct {
	path string
	data fileData
	mu   sync.RWMutex
}

// NewJSONFileStore opens the store at path, loading existing content if present.
func NewJSONFileStore(path string) (*JSONFileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	s := &JSONFileStore{path: path, data: fileData{}}
	if err := s.load(); err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	return s, nil
}

func (s *JSONFileStore) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, &s.data); err != nil {
		return fmt.Errorf("decode %s: %w", s.path, err)
	}
	// A file holding "null" decodes to a nil map.
	if s.data == nil {
		s.data = fileData{}
	}
	return nil
}

// save writes the whole file; callers must hold the write lock.
func (s *JSONFileStore) save() error {
	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("encode store: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0600); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	return os.Rename(tmp, s.path)
}

// Migrate ensures every namespace exists.
func (s *JSONFileStore) Migrate(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := false
	for _, ns := range Namespaces {
		if s.data[ns] == nil {
			s.data[ns] = map[string]string{}
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return s.save()
}

func (s *JSONFileStore) Close() error { return nil }

func (s *JSONFileStore) Get(_ context.Context, ns Namespace, key string) (string, bool, error) {
	if err := checkNamespace(ns); err != nil {
		return "", false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.data[ns][key]
	return v, ok, nil
}

func (s *JSONFileStore) Set(_ context.Context, ns Namespace, key, value string) error {
	if err := checkNamespace(ns); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.data[ns] == nil {
		s.data[ns] = map[string]string{}
	}
	prev, existed := s.data[ns][key]
	s.data[ns][key] = value
	if err := s.save(); err != nil {
		if existed {
			s.data[ns][key] = prev
		} else {
			delete(s.data[ns], key)
		}
		return fmt.Errorf("set %s: %w", Key(ns, key), err)
	}
	return nil
}

func (s *JSONFileStore) Keys(_ context.Context, ns Namespace) ([]string, error) {
	if err := checkNamespace(ns); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.data[ns]))
	for k := range s.data[ns] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}
