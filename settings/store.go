// Package settings persists the handful of user preferences the sound layer
// remembers between runs.
package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
)

const (
	KeyAmbientMuted     = "ambientMuted"
	KeyAmbientIntensity = "ambientIntensity"
	KeyMasterVolume     = "masterVolume"
	KeyCursedMode       = "cursedMode"
)

const fileName = "settings.json"

// Store is a flat string key-value store.
type Store interface {
	Get(key string) (string, bool)
	Set(key, value string) error
}

// Bool reads key as "true"/"false", falling back to def.
func Bool(s Store, key string, def bool) bool {
	if s == nil {
		return def
	}
	v, ok := s.Get(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func SetBool(s Store, key string, v bool) error {
	if s == nil {
		return nil
	}
	return s.Set(key, strconv.FormatBool(v))
}

// String reads key, falling back to def.
func String(s Store, key, def string) string {
	if s == nil {
		return def
	}
	if v, ok := s.Get(key); ok {
		return v
	}
	return def
}

type MemStore struct {
	mu sync.Mutex
	m  map[string]string
}

func NewMemStore() *MemStore {
	return &MemStore{m: make(map[string]string)}
}

func (s *MemStore) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.m[key]
	return v, ok
}

func (s *MemStore) Set(key, value string) error {
	s.mu.Lock()
	s.m[key] = value
	s.mu.Unlock()
	return nil
}

// FileStore keeps every key in one JSON object on disk. Each Set rewrites the
// whole file through a temp file and rename.
type FileStore struct {
	path string
	mu   sync.Mutex
	m    map[string]string
}

// DefaultPath is settings.json under the user config dir.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("config dir: %w", err)
	}
	return filepath.Join(dir, "nexus", fileName), nil
}

// Open loads path. A missing file is an empty store.
func Open(path string) (*FileStore, error) {
	s := &FileStore{path: path, m: make(map[string]string)}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}
	if len(data) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(data, &s.m); err != nil {
		return nil, fmt.Errorf("parse settings %s: %w", path, err)
	}
	if s.m == nil {
		s.m = make(map[string]string)
	}
	return s, nil
}

func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.m[key]
	return v, ok
}

func (s *FileStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.m[key]; ok && old == value {
		return nil
	}
	s.m[key] = value
	return s.flush()
}

func (s *FileStore) flush() error {
	data, err := json.MarshalIndent(s.m, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".settings-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("install settings: %w", err)
	}
	return nil
}
