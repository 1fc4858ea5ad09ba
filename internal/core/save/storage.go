package save

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// ErrNotFound is returned by Backend.Load and Backend.Delete for missing keys.
var ErrNotFound = errors.New("save: key not found")

// Metadata is small key/value annotation attached to stored payloads.
// Backends may ignore it.
type Metadata map[string]string

// Backend is a pluggable key-value save store. Implementations report
// failure through errors, never panic; a failed backend call must leave the
// stored state for that key unchanged.
type Backend interface {
	Save(ctx context.Context, key string, data []byte, meta Metadata) error
	Load(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) ([]string, error)
}

// validateKey rejects keys that could escape a path-based backend or collide
// with the backup suffix convention in surprising ways.
func validateKey(key string) error {
	if key == "" {
		return fmt.Errorf("save: empty key")
	}
	if strings.ContainsAny(key, "/\\") || key == "." || key == ".." {
		return fmt.Errorf("save: invalid key %q", key)
	}
	return nil
}

// MemoryStore is a map-backed Backend. It is the default local store and the
// workhorse of the test suite.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string][]byte
}

var _ Backend = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string][]byte)}
}

func (s *MemoryStore) Save(_ context.Context, key string, data []byte, _ Metadata) error {
	if err := validateKey(key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	s.items[key] = cp
	return nil
}

func (s *MemoryStore) Load(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.items[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[key]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	delete(s.items, key)
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.items))
	for k := range s.items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Corrupt overwrites the stored payload for a key without going through
// Save's copy discipline. Test hook for simulating byte-level damage.
func (s *MemoryStore) Corrupt(key string, mutate func([]byte) []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.items[key]
	if !ok {
		return false
	}
	s.items[key] = mutate(data)
	return true
}

const fileStoreExt = ".sav"

// FileStore keeps one file per key under a directory. Writes go through a
// temp file + rename so a crash mid-write never leaves a torn payload.
type FileStore struct {
	dir string
}

var _ Backend = (*FileStore)(nil)

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("save: create store dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) Save(_ context.Context, key string, data []byte, _ Metadata) error {
	if err := validateKey(key); err != nil {
		return err
	}
	path := s.path(key)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("save: write %s: %w", key, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("save: commit %s: %w", key, err)
	}
	return nil
}

func (s *FileStore) Load(_ context.Context, key string) ([]byte, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("save: read %s: %w", key, err)
	}
	return data, nil
}

func (s *FileStore) Delete(_ context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	err := os.Remove(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return fmt.Errorf("save: delete %s: %w", key, err)
	}
	return nil
}

func (s *FileStore) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("save: list store: %w", err)
	}
	var keys []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), fileStoreExt) {
			continue
		}
		keys = append(keys, strings.TrimSuffix(e.Name(), fileStoreExt))
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, key+fileStoreExt)
}
