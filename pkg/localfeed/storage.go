package localfeed

import (
	"errors"
	"os"
	"sync"
)

// Storage is the persistence adapter behind a Feed: a string key/value
// store in the spirit of browser localStorage. Implementations must be safe
// for concurrent use by a single Feed.
type Storage interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
	Delete(key string) error
}

// FileStorage keeps each key in its own file under a directory. Good
// enough for desktop clients and tests; swap in anything else via the
// Storage interface.
type FileStorage struct {
	mu  sync.Mutex
	dir string
}

func NewFileStorage(dir string) (*FileStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FileStorage{dir: dir}, nil
}

func (s *FileStorage) path(key string) string {
	// Keys like "riskpulse:notifications" are not valid filenames everywhere.
	safe := make([]rune, 0, len(key))
	for _, r := range key {
		switch r {
		case ':', '/', '\\':
			safe = append(safe, '_')
		default:
			safe = append(safe, r)
		}
	}
	return s.dir + string(os.PathSeparator) + string(safe) + ".json"
}

func (s *FileStorage) Get(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return string(data), true, nil
}

func (s *FileStorage) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return os.WriteFile(s.path(key), []byte(value), 0o644)
}

func (s *FileStorage) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// MemStorage is an in-memory Storage, mainly for tests.
type MemStorage struct {
	mu     sync.Mutex
	values map[string]string
}

func NewMemStorage() *MemStorage {
	return &MemStorage{values: make(map[string]string)}
}

func (s *MemStorage) Get(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *MemStorage) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *MemStorage) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}
