package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// File persists each namespace as one JSON object on disk so tab state
// survives a host restart
type File struct {
	dir    string
	mu     sync.Mutex
	closed bool
}

// NewFile creates the backend rooted at dir, creating it when missing
func NewFile(dir string) (*File, error) {
	if dir == "" {
		return nil, errors.New("storage: file driver requires a directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create dir: %w", err)
	}
	return &File{dir: dir}, nil
}

func (f *File) Scope(namespace string) Store {
	return &fileStore{backend: f, namespace: namespace}
}

func (f *File) Drop(namespace string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	err := os.Remove(f.path(namespace))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("storage: drop %s: %w", namespace, err)
	}
	return nil
}

func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *File) path(namespace string) string {
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, namespace)
	return filepath.Join(f.dir, safe+".json")
}

// load reads the namespace file. Caller holds f.mu.
func (f *File) load(namespace string) (map[string]string, error) {
	data, err := os.ReadFile(f.path(namespace))
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", namespace, err)
	}
	values := map[string]string{}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("storage: decode %s: %w", namespace, err)
	}
	return values, nil
}

// save writes via a temp file and rename. Caller holds f.mu.
func (f *File) save(namespace string, values map[string]string) error {
	if len(values) == 0 {
		err := os.Remove(f.path(namespace))
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("storage: remove %s: %w", namespace, err)
		}
		return nil
	}

	data, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("storage: encode %s: %w", namespace, err)
	}
	tmp, err := os.CreateTemp(f.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("storage: temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("storage: write %s: %w", namespace, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("storage: close %s: %w", namespace, err)
	}
	return os.Rename(tmp.Name(), f.path(namespace))
}

type fileStore struct {
	backend   *File
	namespace string
}

func (s *fileStore) Get(key string) (string, bool, error) {
	f := s.backend
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return "", false, ErrClosed
	}
	values, err := f.load(s.namespace)
	if err != nil {
		return "", false, err
	}
	val, ok := values[key]
	return val, ok, nil
}

func (s *fileStore) Set(key, value string) error {
	return s.update(func(values map[string]string) { values[key] = value })
}

func (s *fileStore) Remove(key string) error {
	return s.update(func(values map[string]string) { delete(values, key) })
}

func (s *fileStore) update(fn func(map[string]string)) error {
	f := s.backend
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrClosed
	}
	values, err := f.load(s.namespace)
	if err != nil {
		return err
	}
	fn(values)
	return f.save(s.namespace, values)
}
