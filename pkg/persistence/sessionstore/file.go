package sessionstore

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// FileStore keeps the values in a small YAML document, rewritten atomically on each Set.
type FileStore struct {
	path string
	mu   sync.Mutex
}

var _ Store = &FileStore{}

func NewFileStore(path string) (*FileStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("file session store: empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, errors.Wrap(err, "file session store: create directory")
	}
	return &FileStore{path: path}, nil
}

func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Get(_ context.Context, key string) (string, bool, error) {
	if err := checkKey(key); err != nil {
		return "", false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	values, err := s.readLocked()
	if err != nil {
		return "", false, err
	}
	v, ok := values[key]
	return v, ok, nil
}

func (s *FileStore) Set(_ context.Context, key string, value string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	values, err := s.readLocked()
	if err != nil {
		return err
	}
	values[key] = value
	return s.writeLocked(values)
}

func (s *FileStore) Delete(_ context.Context, key string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	values, err := s.readLocked()
	if err != nil {
		return err
	}
	if _, ok := values[key]; !ok {
		return nil
	}
	delete(values, key)
	return s.writeLocked(values)
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) readLocked() (map[string]string, error) {
	values := map[string]string{}
	b, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return values, nil
		}
		return nil, errors.Wrap(err, "file session store: read")
	}
	if err := yaml.Unmarshal(b, &values); err != nil {
		return nil, errors.Wrapf(err, "file session store: parse %s", s.path)
	}
	if values == nil {
		values = map[string]string{}
	}
	return values, nil
}

func (s *FileStore) writeLocked(values map[string]string) error {
	b, err := yaml.Marshal(values)
	if err != nil {
		return errors.Wrap(err, "file session store: encode")
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".session-*.yaml")
	if err != nil {
		return errors.Wrap(err, "file session store: create temp file")
	}
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return errors.Wrap(err, "file session store: write")
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return errors.Wrap(err, "file session store: close")
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		_ = os.Remove(tmp.Name())
		return errors.Wrap(err, "file session store: replace")
	}
	return nil
}
