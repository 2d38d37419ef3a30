package credential

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
)

// FileStore keeps tokens in a JSON object keyed by name, the on-disk analogue of the
// browser cookie jar. Other keys in the file are preserved on write.
type FileStore struct {
	mu   sync.Mutex
	path string
	name string
}

// NewFileStore returns a store backed by path. An empty name defaults to KeyAccessToken.
func NewFileStore(path, name string) *FileStore {
	if name == "" {
		name = KeyAccessToken
	}
	return &FileStore{path: path, name: name}
}

// Path reports the backing file.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Get(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.read()
	if err != nil {
		return "", err
	}
	token := values[s.name]
	if token == "" {
		return "", ErrNoToken
	}
	return token, nil
}

func (s *FileStore) Set(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.read()
	if err != nil {
		return err
	}
	values[s.name] = token
	return s.write(values)
}

func (s *FileStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.read()
	if err != nil {
		return err
	}
	if _, ok := values[s.name]; !ok {
		return nil
	}
	delete(values, s.name)
	return s.write(values)
}

func (s *FileStore) read() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	values := map[string]string{}
	if len(data) == 0 {
		return values, nil
	}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrStoreUnavailable, s.path, err)
	}
	return values, nil
}

// write replaces the file through a temp file and rename so readers never see a torn token.
func (s *FileStore) write(values map[string]string) (err error) {
	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	f, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".tmp")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer func() {
		if err != nil {
			f.Close()
			_ = os.Remove(f.Name())
		}
	}()

	if _, err = f.Write(data); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if runtime.GOOS != "windows" {
		if err = f.Chmod(0o600); err != nil {
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}
	if err = f.Sync(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if runtime.GOOS == "windows" {
		_ = os.Remove(s.path)
	}
	if err = os.Rename(f.Name(), s.path); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}
