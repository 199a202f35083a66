package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/dmitrymomot/flowstate/pkg/historystore"
	"github.com/dmitrymomot/flowstate/pkg/statemachine"
)

// LocalStore keeps one JSON file per machine inside dir.
// Safe for concurrent use within a process.
type LocalStore struct {
	dir      string
	fileMode os.FileMode
	mu       sync.Mutex
}

var _ historystore.Store = (*LocalStore)(nil)

// LocalOption configures a LocalStore.
type LocalOption func(*LocalStore)

// WithFileMode sets permissions of written history files. Default 0644.
func WithFileMode(mode os.FileMode) LocalOption {
	return func(s *LocalStore) {
		if mode != 0 {
			s.fileMode = mode
		}
	}
}

// NewLocalStore resolves dir to an absolute path and creates it if missing.
func NewLocalStore(dir string, opts ...LocalOption) (*LocalStore, error) {
	if dir == "" {
		return nil, ErrInvalidConfig
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, errors.Join(ErrFailedToGetAbsolutePath, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, errors.Join(ErrFailedToCreateDirectory, err)
	}

	s := &LocalStore{dir: abs, fileMode: 0o644}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Dir returns the absolute directory histories are written to.
func (s *LocalStore) Dir() string {
	return s.dir
}

func (s *LocalStore) path(id string) (string, error) {
	if err := historystore.ValidateID(id); err != nil {
		return "", err
	}
	name, err := objectName(id)
	if err != nil {
		return "", fmt.Errorf("%w: %q", err, id)
	}
	return filepath.Join(s.dir, name), nil
}

func (s *LocalStore) Load(ctx context.Context, id string) (statemachine.History, error) {
	path, err := s.path(id)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(path)
}

func (s *LocalStore) Append(ctx context.Context, id string, entries ...statemachine.HistoryEntry) error {
	path, err := s.path(id)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	h, err := s.read(path)
	if err != nil {
		return err
	}
	return s.write(path, append(h, entries...))
}

func (s *LocalStore) Replace(ctx context.Context, id string, h statemachine.History) error {
	path, err := s.path(id)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(path, h)
}

func (s *LocalStore) Delete(ctx context.Context, id string) error {
	path, err := s.path(id)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return errors.Join(ErrFailedToDeleteFile, err)
	}
	return nil
}

// Healthcheck reports whether the history directory is still reachable.
func (s *LocalStore) Healthcheck(context.Context) error {
	info, err := os.Stat(s.dir)
	if err != nil {
		return errors.Join(ErrHealthcheckFailed, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrHealthcheckFailed, s.dir)
	}
	return nil
}

func (s *LocalStore) read(path string) (statemachine.History, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return statemachine.History{}, nil
	}
	if err != nil {
		return nil, errors.Join(ErrFailedToReadFile, err)
	}
	return decodeHistory(data)
}

// write replaces path atomically via a temp file in the same directory.
func (s *LocalStore) write(path string, h statemachine.History) error {
	data, err := encodeHistory(h)
	if err != nil {
		return errors.Join(ErrFailedToWriteFile, err)
	}

	tmp, err := os.CreateTemp(s.dir, ".history-*")
	if err != nil {
		return errors.Join(ErrFailedToWriteFile, err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return errors.Join(ErrFailedToWriteFile, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return errors.Join(ErrFailedToWriteFile, err)
	}
	if err := tmp.Close(); err != nil {
		return errors.Join(ErrFailedToWriteFile, err)
	}
	if err := os.Chmod(tmpName, s.fileMode); err != nil {
		return errors.Join(ErrFailedToWriteFile, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return errors.Join(ErrFailedToWriteFile, err)
	}
	return nil
}
