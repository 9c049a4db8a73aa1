package session

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/mdobak/go-xerrors"
)

// FileStore keeps the slot in a single file, replaced atomically on every save.
type FileStore struct {
	path  string
	mutex sync.Mutex
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// DefaultPath returns $XDG_CONFIG_HOME/beatpost/token, or the platform equivalent.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", xerrors.Newf("resolve config directory: %w", err)
	}
	return filepath.Join(dir, "beatpost", SlotName), nil
}

func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Save(_ context.Context, credential string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return xerrors.Newf("create session directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+SlotName+"-*")
	if err != nil {
		return xerrors.Newf("create session file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return xerrors.Newf("chmod session file: %w", err)
	}
	if _, err := tmp.WriteString(credential); err != nil {
		_ = tmp.Close()
		return xerrors.Newf("write session file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return xerrors.Newf("close session file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return xerrors.Newf("replace session file: %w", err)
	}
	return nil
}

func (s *FileStore) Read(_ context.Context) (string, bool, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, xerrors.Newf("read session file: %w", err)
	}

	credential := strings.TrimSpace(string(data))
	return credential, credential != "", nil
}

func (s *FileStore) Clear(_ context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return xerrors.Newf("remove session file: %w", err)
	}
	return nil
}

func (s *FileStore) Close() error {
	return nil
}
