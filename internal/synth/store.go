package synth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Store persists synthesized audio artifacts as files under a single
// directory and serves them back by name.
type Store struct {
	dir string
}

// NewStore creates the artifact directory if needed and returns a store
// rooted there.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("synth: artifact dir must not be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("synth: create artifact dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the artifact directory.
func (s *Store) Dir() string {
	return s.dir
}

// Path resolves an artifact name to its filesystem path. Names with path
// separators or traversal elements are rejected.
func (s *Store) Path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("synth: invalid artifact name %q", name)
	}
	return filepath.Join(s.dir, name), nil
}

// Exists reports whether the named artifact is present.
func (s *Store) Exists(name string) bool {
	p, err := s.Path(name)
	if err != nil {
		return false
	}
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}

// Save writes an artifact atomically: data lands in a temp file that is
// renamed into place, so a concurrent reader never sees a partial write.
func (s *Store) Save(name string, data []byte) error {
	p, err := s.Path(name)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("synth: create temp artifact: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("synth: write artifact %q: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("synth: close artifact %q: %w", name, err)
	}
	if err := os.Rename(tmpName, p); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("synth: store artifact %q: %w", name, err)
	}
	return nil
}
