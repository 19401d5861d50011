// Package session persists the CLI's Kra session token between runs.
package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// ErrNoSession is returned by Load when nothing has been saved.
var ErrNoSession = errors.New("session: not logged in")

// Session is a saved login.
type Session struct {
	Username string    `yaml:"username"`
	Token    string    `yaml:"token"`
	Created  time.Time `yaml:"created"`
}

// DefaultPath returns ~/.kra/session.
func DefaultPath() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", fmt.Errorf("session: resolve home: %w", err)
	}
	return filepath.Join(home, ".kra", "session"), nil
}

// Store reads and writes a single session file.
type Store struct {
	fs   afero.Fs
	path string
}

// NewStore returns a store for path on fs. A nil fs means the OS
// filesystem; a leading ~ in path is expanded.
func NewStore(fs afero.Fs, path string) (*Store, error) {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	expanded, err := homedir.Expand(strings.TrimSpace(path))
	if err != nil {
		return nil, fmt.Errorf("session: expand %q: %w", path, err)
	}
	if expanded == "" {
		return nil, errors.New("session: path is required")
	}
	return &Store{fs: fs, path: expanded}, nil
}

// Path returns the file the store uses.
func (s *Store) Path() string {
	return s.path
}

// Load returns the saved session or ErrNoSession.
func (s *Store) Load() (*Session, error) {
	data, err := afero.ReadFile(s.fs, s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("session: read %s: %w", s.path, err)
	}
	var sess Session
	if err := yaml.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("session: decode %s: %w", s.path, err)
	}
	if sess.Token == "" {
		return nil, ErrNoSession
	}
	return &sess, nil
}

// Save writes sess, readable by the owner only.
func (s *Store) Save(sess *Session) error {
	if sess == nil || sess.Token == "" {
		return errors.New("session: token is required")
	}
	data, err := yaml.Marshal(sess)
	if err != nil {
		return fmt.Errorf("session: encode: %w", err)
	}
	if err := s.fs.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("session: create dir: %w", err)
	}
	if err := afero.WriteFile(s.fs, s.path, data, 0o600); err != nil {
		return fmt.Errorf("session: write %s: %w", s.path, err)
	}
	return nil
}

// Clear removes the saved session. Clearing an empty store is not an error.
func (s *Store) Clear() error {
	err := s.fs.Remove(s.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("session: remove %s: %w", s.path, err)
	}
	return nil
}
