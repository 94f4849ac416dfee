package session

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Provider is what the gateway needs from the session: the bearer token to attach,
// and a way to drop it when the service rejects it.
type Provider interface {
	Token() string
	Invalidate()
}

// Writer is what the auth client needs to record a successful login.
type Writer interface {
	SetToken(token string) error
	SetEmail(email string) error
}

type state struct {
	Token string `yaml:"token,omitempty"`
	Email string `yaml:"email,omitempty"`
}

// Store holds the authentication token and e-mail of the signed-in user. With a path
// it mirrors every change to a YAML file so a later process can reuse the login.
type Store struct {
	mu    sync.RWMutex
	path  string
	state state
}

var _ Provider = (*Store)(nil)
var _ Writer = (*Store)(nil)

func NewMemoryStore() *Store {
	return &Store{}
}

// OpenFileStore loads the session persisted at path. A missing file is an empty
// session.
func OpenFileStore(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("session file path is required")
	}
	s := &Store{path: path}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, errors.Wrapf(err, "could not read session file %s", path)
	}
	if err := yaml.Unmarshal(b, &s.state); err != nil {
		return nil, errors.Wrapf(err, "could not parse session file %s", path)
	}
	return s, nil
}

func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Token
}

func (s *Store) Email() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Email
}

func (s *Store) IsAuthenticated() bool {
	return s.Token() != ""
}

func (s *Store) SetToken(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Token = token
	return s.persistLocked()
}

func (s *Store) SetEmail(email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Email = email
	return s.persistLocked()
}

// Invalidate drops the token after the service rejected it. The e-mail is kept so
// the user can be prompted to log in again.
func (s *Store) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Token = ""
	if err := s.persistLocked(); err != nil {
		log.Warn().Err(err).Str("path", s.path).Msg("could not persist invalidated session")
	}
}

// Clear forgets token and e-mail (logout).
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state{}
	return s.persistLocked()
}

func (s *Store) persistLocked() error {
	if s.path == "" {
		return nil
	}
	if s.state == (state{}) {
		if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
			return errors.Wrap(err, "could not remove session file")
		}
		return nil
	}
	b, err := yaml.Marshal(&s.state)
	if err != nil {
		return errors.Wrap(err, "could not encode session")
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return errors.Wrap(err, "could not create session directory")
	}
	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, b, 0o600); err != nil {
		return errors.Wrap(err, "could not write session file")
	}
	return os.Rename(tmpPath, s.path)
}
