// Package clientstate persists the terminal client's small key-value state:
// who the participant is, which class they joined and their theme.
package clientstate

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
	"github.com/stemsi/classqa/internal/model"
)

// Keys of the persisted values.
const (
	KeyUser        = "user"
	KeyUserType    = "userType"
	KeyJoinedClass = "joinedClass"
	KeyTheme       = "theme"
	KeyTicket      = "ticket"
)

// Theme is the rendering preference.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
	ThemePlain Theme = "plain"
)

// DefaultTheme is used when no valid preference is stored.
const DefaultTheme = ThemeLight

// StoredUser is the persisted identity record.
type StoredUser struct {
	ID       string         `json:"id"`
	Email    string         `json:"email,omitempty"`
	Name     string         `json:"name,omitempty"`
	UserType model.UserType `json:"userType"`
}

// Store is a JSON-file backed string map. Every read tolerates a missing or
// corrupt file by treating it as empty.
type Store struct {
	path string
	log  zerolog.Logger
	mu   sync.Mutex
}

// Open returns a Store at path. The file is created lazily on first write.
func Open(path string, log zerolog.Logger) *Store {
	return &Store{path: path, log: log.With().Str("component", "clientstate").Logger()}
}

// Get returns the raw value for key.
func (s *Store) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.load()[key]
	return v, ok
}

// Set stores a raw value.
func (s *Store) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data := s.load()
	data[key] = value
	return s.save(data)
}

// Remove deletes a key. Removing a missing key is not an error.
func (s *Store) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data := s.load()
	if _, ok := data[key]; !ok {
		return nil
	}
	delete(data, key)
	return s.save(data)
}

// User returns the stored participant, or false when unauthenticated. A
// record that does not decode, lacks an id, or carries an unknown type
// counts as unauthenticated.
func (s *Store) User() (StoredUser, bool) {
	raw, ok := s.Get(KeyUser)
	if !ok || raw == "" {
		return StoredUser{}, false
	}
	var u StoredUser
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		s.log.Debug().Err(err).Msg("Ignoring malformed user record")
		return StoredUser{}, false
	}
	if u.ID == "" && u.Email == "" {
		return StoredUser{}, false
	}
	if !u.UserType.Valid() {
		// Older records only kept the type in its own key.
		if t, ok := s.UserType(); ok {
			u.UserType = t
		} else {
			return StoredUser{}, false
		}
	}
	return u, true
}

// SaveUser stores the participant and its userType flag.
func (s *Store) SaveUser(u StoredUser) error {
	raw, err := json.Marshal(u)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	data := s.load()
	data[KeyUser] = string(raw)
	data[KeyUserType] = string(u.UserType)
	return s.save(data)
}

// UserType returns the stored role flag.
func (s *Store) UserType() (model.UserType, bool) {
	raw, ok := s.Get(KeyUserType)
	t := model.UserType(raw)
	if !ok || !t.Valid() {
		return "", false
	}
	return t, true
}

// Logout forgets the participant, its ticket and any joined class.
func (s *Store) Logout() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data := s.load()
	for _, k := range []string{KeyUser, KeyUserType, KeyTicket, KeyJoinedClass} {
		delete(data, k)
	}
	return s.save(data)
}

// JoinedClass returns the code of the joined class, or false.
func (s *Store) JoinedClass() (string, bool) {
	code, ok := s.Get(KeyJoinedClass)
	if !ok || code == "" {
		return "", false
	}
	return code, true
}

// SetJoinedClass records the joined class code.
func (s *Store) SetJoinedClass(code string) error {
	return s.Set(KeyJoinedClass, code)
}

// Theme returns the stored theme or DefaultTheme.
func (s *Store) Theme() Theme {
	raw, _ := s.Get(KeyTheme)
	switch t := Theme(raw); t {
	case ThemeLight, ThemeDark, ThemePlain:
		return t
	default:
		return DefaultTheme
	}
}

// SetTheme stores a theme preference.
func (s *Store) SetTheme(t Theme) error {
	switch t {
	case ThemeLight, ThemeDark, ThemePlain:
		return s.Set(KeyTheme, string(t))
	default:
		return fmt.Errorf("unknown theme %q", t)
	}
}

// Ticket returns the stored participant ticket.
func (s *Store) Ticket() (string, bool) {
	t, ok := s.Get(KeyTicket)
	return t, ok && t != ""
}

func (s *Store) load() map[string]string {
	data := make(map[string]string)
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.log.Warn().Err(err).Str("path", s.path).Msg("Reading state failed")
		}
		return data
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		s.log.Warn().Err(err).Str("path", s.path).Msg("Ignoring corrupt state file")
		return make(map[string]string)
	}
	if data == nil {
		// A literal null decodes cleanly into a nil map.
		data = make(map[string]string)
	}
	return data
}

func (s *Store) save(data map[string]string) error {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".state-*")
	if err != nil {
		return fmt.Errorf("create temp state: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("write state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close state: %w", err)
	}
	return os.Rename(tmp.Name(), s.path)
}
