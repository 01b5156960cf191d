// Package credentials persists capectl's connection contexts: which
// server to talk to, as which user, and the last session id the server
// issued.
//
// The password is never stored. Cape authenticates every request, so
// capectl takes it from --password, CAPECTL_PASSWORD, or a prompt per
// invocation. The session id is kept so consecutive invocations within
// the server's timeout reuse one session instead of minting one per
// command.
package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

var (
	// ErrNoCurrentContext indicates no context is currently selected.
	ErrNoCurrentContext = errors.New("no current context set")
	// ErrContextNotFound indicates the named context doesn't exist.
	ErrContextNotFound = errors.New("context not found")
)

// Context is one saved server connection.
type Context struct {
	Server    string `json:"server"`
	Username  string `json:"username,omitempty"`
	SessionID uint32 `json:"session_id,omitempty"`
}

// Store reads and writes the capectl config file. All mutating methods
// save immediately; there is no separate flush step.
type Store struct {
	path     string
	current  string
	contexts map[string]*Context
}

// configFile is the JSON layout of the file on disk.
type configFile struct {
	CurrentContext string              `json:"current_context"`
	Contexts       map[string]*Context `json:"contexts"`
}

// NewStore opens the store at its default location,
// $XDG_CONFIG_HOME/capectl/config.json (falling back to ~/.config).
func NewStore() (*Store, error) {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("cannot determine home directory: %w", err)
		}
		configHome = filepath.Join(home, ".config")
	}
	return NewStoreAt(filepath.Join(configHome, "capectl", "config.json"))
}

// NewStoreAt opens the store backed by an explicit file path. A missing
// file yields an empty store; it is created on the first mutation.
func NewStoreAt(path string) (*Store, error) {
	s := &Store{path: path, contexts: make(map[string]*Context)}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, err
	}

	var file configFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("malformed config file %s: %w", path, err)
	}
	s.current = file.CurrentContext
	if file.Contexts != nil {
		s.contexts = file.Contexts
	}
	return s, nil
}

// save writes the store back to disk, owner-only permissions.
func (s *Store) save() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}
	data, err := json.MarshalIndent(configFile{
		CurrentContext: s.current,
		Contexts:       s.contexts,
	}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o600)
}

// Current returns the selected context.
func (s *Store) Current() (*Context, error) {
	if s.current == "" {
		return nil, ErrNoCurrentContext
	}
	ctx, ok := s.contexts[s.current]
	if !ok {
		return nil, ErrContextNotFound
	}
	return ctx, nil
}

// CurrentName returns the selected context's name, or "".
func (s *Store) CurrentName() string {
	return s.current
}

// Get returns the named context.
func (s *Store) Get(name string) (*Context, error) {
	ctx, ok := s.contexts[name]
	if !ok {
		return nil, ErrContextNotFound
	}
	return ctx, nil
}

// Names returns all context names, sorted.
func (s *Store) Names() []string {
	names := make([]string, 0, len(s.contexts))
	for name := range s.contexts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Set creates or replaces a named context. The first context saved
// becomes current.
func (s *Store) Set(name string, ctx *Context) error {
	s.contexts[name] = ctx
	if s.current == "" {
		s.current = name
	}
	return s.save()
}

// Use selects a context by name.
func (s *Store) Use(name string) error {
	if _, ok := s.contexts[name]; !ok {
		return ErrContextNotFound
	}
	s.current = name
	return s.save()
}

// Delete removes a context. Deleting the current one clears the
// selection.
func (s *Store) Delete(name string) error {
	if _, ok := s.contexts[name]; !ok {
		return ErrContextNotFound
	}
	delete(s.contexts, name)
	if s.current == name {
		s.current = ""
	}
	return s.save()
}

// SaveSession records the session id the server issued for the current
// context.
func (s *Store) SaveSession(sessionID uint32) error {
	ctx, err := s.Current()
	if err != nil {
		return err
	}
	ctx.SessionID = sessionID
	return s.save()
}
