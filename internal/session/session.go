// Package session persists the logged-in network's JWT.
// The session is stored in ~/.config/byctl/session.toml unless configured otherwise.
package session

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/bringyour/byctl/internal/config"
)

// Session holds the credentials of the current login.
type Session struct {
	JWT         string    `toml:"jwt"`
	NetworkName string    `toml:"network_name,omitempty"`
	UserAuth    string    `toml:"user_auth,omitempty"`
	CreatedAt   time.Time `toml:"created_at"`
}

// LoggedIn reports whether the session carries a token.
func (s Session) LoggedIn() bool {
	return strings.TrimSpace(s.JWT) != ""
}

// Load reads the session from path. A missing or unreadable file yields an
// empty session, which callers treat as logged out.
func Load(path string) (Session, error) {
	resolved, err := config.ExpandPath(path)
	if err != nil {
		return Session{}, fmt.Errorf("resolve path: %w", err)
	}

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Session{}, nil
		}
		return Session{}, nil // Graceful degradation
	}
	defer func() { _ = file.Close() }()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Session{}, nil // Graceful degradation
	}

	var s Session
	if err := toml.Unmarshal(bytes, &s); err != nil {
		return Session{}, nil // Graceful degradation
	}
	s.JWT = strings.TrimSpace(s.JWT)
	return s, nil
}

// Save writes the session to path, creating directories as needed. The file
// is readable by the owner only.
func Save(path string, s Session) error {
	resolved, err := config.ExpandPath(path)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}
	if !s.LoggedIn() {
		return fmt.Errorf("save session: jwt is empty")
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC().Truncate(time.Second)
	}

	if err := os.MkdirAll(filepath.Dir(resolved), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}

	bytes, err := toml.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	if err := os.WriteFile(resolved, bytes, 0o600); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

// Clear removes the session file. Clearing a missing session is not an error.
func Clear(path string) error {
	resolved, err := config.ExpandPath(path)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}
	if err := os.Remove(resolved); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}
