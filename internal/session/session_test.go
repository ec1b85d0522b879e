package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_MissingFileIsLoggedOut(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "session.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if s.LoggedIn() {
		t.Fatalf("LoggedIn = true for missing session")
	}
}

func TestSave_CreatesFileWithOwnerOnlyMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subdir", "session.toml")

	if err := Save(path, Session{JWT: "abc", NetworkName: "home"}); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("mode = %v, want 0600", info.Mode().Perm())
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if loaded.JWT != "abc" || loaded.NetworkName != "home" {
		t.Fatalf("loaded = %#v", loaded)
	}
	if loaded.CreatedAt.IsZero() || time.Since(loaded.CreatedAt) > time.Minute {
		t.Fatalf("CreatedAt = %v, want recent", loaded.CreatedAt)
	}
}

func TestSave_RejectsEmptyJWT(t *testing.T) {
	if err := Save(filepath.Join(t.TempDir(), "session.toml"), Session{}); err == nil {
		t.Fatalf("Save returned nil error for empty jwt")
	}
}

func TestLoad_ExpandsTilde(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	if err := Save("~/.config/byctl/session.toml", Session{JWT: "xyz"}); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(home, ".config", "byctl", "session.toml")); err != nil {
		t.Fatalf("session not written under HOME: %v", err)
	}
	s, err := Load("~/.config/byctl/session.toml")
	if err != nil || s.JWT != "xyz" {
		t.Fatalf("Load = %#v, %v", s, err)
	}
}

func TestLoad_InvalidTOMLIsLoggedOut(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.toml")
	if err := os.WriteFile(path, []byte("not valid toml {{{\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if s.LoggedIn() {
		t.Fatalf("LoggedIn = true for invalid file")
	}
}

func TestClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.toml")
	if err := Clear(path); err != nil {
		t.Fatalf("Clear on missing file returned error: %v", err)
	}
	if err := Save(path, Session{JWT: "abc"}); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	if err := Clear(path); err != nil {
		t.Fatalf("Clear returned error: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("session file still present: %v", err)
	}
}
