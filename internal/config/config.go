package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
)

// Config holds the settings byctl reads from its config file and environment.
type Config struct {
	APIURL         string
	PollInterval   time.Duration
	RequestTimeout time.Duration
	CachePath      string
	SessionPath    string
	// JWT is only set from BY_JWT; the usual source is the session file.
	JWT string
}

const (
	defaultConfigPath     = "~/.config/byctl/config.toml"
	defaultCachePath      = "~/.local/share/byctl/cache.db"
	defaultSessionPath    = "~/.config/byctl/session.toml"
	defaultAPIURL         = "https://api.bringyour.com/"
	defaultPollInterval   = 2 * time.Second
	defaultRequestTimeout = 10 * time.Second

	envAPIURL = "BY_API_URL"
	envJWT    = "BY_JWT"
)

// DefaultPath returns the default config file path.
func DefaultPath() string {
	return defaultConfigPath
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		APIURL:         defaultAPIURL,
		PollInterval:   defaultPollInterval,
		RequestTimeout: defaultRequestTimeout,
		CachePath:      mustExpand(defaultCachePath),
		SessionPath:    mustExpand(defaultSessionPath),
	}
}

// LoadDotEnv loads a .env file from dir into the process environment without
// overriding variables that are already set. A missing file is not an error.
func LoadDotEnv(dir string) error {
	path := filepath.Join(dir, ".env")
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load locates and parses the byctl config, falling back to defaults when
// missing, then applies BY_API_URL and BY_JWT from the environment.
func Load(path string) (Config, error) {
	cfg, err := loadFile(path)
	if err != nil {
		return Config{}, err
	}
	applyEnv(&cfg)
	return cfg, nil
}

func loadFile(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw struct {
		APIURL         string  `toml:"api_url"`
		PollInterval   float64 `toml:"poll_interval"`
		RequestTimeout float64 `toml:"request_timeout"`
		CachePath      string  `toml:"cache_path"`
		SessionPath    string  `toml:"session_path"`
	}
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if apiURL := strings.TrimSpace(raw.APIURL); apiURL != "" {
		cfg.APIURL = apiURL
	}
	if raw.PollInterval < 0 || raw.RequestTimeout < 0 {
		return Config{}, fmt.Errorf("parse config: durations must not be negative")
	}
	if raw.PollInterval > 0 {
		cfg.PollInterval = seconds(raw.PollInterval)
	}
	if raw.RequestTimeout > 0 {
		cfg.RequestTimeout = seconds(raw.RequestTimeout)
	}
	if p := strings.TrimSpace(raw.CachePath); p != "" {
		cfg.CachePath = mustExpand(p)
	}
	if p := strings.TrimSpace(raw.SessionPath); p != "" {
		cfg.SessionPath = mustExpand(p)
	}

	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(envAPIURL)); v != "" {
		cfg.APIURL = v
	}
	if v := strings.TrimSpace(os.Getenv(envJWT)); v != "" {
		cfg.JWT = v
	}
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

// ExpandPath resolves a leading ~ and returns an absolute path.
func ExpandPath(path string) (string, error) {
	return expandPath(path)
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
