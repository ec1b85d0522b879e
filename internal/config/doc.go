// Package config loads byctl's configuration file and environment overrides.
//
// # Configuration Discovery
//
// The Load function follows this resolution order:
//
//  1. If a path is explicitly provided (--config), use it
//  2. Otherwise, use ~/.config/byctl/config.toml (default)
//  3. If the config file doesn't exist, fall back to defaults
//  4. If the file exists but fields are missing/empty, use defaults
//  5. BY_API_URL and BY_JWT from the environment win over the file
//
// The CLI calls LoadDotEnv on the working directory before Load, so a local
// .env file can set BY_API_URL and BY_JWT during development. Variables that
// are already set in the environment are not replaced.
//
// # Default Values
//
//   - Config file: ~/.config/byctl/config.toml
//   - API URL: https://api.bringyour.com/
//   - Poll interval: 2 seconds
//   - Request timeout: 10 seconds
//   - Device cache: ~/.local/share/byctl/cache.db
//   - Session file: ~/.config/byctl/session.toml
//
// # TOML Format
//
//	api_url = "https://api.bringyour.com/"
//	poll_interval = 2      # seconds, fractions allowed
//	request_timeout = 10   # seconds
//	cache_path = "~/.local/share/byctl/cache.db"
//	session_path = "~/.config/byctl/session.toml"
//
// All fields are optional. Negative durations are rejected; zero means
// default. Tilde expansion is performed for both paths.
package config
