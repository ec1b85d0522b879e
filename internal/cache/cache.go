// Package cache keeps the last fetched device list in a local SQLite database
// so `byctl devices --offline` works without the network.
package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/bringyour/byctl/internal/api"
)

// Cache is a device cache backed by SQLite.
type Cache struct {
	db  *sql.DB
	now func() time.Time
}

// Entry is the cached device list together with when it was stored.
type Entry struct {
	Devices  []api.Device
	SavedAt  time.Time
	HasEntry bool
}

var schema = []string{`
CREATE TABLE IF NOT EXISTS devices (
	client_id TEXT PRIMARY KEY,
	position INTEGER NOT NULL,
	device_json TEXT NOT NULL,
	saved_at TEXT NOT NULL
)`, `
CREATE TABLE IF NOT EXISTS cache_meta (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	saved_at TEXT NOT NULL
)`}

// Open opens or creates the cache database at path.
func Open(path string) (*Cache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}
	if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set cache db busy timeout: %w", err)
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("initialize cache schema: %w", err)
		}
	}
	return &Cache{db: db, now: time.Now}, nil
}

// Close closes the database.
func (c *Cache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// SaveDevices replaces the cached device list. An empty list is still an
// entry: it records that the network had no devices.
func (c *Cache) SaveDevices(ctx context.Context, devices []api.Device) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin cache write: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM devices`); err != nil {
		return fmt.Errorf("clear cached devices: %w", err)
	}
	savedAt := c.now().UTC().Format(time.RFC3339Nano)
	for i, d := range devices {
		payload, err := json.Marshal(d)
		if err != nil {
			return fmt.Errorf("marshal device %s: %w", d.ClientID, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO devices (client_id, position, device_json, saved_at) VALUES (?, ?, ?, ?)`,
			d.ClientID, i, string(payload), savedAt,
		); err != nil {
			return fmt.Errorf("insert device %s: %w", d.ClientID, err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO cache_meta (id, saved_at) VALUES (1, ?)
ON CONFLICT(id) DO UPDATE SET saved_at = excluded.saved_at`,
		savedAt,
	); err != nil {
		return fmt.Errorf("record cache time: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit cache write: %w", err)
	}
	return nil
}

// LoadDevices returns the cached device list in the order it was saved.
func (c *Cache) LoadDevices(ctx context.Context) (Entry, error) {
	var entry Entry
	var savedAt string
	err := c.db.QueryRowContext(ctx, `SELECT saved_at FROM cache_meta WHERE id = 1`).Scan(&savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return entry, nil
	}
	if err != nil {
		return Entry{}, fmt.Errorf("read cache time: %w", err)
	}
	entry.HasEntry = true
	if ts, err := time.Parse(time.RFC3339Nano, savedAt); err == nil {
		entry.SavedAt = ts
	}

	rows, err := c.db.QueryContext(ctx, `SELECT device_json FROM devices ORDER BY position`)
	if err != nil {
		return Entry{}, fmt.Errorf("list cached devices: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var deviceJSON string
		if err := rows.Scan(&deviceJSON); err != nil {
			return Entry{}, fmt.Errorf("scan cached device: %w", err)
		}
		var d api.Device
		if err := json.Unmarshal([]byte(deviceJSON), &d); err != nil {
			return Entry{}, fmt.Errorf("unmarshal cached device: %w", err)
		}
		entry.Devices = append(entry.Devices, d)
	}
	if err := rows.Err(); err != nil {
		return Entry{}, fmt.Errorf("iterate cached devices: %w", err)
	}
	return entry, nil
}

// Clear removes all cached devices and the record that a list was saved.
func (c *Cache) Clear(ctx context.Context) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin cache clear: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"devices", "cache_meta"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit cache clear: %w", err)
	}
	return nil
}
