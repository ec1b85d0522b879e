package dashlog

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// FileName is the dashboard log written next to the device cache.
const FileName = "dash.log"

// Path returns the dashboard log path for a cache at cachePath.
func Path(cachePath string) string {
	return filepath.Join(filepath.Dir(cachePath), FileName)
}

// Open opens path for appending, creating its directory as needed.
func Open(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}
	return f, nil
}

// Tail returns at most maxLines from the end of the file at path, or every
// line when maxLines <= 0. A missing file yields no lines.
func Tail(path string, maxLines int) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open log: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	if maxLines <= 0 {
		var lines []string
		for scanner.Scan() {
			lines = append(lines, scanner.Text())
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read log: %w", err)
		}
		return lines, nil
	}

	// The ring grows with the file, so a large maxLines costs nothing extra.
	var ring []string
	idx := 0
	for scanner.Scan() {
		if len(ring) < maxLines {
			ring = append(ring, scanner.Text())
			continue
		}
		ring[idx] = scanner.Text()
		idx = (idx + 1) % maxLines
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}

	lines := make([]string, 0, len(ring))
	lines = append(lines, ring[idx:]...)
	return append(lines, ring[:idx]...), nil
}
