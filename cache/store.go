// Package cache persists the daemon's latest snapshot as JSON files so that
// short-lived commands (status) can read it without attaching to the stream.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Store provides a JSON file-based cache with per-key TTL.
// Files are stored in a flat directory:
//
//	~/.cache/stat-pulse/
//	  latest.json
//	  static.json
type Store struct {
	dir    string
	logger *slog.Logger
}

// NewStore creates a cache store at the given directory.
// The directory is created with 0700 permissions if it does not exist.
func NewStore(dir string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("cache: create directory %s: %w", dir, err)
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Store{dir: dir, logger: logger}, nil
}

// Dir returns the store directory.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) keyPath(key string) string {
	return filepath.Join(s.dir, key+".json")
}

// Get reads a cached value and reports whether it is within ttl.
// A missing key returns nil, false, nil. A stale entry is still returned.
// Entries that are not valid JSON are removed and treated as a miss.
func (s *Store) Get(key string, ttl time.Duration) (json.RawMessage, bool, error) {
	path := s.keyPath(key)

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("cache: stat %s: %w", key, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false, fmt.Errorf("cache: read %s: %w", key, err)
	}

	if !json.Valid(data) {
		s.logger.Warn("cache: removing corrupted entry", slog.String("key", key))
		_ = os.Remove(path)
		return nil, false, nil
	}

	fresh := time.Since(info.ModTime()) < ttl
	return json.RawMessage(data), fresh, nil
}

// Set writes a value with an atomic write (temp file, then rename), so a
// concurrent status read never sees a half-written snapshot.
func (s *Store) Set(key string, v any) error {
	encoded, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("cache: marshal %s: %w", key, err)
	}

	tmp, err := os.CreateTemp(s.dir, ".tmp-"+key+"-*.json")
	if err != nil {
		return fmt.Errorf("cache: create temp for %s: %w", key, err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpName)
		}
	}()

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("cache: chmod temp for %s: %w", key, err)
	}
	if _, err := tmp.Write(encoded); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("cache: write temp for %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("cache: close temp for %s: %w", key, err)
	}
	if err := os.Rename(tmpName, s.keyPath(key)); err != nil {
		return fmt.Errorf("cache: rename temp for %s: %w", key, err)
	}

	success = true
	return nil
}

// GetTyped reads and unmarshals a cached value into T.
// Returns nil if the key does not exist. An entry that does not decode into
// T is removed and treated as a miss.
func GetTyped[T any](s *Store, key string, ttl time.Duration) (*T, bool, error) {
	raw, fresh, err := s.Get(key, ttl)
	if err != nil || raw == nil {
		return nil, false, err
	}

	var result T
	if err := json.Unmarshal(raw, &result); err != nil {
		s.logger.Warn("cache: removing entry with unmarshal error",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		_ = os.Remove(s.keyPath(key))
		return nil, false, nil
	}
	return &result, fresh, nil
}

// SetTyped marshals and caches a value of type T.
func SetTyped[T any](s *Store, key string, v *T) error {
	return s.Set(key, v)
}
