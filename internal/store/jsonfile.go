package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/PratikDhanave/audit-sync-monitor/internal/models"
)

// JSONFileStore keeps the log as one indented JSON array, the layout of the
// legacy sync-metrics.json file. The array is cached in memory; each append
// rewrites the file through a temp file and rename so a crash never leaves a
// half-written array behind.
type JSONFileStore struct {
	path   string
	logger *slog.Logger

	mu      sync.RWMutex
	entries []models.SyncEntry
	// corrupt is set when the file on disk failed to parse. The store then
	// refuses to write so the damaged file is not replaced by a shorter one.
	corrupt error
}

// NewJSONFileStore loads path, creating its directory when missing.
// A file that does not parse does not fail construction; see ErrCorrupt.
func NewJSONFileStore(path string, logger *slog.Logger) (*JSONFileStore, error) {
	if path == "" {
		return nil, os.ErrInvalid
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}
	s := &JSONFileStore{path: path, logger: logger}

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("reading %s: %w", path, err)
	case len(data) == 0:
		return s, nil
	}

	entries, err := decodeJSONArray(path, data)
	if err != nil {
		s.corrupt = err
		logger.Error("sync log failed to parse; refusing writes until it is repaired",
			"path", path,
			"error", err,
		)
		return s, nil
	}
	s.entries = entries
	return s, nil
}

// decodeJSONArray parses the array layout. Empty data is an empty log.
func decodeJSONArray(path string, data []byte) ([]models.SyncEntry, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var entries []models.SyncEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, path, err)
	}
	return entries, nil
}

// Append adds e to the end of the log.
func (s *JSONFileStore) Append(_ context.Context, e models.SyncEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.corrupt != nil {
		return s.corrupt
	}

	next := make([]models.SyncEntry, len(s.entries), len(s.entries)+1)
	copy(next, s.entries)
	next = append(next, e)

	data, err := json.MarshalIndent(next, "", "  ")
	if err != nil {
		return fmt.Errorf("serializing sync log: %w", err)
	}
	if err := writeFileAtomic(s.path, data); err != nil {
		return fmt.Errorf("writing sync log: %w", err)
	}

	s.entries = next
	return nil
}

// Entries returns a snapshot of the log.
func (s *JSONFileStore) Entries(_ context.Context) ([]models.SyncEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.corrupt != nil {
		return nil, s.corrupt
	}
	out := make([]models.SyncEntry, len(s.entries))
	copy(out, s.entries)
	return out, nil
}

// Ping reports the corrupt state, if any.
func (s *JSONFileStore) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.corrupt
}

func (s *JSONFileStore) Close() error { return nil }

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
