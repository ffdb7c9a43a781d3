package store

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/PratikDhanave/audit-sync-monitor/internal/models"
)

// JSONLStore appends one JSON entry per line and reads by scanning the whole
// file. Lines that do not parse are skipped and reported, so a torn final
// line from a crash costs at most that entry.
type JSONLStore struct {
	path   string
	logger *slog.Logger

	mu sync.RWMutex
	f  logFile
}

// logFile is the part of *os.File the store writes through.
type logFile interface {
	io.Writer
	io.ReaderAt
	Stat() (os.FileInfo, error)
	Truncate(size int64) error
	Sync() error
	Close() error
}

// NewJSONLStore opens or creates path; the directory is created if missing.
func NewJSONLStore(path string, logger *slog.Logger) (*JSONLStore, error) {
	if path == "" {
		return nil, os.ErrInvalid
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	if err := terminateLastLine(f); err != nil {
		f.Close()
		return nil, fmt.Errorf("repairing %s: %w", path, err)
	}
	return &JSONLStore{path: path, logger: logger, f: f}, nil
}

// terminateLastLine adds a newline when the file ends mid-line, so the next
// append does not glue itself onto a torn entry.
func terminateLastLine(f logFile) error {
	st, err := f.Stat()
	if err != nil || st.Size() == 0 {
		return err
	}
	last := make([]byte, 1)
	if _, err := f.ReadAt(last, st.Size()-1); err != nil && err != io.EOF {
		return err
	}
	if last[0] == '\n' {
		return nil
	}
	_, err = f.Write([]byte{'\n'})
	return err
}

// Append writes e as a single line and syncs it to disk.
func (s *JSONLStore) Append(_ context.Context, e models.SyncEntry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("serializing sync entry: %w", err)
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.f == nil {
		return os.ErrClosed
	}
	st, err := s.f.Stat()
	if err != nil {
		return fmt.Errorf("appending sync entry: %w", err)
	}
	if _, err := s.f.Write(data); err != nil {
		// Cut a partial line so the next append starts on a clean line.
		if terr := s.f.Truncate(st.Size()); terr != nil {
			s.logger.Error("truncating partial sync log line", "path", s.path, "error", terr)
			_ = terminateLastLine(s.f)
		}
		return fmt.Errorf("appending sync entry: %w", err)
	}
	return s.f.Sync()
}

// Entries reads every parseable line in file order.
func (s *JSONLStore) Entries(_ context.Context) ([]models.SyncEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return readJSONL(s.path, s.logger)
}

// readJSONL scans path without writing to it. A missing file is empty.
func readJSONL(path string, logger *slog.Logger) ([]models.SyncEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var out []models.SyncEntry
	skipped := 0
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 64*1024*1024)
	for line := 1; sc.Scan(); line++ {
		b := bytes.TrimSpace(sc.Bytes())
		if len(b) == 0 {
			continue
		}
		var e models.SyncEntry
		if err := json.Unmarshal(b, &e); err != nil {
			skipped++
			logger.Error("skipping unreadable sync log line",
				"path", path,
				"line", line,
				"error", err,
			)
			continue
		}
		out = append(out, e)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, path, err)
	}
	if skipped > 0 {
		logger.Error("sync log has unreadable lines", "path", path, "skipped", skipped)
	}
	return out, nil
}

// Ping checks that the file is still open.
func (s *JSONLStore) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.f == nil {
		return os.ErrClosed
	}
	_, err := s.f.Stat()
	return err
}

// Close closes the underlying file.
func (s *JSONLStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}
