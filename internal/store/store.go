// Package store persists sync entries. Every backend is append-only: entries
// are written once and returned in the order they were appended.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/PratikDhanave/audit-sync-monitor/internal/metrics"
	"github.com/PratikDhanave/audit-sync-monitor/internal/models"
)

// ErrCorrupt is returned when the persisted log cannot be parsed. Callers treat
// the log as empty for the operation in progress.
var ErrCorrupt = errors.New("store: persisted log is corrupt")

// Drivers accepted by Open.
const (
	DriverJSON     = "json"
	DriverJSONL    = "jsonl"
	DriverPostgres = "postgres"
)

// LogStore is the durable collection of sync entries.
type LogStore interface {
	Append(ctx context.Context, e models.SyncEntry) error
	Entries(ctx context.Context) ([]models.SyncEntry, error)
	Ping(ctx context.Context) error
	Close() error
}

// RangeReader is implemented by stores that can filter by timestamp themselves.
type RangeReader interface {
	EntriesBetween(ctx context.Context, from, to *time.Time) ([]models.SyncEntry, error)
}

// Options selects and configures a backend.
type Options struct {
	Driver string
	Path   string
	DBURL  string
}

// Open builds the backend named by opts.Driver.
func Open(ctx context.Context, opts Options, logger *slog.Logger) (LogStore, error) {
	switch opts.Driver {
	case DriverJSON, "":
		return NewJSONFileStore(opts.Path, logger)
	case DriverJSONL:
		return NewJSONLStore(opts.Path, logger)
	case DriverPostgres:
		st, err := NewPostgresStore(ctx, opts.DBURL)
		if err != nil {
			return nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		if err := st.EnsureSchema(ctx); err != nil {
			st.Close()
			return nil, fmt.Errorf("applying schema: %w", err)
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", opts.Driver)
	}
}

// ReadFile loads a file-backed log without opening it for writing, so it can
// run next to a live service. A missing file is an error.
func ReadFile(path, driver string, logger *slog.Logger) ([]models.SyncEntry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("opening sync log: %w", err)
	}
	switch driver {
	case DriverJSON, "":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		return decodeJSONArray(path, data)
	case DriverJSONL:
		return readJSONL(path, logger)
	default:
		return nil, fmt.Errorf("driver %q is not a file layout", driver)
	}
}

// Window returns the entries whose timestamp falls in the inclusive range
// [from, to]. A nil bound is open.
func Window(ctx context.Context, s LogStore, from, to *time.Time) ([]models.SyncEntry, error) {
	if rr, ok := s.(RangeReader); ok {
		return rr.EntriesBetween(ctx, from, to)
	}
	entries, err := s.Entries(ctx)
	if err != nil {
		return nil, err
	}
	if from == nil && to == nil {
		return entries, nil
	}
	return metrics.FilterRange(entries, from, to), nil
}
