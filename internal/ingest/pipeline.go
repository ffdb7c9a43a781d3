// Package ingest runs fetch cycles: it pulls audit items for one status,
// keeps only the ones never stored before and appends them as a sync entry.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/PratikDhanave/audit-sync-monitor/internal/ledger"
	"github.com/PratikDhanave/audit-sync-monitor/internal/models"
	"github.com/PratikDhanave/audit-sync-monitor/internal/store"
)

var (
	// ErrFetch matches failures talking to the provider.
	ErrFetch = errors.New("ingest: fetch failed")
	// ErrStore matches failures appending to the log.
	ErrStore = errors.New("ingest: append failed")
)

// FetchError reports a transient provider failure. Nothing was mutated.
type FetchError struct {
	Status models.Status
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching %s: %v", e.Status, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) Is(target error) bool { return target == ErrFetch }

// StoreError reports a failed append. The cycle's ledger marks were undone.
type StoreError struct {
	Status models.Status
	Err    error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("persisting %s entry: %v", e.Status, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func (e *StoreError) Is(target error) bool { return target == ErrStore }

// Fetcher returns the raw audit items the provider reports for a status.
type Fetcher interface {
	FetchAudits(ctx context.Context, status models.Status) ([]models.RawRecord, error)
}

// Pipeline owns the ledger and is the only writer of the log store.
type Pipeline struct {
	fetcher Fetcher
	store   store.LogStore
	ledger  *ledger.Ledger
	logger  *slog.Logger

	// Now stamps new entries. Replace it before the first cycle to pin time.
	Now func() time.Time

	// mu serializes ledger marking and append, so no two appends interleave
	// and the ledger never holds ids of an entry that failed to persist.
	mu sync.Mutex

	obsMu     sync.RWMutex
	observers []func(models.SyncEntry)
}

// New builds a Pipeline. l must already reflect the contents of st.
func New(f Fetcher, st store.LogStore, l *ledger.Ledger, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{fetcher: f, store: st, ledger: l, logger: logger, Now: time.Now}
}

// OnPersist registers fn to be called after every successful append.
func (p *Pipeline) OnPersist(fn func(models.SyncEntry)) {
	p.obsMu.Lock()
	defer p.obsMu.Unlock()
	p.observers = append(p.observers, fn)
}

// Ledger exposes the dedup ledger for diagnostics.
func (p *Pipeline) Ledger() *ledger.Ledger { return p.ledger }

// RunCycle performs one fetch cycle for status. It returns the persisted entry,
// or nil when the provider reported nothing new. Errors are *FetchError or
// *StoreError.
func (p *Pipeline) RunCycle(ctx context.Context, status models.Status) (*models.SyncEntry, error) {
	raws, err := p.fetcher.FetchAudits(ctx, status)
	if err != nil {
		ferr := &FetchError{Status: status, Err: err}
		p.logger.Warn("fetch failed", "status", status, "error", err)
		return nil, ferr
	}

	records := make([]models.AuditRecord, 0, len(raws))
	for _, raw := range raws {
		rec := models.NormalizeRecord(raw)
		if rec.ID.IsZero() {
			p.logger.Warn("dropping audit record without id", "status", status, "operator", rec.OperatorName)
			continue
		}
		records = append(records, rec)
	}

	entry, err := p.commit(ctx, status, records, len(raws))
	if err != nil {
		p.logger.Error("append failed", "status", status, "error", err)
		return nil, err
	}
	if entry == nil {
		p.logger.Debug("no new records", "status", status, "seen", len(raws))
		return nil, nil
	}

	p.logger.Info("saved new records",
		"status", status,
		"new", entry.NewCount,
		"seen", entry.TotalSeenCount,
		"entry_id", entry.ID,
	)
	p.notify(*entry)
	return entry, nil
}

func (p *Pipeline) commit(ctx context.Context, status models.Status, records []models.AuditRecord, seen int) (*models.SyncEntry, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fresh := make([]models.AuditRecord, 0, len(records))
	marked := make([]models.RecordID, 0, len(records))
	operators := map[string]int{}
	for _, rec := range records {
		if !p.ledger.CheckAndMark(rec.ID) {
			continue
		}
		fresh = append(fresh, rec)
		marked = append(marked, rec.ID)
		operators[rec.OperatorName]++
	}
	if len(fresh) == 0 {
		return nil, nil
	}

	entry := models.SyncEntry{
		ID:             uuid.NewString(),
		Timestamp:      models.FormatTimestamp(p.Now()),
		Status:         status,
		NewCount:       len(fresh),
		TotalSeenCount: seen,
		OperatorCounts: operators,
		Records:        fresh,
	}
	if err := p.store.Append(ctx, entry); err != nil {
		p.ledger.Forget(marked)
		return nil, &StoreError{Status: status, Err: err}
	}
	return &entry, nil
}

func (p *Pipeline) notify(e models.SyncEntry) {
	p.obsMu.RLock()
	defer p.obsMu.RUnlock()
	for _, fn := range p.observers {
		fn(e)
	}
}
