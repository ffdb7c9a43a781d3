// Package ledger tracks every record identifier that has been persisted, so
// ingestion can tell new records from ones it already stored.
package ledger

import (
	"sort"
	"sync"

	"github.com/PratikDhanave/audit-sync-monitor/internal/models"
)

// Ledger is the in-memory set of seen record ids. It is never persisted on its
// own; FromEntries rebuilds it from the log on startup.
type Ledger struct {
	mu   sync.RWMutex
	seen map[string]struct{}
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{seen: make(map[string]struct{})}
}

// FromEntries returns a ledger holding every record id found in entries.
func FromEntries(entries []models.SyncEntry) *Ledger {
	l := New()
	l.Rebuild(entries)
	return l
}

// Rebuild marks every record id of entries, in storage order.
func (l *Ledger) Rebuild(entries []models.SyncEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, e := range entries {
		for _, r := range e.Records {
			if r.ID.IsZero() {
				continue
			}
			l.seen[r.ID.String()] = struct{}{}
		}
	}
}

// CheckAndMark records id as seen and returns true when it was not seen before.
// It returns false, without mutating, for known ids.
func (l *Ledger) CheckAndMark(id models.RecordID) bool {
	key := id.String()

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.seen[key]; ok {
		return false
	}
	l.seen[key] = struct{}{}
	return true
}

// Forget removes ids marked by a cycle whose append did not make it to the log.
func (l *Ledger) Forget(ids []models.RecordID) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, id := range ids {
		delete(l.seen, id.String())
	}
}

// Contains reports whether id has been seen.
func (l *Ledger) Contains(id models.RecordID) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	_, ok := l.seen[id.String()]
	return ok
}

// Len returns the number of distinct ids seen.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return len(l.seen)
}

// IDs returns a sorted snapshot of the membership.
func (l *Ledger) IDs() []string {
	l.mu.RLock()
	ids := make([]string, 0, len(l.seen))
	for id := range l.seen {
		ids = append(ids, id)
	}
	l.mu.RUnlock()

	sort.Strings(ids)
	return ids
}
