package models

import "time"

// TimestampLayout is the ISO-8601 form written into every sync entry.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// FormatTimestamp renders t in UTC with millisecond precision.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// SyncEntry is the persisted snapshot of one ingestion cycle. Only cycles
// that found new records produce an entry; entries are never mutated.
//
// The JSON keys match the legacy sync-metrics.json layout so existing data
// files load unchanged. ID was added later and is absent from old entries.
type SyncEntry struct {
	ID             string         `json:"id,omitempty"`
	Timestamp      string         `json:"timestamp"`
	Status         Status         `json:"status"`
	NewCount       int            `json:"count"`
	TotalSeenCount int            `json:"totalCount"`
	OperatorCounts map[string]int `json:"operatorCounts"`
	Records        []AuditRecord  `json:"registros"`
}

// Time parses the entry timestamp. ok is false when it is missing or malformed.
func (e SyncEntry) Time() (t time.Time, ok bool) {
	if e.Timestamp == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, e.Timestamp)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
