package models

import "fmt"

// Status is a remote status category under which audit records are grouped.
type Status string

const (
	StatusNotProcessed Status = "not_processed"
	StatusFailed       Status = "failed"
	// StatusSynced is only collected on explicit request.
	StatusSynced Status = "synced"
)

// AllStatuses returns every known category, periodic ones first.
func AllStatuses() []Status {
	return []Status{StatusNotProcessed, StatusFailed, StatusSynced}
}

// PeriodicStatuses returns the categories the scheduler polls on every tick.
func PeriodicStatuses() []Status {
	return []Status{StatusNotProcessed, StatusFailed}
}

// Periodic reports whether s belongs to the scheduled polling set.
func (s Status) Periodic() bool {
	return s == StatusNotProcessed || s == StatusFailed
}

// IsValid reports whether s is a known status category.
func (s Status) IsValid() bool {
	switch s {
	case StatusNotProcessed, StatusFailed, StatusSynced:
		return true
	}
	return false
}

// ParseStatus validates a status received from a caller.
func ParseStatus(v string) (Status, error) {
	s := Status(v)
	if !s.IsValid() {
		return "", fmt.Errorf("unknown status %q", v)
	}
	return s, nil
}
