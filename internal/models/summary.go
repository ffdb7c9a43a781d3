package models

// PeakHour is an hour of day (0-23, merged across days) with its accumulated
// new-record count.
type PeakHour struct {
	Hour  int `json:"hour"`
	Count int `json:"count"`
}

// Summary holds the aggregate statistics over a slice of sync entries.
// It is always derived and never persisted.
type Summary struct {
	TotalEntries        int            `json:"totalRecords"`
	TotalProcessedItems int            `json:"totalProcessedItems"`
	StatusBreakdown     map[Status]int `json:"statusBreakdown"`
	UniqueOperatorCount int            `json:"uniqueOperators"`
	// AverageInterArrivalSeconds is the mean gap between consecutive entries.
	AverageInterArrivalSeconds int64      `json:"averageProcessingTime"`
	PeakHours                  []PeakHour `json:"peakHours"`
}
