// Package metrics derives summary statistics from sync entries.
package metrics

import (
	"math"
	"sort"
	"time"

	"github.com/PratikDhanave/audit-sync-monitor/internal/models"
)

// maxPeakHours bounds Summary.PeakHours.
const maxPeakHours = 3

// Summarize aggregates entries. Hours of day are taken in loc; a nil loc means
// time.Local. Entries whose timestamp does not parse still count toward the
// totals but are left out of the timing statistics.
func Summarize(entries []models.SyncEntry, loc *time.Location) models.Summary {
	if loc == nil {
		loc = time.Local
	}

	s := models.Summary{
		TotalEntries:    len(entries),
		StatusBreakdown: map[models.Status]int{},
		PeakHours:       []models.PeakHour{},
	}
	if len(entries) == 0 {
		return s
	}

	operators := map[string]struct{}{}
	times := make([]time.Time, 0, len(entries))

	for _, e := range entries {
		s.StatusBreakdown[e.Status] += e.NewCount
		s.TotalProcessedItems += e.NewCount
		for op := range e.OperatorCounts {
			operators[op] = struct{}{}
		}
		if t, ok := e.Time(); ok {
			times = append(times, t)
		}
	}

	s.UniqueOperatorCount = len(operators)
	s.AverageInterArrivalSeconds = averageInterArrival(times)
	s.PeakHours = peakHours(entries, loc)
	return s
}

// averageInterArrival is the mean gap between consecutive sorted timestamps,
// in whole seconds rounded half up. Fewer than two timestamps yield 0.
func averageInterArrival(times []time.Time) int64 {
	if len(times) < 2 {
		return 0
	}
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })

	// The sum of consecutive gaps telescopes to last - first.
	total := times[len(times)-1].Sub(times[0])
	mean := total.Seconds() / float64(len(times)-1)
	return int64(math.Floor(mean + 0.5))
}

// peakHours accumulates NewCount per hour of day across all days and returns
// the top three by count. Ties keep the order in which hours first appeared.
func peakHours(entries []models.SyncEntry, loc *time.Location) []models.PeakHour {
	counts := map[int]int{}
	var order []int

	for _, e := range entries {
		t, ok := e.Time()
		if !ok {
			continue
		}
		h := t.In(loc).Hour()
		if _, seen := counts[h]; !seen {
			order = append(order, h)
		}
		counts[h] += e.NewCount
	}

	out := make([]models.PeakHour, 0, len(order))
	for _, h := range order {
		out = append(out, models.PeakHour{Hour: h, Count: counts[h]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })

	if len(out) > maxPeakHours {
		out = out[:maxPeakHours]
	}
	return out
}

// FilterRange keeps entries whose timestamp lies within [from, to], inclusive.
// A nil bound is open. Entries with a missing or malformed timestamp are
// dropped whenever a range is applied.
func FilterRange(entries []models.SyncEntry, from, to *time.Time) []models.SyncEntry {
	out := make([]models.SyncEntry, 0, len(entries))
	for _, e := range entries {
		t, ok := e.Time()
		if !ok {
			continue
		}
		if from != nil && t.Before(*from) {
			continue
		}
		if to != nil && t.After(*to) {
			continue
		}
		out = append(out, e)
	}
	return out
}

const dateOnly = "2006-01-02"

// ParseBound reads a range bound given as RFC3339 or as a bare YYYY-MM-DD date
// in loc. A bare date is the start of that day, or its last instant when
// endOfDay is set. An empty value is an open bound.
func ParseBound(v string, loc *time.Location, endOfDay bool) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return &t, nil
	}
	if loc == nil {
		loc = time.Local
	}
	d, err := time.ParseInLocation(dateOnly, v, loc)
	if err != nil {
		return nil, err
	}
	if endOfDay {
		d = d.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return &d, nil
}
