package domain

import "time"

// ExceptionType marks how an occurrence deviates from its series.
type ExceptionType string

const (
	ExceptionSkip     ExceptionType = "skip"     // occurrence suppressed
	ExceptionOverride ExceptionType = "override" // per-date field replacement
)

// OverrideData is a partial field map applied on top of the series base
// fields for a single date. Keys match Series.BaseFields.
type OverrideData map[string]any

// Clone returns a shallow copy of the payload.
func (o OverrideData) Clone() OverrideData {
	if o == nil {
		return nil
	}
	c := make(OverrideData, len(o))
	for k, v := range o {
		c[k] = v
	}
	return c
}

// MergeUnder lays base values under the override: keys already present in
// the override win, since they carry more specific user intent.
func (o OverrideData) MergeUnder(base map[string]any) OverrideData {
	merged := make(OverrideData, len(base)+len(o))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range o {
		merged[k] = v
	}
	return merged
}

// RecurrenceException is a per-date deviation from a series. At most one
// exists per (series, type, date); the store enforces this with an upsert on
// a unique index.
type RecurrenceException struct {
	ID         int64
	SeriesID   int64
	SeriesType SeriesType
	// Date is a calendar date with no meaningful time component.
	Date      time.Time
	Type      ExceptionType
	Override  OverrideData // populated only for ExceptionOverride
	CreatedAt time.Time
}

// ExceptionsByDate indexes exceptions by their calendar date key. The upsert
// uniqueness invariant guarantees at most one entry per date.
func ExceptionsByDate(exceptions []RecurrenceException) map[string]RecurrenceException {
	byDate := make(map[string]RecurrenceException, len(exceptions))
	for _, exc := range exceptions {
		byDate[DateKey(exc.Date)] = exc
	}
	return byDate
}
