package domain

import "time"

// Task is a concrete, completable task row. Two kinds live in the same
// table: legacy standalone tasks (possibly carrying an embedded repeat
// pattern from before series existed) and occurrences materialized from a
// task series for completion tracking.
type Task struct {
	ID       int64
	FamilyID int64
	MemberID *int64
	Title    string
	Points   int
	DueDate  *time.Time
	DoneAt   *time.Time

	// Legacy embedded recurrence, replaced by series. A migrated record is
	// kept as an annotated artifact rather than deleted.
	RepeatType       string // "daily", "weekly", "monthly" or empty
	RepeatTime       string // "HH:MM"
	MigratedSeriesID *int64

	// Set when the row was materialized from a series occurrence.
	SeriesID       *int64
	OccurrenceDate *time.Time

	CreatedAt time.Time
}

func (t *Task) IsDone() bool {
	return t.DoneAt != nil
}

// IsLegacyRepeating reports whether the row still carries an embedded repeat
// pattern that has not been migrated to a series.
func (t *Task) IsLegacyRepeating() bool {
	return t.RepeatType != "" && t.MigratedSeriesID == nil
}
