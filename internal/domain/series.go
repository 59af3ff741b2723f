package domain

import (
	"strconv"
	"strings"
	"time"
)

// SeriesType discriminates the two series variants. The task and event
// tables are structurally identical apart from the variant fields below.
type SeriesType string

const (
	SeriesTask  SeriesType = "task"
	SeriesEvent SeriesType = "event"
)

// Valid reports whether t is a known series type.
func (t SeriesType) Valid() bool {
	return t == SeriesTask || t == SeriesEvent
}

// TaskDetails holds the task-only fields of a series.
type TaskDetails struct {
	Points         int
	CompletionRule string // "any_member" or "all_members"
	TaskGroup      string
	AssigneeIDs    []int64
}

// EventDetails holds the event-only fields of a series.
type EventDetails struct {
	Location        string
	DurationMinutes int
	IsAllDay        bool
	AttendeeIDs     []int64
}

// Series is a persisted recurring definition: a rule anchored at a start
// date, from which concrete occurrences are derived. The discriminator Type
// selects which of Task/Event is populated; the other stays nil.
type Series struct {
	ID       int64
	FamilyID int64
	Type     SeriesType

	Title string
	Notes string

	// SeriesStart is the authoritative lower bound (DTSTART). Occurrences
	// before this date are never generated.
	SeriesStart time.Time
	// SeriesEnd is an optional hard cutoff, distinct from Rule.EndDate.
	// Split sets it on the truncated original.
	SeriesEnd *time.Time

	Rule RecurrenceRule
	// RRule is the persisted recurrence string, kept alongside the
	// structured rule for calendar-export parity.
	RRule string
	// ExDates mirrors skip exceptions for RRULE/EXDATE export parity.
	ExDates []time.Time

	// OriginalSeriesID links back to the series this one was split from.
	OriginalSeriesID *int64
	IsActive         bool

	Task  *TaskDetails
	Event *EventDetails

	CreatedAt time.Time
	UpdatedAt time.Time
}

// BaseFields returns the overridable display fields of the series as a flat
// map. Override payloads are shallow-merged on top of this.
func (s *Series) BaseFields() map[string]any {
	fields := map[string]any{
		"title": s.Title,
		"notes": s.Notes,
	}
	switch s.Type {
	case SeriesTask:
		if s.Task != nil {
			fields["points"] = s.Task.Points
			fields["completion_rule"] = s.Task.CompletionRule
			fields["task_group"] = s.Task.TaskGroup
		}
	case SeriesEvent:
		if s.Event != nil {
			fields["location"] = s.Event.Location
			fields["duration_minutes"] = s.Event.DurationMinutes
			fields["is_all_day"] = s.Event.IsAllDay
		}
	}
	return fields
}

// MemberIDs returns the assignee or attendee ids for the active variant.
func (s *Series) MemberIDs() []int64 {
	switch s.Type {
	case SeriesTask:
		if s.Task != nil {
			return s.Task.AssigneeIDs
		}
	case SeriesEvent:
		if s.Event != nil {
			return s.Event.AttendeeIDs
		}
	}
	return nil
}

// HasExDate reports whether the given date is already on the exclusion list.
func (s *Series) HasExDate(date time.Time) bool {
	for _, d := range s.ExDates {
		if SameDate(d, date) {
			return true
		}
	}
	return false
}

// Clone returns a deep copy, used by split to derive the follow-up series.
func (s *Series) Clone() *Series {
	c := *s
	c.Rule.Weekdays = append([]Weekday(nil), s.Rule.Weekdays...)
	if s.Rule.EndDate != nil {
		d := *s.Rule.EndDate
		c.Rule.EndDate = &d
	}
	if s.SeriesEnd != nil {
		d := *s.SeriesEnd
		c.SeriesEnd = &d
	}
	if s.OriginalSeriesID != nil {
		id := *s.OriginalSeriesID
		c.OriginalSeriesID = &id
	}
	c.ExDates = append([]time.Time(nil), s.ExDates...)
	if s.Task != nil {
		t := *s.Task
		t.AssigneeIDs = append([]int64(nil), s.Task.AssigneeIDs...)
		c.Task = &t
	}
	if s.Event != nil {
		e := *s.Event
		e.AttendeeIDs = append([]int64(nil), s.Event.AttendeeIDs...)
		c.Event = &e
	}
	return &c
}

// Member is a family member resolved from the member directory.
type Member struct {
	ID        int64
	FamilyID  int64
	Name      string
	Role      string // "parent" or "child"
	Color     string
	CreatedAt time.Time
}

// ParseIDList parses a comma-separated id list ("3,5") from storage.
func ParseIDList(s string) []int64 {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		if id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}

// JoinIDList renders an id list back to its storage form.
func JoinIDList(ids []int64) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, strconv.FormatInt(id, 10))
	}
	return strings.Join(parts, ",")
}
