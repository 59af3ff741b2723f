package domain

import (
	"fmt"
	"strings"
	"time"
)

// Frequency is the base unit of a recurrence rule.
type Frequency string

const (
	FreqDaily   Frequency = "daily"
	FreqWeekly  Frequency = "weekly"
	FreqMonthly Frequency = "monthly"
	FreqYearly  Frequency = "yearly"
)

// MonthlyType selects how a monthly rule picks its day.
type MonthlyType string

const (
	MonthlyOnDay     MonthlyType = "on_day"     // fixed day of month (1-31)
	MonthlyOnWeekday MonthlyType = "on_weekday" // nth weekday, e.g. "second tuesday"
)

// WeekdayOrdinal positions a weekday inside a month for on_weekday rules.
type WeekdayOrdinal string

const (
	OrdinalFirst  WeekdayOrdinal = "first"
	OrdinalSecond WeekdayOrdinal = "second"
	OrdinalThird  WeekdayOrdinal = "third"
	OrdinalFourth WeekdayOrdinal = "fourth"
	OrdinalLast   WeekdayOrdinal = "last"
)

// EndType is the rule's end condition. Exactly one is active at a time.
type EndType string

const (
	EndNever      EndType = "never"
	EndOnDate     EndType = "on_date"
	EndAfterCount EndType = "after_count"
)

// Weekday is a lowercase weekday key ("monday".."sunday").
type Weekday string

const (
	Monday    Weekday = "monday"
	Tuesday   Weekday = "tuesday"
	Wednesday Weekday = "wednesday"
	Thursday  Weekday = "thursday"
	Friday    Weekday = "friday"
	Saturday  Weekday = "saturday"
	Sunday    Weekday = "sunday"
)

var weekdayToTime = map[Weekday]time.Weekday{
	Monday:    time.Monday,
	Tuesday:   time.Tuesday,
	Wednesday: time.Wednesday,
	Thursday:  time.Thursday,
	Friday:    time.Friday,
	Saturday:  time.Saturday,
	Sunday:    time.Sunday,
}

var timeToWeekday = map[time.Weekday]Weekday{
	time.Monday:    Monday,
	time.Tuesday:   Tuesday,
	time.Wednesday: Wednesday,
	time.Thursday:  Thursday,
	time.Friday:    Friday,
	time.Saturday:  Saturday,
	time.Sunday:    Sunday,
}

// Time converts the key to a time.Weekday. Unknown keys map to Monday.
func (w Weekday) Time() time.Weekday {
	if d, ok := weekdayToTime[w]; ok {
		return d
	}
	return time.Monday
}

// Valid reports whether w is one of the seven known keys.
func (w Weekday) Valid() bool {
	_, ok := weekdayToTime[w]
	return ok
}

// WeekdayOf returns the key for a concrete date.
func WeekdayOf(t time.Time) Weekday {
	return timeToWeekday[t.Weekday()]
}

// ParseWeekdays parses a comma-separated list of weekday keys ("monday,friday").
// Empty input yields an empty set, not an error.
func ParseWeekdays(s string) ([]Weekday, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var days []Weekday
	for _, part := range strings.Split(s, ",") {
		w := Weekday(strings.ToLower(strings.TrimSpace(part)))
		if !w.Valid() {
			return nil, fmt.Errorf("unknown weekday: %s", part)
		}
		days = append(days, w)
	}
	return days, nil
}

// JoinWeekdays renders a weekday set back to its comma-separated storage form.
func JoinWeekdays(days []Weekday) string {
	parts := make([]string, 0, len(days))
	for _, d := range days {
		parts = append(parts, string(d))
	}
	return strings.Join(parts, ",")
}

// RecurrenceRule is the abstract repeat pattern of a series. Fields that are
// irrelevant to the current frequency or monthly type may hold stale values
// from earlier edits; the generator ignores them.
type RecurrenceRule struct {
	Frequency      Frequency
	Interval       int
	Weekdays       []Weekday // weekly only; empty set defaults to the series start weekday
	MonthlyType    MonthlyType
	MonthDay       int // 1-31, monthly on_day
	WeekdayOrdinal WeekdayOrdinal
	WeekdayName    Weekday // monthly on_weekday
	EndType        EndType
	EndDate        *time.Time // on_date
	EndCount       int        // after_count
}

// Validate returns a list of field-level problems, empty when the rule is
// usable. seriesStart is needed to check end-date ordering; pass the zero
// time to skip that check.
func (r *RecurrenceRule) Validate(seriesStart time.Time) []string {
	var problems []string

	switch r.Frequency {
	case FreqDaily, FreqWeekly, FreqMonthly, FreqYearly:
	default:
		problems = append(problems, fmt.Sprintf("frequency: unknown value %q", r.Frequency))
	}

	if r.Interval <= 0 {
		problems = append(problems, fmt.Sprintf("interval: must be a positive integer, got %d", r.Interval))
	}

	if r.Frequency == FreqWeekly {
		for _, d := range r.Weekdays {
			if !d.Valid() {
				problems = append(problems, fmt.Sprintf("weekdays: unknown weekday %q", d))
			}
		}
	}

	if r.Frequency == FreqMonthly {
		switch r.MonthlyType {
		case MonthlyOnDay:
			if r.MonthDay < 1 || r.MonthDay > 31 {
				problems = append(problems, fmt.Sprintf("monthDay: must be 1-31, got %d", r.MonthDay))
			}
		case MonthlyOnWeekday:
			switch r.WeekdayOrdinal {
			case OrdinalFirst, OrdinalSecond, OrdinalThird, OrdinalFourth, OrdinalLast:
			default:
				problems = append(problems, fmt.Sprintf("weekdayOrdinal: unknown value %q", r.WeekdayOrdinal))
			}
			if !r.WeekdayName.Valid() {
				problems = append(problems, fmt.Sprintf("weekdayName: unknown weekday %q", r.WeekdayName))
			}
		default:
			problems = append(problems, fmt.Sprintf("monthlyType: unknown value %q", r.MonthlyType))
		}
	}

	switch r.EndType {
	case EndNever:
	case EndOnDate:
		if r.EndDate == nil {
			problems = append(problems, "endDate: required when endType is on_date")
		} else if !seriesStart.IsZero() && DateOnly(*r.EndDate).Before(DateOnly(seriesStart)) {
			problems = append(problems, "endDate: must not be before the series start")
		}
	case EndAfterCount:
		if r.EndCount <= 0 {
			problems = append(problems, fmt.Sprintf("endCount: must be a positive integer, got %d", r.EndCount))
		}
	default:
		problems = append(problems, fmt.Sprintf("endType: unknown value %q", r.EndType))
	}

	return problems
}

// OrdinalNumber maps an ordinal to its month position (1-4, -1 for last).
func (o WeekdayOrdinal) OrdinalNumber() int {
	switch o {
	case OrdinalFirst:
		return 1
	case OrdinalSecond:
		return 2
	case OrdinalThird:
		return 3
	case OrdinalFourth:
		return 4
	case OrdinalLast:
		return -1
	}
	return 0
}

// DateOnly truncates a time to its calendar date, keeping the location.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// DateKey renders a time as its yyyy-mm-dd calendar key. All per-date
// exception matching goes through this.
func DateKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// SameDate reports whether two times fall on the same calendar date.
func SameDate(a, b time.Time) bool {
	return DateKey(a) == DateKey(b)
}
