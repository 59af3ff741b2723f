package recurrence

import (
	"time"

	"github.com/hearthplan/hearthplan/internal/domain"
)

// stepStrategy is the legacy day-by-day stepping generator, kept as the
// fallback path for resilience during migration. It hand-rolls the calendar
// arithmetic, so its semantics are exactly those of the old implementation:
// week strides relative to the start week, monthly clamping to short months,
// Feb-29 anchors falling back to Feb-28.
type stepStrategy struct{}

func (s *stepStrategy) Name() string { return "step" }

func (s *stepStrategy) Expand(req Request) ([]time.Time, error) {
	bound := boundary(req)
	rangeStart := domain.DateOnly(req.RangeStart)
	limit := req.MaxInstances + len(req.Exceptions)

	var candidates []time.Time
	inWindow := 0
	count := 0

	// emit records a candidate and reports whether stepping should stop.
	emit := func(t time.Time) bool {
		date := domain.DateOnly(t)
		if date.Before(domain.DateOnly(req.SeriesStart)) {
			return false
		}
		if date.After(bound) {
			return true
		}
		count++
		candidates = append(candidates, t)
		if !date.Before(rangeStart) {
			inWindow++
			if inWindow >= limit {
				return true
			}
		}
		if req.Rule.EndType == domain.EndAfterCount && count >= req.Rule.EndCount {
			return true
		}
		return false
	}

	var err error
	switch req.Rule.Frequency {
	case domain.FreqDaily:
		err = s.stepDaily(req, bound, emit)
	case domain.FreqWeekly:
		err = s.stepWeekly(req, bound, emit)
	case domain.FreqMonthly:
		err = s.stepMonthly(req, bound, emit)
	case domain.FreqYearly:
		err = s.stepYearly(req, bound, emit)
	}
	if err != nil {
		return nil, err
	}
	return candidates, nil
}

func (s *stepStrategy) stepDaily(req Request, bound time.Time, emit func(time.Time) bool) error {
	cur := req.SeriesStart
	for i := 0; ; i++ {
		if i >= iterationGuard {
			return &GenerationError{Strategy: s.Name(), Reason: "daily iteration guard exceeded"}
		}
		if domain.DateOnly(cur).After(bound) {
			return nil
		}
		if emit(cur) {
			return nil
		}
		cur = cur.AddDate(0, 0, req.Rule.Interval)
	}
}

func (s *stepStrategy) stepWeekly(req Request, bound time.Time, emit func(time.Time) bool) error {
	days := req.Rule.Weekdays
	if len(days) == 0 {
		days = []domain.Weekday{domain.WeekdayOf(req.SeriesStart)}
	}
	wanted := make(map[time.Weekday]bool, len(days))
	for _, d := range days {
		wanted[d.Time()] = true
	}

	cur := req.SeriesStart
	for i := 0; ; i++ {
		if i >= iterationGuard {
			return &GenerationError{Strategy: s.Name(), Reason: "weekly iteration guard exceeded"}
		}
		if domain.DateOnly(cur).After(bound) {
			return nil
		}
		// Weeks are 7-day blocks counted from the start date; the interval
		// multiplies the week stride, not the day stride. Counting loop
		// iterations keeps this stable across DST transitions.
		weekIndex := i / 7
		if wanted[cur.Weekday()] && weekIndex%req.Rule.Interval == 0 {
			if emit(cur) {
				return nil
			}
		}
		cur = cur.AddDate(0, 0, 1)
	}
}

func (s *stepStrategy) stepMonthly(req Request, bound time.Time, emit func(time.Time) bool) error {
	start := req.SeriesStart
	for k := 0; ; k++ {
		if k >= iterationGuard {
			return &GenerationError{Strategy: s.Name(), Reason: "monthly iteration guard exceeded"}
		}
		monthStart := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, start.Location()).
			AddDate(0, k*req.Rule.Interval, 0)

		var day int
		switch req.Rule.MonthlyType {
		case domain.MonthlyOnDay:
			// Clamp to the last day of short months instead of skipping.
			day = req.Rule.MonthDay
			if last := daysInMonth(monthStart); day > last {
				day = last
			}
		case domain.MonthlyOnWeekday:
			n := req.Rule.WeekdayOrdinal.OrdinalNumber()
			if n == 0 {
				return &GenerationError{Strategy: s.Name(), Reason: "monthly on_weekday rule missing ordinal"}
			}
			day = nthWeekdayOfMonth(monthStart, req.Rule.WeekdayName.Time(), n)
			if day == 0 {
				// Month has no nth occurrence of that weekday.
				continue
			}
		default:
			return &GenerationError{Strategy: s.Name(), Reason: "monthly rule missing monthly type"}
		}

		cand := time.Date(monthStart.Year(), monthStart.Month(), day,
			start.Hour(), start.Minute(), start.Second(), 0, start.Location())
		if domain.DateOnly(cand).After(bound) {
			return nil
		}
		if emit(cand) {
			return nil
		}
	}
}

func (s *stepStrategy) stepYearly(req Request, bound time.Time, emit func(time.Time) bool) error {
	start := req.SeriesStart
	for k := 0; ; k++ {
		if k >= iterationGuard {
			return &GenerationError{Strategy: s.Name(), Reason: "yearly iteration guard exceeded"}
		}
		year := start.Year() + k*req.Rule.Interval
		day := start.Day()
		if start.Month() == time.February && day == 29 && !isLeapYear(year) {
			day = 28
		}
		cand := time.Date(year, start.Month(), day,
			start.Hour(), start.Minute(), start.Second(), 0, start.Location())
		if domain.DateOnly(cand).After(bound) {
			return nil
		}
		if emit(cand) {
			return nil
		}
	}
}

func daysInMonth(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location()).Day()
}

// nthWeekdayOfMonth returns the day-of-month of the nth (1-4) or last (-1)
// occurrence of the weekday, or 0 when the month has no such occurrence.
func nthWeekdayOfMonth(monthStart time.Time, wd time.Weekday, n int) int {
	last := daysInMonth(monthStart)
	if n == -1 {
		for d := last; d >= 1; d-- {
			if time.Date(monthStart.Year(), monthStart.Month(), d, 0, 0, 0, 0, monthStart.Location()).Weekday() == wd {
				return d
			}
		}
		return 0
	}
	seen := 0
	for d := 1; d <= last; d++ {
		if time.Date(monthStart.Year(), monthStart.Month(), d, 0, 0, 0, 0, monthStart.Location()).Weekday() == wd {
			seen++
			if seen == n {
				return d
			}
		}
	}
	return 0
}

func isLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}
