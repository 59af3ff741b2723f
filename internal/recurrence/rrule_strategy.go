package recurrence

import (
	"time"

	"github.com/teambition/rrule-go"

	"github.com/hearthplan/hearthplan/internal/domain"
)

// iterationGuard bounds strategy loops so a misconfigured rule can never
// spin forever. Hitting it is a GenerationError, not a silent truncation.
const iterationGuard = 1_000_000

var rruleWeekdays = map[domain.Weekday]rrule.Weekday{
	domain.Monday:    rrule.MO,
	domain.Tuesday:   rrule.TU,
	domain.Wednesday: rrule.WE,
	domain.Thursday:  rrule.TH,
	domain.Friday:    rrule.FR,
	domain.Saturday:  rrule.SA,
	domain.Sunday:    rrule.SU,
}

// rruleStrategy is the primary expansion path, backed by teambition/rrule-go.
// The structured rule is mapped straight to ROption; the persisted string is
// never re-parsed for generation.
type rruleStrategy struct{}

func (s *rruleStrategy) Name() string { return "rrule" }

func (s *rruleStrategy) Expand(req Request) ([]time.Time, error) {
	opt, err := s.buildOption(req)
	if err != nil {
		return nil, err
	}

	r, err := rrule.NewRRule(*opt)
	if err != nil {
		return nil, &GenerationError{Strategy: s.Name(), Reason: "build rule", Err: err}
	}

	bound := boundary(req)
	rangeStart := domain.DateOnly(req.RangeStart)
	// Skip exceptions do not consume the instance cap, so collect enough
	// candidates to survive the overlay suppressing some of them.
	limit := req.MaxInstances + len(req.Exceptions)

	var candidates []time.Time
	inWindow := 0
	next := r.Iterator()
	for i := 0; ; i++ {
		if i >= iterationGuard {
			return nil, &GenerationError{Strategy: s.Name(), Reason: "iteration guard exceeded"}
		}
		t, ok := next()
		if !ok {
			break
		}
		date := domain.DateOnly(t)
		if date.After(bound) {
			break
		}
		candidates = append(candidates, t)
		if !date.Before(rangeStart) {
			inWindow++
			if inWindow >= limit {
				break
			}
		}
	}
	return candidates, nil
}

func (s *rruleStrategy) buildOption(req Request) (*rrule.ROption, error) {
	rule := req.Rule
	opt := &rrule.ROption{
		Interval: rule.Interval,
		Dtstart:  req.SeriesStart,
	}

	switch rule.Frequency {
	case domain.FreqDaily:
		opt.Freq = rrule.DAILY

	case domain.FreqWeekly:
		opt.Freq = rrule.WEEKLY
		days := rule.Weekdays
		if len(days) == 0 {
			days = []domain.Weekday{domain.WeekdayOf(req.SeriesStart)}
		}
		for _, d := range days {
			opt.Byweekday = append(opt.Byweekday, rruleWeekdays[d])
		}
		// Anchor week counting at the series start weekday so interval
		// strides are measured relative to the start week.
		opt.Wkst = rruleWeekdays[domain.WeekdayOf(req.SeriesStart)]

	case domain.FreqMonthly:
		opt.Freq = rrule.MONTHLY
		switch rule.MonthlyType {
		case domain.MonthlyOnDay:
			if rule.MonthDay <= 28 {
				opt.Bymonthday = []int{rule.MonthDay}
			} else {
				// Clamp to the last existing day instead of skipping short
				// months: offer 28..monthDay and take the latest present.
				for d := 28; d <= rule.MonthDay; d++ {
					opt.Bymonthday = append(opt.Bymonthday, d)
				}
				opt.Bysetpos = []int{-1}
			}
		case domain.MonthlyOnWeekday:
			n := rule.WeekdayOrdinal.OrdinalNumber()
			if n == 0 {
				return nil, &GenerationError{Strategy: s.Name(), Reason: "monthly on_weekday rule missing ordinal"}
			}
			wd := rruleWeekdays[rule.WeekdayName]
			opt.Byweekday = []rrule.Weekday{wd.Nth(n)}
		default:
			return nil, &GenerationError{Strategy: s.Name(), Reason: "monthly rule missing monthly type"}
		}

	case domain.FreqYearly:
		opt.Freq = rrule.YEARLY
		if req.SeriesStart.Month() == time.February && req.SeriesStart.Day() == 29 {
			// A Feb-29 anchor falls back to Feb-28 on non-leap years.
			opt.Bymonth = []int{2}
			opt.Bymonthday = []int{28, 29}
			opt.Bysetpos = []int{-1}
		}
	}

	switch rule.EndType {
	case domain.EndOnDate:
		if rule.EndDate != nil {
			end := *rule.EndDate
			opt.Until = time.Date(end.Year(), end.Month(), end.Day(), 23, 59, 59, 0, req.SeriesStart.Location())
		}
	case domain.EndAfterCount:
		opt.Count = rule.EndCount
	}

	return opt, nil
}
