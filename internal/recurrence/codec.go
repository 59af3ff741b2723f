package recurrence

import (
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/hearthplan/hearthplan/internal/domain"
)

var byDayCodes = map[domain.Weekday]string{
	domain.Monday:    "MO",
	domain.Tuesday:   "TU",
	domain.Wednesday: "WE",
	domain.Thursday:  "TH",
	domain.Friday:    "FR",
	domain.Saturday:  "SA",
	domain.Sunday:    "SU",
}

// weekdayNames is indexed by rrule weekday number (0 = Monday).
var weekdayNames = []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// ToRRule maps a structured rule plus its series start to a recurrence
// string (FREQ, INTERVAL, BYDAY, BYMONTHDAY, UNTIL|COUNT). The mapping is
// deterministic; fields the rule cannot express are dropped rather than
// guessed, so a malformed rule still yields a parseable frequency+interval
// string.
func ToRRule(rule domain.RecurrenceRule, seriesStart time.Time) string {
	parts := []string{
		"FREQ=" + rruleFreqName(rule.Frequency),
		fmt.Sprintf("INTERVAL=%d", rule.Interval),
	}

	switch rule.Frequency {
	case domain.FreqWeekly:
		days := rule.Weekdays
		if len(days) == 0 {
			// Empty weekday set falls back to the start date's weekday,
			// mirroring the generator.
			days = []domain.Weekday{domain.WeekdayOf(seriesStart)}
		}
		codes := make([]string, 0, len(days))
		for _, d := range days {
			if code, ok := byDayCodes[d]; ok {
				codes = append(codes, code)
			}
		}
		if len(codes) > 0 {
			parts = append(parts, "BYDAY="+strings.Join(codes, ","))
		}
	case domain.FreqMonthly:
		switch rule.MonthlyType {
		case domain.MonthlyOnDay:
			if rule.MonthDay >= 1 && rule.MonthDay <= 31 {
				parts = append(parts, fmt.Sprintf("BYMONTHDAY=%d", rule.MonthDay))
			}
		case domain.MonthlyOnWeekday:
			n := rule.WeekdayOrdinal.OrdinalNumber()
			code, ok := byDayCodes[rule.WeekdayName]
			if n != 0 && ok {
				parts = append(parts, fmt.Sprintf("BYDAY=%d%s", n, code))
			}
		}
	}

	switch rule.EndType {
	case domain.EndOnDate:
		if rule.EndDate != nil {
			// End of the end date in UTC, so the last day stays inclusive.
			until := time.Date(rule.EndDate.Year(), rule.EndDate.Month(), rule.EndDate.Day(),
				23, 59, 59, 0, time.UTC)
			parts = append(parts, "UNTIL="+until.Format("20060102T150405Z"))
		}
	case domain.EndAfterCount:
		if rule.EndCount > 0 {
			parts = append(parts, fmt.Sprintf("COUNT=%d", rule.EndCount))
		}
	}

	return strings.Join(parts, ";")
}

// Summary derives a best-effort human description from a recurrence string:
// "Every 2 weeks on Mon, Wed", "Every month on the last Friday", "Every day,
// 10 times". Malformed input degrades to whatever frequency and interval can
// be salvaged; this is display-only and never fails.
func Summary(rruleStr string) string {
	trimmed := strings.TrimSpace(rruleStr)
	if trimmed == "" {
		return "Repeats"
	}
	opt, err := rrule.StrToROption(trimmed)
	if err != nil {
		return salvageSummary(rruleStr)
	}

	var sb strings.Builder
	switch opt.Freq {
	case rrule.DAILY:
		sb.WriteString(everyN(opt.Interval, "day"))
	case rrule.WEEKLY:
		sb.WriteString(everyN(opt.Interval, "week"))
		if names := plainWeekdayNames(opt.Byweekday); len(names) > 0 {
			sb.WriteString(" on " + strings.Join(names, ", "))
		}
	case rrule.MONTHLY:
		sb.WriteString(everyN(opt.Interval, "month"))
		if len(opt.Bymonthday) == 1 {
			sb.WriteString(fmt.Sprintf(" on day %d", opt.Bymonthday[0]))
		} else if len(opt.Byweekday) == 1 && opt.Byweekday[0].N() != 0 {
			wd := opt.Byweekday[0]
			sb.WriteString(fmt.Sprintf(" on the %s %s", ordinalName(wd.N()), weekdayName(wd)))
		}
	case rrule.YEARLY:
		sb.WriteString(everyN(opt.Interval, "year"))
	default:
		return salvageSummary(rruleStr)
	}

	if opt.Count > 0 {
		sb.WriteString(fmt.Sprintf(", %d times", opt.Count))
	} else if !opt.Until.IsZero() {
		sb.WriteString(" until " + opt.Until.Format("Jan 2, 2006"))
	}

	return sb.String()
}

// salvageSummary scrapes FREQ and INTERVAL out of a string the parser
// rejected, e.g. legacy rows written by the day-stepping path.
func salvageSummary(rruleStr string) string {
	freq := ""
	interval := 1
	for _, part := range strings.Split(rruleStr, ";") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToUpper(kv[0]) {
		case "FREQ":
			freq = strings.ToUpper(kv[1])
		case "INTERVAL":
			fmt.Sscanf(kv[1], "%d", &interval)
		}
	}
	if interval < 1 {
		interval = 1
	}
	switch freq {
	case "DAILY":
		return everyN(interval, "day")
	case "WEEKLY":
		return everyN(interval, "week")
	case "MONTHLY":
		return everyN(interval, "month")
	case "YEARLY":
		return everyN(interval, "year")
	}
	return "Repeats"
}

func everyN(interval int, unit string) string {
	if interval <= 1 {
		return "Every " + unit
	}
	return fmt.Sprintf("Every %d %ss", interval, unit)
}

func weekdayName(wd rrule.Weekday) string {
	day := wd.Day()
	if day >= 0 && day < len(weekdayNames) {
		return weekdayNames[day]
	}
	return "Mon"
}

// plainWeekdayNames renders a BYDAY list without ordinal prefixes, in the
// order given.
func plainWeekdayNames(days []rrule.Weekday) []string {
	var names []string
	for _, wd := range days {
		names = append(names, weekdayName(wd))
	}
	return names
}

func ordinalName(n int) string {
	switch n {
	case 1:
		return "first"
	case 2:
		return "second"
	case 3:
		return "third"
	case 4:
		return "fourth"
	case -1:
		return "last"
	}
	return fmt.Sprintf("%d.", n)
}

func rruleFreqName(f domain.Frequency) string {
	switch f {
	case domain.FreqDaily:
		return "DAILY"
	case domain.FreqWeekly:
		return "WEEKLY"
	case domain.FreqMonthly:
		return "MONTHLY"
	case domain.FreqYearly:
		return "YEARLY"
	}
	return "DAILY"
}
