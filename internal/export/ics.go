package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/emersion/go-ical"

	"github.com/hearthplan/hearthplan/internal/domain"
)

// SeriesUID is the stable calendar UID for a series, so repeated publishes
// replace the same object.
func SeriesUID(series *domain.Series) string {
	return fmt.Sprintf("%s-series-%d@hearthplan", series.Type, series.ID)
}

// SeriesToCalendar renders a series as a VCALENDAR with a single recurring
// VEVENT. The persisted recurrence string goes out as RRULE and the
// exclusion list as EXDATE, so external calendars see the same occurrence
// set the internal generator produces.
func SeriesToCalendar(series *domain.Series) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, "-//hearthplan//Series//EN")

	vevent := ical.NewEvent()
	vevent.Props.SetText(ical.PropUID, SeriesUID(series))
	vevent.Props.SetText(ical.PropSummary, series.Title)
	if series.Notes != "" {
		vevent.Props.SetText(ical.PropDescription, series.Notes)
	}

	allDay := series.Type == domain.SeriesTask
	durationMinutes := 0
	if series.Type == domain.SeriesEvent && series.Event != nil {
		allDay = series.Event.IsAllDay
		durationMinutes = series.Event.DurationMinutes
		if series.Event.Location != "" {
			vevent.Props.SetText(ical.PropLocation, series.Event.Location)
		}
	}

	if allDay {
		vevent.Props.SetDate(ical.PropDateTimeStart, series.SeriesStart)
	} else {
		vevent.Props.SetDateTime(ical.PropDateTimeStart, series.SeriesStart.UTC())
		if durationMinutes > 0 {
			end := series.SeriesStart.Add(time.Duration(durationMinutes) * time.Minute)
			vevent.Props.SetDateTime(ical.PropDateTimeEnd, end.UTC())
		}
	}

	if series.RRule != "" {
		vevent.Props.SetText(ical.PropRecurrenceRule, series.RRule)
	}

	for _, exdate := range series.ExDates {
		prop := ical.NewProp(ical.PropExceptionDates)
		prop.Params.Set(ical.ParamValue, string(ical.ValueDate))
		prop.Value = exdate.Format("20060102")
		vevent.Props.Add(prop)
	}

	vevent.Props.SetDateTime(ical.PropDateTimeStamp, time.Now().UTC())

	cal.Children = append(cal.Children, vevent.Component)
	return cal
}

// Encode renders a calendar to its wire form.
func Encode(cal *ical.Calendar) (string, error) {
	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return "", fmt.Errorf("encode calendar: %w", err)
	}
	return buf.String(), nil
}
