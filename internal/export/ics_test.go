package export

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthplan/hearthplan/internal/domain"
)

func encodeSeries(t *testing.T, series *domain.Series) string {
	t.Helper()
	out, err := Encode(SeriesToCalendar(series))
	require.NoError(t, err)
	return out
}

func TestSeriesUIDStable(t *testing.T) {
	series := &domain.Series{ID: 7, Type: domain.SeriesTask}
	assert.Equal(t, "task-series-7@hearthplan", SeriesUID(series))
	assert.Equal(t, SeriesUID(series), SeriesUID(series))
}

func TestTaskSeriesExportsAsAllDay(t *testing.T) {
	series := &domain.Series{
		ID:          3,
		Type:        domain.SeriesTask,
		Title:       "Take out trash",
		Notes:       "Bins by the gate",
		SeriesStart: time.Date(2025, time.January, 6, 0, 0, 0, 0, time.UTC),
		RRule:       "FREQ=WEEKLY;INTERVAL=1;BYDAY=MO",
		ExDates: []time.Time{
			time.Date(2025, time.January, 13, 0, 0, 0, 0, time.UTC),
		},
		Task: &domain.TaskDetails{Points: 5},
	}

	out := encodeSeries(t, series)
	assert.Contains(t, out, "BEGIN:VEVENT")
	assert.Contains(t, out, "UID:task-series-3@hearthplan")
	assert.Contains(t, out, "SUMMARY:Take out trash")
	assert.Contains(t, out, "DESCRIPTION:Bins by the gate")
	assert.Contains(t, out, "DTSTART;VALUE=DATE:20250106")
	assert.Contains(t, out, "RRULE")
	assert.Contains(t, out, "FREQ=WEEKLY")
	assert.Contains(t, out, "BYDAY=MO")
	assert.Contains(t, out, "EXDATE;VALUE=DATE:20250113")
}

func TestEventSeriesExportsTimesAndLocation(t *testing.T) {
	series := &domain.Series{
		ID:          4,
		Type:        domain.SeriesEvent,
		Title:       "Swimming lesson",
		SeriesStart: time.Date(2025, time.January, 7, 17, 30, 0, 0, time.UTC),
		RRule:       "FREQ=WEEKLY;INTERVAL=1;BYDAY=TU",
		Event: &domain.EventDetails{
			Location:        "City pool",
			DurationMinutes: 45,
		},
	}

	out := encodeSeries(t, series)
	assert.Contains(t, out, "UID:event-series-4@hearthplan")
	assert.Contains(t, out, "LOCATION:City pool")
	assert.Contains(t, out, "20250107T173000Z")
	assert.Contains(t, out, "20250107T181500Z", "end derived from duration")
}

func TestAllDayEventExport(t *testing.T) {
	series := &domain.Series{
		ID:          5,
		Type:        domain.SeriesEvent,
		Title:       "School holiday",
		SeriesStart: time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC),
		Event:       &domain.EventDetails{IsAllDay: true},
	}

	out := encodeSeries(t, series)
	assert.Contains(t, out, "DTSTART;VALUE=DATE:20250201")
	assert.NotContains(t, out, "DTEND")
}
