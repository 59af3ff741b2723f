package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthplan/hearthplan/internal/domain"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func taskSeries(familyID int64) *domain.Series {
	return &domain.Series{
		FamilyID:    familyID,
		Type:        domain.SeriesTask,
		Title:       "Take out trash",
		SeriesStart: date(2025, time.January, 6),
		Rule: domain.RecurrenceRule{
			Frequency: domain.FreqWeekly,
			Interval:  1,
			Weekdays:  []domain.Weekday{domain.Monday, domain.Thursday},
			EndType:   domain.EndNever,
		},
		RRule:    "FREQ=WEEKLY;INTERVAL=1;BYDAY=MO,TH",
		IsActive: true,
		Task: &domain.TaskDetails{
			Points:         5,
			CompletionRule: "any_member",
			AssigneeIDs:    []int64{1, 2},
		},
	}
}

func TestSeriesRoundTrip(t *testing.T) {
	s := newTestStorage(t)

	series := taskSeries(1)
	require.NoError(t, s.CreateSeries(series))
	require.NotZero(t, series.ID)

	got, err := s.GetSeries(series.ID, domain.SeriesTask)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, "Take out trash", got.Title)
	assert.Equal(t, domain.FreqWeekly, got.Rule.Frequency)
	assert.Equal(t, []domain.Weekday{domain.Monday, domain.Thursday}, got.Rule.Weekdays)
	assert.Equal(t, domain.EndNever, got.Rule.EndType)
	assert.Equal(t, "FREQ=WEEKLY;INTERVAL=1;BYDAY=MO,TH", got.RRule)
	require.NotNil(t, got.Task)
	assert.Equal(t, 5, got.Task.Points)
	assert.Equal(t, []int64{1, 2}, got.Task.AssigneeIDs)
	assert.True(t, got.IsActive)
	assert.Nil(t, got.SeriesEnd)
	assert.Nil(t, got.OriginalSeriesID)
}

func TestEventSeriesRoundTrip(t *testing.T) {
	s := newTestStorage(t)

	series := &domain.Series{
		FamilyID:    1,
		Type:        domain.SeriesEvent,
		Title:       "Swimming lesson",
		SeriesStart: time.Date(2025, time.January, 7, 17, 30, 0, 0, time.UTC),
		Rule: domain.RecurrenceRule{
			Frequency: domain.FreqWeekly,
			Interval:  1,
			Weekdays:  []domain.Weekday{domain.Tuesday},
			EndType:   domain.EndNever,
		},
		IsActive: true,
		Event: &domain.EventDetails{
			Location:        "City pool",
			DurationMinutes: 45,
			AttendeeIDs:     []int64{3},
		},
	}
	require.NoError(t, s.CreateSeries(series))

	got, err := s.GetSeries(series.ID, domain.SeriesEvent)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.NotNil(t, got.Event)
	assert.Equal(t, "City pool", got.Event.Location)
	assert.Equal(t, 45, got.Event.DurationMinutes)
	assert.False(t, got.Event.IsAllDay)
	assert.Equal(t, []int64{3}, got.Event.AttendeeIDs)
}

func TestGetSeriesMissing(t *testing.T) {
	s := newTestStorage(t)
	got, err := s.GetSeries(42, domain.SeriesTask)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestUpdateSeries(t *testing.T) {
	s := newTestStorage(t)

	series := taskSeries(1)
	require.NoError(t, s.CreateSeries(series))

	end := date(2025, time.March, 31)
	series.Title = "Take out trash and recycling"
	series.Rule.EndType = domain.EndOnDate
	series.Rule.EndDate = &end
	series.SeriesEnd = &end
	series.ExDates = []time.Time{date(2025, time.January, 9)}
	require.NoError(t, s.UpdateSeries(series))

	got, err := s.GetSeries(series.ID, domain.SeriesTask)
	require.NoError(t, err)
	assert.Equal(t, "Take out trash and recycling", got.Title)
	assert.Equal(t, domain.EndOnDate, got.Rule.EndType)
	require.NotNil(t, got.Rule.EndDate)
	assert.True(t, domain.SameDate(end, *got.Rule.EndDate))
	require.NotNil(t, got.SeriesEnd)
	require.Len(t, got.ExDates, 1)
	assert.Equal(t, "2025-01-09", domain.DateKey(got.ExDates[0]))
}

func TestListSeriesByFamilyActiveOnly(t *testing.T) {
	s := newTestStorage(t)

	active := taskSeries(1)
	require.NoError(t, s.CreateSeries(active))

	inactive := taskSeries(1)
	inactive.Title = "Old chore"
	inactive.IsActive = false
	require.NoError(t, s.CreateSeries(inactive))

	other := taskSeries(2)
	require.NoError(t, s.CreateSeries(other))

	all, err := s.ListSeriesByFamily(1, domain.SeriesTask, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	activeOnly, err := s.ListSeriesByFamily(1, domain.SeriesTask, true)
	require.NoError(t, err)
	require.Len(t, activeOnly, 1)
	assert.Equal(t, active.ID, activeOnly[0].ID)
}

func TestSameIDInBothTables(t *testing.T) {
	// Task and event series live in separate tables, so ids overlap and
	// every lookup must carry the type.
	s := newTestStorage(t)

	task := taskSeries(1)
	require.NoError(t, s.CreateSeries(task))

	event := &domain.Series{
		FamilyID:    1,
		Type:        domain.SeriesEvent,
		Title:       "Family dinner",
		SeriesStart: date(2025, time.January, 5),
		Rule:        domain.RecurrenceRule{Frequency: domain.FreqWeekly, Interval: 1, EndType: domain.EndNever},
		IsActive:    true,
	}
	require.NoError(t, s.CreateSeries(event))
	require.Equal(t, task.ID, event.ID)

	gotTask, err := s.GetSeries(task.ID, domain.SeriesTask)
	require.NoError(t, err)
	gotEvent, err := s.GetSeries(event.ID, domain.SeriesEvent)
	require.NoError(t, err)
	assert.Equal(t, "Take out trash", gotTask.Title)
	assert.Equal(t, "Family dinner", gotEvent.Title)
}

func TestUpsertExceptionIdempotent(t *testing.T) {
	s := newTestStorage(t)

	series := taskSeries(1)
	require.NoError(t, s.CreateSeries(series))

	day := date(2025, time.January, 9)
	first, err := s.UpsertException(&domain.RecurrenceException{
		SeriesID:   series.ID,
		SeriesType: domain.SeriesTask,
		Date:       day,
		Type:       domain.ExceptionSkip,
	})
	require.NoError(t, err)

	// Same key again with a different payload replaces in place.
	second, err := s.UpsertException(&domain.RecurrenceException{
		SeriesID:   series.ID,
		SeriesType: domain.SeriesTask,
		Date:       day,
		Type:       domain.ExceptionOverride,
		Override:   domain.OverrideData{"title": "Deep clean"},
	})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, domain.ExceptionOverride, second.Type)
	assert.Equal(t, "Deep clean", second.Override["title"])

	all, err := s.ListExceptions(series.ID, domain.SeriesTask)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestListExceptionsFrom(t *testing.T) {
	s := newTestStorage(t)

	series := taskSeries(1)
	require.NoError(t, s.CreateSeries(series))

	for _, d := range []time.Time{
		date(2025, time.January, 9),
		date(2025, time.February, 6),
		date(2025, time.March, 6),
	} {
		_, err := s.UpsertException(&domain.RecurrenceException{
			SeriesID:   series.ID,
			SeriesType: domain.SeriesTask,
			Date:       d,
			Type:       domain.ExceptionSkip,
		})
		require.NoError(t, err)
	}

	from, err := s.ListExceptionsFrom(series.ID, domain.SeriesTask, date(2025, time.February, 1))
	require.NoError(t, err)
	require.Len(t, from, 2)
	assert.Equal(t, "2025-02-06", domain.DateKey(from[0].Date))
	assert.Equal(t, "2025-03-06", domain.DateKey(from[1].Date))
}

func TestReassignException(t *testing.T) {
	s := newTestStorage(t)

	original := taskSeries(1)
	require.NoError(t, s.CreateSeries(original))
	follow := taskSeries(1)
	follow.Title = "Take out trash (new)"
	require.NoError(t, s.CreateSeries(follow))

	day := date(2025, time.January, 9)
	exc, err := s.UpsertException(&domain.RecurrenceException{
		SeriesID:   original.ID,
		SeriesType: domain.SeriesTask,
		Date:       day,
		Type:       domain.ExceptionOverride,
		Override:   domain.OverrideData{"points": 10},
	})
	require.NoError(t, err)

	merged := domain.OverrideData{"points": 10, "title": "Take out trash (new)"}
	require.NoError(t, s.ReassignException(exc.ID, follow.ID, merged))

	gone, err := s.GetException(original.ID, domain.SeriesTask, day)
	require.NoError(t, err)
	assert.Nil(t, gone)

	moved, err := s.GetException(follow.ID, domain.SeriesTask, day)
	require.NoError(t, err)
	require.NotNil(t, moved)
	assert.Equal(t, exc.ID, moved.ID)
	assert.Equal(t, "Take out trash (new)", moved.Override["title"])
}

func TestDeleteExceptionsForSeries(t *testing.T) {
	s := newTestStorage(t)

	series := taskSeries(1)
	require.NoError(t, s.CreateSeries(series))
	_, err := s.UpsertException(&domain.RecurrenceException{
		SeriesID:   series.ID,
		SeriesType: domain.SeriesTask,
		Date:       date(2025, time.January, 9),
		Type:       domain.ExceptionSkip,
	})
	require.NoError(t, err)

	require.NoError(t, s.DeleteExceptionsForSeries(series.ID, domain.SeriesTask))
	all, err := s.ListExceptions(series.ID, domain.SeriesTask)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestMaterializedTaskLookup(t *testing.T) {
	s := newTestStorage(t)

	series := taskSeries(1)
	require.NoError(t, s.CreateSeries(series))

	day := date(2025, time.January, 6)
	task := &domain.Task{
		FamilyID:       1,
		Title:          "Take out trash",
		Points:         5,
		DueDate:        &day,
		SeriesID:       &series.ID,
		OccurrenceDate: &day,
	}
	require.NoError(t, s.CreateTask(task))

	got, err := s.GetTaskForOccurrence(series.ID, day)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, task.ID, got.ID)

	missing, err := s.GetTaskForOccurrence(series.ID, date(2025, time.January, 13))
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestLegacyRepeatingTasks(t *testing.T) {
	s := newTestStorage(t)

	legacy := &domain.Task{FamilyID: 1, Title: "Water plants", RepeatType: "daily", RepeatTime: "08:00"}
	require.NoError(t, s.CreateTask(legacy))
	plain := &domain.Task{FamilyID: 1, Title: "Fix the shelf"}
	require.NoError(t, s.CreateTask(plain))

	pending, err := s.ListLegacyRepeatingTasks(1)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, legacy.ID, pending[0].ID)

	require.NoError(t, s.MarkTaskMigrated(legacy.ID, 7))
	pending, err = s.ListLegacyRepeatingTasks(1)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestMembers(t *testing.T) {
	s := newTestStorage(t)

	m := &domain.Member{FamilyID: 1, Name: "Alice", Role: "parent", Color: "#ff8800"}
	require.NoError(t, s.CreateMember(m))
	require.NotZero(t, m.ID)

	got, err := s.GetMember(m.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Alice", got.Name)

	members, err := s.ListMembers(1)
	require.NoError(t, err)
	assert.Len(t, members, 1)
}
