package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthplan/hearthplan/internal/domain"
)

func TestMigrateLegacyTasks(t *testing.T) {
	st, svc, _ := newTestService(t)
	migration := NewMigrationService(st, svc)

	due := date(2025, time.January, 8) // a Wednesday
	weekly := &domain.Task{FamilyID: 1, Title: "Water plants", Points: 3,
		RepeatType: "weekly", RepeatTime: "18:00", DueDate: &due}
	require.NoError(t, st.CreateTask(weekly))

	daily := &domain.Task{FamilyID: 1, Title: "Feed the cat", RepeatType: "daily"}
	require.NoError(t, st.CreateTask(daily))

	monthly := &domain.Task{FamilyID: 1, Title: "Pay allowance", RepeatType: "monthly", DueDate: &due}
	require.NoError(t, st.CreateTask(monthly))

	plain := &domain.Task{FamilyID: 1, Title: "Fix the shelf"}
	require.NoError(t, st.CreateTask(plain))

	migrated, err := migration.MigrateLegacyTasks(1)
	require.NoError(t, err)
	assert.Equal(t, 3, migrated)

	seriesList, err := st.ListSeriesByFamily(1, domain.SeriesTask, true)
	require.NoError(t, err)
	require.Len(t, seriesList, 3)

	byTitle := map[string]*domain.Series{}
	for _, sr := range seriesList {
		byTitle[sr.Title] = sr
	}

	wk := byTitle["Water plants"]
	require.NotNil(t, wk)
	assert.Equal(t, domain.FreqWeekly, wk.Rule.Frequency)
	assert.Equal(t, []domain.Weekday{domain.Wednesday}, wk.Rule.Weekdays)
	assert.Equal(t, 3, wk.Task.Points)
	assert.Equal(t, 18, wk.SeriesStart.Hour(), "repeat time carries over")

	mo := byTitle["Pay allowance"]
	require.NotNil(t, mo)
	assert.Equal(t, domain.FreqMonthly, mo.Rule.Frequency)
	assert.Equal(t, domain.MonthlyOnDay, mo.Rule.MonthlyType)
	assert.Equal(t, 8, mo.Rule.MonthDay)

	// The legacy rows survive, annotated with their series.
	row, err := st.GetTask(weekly.ID)
	require.NoError(t, err)
	require.NotNil(t, row.MigratedSeriesID)
	assert.Equal(t, wk.ID, *row.MigratedSeriesID)
}

func TestMigrateLegacyTasksIdempotent(t *testing.T) {
	st, svc, _ := newTestService(t)
	migration := NewMigrationService(st, svc)

	task := &domain.Task{FamilyID: 1, Title: "Feed the cat", RepeatType: "daily"}
	require.NoError(t, st.CreateTask(task))

	first, err := migration.MigrateLegacyTasks(1)
	require.NoError(t, err)
	assert.Equal(t, 1, first)

	second, err := migration.MigrateLegacyTasks(1)
	require.NoError(t, err)
	assert.Zero(t, second, "a second run finds nothing left")

	seriesList, err := st.ListSeriesByFamily(1, domain.SeriesTask, true)
	require.NoError(t, err)
	assert.Len(t, seriesList, 1)
}

func TestMigrateSkipsUnknownPattern(t *testing.T) {
	st, svc, _ := newTestService(t)
	migration := NewMigrationService(st, svc)

	odd := &domain.Task{FamilyID: 1, Title: "Strange chore", RepeatType: "fortnightly"}
	require.NoError(t, st.CreateTask(odd))

	migrated, err := migration.MigrateLegacyTasks(1)
	require.NoError(t, err)
	assert.Zero(t, migrated)

	// The row stays eligible rather than being lost.
	pending, err := st.ListLegacyRepeatingTasks(1)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}
