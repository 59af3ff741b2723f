package service

import (
	"fmt"
	"log"
	"time"

	"github.com/hearthplan/hearthplan/internal/domain"
	"github.com/hearthplan/hearthplan/internal/storage"
)

// MigrationService converts legacy tasks with an embedded repeat pattern
// into proper task series. The legacy rows are kept and annotated with the
// series they became, so a re-run finds nothing left to migrate.
type MigrationService struct {
	storage *storage.Storage
	series  *SeriesService
}

func NewMigrationService(st *storage.Storage, series *SeriesService) *MigrationService {
	return &MigrationService{storage: st, series: series}
}

// MigrateLegacyTasks migrates every unconverted repeating task of the
// family. Rows with an unrecognized repeat pattern are skipped with a log
// line and stay eligible for a later run.
func (m *MigrationService) MigrateLegacyTasks(familyID int64) (int, error) {
	legacy, err := m.storage.ListLegacyRepeatingTasks(familyID)
	if err != nil {
		return 0, &PersistenceError{Op: "list legacy tasks", Err: err}
	}
	migrated := 0
	for _, task := range legacy {
		series, err := m.seriesFromLegacy(task)
		if err != nil {
			log.Printf("migration: skipping task %d: %v", task.ID, err)
			continue
		}
		if err := m.series.Create(series); err != nil {
			return migrated, fmt.Errorf("migrate task %d: %w", task.ID, err)
		}
		if err := m.storage.MarkTaskMigrated(task.ID, series.ID); err != nil {
			return migrated, &PersistenceError{Op: "mark task migrated", Err: err}
		}
		migrated++
	}
	return migrated, nil
}

func (m *MigrationService) seriesFromLegacy(task *domain.Task) (*domain.Series, error) {
	start := legacyStart(task)
	rule := domain.RecurrenceRule{Interval: 1, EndType: domain.EndNever}
	switch task.RepeatType {
	case "daily":
		rule.Frequency = domain.FreqDaily
	case "weekly":
		rule.Frequency = domain.FreqWeekly
		rule.Weekdays = []domain.Weekday{domain.WeekdayOf(start)}
	case "monthly":
		rule.Frequency = domain.FreqMonthly
		rule.MonthlyType = domain.MonthlyOnDay
		rule.MonthDay = start.Day()
	default:
		return nil, fmt.Errorf("unknown repeat pattern %q", task.RepeatType)
	}
	series := &domain.Series{
		FamilyID:    task.FamilyID,
		Type:        domain.SeriesTask,
		Title:       task.Title,
		SeriesStart: start,
		Rule:        rule,
		Task:        &domain.TaskDetails{Points: task.Points},
	}
	if task.MemberID != nil {
		series.Task.AssigneeIDs = []int64{*task.MemberID}
	}
	return series, nil
}

// legacyStart picks the series anchor: the task due date when present,
// otherwise the day it was created, with the repeat time applied.
func legacyStart(task *domain.Task) time.Time {
	day := task.CreatedAt
	if task.DueDate != nil {
		day = *task.DueDate
	}
	day = domain.DateOnly(day)
	if task.RepeatTime != "" {
		if at, err := time.ParseInLocation("15:04", task.RepeatTime, day.Location()); err == nil {
			day = day.Add(time.Duration(at.Hour())*time.Hour + time.Duration(at.Minute())*time.Minute)
		}
	}
	return day
}
