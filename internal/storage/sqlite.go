package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hearthplan/hearthplan/internal/domain"

	_ "github.com/mattn/go-sqlite3"
)

type Storage struct {
	db *sql.DB
}

func New(dbPath string) (*Storage, error) {
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if dbPath == ":memory:" {
		// Each pool connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}

	s := &Storage{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS members (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			family_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			role TEXT NOT NULL DEFAULT 'parent',
			color TEXT DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_members_family_id ON members(family_id)`,
		// Task series: recurring chores, one row per series
		`CREATE TABLE IF NOT EXISTS task_series (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			family_id INTEGER NOT NULL,
			title TEXT NOT NULL,
			notes TEXT DEFAULT '',
			series_start DATETIME NOT NULL,
			series_end DATETIME,
			frequency TEXT NOT NULL,
			interval INTEGER NOT NULL DEFAULT 1,
			weekdays TEXT DEFAULT '',
			monthly_type TEXT DEFAULT '',
			month_day INTEGER DEFAULT 0,
			weekday_ordinal TEXT DEFAULT '',
			weekday_name TEXT DEFAULT '',
			end_type TEXT NOT NULL DEFAULT 'never',
			end_date DATETIME,
			end_count INTEGER DEFAULT 0,
			rrule TEXT DEFAULT '',
			exdates TEXT DEFAULT '',
			points INTEGER DEFAULT 0,
			completion_rule TEXT DEFAULT 'any_member',
			task_group TEXT DEFAULT '',
			assignees TEXT DEFAULT '',
			original_series_id INTEGER REFERENCES task_series(id),
			is_active INTEGER DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_task_series_family ON task_series(family_id)`,
		// Event series: recurring calendar events
		`CREATE TABLE IF NOT EXISTS event_series (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			family_id INTEGER NOT NULL,
			title TEXT NOT NULL,
			notes TEXT DEFAULT '',
			series_start DATETIME NOT NULL,
			series_end DATETIME,
			frequency TEXT NOT NULL,
			interval INTEGER NOT NULL DEFAULT 1,
			weekdays TEXT DEFAULT '',
			monthly_type TEXT DEFAULT '',
			month_day INTEGER DEFAULT 0,
			weekday_ordinal TEXT DEFAULT '',
			weekday_name TEXT DEFAULT '',
			end_type TEXT NOT NULL DEFAULT 'never',
			end_date DATETIME,
			end_count INTEGER DEFAULT 0,
			rrule TEXT DEFAULT '',
			exdates TEXT DEFAULT '',
			location TEXT DEFAULT '',
			duration_minutes INTEGER DEFAULT 60,
			is_all_day INTEGER DEFAULT 0,
			attendees TEXT DEFAULT '',
			original_series_id INTEGER REFERENCES event_series(id),
			is_active INTEGER DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_event_series_family ON event_series(family_id)`,
		// Per-date exceptions: at most one per (series, type, date)
		`CREATE TABLE IF NOT EXISTS recurrence_exceptions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			series_id INTEGER NOT NULL,
			series_type TEXT NOT NULL,
			exception_date DATE NOT NULL,
			exception_type TEXT NOT NULL,
			override_data TEXT DEFAULT '{}',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(series_id, series_type, exception_date)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_exceptions_series ON recurrence_exceptions(series_id, series_type)`,
		// Concrete tasks: legacy standalone rows and materialized occurrences
		`CREATE TABLE IF NOT EXISTS tasks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			family_id INTEGER NOT NULL,
			member_id INTEGER REFERENCES members(id),
			title TEXT NOT NULL,
			points INTEGER DEFAULT 0,
			due_date DATETIME,
			done_at DATETIME,
			repeat_type TEXT DEFAULT '',
			repeat_time TEXT DEFAULT '',
			migrated_series_id INTEGER,
			series_id INTEGER,
			occurrence_date DATE,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(series_id, occurrence_date)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_family ON tasks(family_id)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_due ON tasks(due_date)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			// Ignore "duplicate column" errors for ALTER TABLE
			if !strings.Contains(err.Error(), "duplicate column") {
				return fmt.Errorf("exec migration: %w", err)
			}
		}
	}
	return nil
}

func seriesTable(t domain.SeriesType) string {
	if t == domain.SeriesEvent {
		return "event_series"
	}
	return "task_series"
}

// === Members ===

func (s *Storage) CreateMember(m *domain.Member) error {
	res, err := s.db.Exec(
		`INSERT INTO members (family_id, name, role, color) VALUES (?, ?, ?, ?)`,
		m.FamilyID, m.Name, m.Role, m.Color,
	)
	if err != nil {
		return err
	}
	id, _ := res.LastInsertId()
	m.ID = id
	m.CreatedAt = time.Now()
	return nil
}

func (s *Storage) GetMember(id int64) (*domain.Member, error) {
	m := &domain.Member{}
	err := s.db.QueryRow(
		`SELECT id, family_id, name, role, color, created_at FROM members WHERE id = ?`,
		id,
	).Scan(&m.ID, &m.FamilyID, &m.Name, &m.Role, &m.Color, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return m, err
}

func (s *Storage) ListMembers(familyID int64) ([]*domain.Member, error) {
	rows, err := s.db.Query(
		`SELECT id, family_id, name, role, color, created_at FROM members WHERE family_id = ? ORDER BY name`,
		familyID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []*domain.Member
	for rows.Next() {
		m := &domain.Member{}
		if err := rows.Scan(&m.ID, &m.FamilyID, &m.Name, &m.Role, &m.Color, &m.CreatedAt); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// === Series ===

const taskSeriesColumns = `id, family_id, title, notes, series_start, series_end,
	frequency, interval, weekdays, monthly_type, month_day, weekday_ordinal, weekday_name,
	end_type, end_date, end_count, rrule, exdates,
	points, completion_rule, task_group, assignees,
	original_series_id, is_active, created_at, updated_at`

const eventSeriesColumns = `id, family_id, title, notes, series_start, series_end,
	frequency, interval, weekdays, monthly_type, month_day, weekday_ordinal, weekday_name,
	end_type, end_date, end_count, rrule, exdates,
	location, duration_minutes, is_all_day, attendees,
	original_series_id, is_active, created_at, updated_at`

func (s *Storage) CreateSeries(series *domain.Series) error {
	if !series.Type.Valid() {
		return fmt.Errorf("unknown series type: %q", series.Type)
	}

	var res sql.Result
	var err error
	if series.Type == domain.SeriesTask {
		task := series.Task
		if task == nil {
			task = &domain.TaskDetails{}
		}
		res, err = s.db.Exec(
			`INSERT INTO task_series (family_id, title, notes, series_start, series_end,
				frequency, interval, weekdays, monthly_type, month_day, weekday_ordinal, weekday_name,
				end_type, end_date, end_count, rrule, exdates,
				points, completion_rule, task_group, assignees, original_series_id, is_active)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			series.FamilyID, series.Title, series.Notes, series.SeriesStart, series.SeriesEnd,
			series.Rule.Frequency, series.Rule.Interval, domain.JoinWeekdays(series.Rule.Weekdays),
			series.Rule.MonthlyType, series.Rule.MonthDay, series.Rule.WeekdayOrdinal, series.Rule.WeekdayName,
			series.Rule.EndType, series.Rule.EndDate, series.Rule.EndCount,
			series.RRule, encodeDates(series.ExDates),
			task.Points, task.CompletionRule, task.TaskGroup, domain.JoinIDList(task.AssigneeIDs),
			series.OriginalSeriesID, series.IsActive,
		)
	} else {
		event := series.Event
		if event == nil {
			event = &domain.EventDetails{}
		}
		res, err = s.db.Exec(
			`INSERT INTO event_series (family_id, title, notes, series_start, series_end,
				frequency, interval, weekdays, monthly_type, month_day, weekday_ordinal, weekday_name,
				end_type, end_date, end_count, rrule, exdates,
				location, duration_minutes, is_all_day, attendees, original_series_id, is_active)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			series.FamilyID, series.Title, series.Notes, series.SeriesStart, series.SeriesEnd,
			series.Rule.Frequency, series.Rule.Interval, domain.JoinWeekdays(series.Rule.Weekdays),
			series.Rule.MonthlyType, series.Rule.MonthDay, series.Rule.WeekdayOrdinal, series.Rule.WeekdayName,
			series.Rule.EndType, series.Rule.EndDate, series.Rule.EndCount,
			series.RRule, encodeDates(series.ExDates),
			event.Location, event.DurationMinutes, event.IsAllDay, domain.JoinIDList(event.AttendeeIDs),
			series.OriginalSeriesID, series.IsActive,
		)
	}
	if err != nil {
		return err
	}
	id, _ := res.LastInsertId()
	series.ID = id
	series.CreatedAt = time.Now()
	series.UpdatedAt = series.CreatedAt
	return nil
}

func (s *Storage) GetSeries(id int64, t domain.SeriesType) (*domain.Series, error) {
	var columns string
	if t == domain.SeriesEvent {
		columns = eventSeriesColumns
	} else {
		columns = taskSeriesColumns
	}
	row := s.db.QueryRow(
		`SELECT `+columns+` FROM `+seriesTable(t)+` WHERE id = ?`, id,
	)
	series, err := scanSeries(row, t)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return series, err
}

func (s *Storage) ListSeriesByFamily(familyID int64, t domain.SeriesType, activeOnly bool) ([]*domain.Series, error) {
	var columns string
	if t == domain.SeriesEvent {
		columns = eventSeriesColumns
	} else {
		columns = taskSeriesColumns
	}
	query := `SELECT ` + columns + ` FROM ` + seriesTable(t) + ` WHERE family_id = ?`
	if activeOnly {
		query += ` AND is_active = 1`
	}
	query += ` ORDER BY series_start, id`

	rows, err := s.db.Query(query, familyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Series
	for rows.Next() {
		series, err := scanSeries(rows, t)
		if err != nil {
			return nil, err
		}
		out = append(out, series)
	}
	return out, rows.Err()
}

func (s *Storage) UpdateSeries(series *domain.Series) error {
	if series.Type == domain.SeriesTask {
		task := series.Task
		if task == nil {
			task = &domain.TaskDetails{}
		}
		_, err := s.db.Exec(
			`UPDATE task_series SET title = ?, notes = ?, series_start = ?, series_end = ?,
				frequency = ?, interval = ?, weekdays = ?, monthly_type = ?, month_day = ?,
				weekday_ordinal = ?, weekday_name = ?, end_type = ?, end_date = ?, end_count = ?,
				rrule = ?, exdates = ?, points = ?, completion_rule = ?, task_group = ?, assignees = ?,
				original_series_id = ?, is_active = ?, updated_at = ?
			 WHERE id = ?`,
			series.Title, series.Notes, series.SeriesStart, series.SeriesEnd,
			series.Rule.Frequency, series.Rule.Interval, domain.JoinWeekdays(series.Rule.Weekdays),
			series.Rule.MonthlyType, series.Rule.MonthDay, series.Rule.WeekdayOrdinal, series.Rule.WeekdayName,
			series.Rule.EndType, series.Rule.EndDate, series.Rule.EndCount,
			series.RRule, encodeDates(series.ExDates),
			task.Points, task.CompletionRule, task.TaskGroup, domain.JoinIDList(task.AssigneeIDs),
			series.OriginalSeriesID, series.IsActive, time.Now(),
			series.ID,
		)
		return err
	}

	event := series.Event
	if event == nil {
		event = &domain.EventDetails{}
	}
	_, err := s.db.Exec(
		`UPDATE event_series SET title = ?, notes = ?, series_start = ?, series_end = ?,
			frequency = ?, interval = ?, weekdays = ?, monthly_type = ?, month_day = ?,
			weekday_ordinal = ?, weekday_name = ?, end_type = ?, end_date = ?, end_count = ?,
			rrule = ?, exdates = ?, location = ?, duration_minutes = ?, is_all_day = ?, attendees = ?,
			original_series_id = ?, is_active = ?, updated_at = ?
		 WHERE id = ?`,
		series.Title, series.Notes, series.SeriesStart, series.SeriesEnd,
		series.Rule.Frequency, series.Rule.Interval, domain.JoinWeekdays(series.Rule.Weekdays),
		series.Rule.MonthlyType, series.Rule.MonthDay, series.Rule.WeekdayOrdinal, series.Rule.WeekdayName,
		series.Rule.EndType, series.Rule.EndDate, series.Rule.EndCount,
		series.RRule, encodeDates(series.ExDates),
		event.Location, event.DurationMinutes, event.IsAllDay, domain.JoinIDList(event.AttendeeIDs),
		series.OriginalSeriesID, series.IsActive, time.Now(),
		series.ID,
	)
	return err
}

func (s *Storage) DeleteSeries(id int64, t domain.SeriesType) error {
	_, err := s.db.Exec(`DELETE FROM `+seriesTable(t)+` WHERE id = ?`, id)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSeries(row rowScanner, t domain.SeriesType) (*domain.Series, error) {
	series := &domain.Series{Type: t}
	var weekdays, exdates string
	var endDate, seriesEnd sql.NullTime

	if t == domain.SeriesEvent {
		event := &domain.EventDetails{}
		var attendees string
		err := row.Scan(
			&series.ID, &series.FamilyID, &series.Title, &series.Notes, &series.SeriesStart, &seriesEnd,
			&series.Rule.Frequency, &series.Rule.Interval, &weekdays, &series.Rule.MonthlyType,
			&series.Rule.MonthDay, &series.Rule.WeekdayOrdinal, &series.Rule.WeekdayName,
			&series.Rule.EndType, &endDate, &series.Rule.EndCount, &series.RRule, &exdates,
			&event.Location, &event.DurationMinutes, &event.IsAllDay, &attendees,
			&series.OriginalSeriesID, &series.IsActive, &series.CreatedAt, &series.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		event.AttendeeIDs = domain.ParseIDList(attendees)
		series.Event = event
	} else {
		task := &domain.TaskDetails{}
		var assignees string
		err := row.Scan(
			&series.ID, &series.FamilyID, &series.Title, &series.Notes, &series.SeriesStart, &seriesEnd,
			&series.Rule.Frequency, &series.Rule.Interval, &weekdays, &series.Rule.MonthlyType,
			&series.Rule.MonthDay, &series.Rule.WeekdayOrdinal, &series.Rule.WeekdayName,
			&series.Rule.EndType, &endDate, &series.Rule.EndCount, &series.RRule, &exdates,
			&task.Points, &task.CompletionRule, &task.TaskGroup, &assignees,
			&series.OriginalSeriesID, &series.IsActive, &series.CreatedAt, &series.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		task.AssigneeIDs = domain.ParseIDList(assignees)
		series.Task = task
	}

	if seriesEnd.Valid {
		d := seriesEnd.Time
		series.SeriesEnd = &d
	}
	if endDate.Valid {
		d := endDate.Time
		series.Rule.EndDate = &d
	}
	days, err := domain.ParseWeekdays(weekdays)
	if err != nil {
		return nil, fmt.Errorf("series %d: %w", series.ID, err)
	}
	series.Rule.Weekdays = days
	series.ExDates = decodeDates(exdates)
	return series, nil
}

// encodeDates renders a date list as comma-separated yyyy-mm-dd keys.
func encodeDates(dates []time.Time) string {
	parts := make([]string, 0, len(dates))
	for _, d := range dates {
		parts = append(parts, domain.DateKey(d))
	}
	return strings.Join(parts, ",")
}

func decodeDates(s string) []time.Time {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var dates []time.Time
	for _, part := range strings.Split(s, ",") {
		if d, err := time.Parse("2006-01-02", strings.TrimSpace(part)); err == nil {
			dates = append(dates, d)
		}
	}
	return dates
}

// === Recurrence exceptions ===

// UpsertException creates or replaces the exception for its (series, type,
// date) key. The unique index serializes concurrent writers into
// last-write-wins; the store does a pure replace, merging happens at the
// call site.
func (s *Storage) UpsertException(exc *domain.RecurrenceException) (*domain.RecurrenceException, error) {
	overrideJSON, err := encodeOverride(exc.Override)
	if err != nil {
		return nil, fmt.Errorf("encode override: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO recurrence_exceptions (series_id, series_type, exception_date, exception_type, override_data)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(series_id, series_type, exception_date)
		 DO UPDATE SET exception_type = excluded.exception_type, override_data = excluded.override_data`,
		exc.SeriesID, exc.SeriesType, domain.DateOnly(exc.Date), exc.Type, overrideJSON,
	)
	if err != nil {
		return nil, err
	}
	return s.GetException(exc.SeriesID, exc.SeriesType, exc.Date)
}

func (s *Storage) GetException(seriesID int64, t domain.SeriesType, date time.Time) (*domain.RecurrenceException, error) {
	row := s.db.QueryRow(
		`SELECT id, series_id, series_type, exception_date, exception_type, override_data, created_at
		 FROM recurrence_exceptions WHERE series_id = ? AND series_type = ? AND exception_date = ?`,
		seriesID, t, domain.DateOnly(date),
	)
	exc, err := scanException(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return exc, err
}

func (s *Storage) ListExceptions(seriesID int64, t domain.SeriesType) ([]domain.RecurrenceException, error) {
	return s.listExceptions(
		`SELECT id, series_id, series_type, exception_date, exception_type, override_data, created_at
		 FROM recurrence_exceptions WHERE series_id = ? AND series_type = ? ORDER BY exception_date`,
		seriesID, t,
	)
}

// ListExceptionsFrom returns the exceptions dated on or after the given date.
func (s *Storage) ListExceptionsFrom(seriesID int64, t domain.SeriesType, from time.Time) ([]domain.RecurrenceException, error) {
	return s.listExceptions(
		`SELECT id, series_id, series_type, exception_date, exception_type, override_data, created_at
		 FROM recurrence_exceptions WHERE series_id = ? AND series_type = ? AND exception_date >= ?
		 ORDER BY exception_date`,
		seriesID, t, domain.DateOnly(from),
	)
}

func (s *Storage) listExceptions(query string, args ...any) ([]domain.RecurrenceException, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.RecurrenceException
	for rows.Next() {
		exc, err := scanException(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *exc)
	}
	return out, rows.Err()
}

// ReassignException moves an exception to another series and replaces its
// override payload, used when a split re-points exceptions past the split
// date.
func (s *Storage) ReassignException(excID, newSeriesID int64, override domain.OverrideData) error {
	overrideJSON, err := encodeOverride(override)
	if err != nil {
		return fmt.Errorf("encode override: %w", err)
	}
	_, err = s.db.Exec(
		`UPDATE recurrence_exceptions SET series_id = ?, override_data = ? WHERE id = ?`,
		newSeriesID, overrideJSON, excID,
	)
	return err
}

// UpdateExceptionOverride replaces only the override payload.
func (s *Storage) UpdateExceptionOverride(excID int64, override domain.OverrideData) error {
	overrideJSON, err := encodeOverride(override)
	if err != nil {
		return fmt.Errorf("encode override: %w", err)
	}
	_, err = s.db.Exec(
		`UPDATE recurrence_exceptions SET override_data = ? WHERE id = ?`,
		overrideJSON, excID,
	)
	return err
}

func (s *Storage) DeleteException(seriesID int64, t domain.SeriesType, date time.Time) error {
	_, err := s.db.Exec(
		`DELETE FROM recurrence_exceptions WHERE series_id = ? AND series_type = ? AND exception_date = ?`,
		seriesID, t, domain.DateOnly(date),
	)
	return err
}

func (s *Storage) DeleteExceptionsForSeries(seriesID int64, t domain.SeriesType) error {
	_, err := s.db.Exec(
		`DELETE FROM recurrence_exceptions WHERE series_id = ? AND series_type = ?`,
		seriesID, t,
	)
	return err
}

func scanException(row rowScanner) (*domain.RecurrenceException, error) {
	exc := &domain.RecurrenceException{}
	var overrideJSON string
	err := row.Scan(&exc.ID, &exc.SeriesID, &exc.SeriesType, &exc.Date, &exc.Type, &overrideJSON, &exc.CreatedAt)
	if err != nil {
		return nil, err
	}
	exc.Override, err = decodeOverride(overrideJSON)
	if err != nil {
		return nil, fmt.Errorf("exception %d: decode override: %w", exc.ID, err)
	}
	return exc, nil
}

func encodeOverride(o domain.OverrideData) (string, error) {
	if len(o) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(o)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeOverride(s string) (domain.OverrideData, error) {
	if s == "" || s == "{}" {
		return nil, nil
	}
	var o domain.OverrideData
	if err := json.Unmarshal([]byte(s), &o); err != nil {
		return nil, err
	}
	return o, nil
}

// === Tasks ===

const taskColumns = `id, family_id, member_id, title, points, due_date, done_at,
	repeat_type, repeat_time, migrated_series_id, series_id, occurrence_date, created_at`

func (s *Storage) CreateTask(t *domain.Task) error {
	var occurrence *time.Time
	if t.OccurrenceDate != nil {
		d := domain.DateOnly(*t.OccurrenceDate)
		occurrence = &d
	}
	res, err := s.db.Exec(
		`INSERT INTO tasks (family_id, member_id, title, points, due_date, repeat_type, repeat_time, series_id, occurrence_date)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.FamilyID, t.MemberID, t.Title, t.Points, t.DueDate, t.RepeatType, t.RepeatTime, t.SeriesID, occurrence,
	)
	if err != nil {
		return err
	}
	id, _ := res.LastInsertId()
	t.ID = id
	t.CreatedAt = time.Now()
	return nil
}

func (s *Storage) GetTask(id int64) (*domain.Task, error) {
	row := s.db.QueryRow(`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return t, err
}

// GetTaskForOccurrence finds the materialized row for a series occurrence,
// the dedup check before materializing again.
func (s *Storage) GetTaskForOccurrence(seriesID int64, date time.Time) (*domain.Task, error) {
	row := s.db.QueryRow(
		`SELECT `+taskColumns+` FROM tasks WHERE series_id = ? AND occurrence_date = ?`,
		seriesID, domain.DateOnly(date),
	)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return t, err
}

func (s *Storage) ListTasksForDay(familyID int64, day time.Time) ([]*domain.Task, error) {
	dayStart := domain.DateOnly(day)
	dayEnd := dayStart.AddDate(0, 0, 1)
	rows, err := s.db.Query(
		`SELECT `+taskColumns+` FROM tasks
		 WHERE family_id = ? AND due_date >= ? AND due_date < ?
		 ORDER BY due_date`,
		familyID, dayStart, dayEnd,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []*domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// ListLegacyRepeatingTasks returns rows still carrying an embedded repeat
// pattern that were never migrated to a series. Already-migrated rows are
// excluded, which is what makes the migration scan idempotent.
func (s *Storage) ListLegacyRepeatingTasks(familyID int64) ([]*domain.Task, error) {
	rows, err := s.db.Query(
		`SELECT `+taskColumns+` FROM tasks
		 WHERE family_id = ? AND repeat_type != '' AND migrated_series_id IS NULL
		 ORDER BY id`,
		familyID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []*domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// MarkTaskMigrated flags a legacy row with the series that replaced it. The
// row itself is kept as an annotated artifact.
func (s *Storage) MarkTaskMigrated(taskID, seriesID int64) error {
	_, err := s.db.Exec(`UPDATE tasks SET migrated_series_id = ? WHERE id = ?`, seriesID, taskID)
	return err
}

func (s *Storage) MarkTaskDone(id int64) error {
	_, err := s.db.Exec(`UPDATE tasks SET done_at = ? WHERE id = ?`, time.Now(), id)
	return err
}

func (s *Storage) DeleteTask(id int64) error {
	_, err := s.db.Exec(`DELETE FROM tasks WHERE id = ?`, id)
	return err
}

func scanTask(row rowScanner) (*domain.Task, error) {
	t := &domain.Task{}
	err := row.Scan(&t.ID, &t.FamilyID, &t.MemberID, &t.Title, &t.Points, &t.DueDate, &t.DoneAt,
		&t.RepeatType, &t.RepeatTime, &t.MigratedSeriesID, &t.SeriesID, &t.OccurrenceDate, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return t, nil
}
