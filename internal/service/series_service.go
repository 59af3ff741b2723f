package service

import (
	"fmt"
	"log"
	"time"

	"github.com/hearthplan/hearthplan/internal/domain"
	"github.com/hearthplan/hearthplan/internal/notify"
	"github.com/hearthplan/hearthplan/internal/recurrence"
	"github.com/hearthplan/hearthplan/internal/storage"
)

// SeriesService owns all writes to recurring series and their exceptions.
// Every successful mutation pings the notifier so dependent surfaces
// (agenda, calendar export) can refresh.
type SeriesService struct {
	storage  *storage.Storage
	expander *recurrence.Expander
	notifier notify.Notifier
}

func NewSeriesService(st *storage.Storage, n notify.Notifier) *SeriesService {
	return &SeriesService{
		storage:  st,
		expander: recurrence.NewExpander(),
		notifier: n,
	}
}

// SplitChanges carries the optional modifications applied to the follow-up
// series created by Split. Fields keys match Series.BaseFields keys; a nil
// Rule means the follow-up inherits the original recurrence rule.
type SplitChanges struct {
	Rule   *domain.RecurrenceRule
	Fields map[string]any
}

// SplitStep records the outcome of one stage of a split.
type SplitStep struct {
	Name string
	Done bool
	Err  error
}

// SplitResult reports what a split actually did. Splits are not atomic:
// when Err is set on a step, everything before it has already been written
// and the caller must surface the partial state instead of hiding it.
type SplitResult struct {
	Original        *domain.Series
	New             *domain.Series
	Steps           []SplitStep
	MovedExceptions int
}

// Create validates and persists a new series. The recurrence string is
// derived from the structured rule before the write so both stay in step.
func (s *SeriesService) Create(series *domain.Series) error {
	if !series.Type.Valid() {
		return &recurrence.ValidationError{Fields: []string{fmt.Sprintf("series_type: unknown type %q", series.Type)}}
	}
	if fields := series.Rule.Validate(series.SeriesStart); len(fields) > 0 {
		return &recurrence.ValidationError{Fields: fields}
	}
	series.RRule = recurrence.ToRRule(series.Rule, series.SeriesStart)
	series.IsActive = true
	if err := s.storage.CreateSeries(series); err != nil {
		return &PersistenceError{Op: "create series", Err: err}
	}
	s.changed(series.Type)
	return nil
}

// Update persists changes to a series and, when cascadeToOverrides is set,
// pushes the changed base values into the payloads of existing override
// exceptions. changedFields names BaseFields keys that the caller edited.
// Skip exceptions are never touched: a skipped date stays skipped.
func (s *SeriesService) Update(series *domain.Series, cascadeToOverrides bool, changedFields []string) error {
	if fields := series.Rule.Validate(series.SeriesStart); len(fields) > 0 {
		return &recurrence.ValidationError{Fields: fields}
	}
	series.RRule = recurrence.ToRRule(series.Rule, series.SeriesStart)
	if err := s.storage.UpdateSeries(series); err != nil {
		return &PersistenceError{Op: "update series", Err: err}
	}
	if cascadeToOverrides && len(changedFields) > 0 {
		if err := s.cascade(series, changedFields); err != nil {
			return err
		}
	}
	s.changed(series.Type)
	return nil
}

func (s *SeriesService) cascade(series *domain.Series, changedFields []string) error {
	exceptions, err := s.storage.ListExceptions(series.ID, series.Type)
	if err != nil {
		return &PersistenceError{Op: "list exceptions for cascade", Err: err}
	}
	base := series.BaseFields()
	for _, exc := range exceptions {
		if exc.Type != domain.ExceptionOverride {
			continue
		}
		override := exc.Override.Clone()
		if override == nil {
			override = domain.OverrideData{}
		}
		touched := false
		for _, field := range changedFields {
			if v, ok := base[field]; ok {
				override[field] = v
				touched = true
			}
		}
		if !touched {
			continue
		}
		if err := s.storage.UpdateExceptionOverride(exc.ID, override); err != nil {
			return &PersistenceError{Op: "cascade to override", Err: err}
		}
	}
	return nil
}

// Split truncates the original series the day before splitDate and creates a
// follow-up series starting at splitDate, linked via OriginalSeriesID.
// Exceptions dated on or after splitDate move to the follow-up; override
// payloads are re-based so per-date edits survive the move. The returned
// SplitResult is non-nil even on error and records how far the split got.
func (s *SeriesService) Split(originalID int64, t domain.SeriesType, splitDate time.Time, changes *SplitChanges) (*SplitResult, error) {
	original, err := s.storage.GetSeries(originalID, t)
	if err != nil {
		return nil, &PersistenceError{Op: "load series for split", Err: err}
	}
	if original == nil {
		return nil, fmt.Errorf("split: series %d (%s) not found", originalID, t)
	}
	splitDate = domain.DateOnly(splitDate)
	if !splitDate.After(domain.DateOnly(original.SeriesStart)) {
		return nil, &recurrence.ValidationError{
			Fields: []string{"split_date: must be after the series start date"},
		}
	}

	result := &SplitResult{Original: original}
	follow := original.Clone()

	// Truncate the original so its last possible occurrence is the day
	// before the split boundary.
	cutoff := splitDate.AddDate(0, 0, -1)
	original.Rule.EndType = domain.EndOnDate
	original.Rule.EndDate = &cutoff
	original.Rule.EndCount = 0
	original.SeriesEnd = &cutoff
	original.ExDates = datesBefore(original.ExDates, splitDate)
	original.RRule = recurrence.ToRRule(original.Rule, original.SeriesStart)
	if err := s.storage.UpdateSeries(original); err != nil {
		result.Steps = append(result.Steps, SplitStep{Name: "truncate original", Err: err})
		return result, &PersistenceError{Op: "truncate original series", Err: err}
	}
	result.Steps = append(result.Steps, SplitStep{Name: "truncate original", Done: true})

	// Build the follow-up from the pre-truncation clone.
	follow.ID = 0
	follow.SeriesStart = splitDate
	follow.SeriesEnd = nil
	follow.OriginalSeriesID = &original.ID
	follow.ExDates = datesFrom(follow.ExDates, splitDate)
	if changes != nil && changes.Rule != nil {
		follow.Rule = *changes.Rule
	}
	if changes != nil {
		for field, value := range changes.Fields {
			applyBaseField(follow, field, value)
		}
	}
	if fields := follow.Rule.Validate(follow.SeriesStart); len(fields) > 0 {
		result.Steps = append(result.Steps, SplitStep{Name: "create follow-up", Err: &recurrence.ValidationError{Fields: fields}})
		return result, &recurrence.ValidationError{Fields: fields}
	}
	follow.RRule = recurrence.ToRRule(follow.Rule, follow.SeriesStart)
	if err := s.storage.CreateSeries(follow); err != nil {
		result.Steps = append(result.Steps, SplitStep{Name: "create follow-up", Err: err})
		return result, &PersistenceError{Op: "create follow-up series", Err: err}
	}
	result.New = follow
	result.Steps = append(result.Steps, SplitStep{Name: "create follow-up", Done: true})

	// Move exceptions at or past the boundary. Override payloads get the
	// follow-up's changed base values merged underneath so the explicit
	// per-date edits still win.
	moved, err := s.moveExceptions(original, follow, splitDate, changes)
	result.MovedExceptions = moved
	if err != nil {
		result.Steps = append(result.Steps, SplitStep{Name: "move exceptions", Err: err})
		return result, err
	}
	result.Steps = append(result.Steps, SplitStep{Name: "move exceptions", Done: true})

	s.changed(t)
	return result, nil
}

func (s *SeriesService) moveExceptions(original, follow *domain.Series, splitDate time.Time, changes *SplitChanges) (int, error) {
	exceptions, err := s.storage.ListExceptionsFrom(original.ID, original.Type, splitDate)
	if err != nil {
		return 0, &PersistenceError{Op: "list exceptions for split", Err: err}
	}
	var changedBase map[string]any
	if changes != nil && len(changes.Fields) > 0 {
		changedBase = map[string]any{}
		base := follow.BaseFields()
		for field := range changes.Fields {
			if v, ok := base[field]; ok {
				changedBase[field] = v
			}
		}
	}
	moved := 0
	for _, exc := range exceptions {
		override := exc.Override
		if exc.Type == domain.ExceptionOverride && len(changedBase) > 0 {
			override = exc.Override.MergeUnder(changedBase)
		}
		if err := s.storage.ReassignException(exc.ID, follow.ID, override); err != nil {
			return moved, &PersistenceError{Op: "move exception", Err: err}
		}
		moved++
	}
	return moved, nil
}

// SkipOccurrence records a skip exception for one generated date and mirrors
// it onto the series exclusion list. Re-skipping the same date is a no-op.
func (s *SeriesService) SkipOccurrence(seriesID int64, t domain.SeriesType, date time.Time) (*domain.RecurrenceException, error) {
	series, err := s.storage.GetSeries(seriesID, t)
	if err != nil {
		return nil, &PersistenceError{Op: "load series for skip", Err: err}
	}
	if series == nil {
		return nil, fmt.Errorf("skip: series %d (%s) not found", seriesID, t)
	}
	exc, err := s.storage.UpsertException(&domain.RecurrenceException{
		SeriesID:   seriesID,
		SeriesType: t,
		Date:       domain.DateOnly(date),
		Type:       domain.ExceptionSkip,
	})
	if err != nil {
		return nil, &PersistenceError{Op: "upsert skip exception", Err: err}
	}
	if !series.HasExDate(date) {
		series.ExDates = append(series.ExDates, domain.DateOnly(date))
		if err := s.storage.UpdateSeries(series); err != nil {
			return nil, &PersistenceError{Op: "record exclusion date", Err: err}
		}
	}
	s.changed(t)
	return exc, nil
}

// OverrideOccurrence records per-date field replacements for one generated
// date. When an override already exists for the date, the new values are
// merged on top of it rather than wiping fields the caller did not send.
func (s *SeriesService) OverrideOccurrence(seriesID int64, t domain.SeriesType, date time.Time, override domain.OverrideData) (*domain.RecurrenceException, error) {
	series, err := s.storage.GetSeries(seriesID, t)
	if err != nil {
		return nil, &PersistenceError{Op: "load series for override", Err: err}
	}
	if series == nil {
		return nil, fmt.Errorf("override: series %d (%s) not found", seriesID, t)
	}
	merged := override.Clone()
	existing, err := s.storage.GetException(seriesID, t, date)
	if err != nil {
		return nil, &PersistenceError{Op: "load existing exception", Err: err}
	}
	if existing != nil && existing.Type == domain.ExceptionOverride {
		merged = override.MergeUnder(existing.Override)
	}
	exc, err := s.storage.UpsertException(&domain.RecurrenceException{
		SeriesID:   seriesID,
		SeriesType: t,
		Date:       domain.DateOnly(date),
		Type:       domain.ExceptionOverride,
		Override:   merged,
	})
	if err != nil {
		return nil, &PersistenceError{Op: "upsert override exception", Err: err}
	}
	s.changed(t)
	return exc, nil
}

// RestoreOccurrence removes the exception for one date, reverting the
// occurrence to the series base fields (or bringing a skipped date back).
// Restoring a date with no exception is a no-op.
func (s *SeriesService) RestoreOccurrence(seriesID int64, t domain.SeriesType, date time.Time) error {
	series, err := s.storage.GetSeries(seriesID, t)
	if err != nil {
		return &PersistenceError{Op: "load series for restore", Err: err}
	}
	if series == nil {
		return fmt.Errorf("restore: series %d (%s) not found", seriesID, t)
	}
	existing, err := s.storage.GetException(seriesID, t, date)
	if err != nil {
		return &PersistenceError{Op: "load exception for restore", Err: err}
	}
	if existing == nil {
		return nil
	}
	if err := s.storage.DeleteException(seriesID, t, date); err != nil {
		return &PersistenceError{Op: "delete exception", Err: err}
	}
	if existing.Type == domain.ExceptionSkip && series.HasExDate(date) {
		series.ExDates = datesExcept(series.ExDates, date)
		if err := s.storage.UpdateSeries(series); err != nil {
			return &PersistenceError{Op: "clear exclusion date", Err: err}
		}
	}
	s.changed(t)
	return nil
}

// Delete removes a series and everything hanging off it. Deletion is
// terminal; there is no undo or soft-delete path.
func (s *SeriesService) Delete(seriesID int64, t domain.SeriesType) error {
	if err := s.storage.DeleteExceptionsForSeries(seriesID, t); err != nil {
		return &PersistenceError{Op: "delete series exceptions", Err: err}
	}
	if err := s.storage.DeleteSeries(seriesID, t); err != nil {
		return &PersistenceError{Op: "delete series", Err: err}
	}
	s.changed(t)
	return nil
}

// Deactivate keeps the series row but stops it from generating occurrences.
func (s *SeriesService) Deactivate(seriesID int64, t domain.SeriesType) error {
	series, err := s.storage.GetSeries(seriesID, t)
	if err != nil {
		return &PersistenceError{Op: "load series", Err: err}
	}
	if series == nil {
		return fmt.Errorf("deactivate: series %d (%s) not found", seriesID, t)
	}
	series.IsActive = false
	if err := s.storage.UpdateSeries(series); err != nil {
		return &PersistenceError{Op: "deactivate series", Err: err}
	}
	s.changed(t)
	return nil
}

// Instances expands one series over a date range with its exceptions applied.
func (s *SeriesService) Instances(series *domain.Series, from, to time.Time) ([]domain.SeriesInstance, error) {
	exceptions, err := s.storage.ListExceptions(series.ID, series.Type)
	if err != nil {
		return nil, &PersistenceError{Op: "list exceptions", Err: err}
	}
	return s.expander.Generate(recurrence.Request{
		SeriesStart: series.SeriesStart,
		Rule:        series.Rule,
		Exceptions:  exceptions,
		RangeStart:  from,
		RangeEnd:    rangeEndFor(series, to),
	})
}

func (s *SeriesService) changed(t domain.SeriesType) {
	if s.notifier != nil {
		s.notifier.SeriesChanged(t)
	}
}

// rangeEndFor caps the expansion window at the series hard cutoff.
func rangeEndFor(series *domain.Series, to time.Time) time.Time {
	if series.SeriesEnd != nil && series.SeriesEnd.Before(to) {
		return *series.SeriesEnd
	}
	return to
}

func datesBefore(dates []time.Time, boundary time.Time) []time.Time {
	var kept []time.Time
	for _, d := range dates {
		if domain.DateOnly(d).Before(boundary) {
			kept = append(kept, d)
		}
	}
	return kept
}

func datesExcept(dates []time.Time, drop time.Time) []time.Time {
	var kept []time.Time
	for _, d := range dates {
		if !domain.SameDate(d, drop) {
			kept = append(kept, d)
		}
	}
	return kept
}

func datesFrom(dates []time.Time, boundary time.Time) []time.Time {
	var kept []time.Time
	for _, d := range dates {
		if !domain.DateOnly(d).Before(boundary) {
			kept = append(kept, d)
		}
	}
	return kept
}

// applyBaseField sets one overridable display field on the series. Unknown
// keys and wrong-typed values are ignored with a log line instead of failing
// the whole mutation.
func applyBaseField(series *domain.Series, field string, value any) {
	switch field {
	case "title":
		if v, ok := value.(string); ok {
			series.Title = v
			return
		}
	case "notes":
		if v, ok := value.(string); ok {
			series.Notes = v
			return
		}
	case "points":
		if series.Task != nil {
			if v, ok := asInt(value); ok {
				series.Task.Points = v
				return
			}
		}
	case "completion_rule":
		if series.Task != nil {
			if v, ok := value.(string); ok {
				series.Task.CompletionRule = v
				return
			}
		}
	case "task_group":
		if series.Task != nil {
			if v, ok := value.(string); ok {
				series.Task.TaskGroup = v
				return
			}
		}
	case "location":
		if series.Event != nil {
			if v, ok := value.(string); ok {
				series.Event.Location = v
				return
			}
		}
	case "duration_minutes":
		if series.Event != nil {
			if v, ok := asInt(value); ok {
				series.Event.DurationMinutes = v
				return
			}
		}
	case "is_all_day":
		if series.Event != nil {
			if v, ok := value.(bool); ok {
				series.Event.IsAllDay = v
				return
			}
		}
	}
	log.Printf("series: ignoring field %q with value %v", field, value)
}

// asInt accepts the numeric shapes an override payload can arrive in.
// JSON decoding hands back float64 for every number.
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}
