package service

import (
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/hearthplan/hearthplan/internal/domain"
	"github.com/hearthplan/hearthplan/internal/recurrence"
	"github.com/hearthplan/hearthplan/internal/storage"
)

// Occurrence is one display-ready generated instance with overrides applied
// and member ids resolved against the directory.
type Occurrence struct {
	SeriesID   int64
	SeriesType domain.SeriesType
	Date       time.Time

	Title string
	Notes string

	// Task fields.
	Points         int
	CompletionRule string
	TaskGroup      string

	// Event fields.
	Location        string
	DurationMinutes int
	IsAllDay        bool

	IsException bool
	Members     []*domain.Member
}

// End returns the occurrence end time derived from its duration.
func (o *Occurrence) End() time.Time {
	if o.DurationMinutes <= 0 {
		return o.Date
	}
	return o.Date.Add(time.Duration(o.DurationMinutes) * time.Minute)
}

// InstanceService is the read side: it expands every active series of a
// family over a window and turns the results into display occurrences. It
// also materializes task occurrences into concrete task rows so completion
// state has somewhere to live.
type InstanceService struct {
	storage  *storage.Storage
	expander *recurrence.Expander
	// maxInstances caps expansion per series; zero uses the generator default.
	maxInstances int
}

func NewInstanceService(st *storage.Storage) *InstanceService {
	return &InstanceService{storage: st, expander: recurrence.NewExpander()}
}

func (s *InstanceService) SetMaxInstances(n int) {
	s.maxInstances = n
}

// ListFamilyOccurrences expands all active task and event series of the
// family over [from, to] and returns the occurrences sorted by date. A
// series with an invalid stored rule is skipped with a log line rather than
// failing the whole listing.
func (s *InstanceService) ListFamilyOccurrences(familyID int64, from, to time.Time) ([]Occurrence, error) {
	members, err := s.memberIndex(familyID)
	if err != nil {
		return nil, err
	}
	var out []Occurrence
	for _, t := range []domain.SeriesType{domain.SeriesTask, domain.SeriesEvent} {
		occs, err := s.expandType(familyID, t, from, to, members)
		if err != nil {
			return nil, err
		}
		out = append(out, occs...)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date.Equal(out[j].Date) {
			return out[i].Title < out[j].Title
		}
		return out[i].Date.Before(out[j].Date)
	})
	return out, nil
}

func (s *InstanceService) expandType(familyID int64, t domain.SeriesType, from, to time.Time, members map[int64]*domain.Member) ([]Occurrence, error) {
	series, err := s.storage.ListSeriesByFamily(familyID, t, true)
	if err != nil {
		return nil, &PersistenceError{Op: "list series", Err: err}
	}
	var out []Occurrence
	for _, sr := range series {
		exceptions, err := s.storage.ListExceptions(sr.ID, sr.Type)
		if err != nil {
			return nil, &PersistenceError{Op: "list exceptions", Err: err}
		}
		instances, err := s.expander.Generate(recurrence.Request{
			SeriesStart:  sr.SeriesStart,
			Rule:         sr.Rule,
			Exceptions:   exceptions,
			RangeStart:   from,
			RangeEnd:     rangeEndFor(sr, to),
			MaxInstances: s.maxInstances,
		})
		if err != nil {
			log.Printf("instances: skipping series %d (%s): %v", sr.ID, sr.Type, err)
			continue
		}
		for i := range instances {
			instances[i].Series = sr
			out = append(out, buildOccurrence(&instances[i], members))
		}
	}
	return out, nil
}

func (s *InstanceService) memberIndex(familyID int64) (map[int64]*domain.Member, error) {
	members, err := s.storage.ListMembers(familyID)
	if err != nil {
		return nil, &PersistenceError{Op: "list members", Err: err}
	}
	index := make(map[int64]*domain.Member, len(members))
	for _, m := range members {
		index[m.ID] = m
	}
	return index, nil
}

func buildOccurrence(inst *domain.SeriesInstance, members map[int64]*domain.Member) Occurrence {
	sr := inst.Series
	fields := inst.EffectiveFields()
	occ := Occurrence{
		SeriesID:    sr.ID,
		SeriesType:  sr.Type,
		Date:        inst.Date,
		Title:       fieldString(fields, "title", sr.Title),
		Notes:       fieldString(fields, "notes", sr.Notes),
		IsException: inst.IsException,
	}
	switch sr.Type {
	case domain.SeriesTask:
		occ.Points = fieldInt(fields, "points", 0)
		occ.CompletionRule = fieldString(fields, "completion_rule", "")
		occ.TaskGroup = fieldString(fields, "task_group", "")
	case domain.SeriesEvent:
		occ.Location = fieldString(fields, "location", "")
		occ.DurationMinutes = fieldInt(fields, "duration_minutes", 0)
		occ.IsAllDay = fieldBool(fields, "is_all_day", false)
	}
	for _, id := range sr.MemberIDs() {
		if m, ok := members[id]; ok {
			occ.Members = append(occ.Members, m)
		}
	}
	return occ
}

// MaterializeDay writes concrete task rows for the family's task occurrences
// on the given day. Re-running for the same day is safe: an occurrence that
// already has a row is left alone, so completion state survives.
func (s *InstanceService) MaterializeDay(familyID int64, day time.Time) (int, error) {
	day = domain.DateOnly(day)
	occurrences, err := s.ListFamilyOccurrences(familyID, day, day)
	if err != nil {
		return 0, err
	}
	created := 0
	for _, occ := range occurrences {
		if occ.SeriesType != domain.SeriesTask {
			continue
		}
		existing, err := s.storage.GetTaskForOccurrence(occ.SeriesID, occ.Date)
		if err != nil {
			return created, &PersistenceError{Op: "check materialized task", Err: err}
		}
		if existing != nil {
			continue
		}
		due := occ.Date
		seriesID := occ.SeriesID
		occurrenceDate := domain.DateOnly(occ.Date)
		task := &domain.Task{
			FamilyID:       familyID,
			Title:          occ.Title,
			Points:         occ.Points,
			DueDate:        &due,
			SeriesID:       &seriesID,
			OccurrenceDate: &occurrenceDate,
		}
		if err := s.storage.CreateTask(task); err != nil {
			return created, &PersistenceError{Op: "materialize task", Err: err}
		}
		created++
	}
	return created, nil
}

// FormatAgenda renders the day's occurrences as an HTML chat message.
func FormatAgenda(day time.Time, occurrences []Occurrence) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>Agenda for %s</b>\n", day.Format("Monday, Jan 2"))
	if len(occurrences) == 0 {
		b.WriteString("\nNothing scheduled today.")
		return b.String()
	}
	for _, occ := range occurrences {
		b.WriteString("\n")
		switch occ.SeriesType {
		case domain.SeriesTask:
			fmt.Fprintf(&b, "• %s", occ.Title)
			if occ.Points > 0 {
				fmt.Fprintf(&b, " (%d pts)", occ.Points)
			}
		case domain.SeriesEvent:
			if occ.IsAllDay {
				fmt.Fprintf(&b, "• %s (all day)", occ.Title)
			} else {
				fmt.Fprintf(&b, "• %s at %s", occ.Title, occ.Date.Format("15:04"))
			}
			if occ.Location != "" {
				fmt.Fprintf(&b, ", %s", occ.Location)
			}
		}
		if len(occ.Members) > 0 {
			names := make([]string, 0, len(occ.Members))
			for _, m := range occ.Members {
				names = append(names, m.Name)
			}
			fmt.Fprintf(&b, " · %s", strings.Join(names, ", "))
		}
	}
	return b.String()
}

func fieldString(fields map[string]any, key, def string) string {
	if v, ok := fields[key].(string); ok {
		return v
	}
	return def
}

func fieldInt(fields map[string]any, key string, def int) int {
	if v, ok := fields[key]; ok {
		if n, ok := asInt(v); ok {
			return n
		}
	}
	return def
}

func fieldBool(fields map[string]any, key string, def bool) bool {
	if v, ok := fields[key].(bool); ok {
		return v
	}
	return def
}
