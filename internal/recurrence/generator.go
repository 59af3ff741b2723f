package recurrence

import (
	"log"
	"sort"
	"time"

	"github.com/hearthplan/hearthplan/internal/domain"
)

// DefaultMaxInstances is the hard safety cap guaranteeing termination for
// never-ending rules.
const DefaultMaxInstances = 1000

// Request carries everything the generator needs. It is a pure value; the
// generator never touches storage.
type Request struct {
	SeriesStart time.Time
	Rule        domain.RecurrenceRule
	Exceptions  []domain.RecurrenceException
	RangeStart  time.Time
	RangeEnd    time.Time
	// MaxInstances caps the emitted instances; zero means DefaultMaxInstances.
	MaxInstances int
}

// Strategy expands a rule into candidate occurrence times within the request
// window. Candidates are raw: the expander applies the exception overlay.
type Strategy interface {
	Name() string
	Expand(req Request) ([]time.Time, error)
}

// Expander is the instance generator. It runs a primary rrule-based strategy
// and falls back to the legacy day-stepping strategy on a typed generation
// error; if both fail the result is an empty list, never a crash in display
// code.
type Expander struct {
	primary  Strategy
	fallback Strategy
}

// NewExpander builds the default primary/fallback pair.
func NewExpander() *Expander {
	return &Expander{primary: &rruleStrategy{}, fallback: &stepStrategy{}}
}

// Generate expands the request into ordered, deduplicated instances with
// exception annotations. Skip exceptions suppress their date entirely.
// The only error returned is a *ValidationError for unusable input.
func (e *Expander) Generate(req Request) ([]domain.SeriesInstance, error) {
	if problems := req.Rule.Validate(req.SeriesStart); len(problems) > 0 {
		return nil, &ValidationError{Fields: problems}
	}
	if domain.DateOnly(req.RangeStart).After(domain.DateOnly(req.RangeEnd)) {
		return []domain.SeriesInstance{}, nil
	}
	if req.MaxInstances <= 0 {
		req.MaxInstances = DefaultMaxInstances
	}

	candidates, err := e.primary.Expand(req)
	if err != nil {
		log.Printf("recurrence: %s strategy failed, falling back: %v", e.primary.Name(), err)
		candidates, err = e.fallback.Expand(req)
		if err != nil {
			log.Printf("recurrence: %s strategy failed, returning no occurrences: %v", e.fallback.Name(), err)
			return []domain.SeriesInstance{}, nil
		}
	}

	return overlay(req, candidates), nil
}

// overlay filters candidates against the series start and range (date-only
// comparisons), applies the exception map, deduplicates and orders.
func overlay(req Request, candidates []time.Time) []domain.SeriesInstance {
	byDate := domain.ExceptionsByDate(req.Exceptions)
	startDate := domain.DateOnly(req.SeriesStart)
	rangeStart := domain.DateOnly(req.RangeStart)
	rangeEnd := domain.DateOnly(req.RangeEnd)

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Before(candidates[j]) })

	seen := make(map[string]bool, len(candidates))
	instances := make([]domain.SeriesInstance, 0, len(candidates))
	for _, t := range candidates {
		date := domain.DateOnly(t)
		if date.Before(startDate) || date.Before(rangeStart) || date.After(rangeEnd) {
			continue
		}
		key := domain.DateKey(date)
		if seen[key] {
			continue
		}
		seen[key] = true

		inst := domain.SeriesInstance{Date: t}
		if exc, ok := byDate[key]; ok {
			if exc.Type == domain.ExceptionSkip {
				continue
			}
			inst.IsException = true
			inst.ExceptionType = exc.Type
			inst.Override = exc.Override
		}
		instances = append(instances, inst)
		if len(instances) >= req.MaxInstances {
			break
		}
	}
	return instances
}

// boundary returns the generation cutoff: the tighter of the range end and
// the rule's end date. Count-based ends are enforced by the strategies
// themselves, since skipped months or filtered weekdays must still consume
// the count.
func boundary(req Request) time.Time {
	end := domain.DateOnly(req.RangeEnd)
	if req.Rule.EndType == domain.EndOnDate && req.Rule.EndDate != nil {
		ruleEnd := domain.DateOnly(*req.Rule.EndDate)
		if ruleEnd.Before(end) {
			end = ruleEnd
		}
	}
	return end
}
