package recurrence

import (
	"fmt"
	"strings"
)

// ValidationError reports a malformed rule or request before any generation
// or persistence happens. Fields holds one message per problem.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "invalid recurrence rule: " + strings.Join(e.Fields, "; ")
}

// GenerationError is an internal expansion failure (date overflow, parser
// rejection). The expander recovers from it by switching strategies; it is
// never surfaced to display code.
type GenerationError struct {
	Strategy string
	Reason   string
	Err      error
}

func (e *GenerationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("recurrence generation (%s): %s: %v", e.Strategy, e.Reason, e.Err)
	}
	return fmt.Sprintf("recurrence generation (%s): %s", e.Strategy, e.Reason)
}

func (e *GenerationError) Unwrap() error { return e.Err }
