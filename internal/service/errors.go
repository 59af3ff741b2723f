package service

import "fmt"

// PersistenceError marks a failed store operation. It propagates to the
// caller as-is; the services never retry on their own.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
