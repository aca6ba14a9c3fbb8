// Package scheduleerrors defines the typed error kinds the scheduler core
// surfaces to its callers (§7 of the design). Every kind wraps into the
// same SchedulerError so a caller can recover it with errors.As instead of
// string-matching messages, the way the teacher repo's handlers package
// centralizes HTTP error translation.
package scheduleerrors

import (
	"errors"
	"fmt"
)

// Kind enumerates the error kinds the scheduler core can surface.
type Kind string

const (
	// KindInvalidSlotKey means a slot key was malformed or named an unknown duty.
	KindInvalidSlotKey Kind = "invalid_slot_key"
	// KindUnknownPerson means a person key did not match any active person.
	KindUnknownPerson Kind = "unknown_person"
	// KindSlotNotInMonth means a locked slot fell outside the month's expanded slot set.
	KindSlotNotInMonth Kind = "slot_not_in_month"
	// KindMissingStats means the optimizer needed stats for a (person, duty)
	// pair that the parent snapshot could not provide.
	KindMissingStats Kind = "missing_stats"
	// KindInfeasible means the solver proved no feasible assignment exists.
	KindInfeasible Kind = "infeasible"
	// KindSolverFailure means the solver terminated without an optimal result
	// for a reason other than infeasibility (timeout, unbounded, internal error).
	KindSolverFailure Kind = "solver_failure"
	// KindPersistenceError means the repository rejected a read or write.
	KindPersistenceError Kind = "persistence_error"
)

// SchedulerError is a typed, wrapped error carrying a Kind and the
// identifiers relevant to diagnosing it.
type SchedulerError struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *SchedulerError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *SchedulerError) Unwrap() error {
	return e.Err
}

// New builds a SchedulerError of the given kind.
func New(kind Kind, message string) *SchedulerError {
	return &SchedulerError{Kind: kind, Message: message}
}

// Wrap builds a SchedulerError of the given kind around a lower-level error.
func Wrap(kind Kind, message string, err error) *SchedulerError {
	return &SchedulerError{Kind: kind, Message: message, Err: err}
}

// Is reports whether err is a SchedulerError of the given kind.
func Is(err error, kind Kind) bool {
	var se *SchedulerError
	if !errors.As(err, &se) {
		return false
	}
	return se.Kind == kind
}
