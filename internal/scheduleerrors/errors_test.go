package scheduleerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewErrorMessageHasNoWrappedError(t *testing.T) {
	err := New(KindUnknownPerson, "person key did not resolve")
	assert.Equal(t, "unknown_person: person key did not resolve", err.Error())
	assert.Nil(t, err.Unwrap())
}

func TestWrapErrorMessageIncludesWrappedError(t *testing.T) {
	cause := errors.New("no such table")
	err := Wrap(KindPersistenceError, "saving assignments", cause)
	assert.Equal(t, "persistence_error: saving assignments: no such table", err.Error())
	assert.Equal(t, cause, err.Unwrap())
}

func TestIsMatchesKindThroughWrappedChain(t *testing.T) {
	se := New(KindInfeasible, "no feasible assignment")
	wrapped := fmt.Errorf("generating schedule: %w", se)

	assert.True(t, Is(wrapped, KindInfeasible))
	assert.False(t, Is(wrapped, KindSolverFailure))
}

func TestIsFalseForPlainError(t *testing.T) {
	assert.False(t, Is(errors.New("plain error"), KindInvalidSlotKey))
}

func TestIsFalseForNilError(t *testing.T) {
	assert.False(t, Is(nil, KindMissingStats))
}

func TestErrorsAsRecoversConcreteKind(t *testing.T) {
	original := Wrap(KindSlotNotInMonth, "2025-4-6-usher", nil)
	wrapped := fmt.Errorf("building params: %w", original)

	var se *SchedulerError
	assert.True(t, errors.As(wrapped, &se))
	assert.Equal(t, KindSlotNotInMonth, se.Kind)
}

func TestKindConstantsHaveExpectedStringValues(t *testing.T) {
	cases := map[Kind]string{
		KindInvalidSlotKey:   "invalid_slot_key",
		KindUnknownPerson:    "unknown_person",
		KindSlotNotInMonth:   "slot_not_in_month",
		KindMissingStats:     "missing_stats",
		KindInfeasible:       "infeasible",
		KindSolverFailure:    "solver_failure",
		KindPersistenceError: "persistence_error",
	}
	for kind, want := range cases {
		assert.Equal(t, want, string(kind))
	}
}
