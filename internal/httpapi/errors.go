package httpapi

import (
	"net/http"

	"github.com/dutyroster/scheduler/internal/scheduleerrors"
)

// statusForKind maps a scheduleerrors.Kind to the HTTP status the
// external interface (§6/§7) should report it as.
func statusForKind(kind scheduleerrors.Kind) int {
	switch kind {
	case scheduleerrors.KindInvalidSlotKey, scheduleerrors.KindSlotNotInMonth:
		return http.StatusBadRequest
	case scheduleerrors.KindUnknownPerson, scheduleerrors.KindMissingStats:
		return http.StatusUnprocessableEntity
	case scheduleerrors.KindInfeasible:
		return http.StatusConflict
	case scheduleerrors.KindSolverFailure:
		return http.StatusInternalServerError
	case scheduleerrors.KindPersistenceError:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// respondSchedulerError writes err as a JSON error response, classifying it
// by scheduleerrors.Kind when possible and falling back to a generic 500.
func respondSchedulerError(w http.ResponseWriter, err error) {
	if kind, ok := kindOf(err); ok {
		RespondError(w, statusForKind(kind), string(kind), err.Error())
		return
	}
	RespondError(w, http.StatusInternalServerError, "internal_error", err.Error())
}

func kindOf(err error) (scheduleerrors.Kind, bool) {
	for _, kind := range []scheduleerrors.Kind{
		scheduleerrors.KindInvalidSlotKey,
		scheduleerrors.KindUnknownPerson,
		scheduleerrors.KindSlotNotInMonth,
		scheduleerrors.KindMissingStats,
		scheduleerrors.KindInfeasible,
		scheduleerrors.KindSolverFailure,
		scheduleerrors.KindPersistenceError,
	} {
		if scheduleerrors.Is(err, kind) {
			return kind, true
		}
	}
	return "", false
}
