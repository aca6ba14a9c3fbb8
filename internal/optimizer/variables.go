// Package optimizer implements the Constraint Builder and Optimizer
// (C4+C5): it turns one month's slots, the eligibility index and a parent
// version's assignments into a solver.Model, solves it, and decodes the
// result into the slot_key -> inverted_name mapping the caller persists.
package optimizer

import (
	"fmt"

	"github.com/dutyroster/scheduler/internal/domain"
	"github.com/dutyroster/scheduler/internal/expander"
	"github.com/dutyroster/scheduler/internal/solver"
)

// varKey identifies one (slot, person) decision variable.
type varKey struct {
	slotKey string
	person  domain.PersonID
}

// varTable tracks every decision variable created for one optimization run,
// plus enough bookkeeping to rebuild constraints without re-deriving slots.
type varTable struct {
	model  *solver.Model
	ids    map[varKey]solver.VarID
	slotOf map[string]expander.Slot
}

func newVarTable(model *solver.Model) *varTable {
	return &varTable{
		model:  model,
		ids:    make(map[varKey]solver.VarID),
		slotOf: make(map[string]expander.Slot),
	}
}

// ensure returns the variable for (slot, person), creating it if absent.
func (vt *varTable) ensure(slot expander.Slot, person domain.PersonID) solver.VarID {
	key := varKey{slotKey: slot.Key(), person: person}
	if id, ok := vt.ids[key]; ok {
		return id
	}
	id := vt.model.AddVar(fmt.Sprintf("%s/%d", slot.Key(), person))
	vt.ids[key] = id
	vt.slotOf[slot.Key()] = slot
	return id
}

// lookup returns the variable for (slot, person) if it was ever created.
func (vt *varTable) lookup(slotKey string, person domain.PersonID) (solver.VarID, bool) {
	id, ok := vt.ids[varKey{slotKey: slotKey, person: person}]
	return id, ok
}
