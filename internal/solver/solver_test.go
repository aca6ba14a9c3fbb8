package solver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSolveAssignmentPicksHighestWeight verifies a basic one-slot,
// two-candidate assignment problem picks the higher-weight candidate under
// an exactly-one constraint.
func TestSolveAssignmentPicksHighestWeight(t *testing.T) {
	m := NewModel()
	a := m.AddVar("a")
	b := m.AddVar("b")
	m.AddLinearEq([]Term{{Var: a, Coeff: 1}, {Var: b, Coeff: 1}}, 1)
	m.SetObjective(true, []Term{{Var: a, Coeff: 0.2}, {Var: b, Coeff: 0.9}})

	status, solution, err := m.Solve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusOptimal, status)
	assert.InDelta(t, 0, solution[a], 1e-6)
	assert.InDelta(t, 1, solution[b], 1e-6)
}

// TestSolveInfeasibleWhenConstraintsConflict verifies two equality
// constraints with no common solution are reported infeasible.
func TestSolveInfeasibleWhenConstraintsConflict(t *testing.T) {
	m := NewModel()
	a := m.AddVar("a")
	m.AddLinearEq([]Term{{Var: a, Coeff: 1}}, 1)
	m.AddLinearEq([]Term{{Var: a, Coeff: 1}}, 0)
	m.SetObjective(true, []Term{{Var: a, Coeff: 1}})

	status, _, err := m.Solve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusInfeasible, status)
}

// TestSolveRespectsAtMostOnePerSlot verifies two slots sharing one person
// under a per-person cap of 1 split across distinct people.
func TestSolveRespectsAtMostOnePerSlot(t *testing.T) {
	m := NewModel()
	// Two slots, two people, each slot needs exactly one assignment, each
	// person capped at one assignment total — forces a 1-1 matching.
	x11 := m.AddVar("slot1-alice")
	x12 := m.AddVar("slot1-bob")
	x21 := m.AddVar("slot2-alice")
	x22 := m.AddVar("slot2-bob")

	m.AddLinearEq([]Term{{Var: x11, Coeff: 1}, {Var: x12, Coeff: 1}}, 1)
	m.AddLinearEq([]Term{{Var: x21, Coeff: 1}, {Var: x22, Coeff: 1}}, 1)
	m.AddLinearLE([]Term{{Var: x11, Coeff: 1}, {Var: x21, Coeff: 1}}, 1)
	m.AddLinearLE([]Term{{Var: x12, Coeff: 1}, {Var: x22, Coeff: 1}}, 1)
	m.SetObjective(true, []Term{
		{Var: x11, Coeff: 1}, {Var: x12, Coeff: 1},
		{Var: x21, Coeff: 1}, {Var: x22, Coeff: 1},
	})

	status, solution, err := m.Solve(context.Background())
	require.NoError(t, err)
	require.Equal(t, StatusOptimal, status)
	assert.InDelta(t, 1, solution[x11]+solution[x12], 1e-6)
	assert.InDelta(t, 1, solution[x21]+solution[x22], 1e-6)
	assert.InDelta(t, 1, solution[x11]+solution[x21], 1e-6)
	assert.InDelta(t, 1, solution[x12]+solution[x22], 1e-6)
}

// TestSolveNoVariablesIsTriviallyOptimal verifies an empty model solves
// immediately without exercising branch-and-bound.
func TestSolveNoVariablesIsTriviallyOptimal(t *testing.T) {
	m := NewModel()
	status, solution, err := m.Solve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusOptimal, status)
	assert.Empty(t, solution)
}
