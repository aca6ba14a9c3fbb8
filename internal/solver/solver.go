// Package solver provides the 0/1 integer-linear-programming capability
// the scheduler core is built against (§9 DESIGN NOTES): AddVar,
// AddLinearEq, AddLinearLE, SetObjective and Solve. No part of
// internal/optimizer (its constraint and objective builders included)
// depends on a particular ILP
// library's concrete types beyond this package's boundary; Model is the
// only thing they see.
package solver

import (
	"context"
	"fmt"

	"github.com/dutyroster/scheduler/internal/logging"
)

// VarID identifies a binary decision variable within a Model.
type VarID int

// Term is one coefficient*variable addend of a linear expression.
type Term struct {
	Var   VarID
	Coeff float64
}

// relOp is the relational operator of a constraint row.
type relOp int

const (
	opLE relOp = iota
	opEQ
)

type constraintRow struct {
	terms []Term
	op    relOp
	rhs   float64
}

// Status is the outcome of a Solve call.
type Status int

const (
	// StatusOptimal means Solve found a provably optimal integer solution.
	StatusOptimal Status = iota
	// StatusInfeasible means no assignment satisfies every constraint.
	StatusInfeasible
	// StatusSolverFailure means Solve exhausted its node or time budget
	// without proving optimality (timeout/unbounded-equivalent per §4.4).
	StatusSolverFailure
)

func (s Status) String() string {
	switch s {
	case StatusOptimal:
		return "Optimal"
	case StatusInfeasible:
		return "Infeasible"
	case StatusSolverFailure:
		return "SolverFailure"
	default:
		return "Unknown"
	}
}

// Model is a 0/1 integer linear program: every variable is constrained to
// {0,1}, constraints are linear equalities or "less-than-or-equal"
// inequalities, and the objective is a linear expression to maximize or
// minimize.
type Model struct {
	varNames    []string
	constraints []constraintRow
	objective   []Term
	maximize    bool
}

// NewModel creates an empty model.
func NewModel() *Model {
	return &Model{}
}

// AddVar declares a new binary variable and returns its handle. name is
// used only for diagnostics.
func (m *Model) AddVar(name string) VarID {
	m.varNames = append(m.varNames, name)
	return VarID(len(m.varNames) - 1)
}

// NumVars reports how many variables have been declared.
func (m *Model) NumVars() int {
	return len(m.varNames)
}

// AddLinearEq adds a constraint Σ terms == rhs.
func (m *Model) AddLinearEq(terms []Term, rhs float64) {
	m.constraints = append(m.constraints, constraintRow{terms: cloneTerms(terms), op: opEQ, rhs: rhs})
}

// AddLinearLE adds a constraint Σ terms <= rhs.
func (m *Model) AddLinearLE(terms []Term, rhs float64) {
	m.constraints = append(m.constraints, constraintRow{terms: cloneTerms(terms), op: opLE, rhs: rhs})
}

// SetObjective replaces the model's objective with Σ terms, maximized if
// maximize is true, minimized otherwise.
func (m *Model) SetObjective(maximize bool, terms []Term) {
	m.maximize = maximize
	m.objective = cloneTerms(terms)
}

func cloneTerms(terms []Term) []Term {
	out := make([]Term, len(terms))
	copy(out, terms)
	return out
}

// Solve runs branch-and-bound to a provably optimal 0/1 solution, or
// reports why it could not (§4.4 Failure semantics). ctx cancellation
// (deadline or explicit Cancel) causes Solve to return StatusSolverFailure
// with the incumbent unexplored, matching "non-optimal termination... is
// reported verbatim".
func (m *Model) Solve(ctx context.Context) (Status, map[VarID]float64, error) {
	log := logging.GetLogger("solver")
	if len(m.varNames) == 0 && len(m.constraints) == 0 {
		return StatusOptimal, map[VarID]float64{}, nil
	}

	bb := newBranchAndBound(m)
	status, solution, err := bb.run(ctx)
	if err != nil {
		return StatusSolverFailure, nil, fmt.Errorf("branch and bound failed: %w", err)
	}

	log.Debug().
		Str("status", status.String()).
		Int("nodes_explored", bb.nodesExplored).
		Msg("solve finished")

	if status != StatusOptimal {
		return status, nil, nil
	}
	out := make(map[VarID]float64, len(solution))
	for i, v := range solution {
		out[VarID(i)] = v
	}
	return StatusOptimal, out, nil
}
