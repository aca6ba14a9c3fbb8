package solver

import (
	"context"
)

// Branch-and-bound over the LP relaxation in simplex.go. Every decision
// variable in this domain has a natural lower bound of 0 and an upper
// bound of 1 already enforced by relax's implicit x<=1 row, so branching
// never needs a general bounded-variable simplex: fixing a variable to 0
// or 1 is just one more equality row layered onto the node's relaxation.

const (
	maxNodes       = 200_000
	integerEpsilon = 1e-6
)

type branchAndBound struct {
	model         *Model
	nodesExplored int
}

func newBranchAndBound(m *Model) *branchAndBound {
	return &branchAndBound{model: m}
}

type node struct {
	fixings []fixing
}

// run performs depth-first branch-and-bound with best-incumbent pruning.
// It returns StatusInfeasible if the root relaxation is infeasible, or if
// the search finishes without finding any integer-feasible point;
// StatusSolverFailure if the node or context budget is exhausted before
// every open branch is pruned or resolved; StatusOptimal with the best
// integer solution found otherwise.
func (bb *branchAndBound) run(ctx context.Context) (Status, []float64, error) {
	root := relax(bb.model, nil)
	bb.nodesExplored++
	if !root.feasible {
		return StatusInfeasible, nil, nil
	}

	var incumbentObj float64
	var incumbent []float64
	haveIncumbent := false

	stack := []node{{fixings: nil}}
	exhausted := false

	for len(stack) > 0 {
		select {
		case <-ctx.Done():
			exhausted = true
		default:
		}
		if bb.nodesExplored > maxNodes {
			exhausted = true
		}
		if exhausted {
			break
		}

		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		lp := relax(bb.model, n.fixings)
		bb.nodesExplored++
		if !lp.feasible {
			continue
		}
		if haveIncumbent && !improves(lp.objValue, incumbentObj, bb.model.maximize) {
			continue
		}

		fracVar, isInteger := firstFractional(lp.values)
		if isInteger {
			if !haveIncumbent || improves(lp.objValue, incumbentObj, bb.model.maximize) {
				incumbentObj = lp.objValue
				incumbent = append([]float64(nil), lp.values...)
				haveIncumbent = true
			}
			continue
		}

		// Explore the "fix to 1" branch first (it is pushed last): in this
		// domain the objective mostly rewards assignment (under-served
		// pairs carry positive coefficients), so rounding up tends to reach
		// a good incumbent sooner and prune more of the remaining tree.
		stack = append(stack, node{fixings: appendFixing(n.fixings, fracVar, 0)})
		stack = append(stack, node{fixings: appendFixing(n.fixings, fracVar, 1)})
	}

	if !haveIncumbent {
		if exhausted {
			return StatusSolverFailure, nil, nil
		}
		return StatusInfeasible, nil, nil
	}
	if exhausted {
		// We have a feasible integer solution but cannot prove optimality:
		// report SolverFailure verbatim per the no-partial-optimum rule,
		// still surfacing nodesExplored for diagnostics.
		return StatusSolverFailure, nil, nil
	}
	return StatusOptimal, incumbent, nil
}

func appendFixing(fixings []fixing, v VarID, value float64) []fixing {
	out := make([]fixing, len(fixings), len(fixings)+1)
	copy(out, fixings)
	return append(out, fixing{v: v, value: value})
}

// improves reports whether candidate is strictly better than incumbent
// given the optimization direction.
func improves(candidate, incumbent float64, maximize bool) bool {
	if maximize {
		return candidate > incumbent+integerEpsilon
	}
	return candidate < incumbent-integerEpsilon
}

// firstFractional returns the lowest-indexed variable whose relaxed value
// is not within integerEpsilon of 0 or 1, and whether none was found.
func firstFractional(values []float64) (VarID, bool) {
	for i, v := range values {
		if v > integerEpsilon && v < 1-integerEpsilon {
			return VarID(i), false
		}
	}
	return 0, true
}
