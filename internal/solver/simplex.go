package solver

import "math"

const simplexEpsilon = 1e-9

// lpResult is the outcome of relaxing a node's constraint set as a
// continuous linear program.
type lpResult struct {
	feasible bool
	objValue float64
	values   []float64 // one per structural variable, length = numVars
}

// fixing pins a structural variable to an exact value (0 or 1) for the
// duration of one branch-and-bound node, implemented as an extra equality
// row rather than a bound change — see package doc in bnb.go.
type fixing struct {
	v     VarID
	value float64
}

// relax solves the LP relaxation of m's constraints plus the implicit
// per-variable x<=1 upper bound and the given node fixings, using the
// two-phase primal simplex method with Bland's rule for pivot selection
// (anti-cycling by smallest index, in place of a perturbation scheme).
func relax(m *Model, fixings []fixing) lpResult {
	numStructural := len(m.varNames)

	// Build the row set: model constraints, implicit x<=1 bounds, and
	// fixings-as-equalities.
	type row struct {
		coeffs []float64
		op     relOp
		rhs    float64
	}
	var rows []row
	for _, c := range m.constraints {
		coeffs := make([]float64, numStructural)
		for _, t := range c.terms {
			coeffs[t.Var] += t.Coeff
		}
		rows = append(rows, row{coeffs: coeffs, op: c.op, rhs: c.rhs})
	}
	for v := 0; v < numStructural; v++ {
		coeffs := make([]float64, numStructural)
		coeffs[v] = 1
		rows = append(rows, row{coeffs: coeffs, op: opLE, rhs: 1})
	}
	for _, f := range fixings {
		coeffs := make([]float64, numStructural)
		coeffs[f.v] = 1
		rows = append(rows, row{coeffs: coeffs, op: opEQ, rhs: f.value})
	}

	numRows := len(rows)

	// Normalize every row to rhs >= 0 (simplex tableau convention).
	for i := range rows {
		if rows[i].rhs < 0 {
			for j := range rows[i].coeffs {
				rows[i].coeffs[j] = -rows[i].coeffs[j]
			}
			rows[i].rhs = -rows[i].rhs
			if rows[i].op == opLE {
				// flipping a <= row with negative rhs yields >=. The
				// optimizer writes its "at least one" rows this way
				// (-Σx <= -1 becomes Σx >= 1); a row that cannot hold for
				// x>=0, such as x <= -0.3, becomes a >= row that phase 1
				// reports as infeasible.
				rows[i].op = opGE
			}
		}
	}

	numSlack := 0
	numArtificial := 0
	slackCol := make([]int, numRows)
	artificialCol := make([]int, numRows)
	for i := range artificialCol {
		artificialCol[i] = -1
	}
	for i, r := range rows {
		switch r.op {
		case opLE:
			slackCol[i] = numStructural + numSlack
			numSlack++
		case opGE:
			slackCol[i] = numStructural + numSlack
			numSlack++
			numArtificial++
		case opEQ:
			numArtificial++
		}
	}

	numCols := numStructural + numSlack + numArtificial
	artificialBase := numStructural + numSlack
	artIdx := 0
	for i, r := range rows {
		if r.op == opEQ || r.op == opGE {
			artificialCol[i] = artificialBase + artIdx
			artIdx++
		}
	}

	// tableau: numRows+1 (objective row) x (numCols+1 (rhs))
	tab := make([][]float64, numRows+1)
	for i := range tab {
		tab[i] = make([]float64, numCols+1)
	}
	for i, r := range rows {
		for j, c := range r.coeffs {
			tab[i][j] = c
		}
		switch r.op {
		case opLE:
			tab[i][slackCol[i]] = 1
		case opGE:
			tab[i][slackCol[i]] = -1
			tab[i][artificialCol[i]] = 1
		case opEQ:
			tab[i][artificialCol[i]] = 1
		}
		tab[i][numCols] = r.rhs
	}

	basis := make([]int, numRows)
	for i, r := range rows {
		switch r.op {
		case opLE:
			basis[i] = slackCol[i]
		default:
			basis[i] = artificialCol[i]
		}
	}

	if numArtificial > 0 {
		// Phase 1: minimize sum of artificial variables. The cost row starts
		// as the indicator of the artificial columns (cost 1 each, 0
		// elsewhere); every artificial column is basic in its own row at
		// this point, so pricing it out means subtracting that row once
		// from the cost row to zero the reduced cost of each basic column.
		phaseObj := make([]float64, numCols+1)
		for j := artificialBase; j < numCols; j++ {
			phaseObj[j] = 1
		}
		tab[numRows] = phaseObj
		for i, b := range basis {
			if b >= artificialBase {
				for j := 0; j <= numCols; j++ {
					tab[numRows][j] -= tab[i][j]
				}
			}
		}
		if !runSimplex(tab, basis, numRows, numCols) {
			return lpResult{feasible: false}
		}
		// Invariant: tab[numRows][numCols] == -(phase-1 optimum), so the
		// objective itself (sum of artificials) is its negation.
		if -tab[numRows][numCols] > simplexEpsilon {
			return lpResult{feasible: false}
		}
		// Drive any remaining basic artificial variables out at zero level.
		for i, b := range basis {
			if b < artificialBase {
				continue
			}
			pivotCol := -1
			for j := 0; j < artificialBase; j++ {
				if math.Abs(tab[i][j]) > simplexEpsilon {
					pivotCol = j
					break
				}
			}
			if pivotCol == -1 {
				continue // redundant row, leave artificial in basis at 0
			}
			pivot(tab, i, pivotCol, numRows, numCols)
			basis[i] = pivotCol
		}
	}

	// Phase 2: optimize the real objective (simplex here minimizes, so
	// negate when the model wants to maximize).
	objRow := make([]float64, numCols+1)
	for _, t := range m.objective {
		coeff := t.Coeff
		if m.maximize {
			coeff = -coeff
		}
		objRow[t.Var] += coeff
	}
	tab[numRows] = objRow
	for i, b := range basis {
		if objRow[b] == 0 {
			continue
		}
		factor := tab[numRows][b]
		for j := 0; j <= numCols; j++ {
			tab[numRows][j] -= factor * tab[i][j]
		}
	}
	// Forbid re-entry of artificial columns in phase 2: every non-basic
	// artificial column is zeroed in all rows, so no pivot can give it a
	// negative reduced cost. An artificial still basic after phase 1 sits at
	// 0 in a redundant row with no other usable entry, so it never moves.
	basic := make(map[int]bool, numRows)
	for _, b := range basis {
		basic[b] = true
	}
	for j := artificialBase; j < numCols; j++ {
		tab[numRows][j] = 0
		if basic[j] {
			continue
		}
		for i := 0; i < numRows; i++ {
			tab[i][j] = 0
		}
	}

	if !runSimplex(tab, basis, numRows, numCols) {
		return lpResult{feasible: false}
	}

	values := make([]float64, numStructural)
	for i, b := range basis {
		if b < numStructural {
			values[b] = tab[i][numCols]
		}
	}
	// tab[numRows][numCols] carries -z for whichever quantity the tableau is
	// internally minimizing; objective coefficients were negated on the way
	// in when maximizing, so un-negating here happens on the opposite branch.
	objValue := tab[numRows][numCols]
	if !m.maximize {
		objValue = -objValue
	}
	return lpResult{feasible: true, objValue: objValue, values: values}
}

const opGE relOp = 2

// runSimplex performs pivoting to optimality using Bland's rule: the
// entering column is the smallest-indexed column with a negative reduced
// cost, and the leaving row is chosen by minimum ratio with ties broken by
// smallest basis index. This guarantees termination without a perturbation
// scheme. Returns false if the problem is unbounded (which cannot happen
// for feasible region bounded in [0,1]^n but is checked defensively).
func runSimplex(tab [][]float64, basis []int, numRows, numCols int) bool {
	for iter := 0; iter < 10000; iter++ {
		enter := -1
		for j := 0; j < numCols; j++ {
			if tab[numRows][j] < -simplexEpsilon {
				enter = j
				break
			}
		}
		if enter == -1 {
			return true
		}

		leave := -1
		bestRatio := math.Inf(1)
		for i := 0; i < numRows; i++ {
			if tab[i][enter] <= simplexEpsilon {
				continue
			}
			ratio := tab[i][numCols] / tab[i][enter]
			if ratio < bestRatio-simplexEpsilon ||
				(ratio < bestRatio+simplexEpsilon && (leave == -1 || basis[i] < basis[leave])) {
				bestRatio = ratio
				leave = i
			}
		}
		if leave == -1 {
			return false // unbounded
		}
		pivot(tab, leave, enter, numRows, numCols)
		basis[leave] = enter
	}
	return true
}

func pivot(tab [][]float64, row, col, numRows, numCols int) {
	p := tab[row][col]
	for j := 0; j <= numCols; j++ {
		tab[row][j] /= p
	}
	for i := 0; i <= numRows; i++ {
		if i == row {
			continue
		}
		factor := tab[i][col]
		if factor == 0 {
			continue
		}
		for j := 0; j <= numCols; j++ {
			tab[i][j] -= factor * tab[row][j]
		}
	}
}
