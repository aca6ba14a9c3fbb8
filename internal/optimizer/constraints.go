package optimizer

import (
	"fmt"
	"sort"
	"time"

	"github.com/dutyroster/scheduler/internal/domain"
	"github.com/dutyroster/scheduler/internal/eligibility"
	"github.com/dutyroster/scheduler/internal/expander"
	"github.com/dutyroster/scheduler/internal/solver"
)

// build constructs the decision variables and every constraint family from
// §4.4 against model, returning the variable table constraints and the
// objective builder both need.
func build(model *solver.Model, p Params, slots []expander.Slot, duties map[domain.DutyID]domain.Duty) (*varTable, error) {
	vt := newVarTable(model)

	// Variables: eligible (slot, person) pairs for this month...
	for _, s := range slots {
		for _, person := range p.Index.EligiblePeople(s.Duty) {
			vt.ensure(s, person)
		}
	}
	// ...every pair from the parent version's assignments, even ones whose
	// eligibility has since lapsed or that fall in a previous month...
	for _, a := range p.ParentAssignments {
		s := expander.Slot{Year: a.Date.Year(), Month: a.Date.Month(), Day: a.Date.Day(), Duty: a.DutyID}
		vt.ensure(s, a.PersonID)
	}
	// ...and every locked pair, even if the person would not otherwise be
	// a candidate for that slot.
	for slotKey, person := range p.Locked {
		s, ok := vt.slotOf[slotKey]
		if !ok {
			year, month, day, duty, err := expander.ParseSlotKey(slotKey)
			if err != nil {
				return nil, fmt.Errorf("locked slot %q: %w", slotKey, err)
			}
			s = expander.Slot{Year: year, Month: month, Day: day, Duty: duty}
		}
		vt.ensure(s, person)
	}

	addPastAssignmentsFixed(model, vt, p.ParentAssignments)
	addOnePersonPerSlot(model, vt, slots, p.Index)
	addNoExcludedDutiesWithinWeek(model, vt, slots, duties, p.Index)
	addFairPerDutyDistribution(model, vt, slots, p.Index, p.Locked)
	addPerPersonCap(model, vt, slots, p.personCap)
	addMonthBoundaryContinuity(model, vt, p, slots)
	addLockedIn(model, vt, p.Locked)

	return vt, nil
}

// addPastAssignmentsFixed is constraint family 1.
func addPastAssignmentsFixed(model *solver.Model, vt *varTable, parentAssignments []domain.Assignment) {
	for _, a := range parentAssignments {
		slotKey := expander.Slot{Year: a.Date.Year(), Month: a.Date.Month(), Day: a.Date.Day(), Duty: a.DutyID}.Key()
		id, ok := vt.lookup(slotKey, a.PersonID)
		if !ok {
			continue
		}
		model.AddLinearEq([]solver.Term{{Var: id, Coeff: 1}}, 1)
	}
}

// addOnePersonPerSlot is constraint family 2. A slot with no eligible
// candidate still gets its equality row: an all-zero-coefficient "= 1" row
// can never be satisfied, which is exactly right — it makes the whole
// model infeasible instead of silently dropping an unfillable slot.
func addOnePersonPerSlot(model *solver.Model, vt *varTable, slots []expander.Slot, idx *eligibility.Index) {
	for _, s := range slots {
		var terms []solver.Term
		for _, person := range idx.EligiblePeople(s.Duty) {
			if id, ok := vt.lookup(s.Key(), person); ok {
				terms = append(terms, solver.Term{Var: id, Coeff: 1})
			}
		}
		model.AddLinearEq(terms, 1)
	}
}

// addNoExcludedDutiesWithinWeek is constraint family 3. Slots are paired by
// sharing a week index (expander.WeekIndex) rather than by hand-rolled
// sentinel padding: two duty lists aligned by week index automatically
// drop any week where one side has no slot, which is exactly what padding
// a shorter list with a discarded sentinel achieves.
func addNoExcludedDutiesWithinWeek(model *solver.Model, vt *varTable, slots []expander.Slot, duties map[domain.DutyID]domain.Duty, idx *eligibility.Index) {
	byWeek := make(map[domain.DutyID]map[int]expander.Slot)
	for _, s := range slots {
		wk := expander.WeekIndex(s.Year, s.Month, s.Day)
		if byWeek[s.Duty] == nil {
			byWeek[s.Duty] = make(map[int]expander.Slot)
		}
		byWeek[s.Duty][wk] = s
	}

	seenPair := make(map[[2]domain.DutyID]struct{})
	for d1, duty := range duties {
		for d2 := range duty.Excludes {
			if d1 == d2 {
				continue // self-pairs are discarded: byWeek holds one slot per duty per week
			}
			pair := orderedPair(d1, d2)
			if _, done := seenPair[pair]; done {
				continue
			}
			seenPair[pair] = struct{}{}

			both := intersect(idx.EligiblePeople(d1), idx.EligiblePeople(d2))
			for wk, s1 := range byWeek[d1] {
				s2, ok := byWeek[d2][wk]
				if !ok || s1.Key() == s2.Key() {
					continue
				}
				for _, person := range both {
					id1, ok1 := vt.lookup(s1.Key(), person)
					id2, ok2 := vt.lookup(s2.Key(), person)
					if !ok1 || !ok2 {
						continue
					}
					model.AddLinearLE([]solver.Term{{Var: id1, Coeff: 1}, {Var: id2, Coeff: 1}}, 1)
				}
			}
		}
	}
}

func orderedPair(a, b domain.DutyID) [2]domain.DutyID {
	if a < b {
		return [2]domain.DutyID{a, b}
	}
	return [2]domain.DutyID{b, a}
}

func intersect(a, b []domain.PersonID) []domain.PersonID {
	set := make(map[domain.PersonID]struct{}, len(a))
	for _, p := range a {
		set[p] = struct{}{}
	}
	var out []domain.PersonID
	for _, p := range b {
		if _, ok := set[p]; ok {
			out = append(out, p)
		}
	}
	return out
}

// addFairPerDutyDistribution is constraint family 4.
func addFairPerDutyDistribution(model *solver.Model, vt *varTable, slots []expander.Slot, idx *eligibility.Index, locked map[string]domain.PersonID) {
	slotsByDuty := make(map[domain.DutyID][]expander.Slot)
	for _, s := range slots {
		slotsByDuty[s.Duty] = append(slotsByDuty[s.Duty], s)
	}

	for dutyID, dutySlots := range slotsByDuty {
		eligible := idx.EligiblePeople(dutyID)
		n := len(eligible)
		k := len(dutySlots)
		if n == 0 || k == 0 {
			continue
		}
		exempt := lockedPersonsForDuty(locked, dutySlots)

		personTerms := func(person domain.PersonID) []solver.Term {
			var terms []solver.Term
			for _, s := range dutySlots {
				if id, ok := vt.lookup(s.Key(), person); ok {
					terms = append(terms, solver.Term{Var: id, Coeff: 1})
				}
			}
			return terms
		}

		if n > k {
			for _, person := range eligible {
				if exempt[person] {
					continue
				}
				if terms := personTerms(person); len(terms) > 0 {
					model.AddLinearLE(terms, 1)
				}
			}
			continue
		}

		perPersonCap := (k + n - 1) / n // ceil(k/n)
		for _, person := range eligible {
			if exempt[person] {
				continue
			}
			terms := personTerms(person)
			if len(terms) == 0 {
				continue
			}
			model.AddLinearLE(terms, float64(perPersonCap))
			model.AddLinearLE(negate(terms), -1) // Σ terms >= 1
		}
	}
}

func negate(terms []solver.Term) []solver.Term {
	out := make([]solver.Term, len(terms))
	for i, t := range terms {
		out[i] = solver.Term{Var: t.Var, Coeff: -t.Coeff}
	}
	return out
}

func lockedPersonsForDuty(locked map[string]domain.PersonID, dutySlots []expander.Slot) map[domain.PersonID]bool {
	slotKeys := make(map[string]struct{}, len(dutySlots))
	for _, s := range dutySlots {
		slotKeys[s.Key()] = struct{}{}
	}
	out := make(map[domain.PersonID]bool)
	for slotKey, person := range locked {
		if _, ok := slotKeys[slotKey]; ok {
			out[person] = true
		}
	}
	return out
}

// addPerPersonCap is constraint family 5. capFor returns the cap that
// applies to a given person, letting the caller choose between the
// constant MaxPerPerson and the delta-scaled variant (§9 Open Questions).
func addPerPersonCap(model *solver.Model, vt *varTable, slots []expander.Slot, capFor func(domain.PersonID) int) {
	termsByPerson := make(map[domain.PersonID][]solver.Term)
	for _, s := range slots {
		for key, id := range vt.ids {
			if key.slotKey != s.Key() {
				continue
			}
			termsByPerson[key.person] = append(termsByPerson[key.person], solver.Term{Var: id, Coeff: 1})
		}
	}
	for person, terms := range termsByPerson {
		model.AddLinearLE(terms, float64(capFor(person)))
	}
}

// addMonthBoundaryContinuity is constraint family 6.
func addMonthBoundaryContinuity(model *solver.Model, vt *varTable, p Params, slots []expander.Slot) {
	monthStart := time.Date(p.Month.Year(), p.Month.Month(), 1, 0, 0, 0, 0, time.UTC)
	boundaryStart := monthStart.AddDate(0, 0, -7)

	byDuty := make(map[domain.DutyID][]expander.Slot)
	seen := make(map[string]struct{})
	for _, s := range slots {
		if _, dup := seen[s.Key()]; dup {
			continue
		}
		seen[s.Key()] = struct{}{}
		byDuty[s.Duty] = append(byDuty[s.Duty], s)
	}
	assigneeOf := make(map[string]domain.PersonID)
	for _, a := range p.ParentAssignments {
		s := expander.Slot{Year: a.Date.Year(), Month: a.Date.Month(), Day: a.Date.Day(), Duty: a.DutyID}
		if a.Date.Before(boundaryStart) {
			continue
		}
		assigneeOf[s.Key()] = a.PersonID
		if _, dup := seen[s.Key()]; dup {
			continue
		}
		seen[s.Key()] = struct{}{}
		byDuty[s.Duty] = append(byDuty[s.Duty], s)
	}

	for dutyID, list := range byDuty {
		eligible := p.Index.EligiblePeople(dutyID)
		if len(eligible) < 2 {
			continue
		}
		sort.Slice(list, func(i, j int) bool { return list[i].Date().Before(list[j].Date()) })
		exempt := lockedPersonsForDuty(p.Locked, list)

		for i := 1; i < len(list); i++ {
			earlier, later := list[i-1], list[i]
			if i == 1 && earlier.Date().Before(monthStart) {
				assignee, ok := assigneeOf[earlier.Key()]
				if !ok || exempt[assignee] {
					continue
				}
				id1, ok1 := vt.lookup(earlier.Key(), assignee)
				id2, ok2 := vt.lookup(later.Key(), assignee)
				if ok1 && ok2 {
					model.AddLinearLE([]solver.Term{{Var: id1, Coeff: 1}, {Var: id2, Coeff: 1}}, 1)
				}
				continue
			}
			for _, person := range eligible {
				if exempt[person] {
					continue
				}
				id1, ok1 := vt.lookup(earlier.Key(), person)
				id2, ok2 := vt.lookup(later.Key(), person)
				if ok1 && ok2 {
					model.AddLinearLE([]solver.Term{{Var: id1, Coeff: 1}, {Var: id2, Coeff: 1}}, 1)
				}
			}
		}
	}
}

// addLockedIn is constraint family 7.
func addLockedIn(model *solver.Model, vt *varTable, locked map[string]domain.PersonID) {
	for slotKey, person := range locked {
		id, ok := vt.lookup(slotKey, person)
		if !ok {
			continue
		}
		model.AddLinearEq([]solver.Term{{Var: id, Coeff: 1}}, 1)
	}
}
