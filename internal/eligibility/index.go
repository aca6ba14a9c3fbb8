// Package eligibility implements the Eligibility Index (C2): for each duty,
// the set of active people with a positive preference for it.
package eligibility

import (
	"github.com/dutyroster/scheduler/internal/domain"
	"github.com/dutyroster/scheduler/internal/logging"
)

// Index answers eligibility queries by (person, duty) or by (slot's duty).
// It is built once per optimization run from the preference table and the
// active-person set, then queried many times by the constraint builder.
type Index struct {
	eligiblePeople map[domain.DutyID]map[domain.PersonID]struct{}
	preference     map[domain.StatKey]float64
}

// Build scans preferences restricted to active people and produces an
// Index. Preferences referencing an inactive or unknown person are ignored.
func Build(people []domain.Person, preferences []domain.Preference) *Index {
	log := logging.GetLogger("eligibility")

	active := make(map[domain.PersonID]struct{}, len(people))
	for _, p := range people {
		if p.Active {
			active[p.ID] = struct{}{}
		}
	}

	idx := &Index{
		eligiblePeople: make(map[domain.DutyID]map[domain.PersonID]struct{}),
		preference:     make(map[domain.StatKey]float64),
	}
	for _, pref := range preferences {
		if _, ok := active[pref.PersonID]; !ok {
			continue
		}
		idx.preference[domain.StatKey{PersonID: pref.PersonID, DutyID: pref.DutyID}] = pref.Value
		if !pref.Eligible() {
			continue
		}
		if idx.eligiblePeople[pref.DutyID] == nil {
			idx.eligiblePeople[pref.DutyID] = make(map[domain.PersonID]struct{})
		}
		idx.eligiblePeople[pref.DutyID][pref.PersonID] = struct{}{}
	}

	log.Debug().Int("duties_with_eligibles", len(idx.eligiblePeople)).Msg("built eligibility index")
	return idx
}

// EligiblePeople returns the set of person IDs eligible for duty d.
func (idx *Index) EligiblePeople(d domain.DutyID) []domain.PersonID {
	set := idx.eligiblePeople[d]
	out := make([]domain.PersonID, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	return out
}

// IsEligibleByDuty reports whether person p is eligible for duty d.
func (idx *Index) IsEligibleByDuty(p domain.PersonID, d domain.DutyID) bool {
	_, ok := idx.eligiblePeople[d][p]
	return ok
}

// PreferenceValue returns the raw preference value for (p, d), 0 if none is
// recorded.
func (idx *Index) PreferenceValue(p domain.PersonID, d domain.DutyID) float64 {
	return idx.preference[domain.StatKey{PersonID: p, DutyID: d}]
}

// DutyCount returns the number of duties with a non-empty eligible set.
func (idx *Index) DutyCount() int {
	return len(idx.eligiblePeople)
}
