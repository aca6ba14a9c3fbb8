// Package stats implements the Stats Engine (C3): the per-(person, duty)
// ideal/actual/delta fairness triples computed from assignment history and
// preference weights.
package stats

import (
	"math"

	"github.com/dutyroster/scheduler/internal/domain"
	"github.com/dutyroster/scheduler/internal/eligibility"
	"github.com/dutyroster/scheduler/internal/logging"
)

// Triple is one (ideal, actual, delta) fairness measurement, rounded to 8
// decimal places as the spec requires for snapshot storage.
type Triple struct {
	IdealAvg  float64
	ActualAvg float64
	Delta     float64
}

const roundingScale = 1e8

func round8(v float64) float64 {
	return math.Round(v*roundingScale) / roundingScale
}

// Compute returns the fairness triple for every (person, duty) pair that
// has either a positive ideal share (an eligible preference) or a
// historical assignment; a zero-value preference with no history is
// omitted. The triples are derived from the
// full assignment history (assignments) and the eligibility index built
// from current preferences.
func Compute(people []domain.Person, duties []domain.Duty, assignments []domain.Assignment, idx *eligibility.Index) map[domain.StatKey]Triple {
	log := logging.GetLogger("stats")

	assignmentsByDuty := make(map[domain.DutyID]int)
	assignmentsByPersonDuty := make(map[domain.StatKey]int)
	for _, a := range assignments {
		assignmentsByDuty[a.DutyID]++
		assignmentsByPersonDuty[domain.StatKey{PersonID: a.PersonID, DutyID: a.DutyID}]++
	}

	result := make(map[domain.StatKey]Triple)
	for _, d := range duties {
		ideals := idealAverages(d.ID, people, idx)
		totalForDuty := assignmentsByDuty[d.ID]
		for _, p := range people {
			key := domain.StatKey{PersonID: p.ID, DutyID: d.ID}
			ideal := ideals[p.ID]
			actual := 0.0
			if totalForDuty > 0 {
				actual = float64(assignmentsByPersonDuty[key]) / float64(totalForDuty)
			}
			delta := 0.0
			if ideal > 0 {
				delta = (actual - ideal) / ideal
			}
			if ideal == 0 && actual == 0 {
				continue
			}
			result[key] = Triple{
				IdealAvg:  round8(ideal),
				ActualAvg: round8(actual),
				Delta:     round8(delta),
			}
		}
	}

	log.Debug().Int("pairs", len(result)).Msg("computed fairness triples")
	return result
}

// idealAverages returns the weight-proportional ideal share for duty d
// across the given people. Eligible persons with zero total preference
// weight fall back to a uniform split; ineligible persons get 0.
func idealAverages(d domain.DutyID, people []domain.Person, idx *eligibility.Index) map[domain.PersonID]float64 {
	eligible := idx.EligiblePeople(d)
	out := make(map[domain.PersonID]float64, len(people))
	if len(eligible) == 0 {
		return out
	}

	var totalWeight float64
	for _, pid := range eligible {
		totalWeight += idx.PreferenceValue(pid, d)
	}

	uniform := 1.0 / float64(len(eligible))
	for _, pid := range eligible {
		if totalWeight == 0 {
			out[pid] = uniform
			continue
		}
		out[pid] = idx.PreferenceValue(pid, d) / totalWeight
	}
	return out
}
