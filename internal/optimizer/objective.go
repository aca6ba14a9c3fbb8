package optimizer

import (
	"fmt"
	"math/rand"

	"github.com/dutyroster/scheduler/internal/domain"
	"github.com/dutyroster/scheduler/internal/eligibility"
	"github.com/dutyroster/scheduler/internal/expander"
	"github.com/dutyroster/scheduler/internal/scheduleerrors"
	"github.com/dutyroster/scheduler/internal/solver"
	"github.com/dutyroster/scheduler/internal/stats"
)

// coldStartThreshold is the fraction of ideal average below which a
// (person, duty) pair is considered brand-new and gets the cold-start
// boost instead of its raw actual average.
const coldStartThreshold = 0.05

// coldStartBoostMin and coldStartBoostMax bound the uniformly-drawn k used
// to blend a cold-start pair's actual average toward its ideal.
const (
	coldStartBoostMin = 0.9
	coldStartBoostMax = 1.1
)

// addObjective builds the maximize-fairness-gain objective over every
// current-month (slot, person) variable, applying the cold-start boost
// per (person, duty) and caching its k within this one run.
func addObjective(model *solver.Model, vt *varTable, slots []expander.Slot, idx *eligibility.Index, statsByKey map[domain.StatKey]stats.Triple, rng *rand.Rand) error {
	boostK := make(map[domain.StatKey]float64)
	var terms []solver.Term

	peopleWithStats := make(map[domain.PersonID]struct{})
	for key := range statsByKey {
		peopleWithStats[key.PersonID] = struct{}{}
	}

	for _, s := range slots {
		for _, person := range idx.EligiblePeople(s.Duty) {
			id, ok := vt.lookup(s.Key(), person)
			if !ok {
				continue
			}
			key := domain.StatKey{PersonID: person, DutyID: s.Duty}
			triple, ok := statsByKey[key]
			if !ok {
				if _, hasAny := peopleWithStats[person]; hasAny {
					return scheduleerrors.New(scheduleerrors.KindMissingStats,
						fmt.Sprintf("no fairness stats for person %d duty %s", person, s.Duty))
				}
				// Person has no stats at all (e.g. the first generation for a
				// brand-new deployment, or a newly added person): treat as a
				// clean slate rather than failing the whole run.
				triple = stats.Triple{}
			}
			adjustedActual := triple.ActualAvg
			if triple.IdealAvg > 0 && triple.ActualAvg < coldStartThreshold*triple.IdealAvg {
				k, cached := boostK[key]
				if !cached {
					k = coldStartBoostMin + rng.Float64()*(coldStartBoostMax-coldStartBoostMin)
					boostK[key] = k
				}
				adjustedActual = triple.ActualAvg + (triple.IdealAvg-triple.ActualAvg)*k
			}
			coeff := triple.IdealAvg - adjustedActual*idx.PreferenceValue(person, s.Duty)
			terms = append(terms, solver.Term{Var: id, Coeff: coeff})
		}
	}

	model.SetObjective(true, terms)
	return nil
}
