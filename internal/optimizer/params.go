package optimizer

import (
	"math/rand"
	"time"

	"github.com/dutyroster/scheduler/internal/domain"
	"github.com/dutyroster/scheduler/internal/eligibility"
	"github.com/dutyroster/scheduler/internal/stats"
)

// DefaultMaxPerPerson is the per-person monthly assignment cap used unless
// Params.MaxPerPerson overrides it.
const DefaultMaxPerPerson = 7

// Params bundles everything one optimization run needs. Month is the first
// day of the target month; ParentAssignments may include dates from the
// month before it (needed for month-boundary continuity).
type Params struct {
	Month             time.Time
	Services          []domain.Service
	People            []domain.Person
	Index             *eligibility.Index
	ParentAssignments []domain.Assignment
	Stats             map[domain.StatKey]stats.Triple
	// Locked maps a slot key to the person it must be assigned to,
	// overriding whatever the solver would otherwise pick.
	Locked map[string]domain.PersonID
	// MaxPerPerson is the monthly cap on assignments per person; 0 means
	// DefaultMaxPerPerson. Ignored when DeltaScaledCap is true.
	MaxPerPerson int
	// DeltaScaledCap switches the per-person cap from the constant
	// MaxPerPerson to the historical variant scaled by each person's
	// average positive stats delta, clamped to [MinDeltaScaledCap,
	// MaxDeltaScaledCap] (§9 Open Questions).
	DeltaScaledCap bool
	// Rand drives the cold-start boost coefficient; nil falls back to a new
	// source with the fixed seed 1 on each call, which is fine for
	// production but should be supplied explicitly in tests that assert on k.
	Rand *rand.Rand
}

// MinDeltaScaledCap and MaxDeltaScaledCap bound the historical
// delta-scaled per-person cap.
const (
	MinDeltaScaledCap = 1
	MaxDeltaScaledCap = 5
)

func (p Params) maxPerPerson() int {
	if p.MaxPerPerson > 0 {
		return p.MaxPerPerson
	}
	return DefaultMaxPerPerson
}

// personCap returns the assignment cap that applies to person for this
// run: the constant maxPerPerson(), or, when DeltaScaledCap is set, a cap
// derived from 1/(1+avg_positive_delta) scaled into
// [MinDeltaScaledCap, MaxDeltaScaledCap] and rounded to the nearest
// integer. A person with no positive historical delta (never over-served)
// gets the maximum cap.
func (p Params) personCap(person domain.PersonID) int {
	if !p.DeltaScaledCap {
		return p.maxPerPerson()
	}

	var sum float64
	var count int
	for key, triple := range p.Stats {
		if key.PersonID != person || triple.Delta <= 0 {
			continue
		}
		sum += triple.Delta
		count++
	}

	avgPositiveDelta := 0.0
	if count > 0 {
		avgPositiveDelta = sum / float64(count)
	}

	raw := float64(MaxDeltaScaledCap) / (1 + avgPositiveDelta)
	if raw < MinDeltaScaledCap {
		raw = MinDeltaScaledCap
	}
	if raw > MaxDeltaScaledCap {
		raw = MaxDeltaScaledCap
	}
	return int(raw + 0.5)
}

func (p Params) rng() *rand.Rand {
	if p.Rand != nil {
		return p.Rand
	}
	return rand.New(rand.NewSource(1))
}

// dutyIndex flattens every service's duties into a lookup by ID.
func dutyIndex(services []domain.Service) map[domain.DutyID]domain.Duty {
	out := make(map[domain.DutyID]domain.Duty)
	for _, svc := range services {
		for _, d := range svc.Duties {
			out[d.ID] = d
		}
	}
	return out
}

// personIndex looks people up by ID.
func personIndex(people []domain.Person) map[domain.PersonID]domain.Person {
	out := make(map[domain.PersonID]domain.Person, len(people))
	for _, p := range people {
		out[p.ID] = p
	}
	return out
}
