package optimizer

import (
	"testing"

	"github.com/dutyroster/scheduler/internal/domain"
	"github.com/dutyroster/scheduler/internal/stats"
	"github.com/stretchr/testify/assert"
)

func TestPersonCapConstantVariant(t *testing.T) {
	p := Params{MaxPerPerson: 3}
	assert.Equal(t, 3, p.personCap(domain.PersonID(1)))

	p = Params{}
	assert.Equal(t, DefaultMaxPerPerson, p.personCap(domain.PersonID(1)))
}

func TestPersonCapDeltaScaledVariant(t *testing.T) {
	alice := domain.PersonID(1)
	bob := domain.PersonID(2)

	p := Params{
		DeltaScaledCap: true,
		Stats: map[domain.StatKey]stats.Triple{
			{PersonID: alice, DutyID: "1"}: {Delta: 0},
			{PersonID: bob, DutyID: "1"}:   {Delta: 4},
		},
	}

	assert.Equal(t, MaxDeltaScaledCap, p.personCap(alice), "no positive delta gets the maximum cap")
	assert.Equal(t, 1, p.personCap(bob), "5/(1+4) rounds to 1, the minimum cap")
}

func TestPersonCapDeltaScaledClampsToRange(t *testing.T) {
	person := domain.PersonID(1)
	p := Params{
		DeltaScaledCap: true,
		Stats: map[domain.StatKey]stats.Triple{
			{PersonID: person, DutyID: "1"}: {Delta: 100},
		},
	}

	got := p.personCap(person)
	assert.GreaterOrEqual(t, got, MinDeltaScaledCap)
	assert.LessOrEqual(t, got, MaxDeltaScaledCap)
}
