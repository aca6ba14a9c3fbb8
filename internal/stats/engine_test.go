package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dutyroster/scheduler/internal/domain"
	"github.com/dutyroster/scheduler/internal/eligibility"
)

func TestComputeWeightedIdealAndActual(t *testing.T) {
	people := []domain.Person{
		{ID: 1, FirstName: "Ada", LastName: "Lovelace", Active: true},
		{ID: 2, FirstName: "Grace", LastName: "Hopper", Active: true},
	}
	duties := []domain.Duty{{ID: "usher"}}
	preferences := []domain.Preference{
		{PersonID: 1, DutyID: "usher", Value: 1.0},
		{PersonID: 2, DutyID: "usher", Value: 3.0},
	}
	idx := eligibility.Build(people, preferences)

	assignments := []domain.Assignment{
		{PersonID: 1, DutyID: "usher"},
		{PersonID: 2, DutyID: "usher"},
		{PersonID: 2, DutyID: "usher"},
		{PersonID: 2, DutyID: "usher"},
	}

	triples := Compute(people, duties, assignments, idx)

	ada := triples[domain.StatKey{PersonID: 1, DutyID: "usher"}]
	assert.Equal(t, 0.25, ada.IdealAvg, "Ada's weight 1 of total weight 4")
	assert.Equal(t, 0.25, ada.ActualAvg, "Ada holds 1 of 4 assignments")
	assert.Equal(t, 0.0, ada.Delta, "actual matches ideal exactly")

	grace := triples[domain.StatKey{PersonID: 2, DutyID: "usher"}]
	assert.Equal(t, 0.75, grace.IdealAvg)
	assert.Equal(t, 0.75, grace.ActualAvg)
	assert.Equal(t, 0.0, grace.Delta)
}

func TestComputeOmitsPairsWithNoIdealAndNoActual(t *testing.T) {
	people := []domain.Person{{ID: 1, FirstName: "Ada", LastName: "Lovelace", Active: true}}
	duties := []domain.Duty{{ID: "usher"}}
	idx := eligibility.Build(people, nil)

	triples := Compute(people, duties, nil, idx)

	_, ok := triples[domain.StatKey{PersonID: 1, DutyID: "usher"}]
	assert.False(t, ok, "no preference and no history means no tracked pair")
}

func TestComputePositiveDeltaWhenOverServed(t *testing.T) {
	people := []domain.Person{
		{ID: 1, FirstName: "Ada", LastName: "Lovelace", Active: true},
		{ID: 2, FirstName: "Grace", LastName: "Hopper", Active: true},
	}
	duties := []domain.Duty{{ID: "usher"}}
	preferences := []domain.Preference{
		{PersonID: 1, DutyID: "usher", Value: 1.0},
		{PersonID: 2, DutyID: "usher", Value: 1.0},
	}
	idx := eligibility.Build(people, preferences)

	assignments := []domain.Assignment{
		{PersonID: 1, DutyID: "usher"},
		{PersonID: 1, DutyID: "usher"},
		{PersonID: 1, DutyID: "usher"},
		{PersonID: 2, DutyID: "usher"},
	}

	triples := Compute(people, duties, assignments, idx)

	ada := triples[domain.StatKey{PersonID: 1, DutyID: "usher"}]
	assert.Equal(t, 0.5, ada.IdealAvg)
	assert.Equal(t, 0.75, ada.ActualAvg)
	assert.InDelta(t, 0.5, ada.Delta, 1e-9, "over-served by 50% of ideal")
}
