package optimizer

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/dutyroster/scheduler/internal/domain"
	"github.com/dutyroster/scheduler/internal/expander"
	"github.com/dutyroster/scheduler/internal/logging"
	"github.com/dutyroster/scheduler/internal/metrics"
	"github.com/dutyroster/scheduler/internal/scheduleerrors"
	"github.com/dutyroster/scheduler/internal/solver"
	"github.com/rs/zerolog"
)

// Assigned is one decoded (slot, person) pair from an optimal solution.
type Assigned struct {
	SlotKey    string
	PersonName string
}

// Run builds the month's constraint model, solves it and decodes the
// result. Infeasible and SolverFailure outcomes are reported as errors per
// §4.4's failure semantics — no partial result is ever returned.
func Run(ctx context.Context, p Params) ([]Assigned, error) {
	log := logging.GetLogger("optimizer")
	duties := dutyIndex(p.Services)
	start := time.Now()

	slots := expander.Expand(p.Month.Year(), p.Month.Month(), p.Services)
	log.Debug().Int("slot_count", len(slots)).Msg("expanded month for optimization run")

	model := solver.NewModel()
	vt, err := build(model, p, slots, duties)
	if err != nil {
		return nil, fmt.Errorf("building constraint model: %w", err)
	}
	if err := addObjective(model, vt, slots, p.Index, p.Stats, p.rng()); err != nil {
		return nil, fmt.Errorf("building objective: %w", err)
	}

	status, solution, err := model.Solve(ctx)
	if err != nil {
		metrics.SolveDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		metrics.SolveFailureTotal.Inc()
		return nil, scheduleerrors.Wrap(scheduleerrors.KindSolverFailure, "solver returned an error", err)
	}
	switch status {
	case solver.StatusInfeasible:
		metrics.SolveDuration.WithLabelValues("infeasible").Observe(time.Since(start).Seconds())
		metrics.SolveInfeasibleTotal.Inc()
		return nil, scheduleerrors.New(scheduleerrors.KindInfeasible, "no feasible assignment satisfies every constraint")
	case solver.StatusSolverFailure:
		metrics.SolveDuration.WithLabelValues("failure").Observe(time.Since(start).Seconds())
		metrics.SolveFailureTotal.Inc()
		return nil, scheduleerrors.New(scheduleerrors.KindSolverFailure, "solver terminated without proving optimality")
	}

	metrics.SolveDuration.WithLabelValues("optimal").Observe(time.Since(start).Seconds())
	return decode(vt, solution, slots, p, duties, log), nil
}

func decode(vt *varTable, solution map[solver.VarID]float64, slots []expander.Slot, p Params, duties map[domain.DutyID]domain.Duty, log zerolog.Logger) []Assigned {
	people := personIndex(p.People)
	currentMonth := make(map[string]struct{}, len(slots))
	for _, s := range slots {
		currentMonth[s.Key()] = struct{}{}
	}

	var results []Assigned
	for key, id := range vt.ids {
		if _, inMonth := currentMonth[key.slotKey]; !inMonth {
			continue
		}
		if solution[id] < 0.5 {
			continue
		}
		slot, ok := vt.slotOf[key.slotKey]
		if !ok {
			continue
		}
		if !p.Index.IsEligibleByDuty(key.person, slot.Duty) {
			log.Warn().Str("slot", key.slotKey).Msg("ineligible person decoded from solution, dropping")
			continue
		}
		person, ok := people[key.person]
		if !ok {
			continue
		}
		results = append(results, Assigned{SlotKey: key.slotKey, PersonName: person.InvertedName()})
	}

	sort.Slice(results, func(i, j int) bool {
		si, sj := vt.slotOf[results[i].SlotKey], vt.slotOf[results[j].SlotKey]
		oi, oj := duties[si.Duty].Order, duties[sj.Duty].Order
		if oi != oj {
			return oi < oj
		}
		return si.Date().Before(sj.Date())
	})
	return results
}
