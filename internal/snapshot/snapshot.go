// Package snapshot implements the Schedule Snapshot component (C6): the
// promote-to-official algorithm from §4.5, built on the Repository
// Interface (C7) the same way the teacher's internal/scheduler package
// builds its GenerateSchedule on top of internal/fairness.Tracker and
// internal/database.DB.
package snapshot

import (
	"context"
	"fmt"

	"github.com/dutyroster/scheduler/internal/domain"
	"github.com/dutyroster/scheduler/internal/eligibility"
	"github.com/dutyroster/scheduler/internal/logging"
	"github.com/dutyroster/scheduler/internal/metrics"
	"github.com/dutyroster/scheduler/internal/repository"
	"github.com/dutyroster/scheduler/internal/stats"
)

var log = logging.GetLogger("snapshot")

// Promote marks versionID official within its calendar month, demoting any
// other official version of the same month, then ensures the version has
// a bound stats snapshot: freshly computed for pairs this version actually
// assigned; for every other relevant eligible pair, the newest existing
// snapshot row for that pair (repository.LatestSnapshotRow) is rebound by
// reference, or a fresh row is written when none exists. The reused row is
// chosen by creation time alone: the month and official flag of the
// versions it is bound to are not checked.
func Promote(ctx context.Context, repo repository.Repository, versionID domain.ScheduleVersionID) error {
	return repo.WithTransaction(ctx, func(ctx context.Context) error {
		version, err := repo.GetVersion(ctx, versionID)
		if err != nil {
			return fmt.Errorf("loading version %s: %w", versionID, err)
		}

		if err := demoteOtherOfficialVersions(ctx, repo, version); err != nil {
			return err
		}

		if err := repo.SetOfficial(ctx, versionID, true); err != nil {
			return fmt.Errorf("marking version %s official: %w", versionID, err)
		}

		existing, err := repo.LoadParentStats(ctx, versionID)
		if err != nil {
			return fmt.Errorf("checking existing snapshot for version %s: %w", versionID, err)
		}
		if len(existing) > 0 {
			log.Debug().Str("version", string(versionID)).Msg("version already has a bound snapshot, skipping")
			return nil
		}

		return writeSnapshot(ctx, repo, version)
	})
}

func demoteOtherOfficialVersions(ctx context.Context, repo repository.Repository, version domain.ScheduleVersion) error {
	official, err := repo.OfficialVersionForMonth(ctx, version.MonthDate)
	if err != nil {
		return fmt.Errorf("loading current official version for month: %w", err)
	}
	if official == nil || official.ID == version.ID {
		return nil
	}
	if err := repo.SetOfficial(ctx, official.ID, false); err != nil {
		return fmt.Errorf("demoting previous official version %s: %w", official.ID, err)
	}
	return nil
}

func writeSnapshot(ctx context.Context, repo repository.Repository, version domain.ScheduleVersion) error {
	people, err := repo.LoadActivePersons(ctx)
	if err != nil {
		return fmt.Errorf("loading active persons: %w", err)
	}
	services, err := repo.LoadServicesWithDuties(ctx)
	if err != nil {
		return fmt.Errorf("loading services: %w", err)
	}
	preferences, err := repo.LoadPreferences(ctx)
	if err != nil {
		return fmt.Errorf("loading preferences: %w", err)
	}
	assignments, err := repo.LoadParentAssignments(ctx, version.ID)
	if err != nil {
		return fmt.Errorf("loading assignments for version %s: %w", version.ID, err)
	}

	duties := dutyIndex(services)
	idx := eligibility.Build(people, preferences)
	dutyList := make([]domain.Duty, 0, len(duties))
	for _, d := range duties {
		dutyList = append(dutyList, d)
	}
	triples := stats.Compute(people, dutyList, assignments, idx)

	keys, err := repo.AssignmentKeysForVersion(ctx, version.ID)
	if err != nil {
		return fmt.Errorf("loading distinct assignment keys for version %s: %w", version.ID, err)
	}
	assignedKeys := make(map[domain.StatKey]struct{}, len(keys))
	for _, key := range keys {
		assignedKeys[key] = struct{}{}
	}

	relevantPeople := relevantPersonSet(people, preferences, assignedKeys)
	relevantDuties := relevantDutySet(duties, preferences, relevantPeople, assignedKeys)

	if err := repo.DeleteSnapshotsBoundSolelyTo(ctx, version.ID); err != nil {
		return fmt.Errorf("clearing snapshots solely bound to version %s: %w", version.ID, err)
	}

	var fresh []domain.StatsSnapshot
	for person := range relevantPeople {
		for duty := range relevantDuties {
			if !idx.IsEligibleByDuty(person, duty) {
				continue
			}
			key := domain.StatKey{PersonID: person, DutyID: duty}

			if _, assignedThisVersion := assignedKeys[key]; assignedThisVersion {
				fresh = append(fresh, snapshotRowFor(key, triples))
				metrics.SnapshotFreshTotal.Inc()
				continue
			}

			latest, err := repo.LatestSnapshotRow(ctx, key)
			if err != nil {
				return fmt.Errorf("loading latest snapshot for (%d, %s): %w", person, duty, err)
			}
			if latest != nil {
				if err := repo.BindExistingSnapshot(ctx, version.ID, latest.ID); err != nil {
					return fmt.Errorf("rebinding snapshot %s to version %s: %w", latest.ID, version.ID, err)
				}
				metrics.SnapshotReuseTotal.Inc()
				continue
			}
			fresh = append(fresh, snapshotRowFor(key, triples))
			metrics.SnapshotFreshTotal.Inc()
		}
	}

	if len(fresh) > 0 {
		if err := repo.WriteSnapshot(ctx, version.ID, fresh); err != nil {
			return fmt.Errorf("writing fresh snapshot rows for version %s: %w", version.ID, err)
		}
	}

	log.Info().
		Str("version", string(version.ID)).
		Int("fresh_rows", len(fresh)).
		Msg("promoted version to official")
	return nil
}

func snapshotRowFor(key domain.StatKey, triples map[domain.StatKey]stats.Triple) domain.StatsSnapshot {
	t := triples[key]
	return domain.StatsSnapshot{
		PersonID:  key.PersonID,
		DutyID:    key.DutyID,
		IdealAvg:  t.IdealAvg,
		ActualAvg: t.ActualAvg,
		Delta:     t.Delta,
	}
}

// relevantPersonSet is assignees in this version union active persons with
// at least one positive preference (§4.5 step 2).
func relevantPersonSet(people []domain.Person, preferences []domain.Preference, assignedKeys map[domain.StatKey]struct{}) map[domain.PersonID]struct{} {
	out := make(map[domain.PersonID]struct{})
	for key := range assignedKeys {
		out[key.PersonID] = struct{}{}
	}
	for _, pref := range preferences {
		if pref.Eligible() {
			out[pref.PersonID] = struct{}{}
		}
	}

	active := make(map[domain.PersonID]struct{}, len(people))
	for _, p := range people {
		if p.Active {
			active[p.ID] = struct{}{}
		}
	}
	for person := range out {
		if _, ok := active[person]; !ok {
			delete(out, person)
		}
	}
	return out
}

// relevantDutySet is duties with preferences from relevant people union
// duties assigned in this version (§4.5 step 2).
func relevantDutySet(duties map[domain.DutyID]domain.Duty, preferences []domain.Preference, relevantPeople map[domain.PersonID]struct{}, assignedKeys map[domain.StatKey]struct{}) map[domain.DutyID]struct{} {
	out := make(map[domain.DutyID]struct{})
	for key := range assignedKeys {
		out[key.DutyID] = struct{}{}
	}
	for _, pref := range preferences {
		if !pref.Eligible() {
			continue
		}
		if _, ok := relevantPeople[pref.PersonID]; !ok {
			continue
		}
		if _, ok := duties[pref.DutyID]; ok {
			out[pref.DutyID] = struct{}{}
		}
	}
	return out
}

func dutyIndex(services []domain.Service) map[domain.DutyID]domain.Duty {
	out := make(map[domain.DutyID]domain.Duty)
	for _, svc := range services {
		for _, d := range svc.Duties {
			out[d.ID] = d
		}
	}
	return out
}
