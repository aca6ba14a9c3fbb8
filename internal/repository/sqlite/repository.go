// Package sqlite implements the Repository Interface (C7) for a
// modernc.org/sqlite-backed store, following the teacher's
// internal/fairness.Tracker CRUD style and internal/database.DB
// connection/transaction handling, generalized from the night-routine
// teacher's single-table fairness log to the full duty-rotation schema.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dutyroster/scheduler/internal/domain"
	"github.com/dutyroster/scheduler/internal/repository"
	"github.com/dutyroster/scheduler/internal/scheduleerrors"
	"github.com/dutyroster/scheduler/internal/stats"
)

const dateLayout = time.RFC3339

// Repository is the concrete SQLite-backed implementation of
// repository.Repository.
type Repository struct {
	db *DB
}

var _ repository.Repository = (*Repository)(nil)

// NewRepository wraps an already-opened, already-migrated DB.
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) LoadActivePersons(ctx context.Context) ([]domain.Person, error) {
	rows, err := r.db.querier(ctx).QueryContext(ctx, `
		SELECT id, first_name, last_name, active
		FROM persons
		WHERE active = 1
		ORDER BY last_name, first_name
	`)
	if err != nil {
		return nil, scheduleerrors.Wrap(scheduleerrors.KindPersistenceError, "loading active persons", err)
	}
	defer rows.Close()

	var out []domain.Person
	for rows.Next() {
		var p domain.Person
		var active int
		if err := rows.Scan(&p.ID, &p.FirstName, &p.LastName, &active); err != nil {
			return nil, scheduleerrors.Wrap(scheduleerrors.KindPersistenceError, "scanning person row", err)
		}
		p.Active = active != 0
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repository) LoadServicesWithDuties(ctx context.Context) ([]domain.Service, error) {
	q := r.db.querier(ctx)

	serviceRows, err := q.QueryContext(ctx, `
		SELECT id, name, weekday, start_time FROM services ORDER BY id
	`)
	if err != nil {
		return nil, scheduleerrors.Wrap(scheduleerrors.KindPersistenceError, "loading services", err)
	}
	defer serviceRows.Close()

	var services []domain.Service
	byID := make(map[domain.ServiceID]*domain.Service)
	for serviceRows.Next() {
		var s domain.Service
		var weekday sql.NullInt64
		var startTime string
		if err := serviceRows.Scan(&s.ID, &s.Name, &weekday, &startTime); err != nil {
			return nil, scheduleerrors.Wrap(scheduleerrors.KindPersistenceError, "scanning service row", err)
		}
		if weekday.Valid {
			wd := int(weekday.Int64)
			s.Weekday = &wd
		}
		t, err := time.Parse("15:04:05", startTime)
		if err != nil {
			return nil, scheduleerrors.Wrap(scheduleerrors.KindPersistenceError, "parsing service start_time", err)
		}
		s.StartTime = t
		services = append(services, s)
	}
	if err := serviceRows.Err(); err != nil {
		return nil, err
	}
	for i := range services {
		byID[services[i].ID] = &services[i]
	}

	dutyRows, err := q.QueryContext(ctx, `
		SELECT id, name, service_id, ord FROM duties ORDER BY service_id, ord
	`)
	if err != nil {
		return nil, scheduleerrors.Wrap(scheduleerrors.KindPersistenceError, "loading duties", err)
	}
	defer dutyRows.Close()

	duties := make(map[domain.DutyID]*domain.Duty)
	for dutyRows.Next() {
		var d domain.Duty
		if err := dutyRows.Scan(&d.ID, &d.Name, &d.ServiceID, &d.Order); err != nil {
			return nil, scheduleerrors.Wrap(scheduleerrors.KindPersistenceError, "scanning duty row", err)
		}
		d.Excludes = make(map[domain.DutyID]struct{})
		svc, ok := byID[d.ServiceID]
		if !ok {
			return nil, scheduleerrors.New(scheduleerrors.KindPersistenceError, fmt.Sprintf("duty %s references unknown service %d", d.ID, d.ServiceID))
		}
		svc.Duties = append(svc.Duties, d)
		duties[d.ID] = &svc.Duties[len(svc.Duties)-1]
	}
	if err := dutyRows.Err(); err != nil {
		return nil, err
	}

	excludeRows, err := q.QueryContext(ctx, `SELECT duty_id, excluded_duty_id FROM duty_excludes`)
	if err != nil {
		return nil, scheduleerrors.Wrap(scheduleerrors.KindPersistenceError, "loading duty excludes", err)
	}
	defer excludeRows.Close()

	for excludeRows.Next() {
		var dutyID, excludedID domain.DutyID
		if err := excludeRows.Scan(&dutyID, &excludedID); err != nil {
			return nil, scheduleerrors.Wrap(scheduleerrors.KindPersistenceError, "scanning duty_excludes row", err)
		}
		if d, ok := duties[dutyID]; ok {
			d.Excludes[excludedID] = struct{}{}
		}
	}
	if err := excludeRows.Err(); err != nil {
		return nil, err
	}

	return services, nil
}

func (r *Repository) LoadPreferences(ctx context.Context) ([]domain.Preference, error) {
	rows, err := r.db.querier(ctx).QueryContext(ctx, `
		SELECT person_id, duty_id, value FROM preferences
	`)
	if err != nil {
		return nil, scheduleerrors.Wrap(scheduleerrors.KindPersistenceError, "loading preferences", err)
	}
	defer rows.Close()

	var out []domain.Preference
	for rows.Next() {
		var p domain.Preference
		if err := rows.Scan(&p.PersonID, &p.DutyID, &p.Value); err != nil {
			return nil, scheduleerrors.Wrap(scheduleerrors.KindPersistenceError, "scanning preference row", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repository) LoadParentAssignments(ctx context.Context, version domain.ScheduleVersionID) ([]domain.Assignment, error) {
	rows, err := r.db.querier(ctx).QueryContext(ctx, `
		SELECT person_id, duty_id, assignment_date, schedule_version_id, created_at
		FROM assignments
		WHERE schedule_version_id = ?
	`, string(version))
	if err != nil {
		return nil, scheduleerrors.Wrap(scheduleerrors.KindPersistenceError, "loading parent assignments", err)
	}
	defer rows.Close()

	var out []domain.Assignment
	for rows.Next() {
		var a domain.Assignment
		var dateStr, createdStr, versionID string
		if err := rows.Scan(&a.PersonID, &a.DutyID, &dateStr, &versionID, &createdStr); err != nil {
			return nil, scheduleerrors.Wrap(scheduleerrors.KindPersistenceError, "scanning assignment row", err)
		}
		date, err := time.Parse(dateLayout, dateStr)
		if err != nil {
			return nil, scheduleerrors.Wrap(scheduleerrors.KindPersistenceError, "parsing assignment_date", err)
		}
		created, err := time.Parse(dateLayout, createdStr)
		if err != nil {
			return nil, scheduleerrors.Wrap(scheduleerrors.KindPersistenceError, "parsing created_at", err)
		}
		a.Date = date
		a.CreatedAt = created
		a.ScheduleVersionID = domain.ScheduleVersionID(versionID)
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *Repository) LoadParentStats(ctx context.Context, version domain.ScheduleVersionID) (map[domain.StatKey]stats.Triple, error) {
	rows, err := r.db.querier(ctx).QueryContext(ctx, `
		SELECT s.person_id, s.duty_id, s.ideal_avg, s.actual_avg, s.delta
		FROM stats_snapshots s
		JOIN snapshot_versions sv ON sv.snapshot_id = s.id
		WHERE sv.version_id = ?
	`, string(version))
	if err != nil {
		return nil, scheduleerrors.Wrap(scheduleerrors.KindPersistenceError, "loading parent stats", err)
	}
	defer rows.Close()

	out := make(map[domain.StatKey]stats.Triple)
	for rows.Next() {
		var key domain.StatKey
		var t stats.Triple
		if err := rows.Scan(&key.PersonID, &key.DutyID, &t.IdealAvg, &t.ActualAvg, &t.Delta); err != nil {
			return nil, scheduleerrors.Wrap(scheduleerrors.KindPersistenceError, "scanning stats snapshot row", err)
		}
		out[key] = t
	}
	return out, rows.Err()
}

func (r *Repository) SaveAssignments(ctx context.Context, version domain.ScheduleVersionID, assignments []repository.AssignmentInput) error {
	q := r.db.querier(ctx)
	now := nowString()
	for _, a := range assignments {
		_, err := q.ExecContext(ctx, `
			INSERT INTO assignments (schedule_version_id, duty_id, assignment_date, person_id, created_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(schedule_version_id, duty_id, assignment_date)
			DO UPDATE SET person_id = excluded.person_id
		`, string(version), string(a.DutyID), a.Date.Format(dateLayout), int64(a.PersonID), now)
		if err != nil {
			return scheduleerrors.Wrap(scheduleerrors.KindPersistenceError, "saving assignment", err)
		}
	}
	return nil
}

func (r *Repository) ClearAssignments(ctx context.Context, version domain.ScheduleVersionID) error {
	_, err := r.db.querier(ctx).ExecContext(ctx, `
		DELETE FROM assignments WHERE schedule_version_id = ?
	`, string(version))
	if err != nil {
		return scheduleerrors.Wrap(scheduleerrors.KindPersistenceError, "clearing assignments", err)
	}
	return nil
}

func (r *Repository) WriteSnapshot(ctx context.Context, version domain.ScheduleVersionID, rows []domain.StatsSnapshot) error {
	q := r.db.querier(ctx)
	now := nowString()
	for _, row := range rows {
		id := row.ID
		if id == "" {
			id = domain.StatsSnapshotID(uuid.NewString())
		}
		if _, err := q.ExecContext(ctx, `
			INSERT INTO stats_snapshots (id, person_id, duty_id, ideal_avg, actual_avg, delta, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, string(id), int64(row.PersonID), string(row.DutyID), row.IdealAvg, row.ActualAvg, row.Delta, now); err != nil {
			return scheduleerrors.Wrap(scheduleerrors.KindPersistenceError, "inserting stats snapshot", err)
		}
		if err := r.bindSnapshot(ctx, version, id); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repository) BindExistingSnapshot(ctx context.Context, version domain.ScheduleVersionID, snapshotID domain.StatsSnapshotID) error {
	return r.bindSnapshot(ctx, version, snapshotID)
}

func (r *Repository) bindSnapshot(ctx context.Context, version domain.ScheduleVersionID, snapshotID domain.StatsSnapshotID) error {
	_, err := r.db.querier(ctx).ExecContext(ctx, `
		INSERT INTO snapshot_versions (snapshot_id, version_id)
		VALUES (?, ?)
		ON CONFLICT(snapshot_id, version_id) DO NOTHING
	`, string(snapshotID), string(version))
	if err != nil {
		return scheduleerrors.Wrap(scheduleerrors.KindPersistenceError, "binding snapshot to version", err)
	}
	return nil
}

func (r *Repository) LatestSnapshotRow(ctx context.Context, key domain.StatKey) (*domain.StatsSnapshot, error) {
	row := r.db.querier(ctx).QueryRowContext(ctx, `
		SELECT id, person_id, duty_id, ideal_avg, actual_avg, delta, created_at
		FROM stats_snapshots
		WHERE person_id = ? AND duty_id = ?
		ORDER BY created_at DESC
		LIMIT 1
	`, int64(key.PersonID), string(key.DutyID))

	var s domain.StatsSnapshot
	var id, createdStr string
	if err := row.Scan(&id, &s.PersonID, &s.DutyID, &s.IdealAvg, &s.ActualAvg, &s.Delta, &createdStr); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, scheduleerrors.Wrap(scheduleerrors.KindPersistenceError, "loading latest snapshot", err)
	}
	created, err := time.Parse(dateLayout, createdStr)
	if err != nil {
		return nil, scheduleerrors.Wrap(scheduleerrors.KindPersistenceError, "parsing snapshot created_at", err)
	}
	s.ID = domain.StatsSnapshotID(id)
	s.CreatedAt = created
	return &s, nil
}

func (r *Repository) AssignmentKeysForVersion(ctx context.Context, version domain.ScheduleVersionID) ([]domain.StatKey, error) {
	rows, err := r.db.querier(ctx).QueryContext(ctx, `
		SELECT DISTINCT person_id, duty_id FROM assignments WHERE schedule_version_id = ?
	`, string(version))
	if err != nil {
		return nil, scheduleerrors.Wrap(scheduleerrors.KindPersistenceError, "loading assignment keys", err)
	}
	defer rows.Close()

	var out []domain.StatKey
	for rows.Next() {
		var key domain.StatKey
		if err := rows.Scan(&key.PersonID, &key.DutyID); err != nil {
			return nil, scheduleerrors.Wrap(scheduleerrors.KindPersistenceError, "scanning assignment key", err)
		}
		out = append(out, key)
	}
	return out, rows.Err()
}

func (r *Repository) DeleteSnapshotsBoundSolelyTo(ctx context.Context, version domain.ScheduleVersionID) error {
	_, err := r.db.querier(ctx).ExecContext(ctx, `
		DELETE FROM stats_snapshots
		WHERE id IN (
			SELECT snapshot_id FROM snapshot_versions
			GROUP BY snapshot_id
			HAVING COUNT(*) = 1 AND MAX(version_id) = ?
		)
	`, string(version))
	if err != nil {
		return scheduleerrors.Wrap(scheduleerrors.KindPersistenceError, "deleting solely-bound snapshots", err)
	}
	return nil
}

func (r *Repository) GetVersion(ctx context.Context, id domain.ScheduleVersionID) (domain.ScheduleVersion, error) {
	row := r.db.querier(ctx).QueryRowContext(ctx, `
		SELECT id, name, month_date, creator, parent_version, is_official
		FROM schedule_versions WHERE id = ?
	`, string(id))

	var v domain.ScheduleVersion
	var idStr, monthStr string
	var parent sql.NullString
	var official int
	if err := row.Scan(&idStr, &v.Name, &monthStr, &v.Creator, &parent, &official); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ScheduleVersion{}, scheduleerrors.New(scheduleerrors.KindPersistenceError, fmt.Sprintf("version %s not found", id))
		}
		return domain.ScheduleVersion{}, scheduleerrors.Wrap(scheduleerrors.KindPersistenceError, "loading version", err)
	}
	month, err := time.Parse(dateLayout, monthStr)
	if err != nil {
		return domain.ScheduleVersion{}, scheduleerrors.Wrap(scheduleerrors.KindPersistenceError, "parsing month_date", err)
	}
	v.ID = domain.ScheduleVersionID(idStr)
	v.MonthDate = month
	v.IsOfficial = official != 0
	if parent.Valid {
		pv := domain.ScheduleVersionID(parent.String)
		v.ParentVersion = &pv
	}
	return v, nil
}

func (r *Repository) CreateVersion(ctx context.Context, v domain.ScheduleVersion) (domain.ScheduleVersionID, error) {
	id := v.ID
	if id == "" {
		id = domain.ScheduleVersionID(uuid.NewString())
	}

	var parent interface{}
	if v.ParentVersion != nil {
		parent = string(*v.ParentVersion)
	}

	official := 0
	if v.IsOfficial {
		official = 1
	}

	_, err := r.db.querier(ctx).ExecContext(ctx, `
		INSERT INTO schedule_versions (id, name, month_date, creator, parent_version, is_official)
		VALUES (?, ?, ?, ?, ?, ?)
	`, string(id), v.Name, v.MonthDate.Format(dateLayout), v.Creator, parent, official)
	if err != nil {
		return "", scheduleerrors.Wrap(scheduleerrors.KindPersistenceError, "creating schedule version", err)
	}
	return id, nil
}

func (r *Repository) OfficialVersionForMonth(ctx context.Context, month time.Time) (*domain.ScheduleVersion, error) {
	row := r.db.querier(ctx).QueryRowContext(ctx, `
		SELECT id FROM schedule_versions WHERE month_date = ? AND is_official = 1
	`, month.Format(dateLayout))

	var id string
	if err := row.Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, scheduleerrors.Wrap(scheduleerrors.KindPersistenceError, "loading official version for month", err)
	}
	v, err := r.GetVersion(ctx, domain.ScheduleVersionID(id))
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *Repository) SetOfficial(ctx context.Context, id domain.ScheduleVersionID, official bool) error {
	flag := 0
	if official {
		flag = 1
	}
	_, err := r.db.querier(ctx).ExecContext(ctx, `
		UPDATE schedule_versions SET is_official = ? WHERE id = ?
	`, flag, string(id))
	if err != nil {
		return scheduleerrors.Wrap(scheduleerrors.KindPersistenceError, "setting official flag", err)
	}
	return nil
}

func (r *Repository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.db.WithTransaction(ctx, fn)
}

func nowString() string {
	return time.Now().UTC().Format(dateLayout)
}
