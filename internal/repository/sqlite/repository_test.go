package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dutyroster/scheduler/internal/domain"
	"github.com/dutyroster/scheduler/internal/repository"
)

// newTestRepository opens a fresh in-memory, migrated database per test,
// the same real-SQLite-fixture approach the teacher's
// internal/database/database_test.go uses instead of a mock.
func newTestRepository(t *testing.T) *Repository {
	t.Helper()

	opts := DefaultOptions("file::memory:?cache=shared")
	db, err := New(opts)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.Migrate())

	return NewRepository(db)
}

func seedBasicSchema(t *testing.T, ctx context.Context, db *DB) (personID domain.PersonID, dutyID domain.DutyID) {
	t.Helper()

	_, err := db.conn.ExecContext(ctx, `INSERT INTO persons (first_name, last_name, active) VALUES ('Ada', 'Lovelace', 1)`)
	require.NoError(t, err)

	_, err = db.conn.ExecContext(ctx, `INSERT INTO services (name, weekday, start_time) VALUES ('Sunday Service', 0, '09:00:00')`)
	require.NoError(t, err)

	_, err = db.conn.ExecContext(ctx, `INSERT INTO duties (id, name, service_id, ord) VALUES ('usher', 'Usher', 1, 0)`)
	require.NoError(t, err)

	_, err = db.conn.ExecContext(ctx, `INSERT INTO duty_excludes (duty_id, excluded_duty_id) VALUES ('usher', 'usher')`)
	require.NoError(t, err)

	_, err = db.conn.ExecContext(ctx, `INSERT INTO preferences (person_id, duty_id, value) VALUES (1, 'usher', 1.0)`)
	require.NoError(t, err)

	return domain.PersonID(1), domain.DutyID("usher")
}

func TestLoadActivePersonsExcludesInactive(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	seedBasicSchema(t, ctx, repo.db)

	_, err := repo.db.conn.ExecContext(ctx, `INSERT INTO persons (first_name, last_name, active) VALUES ('Bob', 'Inactive', 0)`)
	require.NoError(t, err)

	people, err := repo.LoadActivePersons(ctx)
	require.NoError(t, err)
	require.Len(t, people, 1)
	require.Equal(t, "Lovelace, Ada", people[0].InvertedName())
}

func TestLoadServicesWithDutiesBuildsExcludeSets(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	seedBasicSchema(t, ctx, repo.db)

	services, err := repo.LoadServicesWithDuties(ctx)
	require.NoError(t, err)
	require.Len(t, services, 1)
	require.Len(t, services[0].Duties, 1)

	duty := services[0].Duties[0]
	require.True(t, duty.ExcludesSelf())
	require.NotNil(t, services[0].Weekday)
	require.Equal(t, 0, *services[0].Weekday)
}

func TestSaveAndClearAssignments(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	personID, dutyID := seedBasicSchema(t, ctx, repo.db)

	version, err := repo.CreateVersion(ctx, domain.ScheduleVersion{
		Name:      "draft",
		MonthDate: time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC),
		Creator:   "test",
	})
	require.NoError(t, err)

	date := time.Date(2025, time.March, 2, 0, 0, 0, 0, time.UTC)
	err = repo.SaveAssignments(ctx, version, []repository.AssignmentInput{
		{DutyID: dutyID, Date: date, PersonID: personID},
	})
	require.NoError(t, err)

	assignments, err := repo.LoadParentAssignments(ctx, version)
	require.NoError(t, err)
	require.Len(t, assignments, 1)
	require.Equal(t, personID, assignments[0].PersonID)
	require.True(t, date.Equal(assignments[0].Date))

	require.NoError(t, repo.ClearAssignments(ctx, version))

	assignments, err = repo.LoadParentAssignments(ctx, version)
	require.NoError(t, err)
	require.Empty(t, assignments)
}

func TestOneOfficialVersionPerMonthConstraint(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	seedBasicSchema(t, ctx, repo.db)

	month := time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC)

	first, err := repo.CreateVersion(ctx, domain.ScheduleVersion{
		Name: "v1", MonthDate: month, Creator: "test", IsOfficial: true,
	})
	require.NoError(t, err)

	second, err := repo.CreateVersion(ctx, domain.ScheduleVersion{
		Name: "v2", MonthDate: month, Creator: "test",
	})
	require.NoError(t, err)

	_, err = repo.db.conn.ExecContext(ctx, `UPDATE schedule_versions SET is_official = 0 WHERE id = ?`, string(first))
	require.NoError(t, err)
	require.NoError(t, repo.SetOfficial(ctx, second, true))

	official, err := repo.OfficialVersionForMonth(ctx, month)
	require.NoError(t, err)
	require.NotNil(t, official)
	require.Equal(t, second, official.ID)

	require.Error(t, repo.SetOfficial(ctx, first, true), "a second official version for the same month must violate the partial unique index")
}

func TestSnapshotWriteAndLatestLookup(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	personID, dutyID := seedBasicSchema(t, ctx, repo.db)

	version, err := repo.CreateVersion(ctx, domain.ScheduleVersion{
		Name:      "draft",
		MonthDate: time.Date(2025, time.May, 1, 0, 0, 0, 0, time.UTC),
		Creator:   "test",
	})
	require.NoError(t, err)

	err = repo.WriteSnapshot(ctx, version, []domain.StatsSnapshot{
		{PersonID: personID, DutyID: dutyID, IdealAvg: 0.5, ActualAvg: 0.4, Delta: -0.2},
	})
	require.NoError(t, err)

	loaded, err := repo.LoadParentStats(ctx, version)
	require.NoError(t, err)
	key := domain.StatKey{PersonID: personID, DutyID: dutyID}
	require.Contains(t, loaded, key)
	require.Equal(t, 0.5, loaded[key].IdealAvg)

	latest, err := repo.LatestSnapshotRow(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, latest)
	require.Equal(t, 0.4, latest.ActualAvg)
}

func TestAssignmentKeysForVersionReturnsDistinctPairs(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	personID, dutyID := seedBasicSchema(t, ctx, repo.db)

	version, err := repo.CreateVersion(ctx, domain.ScheduleVersion{
		Name:      "draft",
		MonthDate: time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC),
		Creator:   "test",
	})
	require.NoError(t, err)

	err = repo.SaveAssignments(ctx, version, []repository.AssignmentInput{
		{DutyID: dutyID, Date: time.Date(2025, time.July, 6, 0, 0, 0, 0, time.UTC), PersonID: personID},
		{DutyID: dutyID, Date: time.Date(2025, time.July, 13, 0, 0, 0, 0, time.UTC), PersonID: personID},
	})
	require.NoError(t, err)

	keys, err := repo.AssignmentKeysForVersion(ctx, version)
	require.NoError(t, err)
	require.Equal(t, []domain.StatKey{{PersonID: personID, DutyID: dutyID}}, keys, "two dates for the same pair collapse to one distinct key")
}

func TestWithTransactionRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	personID, dutyID := seedBasicSchema(t, ctx, repo.db)

	version, err := repo.CreateVersion(ctx, domain.ScheduleVersion{
		Name:      "draft",
		MonthDate: time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC),
		Creator:   "test",
	})
	require.NoError(t, err)

	boom := context.Canceled
	err = repo.WithTransaction(ctx, func(txCtx context.Context) error {
		saveErr := repo.SaveAssignments(txCtx, version, []repository.AssignmentInput{
			{DutyID: dutyID, Date: time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC), PersonID: personID},
		})
		require.NoError(t, saveErr)
		return boom
	})
	require.ErrorIs(t, err, boom)

	assignments, err := repo.LoadParentAssignments(ctx, version)
	require.NoError(t, err)
	require.Empty(t, assignments, "rollback should have discarded the insert")
}
