// Package repository defines the Repository Interface (C7): the
// persistence-agnostic boundary that C1-C6 read and write through. The
// concrete SQLite implementation lives in internal/repository/sqlite.
package repository

import (
	"context"
	"time"

	"github.com/dutyroster/scheduler/internal/domain"
	"github.com/dutyroster/scheduler/internal/stats"
)

// AssignmentInput is one (slot, person) pair to persist against a version,
// the argument shape §4.6's save_assignments(version, [(slot, person)])
// describes.
type AssignmentInput struct {
	DutyID   domain.DutyID
	Date     time.Time
	PersonID domain.PersonID
}

// Repository is the read/write surface the scheduler core depends on.
// Every method is semantic (§4.6), not tied to a storage engine; the only
// implementation in this repository is internal/repository/sqlite.
type Repository interface {
	LoadActivePersons(ctx context.Context) ([]domain.Person, error)
	LoadServicesWithDuties(ctx context.Context) ([]domain.Service, error)
	LoadPreferences(ctx context.Context) ([]domain.Preference, error)

	LoadParentAssignments(ctx context.Context, version domain.ScheduleVersionID) ([]domain.Assignment, error)
	LoadParentStats(ctx context.Context, version domain.ScheduleVersionID) (map[domain.StatKey]stats.Triple, error)

	SaveAssignments(ctx context.Context, version domain.ScheduleVersionID, assignments []AssignmentInput) error
	ClearAssignments(ctx context.Context, version domain.ScheduleVersionID) error

	// WriteSnapshot creates new snapshot rows for version from rows and binds
	// them to it. BindExistingSnapshot rebinds an existing row to version
	// without cloning it (§9 DESIGN NOTES).
	WriteSnapshot(ctx context.Context, version domain.ScheduleVersionID, rows []domain.StatsSnapshot) error
	BindExistingSnapshot(ctx context.Context, version domain.ScheduleVersionID, snapshotID domain.StatsSnapshotID) error

	// LatestSnapshotRow returns the most recent snapshot row for (person,
	// duty) from any version, or nil if none exists, supporting the
	// snapshot-reuse rule in §4.5.
	LatestSnapshotRow(ctx context.Context, key domain.StatKey) (*domain.StatsSnapshot, error)

	// AssignmentKeysForVersion returns the distinct (person, duty) pairs
	// that version's assignments cover.
	AssignmentKeysForVersion(ctx context.Context, version domain.ScheduleVersionID) ([]domain.StatKey, error)

	// DeleteSnapshotsBoundSolelyTo removes snapshot rows whose version_set
	// contains only version, ahead of re-promotion rewriting them.
	DeleteSnapshotsBoundSolelyTo(ctx context.Context, version domain.ScheduleVersionID) error

	// Version bookkeeping used by the promote-to-official flow (§4.5) and
	// the generate/save/promote HTTP endpoints (§6).
	GetVersion(ctx context.Context, id domain.ScheduleVersionID) (domain.ScheduleVersion, error)
	CreateVersion(ctx context.Context, v domain.ScheduleVersion) (domain.ScheduleVersionID, error)
	OfficialVersionForMonth(ctx context.Context, month time.Time) (*domain.ScheduleVersion, error)
	SetOfficial(ctx context.Context, id domain.ScheduleVersionID, official bool) error

	// WithTransaction runs fn inside one transaction; a non-nil return
	// rolls back, matching the per-call transaction requirement in §5.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
