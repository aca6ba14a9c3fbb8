// Package domain holds the core entities of the duty rotation scheduler:
// people, services, duties, preferences, assignments, schedule versions and
// stats snapshots. These types are persistence-agnostic; internal/repository
// maps them onto concrete storage.
package domain

import "time"

// PersonID identifies a Person.
type PersonID int64

// Person is a participant who can be assigned to duties.
type Person struct {
	ID          PersonID
	FirstName   string
	LastName    string
	Active      bool
}

// InvertedName returns the canonical "Last, First" textual key used at the
// API boundary for assignment maps.
func (p Person) InvertedName() string {
	return p.LastName + ", " + p.FirstName
}

// DutyID identifies a Duty. It is also the primary key used in slot keys.
type DutyID string

// ServiceID identifies a Service.
type ServiceID int64

// Service owns a set of duties and determines which day(s) of the week they
// occur on. Weekday is nil for a "once per week, earliest active day"
// service.
type Service struct {
	ID        ServiceID
	Name      string
	Weekday   *int // 0=Sunday ... 6=Saturday, nil = weekly (earliest active day)
	StartTime time.Time
	Duties    []Duty
}

// Duty is a recurring task belonging to a Service. Excludes holds the set of
// duty IDs (including itself, by convention) that the same person may not
// hold within a single week.
type Duty struct {
	ID        DutyID
	Name      string
	ServiceID ServiceID
	Order     int
	Excludes  map[DutyID]struct{}
}

// ExcludesSelf reports whether d's exclusion set contains its own ID, which
// every duty is expected to carry by convention.
func (d Duty) ExcludesSelf() bool {
	_, ok := d.Excludes[d.ID]
	return ok
}

// Preference records how strongly a person wants a duty. A value of zero
// means the person is not eligible; a positive value is both an eligibility
// flag and a fairness weight.
type Preference struct {
	PersonID PersonID
	DutyID   DutyID
	Value    float64
}

// Eligible reports whether this preference makes its person eligible.
func (p Preference) Eligible() bool {
	return p.Value > 0
}

// Assignment represents one fulfilled (person, duty) slot on a date. Once
// bound to an official ScheduleVersion it is immutable.
type Assignment struct {
	PersonID          PersonID
	DutyID            DutyID
	Date              time.Time
	ScheduleVersionID ScheduleVersionID
	CreatedAt         time.Time
}

// ScheduleVersionID identifies a ScheduleVersion. It is a UUID string,
// generated by the repository on insert (github.com/google/uuid).
type ScheduleVersionID string

// ScheduleVersion is a draft or official monthly plan.
type ScheduleVersion struct {
	ID             ScheduleVersionID
	Name           string
	MonthDate      time.Time // first of the month
	Creator        string
	ParentVersion  *ScheduleVersionID
	IsOfficial     bool
}

// StatsSnapshotID identifies a StatsSnapshot row. It is a UUID string, for
// the same reason as ScheduleVersionID.
type StatsSnapshotID string

// StatsSnapshot is one frozen (person, duty) fairness triple, shared by
// reference across every ScheduleVersion that was bound to it when it was
// computed or reused.
type StatsSnapshot struct {
	ID        StatsSnapshotID
	PersonID  PersonID
	DutyID    DutyID
	IdealAvg  float64
	ActualAvg float64
	Delta     float64
	CreatedAt time.Time
}

// StatKey is the composite key used for the (person, duty) -> stats map
// threaded through the stats engine and constraint builder.
type StatKey struct {
	PersonID PersonID
	DutyID   DutyID
}
