package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/dutyroster/scheduler/internal/domain"
	"github.com/dutyroster/scheduler/internal/eligibility"
	"github.com/dutyroster/scheduler/internal/expander"
	"github.com/dutyroster/scheduler/internal/logging"
	"github.com/dutyroster/scheduler/internal/optimizer"
	"github.com/dutyroster/scheduler/internal/repository"
	"github.com/dutyroster/scheduler/internal/scheduleerrors"
	"github.com/dutyroster/scheduler/internal/snapshot"
	"github.com/dutyroster/scheduler/internal/stats"
)

// SolverSettings carries the config-driven solver limits the handler needs
// to build an optimizer.Params per request, mirroring config.SolverConfig
// without importing internal/config (avoiding an import cycle back from
// config into the HTTP layer it has no reason to know about).
type SolverSettings struct {
	MaxPerPerson   int
	DeltaScaledCap bool
}

// ScheduleHandler implements the generate/save/clear/promote logical
// endpoints from §6 over a repository.Repository, the same
// Handler-wraps-a-service shape as the pack's wisbric-nightowl
// pkg/roster.Handler, generalized from a multi-tenant Postgres service to
// this module's single-tenant SQLite repository.
type ScheduleHandler struct {
	repo    repository.Repository
	solver  SolverSettings
	logger  zerolog.Logger
}

// NewScheduleHandler builds a ScheduleHandler.
func NewScheduleHandler(repo repository.Repository, solver SolverSettings) *ScheduleHandler {
	return &ScheduleHandler{
		repo:   repo,
		solver: solver,
		logger: logging.GetLogger("httpapi.schedule"),
	}
}

// Routes mounts the version-scoped endpoints under /versions.
func (h *ScheduleHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.handleCreateVersion)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.handleGetVersion)
		r.Post("/generate", h.handleGenerate)
		r.Put("/assignments", h.handleSave)
		r.Delete("/assignments", h.handleClear)
		r.Post("/promote", h.handlePromote)
	})
	return r
}

// --- Version creation / lookup ---

// CreateVersionRequest is the request body for creating a draft version.
type CreateVersionRequest struct {
	Name          string  `json:"name" validate:"required"`
	MonthDate     string  `json:"month_date" validate:"required"` // RFC3339, first of month
	Creator       string  `json:"creator" validate:"required"`
	ParentVersion *string `json:"parent_version,omitempty"`
}

func (h *ScheduleHandler) handleCreateVersion(w http.ResponseWriter, r *http.Request) {
	var req CreateVersionRequest
	if !DecodeAndValidate(w, r, &req) {
		return
	}

	month, err := time.Parse(time.RFC3339, req.MonthDate)
	if err != nil {
		RespondError(w, http.StatusBadRequest, "bad_request", "month_date must be RFC3339")
		return
	}

	v := domain.ScheduleVersion{Name: req.Name, MonthDate: month, Creator: req.Creator}
	if req.ParentVersion != nil {
		parent := domain.ScheduleVersionID(*req.ParentVersion)
		v.ParentVersion = &parent
	}

	id, err := h.repo.CreateVersion(r.Context(), v)
	if err != nil {
		respondSchedulerError(w, err)
		return
	}
	Respond(w, http.StatusCreated, map[string]string{"id": string(id)})
}

func (h *ScheduleHandler) handleGetVersion(w http.ResponseWriter, r *http.Request) {
	id := domain.ScheduleVersionID(chi.URLParam(r, "id"))
	v, err := h.repo.GetVersion(r.Context(), id)
	if err != nil {
		respondSchedulerError(w, err)
		return
	}
	Respond(w, http.StatusOK, v)
}

// --- Generate ---

// GenerateRequest carries the locked slot_key -> person_key overrides §6
// describes. Locked entries outside the month are rejected with a
// validation error.
type GenerateRequest struct {
	Locked map[string]string `json:"locked"`
}

// GenerateResponse mirrors §6: a status mirroring the solver's result code
// plus the decoded slot_key -> person_key assignment map.
type GenerateResponse struct {
	Status      string            `json:"status"`
	Assignments map[string]string `json:"assignments"`
}

func (h *ScheduleHandler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	id := domain.ScheduleVersionID(chi.URLParam(r, "id"))

	var req GenerateRequest
	if !DecodeAndValidate(w, r, &req) {
		return
	}

	ctx := r.Context()
	params, err := h.buildParams(ctx, id, req.Locked)
	if err != nil {
		respondSchedulerError(w, err)
		return
	}

	assigned, err := optimizer.Run(ctx, params)
	if err != nil {
		respondSchedulerError(w, err)
		return
	}

	out := make(map[string]string, len(assigned))
	for _, a := range assigned {
		out[a.SlotKey] = a.PersonName
	}
	Respond(w, http.StatusOK, GenerateResponse{Status: "optimal", Assignments: out})
}

// buildParams loads everything optimizer.Params needs for version,
// resolving locked's slot_key -> person_key pairs against the month's
// expanded slot set and the active person roster.
func (h *ScheduleHandler) buildParams(ctx context.Context, id domain.ScheduleVersionID, locked map[string]string) (optimizer.Params, error) {
	version, err := h.repo.GetVersion(ctx, id)
	if err != nil {
		return optimizer.Params{}, err
	}

	people, err := h.repo.LoadActivePersons(ctx)
	if err != nil {
		return optimizer.Params{}, err
	}
	services, err := h.repo.LoadServicesWithDuties(ctx)
	if err != nil {
		return optimizer.Params{}, err
	}
	preferences, err := h.repo.LoadPreferences(ctx)
	if err != nil {
		return optimizer.Params{}, err
	}

	var parentAssignments []domain.Assignment
	if version.ParentVersion != nil {
		parentAssignments, err = h.repo.LoadParentAssignments(ctx, *version.ParentVersion)
		if err != nil {
			return optimizer.Params{}, err
		}
	}

	slots := expander.Expand(version.MonthDate.Year(), version.MonthDate.Month(), services)
	inMonth := make(map[string]struct{}, len(slots))
	for _, s := range slots {
		inMonth[s.Key()] = struct{}{}
	}

	lockedIDs := make(map[string]domain.PersonID, len(locked))
	for slotKey, personKey := range locked {
		if _, ok := inMonth[slotKey]; !ok {
			if _, _, _, _, parseErr := expander.ParseSlotKey(slotKey); parseErr != nil {
				return optimizer.Params{}, scheduleerrors.Wrap(scheduleerrors.KindInvalidSlotKey, "malformed slot key in locked map", parseErr)
			}
			return optimizer.Params{}, scheduleerrors.New(scheduleerrors.KindSlotNotInMonth, "locked slot "+slotKey+" is outside this version's month")
		}
		person, ok := personByKey(people, personKey)
		if !ok {
			return optimizer.Params{}, scheduleerrors.New(scheduleerrors.KindUnknownPerson, "locked person key "+personKey+" does not match any active person")
		}
		lockedIDs[slotKey] = person
	}

	idx := eligibility.Build(people, preferences)

	loadedStats, err := h.loadParentStats(ctx, version)
	if err != nil {
		return optimizer.Params{}, err
	}

	return optimizer.Params{
		Month:             version.MonthDate,
		Services:          services,
		People:            people,
		Index:             idx,
		ParentAssignments: parentAssignments,
		Stats:             loadedStats,
		Locked:            lockedIDs,
		MaxPerPerson:      h.solver.MaxPerPerson,
		DeltaScaledCap:    h.solver.DeltaScaledCap,
	}, nil
}

// loadParentStats loads the inherited fairness stats for version's parent,
// if any. A brand-new deployment's first version has no parent and no
// history, so it returns an empty (not nil) map: every pair is then a
// clean-slate ideal=actual=0 rather than a missing-stats error.
func (h *ScheduleHandler) loadParentStats(ctx context.Context, version domain.ScheduleVersion) (map[domain.StatKey]stats.Triple, error) {
	if version.ParentVersion == nil {
		return map[domain.StatKey]stats.Triple{}, nil
	}
	return h.repo.LoadParentStats(ctx, *version.ParentVersion)
}

// personByKey finds the person whose "Last, First" inverted name matches
// key (§6 Person key format).
func personByKey(people []domain.Person, key string) (domain.PersonID, bool) {
	for _, p := range people {
		if p.InvertedName() == key {
			return p.ID, true
		}
	}
	return domain.PersonID(0), false
}

// --- Save ---

// SaveRequest is the same slot_key -> person_key map shape as generate's
// response; save upserts by (version, duty, date) and never deletes (§6).
type SaveRequest struct {
	Assignments map[string]string `json:"assignments"`
}

func (h *ScheduleHandler) handleSave(w http.ResponseWriter, r *http.Request) {
	id := domain.ScheduleVersionID(chi.URLParam(r, "id"))

	var req SaveRequest
	if !DecodeAndValidate(w, r, &req) {
		return
	}

	ctx := r.Context()
	people, err := h.repo.LoadActivePersons(ctx)
	if err != nil {
		respondSchedulerError(w, err)
		return
	}

	inputs := make([]repository.AssignmentInput, 0, len(req.Assignments))
	for slotKey, personKey := range req.Assignments {
		year, month, day, duty, err := expander.ParseSlotKey(slotKey)
		if err != nil {
			respondSchedulerError(w, scheduleerrors.Wrap(scheduleerrors.KindInvalidSlotKey, "malformed slot key", err))
			return
		}
		person, ok := personByKey(people, personKey)
		if !ok {
			respondSchedulerError(w, scheduleerrors.New(scheduleerrors.KindUnknownPerson, "person key "+personKey+" does not match any active person"))
			return
		}
		inputs = append(inputs, repository.AssignmentInput{
			DutyID:   duty,
			Date:     time.Date(year, month, day, 0, 0, 0, 0, time.UTC),
			PersonID: person,
		})
	}

	err = h.repo.WithTransaction(ctx, func(ctx context.Context) error {
		return h.repo.SaveAssignments(ctx, id, inputs)
	})
	if err != nil {
		respondSchedulerError(w, err)
		return
	}
	Respond(w, http.StatusOK, map[string]int{"saved": len(inputs)})
}

// --- Clear ---

func (h *ScheduleHandler) handleClear(w http.ResponseWriter, r *http.Request) {
	id := domain.ScheduleVersionID(chi.URLParam(r, "id"))
	err := h.repo.WithTransaction(r.Context(), func(ctx context.Context) error {
		return h.repo.ClearAssignments(ctx, id)
	})
	if err != nil {
		respondSchedulerError(w, err)
		return
	}
	Respond(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// --- Promote ---

func (h *ScheduleHandler) handlePromote(w http.ResponseWriter, r *http.Request) {
	id := domain.ScheduleVersionID(chi.URLParam(r, "id"))
	if err := snapshot.Promote(r.Context(), h.repo, id); err != nil {
		respondSchedulerError(w, err)
		return
	}

	version, err := h.repo.GetVersion(r.Context(), id)
	if err != nil {
		respondSchedulerError(w, err)
		return
	}
	Respond(w, http.StatusOK, version)
}
