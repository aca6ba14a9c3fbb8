package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dutyroster/scheduler/internal/repository/sqlite"
)

// newTestRouter opens a fresh in-memory, migrated database and mounts a
// ScheduleHandler over it, the same httptest-over-a-real-router approach
// as wisbric-nightowl's pkg/roster/handler_test.go.
func newTestRouter(t *testing.T) (chi.Router, *sqlite.DB) {
	t.Helper()

	db, err := sqlite.New(sqlite.DefaultOptions("file::memory:?cache=shared"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate())

	repo := sqlite.NewRepository(db)
	handler := NewScheduleHandler(repo, SolverSettings{MaxPerPerson: 5})

	router := chi.NewRouter()
	router.Mount("/versions", handler.Routes())
	return router, db
}

func seedOnePersonOneDuty(t *testing.T, db *sqlite.DB) {
	t.Helper()
	ctx := context.Background()
	_, err := db.Conn().ExecContext(ctx, `INSERT INTO persons (first_name, last_name, active) VALUES ('Ada', 'Lovelace', 1)`)
	require.NoError(t, err)
	_, err = db.Conn().ExecContext(ctx, `INSERT INTO services (name, weekday, start_time) VALUES ('Sunday Service', 0, '09:00:00')`)
	require.NoError(t, err)
	_, err = db.Conn().ExecContext(ctx, `INSERT INTO duties (id, name, service_id, ord) VALUES ('usher', 'Usher', 1, 0)`)
	require.NoError(t, err)
	_, err = db.Conn().ExecContext(ctx, `INSERT INTO duty_excludes (duty_id, excluded_duty_id) VALUES ('usher', 'usher')`)
	require.NoError(t, err)
	_, err = db.Conn().ExecContext(ctx, `INSERT INTO preferences (person_id, duty_id, value) VALUES (1, 'usher', 1.0)`)
	require.NoError(t, err)
}

func TestCreateVersion_MissingFields(t *testing.T) {
	router, _ := newTestRouter(t)

	body := `{"name":"draft"}`
	r := httptest.NewRequest(http.MethodPost, "/versions/", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	require.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())
}

func TestCreateVersion_InvalidJSON(t *testing.T) {
	router, _ := newTestRouter(t)

	r := httptest.NewRequest(http.MethodPost, "/versions/", strings.NewReader("{bad"))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateAndGetVersion(t *testing.T) {
	router, _ := newTestRouter(t)

	body := `{"name":"March draft","month_date":"2025-03-01T00:00:00Z","creator":"ada"}`
	r := httptest.NewRequest(http.MethodPost, "/versions/", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&created))
	id := created["id"]
	require.NotEmpty(t, id)

	r = httptest.NewRequest(http.MethodGet, "/versions/"+id+"/", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, r)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestGenerate_LockedSlotOutsideMonthReturnsBadRequest(t *testing.T) {
	router, db := newTestRouter(t)
	seedOnePersonOneDuty(t, db)

	body := `{"name":"March draft","month_date":"2025-03-01T00:00:00Z","creator":"ada"}`
	r := httptest.NewRequest(http.MethodPost, "/versions/", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)
	require.Equal(t, http.StatusCreated, w.Code)
	var created map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&created))
	id := created["id"]

	genBody := `{"locked":{"2025-4-6-usher":"Lovelace, Ada"}}`
	r = httptest.NewRequest(http.MethodPost, "/versions/"+id+"/generate", strings.NewReader(genBody))
	r.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, r)

	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
}

func TestSaveAndClearAssignments(t *testing.T) {
	router, db := newTestRouter(t)
	seedOnePersonOneDuty(t, db)

	body := `{"name":"March draft","month_date":"2025-03-01T00:00:00Z","creator":"ada"}`
	r := httptest.NewRequest(http.MethodPost, "/versions/", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)
	require.Equal(t, http.StatusCreated, w.Code)
	var created map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&created))
	id := created["id"]

	saveBody := `{"assignments":{"2025-3-2-usher":"Lovelace, Ada"}}`
	r = httptest.NewRequest(http.MethodPut, "/versions/"+id+"/assignments", strings.NewReader(saveBody))
	r.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, r)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	r = httptest.NewRequest(http.MethodDelete, "/versions/"+id+"/assignments", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, r)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestGenerate_ParentlessVersionSucceedsWithNoStatsHistory(t *testing.T) {
	router, db := newTestRouter(t)
	seedOnePersonOneDuty(t, db)

	body := `{"name":"March draft","month_date":"2025-03-01T00:00:00Z","creator":"ada"}`
	r := httptest.NewRequest(http.MethodPost, "/versions/", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)
	require.Equal(t, http.StatusCreated, w.Code)
	var created map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&created))
	id := created["id"]

	r = httptest.NewRequest(http.MethodPost, "/versions/"+id+"/generate", strings.NewReader(`{}`))
	r.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, r)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp GenerateResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "optimal", resp.Status)
	// Five Sundays in March 2025, one eligible person: every slot resolves
	// to her even with zero prior fairness history to draw on.
	assert.Len(t, resp.Assignments, 5)
	for _, person := range resp.Assignments {
		assert.Equal(t, "Lovelace, Ada", person)
	}
}

func TestPromoteUnknownVersionReturnsInternalError(t *testing.T) {
	router, _ := newTestRouter(t)

	r := httptest.NewRequest(http.MethodPost, "/versions/does-not-exist/promote", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	require.Equal(t, http.StatusInternalServerError, w.Code)
}
