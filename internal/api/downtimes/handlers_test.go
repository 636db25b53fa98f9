package downtimes

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/downtime-tracker/downtime-tracker/internal/db/models"
	"github.com/downtime-tracker/downtime-tracker/internal/middleware"
)

var (
	operator = &models.User{ID: "u-1", Username: "jsmith", IsActive: true}
	admin    = &models.User{ID: "u-2", Username: "boss", IsAdmin: true, IsActive: true}
)

var downtimeCols = []string{
	"id", "line_id", "category_id", "shift_id",
	"start_time", "end_time", "duration_minutes", "reason_notes", "crew_size",
	"entered_by", "is_active", "created_at", "modified_by", "modified_at",
	"line_name", "facility_id", "facility_name", "category_name", "shift_name",
}

var eventStart = time.Date(2026, 3, 10, 8, 15, 0, 0, time.UTC)

// sampleEventRow is event 41: jsmith's 45-minute conveyor jam on Line 3.
func sampleEventRow() *sqlmock.Rows {
	return sqlmock.NewRows(downtimeCols).
		AddRow(41, 3, 7, nil, eventStart, eventStart.Add(45*time.Minute), 45, "conveyor jam", 2,
			"jsmith", true, eventStart, nil, nil,
			"Line 3", 1, "Plant A", "Mechanical", nil)
}

func activeRow(active bool) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"is_active"}).AddRow(active)
}

func newDowntimeRouter(t *testing.T, user *models.User) (*gin.Engine, sqlmock.Sqlmock) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	h := NewHandlers(sqlx.NewDb(db, "sqlmock"))

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.UserKey, user)
		c.Set(middleware.UsernameKey, user.Username)
		c.Next()
	})
	r.GET("/downtimes", h.ListHandler())
	r.GET("/downtimes/recent", h.RecentHandler())
	r.GET("/downtimes/summary", h.SummaryHandler())
	r.GET("/downtimes/:id", h.GetHandler())
	r.POST("/downtimes", h.CreateHandler())
	r.PUT("/downtimes/:id", h.UpdateHandler())
	r.DELETE("/downtimes/:id", h.DeactivateHandler())
	return r, mock
}

func doJSON(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	router.ServeHTTP(w, req)
	return w
}

// sampleEventJSON matches sampleEventRow so an update with it is a no-op.
const sampleEventJSON = `{
	"line_id": 3, "category_id": 7,
	"start_time": "2026-03-10T08:15:00Z", "end_time": "2026-03-10T09:00:00Z",
	"reason_notes": "conveyor jam", "crew_size": 2
}`

func TestCreate_Success(t *testing.T) {
	router, mock := newDowntimeRouter(t, operator)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT is_active FROM production_lines").WillReturnRows(activeRow(true))
	mock.ExpectQuery("SELECT is_active FROM downtime_categories").WillReturnRows(activeRow(true))
	mock.ExpectQuery("INSERT INTO downtimes").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(41))
	// One audit row per populated field: line_id, category_id, start_time,
	// end_time, duration_minutes, reason_notes, crew_size
	for i := 0; i < 7; i++ {
		mock.ExpectExec("INSERT INTO audit_changes").WillReturnResult(sqlmock.NewResult(1, 1))
	}
	mock.ExpectCommit()
	// Re-read for joined names
	mock.ExpectQuery("SELECT.*FROM downtimes d.*WHERE d.id").WillReturnRows(sampleEventRow())

	w := doJSON(router, http.MethodPost, "/downtimes", sampleEventJSON)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"duration_minutes":45`) {
		t.Errorf("expected server-computed duration in response: %s", w.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestCreate_EndBeforeStart(t *testing.T) {
	router, _ := newDowntimeRouter(t, operator)

	w := doJSON(router, http.MethodPost, "/downtimes", `{
		"line_id": 3, "category_id": 7,
		"start_time": "2026-03-10T09:00:00Z", "end_time": "2026-03-10T08:15:00Z"
	}`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "end_time must be after start_time") {
		t.Errorf("unexpected body: %s", w.Body.String())
	}
}

func TestCreate_OverDayCap(t *testing.T) {
	router, _ := newDowntimeRouter(t, operator)

	w := doJSON(router, http.MethodPost, "/downtimes", `{
		"line_id": 3, "category_id": 7,
		"start_time": "2026-03-10T08:00:00Z", "end_time": "2026-03-11T09:00:00Z"
	}`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestCreate_NegativeCrewSize(t *testing.T) {
	router, _ := newDowntimeRouter(t, operator)

	w := doJSON(router, http.MethodPost, "/downtimes", `{
		"line_id": 3, "category_id": 7,
		"start_time": "2026-03-10T08:15:00Z", "end_time": "2026-03-10T09:00:00Z",
		"crew_size": -1
	}`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestCreate_InactiveLine(t *testing.T) {
	router, mock := newDowntimeRouter(t, operator)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT is_active FROM production_lines").WillReturnRows(activeRow(false))
	mock.ExpectRollback()

	w := doJSON(router, http.MethodPost, "/downtimes", sampleEventJSON)

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", w.Code, w.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestGet_Found(t *testing.T) {
	router, mock := newDowntimeRouter(t, operator)
	mock.ExpectQuery("SELECT.*FROM downtimes d.*WHERE d.id").WillReturnRows(sampleEventRow())

	w := doJSON(router, http.MethodGet, "/downtimes/41", "")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "conveyor jam") {
		t.Errorf("unexpected body: %s", w.Body.String())
	}
}

func TestGet_NotFound(t *testing.T) {
	router, mock := newDowntimeRouter(t, operator)
	mock.ExpectQuery("SELECT.*FROM downtimes d.*WHERE d.id").
		WillReturnRows(sqlmock.NewRows(downtimeCols))

	w := doJSON(router, http.MethodGet, "/downtimes/41", "")

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestGet_BadID(t *testing.T) {
	router, _ := newDowntimeRouter(t, operator)

	w := doJSON(router, http.MethodGet, "/downtimes/abc", "")

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestList(t *testing.T) {
	router, mock := newDowntimeRouter(t, operator)
	mock.ExpectQuery("SELECT COUNT.*FROM downtimes").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("SELECT.*FROM downtimes d.*ORDER BY d.start_time DESC").
		WillReturnRows(sampleEventRow())

	w := doJSON(router, http.MethodGet, "/downtimes", "")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"total":1`) {
		t.Errorf("expected pagination total: %s", w.Body.String())
	}
}

func TestList_BadFilter(t *testing.T) {
	router, _ := newDowntimeRouter(t, operator)

	w := doJSON(router, http.MethodGet, "/downtimes?line_id=abc", "")

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestRecent(t *testing.T) {
	router, mock := newDowntimeRouter(t, operator)
	mock.ExpectQuery("SELECT.*FROM downtimes d.*d.start_time >=").
		WillReturnRows(sampleEventRow())

	w := doJSON(router, http.MethodGet, "/downtimes/recent", "")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestUpdate_NotOwnerForbidden(t *testing.T) {
	other := &models.User{ID: "u-3", Username: "rjones", IsActive: true}
	router, mock := newDowntimeRouter(t, other)
	mock.ExpectQuery("SELECT.*FROM downtimes d.*WHERE d.id").WillReturnRows(sampleEventRow())

	w := doJSON(router, http.MethodPut, "/downtimes/41", sampleEventJSON)

	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", w.Code, w.Body.String())
	}
}

func TestUpdate_NoChangesSkipsWrite(t *testing.T) {
	router, mock := newDowntimeRouter(t, operator)
	mock.ExpectQuery("SELECT.*FROM downtimes d.*WHERE d.id").WillReturnRows(sampleEventRow())

	w := doJSON(router, http.MethodPut, "/downtimes/41", sampleEventJSON)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	// No transaction was opened
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestUpdate_AdminEditsAudited(t *testing.T) {
	router, mock := newDowntimeRouter(t, admin)

	mock.ExpectQuery("SELECT.*FROM downtimes d.*WHERE d.id").WillReturnRows(sampleEventRow())
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE downtimes").WillReturnResult(sqlmock.NewResult(0, 1))
	// Only reason_notes changed
	mock.ExpectExec("INSERT INTO audit_changes").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	body := strings.Replace(sampleEventJSON, "conveyor jam", "belt replaced", 1)
	w := doJSON(router, http.MethodPut, "/downtimes/41", body)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "belt replaced") {
		t.Errorf("unexpected body: %s", w.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestDeactivate_Owner(t *testing.T) {
	router, mock := newDowntimeRouter(t, operator)

	mock.ExpectQuery("SELECT.*FROM downtimes d.*WHERE d.id").WillReturnRows(sampleEventRow())
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE downtimes").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO audit_changes").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	w := doJSON(router, http.MethodDelete, "/downtimes/41", "")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestDeactivate_NotOwnerForbidden(t *testing.T) {
	other := &models.User{ID: "u-3", Username: "rjones", IsActive: true}
	router, mock := newDowntimeRouter(t, other)
	mock.ExpectQuery("SELECT.*FROM downtimes d.*WHERE d.id").WillReturnRows(sampleEventRow())

	w := doJSON(router, http.MethodDelete, "/downtimes/41", "")

	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
}

func TestSummary_DefaultGrouping(t *testing.T) {
	router, mock := newDowntimeRouter(t, operator)
	mock.ExpectQuery("SELECT c.name AS grouping.*GROUP BY grouping").
		WillReturnRows(sqlmock.NewRows([]string{"grouping", "event_count", "total_minutes", "avg_minutes", "min_minutes", "max_minutes"}).
			AddRow("Mechanical", 4, 180, 45.0, 15, 90))

	w := doJSON(router, http.MethodGet, "/downtimes/summary", "")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"group_by":"category"`) {
		t.Errorf("unexpected body: %s", w.Body.String())
	}
}

func TestSummary_UnknownGrouping(t *testing.T) {
	router, _ := newDowntimeRouter(t, operator)

	w := doJSON(router, http.MethodGet, "/downtimes/summary?group_by=weather", "")

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestSummary_BadDate(t *testing.T) {
	router, _ := newDowntimeRouter(t, operator)

	w := doJSON(router, http.MethodGet, "/downtimes/summary?start_date=03-10-2026", "")

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}
