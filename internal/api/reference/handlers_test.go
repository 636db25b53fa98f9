package reference

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
)

func newReferenceRouter(t *testing.T) (*gin.Engine, sqlmock.Sqlmock) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	h := NewHandlers(sqlx.NewDb(db, "sqlmock"))
	r := gin.New()
	r.GET("/facilities", h.ListFacilitiesHandler())
	r.GET("/lines", h.ListLinesHandler())
	r.GET("/categories", h.ListCategoriesHandler())
	r.GET("/shifts", h.ListShiftsHandler())
	return r, mock
}

func get(router *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	router.ServeHTTP(w, req)
	return w
}

func TestListFacilities(t *testing.T) {
	router, mock := newReferenceRouter(t)
	now := time.Now()
	mock.ExpectQuery("SELECT.*FROM facilities.*ORDER BY name").
		WillReturnRows(sqlmock.NewRows(
			[]string{"id", "name", "code", "is_active", "created_by", "created_at", "modified_by", "modified_at"}).
			AddRow(1, "Plant A", "PLA", true, "boss", now, nil, nil))

	w := get(router, "/facilities")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "Plant A") {
		t.Errorf("unexpected body: %s", w.Body.String())
	}
}

func TestListLines_ScopedToFacility(t *testing.T) {
	router, mock := newReferenceRouter(t)
	now := time.Now()
	mock.ExpectQuery("SELECT.*FROM production_lines pl.*JOIN facilities f").
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows(
			[]string{"id", "facility_id", "name", "is_active", "created_by", "created_at", "modified_by", "modified_at", "facility_name"}).
			AddRow(3, 1, "Line 3", true, "boss", now, nil, nil, "Plant A"))

	w := get(router, "/lines?facility_id=1")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "Line 3") {
		t.Errorf("unexpected body: %s", w.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestListLines_BadFacilityID(t *testing.T) {
	router, _ := newReferenceRouter(t)

	w := get(router, "/lines?facility_id=abc")

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestListCategories(t *testing.T) {
	router, mock := newReferenceRouter(t)
	now := time.Now()
	mock.ExpectQuery("SELECT.*FROM downtime_categories.*ORDER BY parent_id").
		WillReturnRows(sqlmock.NewRows(
			[]string{"id", "name", "code", "parent_id", "is_active", "created_by", "created_at", "modified_by", "modified_at"}).
			AddRow(7, "Mechanical", "MECH", nil, true, "boss", now, nil, nil))

	w := get(router, "/categories")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "Mechanical") {
		t.Errorf("unexpected body: %s", w.Body.String())
	}
}

func TestListShifts(t *testing.T) {
	router, mock := newReferenceRouter(t)
	now := time.Now()
	mock.ExpectQuery("SELECT.*FROM shifts.*ORDER BY start_time").
		WillReturnRows(sqlmock.NewRows(
			[]string{"id", "name", "start_time", "end_time", "is_active", "created_by", "created_at", "modified_by", "modified_at"}).
			AddRow(1, "Days", "06:00", "14:00", true, "boss", now, nil, nil))

	w := get(router, "/shifts")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "Days") {
		t.Errorf("unexpected body: %s", w.Body.String())
	}
}
