package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/downtime-tracker/downtime-tracker/internal/db/models"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func newDowntimeRepo(t *testing.T) (*DowntimeRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewDowntimeRepository(sqlx.NewDb(db, "sqlmock")), mock
}

var downtimeCols = []string{
	"id", "line_id", "category_id", "shift_id",
	"start_time", "end_time", "duration_minutes", "reason_notes", "crew_size",
	"entered_by", "is_active", "created_at", "modified_by", "modified_at",
	"line_name", "facility_id", "facility_name", "category_name", "shift_name",
}

func sampleDowntimeRow() *sqlmock.Rows {
	start := time.Date(2026, 3, 10, 8, 15, 0, 0, time.UTC)
	return sqlmock.NewRows(downtimeCols).
		AddRow(41, 3, 7, nil, start, start.Add(45*time.Minute), 45, "conveyor jam", 2,
			"jsmith", true, start, nil, nil,
			"Line 3", 1, "Plant A", "Mechanical", nil)
}

func activeRow(active bool) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"is_active"}).AddRow(active)
}

// ---------------------------------------------------------------------------
// GetByID
// ---------------------------------------------------------------------------

func TestDowntimeGetByID_Found(t *testing.T) {
	repo, mock := newDowntimeRepo(t)
	mock.ExpectQuery("SELECT.*FROM downtimes d.*WHERE d.id").
		WithArgs(41).
		WillReturnRows(sampleDowntimeRow())

	downtime, err := repo.GetByID(context.Background(), 41)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if downtime == nil {
		t.Fatal("expected downtime, got nil")
	}
	if downtime.FacilityName != "Plant A" {
		t.Errorf("facility name = %q, want Plant A", downtime.FacilityName)
	}
	if downtime.DurationMinutes != 45 {
		t.Errorf("duration = %d, want 45", downtime.DurationMinutes)
	}
}

func TestDowntimeGetByID_NotFound(t *testing.T) {
	repo, mock := newDowntimeRepo(t)
	mock.ExpectQuery("SELECT.*FROM downtimes d.*WHERE d.id").
		WillReturnRows(sqlmock.NewRows(downtimeCols))

	downtime, err := repo.GetByID(context.Background(), 999)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if downtime != nil {
		t.Error("expected nil for unknown id")
	}
}

// ---------------------------------------------------------------------------
// Create — parent liveness checks
// ---------------------------------------------------------------------------

func TestDowntimeCreate_Success(t *testing.T) {
	repo, mock := newDowntimeRepo(t)
	mock.ExpectQuery("SELECT is_active FROM production_lines").
		WithArgs(3).WillReturnRows(activeRow(true))
	mock.ExpectQuery("SELECT is_active FROM downtime_categories").
		WithArgs(7).WillReturnRows(activeRow(true))
	mock.ExpectQuery("INSERT INTO downtimes").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(41))

	downtime := &models.Downtime{
		LineID:          3,
		CategoryID:      7,
		StartTime:       time.Now().Add(-time.Hour),
		EndTime:         time.Now(),
		DurationMinutes: 60,
		ReasonNotes:     "changeover overrun",
		CrewSize:        2,
		EnteredBy:       "jsmith",
	}
	if err := repo.Create(context.Background(), downtime); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if downtime.ID != 41 {
		t.Errorf("id = %d, want 41", downtime.ID)
	}
	if !downtime.IsActive {
		t.Error("new downtime should be active")
	}
}

func TestDowntimeCreate_InactiveLine(t *testing.T) {
	repo, mock := newDowntimeRepo(t)
	mock.ExpectQuery("SELECT is_active FROM production_lines").
		WithArgs(3).WillReturnRows(activeRow(false))

	err := repo.Create(context.Background(), &models.Downtime{LineID: 3, CategoryID: 7})
	if !errors.Is(err, ErrParentInactive) {
		t.Errorf("err = %v, want ErrParentInactive", err)
	}
}

func TestDowntimeCreate_InactiveCategory(t *testing.T) {
	repo, mock := newDowntimeRepo(t)
	mock.ExpectQuery("SELECT is_active FROM production_lines").
		WithArgs(3).WillReturnRows(activeRow(true))
	mock.ExpectQuery("SELECT is_active FROM downtime_categories").
		WithArgs(7).WillReturnRows(activeRow(false))

	err := repo.Create(context.Background(), &models.Downtime{LineID: 3, CategoryID: 7})
	if !errors.Is(err, ErrParentInactive) {
		t.Errorf("err = %v, want ErrParentInactive", err)
	}
}

func TestDowntimeCreate_UnknownLine(t *testing.T) {
	repo, mock := newDowntimeRepo(t)
	mock.ExpectQuery("SELECT is_active FROM production_lines").
		WillReturnRows(sqlmock.NewRows([]string{"is_active"}))

	if err := repo.Create(context.Background(), &models.Downtime{LineID: 999, CategoryID: 7}); err == nil {
		t.Error("expected error for unknown line")
	}
}

// ---------------------------------------------------------------------------
// List / ListRecent
// ---------------------------------------------------------------------------

func TestDowntimeList_FacilityFilter(t *testing.T) {
	repo, mock := newDowntimeRepo(t)
	facilityID := 1
	mock.ExpectQuery("SELECT COUNT.*FROM downtimes d.*facility_id").
		WithArgs(facilityID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("SELECT.*FROM downtimes d.*facility_id.*ORDER BY d.start_time DESC").
		WithArgs(facilityID, 50, 0).
		WillReturnRows(sampleDowntimeRow())

	downtimes, total, err := repo.List(context.Background(), DowntimeFilters{FacilityID: &facilityID}, 50, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 1 || len(downtimes) != 1 {
		t.Errorf("total = %d len = %d, want 1 and 1", total, len(downtimes))
	}
}

func TestDowntimeListRecent(t *testing.T) {
	repo, mock := newDowntimeRepo(t)
	mock.ExpectQuery("SELECT.*FROM downtimes d.*d.start_time >=.*ORDER BY d.start_time DESC").
		WillReturnRows(sampleDowntimeRow())

	downtimes, err := repo.ListRecent(context.Background(), 7, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(downtimes) != 1 {
		t.Errorf("len = %d, want 1", len(downtimes))
	}
}

// ---------------------------------------------------------------------------
// Update / Deactivate
// ---------------------------------------------------------------------------

func TestDowntimeUpdate_SetsModifiedFields(t *testing.T) {
	repo, mock := newDowntimeRepo(t)
	mock.ExpectExec("UPDATE downtimes").
		WillReturnResult(sqlmock.NewResult(0, 1))

	downtime := &models.Downtime{ID: 41, LineID: 3, CategoryID: 7, DurationMinutes: 50}
	if err := repo.Update(context.Background(), downtime, "mjones"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if downtime.ModifiedBy == nil || *downtime.ModifiedBy != "mjones" {
		t.Error("expected ModifiedBy to be set")
	}
	if downtime.ModifiedAt == nil {
		t.Error("expected ModifiedAt to be set")
	}
}

func TestDowntimeUpdate_NotFound(t *testing.T) {
	repo, mock := newDowntimeRepo(t)
	mock.ExpectExec("UPDATE downtimes").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.Update(context.Background(), &models.Downtime{ID: 999}, "mjones"); err == nil {
		t.Error("expected error for unknown id")
	}
}

func TestDowntimeDeactivate(t *testing.T) {
	repo, mock := newDowntimeRepo(t)
	mock.ExpectExec("UPDATE downtimes.*SET is_active").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Deactivate(context.Background(), 41, "mjones"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// ---------------------------------------------------------------------------
// Summarize / TopIssues
// ---------------------------------------------------------------------------

var summaryCols = []string{"grouping", "event_count", "total_minutes", "avg_minutes", "min_minutes", "max_minutes"}

func TestDowntimeSummarize_ByCategory(t *testing.T) {
	repo, mock := newDowntimeRepo(t)
	mock.ExpectQuery("SELECT c.name AS grouping.*GROUP BY grouping").
		WillReturnRows(sqlmock.NewRows(summaryCols).
			AddRow("Mechanical", 12, 540, 45.0, 5, 120))

	rows, err := repo.Summarize(context.Background(), "category", time.Now().AddDate(0, -1, 0), time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 1 || rows[0].TotalMinutes != 540 {
		t.Errorf("unexpected summary rows: %+v", rows)
	}
}

func TestDowntimeSummarize_UnknownGrouping(t *testing.T) {
	repo, _ := newDowntimeRepo(t)
	if _, err := repo.Summarize(context.Background(), "operator", time.Now(), time.Now()); err == nil {
		t.Error("expected error for unknown grouping")
	}
}

func TestDowntimeTopIssues(t *testing.T) {
	repo, mock := newDowntimeRepo(t)
	mock.ExpectQuery("SELECT c.name AS grouping.*ORDER BY total_minutes DESC, event_count DESC").
		WillReturnRows(sqlmock.NewRows(summaryCols).
			AddRow("Mechanical", 12, 540, 45.0, 5, 120).
			AddRow("Electrical", 4, 200, 50.0, 20, 90))

	rows, err := repo.TopIssues(context.Background(), time.Now().AddDate(0, -1, 0), time.Now(), 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 2 || rows[0].Grouping != "Mechanical" {
		t.Errorf("unexpected rows: %+v", rows)
	}
}
