// downtime_repository.go implements DowntimeRepository, the store for
// downtime event records. Listing queries join line, facility, category, and
// shift names so the API never makes clients stitch reference data together.
package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/downtime-tracker/downtime-tracker/internal/db/models"
)

// ErrUnknownGrouping is returned by Summarize for a grouping it does not support
var ErrUnknownGrouping = fmt.Errorf("unknown grouping")

// DowntimeRepository handles downtime event database operations
type DowntimeRepository struct {
	db Querier
}

// NewDowntimeRepository creates a new DowntimeRepository
func NewDowntimeRepository(db Querier) *DowntimeRepository {
	return &DowntimeRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction
func (r *DowntimeRepository) WithTx(tx Querier) *DowntimeRepository {
	return &DowntimeRepository{db: tx}
}

// DowntimeFilters contains filters for listing downtime events
type DowntimeFilters struct {
	FacilityID      *int
	LineID          *int
	CategoryID      *int
	ShiftID         *int
	EnteredBy       *string
	StartDate       *time.Time
	EndDate         *time.Time
	IncludeInactive bool
}

const downtimeColumns = `
	d.id, d.line_id, d.category_id, d.shift_id,
	d.start_time, d.end_time, d.duration_minutes, d.reason_notes, d.crew_size,
	d.entered_by, d.is_active, d.created_at, d.modified_by, d.modified_at,
	pl.name AS line_name, pl.facility_id AS facility_id, f.name AS facility_name,
	c.name AS category_name, s.name AS shift_name
`

const downtimeJoins = `
	FROM downtimes d
	JOIN production_lines pl ON pl.id = d.line_id
	JOIN facilities f ON f.id = pl.facility_id
	JOIN downtime_categories c ON c.id = d.category_id
	LEFT JOIN shifts s ON s.id = d.shift_id
`

// GetByID retrieves a downtime event by ID, or nil if not found
func (r *DowntimeRepository) GetByID(ctx context.Context, id int) (*models.Downtime, error) {
	query := `SELECT ` + downtimeColumns + downtimeJoins + ` WHERE d.id = $1`

	downtime := &models.Downtime{}
	err := r.db.GetContext(ctx, downtime, query, id)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get downtime: %w", err)
	}
	return downtime, nil
}

// List retrieves downtime events matching the filters, newest first, with
// pagination.
func (r *DowntimeRepository) List(ctx context.Context, filters DowntimeFilters, limit, offset int) ([]*models.Downtime, int, error) {
	where := ` WHERE 1=1`
	args := make([]interface{}, 0)
	paramIndex := 1

	addFilter := func(clause string, value interface{}) {
		where += fmt.Sprintf(clause, paramIndex)
		args = append(args, value)
		paramIndex++
	}

	if !filters.IncludeInactive {
		where += ` AND d.is_active = TRUE`
	}
	if filters.FacilityID != nil {
		addFilter(` AND pl.facility_id = $%d`, *filters.FacilityID)
	}
	if filters.LineID != nil {
		addFilter(` AND d.line_id = $%d`, *filters.LineID)
	}
	if filters.CategoryID != nil {
		addFilter(` AND d.category_id = $%d`, *filters.CategoryID)
	}
	if filters.ShiftID != nil {
		addFilter(` AND d.shift_id = $%d`, *filters.ShiftID)
	}
	if filters.EnteredBy != nil {
		addFilter(` AND d.entered_by = $%d`, *filters.EnteredBy)
	}
	if filters.StartDate != nil {
		addFilter(` AND d.start_time >= $%d`, *filters.StartDate)
	}
	if filters.EndDate != nil {
		addFilter(` AND d.start_time <= $%d`, *filters.EndDate)
	}

	countQuery := `SELECT COUNT(*)` + downtimeJoins + where
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count downtimes: %w", err)
	}

	query := `SELECT ` + downtimeColumns + downtimeJoins + where +
		fmt.Sprintf(` ORDER BY d.start_time DESC LIMIT $%d OFFSET $%d`, paramIndex, paramIndex+1)
	args = append(args, limit, offset)

	downtimes := make([]*models.Downtime, 0)
	if err := r.db.SelectContext(ctx, &downtimes, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list downtimes: %w", err)
	}
	return downtimes, total, nil
}

// ListRecent retrieves active downtime events whose start time falls within
// the last N days, newest first.
func (r *DowntimeRepository) ListRecent(ctx context.Context, days, limit int) ([]*models.Downtime, error) {
	since := time.Now().AddDate(0, 0, -days)

	query := `SELECT ` + downtimeColumns + downtimeJoins + `
		WHERE d.is_active = TRUE AND d.start_time >= $1
		ORDER BY d.start_time DESC
		LIMIT $2
	`

	downtimes := make([]*models.Downtime, 0)
	if err := r.db.SelectContext(ctx, &downtimes, query, since, limit); err != nil {
		return nil, fmt.Errorf("failed to list recent downtimes: %w", err)
	}
	return downtimes, nil
}

// Create inserts a new downtime event and returns it with its assigned ID.
// Both the line and the category must be active.
func (r *DowntimeRepository) Create(ctx context.Context, downtime *models.Downtime) error {
	var lineActive bool
	err := r.db.GetContext(ctx, &lineActive, `SELECT is_active FROM production_lines WHERE id = $1`, downtime.LineID)
	if isNoRows(err) {
		return fmt.Errorf("production line %d not found", downtime.LineID)
	}
	if err != nil {
		return fmt.Errorf("failed to check production line: %w", err)
	}
	if !lineActive {
		return ErrParentInactive
	}

	var categoryActive bool
	err = r.db.GetContext(ctx, &categoryActive, `SELECT is_active FROM downtime_categories WHERE id = $1`, downtime.CategoryID)
	if isNoRows(err) {
		return fmt.Errorf("category %d not found", downtime.CategoryID)
	}
	if err != nil {
		return fmt.Errorf("failed to check category: %w", err)
	}
	if !categoryActive {
		return ErrParentInactive
	}

	downtime.IsActive = true
	downtime.CreatedAt = time.Now()

	query := `
		INSERT INTO downtimes (line_id, category_id, shift_id, start_time, end_time, duration_minutes, reason_notes, crew_size, entered_by, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`
	err = r.db.GetContext(ctx, &downtime.ID, query,
		downtime.LineID, downtime.CategoryID, downtime.ShiftID,
		downtime.StartTime, downtime.EndTime, downtime.DurationMinutes,
		downtime.ReasonNotes, downtime.CrewSize, downtime.EnteredBy,
		downtime.IsActive, downtime.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create downtime: %w", err)
	}
	return nil
}

// Update persists the editable fields of a downtime event. Callers detect
// field-level changes before persisting; this method writes unconditionally.
func (r *DowntimeRepository) Update(ctx context.Context, downtime *models.Downtime, modifiedBy string) error {
	now := time.Now()
	query := `
		UPDATE downtimes
		SET line_id = $2, category_id = $3, shift_id = $4,
		    start_time = $5, end_time = $6, duration_minutes = $7,
		    reason_notes = $8, crew_size = $9,
		    modified_by = $10, modified_at = $11
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query,
		downtime.ID, downtime.LineID, downtime.CategoryID, downtime.ShiftID,
		downtime.StartTime, downtime.EndTime, downtime.DurationMinutes,
		downtime.ReasonNotes, downtime.CrewSize,
		modifiedBy, now,
	)
	if err != nil {
		return fmt.Errorf("failed to update downtime: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("downtime %d not found", downtime.ID)
	}
	downtime.ModifiedBy = &modifiedBy
	downtime.ModifiedAt = &now
	return nil
}

// Deactivate soft-deletes a downtime event
func (r *DowntimeRepository) Deactivate(ctx context.Context, id int, modifiedBy string) error {
	return r.setActive(ctx, id, false, modifiedBy)
}

// Reactivate restores a soft-deleted downtime event
func (r *DowntimeRepository) Reactivate(ctx context.Context, id int, modifiedBy string) error {
	return r.setActive(ctx, id, true, modifiedBy)
}

func (r *DowntimeRepository) setActive(ctx context.Context, id int, active bool, modifiedBy string) error {
	query := `
		UPDATE downtimes
		SET is_active = $2, modified_by = $3, modified_at = $4
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query, id, active, modifiedBy, time.Now())
	if err != nil {
		return fmt.Errorf("failed to set downtime active flag: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("downtime %d not found", id)
	}
	return nil
}

// Summarize aggregates active downtime events within a date range, grouped by
// "category", "facility", or "line".
func (r *DowntimeRepository) Summarize(ctx context.Context, groupBy string, startDate, endDate time.Time) ([]*models.DowntimeSummaryRow, error) {
	var groupExpr string
	switch groupBy {
	case "category":
		groupExpr = "c.name"
	case "facility":
		groupExpr = "f.name"
	case "line":
		groupExpr = "f.name || ' / ' || pl.name"
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownGrouping, groupBy)
	}

	query := `
		SELECT ` + groupExpr + ` AS grouping,
		       COUNT(*) AS event_count,
		       COALESCE(SUM(d.duration_minutes), 0) AS total_minutes,
		       COALESCE(AVG(d.duration_minutes), 0) AS avg_minutes,
		       COALESCE(MIN(d.duration_minutes), 0) AS min_minutes,
		       COALESCE(MAX(d.duration_minutes), 0) AS max_minutes
	` + downtimeJoins + `
		WHERE d.is_active = TRUE AND d.start_time >= $1 AND d.start_time <= $2
		GROUP BY grouping
		ORDER BY total_minutes DESC
	`

	rows := make([]*models.DowntimeSummaryRow, 0)
	if err := r.db.SelectContext(ctx, &rows, query, startDate, endDate); err != nil {
		return nil, fmt.Errorf("failed to summarize downtimes: %w", err)
	}
	return rows, nil
}

// TopIssues returns the categories with the most downtime in the date range,
// ranked by total minutes lost with event count as tie-break.
func (r *DowntimeRepository) TopIssues(ctx context.Context, startDate, endDate time.Time, limit int) ([]*models.DowntimeSummaryRow, error) {
	query := `
		SELECT c.name AS grouping,
		       COUNT(*) AS event_count,
		       COALESCE(SUM(d.duration_minutes), 0) AS total_minutes,
		       COALESCE(AVG(d.duration_minutes), 0) AS avg_minutes,
		       COALESCE(MIN(d.duration_minutes), 0) AS min_minutes,
		       COALESCE(MAX(d.duration_minutes), 0) AS max_minutes
	` + downtimeJoins + `
		WHERE d.is_active = TRUE AND d.start_time >= $1 AND d.start_time <= $2
		GROUP BY c.name
		ORDER BY total_minutes DESC, event_count DESC
		LIMIT $3
	`

	rows := make([]*models.DowntimeSummaryRow, 0)
	if err := r.db.SelectContext(ctx, &rows, query, startDate, endDate, limit); err != nil {
		return nil, fmt.Errorf("failed to rank downtime issues: %w", err)
	}
	return rows, nil
}
