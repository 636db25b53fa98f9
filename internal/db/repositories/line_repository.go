package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/downtime-tracker/downtime-tracker/internal/db/models"
)

// LineRepository handles production line database operations
type LineRepository struct {
	db Querier
}

// NewLineRepository creates a new LineRepository
func NewLineRepository(db Querier) *LineRepository {
	return &LineRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction
func (r *LineRepository) WithTx(tx Querier) *LineRepository {
	return &LineRepository{db: tx}
}

const lineColumns = `
	pl.id, pl.facility_id, pl.name, pl.is_active,
	pl.created_by, pl.created_at, pl.modified_by, pl.modified_at,
	f.name AS facility_name
`

// GetByID retrieves a production line by ID, or nil if not found
func (r *LineRepository) GetByID(ctx context.Context, id int) (*models.ProductionLine, error) {
	query := `
		SELECT ` + lineColumns + `
		FROM production_lines pl
		JOIN facilities f ON f.id = pl.facility_id
		WHERE pl.id = $1
	`

	line := &models.ProductionLine{}
	err := r.db.GetContext(ctx, line, query, id)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get production line: %w", err)
	}
	return line, nil
}

// List retrieves production lines, optionally scoped to a facility. Active
// only unless includeInactive is set.
func (r *LineRepository) List(ctx context.Context, facilityID *int, includeInactive bool) ([]*models.ProductionLine, error) {
	query := `
		SELECT ` + lineColumns + `
		FROM production_lines pl
		JOIN facilities f ON f.id = pl.facility_id
		WHERE 1=1
	`
	args := make([]interface{}, 0)
	paramIndex := 1

	if facilityID != nil {
		query += fmt.Sprintf(` AND pl.facility_id = $%d`, paramIndex)
		args = append(args, *facilityID)
		paramIndex++
	}
	if !includeInactive {
		query += ` AND pl.is_active = TRUE`
	}
	query += ` ORDER BY f.name ASC, pl.name ASC`

	lines := make([]*models.ProductionLine, 0)
	if err := r.db.SelectContext(ctx, &lines, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list production lines: %w", err)
	}
	return lines, nil
}

// Create inserts a new production line and returns it with its assigned ID.
// The parent facility must be active.
func (r *LineRepository) Create(ctx context.Context, line *models.ProductionLine) error {
	var facilityActive bool
	checkQuery := `SELECT is_active FROM facilities WHERE id = $1`
	err := r.db.GetContext(ctx, &facilityActive, checkQuery, line.FacilityID)
	if isNoRows(err) {
		return fmt.Errorf("facility %d not found", line.FacilityID)
	}
	if err != nil {
		return fmt.Errorf("failed to check facility: %w", err)
	}
	if !facilityActive {
		return ErrParentInactive
	}

	line.IsActive = true
	line.CreatedAt = time.Now()

	query := `
		INSERT INTO production_lines (facility_id, name, is_active, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	err = r.db.GetContext(ctx, &line.ID, query,
		line.FacilityID, line.Name, line.IsActive, line.CreatedBy, line.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create production line: %w", err)
	}
	return nil
}

// Update modifies a production line's name
func (r *LineRepository) Update(ctx context.Context, id int, name, modifiedBy string) error {
	query := `
		UPDATE production_lines
		SET name = $2, modified_by = $3, modified_at = $4
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query, id, name, modifiedBy, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update production line: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("production line %d not found", id)
	}
	return nil
}

// Deactivate soft-deletes a production line. Existing downtime records keep
// referencing it; only new entries are blocked.
func (r *LineRepository) Deactivate(ctx context.Context, id int, modifiedBy string) error {
	return r.setActive(ctx, id, false, modifiedBy)
}

// Reactivate restores a soft-deleted line. Refused while the parent facility
// is inactive.
func (r *LineRepository) Reactivate(ctx context.Context, id int, modifiedBy string) error {
	var facilityActive bool
	checkQuery := `
		SELECT f.is_active
		FROM production_lines pl
		JOIN facilities f ON f.id = pl.facility_id
		WHERE pl.id = $1
	`
	err := r.db.GetContext(ctx, &facilityActive, checkQuery, id)
	if isNoRows(err) {
		return fmt.Errorf("production line %d not found", id)
	}
	if err != nil {
		return fmt.Errorf("failed to check parent facility: %w", err)
	}
	if !facilityActive {
		return ErrParentInactive
	}

	return r.setActive(ctx, id, true, modifiedBy)
}

func (r *LineRepository) setActive(ctx context.Context, id int, active bool, modifiedBy string) error {
	query := `
		UPDATE production_lines
		SET is_active = $2, modified_by = $3, modified_at = $4
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query, id, active, modifiedBy, time.Now())
	if err != nil {
		return fmt.Errorf("failed to set line active flag: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("production line %d not found", id)
	}
	return nil
}
