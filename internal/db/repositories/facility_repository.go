package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/downtime-tracker/downtime-tracker/internal/db/models"
)

// ErrHasActiveChildren is returned when deactivating a row that active rows
// still reference.
var ErrHasActiveChildren = fmt.Errorf("active child records exist")

// ErrParentInactive is returned when reactivating a row whose parent is
// inactive.
var ErrParentInactive = fmt.Errorf("parent record is inactive")

// FacilityRepository handles facility database operations
type FacilityRepository struct {
	db Querier
}

// NewFacilityRepository creates a new FacilityRepository
func NewFacilityRepository(db Querier) *FacilityRepository {
	return &FacilityRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction
func (r *FacilityRepository) WithTx(tx Querier) *FacilityRepository {
	return &FacilityRepository{db: tx}
}

// GetByID retrieves a facility by ID, or nil if not found
func (r *FacilityRepository) GetByID(ctx context.Context, id int) (*models.Facility, error) {
	query := `
		SELECT id, name, code, is_active, created_by, created_at, modified_by, modified_at
		FROM facilities
		WHERE id = $1
	`

	facility := &models.Facility{}
	err := r.db.GetContext(ctx, facility, query, id)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get facility: %w", err)
	}
	return facility, nil
}

// List retrieves facilities, active only unless includeInactive is set
func (r *FacilityRepository) List(ctx context.Context, includeInactive bool) ([]*models.Facility, error) {
	query := `
		SELECT id, name, code, is_active, created_by, created_at, modified_by, modified_at
		FROM facilities
	`
	if !includeInactive {
		query += ` WHERE is_active = TRUE`
	}
	query += ` ORDER BY name ASC`

	facilities := make([]*models.Facility, 0)
	if err := r.db.SelectContext(ctx, &facilities, query); err != nil {
		return nil, fmt.Errorf("failed to list facilities: %w", err)
	}
	return facilities, nil
}

// Create inserts a new facility and returns it with its assigned ID
func (r *FacilityRepository) Create(ctx context.Context, facility *models.Facility) error {
	facility.IsActive = true
	facility.CreatedAt = time.Now()

	query := `
		INSERT INTO facilities (name, code, is_active, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	err := r.db.GetContext(ctx, &facility.ID, query,
		facility.Name, facility.Code, facility.IsActive, facility.CreatedBy, facility.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create facility: %w", err)
	}
	return nil
}

// Update modifies a facility's name and code
func (r *FacilityRepository) Update(ctx context.Context, id int, name, code, modifiedBy string) error {
	now := time.Now()
	query := `
		UPDATE facilities
		SET name = $2, code = $3, modified_by = $4, modified_at = $5
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query, id, name, code, modifiedBy, now)
	if err != nil {
		return fmt.Errorf("failed to update facility: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("facility %d not found", id)
	}
	return nil
}

// Deactivate soft-deletes a facility. Refused while the facility still has
// active production lines.
func (r *FacilityRepository) Deactivate(ctx context.Context, id int, modifiedBy string) error {
	var activeLines int
	countQuery := `SELECT COUNT(*) FROM production_lines WHERE facility_id = $1 AND is_active = TRUE`
	if err := r.db.GetContext(ctx, &activeLines, countQuery, id); err != nil {
		return fmt.Errorf("failed to count active lines: %w", err)
	}
	if activeLines > 0 {
		return ErrHasActiveChildren
	}

	return r.setActive(ctx, id, false, modifiedBy)
}

// Reactivate restores a soft-deleted facility
func (r *FacilityRepository) Reactivate(ctx context.Context, id int, modifiedBy string) error {
	return r.setActive(ctx, id, true, modifiedBy)
}

func (r *FacilityRepository) setActive(ctx context.Context, id int, active bool, modifiedBy string) error {
	query := `
		UPDATE facilities
		SET is_active = $2, modified_by = $3, modified_at = $4
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query, id, active, modifiedBy, time.Now())
	if err != nil {
		return fmt.Errorf("failed to set facility active flag: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("facility %d not found", id)
	}
	return nil
}
