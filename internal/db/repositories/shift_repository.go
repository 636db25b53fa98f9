package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/downtime-tracker/downtime-tracker/internal/db/models"
)

// ShiftRepository handles shift database operations
type ShiftRepository struct {
	db Querier
}

// NewShiftRepository creates a new ShiftRepository
func NewShiftRepository(db Querier) *ShiftRepository {
	return &ShiftRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction
func (r *ShiftRepository) WithTx(tx Querier) *ShiftRepository {
	return &ShiftRepository{db: tx}
}

// GetByID retrieves a shift by ID, or nil if not found
func (r *ShiftRepository) GetByID(ctx context.Context, id int) (*models.Shift, error) {
	query := `
		SELECT id, name, to_char(start_time, 'HH24:MI') AS start_time, to_char(end_time, 'HH24:MI') AS end_time,
		       is_active, created_by, created_at, modified_by, modified_at
		FROM shifts
		WHERE id = $1
	`

	shift := &models.Shift{}
	err := r.db.GetContext(ctx, shift, query, id)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get shift: %w", err)
	}
	return shift, nil
}

// List retrieves shifts ordered by start time. Active only unless
// includeInactive is set.
func (r *ShiftRepository) List(ctx context.Context, includeInactive bool) ([]*models.Shift, error) {
	query := `
		SELECT id, name, to_char(start_time, 'HH24:MI') AS start_time, to_char(end_time, 'HH24:MI') AS end_time,
		       is_active, created_by, created_at, modified_by, modified_at
		FROM shifts
	`
	if !includeInactive {
		query += ` WHERE is_active = TRUE`
	}
	query += ` ORDER BY start_time ASC`

	shifts := make([]*models.Shift, 0)
	if err := r.db.SelectContext(ctx, &shifts, query); err != nil {
		return nil, fmt.Errorf("failed to list shifts: %w", err)
	}
	return shifts, nil
}

// Create inserts a new shift and returns it with its assigned ID. Start and
// end are "HH:MM" clock times; a shift spanning midnight has end < start.
func (r *ShiftRepository) Create(ctx context.Context, shift *models.Shift) error {
	shift.IsActive = true
	shift.CreatedAt = time.Now()

	query := `
		INSERT INTO shifts (name, start_time, end_time, is_active, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	err := r.db.GetContext(ctx, &shift.ID, query,
		shift.Name, shift.StartTime, shift.EndTime,
		shift.IsActive, shift.CreatedBy, shift.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create shift: %w", err)
	}
	return nil
}

// Update modifies a shift's name and clock times
func (r *ShiftRepository) Update(ctx context.Context, id int, name, startTime, endTime, modifiedBy string) error {
	query := `
		UPDATE shifts
		SET name = $2, start_time = $3, end_time = $4, modified_by = $5, modified_at = $6
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query, id, name, startTime, endTime, modifiedBy, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update shift: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("shift %d not found", id)
	}
	return nil
}

// Deactivate soft-deletes a shift
func (r *ShiftRepository) Deactivate(ctx context.Context, id int, modifiedBy string) error {
	return r.setActive(ctx, id, false, modifiedBy)
}

// Reactivate restores a soft-deleted shift
func (r *ShiftRepository) Reactivate(ctx context.Context, id int, modifiedBy string) error {
	return r.setActive(ctx, id, true, modifiedBy)
}

func (r *ShiftRepository) setActive(ctx context.Context, id int, active bool, modifiedBy string) error {
	query := `
		UPDATE shifts
		SET is_active = $2, modified_by = $3, modified_at = $4
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query, id, active, modifiedBy, time.Now())
	if err != nil {
		return fmt.Errorf("failed to set shift active flag: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("shift %d not found", id)
	}
	return nil
}
