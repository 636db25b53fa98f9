package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/downtime-tracker/downtime-tracker/internal/db/models"
)

// ErrCategoryDepth is returned when a category's parent is itself a
// sub-category. The hierarchy is one level deep only.
var ErrCategoryDepth = fmt.Errorf("categories nest one level deep")

// CategoryRepository handles downtime category database operations
type CategoryRepository struct {
	db Querier
}

// NewCategoryRepository creates a new CategoryRepository
func NewCategoryRepository(db Querier) *CategoryRepository {
	return &CategoryRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction
func (r *CategoryRepository) WithTx(tx Querier) *CategoryRepository {
	return &CategoryRepository{db: tx}
}

// GetByID retrieves a category by ID, or nil if not found
func (r *CategoryRepository) GetByID(ctx context.Context, id int) (*models.Category, error) {
	query := `
		SELECT id, name, code, parent_id, is_active, created_by, created_at, modified_by, modified_at
		FROM downtime_categories
		WHERE id = $1
	`

	category := &models.Category{}
	err := r.db.GetContext(ctx, category, query, id)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	return category, nil
}

// List retrieves categories ordered parents-first so clients can build the
// tree in one pass. Active only unless includeInactive is set.
func (r *CategoryRepository) List(ctx context.Context, includeInactive bool) ([]*models.Category, error) {
	query := `
		SELECT id, name, code, parent_id, is_active, created_by, created_at, modified_by, modified_at
		FROM downtime_categories
	`
	if !includeInactive {
		query += ` WHERE is_active = TRUE`
	}
	query += ` ORDER BY parent_id ASC NULLS FIRST, name ASC`

	categories := make([]*models.Category, 0)
	if err := r.db.SelectContext(ctx, &categories, query); err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	return categories, nil
}

// Create inserts a new category. A parent, if given, must exist, be active,
// and be a top-level category.
func (r *CategoryRepository) Create(ctx context.Context, category *models.Category) error {
	if category.ParentID != nil {
		if err := r.checkParent(ctx, *category.ParentID); err != nil {
			return err
		}
	}

	category.IsActive = true
	category.CreatedAt = time.Now()

	query := `
		INSERT INTO downtime_categories (name, code, parent_id, is_active, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	err := r.db.GetContext(ctx, &category.ID, query,
		category.Name, category.Code, category.ParentID,
		category.IsActive, category.CreatedBy, category.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create category: %w", err)
	}
	return nil
}

// Update modifies a category's name, code, and parent
func (r *CategoryRepository) Update(ctx context.Context, id int, name, code string, parentID *int, modifiedBy string) error {
	if parentID != nil {
		if *parentID == id {
			return fmt.Errorf("category cannot be its own parent")
		}
		if err := r.checkParent(ctx, *parentID); err != nil {
			return err
		}
	}

	query := `
		UPDATE downtime_categories
		SET name = $2, code = $3, parent_id = $4, modified_by = $5, modified_at = $6
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query, id, name, code, parentID, modifiedBy, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update category: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("category %d not found", id)
	}
	return nil
}

// Deactivate soft-deletes a category. Refused while active sub-categories
// still reference it.
func (r *CategoryRepository) Deactivate(ctx context.Context, id int, modifiedBy string) error {
	var activeChildren int
	countQuery := `SELECT COUNT(*) FROM downtime_categories WHERE parent_id = $1 AND is_active = TRUE`
	if err := r.db.GetContext(ctx, &activeChildren, countQuery, id); err != nil {
		return fmt.Errorf("failed to count sub-categories: %w", err)
	}
	if activeChildren > 0 {
		return ErrHasActiveChildren
	}

	return r.setActive(ctx, id, false, modifiedBy)
}

// Reactivate restores a soft-deleted category. A sub-category cannot be
// reactivated while its parent is inactive.
func (r *CategoryRepository) Reactivate(ctx context.Context, id int, modifiedBy string) error {
	category, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if category == nil {
		return fmt.Errorf("category %d not found", id)
	}
	if category.ParentID != nil {
		parent, err := r.GetByID(ctx, *category.ParentID)
		if err != nil {
			return err
		}
		if parent == nil || !parent.IsActive {
			return ErrParentInactive
		}
	}

	return r.setActive(ctx, id, true, modifiedBy)
}

func (r *CategoryRepository) checkParent(ctx context.Context, parentID int) error {
	parent, err := r.GetByID(ctx, parentID)
	if err != nil {
		return err
	}
	if parent == nil {
		return fmt.Errorf("parent category %d not found", parentID)
	}
	if !parent.IsActive {
		return ErrParentInactive
	}
	if parent.ParentID != nil {
		return ErrCategoryDepth
	}
	return nil
}

func (r *CategoryRepository) setActive(ctx context.Context, id int, active bool, modifiedBy string) error {
	query := `
		UPDATE downtime_categories
		SET is_active = $2, modified_by = $3, modified_at = $4
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query, id, active, modifiedBy, time.Now())
	if err != nil {
		return fmt.Errorf("failed to set category active flag: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("category %d not found", id)
	}
	return nil
}
