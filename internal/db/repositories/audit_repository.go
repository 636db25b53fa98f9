// audit_repository.go implements AuditRepository, the append-only store for
// field-level change records. One row per changed field per mutation; rows are
// never updated or deleted.
package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/downtime-tracker/downtime-tracker/internal/db/models"
	"github.com/google/uuid"
)

// AuditRepository handles audit change database operations
type AuditRepository struct {
	db Querier
}

// NewAuditRepository creates a new AuditRepository
func NewAuditRepository(db Querier) *AuditRepository {
	return &AuditRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction so
// audit rows commit or roll back together with the mutation they describe.
func (r *AuditRepository) WithTx(tx Querier) *AuditRepository {
	return &AuditRepository{db: tx}
}

// AuditFilters contains filters for querying audit changes
type AuditFilters struct {
	Entity    *string
	EntityID  *string
	Action    *string
	Username  *string
	StartDate *time.Time
	EndDate   *time.Time
}

// Create inserts a single audit change row
func (r *AuditRepository) Create(ctx context.Context, change *models.AuditChange) error {
	change.ID = uuid.New().String()
	if change.CreatedAt.IsZero() {
		change.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO audit_changes (id, entity, entity_id, action, field, old_value, new_value, username, ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.db.ExecContext(ctx, query,
		change.ID,
		change.Entity,
		change.EntityID,
		change.Action,
		change.Field,
		change.OldValue,
		change.NewValue,
		change.Username,
		change.IPAddress,
		change.UserAgent,
		change.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create audit change: %w", err)
	}
	return nil
}

// CreateBatch inserts a set of audit change rows. The caller is expected to
// run this inside the same transaction as the mutation the rows describe.
func (r *AuditRepository) CreateBatch(ctx context.Context, changes []*models.AuditChange) error {
	for _, change := range changes {
		if err := r.Create(ctx, change); err != nil {
			return err
		}
	}
	return nil
}

// List retrieves audit changes with optional filters and pagination
func (r *AuditRepository) List(ctx context.Context, filters AuditFilters, limit, offset int) ([]*models.AuditChange, int, error) {
	countQuery := `SELECT COUNT(*) FROM audit_changes WHERE 1=1`
	query := `
		SELECT id, entity, entity_id, action, field, old_value, new_value, username, ip_address, user_agent, created_at
		FROM audit_changes
		WHERE 1=1
	`

	args := make([]interface{}, 0)
	paramIndex := 1

	addFilter := func(clause string, value interface{}) {
		cond := fmt.Sprintf(clause, paramIndex)
		countQuery += cond
		query += cond
		args = append(args, value)
		paramIndex++
	}

	if filters.Entity != nil {
		addFilter(` AND entity = $%d`, *filters.Entity)
	}
	if filters.EntityID != nil {
		addFilter(` AND entity_id = $%d`, *filters.EntityID)
	}
	if filters.Action != nil {
		addFilter(` AND action = $%d`, *filters.Action)
	}
	if filters.Username != nil {
		addFilter(` AND username = $%d`, *filters.Username)
	}
	if filters.StartDate != nil {
		addFilter(` AND created_at >= $%d`, *filters.StartDate)
	}
	if filters.EndDate != nil {
		addFilter(` AND created_at <= $%d`, *filters.EndDate)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count audit changes: %w", err)
	}

	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, paramIndex, paramIndex+1)
	args = append(args, limit, offset)

	changes := make([]*models.AuditChange, 0)
	if err := r.db.SelectContext(ctx, &changes, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list audit changes: %w", err)
	}

	return changes, total, nil
}

// ListForEntity retrieves the full change history of a single row, oldest first
func (r *AuditRepository) ListForEntity(ctx context.Context, entity, entityID string) ([]*models.AuditChange, error) {
	query := `
		SELECT id, entity, entity_id, action, field, old_value, new_value, username, ip_address, user_agent, created_at
		FROM audit_changes
		WHERE entity = $1 AND entity_id = $2
		ORDER BY created_at ASC
	`

	changes := make([]*models.AuditChange, 0)
	if err := r.db.SelectContext(ctx, &changes, query, entity, entityID); err != nil {
		return nil, fmt.Errorf("failed to list entity history: %w", err)
	}
	return changes, nil
}
