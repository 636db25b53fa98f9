// user_repository.go implements UserRepository. Accounts are provisioned
// automatically at login (Upsert) from identity-provider data; admins only
// toggle the active flag.
package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/downtime-tracker/downtime-tracker/internal/db/models"
	"github.com/google/uuid"
)

// UserRepository handles user database operations
type UserRepository struct {
	db Querier
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db Querier) *UserRepository {
	return &UserRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction
func (r *UserRepository) WithTx(tx Querier) *UserRepository {
	return &UserRepository{db: tx}
}

// GetByUsername retrieves a user by username, or nil if not found
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `
		SELECT id, username, display_name, email, is_admin, is_active, created_at, updated_at
		FROM users
		WHERE username = $1
	`

	user := &models.User{}
	err := r.db.GetContext(ctx, user, query, username)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// Upsert creates the user on first login or refreshes display name, email,
// and admin flag from the identity provider on subsequent logins. The active
// flag is never touched here — only an administrator changes it.
func (r *UserRepository) Upsert(ctx context.Context, username, displayName, email string, isAdmin bool) (*models.User, error) {
	existing, err := r.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if existing == nil {
		user := &models.User{
			ID:          uuid.New().String(),
			Username:    username,
			DisplayName: displayName,
			Email:       email,
			IsAdmin:     isAdmin,
			IsActive:    true,
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		query := `
			INSERT INTO users (id, username, display_name, email, is_admin, is_active, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`
		_, err := r.db.ExecContext(ctx, query,
			user.ID, user.Username, user.DisplayName, user.Email,
			user.IsAdmin, user.IsActive, user.CreatedAt, user.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
		return user, nil
	}

	if existing.DisplayName != displayName || existing.Email != email || existing.IsAdmin != isAdmin {
		query := `
			UPDATE users
			SET display_name = $2, email = $3, is_admin = $4, updated_at = $5
			WHERE username = $1
		`
		if _, err := r.db.ExecContext(ctx, query, username, displayName, email, isAdmin, now); err != nil {
			return nil, fmt.Errorf("failed to update user: %w", err)
		}
		existing.DisplayName = displayName
		existing.Email = email
		existing.IsAdmin = isAdmin
		existing.UpdatedAt = now
	}

	return existing, nil
}

// SetActive flips the user's active flag. A deactivated user cannot log in.
func (r *UserRepository) SetActive(ctx context.Context, username string, active bool) error {
	query := `UPDATE users SET is_active = $2, updated_at = $3 WHERE username = $1`
	result, err := r.db.ExecContext(ctx, query, username, active, time.Now())
	if err != nil {
		return fmt.Errorf("failed to set user active flag: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("user %q not found", username)
	}
	return nil
}

// List retrieves a paginated list of users
func (r *UserRepository) List(ctx context.Context, limit, offset int) ([]*models.User, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM users`); err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	query := `
		SELECT id, username, display_name, email, is_admin, is_active, created_at, updated_at
		FROM users
		ORDER BY username ASC
		LIMIT $1 OFFSET $2
	`

	users := make([]*models.User, 0)
	if err := r.db.SelectContext(ctx, &users, query, limit, offset); err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	return users, total, nil
}
