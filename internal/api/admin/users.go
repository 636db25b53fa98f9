// users.go implements user administration. Accounts are provisioned
// automatically on first login from the identity provider, so there is no
// create endpoint; admins list accounts and flip the active flag. Disabling
// an account also invalidates any live session it holds.
package admin

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/downtime-tracker/downtime-tracker/internal/audit"
	"github.com/downtime-tracker/downtime-tracker/internal/db/models"
	"github.com/downtime-tracker/downtime-tracker/internal/db/repositories"
	"github.com/downtime-tracker/downtime-tracker/internal/middleware"
)

// UserHandlers handles user management endpoints
type UserHandlers struct {
	db       *sqlx.DB
	users    *repositories.UserRepository
	sessions *repositories.SessionRepository
	audits   *repositories.AuditRepository
}

// NewUserHandlers creates a new UserHandlers instance
func NewUserHandlers(db *sqlx.DB, sessionTimeout time.Duration) *UserHandlers {
	return &UserHandlers{
		db:       db,
		users:    repositories.NewUserRepository(db),
		sessions: repositories.NewSessionRepository(db, sessionTimeout),
		audits:   repositories.NewAuditRepository(db),
	}
}

// ListUsersHandler lists all user accounts with pagination
// GET /api/v1/admin/users?page=1&per_page=20
func (h *UserHandlers) ListUsersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		page, perPage := pagination(c)

		users, total, err := h.users.List(c.Request.Context(), perPage, (page-1)*perPage)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list users"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"users": users,
			"pagination": gin.H{
				"page":     page,
				"per_page": perPage,
				"total":    total,
			},
		})
	}
}

// DisableUserHandler disables an account and invalidates its live session
// DELETE /api/v1/admin/users/:username
func (h *UserHandlers) DisableUserHandler() gin.HandlerFunc {
	return h.setActive(false, models.AuditActionDeactivate, "User disabled")
}

// EnableUserHandler re-enables a disabled account
// POST /api/v1/admin/users/:username/enable
func (h *UserHandlers) EnableUserHandler() gin.HandlerFunc {
	return h.setActive(true, models.AuditActionReactivate, "User enabled")
}

func (h *UserHandlers) setActive(active bool, action, message string) gin.HandlerFunc {
	return func(c *gin.Context) {
		username := c.Param("username")
		admin := middleware.CurrentUser(c)
		if !active && admin != nil && admin.Username == username {
			c.JSON(http.StatusConflict, gin.H{"error": "Cannot disable your own account"})
			return
		}

		target, err := h.users.GetByUsername(c.Request.Context(), username)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve user"})
			return
		}
		if target == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		if target.IsActive == active {
			c.JSON(http.StatusOK, gin.H{"message": message, "user": target})
			return
		}

		cs := audit.NewChangeSet("user", username, action, middleware.OriginFrom(c))
		cs.Compare("is_active", target.IsActive, active)

		err = inTx(c.Request.Context(), h.db, h.audits, func(tx *sqlx.Tx) (*audit.ChangeSet, error) {
			if err := h.users.WithTx(tx).SetActive(c.Request.Context(), username, active); err != nil {
				return nil, err
			}
			if !active {
				// A disabled account must not keep a working session
				live, err := h.sessions.WithTx(tx).FindLiveRow(c.Request.Context(), username)
				if err != nil {
					return nil, err
				}
				if live != nil {
					if err := h.sessions.WithTx(tx).Invalidate(c.Request.Context(), live.ID); err != nil {
						return nil, err
					}
					cs.Record("session_id", &live.ID, nil)
				}
			}
			return cs, nil
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update user"})
			return
		}

		target.IsActive = active
		c.JSON(http.StatusOK, gin.H{"message": message, "user": target})
	}
}
