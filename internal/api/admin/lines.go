// lines.go implements admin CRUD for production lines. Lines belong to a
// facility and cannot be created under, or reactivated under, an inactive one.
package admin

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/downtime-tracker/downtime-tracker/internal/audit"
	"github.com/downtime-tracker/downtime-tracker/internal/db/models"
	"github.com/downtime-tracker/downtime-tracker/internal/db/repositories"
	"github.com/downtime-tracker/downtime-tracker/internal/middleware"
)

// LineHandlers handles production line management endpoints
type LineHandlers struct {
	db     *sqlx.DB
	lines  *repositories.LineRepository
	audits *repositories.AuditRepository
}

// NewLineHandlers creates a new LineHandlers instance
func NewLineHandlers(db *sqlx.DB) *LineHandlers {
	return &LineHandlers{
		db:     db,
		lines:  repositories.NewLineRepository(db),
		audits: repositories.NewAuditRepository(db),
	}
}

// CreateLineRequest is the payload for creating a production line
type CreateLineRequest struct {
	FacilityID int    `json:"facility_id" binding:"required"`
	Name       string `json:"name" binding:"required"`
}

// UpdateLineRequest is the payload for renaming a production line. Lines
// cannot move between facilities; recreate the line instead.
type UpdateLineRequest struct {
	Name string `json:"name" binding:"required"`
}

// ListLinesHandler lists production lines including deactivated ones
// GET /api/v1/admin/lines?facility_id=1
func (h *LineHandlers) ListLinesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var facilityID *int
		if raw := c.Query("facility_id"); raw != "" {
			id, err := strconv.Atoi(raw)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid facility_id"})
				return
			}
			facilityID = &id
		}

		lines, err := h.lines.List(c.Request.Context(), facilityID, includeInactive(c))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list production lines"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"lines": lines})
	}
}

// GetLineHandler retrieves a production line by ID
// GET /api/v1/admin/lines/:id
func (h *LineHandlers) GetLineHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}

		line, err := h.lines.GetByID(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve production line"})
			return
		}
		if line == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Production line not found"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"line": line})
	}
}

// CreateLineHandler creates a production line under an active facility
// POST /api/v1/admin/lines
func (h *LineHandlers) CreateLineHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateLineRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
			return
		}

		user := middleware.CurrentUser(c)
		line := &models.ProductionLine{
			FacilityID: req.FacilityID,
			Name:       req.Name,
			CreatedBy:  user.Username,
		}

		err := inTx(c.Request.Context(), h.db, h.audits, func(tx *sqlx.Tx) (*audit.ChangeSet, error) {
			if err := h.lines.WithTx(tx).Create(c.Request.Context(), line); err != nil {
				return nil, err
			}
			cs := audit.NewChangeSet("production_line", line.ID, models.AuditActionCreate, middleware.OriginFrom(c))
			cs.Compare("facility_id", nil, line.FacilityID)
			cs.Compare("name", nil, line.Name)
			return cs, nil
		})
		if err != nil {
			if errors.Is(err, repositories.ErrParentInactive) {
				c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Facility is inactive or does not exist"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create production line"})
			return
		}

		c.JSON(http.StatusCreated, gin.H{"line": line})
	}
}

// UpdateLineHandler renames a production line
// PUT /api/v1/admin/lines/:id
func (h *LineHandlers) UpdateLineHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}

		var req UpdateLineRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
			return
		}

		existing, err := h.lines.GetByID(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve production line"})
			return
		}
		if existing == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Production line not found"})
			return
		}

		user := middleware.CurrentUser(c)
		cs := audit.NewChangeSet("production_line", id, models.AuditActionUpdate, middleware.OriginFrom(c))
		cs.Compare("name", existing.Name, req.Name)
		if cs.Empty() {
			c.JSON(http.StatusOK, gin.H{"line": existing})
			return
		}

		err = inTx(c.Request.Context(), h.db, h.audits, func(tx *sqlx.Tx) (*audit.ChangeSet, error) {
			return cs, h.lines.WithTx(tx).Update(c.Request.Context(), id, req.Name, user.Username)
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update production line"})
			return
		}

		existing.Name = req.Name
		c.JSON(http.StatusOK, gin.H{"line": existing})
	}
}

// DeactivateLineHandler soft-deletes a production line
// DELETE /api/v1/admin/lines/:id
func (h *LineHandlers) DeactivateLineHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}

		user := middleware.CurrentUser(c)
		cs := audit.NewChangeSet("production_line", id, models.AuditActionDeactivate, middleware.OriginFrom(c))
		cs.Compare("is_active", true, false)

		err := inTx(c.Request.Context(), h.db, h.audits, func(tx *sqlx.Tx) (*audit.ChangeSet, error) {
			return cs, h.lines.WithTx(tx).Deactivate(c.Request.Context(), id, user.Username)
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to deactivate production line"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "Production line deactivated"})
	}
}

// ReactivateLineHandler restores a deactivated production line. Refused while
// the parent facility is inactive.
// POST /api/v1/admin/lines/:id/reactivate
func (h *LineHandlers) ReactivateLineHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}

		user := middleware.CurrentUser(c)
		cs := audit.NewChangeSet("production_line", id, models.AuditActionReactivate, middleware.OriginFrom(c))
		cs.Compare("is_active", false, true)

		err := inTx(c.Request.Context(), h.db, h.audits, func(tx *sqlx.Tx) (*audit.ChangeSet, error) {
			return cs, h.lines.WithTx(tx).Reactivate(c.Request.Context(), id, user.Username)
		})
		if err != nil {
			if errors.Is(err, repositories.ErrParentInactive) {
				c.JSON(http.StatusConflict, gin.H{"error": "Reactivate the parent facility first"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reactivate production line"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "Production line reactivated"})
	}
}
