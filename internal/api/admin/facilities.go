// facilities.go implements admin CRUD for facilities. Facilities are never
// hard-deleted; deactivation is refused while active production lines still
// reference the facility.
package admin

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/downtime-tracker/downtime-tracker/internal/audit"
	"github.com/downtime-tracker/downtime-tracker/internal/db/models"
	"github.com/downtime-tracker/downtime-tracker/internal/db/repositories"
	"github.com/downtime-tracker/downtime-tracker/internal/middleware"
)

// FacilityHandlers handles facility management endpoints
type FacilityHandlers struct {
	db         *sqlx.DB
	facilities *repositories.FacilityRepository
	audits     *repositories.AuditRepository
}

// NewFacilityHandlers creates a new FacilityHandlers instance
func NewFacilityHandlers(db *sqlx.DB) *FacilityHandlers {
	return &FacilityHandlers{
		db:         db,
		facilities: repositories.NewFacilityRepository(db),
		audits:     repositories.NewAuditRepository(db),
	}
}

// FacilityRequest is the payload for creating or updating a facility
type FacilityRequest struct {
	Name string `json:"name" binding:"required"`
	Code string `json:"code" binding:"required"`
}

// ListFacilitiesHandler lists facilities including deactivated ones
// GET /api/v1/admin/facilities
func (h *FacilityHandlers) ListFacilitiesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		facilities, err := h.facilities.List(c.Request.Context(), includeInactive(c))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list facilities"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"facilities": facilities})
	}
}

// GetFacilityHandler retrieves a facility by ID
// GET /api/v1/admin/facilities/:id
func (h *FacilityHandlers) GetFacilityHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}

		facility, err := h.facilities.GetByID(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve facility"})
			return
		}
		if facility == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Facility not found"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"facility": facility})
	}
}

// CreateFacilityHandler creates a facility
// POST /api/v1/admin/facilities
func (h *FacilityHandlers) CreateFacilityHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req FacilityRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
			return
		}

		user := middleware.CurrentUser(c)
		facility := &models.Facility{
			Name:      req.Name,
			Code:      req.Code,
			CreatedBy: user.Username,
		}

		err := inTx(c.Request.Context(), h.db, h.audits, func(tx *sqlx.Tx) (*audit.ChangeSet, error) {
			if err := h.facilities.WithTx(tx).Create(c.Request.Context(), facility); err != nil {
				return nil, err
			}
			cs := audit.NewChangeSet("facility", facility.ID, models.AuditActionCreate, middleware.OriginFrom(c))
			cs.Compare("name", nil, facility.Name)
			cs.Compare("code", nil, facility.Code)
			return cs, nil
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create facility"})
			return
		}

		c.JSON(http.StatusCreated, gin.H{"facility": facility})
	}
}

// UpdateFacilityHandler updates a facility's name and code
// PUT /api/v1/admin/facilities/:id
func (h *FacilityHandlers) UpdateFacilityHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}

		var req FacilityRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
			return
		}

		existing, err := h.facilities.GetByID(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve facility"})
			return
		}
		if existing == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Facility not found"})
			return
		}

		user := middleware.CurrentUser(c)
		cs := audit.NewChangeSet("facility", id, models.AuditActionUpdate, middleware.OriginFrom(c))
		cs.Compare("name", existing.Name, req.Name)
		cs.Compare("code", existing.Code, req.Code)
		if cs.Empty() {
			c.JSON(http.StatusOK, gin.H{"facility": existing})
			return
		}

		err = inTx(c.Request.Context(), h.db, h.audits, func(tx *sqlx.Tx) (*audit.ChangeSet, error) {
			return cs, h.facilities.WithTx(tx).Update(c.Request.Context(), id, req.Name, req.Code, user.Username)
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update facility"})
			return
		}

		existing.Name = req.Name
		existing.Code = req.Code
		c.JSON(http.StatusOK, gin.H{"facility": existing})
	}
}

// DeactivateFacilityHandler soft-deletes a facility
// DELETE /api/v1/admin/facilities/:id
func (h *FacilityHandlers) DeactivateFacilityHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}

		user := middleware.CurrentUser(c)
		cs := audit.NewChangeSet("facility", id, models.AuditActionDeactivate, middleware.OriginFrom(c))
		cs.Compare("is_active", true, false)

		err := inTx(c.Request.Context(), h.db, h.audits, func(tx *sqlx.Tx) (*audit.ChangeSet, error) {
			return cs, h.facilities.WithTx(tx).Deactivate(c.Request.Context(), id, user.Username)
		})
		if err != nil {
			if errors.Is(err, repositories.ErrHasActiveChildren) {
				c.JSON(http.StatusConflict, gin.H{"error": "Facility still has active production lines"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to deactivate facility"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "Facility deactivated"})
	}
}

// ReactivateFacilityHandler restores a deactivated facility
// POST /api/v1/admin/facilities/:id/reactivate
func (h *FacilityHandlers) ReactivateFacilityHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}

		user := middleware.CurrentUser(c)
		cs := audit.NewChangeSet("facility", id, models.AuditActionReactivate, middleware.OriginFrom(c))
		cs.Compare("is_active", false, true)

		err := inTx(c.Request.Context(), h.db, h.audits, func(tx *sqlx.Tx) (*audit.ChangeSet, error) {
			return cs, h.facilities.WithTx(tx).Reactivate(c.Request.Context(), id, user.Username)
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reactivate facility"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "Facility reactivated"})
	}
}
