// shifts.go implements admin CRUD for shifts. Shift boundaries are clock
// times in HH:MM; an end before the start means the shift spans midnight.
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

// ShiftHandlers handles shift management endpoints
type ShiftHandlers struct {
	db     *sqlx.DB
	shifts *repositories.ShiftRepository
	audits *repositories.AuditRepository
}

// NewShiftHandlers creates a new ShiftHandlers instance
func NewShiftHandlers(db *sqlx.DB) *ShiftHandlers {
	return &ShiftHandlers{
		db:     db,
		shifts: repositories.NewShiftRepository(db),
		audits: repositories.NewAuditRepository(db),
	}
}

// ShiftRequest is the payload for creating or updating a shift
type ShiftRequest struct {
	Name      string `json:"name" binding:"required"`
	StartTime string `json:"start_time" binding:"required"`
	EndTime   string `json:"end_time" binding:"required"`
}

// validTimes checks both boundaries parse as HH:MM clock times
func (r *ShiftRequest) validTimes() bool {
	for _, v := range []string{r.StartTime, r.EndTime} {
		if _, err := time.Parse("15:04", v); err != nil {
			return false
		}
	}
	return true
}

// ListShiftsHandler lists shifts including deactivated ones
// GET /api/v1/admin/shifts
func (h *ShiftHandlers) ListShiftsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		shifts, err := h.shifts.List(c.Request.Context(), includeInactive(c))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list shifts"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"shifts": shifts})
	}
}

// GetShiftHandler retrieves a shift by ID
// GET /api/v1/admin/shifts/:id
func (h *ShiftHandlers) GetShiftHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}

		shift, err := h.shifts.GetByID(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve shift"})
			return
		}
		if shift == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Shift not found"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"shift": shift})
	}
}

// CreateShiftHandler creates a shift
// POST /api/v1/admin/shifts
func (h *ShiftHandlers) CreateShiftHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ShiftRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
			return
		}
		if !req.validTimes() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "start_time and end_time must be HH:MM clock times"})
			return
		}

		user := middleware.CurrentUser(c)
		shift := &models.Shift{
			Name:      req.Name,
			StartTime: req.StartTime,
			EndTime:   req.EndTime,
			CreatedBy: user.Username,
		}

		err := inTx(c.Request.Context(), h.db, h.audits, func(tx *sqlx.Tx) (*audit.ChangeSet, error) {
			if err := h.shifts.WithTx(tx).Create(c.Request.Context(), shift); err != nil {
				return nil, err
			}
			cs := audit.NewChangeSet("shift", shift.ID, models.AuditActionCreate, middleware.OriginFrom(c))
			cs.Compare("name", nil, shift.Name)
			cs.Compare("start_time", nil, shift.StartTime)
			cs.Compare("end_time", nil, shift.EndTime)
			return cs, nil
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create shift"})
			return
		}

		c.JSON(http.StatusCreated, gin.H{"shift": shift})
	}
}

// UpdateShiftHandler updates a shift's name and boundaries
// PUT /api/v1/admin/shifts/:id
func (h *ShiftHandlers) UpdateShiftHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}

		var req ShiftRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
			return
		}
		if !req.validTimes() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "start_time and end_time must be HH:MM clock times"})
			return
		}

		existing, err := h.shifts.GetByID(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve shift"})
			return
		}
		if existing == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Shift not found"})
			return
		}

		user := middleware.CurrentUser(c)
		cs := audit.NewChangeSet("shift", id, models.AuditActionUpdate, middleware.OriginFrom(c))
		cs.Compare("name", existing.Name, req.Name)
		cs.Compare("start_time", existing.StartTime, req.StartTime)
		cs.Compare("end_time", existing.EndTime, req.EndTime)
		if cs.Empty() {
			c.JSON(http.StatusOK, gin.H{"shift": existing})
			return
		}

		err = inTx(c.Request.Context(), h.db, h.audits, func(tx *sqlx.Tx) (*audit.ChangeSet, error) {
			return cs, h.shifts.WithTx(tx).Update(c.Request.Context(), id, req.Name, req.StartTime, req.EndTime, user.Username)
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update shift"})
			return
		}

		existing.Name = req.Name
		existing.StartTime = req.StartTime
		existing.EndTime = req.EndTime
		c.JSON(http.StatusOK, gin.H{"shift": existing})
	}
}

// DeactivateShiftHandler soft-deletes a shift
// DELETE /api/v1/admin/shifts/:id
func (h *ShiftHandlers) DeactivateShiftHandler() gin.HandlerFunc {
	return h.setActive(false, models.AuditActionDeactivate, "Shift deactivated")
}

// ReactivateShiftHandler restores a deactivated shift
// POST /api/v1/admin/shifts/:id/reactivate
func (h *ShiftHandlers) ReactivateShiftHandler() gin.HandlerFunc {
	return h.setActive(true, models.AuditActionReactivate, "Shift reactivated")
}

func (h *ShiftHandlers) setActive(active bool, action, message string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}

		user := middleware.CurrentUser(c)
		cs := audit.NewChangeSet("shift", id, action, middleware.OriginFrom(c))
		cs.Compare("is_active", !active, active)

		err := inTx(c.Request.Context(), h.db, h.audits, func(tx *sqlx.Tx) (*audit.ChangeSet, error) {
			repo := h.shifts.WithTx(tx)
			if active {
				return cs, repo.Reactivate(c.Request.Context(), id, user.Username)
			}
			return cs, repo.Deactivate(c.Request.Context(), id, user.Username)
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update shift"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": message})
	}
}
