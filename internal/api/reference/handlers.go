// Package reference serves the read-only lookup lists the entry screen needs:
// facilities, production lines, categories, and shifts. Operators only ever
// see active records here; administration of these lists lives in the admin
// package.
package reference

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/downtime-tracker/downtime-tracker/internal/db/repositories"
)

// Handlers handles reference data read endpoints
type Handlers struct {
	facilities *repositories.FacilityRepository
	lines      *repositories.LineRepository
	categories *repositories.CategoryRepository
	shifts     *repositories.ShiftRepository
}

// NewHandlers creates a new reference Handlers instance
func NewHandlers(db *sqlx.DB) *Handlers {
	return &Handlers{
		facilities: repositories.NewFacilityRepository(db),
		lines:      repositories.NewLineRepository(db),
		categories: repositories.NewCategoryRepository(db),
		shifts:     repositories.NewShiftRepository(db),
	}
}

// ListFacilitiesHandler lists active facilities
// GET /api/v1/facilities
func (h *Handlers) ListFacilitiesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		facilities, err := h.facilities.List(c.Request.Context(), false)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list facilities"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"facilities": facilities})
	}
}

// ListLinesHandler lists active production lines, optionally scoped to one facility
// GET /api/v1/lines?facility_id=1
func (h *Handlers) ListLinesHandler() gin.HandlerFunc {
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

		lines, err := h.lines.List(c.Request.Context(), facilityID, false)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list production lines"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"lines": lines})
	}
}

// ListCategoriesHandler lists active downtime categories, parents before children
// GET /api/v1/categories
func (h *Handlers) ListCategoriesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		categories, err := h.categories.List(c.Request.Context(), false)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list categories"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"categories": categories})
	}
}

// ListShiftsHandler lists active shifts
// GET /api/v1/shifts
func (h *Handlers) ListShiftsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		shifts, err := h.shifts.List(c.Request.Context(), false)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list shifts"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"shifts": shifts})
	}
}
