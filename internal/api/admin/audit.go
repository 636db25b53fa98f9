// audit.go implements the audit history endpoints backing the supervisor
// history screen. Audit rows are read-only; there is no mutation surface.
package admin

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/downtime-tracker/downtime-tracker/internal/db/repositories"
)

// AuditHandlers handles audit history endpoints
type AuditHandlers struct {
	audits *repositories.AuditRepository
}

// NewAuditHandlers creates a new AuditHandlers instance
func NewAuditHandlers(db *sqlx.DB) *AuditHandlers {
	return &AuditHandlers{audits: repositories.NewAuditRepository(db)}
}

// ListAuditHandler lists audit changes, newest first, with optional filters
// GET /api/v1/admin/audit?entity=downtime&username=jsmith&start_date=2026-08-01
func (h *AuditHandlers) ListAuditHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		filters := repositories.AuditFilters{}
		for name, dst := range map[string]**string{
			"entity":    &filters.Entity,
			"entity_id": &filters.EntityID,
			"action":    &filters.Action,
			"username":  &filters.Username,
		} {
			if v := c.Query(name); v != "" {
				*dst = &v
			}
		}
		if raw := c.Query("start_date"); raw != "" {
			t, err := time.Parse("2006-01-02", raw)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start_date, expected YYYY-MM-DD"})
				return
			}
			filters.StartDate = &t
		}
		if raw := c.Query("end_date"); raw != "" {
			t, err := time.Parse("2006-01-02", raw)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid end_date, expected YYYY-MM-DD"})
				return
			}
			t = t.AddDate(0, 0, 1)
			filters.EndDate = &t
		}

		page, perPage := pagination(c)
		changes, total, err := h.audits.List(c.Request.Context(), filters, perPage, (page-1)*perPage)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list audit history"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"changes": changes,
			"pagination": gin.H{
				"page":     page,
				"per_page": perPage,
				"total":    total,
			},
		})
	}
}

// EntityHistoryHandler lists the full change history of one record, oldest first
// GET /api/v1/admin/audit/:entity/:id
func (h *AuditHandlers) EntityHistoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		entity := c.Param("entity")
		entityID := c.Param("id")

		changes, err := h.audits.ListForEntity(c.Request.Context(), entity, entityID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve entity history"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"entity":    entity,
			"entity_id": entityID,
			"changes":   changes,
		})
	}
}
