// status.go implements the admin status screen: database health, who is
// signed in right now, the recent login history, and a seven-day downtime
// summary by category.
package admin

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/downtime-tracker/downtime-tracker/internal/db/repositories"
)

// statusSummaryDays is the window of the downtime summary shown on the screen.
const statusSummaryDays = 7

// StatusHandlers handles the admin status endpoint
type StatusHandlers struct {
	db        *sqlx.DB
	sessions  *repositories.SessionRepository
	downtimes *repositories.DowntimeRepository
}

// NewStatusHandlers creates a new StatusHandlers instance
func NewStatusHandlers(db *sqlx.DB, sessionTimeout time.Duration) *StatusHandlers {
	return &StatusHandlers{
		db:        db,
		sessions:  repositories.NewSessionRepository(db, sessionTimeout),
		downtimes: repositories.NewDowntimeRepository(db),
	}
}

// StatusHandler returns database health, the live session count, recent
// sessions, and the last week's downtime grouped by category.
// GET /api/v1/admin/status?limit=50
func (h *StatusHandlers) StatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
		if limit < 1 || limit > 200 {
			limit = 50
		}

		// A failed ping degrades the whole screen; the session and summary
		// queries below would fail against the same pool anyway.
		if err := h.db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"database": "unhealthy",
				"error":    "Database is not reachable",
			})
			return
		}

		live, err := h.sessions.CountLive(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count live sessions"})
			return
		}

		recent, err := h.sessions.ListRecent(c.Request.Context(), limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list recent sessions"})
			return
		}

		end := time.Now()
		start := end.AddDate(0, 0, -statusSummaryDays)
		summary, err := h.downtimes.Summarize(c.Request.Context(), "category", start, end)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to summarize downtimes"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"database":         "healthy",
			"live_sessions":    live,
			"session_timeout":  h.sessions.Timeout().String(),
			"recent":           recent,
			"downtime_summary": summary,
		})
	}
}
