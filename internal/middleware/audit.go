// audit.go provides Gin middleware that records authenticated write requests
// to the audit trail. This is the coarse request-level trail; handlers write
// the field-level rows themselves, inside the mutation's transaction.
package middleware

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/downtime-tracker/downtime-tracker/internal/db/models"
	"github.com/downtime-tracker/downtime-tracker/internal/safego"
)

// RequestAuditStore receives the request-trail rows. Satisfied by
// repositories.AuditRepository.
type RequestAuditStore interface {
	Create(ctx context.Context, change *models.AuditChange) error
}

// RequestAudit records every successful authenticated write request (method
// and route, status, actor, client address). Reads, preflight requests, and
// failed requests are not recorded. The write happens off the request
// goroutine; a lost trail row must never fail the request it describes.
func RequestAudit(store RequestAuditStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		method := c.Request.Method
		if method == "GET" || method == "HEAD" || method == "OPTIONS" {
			return
		}
		status := c.Writer.Status()
		if status >= 400 {
			return
		}

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		action := method + " " + route
		statusStr := strconv.Itoa(status)

		change := &models.AuditChange{
			Entity:    resourceFromRoute(route),
			EntityID:  entityIDFromParams(c),
			Action:    action,
			Field:     "request",
			NewValue:  &statusStr,
			Username:  c.GetString(UsernameKey),
			IPAddress: c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
			CreatedAt: time.Now(),
		}

		safego.Go(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := store.Create(ctx, change); err != nil {
				slog.Error("Failed to record request audit row",
					"action", action, "error", err)
			}
		})
	}
}

// resourceFromRoute maps a route template to the entity name used by the
// field-level audit rows, so both trails filter under the same entity.
func resourceFromRoute(route string) string {
	switch {
	case strings.Contains(route, "/downtimes"):
		return "downtime"
	case strings.Contains(route, "/facilities"):
		return "facility"
	case strings.Contains(route, "/lines"):
		return "production_line"
	case strings.Contains(route, "/categories"):
		return "downtime_category"
	case strings.Contains(route, "/shifts"):
		return "shift"
	case strings.Contains(route, "/users"):
		return "user"
	case strings.Contains(route, "/auth"):
		return "session"
	default:
		return "request"
	}
}

// entityIDFromParams pulls the row identifier out of the route when one is
// present. User routes key on username instead of a numeric id.
func entityIDFromParams(c *gin.Context) string {
	if id := c.Param("id"); id != "" {
		return id
	}
	return c.Param("username")
}
