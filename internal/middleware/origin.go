// origin.go extracts the audit origin (actor, client address, user agent)
// from a request so handlers can stamp it onto field-level audit rows.
package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/downtime-tracker/downtime-tracker/internal/audit"
)

// OriginFrom builds the audit origin for the current request. The username
// comes from the session gate when present; login and logout handlers, which
// run outside the gate, fill it themselves.
func OriginFrom(c *gin.Context) audit.Origin {
	username := ""
	if v, exists := c.Get(UsernameKey); exists {
		username, _ = v.(string)
	}
	return audit.Origin{
		Username:  username,
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}
