// requestid.go tags every request with an identifier so a supervisor's "the
// form failed around 2pm" report can be matched to the exact structured log
// lines and audit rows it produced.
package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// RequestIDHeader is the HTTP header used to propagate the request identifier.
	RequestIDHeader = "X-Request-ID"

	// RequestIDKey is the gin.Context key under which the request ID is stored
	// for handlers and later middleware (the request logger reads it).
	RequestIDKey = "request_id"
)

// RequestIDMiddleware ensures every request carries a unique identifier. An
// inbound X-Request-ID (set by a reverse proxy in front of the server) is
// reused unchanged; otherwise a UUID v4 is generated. The ID is stored in the
// context under RequestIDKey and echoed back in the response header so the
// browser client can surface it in its error toast.
//
// Register this before the logging middleware so every log line carries the ID.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}

		c.Set(RequestIDKey, id)
		c.Header(RequestIDHeader, id)

		c.Next()
	}
}
