// Package middleware provides Gin HTTP middleware for session validation,
// admin gating, rate limiting, security headers, and request identification.
//
// Middleware ordering matters and is enforced in router.go:
//
//	Recovery → RequestID → Metrics → Logger → Security → RateLimit → SessionGate → RequestAudit → AdminGate → Handler
//
// Security headers run first so they appear on all responses including errors.
// Rate limiting runs before the session gate to block brute-force attacks
// before any DB work. SessionGate populates the user identity; AdminGate reads
// from that context.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/downtime-tracker/downtime-tracker/internal/auth"
	"github.com/downtime-tracker/downtime-tracker/internal/db/models"
	"github.com/downtime-tracker/downtime-tracker/internal/db/repositories"
)

// Context keys set by SessionGate
const (
	// UserKey holds the *models.User for the authenticated request
	UserKey = "user"
	// UsernameKey holds the authenticated username
	UsernameKey = "username"
	// SessionIDKey holds the validated session id
	SessionIDKey = "session_id"
)

// sessionInvalidBody is the single 401 payload for every failure mode of the
// session gate. A displaced session, an expired session, a garbage token, and
// a missing header all look identical to the client, so a holder who was
// forcibly logged out learns nothing beyond "log in again".
var sessionInvalidBody = gin.H{"error": "Session is not valid"}

// SessionGate validates the bearer token's session against the session store
// on every request. Validation refreshes the session's last-seen timestamp,
// restarting the inactivity window.
func SessionGate(sessionRepo *repositories.SessionRepository, userRepo *repositories.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, sessionInvalidBody)
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, sessionInvalidBody)
			return
		}

		claims, err := auth.ValidateJWT(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, sessionInvalidBody)
			return
		}

		// The token only names a session; whether that session still holds the
		// user's liveness slot is decided here, against the store
		ok, err := sessionRepo.Validate(c.Request.Context(), claims.SessionID, claims.Username)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to validate session",
			})
			return
		}
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, sessionInvalidBody)
			return
		}

		user, err := userRepo.GetByUsername(c.Request.Context(), claims.Username)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to load user",
			})
			return
		}
		if user == nil || !user.IsActive {
			c.AbortWithStatusJSON(http.StatusUnauthorized, sessionInvalidBody)
			return
		}

		c.Set(UserKey, user)
		c.Set(UsernameKey, user.Username)
		c.Set(SessionIDKey, claims.SessionID)

		c.Next()
	}
}

// AdminGate rejects requests whose authenticated user is not an
// administrator. Must run after SessionGate.
func AdminGate() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil || !user.IsAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "Administrator access required",
			})
			return
		}
		c.Next()
	}
}

// CurrentUser returns the authenticated user set by SessionGate, or nil.
func CurrentUser(c *gin.Context) *models.User {
	v, exists := c.Get(UserKey)
	if !exists {
		return nil
	}
	user, ok := v.(*models.User)
	if !ok {
		return nil
	}
	return user
}

// CurrentSessionID returns the validated session id set by SessionGate.
func CurrentSessionID(c *gin.Context) string {
	v, exists := c.Get(SessionIDKey)
	if !exists {
		return ""
	}
	id, _ := v.(string)
	return id
}
