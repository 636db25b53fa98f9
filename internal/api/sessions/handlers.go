// Package sessions implements the login, logout, and current-user endpoints.
// All session arbitration (single-session enforcement, conflict detection,
// forced takeover) happens in the session.Arbiter; handlers translate
// arbitration outcomes to HTTP statuses and mint transport tokens.
package sessions

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/downtime-tracker/downtime-tracker/internal/auth"
	"github.com/downtime-tracker/downtime-tracker/internal/middleware"
	"github.com/downtime-tracker/downtime-tracker/internal/session"
)

// Handlers handles session lifecycle endpoints
type Handlers struct {
	arbiter *session.Arbiter
	// tokenTTL outlives the server-side inactivity window; the sessions
	// table, not the token, decides when access ends
	tokenTTL time.Duration
}

// NewHandlers creates a new session Handlers instance
func NewHandlers(arbiter *session.Arbiter, tokenTTL time.Duration) *Handlers {
	return &Handlers{arbiter: arbiter, tokenTTL: tokenTTL}
}

// LoginRequest represents a login attempt. Force retries a conflicted login
// by displacing the existing session.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	Force    bool   `json:"force"`
}

// rejectedBody is the single 401 payload for bad credentials and disabled
// accounts; the client cannot distinguish the two.
var rejectedBody = gin.H{"error": "Invalid username or password"}

// @Summary      Log in
// @Description  Verify credentials and create a session. If the user already holds a live session, responds 409 with a summary of it; retry with force=true to displace it.
// @Tags         Sessions
// @Accept       json
// @Produce      json
// @Param        body  body  LoginRequest  true  "Login request"
// @Success      200  {object}  map[string]interface{}  "token, user"
// @Failure      400  {object}  map[string]interface{}  "Invalid request"
// @Failure      401  {object}  map[string]interface{}  "Invalid username or password"
// @Failure      409  {object}  map[string]interface{}  "Another session is active; existing: session summary"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/auth/login [post]
// LoginHandler authenticates a user and creates a session
// POST /api/v1/auth/login
func (h *Handlers) LoginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid request: " + err.Error(),
			})
			return
		}

		origin := middleware.OriginFrom(c)
		origin.Username = req.Username

		var result *session.LoginResult
		var err error
		if req.Force {
			result, err = h.arbiter.ForceLogin(c.Request.Context(), req.Username, req.Password, origin)
		} else {
			result, err = h.arbiter.AttemptLogin(c.Request.Context(), req.Username, req.Password, origin)
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Login failed",
			})
			return
		}

		switch result.Outcome {
		case session.OutcomeRejected:
			c.JSON(http.StatusUnauthorized, rejectedBody)

		case session.OutcomeConflict:
			c.JSON(http.StatusConflict, gin.H{
				"error":    "Another session is active for this user",
				"existing": result.Existing,
			})

		case session.OutcomeAuthenticated:
			token, err := auth.GenerateJWT(result.Session.ID, result.User.Username, h.tokenTTL)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{
					"error": "Failed to issue token",
				})
				return
			}
			c.JSON(http.StatusOK, gin.H{
				"token": token,
				"user":  result.User,
			})

		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Login failed",
			})
		}
	}
}

// @Summary      Log out
// @Description  Invalidate the caller's own session. Idempotent.
// @Tags         Sessions
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "message"
// @Failure      401  {object}  map[string]interface{}  "Session is not valid"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/auth/logout [post]
// LogoutHandler invalidates the current session
// POST /api/v1/auth/logout
func (h *Handlers) LogoutHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := middleware.CurrentSessionID(c)
		user := middleware.CurrentUser(c)
		if sessionID == "" || user == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Session is not valid"})
			return
		}

		if err := h.arbiter.Logout(c.Request.Context(), sessionID, user.Username, middleware.OriginFrom(c)); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Logout failed",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message": "Logged out",
		})
	}
}

// @Summary      Current user
// @Description  Return the authenticated user's profile.
// @Tags         Sessions
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "user: models.User"
// @Failure      401  {object}  map[string]interface{}  "Session is not valid"
// @Router       /api/v1/auth/me [get]
// MeHandler returns the authenticated user
// GET /api/v1/auth/me
func (h *Handlers) MeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := middleware.CurrentUser(c)
		if user == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Session is not valid"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"user": user,
		})
	}
}
