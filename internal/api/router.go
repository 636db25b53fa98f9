// Package api wires the HTTP surface of the downtime tracker.
//
// Route layout:
//
//	/health, /ready, /version          - unauthenticated probes
//	/api/v1/auth/login                 - unauthenticated, tighter rate limit
//	/api/v1/...                        - SessionGate (live session required)
//	/api/v1/admin/...                  - SessionGate + AdminGate
//
// NewRouter builds the repositories and handlers, registers the middleware
// chain, and starts the expired-session sweeper. Callers own the returned
// BackgroundServices and must Shutdown() it on exit.
package api

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/downtime-tracker/downtime-tracker/internal/api/admin"
	"github.com/downtime-tracker/downtime-tracker/internal/api/downtimes"
	"github.com/downtime-tracker/downtime-tracker/internal/api/reference"
	"github.com/downtime-tracker/downtime-tracker/internal/api/sessions"
	"github.com/downtime-tracker/downtime-tracker/internal/auth"
	"github.com/downtime-tracker/downtime-tracker/internal/config"
	"github.com/downtime-tracker/downtime-tracker/internal/db/repositories"
	"github.com/downtime-tracker/downtime-tracker/internal/jobs"
	"github.com/downtime-tracker/downtime-tracker/internal/middleware"
	"github.com/downtime-tracker/downtime-tracker/internal/safego"
	"github.com/downtime-tracker/downtime-tracker/internal/session"
)

// Version is the application version, overridable at build time with
// -ldflags "-X github.com/downtime-tracker/downtime-tracker/internal/api.Version=..."
var Version = "0.1.0"

// BackgroundServices holds long-running goroutines started by NewRouter so
// the caller can stop them during graceful shutdown.
type BackgroundServices struct {
	sessionSweeper *jobs.SessionSweeper
	rateLimiters   []*middleware.RateLimiter
}

// Shutdown stops all background services
func (bg *BackgroundServices) Shutdown() {
	slog.Info("stopping background services")

	if bg.sessionSweeper != nil {
		bg.sessionSweeper.Stop()
	}
	for _, limiter := range bg.rateLimiters {
		limiter.Stop()
	}

	slog.Info("background services stopped")
}

// NewRouter creates and configures the HTTP router
func NewRouter(cfg *config.Config, db *sqlx.DB, identity auth.IdentityProvider) (*gin.Engine, *BackgroundServices) {
	bg := &BackgroundServices{}

	// Repositories shared by the middleware gates and the session arbiter.
	// Handlers construct their own repositories from db.
	sessionRepo := repositories.NewSessionRepository(db, cfg.Session.Timeout())
	userRepo := repositories.NewUserRepository(db)
	auditRepo := repositories.NewAuditRepository(db)

	arbiter := session.NewArbiter(db, sessionRepo, userRepo, auditRepo, identity)

	bg.sessionSweeper = jobs.NewSessionSweeper(sessionRepo, cfg.Session.SweepInterval())
	safego.Go(func() {
		bg.sessionSweeper.Start(context.Background())
	})

	router := gin.New()

	// Middleware order: Recovery -> RequestID -> Metrics -> Logger -> CORS ->
	// Security headers -> RateLimit (per group) -> SessionGate -> AdminGate
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(LoggerMiddleware(cfg))
	router.Use(CORSMiddleware(cfg))
	router.Use(middleware.SecurityHeadersMiddleware(middleware.APISecurityHeadersConfig()))

	router.GET("/health", healthCheckHandler(db.DB))
	router.GET("/ready", readinessHandler(db.DB, identity))
	router.GET("/version", versionHandler())

	var apiLimiter, authLimiter *middleware.RateLimiter
	if cfg.Security.RateLimiting.Enabled {
		apiConfig := middleware.DefaultRateLimitConfig()
		if cfg.Security.RateLimiting.RequestsPerMinute > 0 {
			apiConfig.RequestsPerMinute = cfg.Security.RateLimiting.RequestsPerMinute
		}
		if cfg.Security.RateLimiting.Burst > 0 {
			apiConfig.BurstSize = cfg.Security.RateLimiting.Burst
		}
		apiLimiter = middleware.NewRateLimiter(apiConfig)
		authLimiter = middleware.NewRateLimiter(middleware.AuthRateLimitConfig())
		bg.rateLimiters = append(bg.rateLimiters, apiLimiter, authLimiter)
	}

	sessionHandlers := sessions.NewHandlers(arbiter, cfg.Session.Timeout()+4*time.Hour)
	downtimeHandlers := downtimes.NewHandlers(db)
	referenceHandlers := reference.NewHandlers(db)
	facilityHandlers := admin.NewFacilityHandlers(db)
	lineHandlers := admin.NewLineHandlers(db)
	categoryHandlers := admin.NewCategoryHandlers(db)
	shiftHandlers := admin.NewShiftHandlers(db)
	userHandlers := admin.NewUserHandlers(db, cfg.Session.Timeout())
	auditHandlers := admin.NewAuditHandlers(db)
	statusHandlers := admin.NewStatusHandlers(db, cfg.Session.Timeout())

	v1 := router.Group("/api/v1")
	if apiLimiter != nil {
		v1.Use(middleware.RateLimitMiddleware(apiLimiter))
	}

	// Login takes the stricter auth limiter on top of the API limiter to slow
	// credential guessing.
	authGroup := v1.Group("/auth")
	{
		login := authGroup.Group("")
		if authLimiter != nil {
			login.Use(middleware.RateLimitMiddleware(authLimiter))
		}
		login.POST("/login", sessionHandlers.LoginHandler())
	}

	gate := middleware.SessionGate(sessionRepo, userRepo)
	requestAudit := middleware.RequestAudit(auditRepo)

	authGroup.POST("/logout", gate, requestAudit, sessionHandlers.LogoutHandler())
	authGroup.GET("/me", gate, sessionHandlers.MeHandler())

	protected := v1.Group("", gate, requestAudit)
	{
		// Reference data for the entry form dropdowns, active records only
		protected.GET("/facilities", referenceHandlers.ListFacilitiesHandler())
		protected.GET("/lines", referenceHandlers.ListLinesHandler())
		protected.GET("/categories", referenceHandlers.ListCategoriesHandler())
		protected.GET("/shifts", referenceHandlers.ListShiftsHandler())

		dt := protected.Group("/downtimes")
		{
			dt.GET("", downtimeHandlers.ListHandler())
			dt.GET("/recent", downtimeHandlers.RecentHandler())
			dt.GET("/summary", downtimeHandlers.SummaryHandler())
			dt.GET("/top-issues", downtimeHandlers.TopIssuesHandler())
			dt.GET("/:id", downtimeHandlers.GetHandler())
			dt.POST("", downtimeHandlers.CreateHandler())
			dt.PUT("/:id", downtimeHandlers.UpdateHandler())
			// Owner-or-admin rules are enforced in the handlers
			dt.DELETE("/:id", downtimeHandlers.DeactivateHandler())
			dt.POST("/:id/reactivate", downtimeHandlers.ReactivateHandler())
		}
	}

	adminGroup := protected.Group("/admin", middleware.AdminGate())
	{
		adminGroup.GET("/facilities", facilityHandlers.ListFacilitiesHandler())
		adminGroup.GET("/facilities/:id", facilityHandlers.GetFacilityHandler())
		adminGroup.POST("/facilities", facilityHandlers.CreateFacilityHandler())
		adminGroup.PUT("/facilities/:id", facilityHandlers.UpdateFacilityHandler())
		adminGroup.DELETE("/facilities/:id", facilityHandlers.DeactivateFacilityHandler())
		adminGroup.POST("/facilities/:id/reactivate", facilityHandlers.ReactivateFacilityHandler())

		adminGroup.GET("/lines", lineHandlers.ListLinesHandler())
		adminGroup.GET("/lines/:id", lineHandlers.GetLineHandler())
		adminGroup.POST("/lines", lineHandlers.CreateLineHandler())
		adminGroup.PUT("/lines/:id", lineHandlers.UpdateLineHandler())
		adminGroup.DELETE("/lines/:id", lineHandlers.DeactivateLineHandler())
		adminGroup.POST("/lines/:id/reactivate", lineHandlers.ReactivateLineHandler())

		adminGroup.GET("/categories", categoryHandlers.ListCategoriesHandler())
		adminGroup.GET("/categories/:id", categoryHandlers.GetCategoryHandler())
		adminGroup.POST("/categories", categoryHandlers.CreateCategoryHandler())
		adminGroup.PUT("/categories/:id", categoryHandlers.UpdateCategoryHandler())
		adminGroup.DELETE("/categories/:id", categoryHandlers.DeactivateCategoryHandler())
		adminGroup.POST("/categories/:id/reactivate", categoryHandlers.ReactivateCategoryHandler())

		adminGroup.GET("/shifts", shiftHandlers.ListShiftsHandler())
		adminGroup.GET("/shifts/:id", shiftHandlers.GetShiftHandler())
		adminGroup.POST("/shifts", shiftHandlers.CreateShiftHandler())
		adminGroup.PUT("/shifts/:id", shiftHandlers.UpdateShiftHandler())
		adminGroup.DELETE("/shifts/:id", shiftHandlers.DeactivateShiftHandler())
		adminGroup.POST("/shifts/:id/reactivate", shiftHandlers.ReactivateShiftHandler())

		adminGroup.GET("/users", userHandlers.ListUsersHandler())
		adminGroup.DELETE("/users/:username", userHandlers.DisableUserHandler())
		adminGroup.POST("/users/:username/enable", userHandlers.EnableUserHandler())

		adminGroup.GET("/audit", auditHandlers.ListAuditHandler())
		adminGroup.GET("/audit/:entity/:id", auditHandlers.EntityHistoryHandler())

		adminGroup.GET("/status", statusHandlers.StatusHandler())
	}

	return router, bg
}

// @Summary      Health check
// @Description  Returns the health status of the service, including database connectivity.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "status: healthy, time: RFC3339 timestamp"
// @Failure      503  {object}  map[string]interface{}  "status: unhealthy, error: database connection failed"
// @Router       /health [get]
// healthCheckHandler returns the health status of the service
func healthCheckHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "database connection failed",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// @Summary      Readiness check
// @Description  Returns whether the service is ready to accept traffic. Checks database and identity provider connectivity.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "ready: true, checks, time: RFC3339 timestamp"
// @Failure      503  {object}  map[string]interface{}  "ready: false, checks, error"
// @Router       /ready [get]
// readinessHandler returns the readiness status of the service.
// Unlike the liveness probe (/health), this also probes the identity provider
// so a readiness gate fails while logins would error.
func readinessHandler(db *sql.DB, identity auth.IdentityProvider) gin.HandlerFunc {
	return func(c *gin.Context) {
		checks := gin.H{}

		if err := db.Ping(); err != nil {
			checks["database"] = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"ready":  false,
				"checks": checks,
				"error":  "database not ready",
			})
			return
		}
		checks["database"] = "healthy"

		if err := identity.Probe(c.Request.Context()); err != nil {
			checks["identity"] = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"ready":  false,
				"checks": checks,
				"error":  "identity provider not ready",
			})
			return
		}
		checks["identity"] = "healthy"

		c.JSON(http.StatusOK, gin.H{
			"ready":  true,
			"checks": checks,
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// @Summary      API version
// @Description  Returns the application and API version.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "version, api_version"
// @Router       /version [get]
// versionHandler returns the API version
func versionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":     Version,
			"api_version": "v1",
		})
	}
}

// LoggerMiddleware provides structured logging
func LoggerMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)

		if cfg.Logging.Format == "json" {
			logJSON(c, latency, path, query)
		} else {
			logText(c, latency, path, query)
		}
	}
}

// logJSON logs a request as a JSON-structured slog record.
func logJSON(c *gin.Context, latency time.Duration, path, query string) {
	requestID, _ := c.Get(middleware.RequestIDKey)
	slog.LogAttrs(
		c.Request.Context(),
		slog.LevelInfo,
		"http request",
		slog.String("method", c.Request.Method),
		slog.String("path", path),
		slog.String("query", query),
		slog.Int("status", c.Writer.Status()),
		slog.Int("size", c.Writer.Size()),
		slog.Duration("latency", latency),
		slog.String("ip", c.ClientIP()),
		slog.String("request_id", fmt.Sprintf("%v", requestID)),
		slog.String("user_agent", c.Request.UserAgent()),
	)
}

// logText logs a request as a human-readable slog text record.
func logText(c *gin.Context, latency time.Duration, path, query string) {
	// reuse the same structured output; slog will emit text format when the global
	// handler is a TextHandler (configured in telemetry.SetupLogger).
	logJSON(c, latency, path, query)
}

// CORSMiddleware handles CORS for the browser frontend
func CORSMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		allowed := false
		for _, allowedOrigin := range cfg.Security.CORS.AllowedOrigins {
			if allowedOrigin == "*" || allowedOrigin == origin {
				allowed = true
				break
			}
		}

		if allowed {
			if origin == "" {
				c.Header("Access-Control-Allow-Origin", "*")
			} else {
				c.Header("Access-Control-Allow-Origin", origin)
			}
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Requested-With")
			c.Header("Access-Control-Max-Age", "3600")
		}

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
