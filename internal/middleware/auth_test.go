package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/downtime-tracker/downtime-tracker/internal/auth"
	"github.com/downtime-tracker/downtime-tracker/internal/db/repositories"
)

var userCols = []string{
	"id", "username", "display_name", "email", "is_admin", "is_active",
	"created_at", "updated_at",
}

func activeUserRow(isAdmin bool) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(userCols).
		AddRow("u-1", "jsmith", "John Smith", "jsmith@example.com", isAdmin, true, now, now)
}

func newGateRepos(t *testing.T) (*repositories.SessionRepository, *repositories.UserRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	sqlxDB := sqlx.NewDb(db, "sqlmock")
	return repositories.NewSessionRepository(sqlxDB, 8*time.Hour),
		repositories.NewUserRepository(sqlxDB), mock
}

func newGateRouter(sessions *repositories.SessionRepository, users *repositories.UserRepository, requireAdmin bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	group := r.Group("/", SessionGate(sessions, users))
	if requireAdmin {
		group.Use(AdminGate())
	}
	group.GET("/protected", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"username":   CurrentUser(c).Username,
			"session_id": CurrentSessionID(c),
		})
	})
	return r
}

func bearerToken(t *testing.T, sessionID, username string) string {
	t.Helper()
	token, err := auth.GenerateJWT(sessionID, username, time.Hour)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	return "Bearer " + token
}

// ---------------------------------------------------------------------------
// SessionGate
// ---------------------------------------------------------------------------

func TestSessionGate_ValidSession(t *testing.T) {
	sessions, users, mock := newGateRepos(t)
	mock.ExpectExec("UPDATE sessions SET last_seen_at").
		WithArgs(sqlmock.AnyArg(), "sess-1", "jsmith", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT (.+) FROM users WHERE username").
		WithArgs("jsmith").
		WillReturnRows(activeUserRow(false))

	r := newGateRouter(sessions, users, false)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", bearerToken(t, "sess-1", "jsmith"))
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body = %s", w.Code, w.Body.String())
	}
	body := w.Body.String()
	if !contains(body, "jsmith") || !contains(body, "sess-1") {
		t.Errorf("handler context not populated: body = %s", body)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestSessionGate_MissingHeader(t *testing.T) {
	sessions, users, _ := newGateRepos(t)
	r := newGateRouter(sessions, users, false)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/protected", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
	if !contains(w.Body.String(), "Session is not valid") {
		t.Errorf("body = %s, want uniform session-invalid message", w.Body.String())
	}
}

func TestSessionGate_GarbageToken(t *testing.T) {
	sessions, users, _ := newGateRepos(t)
	r := newGateRouter(sessions, users, false)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
	if !contains(w.Body.String(), "Session is not valid") {
		t.Errorf("body = %s, want uniform session-invalid message", w.Body.String())
	}
}

func TestSessionGate_DisplacedSession(t *testing.T) {
	// Validate matches zero rows when another login took over the slot.
	sessions, users, mock := newGateRepos(t)
	mock.ExpectExec("UPDATE sessions SET last_seen_at").
		WithArgs(sqlmock.AnyArg(), "sess-old", "jsmith", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	r := newGateRouter(sessions, users, false)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", bearerToken(t, "sess-old", "jsmith"))
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
	// Same body as every other failure; the displaced holder learns nothing
	if !contains(w.Body.String(), "Session is not valid") {
		t.Errorf("body = %s, want uniform session-invalid message", w.Body.String())
	}
}

func TestSessionGate_ValidateError(t *testing.T) {
	sessions, users, mock := newGateRepos(t)
	mock.ExpectExec("UPDATE sessions SET last_seen_at").
		WillReturnError(errors.New("db failure"))

	r := newGateRouter(sessions, users, false)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", bearerToken(t, "sess-1", "jsmith"))
	r.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

func TestSessionGate_DisabledUser(t *testing.T) {
	sessions, users, mock := newGateRepos(t)
	now := time.Now()
	mock.ExpectExec("UPDATE sessions SET last_seen_at").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT (.+) FROM users WHERE username").
		WithArgs("jsmith").
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow("u-1", "jsmith", "John Smith", "jsmith@example.com", false, false, now, now))

	r := newGateRouter(sessions, users, false)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", bearerToken(t, "sess-1", "jsmith"))
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401 for deactivated user", w.Code)
	}
}

func TestSessionGate_UnknownUser(t *testing.T) {
	sessions, users, mock := newGateRepos(t)
	mock.ExpectExec("UPDATE sessions SET last_seen_at").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT (.+) FROM users WHERE username").
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows(userCols))

	r := newGateRouter(sessions, users, false)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", bearerToken(t, "sess-1", "ghost"))
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401 for unknown user", w.Code)
	}
}

// ---------------------------------------------------------------------------
// AdminGate
// ---------------------------------------------------------------------------

func TestAdminGate_NonAdminForbidden(t *testing.T) {
	sessions, users, mock := newGateRepos(t)
	mock.ExpectExec("UPDATE sessions SET last_seen_at").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT (.+) FROM users WHERE username").
		WithArgs("jsmith").
		WillReturnRows(activeUserRow(false))

	r := newGateRouter(sessions, users, true)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", bearerToken(t, "sess-1", "jsmith"))
	r.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
	if !contains(w.Body.String(), "Administrator access required") {
		t.Errorf("body = %s, want admin-required message", w.Body.String())
	}
}

func TestAdminGate_AdminAllowed(t *testing.T) {
	sessions, users, mock := newGateRepos(t)
	mock.ExpectExec("UPDATE sessions SET last_seen_at").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT (.+) FROM users WHERE username").
		WithArgs("jsmith").
		WillReturnRows(activeUserRow(true))

	r := newGateRouter(sessions, users, true)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", bearerToken(t, "sess-1", "jsmith"))
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200; body = %s", w.Code, w.Body.String())
	}
}

func TestAdminGate_WithoutSessionGate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/admin", AdminGate(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/admin", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403 when no user in context", w.Code)
	}
}

// ---------------------------------------------------------------------------
// Context helpers
// ---------------------------------------------------------------------------

func TestCurrentUser_Empty(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	if CurrentUser(c) != nil {
		t.Error("CurrentUser() != nil on empty context")
	}
	if CurrentSessionID(c) != "" {
		t.Error("CurrentSessionID() != \"\" on empty context")
	}
}

func TestCurrentUser_WrongType(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Set(UserKey, "not-a-user")
	if CurrentUser(c) != nil {
		t.Error("CurrentUser() != nil when context value has wrong type")
	}
}

func TestOriginFrom(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.1.2.3:5000"
	req.Header.Set("User-Agent", "floor-kiosk/1.0")
	c.Request = req
	c.Set(UsernameKey, "jsmith")

	origin := OriginFrom(c)
	if origin.Username != "jsmith" {
		t.Errorf("Username = %q, want jsmith", origin.Username)
	}
	if origin.IPAddress == "" {
		t.Error("IPAddress is empty")
	}
	if origin.UserAgent != "floor-kiosk/1.0" {
		t.Errorf("UserAgent = %q, want floor-kiosk/1.0", origin.UserAgent)
	}
}

func TestOriginFrom_Anonymous(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	c.Request = req

	origin := OriginFrom(c)
	if origin.Username != "" {
		t.Errorf("Username = %q, want empty for unauthenticated request", origin.Username)
	}
}

func contains(haystack, needle string) bool {
	return strings.Contains(haystack, needle)
}
