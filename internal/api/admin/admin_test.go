package admin

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/downtime-tracker/downtime-tracker/internal/db/models"
	"github.com/downtime-tracker/downtime-tracker/internal/middleware"
)

// adminUser is the acting administrator in all admin handler tests.
var adminUser = &models.User{ID: "u-9", Username: "boss", IsAdmin: true, IsActive: true}

// stubAdmin plants the context keys the gates would set.
func stubAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.UserKey, adminUser)
		c.Set(middleware.UsernameKey, adminUser.Username)
		c.Next()
	}
}

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

func doJSON(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	router.ServeHTTP(w, req)
	return w
}

var (
	userCols    = []string{"id", "username", "display_name", "email", "is_admin", "is_active", "created_at", "updated_at"}
	sessionCols = []string{"id", "username", "ip_address", "user_agent", "is_active", "created_at", "last_seen_at"}
)

func userRow(username string, active bool) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(userCols).
		AddRow("u-1", username, "Jane Smith", username+"@example.com", false, active, now, now)
}
