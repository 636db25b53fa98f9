// Package admin implements the administrator-only endpoints: reference data
// management (facilities, lines, categories, shifts), user administration,
// the audit history screen, and the session status screen.
//
// Every mutation here follows the same discipline: the row change and its
// field-level audit records commit in one transaction, so the history screen
// never disagrees with the data.
package admin

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/downtime-tracker/downtime-tracker/internal/audit"
	"github.com/downtime-tracker/downtime-tracker/internal/db/repositories"
)

// pathID parses the :id path parameter. Writes the 400 response itself on
// failure and reports ok=false.
func pathID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid id"})
		return 0, false
	}
	return id, true
}

// pagination parses page/per_page query parameters with the usual bounds.
func pagination(c *gin.Context) (page, perPage int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ = strconv.Atoi(c.DefaultQuery("per_page", "20"))
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}
	return page, perPage
}

// includeInactive reports whether the listing should include deactivated
// rows. Admin screens default to showing everything.
func includeInactive(c *gin.Context) bool {
	return c.DefaultQuery("include_inactive", "true") == "true"
}

// inTx runs fn inside a transaction and flushes the change set fn returns
// through the same transaction before committing. fn builds the change set
// itself so creates can audit the ID assigned during the insert.
func inTx(ctx context.Context, db *sqlx.DB, audits *repositories.AuditRepository, fn func(tx *sqlx.Tx) (*audit.ChangeSet, error)) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	cs, err := fn(tx)
	if err != nil {
		return err
	}
	if err := audits.WithTx(tx).CreateBatch(ctx, cs.Changes()); err != nil {
		return err
	}
	return tx.Commit()
}
