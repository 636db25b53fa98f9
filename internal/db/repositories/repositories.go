// Package repositories implements the data access layer (repository pattern)
// for the downtime tracker. Each repository type encapsulates all database
// queries for a domain entity. Handlers never issue SQL directly — all
// database access goes through this layer, which makes query logic testable
// in isolation and prevents accidental cross-domain data access.
//
// Repositories are constructed over a Querier, satisfied by both *sqlx.DB and
// *sqlx.Tx. A mutation and the audit rows describing it are executed against
// the same *sqlx.Tx (via WithTx) so they commit or roll back as a unit.
package repositories

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
)

// Querier is the subset of sqlx methods repositories need. Both *sqlx.DB and
// *sqlx.Tx satisfy it.
type Querier interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

var (
	_ Querier = (*sqlx.DB)(nil)
	_ Querier = (*sqlx.Tx)(nil)
)

// isNoRows reports whether err is the driver's empty-result sentinel.
// Repositories translate it to a nil result rather than surfacing an error.
func isNoRows(err error) bool {
	return err == sql.ErrNoRows
}
