// audit_change.go defines the AuditChange model: one append-only row per
// changed field per mutation, capturing actor, origin, and old/new values.
package models

import "time"

// Audit actions recorded for domain entities.
const (
	AuditActionCreate     = "create"
	AuditActionUpdate     = "update"
	AuditActionDeactivate = "deactivate"
	AuditActionReactivate = "reactivate"
)

// Audit actions recorded for session lifecycle events.
const (
	AuditActionLogin    = "login"
	AuditActionLogout   = "logout"
	AuditActionTakeover = "forced_takeover"
)

// AuditChange represents a single field-level change. Rows are never updated
// or deleted after insert.
type AuditChange struct {
	ID        string    `db:"id" json:"id"`
	Entity    string    `db:"entity" json:"entity"`
	EntityID  string    `db:"entity_id" json:"entity_id"`
	Action    string    `db:"action" json:"action"`
	Field     string    `db:"field" json:"field"`
	OldValue  *string   `db:"old_value" json:"old_value"`
	NewValue  *string   `db:"new_value" json:"new_value"`
	Username  string    `db:"username" json:"username"`
	IPAddress string    `db:"ip_address" json:"ip_address"`
	UserAgent string    `db:"user_agent" json:"user_agent"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
