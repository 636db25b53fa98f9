// Package audit builds field-level change records for domain mutations. Audit
// history is intentionally separate from application logs — logs are ephemeral
// debug output for on-call engineers, while audit rows are immutable records
// shown to supervisors on the history screen and may be subject to retention
// requirements measured in years.
//
// A ChangeSet is assembled in memory while a handler diffs the old and new
// state of a row, then flushed to the audit repository inside the same
// database transaction as the mutation itself, so a rolled-back edit leaves no
// trace and a committed one is always accounted for.
package audit

import (
	"fmt"
	"time"

	"github.com/downtime-tracker/downtime-tracker/internal/db/models"
)

// Origin identifies who made a change and from where. Handlers fill it from
// the authenticated session and the request.
type Origin struct {
	Username  string
	IPAddress string
	UserAgent string
}

// ChangeSet accumulates field-level changes for a single mutation of a single
// entity row.
type ChangeSet struct {
	entity   string
	entityID string
	action   string
	origin   Origin
	changes  []*models.AuditChange
}

// NewChangeSet starts a change set for one mutation.
func NewChangeSet(entity string, entityID interface{}, action string, origin Origin) *ChangeSet {
	return &ChangeSet{
		entity:   entity,
		entityID: fmt.Sprintf("%v", entityID),
		action:   action,
		origin:   origin,
	}
}

// Record adds a field change unconditionally. Used for create and
// deactivate/reactivate actions where there is no old value to compare.
func (cs *ChangeSet) Record(field string, oldValue, newValue *string) {
	cs.changes = append(cs.changes, &models.AuditChange{
		Entity:    cs.entity,
		EntityID:  cs.entityID,
		Action:    cs.action,
		Field:     field,
		OldValue:  oldValue,
		NewValue:  newValue,
		Username:  cs.origin.Username,
		IPAddress: cs.origin.IPAddress,
		UserAgent: cs.origin.UserAgent,
	})
}

// Compare records a change only when the rendered old and new values differ.
func (cs *ChangeSet) Compare(field string, oldValue, newValue interface{}) {
	oldStr := render(oldValue)
	newStr := render(newValue)
	if equal(oldStr, newStr) {
		return
	}
	cs.Record(field, oldStr, newStr)
}

// Empty reports whether no field changes have been recorded.
func (cs *ChangeSet) Empty() bool {
	return len(cs.changes) == 0
}

// Changes returns the accumulated rows for insertion.
func (cs *ChangeSet) Changes() []*models.AuditChange {
	return cs.changes
}

func equal(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// render converts a field value to its audit string form. Nil pointers render
// as nil (stored as SQL NULL), timestamps in RFC 3339.
func render(v interface{}) *string {
	switch val := v.(type) {
	case nil:
		return nil
	case *string:
		return val
	case string:
		return &val
	case *int:
		if val == nil {
			return nil
		}
		s := fmt.Sprintf("%d", *val)
		return &s
	case int:
		s := fmt.Sprintf("%d", val)
		return &s
	case time.Time:
		s := val.Format(time.RFC3339)
		return &s
	case *time.Time:
		if val == nil {
			return nil
		}
		s := val.Format(time.RFC3339)
		return &s
	case bool:
		s := fmt.Sprintf("%t", val)
		return &s
	default:
		s := fmt.Sprintf("%v", val)
		return &s
	}
}
