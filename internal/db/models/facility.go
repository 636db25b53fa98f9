package models

import "time"

// Facility represents a manufacturing site. Soft-deleted via IsActive;
// deactivation is refused while active production lines reference it.
type Facility struct {
	ID         int        `db:"id" json:"id"`
	Name       string     `db:"name" json:"name"`
	Code       string     `db:"code" json:"code"`
	IsActive   bool       `db:"is_active" json:"is_active"`
	CreatedBy  string     `db:"created_by" json:"created_by"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	ModifiedBy *string    `db:"modified_by" json:"modified_by,omitempty"`
	ModifiedAt *time.Time `db:"modified_at" json:"modified_at,omitempty"`
}
