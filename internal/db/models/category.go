package models

import "time"

// Category represents a downtime reason category. Categories nest one level
// via ParentID; a sub-category cannot be reactivated while its parent is
// inactive.
type Category struct {
	ID         int        `db:"id" json:"id"`
	Name       string     `db:"name" json:"name"`
	Code       string     `db:"code" json:"code"`
	ParentID   *int       `db:"parent_id" json:"parent_id,omitempty"`
	IsActive   bool       `db:"is_active" json:"is_active"`
	CreatedBy  string     `db:"created_by" json:"created_by"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	ModifiedBy *string    `db:"modified_by" json:"modified_by,omitempty"`
	ModifiedAt *time.Time `db:"modified_at" json:"modified_at,omitempty"`
}
