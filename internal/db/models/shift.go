package models

import "time"

// Shift represents a working shift. Start and end are clock times stored as
// "HH:MM" strings; a shift spanning midnight has EndTime < StartTime.
type Shift struct {
	ID         int        `db:"id" json:"id"`
	Name       string     `db:"name" json:"name"`
	StartTime  string     `db:"start_time" json:"start_time"`
	EndTime    string     `db:"end_time" json:"end_time"`
	IsActive   bool       `db:"is_active" json:"is_active"`
	CreatedBy  string     `db:"created_by" json:"created_by"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	ModifiedBy *string    `db:"modified_by" json:"modified_by,omitempty"`
	ModifiedAt *time.Time `db:"modified_at" json:"modified_at,omitempty"`
}
