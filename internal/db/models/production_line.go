package models

import "time"

// ProductionLine represents a line within a facility. A line cannot be
// reactivated while its parent facility is inactive.
type ProductionLine struct {
	ID         int        `db:"id" json:"id"`
	FacilityID int        `db:"facility_id" json:"facility_id"`
	Name       string     `db:"name" json:"name"`
	IsActive   bool       `db:"is_active" json:"is_active"`
	CreatedBy  string     `db:"created_by" json:"created_by"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	ModifiedBy *string    `db:"modified_by" json:"modified_by,omitempty"`
	ModifiedAt *time.Time `db:"modified_at" json:"modified_at,omitempty"`

	// FacilityName is populated by joined listing queries
	FacilityName string `db:"facility_name" json:"facility_name,omitempty"`
}
