// downtime.go defines the Downtime model, the central data-entry record of
// the application. Duration is always computed server-side from the two
// timestamps and stored denormalized for listing and summary queries.
package models

import "time"

// Downtime represents a single downtime event on a production line
type Downtime struct {
	ID              int        `db:"id" json:"id"`
	LineID          int        `db:"line_id" json:"line_id"`
	CategoryID      int        `db:"category_id" json:"category_id"`
	ShiftID         *int       `db:"shift_id" json:"shift_id,omitempty"`
	StartTime       time.Time  `db:"start_time" json:"start_time"`
	EndTime         time.Time  `db:"end_time" json:"end_time"`
	DurationMinutes int        `db:"duration_minutes" json:"duration_minutes"`
	ReasonNotes     string     `db:"reason_notes" json:"reason_notes"`
	CrewSize        int        `db:"crew_size" json:"crew_size"`
	EnteredBy       string     `db:"entered_by" json:"entered_by"`
	IsActive        bool       `db:"is_active" json:"is_active"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	ModifiedBy      *string    `db:"modified_by" json:"modified_by,omitempty"`
	ModifiedAt      *time.Time `db:"modified_at" json:"modified_at,omitempty"`

	// Joined fields populated by listing queries
	LineName     string  `db:"line_name" json:"line_name,omitempty"`
	FacilityID   int     `db:"facility_id" json:"facility_id,omitempty"`
	FacilityName string  `db:"facility_name" json:"facility_name,omitempty"`
	CategoryName string  `db:"category_name" json:"category_name,omitempty"`
	ShiftName    *string `db:"shift_name" json:"shift_name,omitempty"`
}

// DowntimeSummaryRow is one group in an aggregated downtime summary
type DowntimeSummaryRow struct {
	Grouping     string  `db:"grouping" json:"grouping"`
	EventCount   int     `db:"event_count" json:"event_count"`
	TotalMinutes int     `db:"total_minutes" json:"total_minutes"`
	AvgMinutes   float64 `db:"avg_minutes" json:"avg_minutes"`
	MinMinutes   int     `db:"min_minutes" json:"min_minutes"`
	MaxMinutes   int     `db:"max_minutes" json:"max_minutes"`
}
