// Package models defines the database row types for the downtime tracker.
// session.go defines the Session model: one row per login, flipped inactive on
// logout, forced takeover, or expiry — never deleted, so the login history
// stays queryable for audit.
package models

import "time"

// Session represents a login session. At most one row per username has
// IsActive=true at any instant (enforced by a partial unique index).
type Session struct {
	ID         string    `db:"id" json:"id"`
	Username   string    `db:"username" json:"username"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	IsActive   bool      `db:"is_active" json:"is_active"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	LastSeenAt time.Time `db:"last_seen_at" json:"last_seen_at"`
}

// ExpiredAt reports whether the session's inactivity window has elapsed at
// the given instant. Expired sessions are treated identically to invalidated
// ones by every caller.
func (s *Session) ExpiredAt(now time.Time, timeout time.Duration) bool {
	return now.Sub(s.LastSeenAt) > timeout
}

// Summary is the subset of session fields safe to show to a second login
// attempt during conflict arbitration. It deliberately omits the session id.
type SessionSummary struct {
	Username  string    `json:"username"`
	IPAddress string    `json:"ip_address"`
	UserAgent string    `json:"user_agent"`
	LoginAt   time.Time `json:"login_at"`
}

// Summarize returns the conflict-safe view of the session
func (s *Session) Summarize() SessionSummary {
	return SessionSummary{
		Username:  s.Username,
		IPAddress: s.IPAddress,
		UserAgent: s.UserAgent,
		LoginAt:   s.CreatedAt,
	}
}
