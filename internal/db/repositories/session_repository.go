// session_repository.go implements SessionRepository, the persistent session
// store. It owns every write to the sessions table: creation at login,
// last-seen refresh on validated requests, and liveness clearing on logout,
// forced takeover, or expiry sweep. Rows are never deleted — a cleared session
// stays queryable as login history.
package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/downtime-tracker/downtime-tracker/internal/db/models"
	"github.com/google/uuid"
)

// SessionRepository handles session database operations
type SessionRepository struct {
	db Querier
	// timeout is the inactivity window after which a session counts as expired
	timeout time.Duration
	// now is swappable in tests
	now func() time.Time
}

// NewSessionRepository creates a new SessionRepository with the configured
// inactivity timeout.
func NewSessionRepository(db Querier, timeout time.Duration) *SessionRepository {
	return &SessionRepository{db: db, timeout: timeout, now: time.Now}
}

// WithTx returns a copy of the repository bound to the given transaction
func (r *SessionRepository) WithTx(tx Querier) *SessionRepository {
	return &SessionRepository{db: tx, timeout: r.timeout, now: r.now}
}

// Create writes a new live session record and returns it. It does not touch
// prior sessions for the same user — the arbiter invalidates the old session
// explicitly before calling Create when replacing, which keeps the
// one-live-session invariant an arbiter decision rather than a silent side
// effect of a write.
func (r *SessionRepository) Create(ctx context.Context, username, ipAddress, userAgent string) (*models.Session, error) {
	now := r.now()
	session := &models.Session{
		ID:         uuid.New().String(),
		Username:   username,
		IPAddress:  ipAddress,
		UserAgent:  userAgent,
		IsActive:   true,
		CreatedAt:  now,
		LastSeenAt: now,
	}

	query := `
		INSERT INTO sessions (id, username, ip_address, user_agent, is_active, created_at, last_seen_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.ExecContext(ctx, query,
		session.ID,
		session.Username,
		session.IPAddress,
		session.UserAgent,
		session.IsActive,
		session.CreatedAt,
		session.LastSeenAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return session, nil
}

// FindLive returns the current live, unexpired session for a user, or nil if
// none exists. A live row whose inactivity window has elapsed is reported as
// nil; the sweep will clear its flag later.
func (r *SessionRepository) FindLive(ctx context.Context, username string) (*models.Session, error) {
	session, err := r.FindLiveRow(ctx, username)
	if err != nil || session == nil {
		return nil, err
	}
	if session.ExpiredAt(r.now(), r.timeout) {
		return nil, nil
	}
	return session, nil
}

// FindLiveRow returns the row currently holding the user's liveness slot,
// including one whose inactivity window has elapsed but that the sweep has not
// cleared yet. The arbiter must displace such a row before inserting a new
// live session or the partial unique index rejects the insert.
func (r *SessionRepository) FindLiveRow(ctx context.Context, username string) (*models.Session, error) {
	query := `
		SELECT id, username, ip_address, user_agent, is_active, created_at, last_seen_at
		FROM sessions
		WHERE username = $1 AND is_active = TRUE
	`

	session := &models.Session{}
	err := r.db.GetContext(ctx, session, query, username)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query live session row: %w", err)
	}
	return session, nil
}

// Timeout returns the configured inactivity window.
func (r *SessionRepository) Timeout() time.Duration {
	return r.timeout
}

// Validate reports whether the session identified by sessionID is the live,
// unexpired session belonging to username. On success it refreshes the
// session's last-seen timestamp as a side effect, restarting the inactivity
// window.
//
// The single UPDATE is both the check and the refresh: zero rows affected
// means the session is missing, inactive, owned by someone else, or expired —
// callers cannot and must not distinguish which.
func (r *SessionRepository) Validate(ctx context.Context, sessionID, username string) (bool, error) {
	now := r.now()
	cutoff := now.Add(-r.timeout)

	query := `
		UPDATE sessions
		SET last_seen_at = $1
		WHERE id = $2 AND username = $3 AND is_active = TRUE AND last_seen_at >= $4
	`

	result, err := r.db.ExecContext(ctx, query, now, sessionID, username, cutoff)
	if err != nil {
		return false, fmt.Errorf("failed to validate session: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read validation result: %w", err)
	}

	return affected == 1, nil
}

// Invalidate clears the liveness flag on a session. Idempotent: invalidating
// an already-inactive or unknown session is not an error.
func (r *SessionRepository) Invalidate(ctx context.Context, sessionID string) error {
	query := `UPDATE sessions SET is_active = FALSE WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, sessionID); err != nil {
		return fmt.Errorf("failed to invalidate session: %w", err)
	}
	return nil
}

// SweepExpired clears the liveness flag on all live sessions whose last-seen
// timestamp is older than the timeout window. Returns the number of sessions
// swept.
func (r *SessionRepository) SweepExpired(ctx context.Context) (int64, error) {
	cutoff := r.now().Add(-r.timeout)

	query := `UPDATE sessions SET is_active = FALSE WHERE is_active = TRUE AND last_seen_at < $1`
	result, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep expired sessions: %w", err)
	}

	swept, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read sweep result: %w", err)
	}
	return swept, nil
}

// CountLive returns the number of live sessions within the timeout window
func (r *SessionRepository) CountLive(ctx context.Context) (int, error) {
	cutoff := r.now().Add(-r.timeout)

	var total int
	query := `SELECT COUNT(*) FROM sessions WHERE is_active = TRUE AND last_seen_at >= $1`
	if err := r.db.GetContext(ctx, &total, query, cutoff); err != nil {
		return 0, fmt.Errorf("failed to count live sessions: %w", err)
	}
	return total, nil
}

// ListRecent returns recent sessions (live and historical) for the admin
// status screen, newest first.
func (r *SessionRepository) ListRecent(ctx context.Context, limit int) ([]*models.Session, error) {
	query := `
		SELECT id, username, ip_address, user_agent, is_active, created_at, last_seen_at
		FROM sessions
		ORDER BY created_at DESC
		LIMIT $1
	`

	sessions := make([]*models.Session, 0)
	if err := r.db.SelectContext(ctx, &sessions, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}
