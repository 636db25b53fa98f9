// Package session implements login arbitration: the decision procedure that
// keeps each user on at most one live session. All paths that create or
// destroy sessions run through the Arbiter so the one-live-session rule has a
// single owner; the partial unique index on the sessions table backstops it at
// the store.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/downtime-tracker/downtime-tracker/internal/audit"
	"github.com/downtime-tracker/downtime-tracker/internal/auth"
	"github.com/downtime-tracker/downtime-tracker/internal/db/models"
	"github.com/downtime-tracker/downtime-tracker/internal/db/repositories"
	"github.com/downtime-tracker/downtime-tracker/internal/telemetry"
)

// Outcome classifies a login attempt.
type Outcome string

const (
	// OutcomeAuthenticated means a new live session was created
	OutcomeAuthenticated Outcome = "authenticated"
	// OutcomeConflict means another live session holds the user's slot; the
	// caller may retry with force
	OutcomeConflict Outcome = "conflict"
	// OutcomeRejected means the credentials failed or the account is disabled
	OutcomeRejected Outcome = "rejected"
)

// LoginResult is the arbiter's answer to a login attempt.
type LoginResult struct {
	Outcome Outcome
	Session *models.Session
	User    *models.User
	// Existing describes the conflicting session on OutcomeConflict. It never
	// carries the existing session's id.
	Existing *models.SessionSummary
}

// Arbiter owns session creation and destruction.
type Arbiter struct {
	db       *sqlx.DB
	sessions *repositories.SessionRepository
	users    *repositories.UserRepository
	audits   *repositories.AuditRepository
	identity auth.IdentityProvider
}

// NewArbiter creates a session arbiter.
func NewArbiter(
	db *sqlx.DB,
	sessions *repositories.SessionRepository,
	users *repositories.UserRepository,
	audits *repositories.AuditRepository,
	identity auth.IdentityProvider,
) *Arbiter {
	return &Arbiter{
		db:       db,
		sessions: sessions,
		users:    users,
		audits:   audits,
		identity: identity,
	}
}

// AttemptLogin verifies credentials and creates a session unless another live
// session already holds the user's slot. Credential failures and disabled
// accounts both come back as OutcomeRejected; the caller cannot distinguish
// them, and neither can the client.
func (a *Arbiter) AttemptLogin(ctx context.Context, username, password string, origin audit.Origin) (*LoginResult, error) {
	user, result, err := a.verify(ctx, username, password)
	if err != nil || result != nil {
		return result, err
	}

	existing, err := a.sessions.FindLiveRow(ctx, user.Username)
	if err != nil {
		return nil, err
	}
	if existing != nil && !a.expired(existing) {
		summary := existing.Summarize()
		slog.Info("login conflict",
			"username", user.Username,
			"existing_ip", existing.IPAddress,
			"attempt_ip", origin.IPAddress)
		telemetry.LoginAttemptsTotal.WithLabelValues(string(OutcomeConflict)).Inc()
		return &LoginResult{Outcome: OutcomeConflict, User: user, Existing: &summary}, nil
	}

	// An expired row that the sweep has not cleared still holds the liveness
	// slot; displace it inside the same transaction as the insert.
	session, err := a.createSession(ctx, user.Username, origin, existing, models.AuditActionLogin)
	if err != nil {
		return nil, err
	}

	slog.Info("login", "username", user.Username, "ip", origin.IPAddress)
	telemetry.LoginAttemptsTotal.WithLabelValues(string(OutcomeAuthenticated)).Inc()
	return &LoginResult{Outcome: OutcomeAuthenticated, Session: session, User: user}, nil
}

// ForceLogin verifies credentials and creates a session, displacing whatever
// live session the user currently holds. The displaced holder finds out on
// its next request, which fails exactly like any other invalid session.
func (a *Arbiter) ForceLogin(ctx context.Context, username, password string, origin audit.Origin) (*LoginResult, error) {
	user, result, err := a.verify(ctx, username, password)
	if err != nil || result != nil {
		return result, err
	}

	existing, err := a.sessions.FindLiveRow(ctx, user.Username)
	if err != nil {
		return nil, err
	}

	action := models.AuditActionLogin
	if existing != nil && !a.expired(existing) {
		action = models.AuditActionTakeover
	}

	session, err := a.createSession(ctx, user.Username, origin, existing, action)
	if err != nil {
		return nil, err
	}

	if action == models.AuditActionTakeover {
		slog.Info("forced takeover",
			"username", user.Username,
			"displaced_ip", existing.IPAddress,
			"new_ip", origin.IPAddress)
		telemetry.LoginAttemptsTotal.WithLabelValues("takeover").Inc()
	} else {
		slog.Info("login", "username", user.Username, "ip", origin.IPAddress)
		telemetry.LoginAttemptsTotal.WithLabelValues(string(OutcomeAuthenticated)).Inc()
	}

	return &LoginResult{Outcome: OutcomeAuthenticated, Session: session, User: user}, nil
}

// Logout invalidates the caller's own session. Idempotent.
func (a *Arbiter) Logout(ctx context.Context, sessionID, username string, origin audit.Origin) error {
	tx, err := a.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := a.sessions.WithTx(tx).Invalidate(ctx, sessionID); err != nil {
		return err
	}

	cs := audit.NewChangeSet("session", sessionID, models.AuditActionLogout, origin)
	cs.Record("session_id", &sessionID, nil)
	if err := a.audits.WithTx(tx).CreateBatch(ctx, cs.Changes()); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit logout: %w", err)
	}

	slog.Info("logout", "username", username)
	return nil
}

// verify runs credential verification and account provisioning. It returns a
// non-nil result when the attempt ends here (rejection), a user when
// arbitration should continue.
func (a *Arbiter) verify(ctx context.Context, username, password string) (*models.User, *LoginResult, error) {
	identity, err := a.identity.Authenticate(ctx, username, password)
	if err != nil {
		if errors.Is(err, auth.ErrBadCredentials) {
			telemetry.LoginAttemptsTotal.WithLabelValues(string(OutcomeRejected)).Inc()
			return nil, &LoginResult{Outcome: OutcomeRejected}, nil
		}
		return nil, nil, fmt.Errorf("identity provider error: %w", err)
	}

	user, err := a.users.Upsert(ctx, identity.Username, identity.DisplayName, identity.Email, identity.IsAdmin)
	if err != nil {
		return nil, nil, err
	}
	if !user.IsActive {
		slog.Warn("login rejected for disabled account", "username", user.Username)
		telemetry.LoginAttemptsTotal.WithLabelValues(string(OutcomeRejected)).Inc()
		return nil, &LoginResult{Outcome: OutcomeRejected}, nil
	}

	return user, nil, nil
}

// createSession invalidates the displaced row (if any) and inserts the new
// session, with the audit trail, in one transaction.
func (a *Arbiter) createSession(ctx context.Context, username string, origin audit.Origin, displaced *models.Session, action string) (*models.Session, error) {
	tx, err := a.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	sessions := a.sessions.WithTx(tx)

	if displaced != nil {
		if err := sessions.Invalidate(ctx, displaced.ID); err != nil {
			return nil, err
		}
	}

	session, err := sessions.Create(ctx, username, origin.IPAddress, origin.UserAgent)
	if err != nil {
		return nil, err
	}

	cs := audit.NewChangeSet("session", session.ID, action, origin)
	if action == models.AuditActionTakeover && displaced != nil {
		// Record both origins so the history shows who displaced whom
		cs.Record("session_id", &displaced.ID, &session.ID)
		cs.Record("ip_address", &displaced.IPAddress, &origin.IPAddress)
		cs.Record("user_agent", &displaced.UserAgent, &origin.UserAgent)
	} else {
		cs.Record("session_id", nil, &session.ID)
	}
	if err := a.audits.WithTx(tx).CreateBatch(ctx, cs.Changes()); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit session: %w", err)
	}
	return session, nil
}

func (a *Arbiter) expired(s *models.Session) bool {
	return s.ExpiredAt(time.Now(), a.sessions.Timeout())
}
