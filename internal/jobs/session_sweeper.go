// session_sweeper.go implements the SessionSweeper background job, which
// periodically deactivates sessions whose last-seen timestamp has fallen
// outside the inactivity window. Session validation already treats stale rows
// as invalid, so the sweep is housekeeping: it keeps the sessions table
// honest for the admin status screen and frees the per-user liveness slot
// without waiting for the next login to displace it.
package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/downtime-tracker/downtime-tracker/internal/db/repositories"
	"github.com/downtime-tracker/downtime-tracker/internal/telemetry"
)

// SessionSweeper periodically expires inactive sessions.
type SessionSweeper struct {
	sessions *repositories.SessionRepository
	interval time.Duration
	stopChan chan struct{}
}

// NewSessionSweeper creates a new SessionSweeper. interval controls how often
// the sweep runs; values <= 0 fall back to 5 minutes.
func NewSessionSweeper(sessions *repositories.SessionRepository, interval time.Duration) *SessionSweeper {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &SessionSweeper{
		sessions: sessions,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// Start begins the background sweep loop. It runs an initial sweep
// immediately, then repeats on the configured interval. The loop exits when
// ctx is cancelled or Stop() is called.
func (s *SessionSweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	slog.Info("session sweeper started", "interval", s.interval)

	s.runSweep(ctx)

	for {
		select {
		case <-ticker.C:
			s.runSweep(ctx)
		case <-s.stopChan:
			slog.Info("session sweeper stopped")
			return
		case <-ctx.Done():
			slog.Info("session sweeper context cancelled")
			return
		}
	}
}

// Stop signals the background loop to exit.
func (s *SessionSweeper) Stop() {
	close(s.stopChan)
}

// runSweep expires stale sessions and refreshes the session metrics.
func (s *SessionSweeper) runSweep(ctx context.Context) {
	swept, err := s.sessions.SweepExpired(ctx)
	if err != nil {
		slog.Error("session sweep failed", "error", err)
		return
	}
	if swept > 0 {
		telemetry.SessionsSweptTotal.Add(float64(swept))
		slog.Info("swept expired sessions", "count", swept)
	}

	live, err := s.sessions.CountLive(ctx)
	if err != nil {
		slog.Warn("failed to count live sessions", "error", err)
		return
	}
	telemetry.LiveSessions.Set(float64(live))
}
