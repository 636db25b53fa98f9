package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/downtime-tracker/downtime-tracker/internal/db/repositories"
)

var errDB = errors.New("db failure")

func newSweeperRepo(t *testing.T) (*repositories.SessionRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return repositories.NewSessionRepository(sqlx.NewDb(db, "sqlmock"), 8*time.Hour), mock
}

func expectSweep(mock sqlmock.Sqlmock, swept int64) {
	mock.ExpectExec("UPDATE sessions SET is_active = FALSE WHERE is_active = TRUE").
		WillReturnResult(sqlmock.NewResult(0, swept))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM sessions`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
}

func TestNewSessionSweeper_DefaultInterval(t *testing.T) {
	repo, _ := newSweeperRepo(t)
	s := NewSessionSweeper(repo, 0)
	if s.interval != 5*time.Minute {
		t.Errorf("interval = %v, want 5m default", s.interval)
	}
}

func TestSessionSweeper_RunSweep(t *testing.T) {
	repo, mock := newSweeperRepo(t)
	expectSweep(mock, 2)

	s := NewSessionSweeper(repo, time.Minute)
	s.runSweep(context.Background())

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestSessionSweeper_RunSweep_SweepError(t *testing.T) {
	repo, mock := newSweeperRepo(t)
	mock.ExpectExec("UPDATE sessions SET is_active = FALSE").WillReturnError(errDB)

	s := NewSessionSweeper(repo, time.Minute)
	// Must not panic and must not attempt the live count after a failed sweep.
	s.runSweep(context.Background())

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestSessionSweeper_RunSweep_CountError(t *testing.T) {
	repo, mock := newSweeperRepo(t)
	mock.ExpectExec("UPDATE sessions SET is_active = FALSE").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM sessions`).WillReturnError(errDB)

	s := NewSessionSweeper(repo, time.Minute)
	s.runSweep(context.Background())
}

func TestSessionSweeper_StartAndStop(t *testing.T) {
	repo, mock := newSweeperRepo(t)
	// Initial sweep on startup; the interval is long enough that no tick fires.
	expectSweep(mock, 0)

	s := NewSessionSweeper(repo, time.Hour)
	done := make(chan struct{})
	go func() {
		s.Start(context.Background())
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	s.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not exit after Stop")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestSessionSweeper_ContextCancel(t *testing.T) {
	repo, mock := newSweeperRepo(t)
	expectSweep(mock, 0)

	ctx, cancel := context.WithCancel(context.Background())
	s := NewSessionSweeper(repo, time.Hour)
	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not exit after context cancellation")
	}
}
