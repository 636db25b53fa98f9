package models

import (
	"testing"
	"time"
)

func TestSessionExpiredAt_WindowBoundary(t *testing.T) {
	lastSeen := time.Date(2026, 3, 10, 6, 0, 0, 0, time.UTC)
	session := &Session{LastSeenAt: lastSeen}
	timeout := 8 * time.Hour

	tests := []struct {
		name    string
		elapsed time.Duration
		expired bool
	}{
		{"fresh", 0, false},
		{"one minute before the window closes", 7*time.Hour + 59*time.Minute, false},
		{"exactly at the window", 8 * time.Hour, false},
		{"one minute past the window", 8*time.Hour + time.Minute, true},
		{"long stale", 9 * time.Hour, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := session.ExpiredAt(lastSeen.Add(tt.elapsed), timeout)
			if got != tt.expired {
				t.Errorf("ExpiredAt(+%s) = %v, want %v", tt.elapsed, got, tt.expired)
			}
		})
	}
}

func TestSessionSummarize_OmitsSessionID(t *testing.T) {
	now := time.Now()
	session := &Session{
		ID:        "22222222-2222-2222-2222-222222222222",
		Username:  "jsmith",
		IPAddress: "10.0.0.5",
		UserAgent: "Firefox",
		CreatedAt: now,
	}

	summary := session.Summarize()
	if summary.Username != "jsmith" || summary.IPAddress != "10.0.0.5" {
		t.Errorf("unexpected summary: %+v", summary)
	}
	if !summary.LoginAt.Equal(now) {
		t.Errorf("LoginAt = %v, want %v", summary.LoginAt, now)
	}
}
