// Package safego launches background goroutines behind a panic guard. The
// session sweeper and the async audit-trail writes run for the life of the
// process; a panic in one of them must surface in the log instead of silently
// ending the goroutine.
package safego

import "log/slog"

// Go runs fn in a new goroutine, recovering and logging any panic.
func Go(fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("recovered panic in background goroutine", "panic", r)
			}
		}()
		fn()
	}()
}
