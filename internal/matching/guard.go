// internal/matching/guard.go
package matching

import "time"

// TimeoutGuard is a soft pre-flight deadline. It never cancels work already started.
type TimeoutGuard struct {
	timeout time.Duration
	now     func() time.Time
}

func NewTimeoutGuard(timeout time.Duration) *TimeoutGuard {
	return &TimeoutGuard{timeout: timeout, now: time.Now}
}

// Deadline is start plus the processing timeout.
func (g *TimeoutGuard) Deadline(start time.Time) time.Time {
	return start.Add(g.timeout)
}

// Expired reports whether more than the processing timeout has elapsed since start.
func (g *TimeoutGuard) Expired(start time.Time) bool {
	return g.timeout > 0 && g.now().After(g.Deadline(start))
}
