package bridge

import "time"

// sendLimiter enforces a minimum interval between outbound publishes.
// A rejected send is dropped, not queued; the window applies uniformly
// to chat and presence traffic.
type sendLimiter struct {
	min  time.Duration
	last time.Time
	now  func() time.Time
}

func newSendLimiter(min time.Duration) *sendLimiter {
	return &sendLimiter{min: min, now: time.Now}
}

// allow reports whether a send may go out now and, if so, records it.
func (l *sendLimiter) allow() bool {
	if l.min <= 0 {
		return true
	}
	t := l.now()
	if !l.last.IsZero() && t.Sub(l.last) < l.min {
		return false
	}
	l.last = t
	return true
}
