package bridge

import (
	"testing"
	"time"
)

func TestSendLimiterWindow(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	l := newSendLimiter(time.Second)
	l.now = clock.now

	if !l.allow() {
		t.Fatalf("first send must pass")
	}
	clock.advance(200 * time.Millisecond)
	if l.allow() {
		t.Fatalf("send inside the window must be dropped")
	}
	clock.advance(900 * time.Millisecond)
	if !l.allow() {
		t.Fatalf("send after the window must pass")
	}

	// A dropped send does not move the window.
	clock.advance(500 * time.Millisecond)
	if l.allow() {
		t.Fatalf("send inside the new window must be dropped")
	}
	clock.advance(500 * time.Millisecond)
	if !l.allow() {
		t.Fatalf("window measured from last successful send")
	}
}

func TestSendLimiterDisabled(t *testing.T) {
	l := newSendLimiter(0)
	for i := 0; i < 3; i++ {
		if !l.allow() {
			t.Fatalf("disabled limiter must always allow")
		}
	}
}
