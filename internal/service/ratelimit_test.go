package service

import (
	"testing"
	"time"
)

func newTestLimiter(max int, window time.Duration) (*LoginLimiter, *time.Time) {
	l := NewLoginLimiter(max, window)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	return l, &now
}

func TestLoginLimiterAllowsUpToMax(t *testing.T) {
	l, _ := newTestLimiter(5, 15*time.Minute)

	for i := 1; i <= 5; i++ {
		if !l.Allow("user@example.com") {
			t.Fatalf("attempt %d should be allowed", i)
		}
	}
	if l.Allow("user@example.com") {
		t.Error("attempt 6 should be blocked")
	}
}

func TestLoginLimiterPerEmail(t *testing.T) {
	l, _ := newTestLimiter(5, 15*time.Minute)

	for i := 0; i < 6; i++ {
		l.Allow("blocked@example.com")
	}
	if !l.Allow("other@example.com") {
		t.Error("unrelated email should not be affected")
	}
}

func TestLoginLimiterCaseInsensitive(t *testing.T) {
	l, _ := newTestLimiter(2, 15*time.Minute)

	l.Allow("User@Example.com")
	l.Allow("user@example.com")
	if l.Allow("USER@EXAMPLE.COM") {
		t.Error("email casing must not reset the counter")
	}
}

func TestLoginLimiterSlidingWindow(t *testing.T) {
	l, now := newTestLimiter(5, 15*time.Minute)

	for i := 0; i < 6; i++ {
		l.Allow("user@example.com")
	}

	// Blocked attempts keep sliding the window forward: 10 minutes later
	// (within the window of the last attempt) the account is still locked.
	*now = now.Add(10 * time.Minute)
	if l.Allow("user@example.com") {
		t.Error("expected account to remain locked within the window")
	}

	// After a full quiet window the counter resets.
	*now = now.Add(16 * time.Minute)
	if !l.Allow("user@example.com") {
		t.Error("expected counter reset after the window elapsed")
	}
}

func TestLoginLimiterReset(t *testing.T) {
	l, _ := newTestLimiter(2, 15*time.Minute)

	l.Allow("user@example.com")
	l.Allow("user@example.com")
	l.Reset("user@example.com")

	if !l.Allow("user@example.com") {
		t.Error("expected attempts cleared after Reset")
	}
}

func TestLoginLimiterPrune(t *testing.T) {
	l, now := newTestLimiter(5, 15*time.Minute)

	l.Allow("old@example.com")
	*now = now.Add(20 * time.Minute)
	l.Allow("fresh@example.com")

	if removed := l.Prune(); removed != 1 {
		t.Errorf("Prune removed %d entries, want 1", removed)
	}
}
