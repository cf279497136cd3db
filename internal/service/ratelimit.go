package service

import (
	"strings"
	"sync"
	"time"
)

// LoginLimiter throttles login attempts per email address. Every attempt
// counts, successful or not, and the window slides from the most recent
// attempt: the counter resets only after a full quiet window.
type LoginLimiter struct {
	mu       sync.Mutex
	attempts map[string]*loginAttempts
	max      int
	window   time.Duration
	now      func() time.Time
}

type loginAttempts struct {
	count int
	last  time.Time
}

// NewLoginLimiter creates a limiter allowing max attempts per window.
func NewLoginLimiter(max int, window time.Duration) *LoginLimiter {
	return &LoginLimiter{
		attempts: make(map[string]*loginAttempts),
		max:      max,
		window:   window,
		now:      time.Now,
	}
}

// Allow records a login attempt for the email and reports whether it may
// proceed. The attempt that exceeds the limit is itself counted, extending
// the lockout.
func (l *LoginLimiter) Allow(email string) bool {
	key := strings.ToLower(email)
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	a, ok := l.attempts[key]
	if !ok || now.Sub(a.last) > l.window {
		l.attempts[key] = &loginAttempts{count: 1, last: now}
		return true
	}

	a.count++
	a.last = now
	return a.count <= l.max
}

// Reset clears the attempt counter for an email, used after a successful
// password reset.
func (l *LoginLimiter) Reset(email string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.attempts, strings.ToLower(email))
}

// Prune drops entries whose window has fully elapsed, bounding memory use.
// Called periodically by the scheduler.
func (l *LoginLimiter) Prune() int {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, a := range l.attempts {
		if now.Sub(a.last) > l.window {
			delete(l.attempts, key)
			removed++
		}
	}
	return removed
}
