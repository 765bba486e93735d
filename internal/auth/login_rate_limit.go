package auth

import (
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	DefaultLoginMaxAttempts = 5
	DefaultLoginWindow      = 15 * time.Minute
	DefaultClientIPHeader   = "CF-Connecting-IP"

	unknownClient = "unknown"
)

type attemptRecord struct {
	count       int
	windowStart time.Time
}

// LoginRateLimiter counts login attempts per client identifier inside a fixed-length window
// that starts at the first attempt. State is process-local.
//
// Stale records are swept lazily on every Check and Reset while holding the same lock as
// the increment, so a sweep can never race a check.
type LoginRateLimiter struct {
	mu          sync.Mutex
	maxAttempts int
	window      time.Duration
	records     map[string]*attemptRecord
	nowFunc     func() time.Time
}

func NewLoginRateLimiter(maxAttempts int, window time.Duration) *LoginRateLimiter {
	if maxAttempts <= 0 {
		maxAttempts = DefaultLoginMaxAttempts
	}
	if window <= 0 {
		window = DefaultLoginWindow
	}

	return &LoginRateLimiter{
		maxAttempts: maxAttempts,
		window:      window,
		records:     make(map[string]*attemptRecord),
		nowFunc:     time.Now,
	}
}

func (l *LoginRateLimiter) Check(identifier string) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFunc()
	l.sweepLocked(now)

	record, ok := l.records[identifier]
	if !ok || l.expired(record, now) {
		l.records[identifier] = &attemptRecord{count: 1, windowStart: now}
		return Decision{Allowed: true, Remaining: l.maxAttempts - 1}
	}

	record.count++
	if record.count > l.maxAttempts {
		return Decision{
			Allowed:        false,
			ResetInMinutes: minutesUntil(record.windowStart.Add(l.window), now),
		}
	}

	return Decision{Allowed: true, Remaining: l.maxAttempts - record.count}
}

// Reset forgets the identifier. Missing identifiers are a no-op.
func (l *LoginRateLimiter) Reset(identifier string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweepLocked(l.nowFunc())
	delete(l.records, identifier)
}

// Len reports how many identifiers are currently tracked.
func (l *LoginRateLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

func (l *LoginRateLimiter) expired(record *attemptRecord, now time.Time) bool {
	return now.Sub(record.windowStart) > l.window
}

func (l *LoginRateLimiter) sweepLocked(now time.Time) {
	for key, record := range l.records {
		if l.expired(record, now) {
			delete(l.records, key)
		}
	}
}

func minutesUntil(deadline, now time.Time) int {
	remaining := deadline.Sub(now)
	minutes := int(remaining / time.Minute)
	if remaining%time.Minute > 0 {
		minutes++
	}
	if minutes < 1 {
		minutes = 1
	}
	return minutes
}

// ClientIdentifier picks the rate limit key for a request: the trusted proxy header, then
// the first X-Forwarded-For hop, then "unknown". Every caller without either header shares
// the "unknown" bucket.
func ClientIdentifier(r *http.Request, trustedHeader string) string {
	if trustedHeader != "" {
		if ip := strings.TrimSpace(r.Header.Get(trustedHeader)); ip != "" {
			return ip
		}
	}

	xForwardedFor := strings.TrimSpace(r.Header.Get("X-Forwarded-For"))
	if xForwardedFor != "" {
		first, _, _ := strings.Cut(xForwardedFor, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	return unknownClient
}
