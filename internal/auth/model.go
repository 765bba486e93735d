package auth

import (
	"errors"
	"time"
)

type User struct {
	ID           string
	Username     string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Identity is the authenticated caller as seen by protected routes.
type Identity struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// SessionPayload is the signed part of the auth cookie. ExpiresAt is in epoch milliseconds.
type SessionPayload struct {
	SubjectID string `json:"id"`
	Username  string `json:"username"`
	ExpiresAt int64  `json:"exp"`
}

func (p SessionPayload) Identity() Identity {
	return Identity{ID: p.SubjectID, Username: p.Username}
}

// Decision is the outcome of a login rate limit check.
type Decision struct {
	Allowed        bool
	Remaining      int
	ResetInMinutes int
}

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrUserNotFound       = errors.New("user not found")
	ErrMissingSecret      = errors.New("auth secret is not configured")
	ErrMalformedToken     = errors.New("malformed session token")
)

type RateLimitError struct {
	ResetInMinutes int
}

func (e *RateLimitError) Error() string {
	return "too many login attempts"
}
