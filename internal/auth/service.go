package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// CredentialStore is the persistence the login flow depends on.
type CredentialStore interface {
	GetByUsername(ctx context.Context, username string) (User, error)
	UpdatePasswordHash(ctx context.Context, username, passwordHash string) error
	UpsertUser(ctx context.Context, username, passwordHash string) error
}

// Hashed once so an unknown username costs the same digest as a wrong password.
var decoyHash = HashPassword("decoy-password")

type Service struct {
	users   CredentialStore
	limiter *LoginRateLimiter
}

func NewService(users CredentialStore, limiter *LoginRateLimiter) *Service {
	if limiter == nil {
		limiter = NewLoginRateLimiter(DefaultLoginMaxAttempts, DefaultLoginWindow)
	}
	return &Service{users: users, limiter: limiter}
}

func (s *Service) Limiter() *LoginRateLimiter {
	return s.limiter
}

// Login admits the attempt through the rate limiter, then checks the credentials.
// A successful login clears the limiter record for clientID.
func (s *Service) Login(ctx context.Context, clientID, username, password string) (Identity, error) {
	decision := s.limiter.Check(clientID)
	if !decision.Allowed {
		return Identity{}, &RateLimitError{ResetInMinutes: decision.ResetInMinutes}
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			VerifyPassword(password, decoyHash)
			return Identity{}, ErrInvalidCredentials
		}
		return Identity{}, err
	}

	if !VerifyPassword(password, user.PasswordHash) {
		return Identity{}, ErrInvalidCredentials
	}

	s.limiter.Reset(clientID)

	return Identity{ID: user.ID, Username: user.Username}, nil
}

// ChangePassword verifies currentPassword under the same rate limit as Login, keyed by
// clientID, then stores the new hash.
func (s *Service) ChangePassword(ctx context.Context, clientID, username, currentPassword, newPassword string) error {
	decision := s.limiter.Check(clientID)
	if !decision.Allowed {
		return &RateLimitError{ResetInMinutes: decision.ResetInMinutes}
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			VerifyPassword(currentPassword, decoyHash)
			return ErrInvalidCredentials
		}
		return err
	}
	if !VerifyPassword(currentPassword, user.PasswordHash) {
		return ErrInvalidCredentials
	}

	if err := s.users.UpdatePasswordHash(ctx, user.Username, HashPassword(newPassword)); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrUnauthorized
		}
		return fmt.Errorf("store new password: %w", err)
	}

	s.limiter.Reset(clientID)
	return nil
}

func (s *Service) BootstrapFromEnv(ctx context.Context, adminUsername, adminPassword string) error {
	adminUsername = strings.TrimSpace(adminUsername)

	if adminUsername == "" && adminPassword == "" {
		return nil
	}
	if adminUsername == "" || adminPassword == "" {
		return fmt.Errorf("ADMIN_USERNAME and ADMIN_PASSWORD are required together")
	}

	return s.users.UpsertUser(ctx, adminUsername, HashPassword(adminPassword))
}
