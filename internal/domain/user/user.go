// Package user defines the user domain model used by the authentication
// collaborator. Users belong to exactly one tenant.
package user

import (
	"net/mail"
	"strings"
	"time"

	"github.com/Strob0t/TaskForge/internal/domain"
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 8

// User represents a registered user within a tenant.
type User struct {
	ID           int64     `json:"id"`
	TenantID     int64     `json:"tenant_id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // never serialized
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// RegisterRequest is the input for registering a new user in the resolved tenant.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"` //nolint:gosec // request field, not a hardcoded secret
}

// Validate checks that the RegisterRequest has all required fields.
func (r *RegisterRequest) Validate() error {
	var verr domain.ValidationError
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))

	if r.Name == "" {
		verr.Add("name", "name is required")
	} else if len(r.Name) > 255 {
		verr.Add("name", "name must not be longer than 255 characters")
	}
	if r.Email == "" {
		verr.Add("email", "email is required")
	} else if _, err := mail.ParseAddress(r.Email); err != nil {
		verr.Add("email", "invalid email format")
	}
	if r.Password == "" {
		verr.Add("password", "password is required")
	} else if len(r.Password) < MinPasswordLength {
		verr.Add("password", "password must be at least 8 characters")
	}
	return verr.OrNil()
}

// LoginRequest is the input for user authentication.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"` //nolint:gosec // request field, not a hardcoded secret
}

// Validate checks that the LoginRequest has all required fields.
func (r *LoginRequest) Validate() error {
	var verr domain.ValidationError
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	if r.Email == "" {
		verr.Add("email", "email is required")
	}
	if r.Password == "" {
		verr.Add("password", "password is required")
	}
	return verr.OrNil()
}

// LoginResponse is returned after successful authentication.
type LoginResponse struct {
	AccessToken string `json:"access_token"` //nolint:gosec // response field, not a hardcoded secret
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"` // seconds until the token expires
	User        User   `json:"user"`
}

// AccessToken is a stored bearer token. Only the SHA-256 hash of the
// plain token is persisted. A token is valid only on its tenant's domains.
type AccessToken struct {
	ID         string    `json:"id"`
	UserID     int64     `json:"user_id"`
	TenantID   int64     `json:"tenant_id"`
	TokenHash  string    `json:"-"`
	ExpiresAt  time.Time `json:"expires_at"`
	LastUsedAt time.Time `json:"last_used_at,omitzero"`
	CreatedAt  time.Time `json:"created_at"`
}

// Expired reports whether the token is past its expiry at now.
func (t *AccessToken) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && !now.Before(t.ExpiresAt)
}
