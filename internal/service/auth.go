package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/Strob0t/TaskForge/internal/config"
	"github.com/Strob0t/TaskForge/internal/domain"
	"github.com/Strob0t/TaskForge/internal/domain/tenant"
	"github.com/Strob0t/TaskForge/internal/domain/user"
	"github.com/Strob0t/TaskForge/internal/port/database"
)

// ErrInvalidCredentials is returned by Login for an unknown email or a wrong
// password alike.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrUnauthenticated is returned for a missing, unknown, expired or foreign
// bearer token.
var ErrUnauthenticated = errors.New("unauthenticated")

const tokenBytes = 32

// AuthService registers users and issues bearer tokens within the tenant
// bound to the context. A token only authenticates on its own tenant.
type AuthService struct {
	store database.UserStore
	cfg   config.Auth
	now   func() time.Time
}

// NewAuthService creates a new AuthService.
func NewAuthService(store database.UserStore, cfg config.Auth) *AuthService {
	return &AuthService{store: store, cfg: cfg, now: time.Now}
}

// Register validates req and creates a user in the tenant with a
// bcrypt-hashed password.
func (s *AuthService) Register(ctx context.Context, req user.RegisterRequest) (*user.User, error) {
	if _, err := tenant.IDFromContext(ctx); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if _, err := s.store.GetUserByEmail(ctx, req.Email); err == nil {
		return nil, emailTaken()
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &user.User{Name: req.Name, Email: req.Email, PasswordHash: string(hash)}
	if err := s.store.CreateUser(ctx, u); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			return nil, emailTaken()
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

func emailTaken() error {
	var verr domain.ValidationError
	verr.Add("email", "email has already been taken")
	return &verr
}

// Login checks the credentials against the tenant's users and issues a
// bearer token bound to the tenant.
func (s *AuthService) Login(ctx context.Context, req user.LoginRequest) (*user.LoginResponse, error) {
	if _, err := tenant.IDFromContext(ctx); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	u, err := s.store.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	plain, err := s.issueToken(ctx, u)
	if err != nil {
		return nil, err
	}
	return &user.LoginResponse{
		AccessToken: plain,
		TokenType:   "Bearer",
		ExpiresIn:   int(s.cfg.TokenTTL.Seconds()),
		User:        *u,
	}, nil
}

func (s *AuthService) issueToken(ctx context.Context, u *user.User) (string, error) {
	plain, err := generateRandomToken(tokenBytes)
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	tok := &user.AccessToken{
		ID:        uuid.NewString(),
		UserID:    u.ID,
		TokenHash: hashSHA256(plain),
		ExpiresAt: s.now().Add(s.cfg.TokenTTL).UTC(),
	}
	if err := s.store.CreateAccessToken(ctx, tok); err != nil {
		return "", fmt.Errorf("store token: %w", err)
	}
	return plain, nil
}

// Authenticate resolves a plain bearer token to its user. Tokens of other
// tenants are not visible through the scoped store and fail like unknown
// ones.
func (s *AuthService) Authenticate(ctx context.Context, plain string) (*user.User, *user.AccessToken, error) {
	if _, err := tenant.IDFromContext(ctx); err != nil {
		return nil, nil, err
	}
	if plain == "" {
		return nil, nil, ErrUnauthenticated
	}

	tok, err := s.store.GetAccessTokenByHash(ctx, hashSHA256(plain))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil, ErrUnauthenticated
		}
		return nil, nil, fmt.Errorf("lookup token: %w", err)
	}
	// The store filters by tenant already; this guards any other implementation.
	if err := tenant.Authorize(ctx, tok.TenantID); err != nil {
		return nil, nil, ErrUnauthenticated
	}

	now := s.now()
	if tok.Expired(now) {
		_ = s.store.DeleteAccessToken(ctx, tok.ID)
		return nil, nil, ErrUnauthenticated
	}

	u, err := s.store.GetUser(ctx, tok.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil, ErrUnauthenticated
		}
		return nil, nil, fmt.Errorf("lookup token user: %w", err)
	}

	if err := s.store.TouchAccessToken(ctx, tok.ID, now); err != nil {
		slog.WarnContext(ctx, "failed to touch access token", "token_id", tok.ID, "error", err)
	}
	return u, tok, nil
}

// ListUsers returns the users of the tenant bound to ctx.
func (s *AuthService) ListUsers(ctx context.Context) ([]user.User, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// Logout revokes the token with tokenID.
func (s *AuthService) Logout(ctx context.Context, tokenID string) error {
	if err := s.store.DeleteAccessToken(ctx, tokenID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// StartTokenCleanup starts a background goroutine that periodically purges
// expired tokens of all tenants. It stops when ctx is cancelled.
func (s *AuthService) StartTokenCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := s.store.PurgeExpiredTokens(ctx)
				if err != nil {
					slog.Warn("failed to purge expired tokens", "error", err)
				} else if n > 0 {
					slog.Info("purged expired tokens", "count", n)
				}
			}
		}
	}()
}

func hashSHA256(data string) string {
	h := sha256.Sum256([]byte(data))
	return hex.EncodeToString(h[:])
}

func generateRandomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
