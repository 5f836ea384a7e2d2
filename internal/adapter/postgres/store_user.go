package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Strob0t/TaskForge/internal/domain/user"
)

// --- Users ---

var userTable = Table[user.User]{
	Name:     "users",
	Columns:  []string{"id", "tenant_id", "name", "email", "password_hash", "created_at", "updated_at"},
	Writable: []string{"name", "email", "password_hash"},
	OrderBy:  `"created_at" ASC, "id" ASC`,
	Touch:    "updated_at",
	Scan:     scanUser,
}

func scanUser(row scannable) (user.User, error) {
	var u user.User
	err := row.Scan(&u.ID, &u.TenantID, &u.Name, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// CreateUser inserts u into the context tenant and fills in the generated
// fields. A duplicate email within the tenant yields domain.ErrAlreadyExists.
func (s *Store) CreateUser(ctx context.Context, u *user.User) error {
	created, err := s.users.Insert(ctx, Values{
		"name":          u.Name,
		"email":         u.Email,
		"password_hash": u.PasswordHash,
	})
	if err != nil {
		return err
	}
	*u = created
	return nil
}

func (s *Store) GetUser(ctx context.Context, id int64) (*user.User, error) {
	u, err := s.users.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*user.User, error) {
	u, err := s.users.FindBy(ctx, "email", email)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]user.User, error) {
	return s.users.All(ctx)
}

// --- Access tokens ---

var tokenTable = Table[user.AccessToken]{
	Name:     "access_tokens",
	Columns:  []string{"id", "tenant_id", "user_id", "token_hash", "expires_at", "last_used_at", "created_at"},
	Writable: []string{"id", "user_id", "token_hash", "expires_at", "last_used_at"},
	OrderBy:  `"created_at" DESC`,
	Scan:     scanAccessToken,
}

func scanAccessToken(row scannable) (user.AccessToken, error) {
	var t user.AccessToken
	var lastUsed *time.Time
	err := row.Scan(&t.ID, &t.TenantID, &t.UserID, &t.TokenHash, &t.ExpiresAt, &lastUsed, &t.CreatedAt)
	if lastUsed != nil {
		t.LastUsedAt = *lastUsed
	}
	return t, err
}

// CreateAccessToken stores tok for the context tenant.
func (s *Store) CreateAccessToken(ctx context.Context, tok *user.AccessToken) error {
	created, err := s.toks.Insert(ctx, Values{
		"id":         tok.ID,
		"user_id":    tok.UserID,
		"token_hash": tok.TokenHash,
		"expires_at": tok.ExpiresAt,
	})
	if err != nil {
		return err
	}
	*tok = created
	return nil
}

// GetAccessTokenByHash finds a token of the context tenant. Tokens issued
// on another tenant's domain are not found.
func (s *Store) GetAccessTokenByHash(ctx context.Context, hash string) (*user.AccessToken, error) {
	t, err := s.toks.FindBy(ctx, "token_hash", hash)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Store) TouchAccessToken(ctx context.Context, id string, at time.Time) error {
	_, err := s.toks.Update(ctx, id, Values{"last_used_at": nullTime(at)})
	return err
}

func (s *Store) DeleteAccessToken(ctx context.Context, id string) error {
	return s.toks.Delete(ctx, id)
}

// PurgeExpiredTokens removes expired tokens of every tenant. It runs
// outside any tenant scope.
func (s *Store) PurgeExpiredTokens(ctx context.Context) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM access_tokens WHERE expires_at < now()`)
	if err != nil {
		return 0, fmt.Errorf("purge expired tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}
