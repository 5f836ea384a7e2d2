package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Strob0t/TaskForge/internal/domain/user"
	"github.com/Strob0t/TaskForge/internal/service"
)

// Authenticator resolves a plain bearer token within the tenant bound to ctx.
type Authenticator interface {
	Authenticate(ctx context.Context, plain string) (*user.User, *user.AccessToken, error)
}

type authUserCtxKey struct{}
type accessTokenCtxKey struct{}

// RequireAuth returns middleware that rejects requests without a valid
// bearer token of the request's tenant with 401. It must run after
// ResolveTenant. WebSocket upgrades may pass the token as ?token= since
// browsers cannot set headers on them.
func RequireAuth(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			plain, ok := bearerToken(r)
			if !ok {
				writeJSONError(w, http.StatusUnauthorized, "unauthenticated")
				return
			}

			u, tok, err := auth.Authenticate(r.Context(), plain)
			if err != nil {
				if !errors.Is(err, service.ErrUnauthenticated) {
					slog.ErrorContext(r.Context(), "authentication failed", "error", err)
				}
				writeJSONError(w, http.StatusUnauthorized, "unauthenticated")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u, tok)))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, found := strings.Cut(h, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") {
			return "", false
		}
		token = strings.TrimSpace(token)
		return token, token != ""
	}
	if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		token := r.URL.Query().Get("token")
		return token, token != ""
	}
	return "", false
}

// UserFromContext returns the authenticated user from the request context.
func UserFromContext(ctx context.Context) *user.User {
	u, _ := ctx.Value(authUserCtxKey{}).(*user.User)
	return u
}

// AccessTokenFromContext returns the token the request authenticated with.
func AccessTokenFromContext(ctx context.Context) *user.AccessToken {
	tok, _ := ctx.Value(accessTokenCtxKey{}).(*user.AccessToken)
	return tok
}

// WithUser returns ctx carrying u and tok as the authenticated identity.
func WithUser(ctx context.Context, u *user.User, tok *user.AccessToken) context.Context {
	ctx = context.WithValue(ctx, authUserCtxKey{}, u)
	return context.WithValue(ctx, accessTokenCtxKey{}, tok)
}
