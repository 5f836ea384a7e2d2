package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Strob0t/TaskForge/internal/domain"
	"github.com/Strob0t/TaskForge/internal/domain/tenant"
)

// TenantResolver maps a request host to its tenant.
type TenantResolver interface {
	Resolve(ctx context.Context, host string) (*tenant.Tenant, error)
}

// ResolveTenant binds the tenant owning the request's Host to the request
// context. Hosts without a verified domain get 404 before any handler runs.
// Forwarded host headers are ignored.
func ResolveTenant(resolver TenantResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t, err := resolver.Resolve(r.Context(), r.Host)
			if err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					slog.DebugContext(r.Context(), "unresolved host", "host", r.Host)
					writeJSONError(w, http.StatusNotFound, "domain not configured")
					return
				}
				slog.ErrorContext(r.Context(), "tenant resolution failed", "host", r.Host, "error", err)
				writeJSONError(w, http.StatusServiceUnavailable, "service unavailable")
				return
			}
			ctx := tenant.NewContext(r.Context(), *t)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// writeJSONError writes {"error": msg} with status.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
