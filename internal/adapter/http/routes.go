package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/Strob0t/TaskForge/internal/middleware"
)

// RouteDeps holds the collaborators the route tree needs besides handlers.
type RouteDeps struct {
	Resolver    middleware.TenantResolver
	Limiter     *middleware.RateLimiter // nil disables rate limiting
	Idempotency jetstream.KeyValue      // nil disables Idempotency-Key replay
	Events      http.HandlerFunc        // websocket endpoint; nil disables it
	Timeout     time.Duration           // per-request deadline; not applied to Events
}

// UseBaseMiddleware installs the chain that wraps every request, outermost
// first, followed by extra. The client address stays RemoteAddr: forwarding
// headers are never trusted, so they cannot pick a rate-limit bucket.
func UseBaseMiddleware(r chi.Router, corsOrigin string, extra ...func(http.Handler) http.Handler) {
	r.Use(middleware.RequestID, Logger, chimw.Recoverer, SecurityHeaders, CORS(corsOrigin))
	if len(extra) > 0 {
		r.Use(extra...)
	}
}

// MountRoutes registers all routes on the given chi router.
//
// Everything under /api/v1 runs inside the tenant of the request host. The
// tenant is resolved before authentication, so an unknown host is rejected
// without touching credentials.
func MountRoutes(r chi.Router, h *Handlers, deps RouteDeps) {
	r.Get("/health", h.HealthCheck)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.ResolveTenant(deps.Resolver))
		if deps.Limiter != nil {
			r.Use(deps.Limiter.Handler)
		}

		if deps.Events != nil {
			r.With(middleware.RequireAuth(h.Auth)).Get("/events", deps.Events)
		}

		r.Group(func(r chi.Router) {
			if deps.Timeout > 0 {
				r.Use(chimw.Timeout(deps.Timeout))
			}

			r.Post("/auth/register", h.Register)
			r.Post("/auth/login", h.Login)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAuth(h.Auth))

				r.Post("/auth/logout", h.Logout)
				r.Get("/auth/me", h.Me)

				r.Group(func(r chi.Router) {
					r.Use(middleware.Idempotency(deps.Idempotency))

					r.Get("/tasks", h.ListTasks)
					r.Post("/tasks", h.CreateTask)
					r.Get("/tasks/{id}", h.GetTask)
					r.Put("/tasks/{id}", h.UpdateTask)
					r.Patch("/tasks/{id}", h.UpdateTask)
					r.Delete("/tasks/{id}", h.DeleteTask)
				})
			})
		})
	})
}
