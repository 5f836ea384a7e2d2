package http

import (
	"log/slog"
	"net/http"

	"github.com/Strob0t/TaskForge/internal/domain/user"
	"github.com/Strob0t/TaskForge/internal/middleware"
)

// Register handles POST /api/v1/auth/register
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[user.RegisterRequest](w, r, h.BodyLimit)
	if !ok {
		return
	}
	u, err := h.Auth.Register(r.Context(), req)
	if err != nil {
		writeDomainError(w, r, err, "not found")
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

// Login handles POST /api/v1/auth/login
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[user.LoginRequest](w, r, h.BodyLimit)
	if !ok {
		return
	}
	resp, err := h.Auth.Login(r.Context(), req)
	if err != nil {
		slog.DebugContext(r.Context(), "login failed", "email", req.Email, "error", err)
		writeDomainError(w, r, err, "not found")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Logout handles POST /api/v1/auth/logout
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	tok := middleware.AccessTokenFromContext(r.Context())
	if tok == nil {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}
	if err := h.Auth.Logout(r.Context(), tok.ID); err != nil {
		writeInternalError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /api/v1/auth/me
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	u := middleware.UserFromContext(r.Context())
	if u == nil {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}
	writeJSON(w, http.StatusOK, u)
}
