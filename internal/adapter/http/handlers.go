package http

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/Strob0t/TaskForge/internal/domain"
	"github.com/Strob0t/TaskForge/internal/domain/task"
	"github.com/Strob0t/TaskForge/internal/service"
)

const taskNotFound = "task not found"

// Handlers holds the HTTP handlers of the tenant-scoped API.
type Handlers struct {
	Tasks     *service.TaskService
	Auth      *service.AuthService
	Health    Pinger
	BodyLimit int64
}

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// pageMeta is the "meta" member of a paginated response.
type pageMeta struct {
	CurrentPage int `json:"current_page"`
	PerPage     int `json:"per_page"`
	Total       int `json:"total"`
	LastPage    int `json:"last_page"`
}

// pageLinks is the "links" member of a paginated response. Prev and Next
// are null on the first and last page.
type pageLinks struct {
	First string  `json:"first"`
	Last  string  `json:"last"`
	Prev  *string `json:"prev"`
	Next  *string `json:"next"`
}

type pageResponse[T any] struct {
	Data  []T       `json:"data"`
	Meta  pageMeta  `json:"meta"`
	Links pageLinks `json:"links"`
}

func newPageResponse[T any](r *http.Request, p domain.Page[T]) pageResponse[T] {
	last := p.LastPage()
	link := func(n int) string { return pageURL(r, n) }

	resp := pageResponse[T]{
		Data: p.Items,
		Meta: pageMeta{
			CurrentPage: p.Number,
			PerPage:     p.Size,
			Total:       p.Total,
			LastPage:    last,
		},
		Links: pageLinks{First: link(1), Last: link(last)},
	}
	if resp.Data == nil {
		resp.Data = []T{}
	}
	if p.Number > 1 {
		prev := link(min(p.Number-1, last))
		resp.Links.Prev = &prev
	}
	if p.Number < last {
		next := link(p.Number + 1)
		resp.Links.Next = &next
	}
	return resp
}

// pageURL returns the request URL with its page query parameter set to n.
func pageURL(r *http.Request, n int) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	q := r.URL.Query()
	q.Set("page", strconv.Itoa(n))
	u := url.URL{Scheme: scheme, Host: r.Host, Path: r.URL.Path, RawQuery: q.Encode()}
	return u.String()
}

// pageNumber reads ?page=. Missing or invalid values select page 1.
func pageNumber(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// ListTasks handles GET /api/v1/tasks
func (h *Handlers) ListTasks(w http.ResponseWriter, r *http.Request) {
	page, err := h.Tasks.List(r.Context(), domain.PageRequest{Number: pageNumber(r)})
	if err != nil {
		writeDomainError(w, r, err, taskNotFound)
		return
	}
	writeJSON(w, http.StatusOK, newPageResponse(r, page))
}

// CreateTask handles POST /api/v1/tasks
func (h *Handlers) CreateTask(w http.ResponseWriter, r *http.Request) {
	handleCreate(h.BodyLimit, h.Tasks.Create)(w, r)
}

// GetTask handles GET /api/v1/tasks/{id}
func (h *Handlers) GetTask(w http.ResponseWriter, r *http.Request) {
	handleGet(h.Tasks.Get, taskNotFound)(w, r)
}

// UpdateTask handles PUT and PATCH /api/v1/tasks/{id}
func (h *Handlers) UpdateTask(w http.ResponseWriter, r *http.Request) {
	handleUpdate[task.UpdateRequest](h.BodyLimit, h.Tasks.Update, taskNotFound)(w, r)
}

// DeleteTask handles DELETE /api/v1/tasks/{id}
func (h *Handlers) DeleteTask(w http.ResponseWriter, r *http.Request) {
	handleDelete(h.Tasks.Delete, taskNotFound)(w, r)
}

// HealthCheck handles GET /health. It reports 503 when the database is unreachable.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	type healthStatus struct {
		Status   string `json:"status"`
		Postgres string `json:"postgres"`
	}
	status := healthStatus{Status: "ok", Postgres: "ok"}
	code := http.StatusOK
	if h.Health != nil {
		if err := h.Health.Ping(r.Context()); err != nil {
			status = healthStatus{Status: "degraded", Postgres: "unreachable"}
			code = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, code, status)
}
