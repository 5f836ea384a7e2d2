// Package task defines the Task domain entity.
package task

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Strob0t/TaskForge/internal/domain"
)

// MaxTitleLength is the longest accepted title, in characters.
const MaxTitleLength = 255

// Task is a tenant-owned to-do item. TenantID is assigned on insert and
// never changes afterwards.
type Task struct {
	ID        int64     `json:"id"`
	TenantID  int64     `json:"tenant_id"`
	Title     string    `json:"title"`
	Completed bool      `json:"completed"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateRequest holds the client-settable fields of a new task.
// It has no tenant field: the owner always comes from the
// resolved request context.
type CreateRequest struct {
	Title     string `json:"title"`
	Completed *bool  `json:"completed,omitempty"`
}

// Validate checks the request and trims the title.
func (r *CreateRequest) Validate() error {
	var verr domain.ValidationError
	r.Title = strings.TrimSpace(r.Title)
	validateTitle(&verr, r.Title)
	return verr.OrNil()
}

// IsCompleted returns the requested completion flag, defaulting to false.
func (r *CreateRequest) IsCompleted() bool {
	return r.Completed != nil && *r.Completed
}

// UpdateRequest holds a partial update. Nil fields are left unchanged.
type UpdateRequest struct {
	Title     *string `json:"title,omitempty"`
	Completed *bool   `json:"completed,omitempty"`
}

// Validate checks the fields that are present and trims the title.
func (r *UpdateRequest) Validate() error {
	var verr domain.ValidationError
	if r.Title != nil {
		trimmed := strings.TrimSpace(*r.Title)
		r.Title = &trimmed
		validateTitle(&verr, trimmed)
	}
	return verr.OrNil()
}

// Empty reports whether the update changes nothing.
func (r *UpdateRequest) Empty() bool {
	return r.Title == nil && r.Completed == nil
}

func validateTitle(verr *domain.ValidationError, title string) {
	switch {
	case title == "":
		verr.Add("title", "title is required")
	case utf8.RuneCountInString(title) > MaxTitleLength:
		verr.Add("title", "title must not be longer than 255 characters")
	}
}
