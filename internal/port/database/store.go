// Package database defines the database store ports (interfaces).
//
// Every method taking a context on TaskStore and UserStore is tenant-scoped:
// the tenant is read from the context (tenant.FromContext) and the call fails
// with tenant.ErrNoTenant when none is bound. Directory methods are global.
package database

import (
	"context"
	"time"

	"github.com/Strob0t/TaskForge/internal/domain"
	"github.com/Strob0t/TaskForge/internal/domain/task"
	"github.com/Strob0t/TaskForge/internal/domain/tenant"
	"github.com/Strob0t/TaskForge/internal/domain/user"
)

// Directory is the read side of the tenant directory used at request time.
type Directory interface {
	// TenantByVerifiedHost returns the tenant bound to host through a
	// verified domain. Unknown and unverified hosts both yield
	// domain.ErrNotFound. host must already be normalized.
	TenantByVerifiedHost(ctx context.Context, host string) (*tenant.Tenant, error)
}

// DirectoryAdmin adds the provisioning operations used by the admin CLI and
// by tests. They are not reachable over HTTP.
type DirectoryAdmin interface {
	Directory
	CreateTenant(ctx context.Context, req tenant.CreateRequest) (*tenant.Tenant, error)
	GetTenant(ctx context.Context, id int64) (*tenant.Tenant, error)
	ListTenants(ctx context.Context) ([]tenant.Tenant, error)
	AddDomain(ctx context.Context, req tenant.DomainRequest) (*tenant.Domain, error)
	VerifyDomain(ctx context.Context, host string, at time.Time) error
	ListDomains(ctx context.Context, tenantID int64) ([]tenant.Domain, error)
}

// TaskStore persists tenant-owned tasks.
type TaskStore interface {
	ListTasks(ctx context.Context, page domain.PageRequest) (domain.Page[task.Task], error)
	GetTask(ctx context.Context, id int64) (*task.Task, error)
	// LocateTask resolves a task by its globally unique id without the
	// tenant filter. The result carries its owner and must be checked with
	// tenant.Authorize before use.
	LocateTask(ctx context.Context, id int64) (*task.Task, error)
	CreateTask(ctx context.Context, req task.CreateRequest) (*task.Task, error)
	UpdateTask(ctx context.Context, id int64, req task.UpdateRequest) (*task.Task, error)
	DeleteTask(ctx context.Context, id int64) error
}

// UserStore persists users and their bearer tokens.
type UserStore interface {
	CreateUser(ctx context.Context, u *user.User) error
	GetUser(ctx context.Context, id int64) (*user.User, error)
	GetUserByEmail(ctx context.Context, email string) (*user.User, error)
	ListUsers(ctx context.Context) ([]user.User, error)

	CreateAccessToken(ctx context.Context, tok *user.AccessToken) error
	GetAccessTokenByHash(ctx context.Context, hash string) (*user.AccessToken, error)
	TouchAccessToken(ctx context.Context, id string, at time.Time) error
	DeleteAccessToken(ctx context.Context, id string) error
	// PurgeExpiredTokens removes expired tokens of all tenants.
	PurgeExpiredTokens(ctx context.Context) (int64, error)
}

// Store is the full persistence port.
type Store interface {
	DirectoryAdmin
	TaskStore
	UserStore
	Ping(ctx context.Context) error
}
