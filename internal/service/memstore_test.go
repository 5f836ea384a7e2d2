package service

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Strob0t/TaskForge/internal/domain"
	"github.com/Strob0t/TaskForge/internal/domain/task"
	"github.com/Strob0t/TaskForge/internal/domain/tenant"
	"github.com/Strob0t/TaskForge/internal/domain/user"
	"github.com/Strob0t/TaskForge/internal/port/database"
)

var _ database.Store = (*memStore)(nil)

// memStore is an in-memory database.Store with the same tenant scoping as
// the postgres store: scoped calls read the tenant from the context.
type memStore struct {
	mu      sync.Mutex
	nextID  int64
	tenants map[int64]tenant.Tenant
	domains map[string]tenant.Domain
	tasks   map[int64]task.Task
	users   map[int64]user.User
	tokens  map[string]user.AccessToken

	hostLookups atomic.Int64
	lookupDelay time.Duration
}

func newMemStore() *memStore {
	return &memStore{
		tenants: make(map[int64]tenant.Tenant),
		domains: make(map[string]tenant.Domain),
		tasks:   make(map[int64]task.Task),
		users:   make(map[int64]user.User),
		tokens:  make(map[string]user.AccessToken),
	}
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

// addTenant creates a tenant with a verified host and returns a context bound to it.
func (m *memStore) addTenant(name, host string) (context.Context, tenant.Tenant) {
	t, _ := m.CreateTenant(context.Background(), tenant.CreateRequest{Name: name})
	_, _ = m.AddDomain(context.Background(), tenant.DomainRequest{TenantID: t.ID, Host: host, Verified: true})
	return tenant.NewContext(context.Background(), *t), *t
}

func (m *memStore) Ping(context.Context) error { return nil }

// --- Directory ---

func (m *memStore) TenantByVerifiedHost(_ context.Context, host string) (*tenant.Tenant, error) {
	m.hostLookups.Add(1)
	if m.lookupDelay > 0 {
		time.Sleep(m.lookupDelay)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.domains[host]
	if !ok || !d.Verified() {
		return nil, fmt.Errorf("resolve host %q: %w", host, domain.ErrNotFound)
	}
	t := m.tenants[d.TenantID]
	return &t, nil
}

func (m *memStore) CreateTenant(_ context.Context, req tenant.CreateRequest) (*tenant.Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := tenant.Tenant{ID: m.id(), Name: req.Name, CreatedAt: time.Now()}
	m.tenants[t.ID] = t
	return &t, nil
}

func (m *memStore) GetTenant(_ context.Context, id int64) (*tenant.Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tenants[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &t, nil
}

func (m *memStore) ListTenants(context.Context) ([]tenant.Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]tenant.Tenant, 0, len(m.tenants))
	for _, t := range m.tenants {
		out = append(out, t)
	}
	slices.SortFunc(out, func(a, b tenant.Tenant) int { return int(a.ID - b.ID) })
	return out, nil
}

func (m *memStore) AddDomain(_ context.Context, req tenant.DomainRequest) (*tenant.Domain, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	host := tenant.NormalizeHost(req.Host)
	if _, ok := m.domains[host]; ok {
		return nil, domain.ErrAlreadyExists
	}
	d := tenant.Domain{ID: m.id(), TenantID: req.TenantID, Host: host, CreatedAt: time.Now()}
	if req.Verified {
		now := time.Now()
		d.VerifiedAt = &now
	}
	m.domains[host] = d
	return &d, nil
}

func (m *memStore) VerifyDomain(_ context.Context, host string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	host = tenant.NormalizeHost(host)
	d, ok := m.domains[host]
	if !ok {
		return domain.ErrNotFound
	}
	d.VerifiedAt = &at
	m.domains[host] = d
	return nil
}

func (m *memStore) ListDomains(_ context.Context, tenantID int64) ([]tenant.Domain, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []tenant.Domain
	for _, d := range m.domains {
		if d.TenantID == tenantID {
			out = append(out, d)
		}
	}
	return out, nil
}

// --- Tasks ---

func (m *memStore) ListTasks(ctx context.Context, page domain.PageRequest) (domain.Page[task.Task], error) {
	tid, err := tenant.IDFromContext(ctx)
	if err != nil {
		return domain.Page[task.Task]{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var own []task.Task
	for _, t := range m.tasks {
		if t.TenantID == tid {
			own = append(own, t)
		}
	}
	slices.SortFunc(own, func(a, b task.Task) int { return int(b.ID - a.ID) })
	items := []task.Task{}
	if off := page.Offset(); off < len(own) {
		items = own[off:min(off+page.Size, len(own))]
	}
	return domain.Page[task.Task]{Items: items, Number: page.Number, Size: page.Size, Total: len(own)}, nil
}

func (m *memStore) GetTask(ctx context.Context, id int64) (*task.Task, error) {
	tid, err := tenant.IDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok || t.TenantID != tid {
		return nil, domain.ErrNotFound
	}
	return &t, nil
}

func (m *memStore) LocateTask(ctx context.Context, id int64) (*task.Task, error) {
	if _, err := tenant.IDFromContext(ctx); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &t, nil
}

func (m *memStore) CreateTask(ctx context.Context, req task.CreateRequest) (*task.Task, error) {
	tid, err := tenant.IDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	t := task.Task{ID: m.id(), TenantID: tid, Title: req.Title, Completed: req.IsCompleted(), CreatedAt: now, UpdatedAt: now}
	m.tasks[t.ID] = t
	return &t, nil
}

func (m *memStore) UpdateTask(ctx context.Context, id int64, req task.UpdateRequest) (*task.Task, error) {
	tid, err := tenant.IDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok || t.TenantID != tid {
		return nil, domain.ErrNotFound
	}
	if req.Title != nil {
		t.Title = *req.Title
	}
	if req.Completed != nil {
		t.Completed = *req.Completed
	}
	if !req.Empty() {
		t.UpdatedAt = time.Now()
	}
	m.tasks[id] = t
	return &t, nil
}

func (m *memStore) DeleteTask(ctx context.Context, id int64) error {
	tid, err := tenant.IDFromContext(ctx)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok || t.TenantID != tid {
		return domain.ErrNotFound
	}
	delete(m.tasks, id)
	return nil
}

// --- Users ---

func (m *memStore) CreateUser(ctx context.Context, u *user.User) error {
	tid, err := tenant.IDFromContext(ctx)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.TenantID == tid && strings.EqualFold(existing.Email, u.Email) {
			return domain.ErrAlreadyExists
		}
	}
	u.ID = m.id()
	u.TenantID = tid
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	m.users[u.ID] = *u
	return nil
}

func (m *memStore) GetUser(ctx context.Context, id int64) (*user.User, error) {
	tid, err := tenant.IDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok || u.TenantID != tid {
		return nil, domain.ErrNotFound
	}
	return &u, nil
}

func (m *memStore) GetUserByEmail(ctx context.Context, email string) (*user.User, error) {
	tid, err := tenant.IDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.TenantID == tid && u.Email == email {
			return &u, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memStore) ListUsers(ctx context.Context) ([]user.User, error) {
	tid, err := tenant.IDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []user.User
	for _, u := range m.users {
		if u.TenantID == tid {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *memStore) CreateAccessToken(ctx context.Context, tok *user.AccessToken) error {
	tid, err := tenant.IDFromContext(ctx)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	tok.TenantID = tid
	tok.CreatedAt = time.Now()
	m.tokens[tok.ID] = *tok
	return nil
}

func (m *memStore) GetAccessTokenByHash(ctx context.Context, hash string) (*user.AccessToken, error) {
	tid, err := tenant.IDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tokens {
		if t.TenantID == tid && t.TokenHash == hash {
			return &t, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memStore) TouchAccessToken(ctx context.Context, id string, at time.Time) error {
	tid, err := tenant.IDFromContext(ctx)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[id]
	if !ok || t.TenantID != tid {
		return domain.ErrNotFound
	}
	t.LastUsedAt = at
	m.tokens[id] = t
	return nil
}

func (m *memStore) DeleteAccessToken(ctx context.Context, id string) error {
	tid, err := tenant.IDFromContext(ctx)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[id]
	if !ok || t.TenantID != tid {
		return domain.ErrNotFound
	}
	delete(m.tokens, id)
	return nil
}

func (m *memStore) PurgeExpiredTokens(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	now := time.Now()
	for id, t := range m.tokens {
		if t.Expired(now) {
			delete(m.tokens, id)
			n++
		}
	}
	return n, nil
}

func domainReq(tenantID int64, host string, verified bool) tenant.DomainRequest {
	return tenant.DomainRequest{TenantID: tenantID, Host: host, Verified: verified}
}
