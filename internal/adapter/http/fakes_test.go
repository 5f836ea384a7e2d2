package http_test

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Strob0t/TaskForge/internal/domain"
	"github.com/Strob0t/TaskForge/internal/domain/task"
	"github.com/Strob0t/TaskForge/internal/domain/tenant"
	"github.com/Strob0t/TaskForge/internal/domain/user"
	"github.com/Strob0t/TaskForge/internal/port/database"
)

var (
	_ database.Directory = (*fakeStore)(nil)
	_ database.TaskStore = (*fakeStore)(nil)
	_ database.UserStore = (*fakeStore)(nil)
)

// fakeStore is an in-memory store that scopes every entity call to the
// tenant in the context, like the postgres store.
type fakeStore struct {
	mu     sync.Mutex
	nextID int64
	hosts  map[string]tenant.Tenant
	tasks  map[int64]task.Task
	users  map[int64]user.User
	tokens map[string]user.AccessToken

	entityCalls atomic.Int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		hosts:  make(map[string]tenant.Tenant),
		tasks:  make(map[int64]task.Task),
		users:  make(map[int64]user.User),
		tokens: make(map[string]user.AccessToken),
	}
}

func (s *fakeStore) addTenant(id int64, name, host string) tenant.Tenant {
	t := tenant.Tenant{ID: id, Name: name, CreatedAt: time.Now()}
	s.hosts[host] = t
	return t
}

func (s *fakeStore) scope(ctx context.Context) (int64, error) {
	s.entityCalls.Add(1)
	return tenant.IDFromContext(ctx)
}

func (s *fakeStore) TenantByVerifiedHost(_ context.Context, host string) (*tenant.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.hosts[host]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &t, nil
}

func (s *fakeStore) ListTasks(ctx context.Context, page domain.PageRequest) (domain.Page[task.Task], error) {
	tid, err := s.scope(ctx)
	if err != nil {
		return domain.Page[task.Task]{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var own []task.Task
	for _, t := range s.tasks {
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

func (s *fakeStore) GetTask(ctx context.Context, id int64) (*task.Task, error) {
	tid, err := s.scope(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok || t.TenantID != tid {
		return nil, domain.ErrNotFound
	}
	return &t, nil
}

func (s *fakeStore) LocateTask(ctx context.Context, id int64) (*task.Task, error) {
	if _, err := s.scope(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &t, nil
}

func (s *fakeStore) CreateTask(ctx context.Context, req task.CreateRequest) (*task.Task, error) {
	tid, err := s.scope(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	now := time.Now().UTC()
	t := task.Task{ID: s.nextID, TenantID: tid, Title: req.Title, Completed: req.IsCompleted(), CreatedAt: now, UpdatedAt: now}
	s.tasks[t.ID] = t
	return &t, nil
}

func (s *fakeStore) UpdateTask(ctx context.Context, id int64, req task.UpdateRequest) (*task.Task, error) {
	tid, err := s.scope(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok || t.TenantID != tid {
		return nil, domain.ErrNotFound
	}
	if req.Title != nil {
		t.Title = *req.Title
	}
	if req.Completed != nil {
		t.Completed = *req.Completed
	}
	s.tasks[id] = t
	return &t, nil
}

func (s *fakeStore) DeleteTask(ctx context.Context, id int64) error {
	tid, err := s.scope(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok || t.TenantID != tid {
		return domain.ErrNotFound
	}
	delete(s.tasks, id)
	return nil
}

func (s *fakeStore) CreateUser(ctx context.Context, u *user.User) error {
	tid, err := s.scope(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.TenantID == tid && existing.Email == u.Email {
			return domain.ErrAlreadyExists
		}
	}
	s.nextID++
	u.ID = s.nextID
	u.TenantID = tid
	s.users[u.ID] = *u
	return nil
}

func (s *fakeStore) GetUser(ctx context.Context, id int64) (*user.User, error) {
	tid, err := s.scope(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok || u.TenantID != tid {
		return nil, domain.ErrNotFound
	}
	return &u, nil
}

func (s *fakeStore) GetUserByEmail(ctx context.Context, email string) (*user.User, error) {
	tid, err := s.scope(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.TenantID == tid && u.Email == email {
			return &u, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *fakeStore) ListUsers(ctx context.Context) ([]user.User, error) {
	tid, err := s.scope(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []user.User
	for _, u := range s.users {
		if u.TenantID == tid {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s *fakeStore) CreateAccessToken(ctx context.Context, tok *user.AccessToken) error {
	tid, err := s.scope(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tok.TenantID = tid
	s.tokens[tok.ID] = *tok
	return nil
}

func (s *fakeStore) GetAccessTokenByHash(ctx context.Context, hash string) (*user.AccessToken, error) {
	tid, err := s.scope(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tokens {
		if t.TenantID == tid && t.TokenHash == hash {
			return &t, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *fakeStore) TouchAccessToken(ctx context.Context, _ string, _ time.Time) error {
	_, err := s.scope(ctx)
	return err
}

func (s *fakeStore) DeleteAccessToken(ctx context.Context, id string) error {
	tid, err := s.scope(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[id]
	if !ok || t.TenantID != tid {
		return domain.ErrNotFound
	}
	delete(s.tokens, id)
	return nil
}

func (s *fakeStore) PurgeExpiredTokens(context.Context) (int64, error) { return 0, nil }
