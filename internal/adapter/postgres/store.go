package postgres

import (
	"context"
	"fmt"

	"github.com/Strob0t/TaskForge/internal/domain"
	"github.com/Strob0t/TaskForge/internal/domain/task"
	"github.com/Strob0t/TaskForge/internal/domain/user"
)

// Store implements database.Store using PostgreSQL.
type Store struct {
	db    querier
	tasks *Scoped[task.Task]
	users *Scoped[user.User]
	toks  *Scoped[user.AccessToken]
}

// NewStore creates a new Store backed by db, normally a *pgxpool.Pool.
func NewStore(db querier) *Store {
	return &Store{
		db:    db,
		tasks: NewScoped(db, taskTable),
		users: NewScoped(db, userTable),
		toks:  NewScoped(db, tokenTable),
	}
}

// Ping checks that the database answers queries.
func (s *Store) Ping(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, "SELECT 1"); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// --- Tasks ---

var taskTable = Table[task.Task]{
	Name:     "tasks",
	Columns:  []string{"id", "tenant_id", "title", "completed", "created_at", "updated_at"},
	Writable: []string{"title", "completed"},
	OrderBy:  `"created_at" DESC, "id" DESC`,
	Touch:    "updated_at",
	Scan:     scanTask,
}

func scanTask(row scannable) (task.Task, error) {
	var t task.Task
	err := row.Scan(&t.ID, &t.TenantID, &t.Title, &t.Completed, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

func (s *Store) ListTasks(ctx context.Context, page domain.PageRequest) (domain.Page[task.Task], error) {
	total, err := s.tasks.Count(ctx)
	if err != nil {
		return domain.Page[task.Task]{}, err
	}
	items, err := s.tasks.List(ctx, page)
	if err != nil {
		return domain.Page[task.Task]{}, err
	}
	return domain.Page[task.Task]{Items: items, Number: page.Number, Size: page.Size, Total: total}, nil
}

func (s *Store) GetTask(ctx context.Context, id int64) (*task.Task, error) {
	t, err := s.tasks.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Store) LocateTask(ctx context.Context, id int64) (*task.Task, error) {
	t, err := s.tasks.Locate(ctx, id)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Store) CreateTask(ctx context.Context, req task.CreateRequest) (*task.Task, error) {
	t, err := s.tasks.Insert(ctx, Values{
		"title":     req.Title,
		"completed": req.IsCompleted(),
	})
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// UpdateTask applies the non-nil fields of req. An empty update returns the
// task unchanged without bumping updated_at.
func (s *Store) UpdateTask(ctx context.Context, id int64, req task.UpdateRequest) (*task.Task, error) {
	if req.Empty() {
		return s.GetTask(ctx, id)
	}
	set := Values{}
	if req.Title != nil {
		set["title"] = *req.Title
	}
	if req.Completed != nil {
		set["completed"] = *req.Completed
	}
	t, err := s.tasks.Update(ctx, id, set)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Store) DeleteTask(ctx context.Context, id int64) error {
	return s.tasks.Delete(ctx, id)
}
