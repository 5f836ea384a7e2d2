package service

import (
	"context"
	"errors"
	"fmt"

	cfotel "github.com/Strob0t/TaskForge/internal/adapter/otel"
	"github.com/Strob0t/TaskForge/internal/domain"
	"github.com/Strob0t/TaskForge/internal/domain/task"
	"github.com/Strob0t/TaskForge/internal/domain/tenant"
	"github.com/Strob0t/TaskForge/internal/port/database"
	"github.com/Strob0t/TaskForge/internal/port/messagequeue"
)

// TaskService handles task business logic. Every operation runs inside the
// tenant bound to ctx and fails with tenant.ErrNoTenant without one.
type TaskService struct {
	store    database.TaskStore
	events   *TaskEvents
	metrics  *cfotel.Metrics
	pageSize int
}

// NewTaskService creates a new TaskService. events and m may be nil.
func NewTaskService(store database.TaskStore, events *TaskEvents, m *cfotel.Metrics, pageSize int) *TaskService {
	return &TaskService{store: store, events: events, metrics: m, pageSize: pageSize}
}

// List returns one page of the tenant's tasks, newest first.
func (s *TaskService) List(ctx context.Context, page domain.PageRequest) (domain.Page[task.Task], error) {
	tid, err := tenant.IDFromContext(ctx)
	if err != nil {
		return domain.Page[task.Task]{}, err
	}
	ctx, span := cfotel.StartTaskSpan(ctx, "list", tid, 0)
	defer span.End()

	return s.store.ListTasks(ctx, page.Normalize(s.pageSize))
}

// Get returns a task of the tenant. A task of another tenant is reported
// as not found.
func (s *TaskService) Get(ctx context.Context, id int64) (*task.Task, error) {
	tid, err := tenant.IDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	ctx, span := cfotel.StartTaskSpan(ctx, "get", tid, id)
	defer span.End()

	return s.owned(ctx, "get", id)
}

// Create validates req and stores a task owned by the tenant.
func (s *TaskService) Create(ctx context.Context, req task.CreateRequest) (*task.Task, error) {
	tid, err := tenant.IDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	ctx, span := cfotel.StartTaskSpan(ctx, "create", tid, 0)
	defer span.End()

	if err := req.Validate(); err != nil {
		return nil, err
	}
	t, err := s.store.CreateTask(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}

	s.metrics.RecordTaskOp(ctx, "create", tid)
	s.events.Publish(ctx, messagequeue.EventTaskCreated, t)
	return t, nil
}

// Update applies req to a task of the tenant. Ownership is checked before
// the input is validated, so a foreign id is not found even with bad input.
func (s *TaskService) Update(ctx context.Context, id int64, req task.UpdateRequest) (*task.Task, error) {
	tid, err := tenant.IDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	ctx, span := cfotel.StartTaskSpan(ctx, "update", tid, id)
	defer span.End()

	if _, err := s.owned(ctx, "update", id); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	t, err := s.store.UpdateTask(ctx, id, req)
	if err != nil {
		return nil, fmt.Errorf("update task %d: %w", id, err)
	}

	s.metrics.RecordTaskOp(ctx, "update", tid)
	s.events.Publish(ctx, messagequeue.EventTaskUpdated, t)
	return t, nil
}

// Delete removes a task of the tenant.
func (s *TaskService) Delete(ctx context.Context, id int64) error {
	tid, err := tenant.IDFromContext(ctx)
	if err != nil {
		return err
	}
	ctx, span := cfotel.StartTaskSpan(ctx, "delete", tid, id)
	defer span.End()

	t, err := s.owned(ctx, "delete", id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteTask(ctx, id); err != nil {
		return fmt.Errorf("delete task %d: %w", id, err)
	}

	s.metrics.RecordTaskOp(ctx, "delete", tid)
	s.events.Publish(ctx, messagequeue.EventTaskDeleted, t)
	return nil
}

// owned binds id to its task and checks that the tenant owns it.
func (s *TaskService) owned(ctx context.Context, op string, id int64) (*task.Task, error) {
	t, err := s.store.LocateTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := tenant.Authorize(ctx, t.TenantID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.metrics.RecordOwnershipDenied(ctx, op)
			return nil, fmt.Errorf("task %d: %w", id, domain.ErrNotFound)
		}
		return nil, err
	}
	return t, nil
}
