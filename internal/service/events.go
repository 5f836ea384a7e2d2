package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Strob0t/TaskForge/internal/adapter/ws"
	"github.com/Strob0t/TaskForge/internal/domain/task"
	"github.com/Strob0t/TaskForge/internal/logger"
	"github.com/Strob0t/TaskForge/internal/port/broadcast"
	"github.com/Strob0t/TaskForge/internal/port/messagequeue"
)

var wsEventTypes = map[string]string{
	messagequeue.EventTaskCreated: ws.EventTaskCreated,
	messagequeue.EventTaskUpdated: ws.EventTaskUpdated,
	messagequeue.EventTaskDeleted: ws.EventTaskDeleted,
}

// TaskEvents fans task changes out to other instances and to connected
// clients of the owning tenant.
//
// With a queue, events go to NATS and Relay (subscribed on every instance)
// hands them to the local hub. Without one they go to the hub directly.
// Publishing is best effort: the write has already been committed.
type TaskEvents struct {
	queue messagequeue.Queue
	hub   broadcast.Broadcaster
}

// NewTaskEvents creates a TaskEvents. Either argument may be nil.
func NewTaskEvents(queue messagequeue.Queue, hub broadcast.Broadcaster) *TaskEvents {
	return &TaskEvents{queue: queue, hub: hub}
}

// Publish emits event for t.
func (e *TaskEvents) Publish(ctx context.Context, event string, t *task.Task) {
	if e == nil {
		return
	}
	p := messagequeue.TaskEventPayload{
		TenantID:  t.TenantID,
		TaskID:    t.ID,
		Title:     t.Title,
		Completed: t.Completed,
		RequestID: logger.RequestID(ctx),
		At:        time.Now().UTC(),
	}

	if e.queue == nil {
		e.broadcast(ctx, event, p)
		return
	}

	data, err := json.Marshal(p)
	if err != nil {
		slog.ErrorContext(ctx, "marshal task event", "error", err)
		return
	}
	subject := messagequeue.TaskSubject(t.TenantID, event)
	if err := e.queue.Publish(ctx, subject, data); err != nil {
		slog.ErrorContext(ctx, "failed to publish task event", "subject", subject, "task_id", t.ID, "error", err)
	}
}

// Relay is a messagequeue.Handler that forwards task events from NATS to
// the local hub. The tenant is taken from the subject, which the validator
// has already checked against the payload.
func (e *TaskEvents) Relay(ctx context.Context, subject string, data []byte) error {
	tenantID, event, err := messagequeue.ParseTaskSubject(subject)
	if err != nil {
		// Not a task subject.
		return nil
	}
	var p messagequeue.TaskEventPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("relay %s: %w", subject, err)
	}
	if p.TenantID != tenantID {
		return fmt.Errorf("relay %s: payload tenant %d", subject, p.TenantID)
	}
	e.broadcast(ctx, event, p)
	return nil
}

func (e *TaskEvents) broadcast(ctx context.Context, event string, p messagequeue.TaskEventPayload) {
	if e.hub == nil {
		return
	}
	eventType, ok := wsEventTypes[event]
	if !ok {
		return
	}
	e.hub.BroadcastEvent(ctx, p.TenantID, eventType, ws.TaskEvent{
		TaskID:    p.TaskID,
		Title:     p.Title,
		Completed: p.Completed,
		At:        p.At,
	})
}
