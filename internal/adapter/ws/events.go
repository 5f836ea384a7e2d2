package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
)

// Event type constants for WebSocket messages.
const (
	EventTaskCreated = "task.created"
	EventTaskUpdated = "task.updated"
	EventTaskDeleted = "task.deleted"
)

// TaskEvent is broadcast when a task of the connection's tenant changes.
type TaskEvent struct {
	TaskID    int64     `json:"task_id"`
	Title     string    `json:"title,omitempty"`
	Completed bool      `json:"completed"`
	At        time.Time `json:"at"`
}

// BroadcastEvent marshals payload and sends it as eventType to tenantID's
// connections.
func (h *Hub) BroadcastEvent(ctx context.Context, tenantID int64, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.ErrorContext(ctx, "marshal ws event payload", "type", eventType, "error", err)
		return
	}

	h.BroadcastToTenant(ctx, tenantID, Message{
		Type:    eventType,
		Payload: json.RawMessage(data),
	})
}
