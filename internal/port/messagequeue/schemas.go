package messagequeue

import "time"

// TaskEventPayload is the schema for tasks.<tenant_id>.<event> messages.
type TaskEventPayload struct {
	TenantID  int64     `json:"tenant_id"`
	TaskID    int64     `json:"task_id"`
	Title     string    `json:"title,omitempty"`
	Completed bool      `json:"completed"`
	RequestID string    `json:"request_id,omitempty"`
	At        time.Time `json:"at"`
}
