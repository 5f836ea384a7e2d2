// Package messagequeue defines the message queue port (interface).
package messagequeue

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Handler processes a message received from the queue.
// The context carries request-scoped values such as the request ID.
type Handler func(ctx context.Context, subject string, data []byte) error

// Queue is the port interface for publishing and subscribing to messages.
type Queue interface {
	// Publish sends a message to the given subject.
	Publish(ctx context.Context, subject string, data []byte) error

	// Subscribe registers a handler for messages on the given subject.
	// The returned function cancels the subscription.
	Subscribe(ctx context.Context, subject string, handler Handler) (cancel func(), err error)

	// Drain gracefully drains all subscriptions before closing.
	// Pending messages are processed; no new messages are accepted.
	Drain() error

	// Close shuts down the queue connection immediately.
	Close() error

	// IsConnected reports whether the queue is currently connected.
	IsConnected() bool
}

// Task events. Subjects are tasks.<tenant_id>.<event> so that consumers can
// subscribe to a single tenant.
const (
	SubjectTaskPrefix = "tasks"
	SubjectTaskAll    = "tasks.>"

	// Dead-lettered copies live under their own prefix so that no task
	// consumer receives them again.
	SubjectDLQPrefix = "dlq"
	SubjectDLQAll    = "dlq.>"

	EventTaskCreated = "created"
	EventTaskUpdated = "updated"
	EventTaskDeleted = "deleted"
)

// TaskSubject returns the subject for event on tenantID.
func TaskSubject(tenantID int64, event string) string {
	return fmt.Sprintf("%s.%d.%s", SubjectTaskPrefix, tenantID, event)
}

// ParseTaskSubject splits a task subject into tenant and event.
func ParseTaskSubject(subject string) (tenantID int64, event string, err error) {
	parts := strings.Split(subject, ".")
	if len(parts) != 3 || parts[0] != SubjectTaskPrefix {
		return 0, "", fmt.Errorf("not a task subject: %q", subject)
	}
	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || id < 1 {
		return 0, "", fmt.Errorf("invalid tenant in subject %q", subject)
	}
	return id, parts[2], nil
}

// DLQSubject returns the dead-letter subject for subject.
func DLQSubject(subject string) string {
	return SubjectDLQPrefix + "." + subject
}

// IsDLQSubject reports whether subject is a dead-letter subject.
func IsDLQSubject(subject string) bool {
	return strings.HasPrefix(subject, SubjectDLQPrefix+".")
}
