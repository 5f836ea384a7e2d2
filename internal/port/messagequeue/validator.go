package messagequeue

import (
	"encoding/json"
	"fmt"
)

// Validate checks whether data is valid JSON conforming to the schema
// associated with the given subject. Unknown subjects only need valid JSON.
// A task payload must name the same tenant as its subject.
func Validate(subject string, data []byte) error {
	if !json.Valid(data) {
		return fmt.Errorf("invalid JSON on subject %s", subject)
	}

	tenantID, event, err := ParseTaskSubject(subject)
	if err != nil {
		return nil
	}
	switch event {
	case EventTaskCreated, EventTaskUpdated, EventTaskDeleted:
	default:
		return fmt.Errorf("unknown task event %q", event)
	}

	var p TaskEventPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("schema validation failed for %s: %w", subject, err)
	}
	if p.TenantID != tenantID {
		return fmt.Errorf("payload tenant %d does not match subject %s", p.TenantID, subject)
	}
	if p.TaskID < 1 {
		return fmt.Errorf("schema validation failed for %s: task_id is required", subject)
	}
	return nil
}
