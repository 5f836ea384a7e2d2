// Package broadcast defines the port for broadcasting real-time events to connected clients.
package broadcast

import "context"

// Broadcaster sends real-time events to the connected clients of one tenant.
type Broadcaster interface {
	// BroadcastEvent sends a typed event to every client connected on one
	// of tenantID's domains. Clients of other tenants never receive it.
	BroadcastEvent(ctx context.Context, tenantID int64, eventType string, payload any)
}
