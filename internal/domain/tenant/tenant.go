// Package tenant defines the tenant domain model for multi-tenancy.
package tenant

import (
	"net"
	"strings"
	"time"
)

// Tenant represents an isolated organization sharing the deployment.
type Tenant struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Domain binds a host name to exactly one tenant.
// Only verified bindings take part in resolution.
type Domain struct {
	ID         int64      `json:"id"`
	TenantID   int64      `json:"tenant_id"`
	Host       string     `json:"host"`
	VerifiedAt *time.Time `json:"verified_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Verified reports whether the binding has been verified.
func (d *Domain) Verified() bool {
	return d.VerifiedAt != nil && !d.VerifiedAt.IsZero()
}

// CreateRequest holds the fields required to create a new tenant.
type CreateRequest struct {
	Name string `json:"name"`
}

// DomainRequest holds the fields required to bind a host to a tenant.
type DomainRequest struct {
	TenantID int64  `json:"tenant_id"`
	Host     string `json:"host"`
	Verified bool   `json:"verified"`
}

// NormalizeHost turns a Host header value into the form domains are stored
// in: port stripped, brackets removed from IPv6 literals, trailing dot
// dropped, lower-cased.
func NormalizeHost(host string) string {
	host = strings.TrimSpace(host)
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	host = strings.TrimSuffix(host, ".")
	return strings.ToLower(host)
}
