package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Strob0t/TaskForge/internal/domain/tenant"
)

// The tenant directory is global: these queries never read the context tenant.

// TenantByVerifiedHost returns the tenant owning the verified domain host.
func (s *Store) TenantByVerifiedHost(ctx context.Context, host string) (*tenant.Tenant, error) {
	var t tenant.Tenant
	err := s.db.QueryRow(ctx,
		`SELECT t.id, t.name, t.created_at
		 FROM tenant_domains d JOIN tenants t ON t.id = d.tenant_id
		 WHERE d.host = $1 AND d.verified_at IS NOT NULL`, host,
	).Scan(&t.ID, &t.Name, &t.CreatedAt)
	if err != nil {
		return nil, notFoundWrap(err, "resolve host %q", host)
	}
	return &t, nil
}

// --- Tenant CRUD ---

func (s *Store) CreateTenant(ctx context.Context, req tenant.CreateRequest) (*tenant.Tenant, error) {
	var t tenant.Tenant
	err := s.db.QueryRow(ctx,
		`INSERT INTO tenants (name) VALUES ($1) RETURNING id, name, created_at`,
		req.Name,
	).Scan(&t.ID, &t.Name, &t.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create tenant: %w", err)
	}
	return &t, nil
}

func (s *Store) GetTenant(ctx context.Context, id int64) (*tenant.Tenant, error) {
	var t tenant.Tenant
	err := s.db.QueryRow(ctx,
		`SELECT id, name, created_at FROM tenants WHERE id = $1`, id,
	).Scan(&t.ID, &t.Name, &t.CreatedAt)
	if err != nil {
		return nil, notFoundWrap(err, "get tenant %d", id)
	}
	return &t, nil
}

func (s *Store) ListTenants(ctx context.Context) ([]tenant.Tenant, error) {
	rows, err := s.db.Query(ctx, `SELECT id, name, created_at FROM tenants ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	defer rows.Close()

	var tenants []tenant.Tenant
	for rows.Next() {
		var t tenant.Tenant
		if err := rows.Scan(&t.ID, &t.Name, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan tenant: %w", err)
		}
		tenants = append(tenants, t)
	}
	return orEmpty(tenants), rows.Err()
}

// --- Domains ---

// AddDomain binds req.Host to req.TenantID. Hosts are stored normalized and
// are unique across all tenants.
func (s *Store) AddDomain(ctx context.Context, req tenant.DomainRequest) (*tenant.Domain, error) {
	host := tenant.NormalizeHost(req.Host)
	var verifiedAt any
	if req.Verified {
		verifiedAt = time.Now().UTC()
	}

	d, err := scanDomain(s.db.QueryRow(ctx,
		`INSERT INTO tenant_domains (tenant_id, host, verified_at) VALUES ($1, $2, $3)
		 RETURNING id, tenant_id, host, verified_at, created_at`,
		req.TenantID, host, verifiedAt))
	if err != nil {
		return nil, uniqueWrap(err, "add domain %q", host)
	}
	return &d, nil
}

// VerifyDomain marks host as verified at the given time.
func (s *Store) VerifyDomain(ctx context.Context, host string, at time.Time) error {
	host = tenant.NormalizeHost(host)
	tag, err := s.db.Exec(ctx,
		`UPDATE tenant_domains SET verified_at = $2 WHERE host = $1`, host, at.UTC())
	return execExpectOne(tag, err, "verify domain %q", host)
}

func (s *Store) ListDomains(ctx context.Context, tenantID int64) ([]tenant.Domain, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, tenant_id, host, verified_at, created_at
		 FROM tenant_domains WHERE tenant_id = $1 ORDER BY host ASC`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list domains: %w", err)
	}
	defer rows.Close()

	var domains []tenant.Domain
	for rows.Next() {
		d, err := scanDomain(rows)
		if err != nil {
			return nil, fmt.Errorf("scan domain: %w", err)
		}
		domains = append(domains, d)
	}
	return orEmpty(domains), rows.Err()
}

func scanDomain(row scannable) (tenant.Domain, error) {
	var d tenant.Domain
	err := row.Scan(&d.ID, &d.TenantID, &d.Host, &d.VerifiedAt, &d.CreatedAt)
	return d, err
}
