package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Strob0t/TaskForge/internal/domain"
	"github.com/Strob0t/TaskForge/internal/domain/tenant"
	"github.com/Strob0t/TaskForge/internal/port/database"
)

// TenantService provisions tenants and their domains. It backs the admin
// CLI; nothing here is reachable over HTTP.
type TenantService struct {
	dir      database.DirectoryAdmin
	resolver *TenantResolver
}

// NewTenantService creates a new TenantService. resolver may be nil; when
// set, domain changes invalidate its cache.
func NewTenantService(dir database.DirectoryAdmin, resolver *TenantResolver) *TenantService {
	return &TenantService{dir: dir, resolver: resolver}
}

// Create validates and creates a new tenant.
func (s *TenantService) Create(ctx context.Context, req tenant.CreateRequest) (*tenant.Tenant, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		var verr domain.ValidationError
		verr.Add("name", "name is required")
		return nil, &verr
	}
	return s.dir.CreateTenant(ctx, req)
}

// Get returns a tenant by ID.
func (s *TenantService) Get(ctx context.Context, id int64) (*tenant.Tenant, error) {
	return s.dir.GetTenant(ctx, id)
}

// List returns all tenants.
func (s *TenantService) List(ctx context.Context) ([]tenant.Tenant, error) {
	return s.dir.ListTenants(ctx)
}

// Domains returns the domains bound to a tenant.
func (s *TenantService) Domains(ctx context.Context, tenantID int64) ([]tenant.Domain, error) {
	return s.dir.ListDomains(ctx, tenantID)
}

// AddDomain binds a host to an existing tenant.
func (s *TenantService) AddDomain(ctx context.Context, req tenant.DomainRequest) (*tenant.Domain, error) {
	req.Host = tenant.NormalizeHost(req.Host)
	if req.Host == "" {
		var verr domain.ValidationError
		verr.Add("host", "host is required")
		return nil, &verr
	}
	if _, err := s.dir.GetTenant(ctx, req.TenantID); err != nil {
		return nil, fmt.Errorf("tenant %d: %w", req.TenantID, err)
	}
	d, err := s.dir.AddDomain(ctx, req)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, req.Host)
	return d, nil
}

// VerifyDomain marks a host as verified so that it starts resolving.
func (s *TenantService) VerifyDomain(ctx context.Context, host string) error {
	if err := s.dir.VerifyDomain(ctx, host, time.Now()); err != nil {
		return err
	}
	s.invalidate(ctx, host)
	return nil
}

// invalidate drops a cached resolution. A failure leaves the entry to
// expire with its TTL.
func (s *TenantService) invalidate(ctx context.Context, host string) {
	if s.resolver == nil {
		return
	}
	if err := s.resolver.Invalidate(ctx, host); err != nil {
		slog.WarnContext(ctx, "tenant cache invalidation failed", "host", host, "error", err)
	}
}

// SeedTenant describes one tenant created by Seed.
type SeedTenant struct {
	Name string
	Host string
}

// DefaultSeed is the local development data set.
var DefaultSeed = []SeedTenant{
	{Name: "ACME Corporation", Host: "acme.test"},
	{Name: "Beta Company", Host: "beta.test"},
}

// Seed creates each tenant with a verified domain. Tenants whose host
// already resolves are skipped, so Seed can be run repeatedly.
func (s *TenantService) Seed(ctx context.Context, seed []SeedTenant) ([]tenant.Tenant, error) {
	var created []tenant.Tenant
	for _, st := range seed {
		_, err := s.dir.TenantByVerifiedHost(ctx, tenant.NormalizeHost(st.Host))
		if err == nil {
			continue
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return created, fmt.Errorf("seed %s: %w", st.Host, err)
		}

		t, err := s.Create(ctx, tenant.CreateRequest{Name: st.Name})
		if err != nil {
			return created, fmt.Errorf("seed %s: %w", st.Name, err)
		}
		if _, err := s.AddDomain(ctx, tenant.DomainRequest{TenantID: t.ID, Host: st.Host, Verified: true}); err != nil {
			return created, fmt.Errorf("seed %s: %w", st.Host, err)
		}
		created = append(created, *t)
	}
	return created, nil
}
