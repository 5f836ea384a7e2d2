package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	cfotel "github.com/Strob0t/TaskForge/internal/adapter/otel"
	"github.com/Strob0t/TaskForge/internal/domain"
	"github.com/Strob0t/TaskForge/internal/domain/tenant"
	"github.com/Strob0t/TaskForge/internal/port/cache"
	"github.com/Strob0t/TaskForge/internal/port/database"
)

const hostCachePrefix = "tenant.host."

// TenantResolver maps the Host of a request to the tenant owning that host
// through a verified domain. Positive results are cached; unknown hosts are
// always looked up again so that a newly verified domain works immediately.
type TenantResolver struct {
	dir     database.Directory
	cache   cache.Cache
	ttl     time.Duration
	group   singleflight.Group
	metrics *cfotel.Metrics
}

// NewTenantResolver creates a resolver. c and m may be nil.
func NewTenantResolver(dir database.Directory, c cache.Cache, ttl time.Duration, m *cfotel.Metrics) *TenantResolver {
	return &TenantResolver{dir: dir, cache: c, ttl: ttl, metrics: m}
}

// Resolve returns the tenant for rawHost. Unknown, unverified and empty
// hosts yield an error wrapping domain.ErrNotFound. Each call returns its
// own copy.
func (r *TenantResolver) Resolve(ctx context.Context, rawHost string) (*tenant.Tenant, error) {
	host := tenant.NormalizeHost(rawHost)
	if host == "" {
		return nil, fmt.Errorf("resolve empty host: %w", domain.ErrNotFound)
	}

	ctx, span := cfotel.StartResolveSpan(ctx, host)
	defer span.End()
	start := time.Now()

	if t, ok := r.cached(ctx, host); ok {
		r.metrics.RecordResolution(ctx, cfotel.OutcomeCacheHit, time.Since(start).Seconds())
		return t, nil
	}

	// Concurrent misses for one host share a single directory lookup.
	v, err, _ := r.group.Do(host, func() (any, error) {
		return r.dir.TenantByVerifiedHost(context.WithoutCancel(ctx), host)
	})
	if err != nil {
		outcome := cfotel.OutcomeError
		if errors.Is(err, domain.ErrNotFound) {
			outcome = cfotel.OutcomeUnknown
		}
		r.metrics.RecordResolution(ctx, outcome, time.Since(start).Seconds())
		return nil, err
	}

	t := *v.(*tenant.Tenant)
	r.store(ctx, host, t)
	r.metrics.RecordResolution(ctx, cfotel.OutcomeLookup, time.Since(start).Seconds())
	return &t, nil
}

// Invalidate drops the cached resolution of rawHost. Call it after a domain
// is removed, re-bound or un-verified.
func (r *TenantResolver) Invalidate(ctx context.Context, rawHost string) error {
	if r.cache == nil {
		return nil
	}
	return r.cache.Delete(ctx, hostCachePrefix+tenant.NormalizeHost(rawHost))
}

func (r *TenantResolver) cached(ctx context.Context, host string) (*tenant.Tenant, bool) {
	if r.cache == nil {
		return nil, false
	}
	data, ok, err := r.cache.Get(ctx, hostCachePrefix+host)
	if err != nil || !ok {
		return nil, false
	}
	var t tenant.Tenant
	if err := json.Unmarshal(data, &t); err != nil || t.ID == 0 {
		slog.WarnContext(ctx, "discarding corrupt tenant cache entry", "host", host)
		_ = r.cache.Delete(ctx, hostCachePrefix+host)
		return nil, false
	}
	return &t, true
}

func (r *TenantResolver) store(ctx context.Context, host string, t tenant.Tenant) {
	if r.cache == nil {
		return
	}
	data, err := json.Marshal(t)
	if err != nil {
		return
	}
	if err := r.cache.Set(ctx, hostCachePrefix+host, data, r.ttl); err != nil {
		slog.WarnContext(ctx, "tenant cache set failed", "host", host, "error", err)
	}
}
