// Package cachetest holds the behavior every cache.Cache implementation must
// show when it stores tenant resolutions.
package cachetest

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Strob0t/TaskForge/internal/domain/tenant"
	"github.com/Strob0t/TaskForge/internal/port/cache"
)

// Run exercises c the way the tenant resolver uses it: host keys mapped to
// encoded tenants. settle, if not nil, is called after every write and must
// make buffered writes visible. Hosts are unique per call, so c may be a
// shared remote bucket.
func Run(t *testing.T, c cache.Cache, settle func()) {
	t.Helper()
	ctx := context.Background()
	run := uuid.NewString()[:8]
	key := func(host string) string { return "tenant.host." + host + "." + run }
	sync := func() {
		if settle != nil {
			settle()
		}
	}

	t.Run("StoreAndLoad", func(t *testing.T) {
		want := tenant.Tenant{ID: 1, Name: "ACME Corporation"}
		mustSet(t, c, key("acme.test"), want)
		sync()
		got, found := load(t, c, key("acme.test"))
		if !found {
			t.Fatal("expected a hit after Set")
		}
		if got.ID != want.ID || got.Name != want.Name {
			t.Fatalf("loaded %+v, want %+v", got, want)
		}
	})

	t.Run("UnknownHostMisses", func(t *testing.T) {
		if _, found := load(t, c, key("unknown.test")); found {
			t.Fatal("expected a miss for a host never stored")
		}
	})

	t.Run("HostsAreIndependent", func(t *testing.T) {
		mustSet(t, c, key("a.test"), tenant.Tenant{ID: 1})
		mustSet(t, c, key("b.test"), tenant.Tenant{ID: 2})
		sync()
		a, _ := load(t, c, key("a.test"))
		b, _ := load(t, c, key("b.test"))
		if a.ID != 1 || b.ID != 2 {
			t.Fatalf("hosts leaked into each other: a=%d b=%d", a.ID, b.ID)
		}
	})

	t.Run("InvalidateDropsResolution", func(t *testing.T) {
		mustSet(t, c, key("gone.test"), tenant.Tenant{ID: 3})
		sync()
		if err := c.Delete(ctx, key("gone.test")); err != nil {
			t.Fatal(err)
		}
		sync()
		if _, found := load(t, c, key("gone.test")); found {
			t.Fatal("expected a miss after Delete")
		}
	})

	t.Run("InvalidateUnknownHost", func(t *testing.T) {
		if err := c.Delete(ctx, key("never.test")); err != nil {
			t.Fatalf("Delete of an absent key: %v", err)
		}
	})

	t.Run("RebindReplaces", func(t *testing.T) {
		mustSet(t, c, key("moved.test"), tenant.Tenant{ID: 4})
		sync()
		mustSet(t, c, key("moved.test"), tenant.Tenant{ID: 5})
		sync()
		got, found := load(t, c, key("moved.test"))
		if !found || got.ID != 5 {
			t.Fatalf("expected the newer tenant 5, got %+v (found=%v)", got, found)
		}
	})
}

func mustSet(t *testing.T, c cache.Cache, key string, tn tenant.Tenant) {
	t.Helper()
	data, err := json.Marshal(tn)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Set(context.Background(), key, data, time.Minute); err != nil {
		t.Fatalf("Set(%s): %v", key, err)
	}
}

func load(t *testing.T, c cache.Cache, key string) (tenant.Tenant, bool) {
	t.Helper()
	data, found, err := c.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("Get(%s): %v", key, err)
	}
	var tn tenant.Tenant
	if !found {
		return tn, false
	}
	if err := json.Unmarshal(data, &tn); err != nil {
		t.Fatalf("cached value for %s is not a tenant: %v", key, err)
	}
	return tn, true
}
