package natskv_test

import (
	"context"
	"os"
	"regexp"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/Strob0t/TaskForge/internal/adapter/natskv"
	"github.com/Strob0t/TaskForge/internal/port/cache/cachetest"
)

var kvKey = regexp.MustCompile(`^[-/_=\.a-zA-Z0-9]+$`)

func TestKey_ValidAlphabet(t *testing.T) {
	for _, k := range []string{"tenant.host.acme.test", "tenant.host.::1", "tenant.host.münchen.example", "idem:1:abc def"} {
		enc := natskv.Key(k)
		if !kvKey.MatchString(enc) {
			t.Errorf("key %q encoded to invalid KV key %q", k, enc)
		}
	}
}

func TestKey_Distinct(t *testing.T) {
	if natskv.Key("tenant.host.a.test") == natskv.Key("tenant.host.b.test") {
		t.Fatal("distinct keys must not collide")
	}
}

func TestCache_Compliance(t *testing.T) {
	url := os.Getenv("NATS_URL")
	if url == "" {
		t.Skip("requires NATS_URL")
	}
	nc, err := nats.Connect(url)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(nc.Close)
	js, err := jetstream.New(nc)
	if err != nil {
		t.Fatalf("jetstream: %v", err)
	}
	c, err := natskv.Open(context.Background(), js, "TASKFORGE_CACHETEST", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	cachetest.Run(t, c, nil)
}
