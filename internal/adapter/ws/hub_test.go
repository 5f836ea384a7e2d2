package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/Strob0t/TaskForge/internal/domain/tenant"
	"github.com/Strob0t/TaskForge/internal/port/broadcast"
)

var _ broadcast.Broadcaster = (*Hub)(nil)

// tenantServer serves the hub with the tenant taken from ?tenant=<id>,
// standing in for the host resolver.
func tenantServer(t *testing.T, hub *Hub) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if raw := r.URL.Query().Get("tenant"); raw != "" {
			id, _ := strconv.ParseInt(raw, 10, 64)
			r = r.WithContext(tenant.NewContext(r.Context(), tenant.Tenant{ID: id}))
		}
		hub.HandleWS(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, tenantID int64) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?tenant=" + strconv.FormatInt(tenantID, 10)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = c.CloseNow() })
	return c
}

func waitForConns(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for hub.ConnectionCount() < n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d connections, have %d", n, hub.ConnectionCount())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestNewHub(t *testing.T) {
	hub := NewHub("")
	if hub == nil {
		t.Fatal("expected non-nil hub")
	}
	if hub.ConnectionCount() != 0 {
		t.Fatalf("expected 0 connections, got %d", hub.ConnectionCount())
	}
}

func TestHubBroadcastNoConnections(t *testing.T) {
	hub := NewHub("")

	// Broadcast with no connections should not panic.
	hub.BroadcastToTenant(context.Background(), 1, Message{
		Type:    "test",
		Payload: []byte(`{"key":"value"}`),
	})
}

func TestHubBroadcastEventMarshalError(t *testing.T) {
	hub := NewHub("")

	// A channel cannot be marshaled to JSON. Must log, not panic.
	hub.BroadcastEvent(context.Background(), 1, "bad", make(chan int))
}

func TestHubRemoveNonexistent(t *testing.T) {
	hub := NewHub("")

	_, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := &conn{ws: nil, cancel: cancel, tenantID: 1}
	hub.remove(c)
}

func TestHubRejectsWithoutTenant(t *testing.T) {
	hub := NewHub("")
	rec := httptest.NewRecorder()
	hub.HandleWS(rec, httptest.NewRequest(http.MethodGet, "/api/v1/events", http.NoBody))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if hub.ConnectionCount() != 0 {
		t.Fatal("no connection must be registered")
	}
}

func TestHubDeliversOnlyToOwnTenant(t *testing.T) {
	hub := NewHub("")
	srv := tenantServer(t, hub)

	acme := dial(t, srv, 1)
	beta := dial(t, srv, 2)
	waitForConns(t, hub, 2)

	if n := hub.TenantConnectionCount(1); n != 1 {
		t.Fatalf("expected 1 connection for tenant 1, got %d", n)
	}

	hub.BroadcastEvent(context.Background(), 1, EventTaskCreated, TaskEvent{TaskID: 10, Title: "Acme task"})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, data, err := acme.Read(ctx)
	if err != nil {
		t.Fatalf("read acme: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg.Type != EventTaskCreated {
		t.Fatalf("expected %s, got %s", EventTaskCreated, msg.Type)
	}
	var ev TaskEvent
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if ev.TaskID != 10 {
		t.Fatalf("unexpected event: %+v", ev)
	}

	short, cancelShort := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancelShort()
	if _, _, err := beta.Read(short); err == nil {
		t.Fatal("tenant 2 must not receive tenant 1's event")
	}
}

func TestHubClose(t *testing.T) {
	hub := NewHub("")
	srv := tenantServer(t, hub)
	dial(t, srv, 1)
	waitForConns(t, hub, 1)

	hub.Close()
	if hub.ConnectionCount() != 0 {
		t.Fatalf("expected 0 connections after close, got %d", hub.ConnectionCount())
	}
}
