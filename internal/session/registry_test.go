package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"sftp-mcp/internal/ssh"
	"sftp-mcp/internal/ssh/sshtest"
)

func newRegisteredManager(t *testing.T, host string) (*Manager, *sshtest.FakeConn) {
	t.Helper()

	fake := sshtest.NewFakeConn()
	manager := newTestManager(t, fake, ssh.Config{Host: host, Username: "user", Password: "pw"})
	if err := manager.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	return manager, fake
}

func TestNewRegistry(t *testing.T) {
	expiry := 10 * time.Minute
	registry := NewRegistry(expiry, nil)

	if registry.sessionExpiry != expiry {
		t.Errorf("Expected session expiry %v, got %v", expiry, registry.sessionExpiry)
	}
	if registry.sessions == nil {
		t.Error("Sessions map not initialized")
	}

	registry = NewRegistry(0, nil)
	if registry.sessionExpiry != 30*time.Minute {
		t.Errorf("Expected default session expiry %v, got %v", 30*time.Minute, registry.sessionExpiry)
	}
}

func TestAddAndGetSession(t *testing.T) {
	registry := NewRegistry(10*time.Minute, nil)
	manager, _ := newRegisteredManager(t, "example.com")

	session := registry.Add(manager)
	if session.ID == "" {
		t.Fatal("Session ID should not be empty")
	}
	if session.Host != "example.com" || session.Username != "user" {
		t.Errorf("Unexpected session details: %+v", session)
	}

	other := registry.Add(manager)
	if other.ID == session.ID {
		t.Errorf("Session IDs should be unique, but got %s twice", session.ID)
	}

	retrieved, err := registry.Get(session.ID)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if retrieved.Manager != manager {
		t.Error("Get returned a different manager")
	}

	if _, err := registry.Get("non-existent"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound, got %v", err)
	}
}

func TestRemoveSession(t *testing.T) {
	registry := NewRegistry(10*time.Minute, nil)
	manager, fake := newRegisteredManager(t, "example.com")
	session := registry.Add(manager)

	if err := registry.Remove(session.ID); err != nil {
		t.Errorf("Remove returned error: %v", err)
	}
	if len(registry.sessions) != 0 {
		t.Errorf("Expected 0 sessions after removal, got %d", len(registry.sessions))
	}
	if fake.Closed() != 1 {
		t.Error("Removing a session should close its connection")
	}

	if err := registry.Remove("non-existent"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound, got %v", err)
	}
}

func TestListSessions(t *testing.T) {
	registry := NewRegistry(10*time.Minute, nil)

	if sessions := registry.List(); len(sessions) != 0 {
		t.Errorf("Expected 0 sessions, got %d", len(sessions))
	}

	m1, _ := newRegisteredManager(t, "host1")
	m2, _ := newRegisteredManager(t, "host2")
	registry.Add(m1)
	registry.Add(m2)

	hosts := make(map[string]bool)
	for _, s := range registry.List() {
		hosts[s.Host] = true
	}
	if !hosts["host1"] || !hosts["host2"] || len(hosts) != 2 {
		t.Errorf("List did not return all sessions: %v", hosts)
	}
}

func TestCleanupExpiredSessions(t *testing.T) {
	registry := NewRegistry(100*time.Millisecond, nil)

	m1, fake1 := newRegisteredManager(t, "host1")
	m2, fake2 := newRegisteredManager(t, "host2")
	s1 := registry.Add(m1)
	s2 := registry.Add(m2)

	registry.sessions[s1.ID].LastActivity = time.Now().Add(-200 * time.Millisecond)

	if count := registry.CleanupExpiredSessions(); count != 1 {
		t.Errorf("Expected 1 session to be cleaned up, got %d", count)
	}
	if _, exists := registry.sessions[s1.ID]; exists {
		t.Error("Expired session was not removed")
	}
	if _, exists := registry.sessions[s2.ID]; !exists {
		t.Error("Non-expired session was removed")
	}
	if fake1.Closed() != 1 || fake2.Closed() != 0 {
		t.Error("Only the expired session should be closed")
	}
}

func TestStartCleanupRoutine(t *testing.T) {
	registry := NewRegistry(10*time.Millisecond, nil)
	manager, fake := newRegisteredManager(t, "host1")
	registry.Add(manager)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	registry.StartCleanupRoutine(ctx, 5*time.Millisecond)

	deadline := time.Now().Add(2 * time.Second)
	for (len(registry.List()) > 0 || fake.Closed() == 0) && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if len(registry.List()) != 0 {
		t.Error("Cleanup routine did not expire the session")
	}
	if fake.Closed() != 1 {
		t.Error("Expired session should be closed")
	}
}

func TestCloseAll(t *testing.T) {
	registry := NewRegistry(time.Minute, nil)
	m1, fake1 := newRegisteredManager(t, "host1")
	m2, fake2 := newRegisteredManager(t, "host2")
	registry.Add(m1)
	registry.Add(m2)

	registry.CloseAll()

	if len(registry.List()) != 0 {
		t.Error("CloseAll should forget every session")
	}
	if fake1.Closed() != 1 || fake2.Closed() != 1 {
		t.Error("CloseAll should close every connection")
	}
}
