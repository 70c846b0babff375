package statemanager_test

import (
	"log/slog"
	"os"
	"strconv"
	"sync"
	"testing"

	"github.com/Omprakash1353/Social-Media-Server/pkg/state"
	"github.com/Omprakash1353/Social-Media-Server/pkg/state/statemanager"
	"github.com/google/uuid"
)

// --- Test Suite Setup ---

func newTestLogger() *slog.Logger {
	// Discard logger output during tests by setting a high level
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError + 1})
	return slog.New(handler)
}

func newTestManager() *statemanager.InMemoryManager {
	return statemanager.NewInMemoryManager(newTestLogger())
}

// fakeLink stands in for a transport connection.
type fakeLink struct {
	id uuid.UUID
}

func newFakeLink() *fakeLink        { return &fakeLink{id: uuid.New()} }
func (l *fakeLink) ID() uuid.UUID   { return l.id }
func (l *fakeLink) Send(msg []byte) {}
func (l *fakeLink) Close(err error) {}

var _ state.Link = (*fakeLink)(nil)

// --- Connection Lifecycle Tests ---

func TestRegisterAndLookup(t *testing.T) {
	m := newTestManager()
	link := newFakeLink()

	conn := m.Register("user-1", state.SenderInfo{ID: "user-1", Name: "One"}, link)
	if conn.ID != link.ID() {
		t.Errorf("Registered connection ID mismatch")
	}

	got, ok := m.Lookup("user-1")
	if !ok {
		t.Fatal("Lookup failed to find registered identity")
	}
	if got.ID != conn.ID {
		t.Errorf("Lookup returned wrong connection")
	}
	if !m.IsOnline("user-1") {
		t.Error("Identity should be online after register")
	}
	if _, ok := m.FindByConnID(conn.ID); !ok {
		t.Error("FindByConnID failed for live connection")
	}
}

func TestDeregisterRemovesMapping(t *testing.T) {
	m := newTestManager()
	link := newFakeLink()
	conn := m.Register("user-1", state.SenderInfo{ID: "user-1"}, link)

	if removed := m.Deregister("user-1", conn.ID); !removed {
		t.Fatal("Deregister should report the mapping as removed")
	}
	if m.IsOnline("user-1") {
		t.Error("Identity still online after deregister")
	}
	if _, ok := m.Lookup("user-1"); ok {
		t.Error("Lookup found identity after deregister")
	}
	if _, ok := m.FindByConnID(conn.ID); ok {
		t.Error("FindByConnID found connection after deregister")
	}

	// Second deregister has no additional effect.
	if removed := m.Deregister("user-1", conn.ID); removed {
		t.Error("Second deregister should not report a removal")
	}
}

func TestStaleDeregisterKeepsNewerSession(t *testing.T) {
	m := newTestManager()
	first := m.Register("user-1", state.SenderInfo{ID: "user-1"}, newFakeLink())
	second := m.Register("user-1", state.SenderInfo{ID: "user-1"}, newFakeLink())

	// Disconnect of the evicted session must not remove the newer mapping.
	if removed := m.Deregister("user-1", first.ID); removed {
		t.Fatal("Stale deregister must not remove the live mapping")
	}
	got, ok := m.Lookup("user-1")
	if !ok {
		t.Fatal("Identity went offline after stale deregister")
	}
	if got.ID != second.ID {
		t.Errorf("Expected live connection %s, got %s", second.ID, got.ID)
	}
	// The stale physical connection is still dropped from the index.
	if _, ok := m.FindByConnID(first.ID); ok {
		t.Error("Evicted connection should be gone from the connection index")
	}
}

func TestResolveManyDropsOffline(t *testing.T) {
	m := newTestManager()
	c1 := m.Register("user-1", state.SenderInfo{ID: "user-1"}, newFakeLink())
	c2 := m.Register("user-2", state.SenderInfo{ID: "user-2"}, newFakeLink())

	conns := m.ResolveMany([]string{"user-1", "user-2", "user-offline"})
	if len(conns) != 2 {
		t.Fatalf("Expected 2 resolved connections, got %d", len(conns))
	}
	ids := map[uuid.UUID]bool{conns[0].ID: true, conns[1].ID: true}
	if !ids[c1.ID] || !ids[c2.ID] {
		t.Error("ResolveMany returned wrong connections")
	}
}

// --- Room Tests ---

func TestRoomMembership(t *testing.T) {
	m := newTestManager()
	c1 := m.Register("user-1", state.SenderInfo{ID: "user-1"}, newFakeLink())
	c2 := m.Register("user-2", state.SenderInfo{ID: "user-2"}, newFakeLink())

	m.JoinRoom("call-1", c1)
	m.JoinRoom("call-1", c2)

	members := m.RoomMembers("call-1")
	if len(members) != 2 {
		t.Fatalf("Expected 2 room members, got %d", len(members))
	}

	// Rooms have no explicit leave; deregistering drops the connection
	// from every room it joined.
	m.Deregister("user-1", c1.ID)
	if len(m.RoomMembers("call-1")) != 1 {
		t.Error("Expected 1 room member after first deregister")
	}
	m.Deregister("user-2", c2.ID)
	if len(m.RoomMembers("call-1")) != 0 {
		t.Error("Expected empty room after last member deregistered")
	}
}

// --- Concurrency Test ---

// The online set is the mapping's key set, so online-iff-registered holds
// structurally; this exercises the lock under concurrent lifecycles.
func TestConcurrentLifecycles(t *testing.T) {
	m := newTestManager()
	const users = 50
	var wg sync.WaitGroup

	for i := 0; i < users; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			identity := "user-" + strconv.Itoa(n)
			conn := m.Register(identity, state.SenderInfo{ID: identity}, newFakeLink())
			if !m.IsOnline(identity) {
				t.Errorf("%s should be online after register", identity)
			}
			m.ResolveMany([]string{identity})
			if removed := m.Deregister(identity, conn.ID); !removed {
				t.Errorf("Deregister of %s should remove the mapping", identity)
			}
		}(i)
	}
	wg.Wait()

	if got := len(m.Connections()); got != 0 {
		t.Errorf("Expected no live connections after all lifecycles, got %d", got)
	}
}
