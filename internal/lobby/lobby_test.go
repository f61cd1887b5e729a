package lobby

import (
	"errors"
	"sync"
	"testing"

	"github.com/rpsduel/server/internal/session"
	"github.com/rpsduel/server/internal/validate"
)

type fakeNotifier struct {
	mu     sync.Mutex
	events []struct {
		connID string
		typ    string
	}
}

func (f *fakeNotifier) SendTo(connID, eventType string, payload interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, struct {
		connID string
		typ    string
	}{connID, eventType})
}

func (f *fakeNotifier) countFor(connID, typ string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.events {
		if e.connID == connID && e.typ == typ {
			n++
		}
	}
	return n
}

func TestCreateLobbyMintsValidIDAndSeatsCaller(t *testing.T) {
	r := NewRegistry(&fakeNotifier{})
	lobbyID, playerID, err := r.CreateLobby("conn1", "Alice", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := validate.LobbyID(lobbyID); !ok {
		t.Fatalf("minted lobby id %q is not well-formed", lobbyID)
	}
	if playerID == "" {
		t.Fatal("expected a minted player id")
	}

	l, ok := r.lobbies[lobbyID]
	if !ok {
		t.Fatal("expected lobby to be registered")
	}
	if len(l.Roster) != 1 || l.Roster[0].ID != playerID {
		t.Fatal("expected caller to be seated as the sole occupant")
	}
}

func TestJoinLobbySeatsSecondPlayerAndStartsSession(t *testing.T) {
	r := NewRegistry(&fakeNotifier{})
	lobbyID, p1ID, _ := r.CreateLobby("conn1", "Alice", "")

	p2ID, rejoined, err := r.JoinLobby("conn2", lobbyID, "Bob", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rejoined {
		t.Fatal("a brand-new identity must not be treated as a rejoin")
	}
	if p2ID == p1ID {
		t.Fatal("expected a distinct identity for the second player")
	}

	started, err := r.MaybeStartSession(lobbyID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !started {
		t.Fatal("expected session to start once both seats are live")
	}
}

func TestJoinLobbyRejoinSameIdentityRebindsConnection(t *testing.T) {
	r := NewRegistry(&fakeNotifier{})
	lobbyID, p1ID, _ := r.CreateLobby("conn1", "Alice", "")

	rejoinedID, rejoined, err := r.JoinLobby("conn1-new", lobbyID, "Alice", p1ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !rejoined {
		t.Fatal("joining with an already-seated identity must be treated as a rejoin")
	}
	if rejoinedID != p1ID {
		t.Fatalf("expected same identity back, got %s", rejoinedID)
	}
	if r.connToPlayer["conn1-new"] != p1ID {
		t.Fatal("expected new connection bound to the existing identity")
	}
}

func TestJoinLobbyRejectsWhenFull(t *testing.T) {
	r := NewRegistry(&fakeNotifier{})
	lobbyID, _, _ := r.CreateLobby("conn1", "Alice", "")
	_, _, err := r.JoinLobby("conn2", lobbyID, "Bob", "")
	if err != nil {
		t.Fatalf("unexpected error seating second player: %v", err)
	}

	_, _, err = r.JoinLobby("conn3", lobbyID, "Carol", "")
	if !errors.Is(err, ErrLobbyFull) {
		t.Fatalf("expected ErrLobbyFull, got %v", err)
	}
}

func TestJoinLobbyRejectsUnknownLobby(t *testing.T) {
	r := NewRegistry(&fakeNotifier{})
	_, _, err := r.JoinLobby("conn1", "ZZZZZZ", "Alice", "")
	if !errors.Is(err, ErrLobbyNotFound) {
		t.Fatalf("expected ErrLobbyNotFound, got %v", err)
	}
}

func TestJoinLobbyRejectsNotAdmittedAfterSessionStarted(t *testing.T) {
	r := NewRegistry(&fakeNotifier{})
	lobbyID, _, _ := r.CreateLobby("conn1", "Alice", "")
	r.JoinLobby("conn2", lobbyID, "Bob", "")
	if _, err := r.MaybeStartSession(lobbyID); err != nil {
		t.Fatalf("unexpected error starting session: %v", err)
	}

	_, _, err := r.JoinLobby("conn3", lobbyID, "Carol", "")
	if !errors.Is(err, ErrNotAdmitted) {
		t.Fatalf("expected ErrNotAdmitted once a session has started, got %v", err)
	}
}

func TestLeaveBeforeSessionRemovesSoleOccupantAndCleansUp(t *testing.T) {
	r := NewRegistry(&fakeNotifier{})
	lobbyID, _, _ := r.CreateLobby("conn1", "Alice", "")
	r.Leave("conn1")

	if _, ok := r.lobbies[lobbyID]; ok {
		t.Fatal("expected lobby to be cleaned up once its sole occupant leaves")
	}
}

func TestReconnectRejectsWithoutTrackerEntry(t *testing.T) {
	r := NewRegistry(&fakeNotifier{})
	lobbyID, p1ID, _ := r.CreateLobby("conn1", "Alice", "")
	r.JoinLobby("conn2", lobbyID, "Bob", "")
	r.MaybeStartSession(lobbyID)

	_, err := r.Reconnect("conn1-new", lobbyID, p1ID)
	if !errors.Is(err, ErrNoReconnectRecord) {
		t.Fatalf("expected ErrNoReconnectRecord without an open disconnect, got %v", err)
	}
}

func TestDisconnectThenReconnectSucceedsWithinWindow(t *testing.T) {
	notifier := &fakeNotifier{}
	r := NewRegistry(notifier)
	lobbyID, p1ID, _ := r.CreateLobby("conn1", "Alice", "")
	_, _, _ = r.JoinLobby("conn2", lobbyID, "Bob", "")
	if _, err := r.MaybeStartSession(lobbyID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	r.Disconnect("conn1")
	if !r.reconnections.Has(p1ID, lobbyID) {
		t.Fatal("expected a reconnect record after disconnect")
	}

	snap, err := r.Reconnect("conn1-new", lobbyID, p1ID)
	if err != nil {
		t.Fatalf("unexpected error reconnecting: %v", err)
	}
	if snap.YourName != "Alice" {
		t.Fatalf("expected snapshot for Alice, got %+v", snap)
	}
	if r.reconnections.Has(p1ID, lobbyID) {
		t.Fatal("expected reconnect record to be cleared after a successful reconnect")
	}
}

// TestReconnectWhileOpponentAlsoAbsentDoesNotResume exercises the state
// reachable when both Players hold independent, still-open reconnect
// windows without the session having been ended — the reveal-phase
// disconnect path opens a tracker entry without the standard path's
// both-disconnected termination check, so both entries can coexist while
// play is still in progress.
func TestReconnectWhileOpponentAlsoAbsentDoesNotResume(t *testing.T) {
	r := NewRegistry(&fakeNotifier{})
	lobbyID, p1ID, _ := r.CreateLobby("conn1", "Alice", "")
	p2ID, _, _ := r.JoinLobby("conn2", lobbyID, "Bob", "")
	if _, err := r.MaybeStartSession(lobbyID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	r.reconnections.Open(p1ID, lobbyID, func() {}, nil)
	r.reconnections.Open(p2ID, lobbyID, func() {}, nil)

	if _, err := r.Reconnect("conn1-new", lobbyID, p1ID); err != nil {
		t.Fatalf("unexpected error reconnecting: %v", err)
	}

	remaining, disconnected := r.OpponentDisconnectStatus(lobbyID, p1ID)
	if !disconnected {
		t.Fatal("expected opponent to still be reported disconnected")
	}
	if remaining <= 0 || remaining > 120 {
		t.Fatalf("expected a remaining budget in (0,120], got %d", remaining)
	}
}

func TestOpponentDisconnectStatusReportsNoneWhenBothLive(t *testing.T) {
	r := NewRegistry(&fakeNotifier{})
	lobbyID, p1ID, _ := r.CreateLobby("conn1", "Alice", "")
	r.JoinLobby("conn2", lobbyID, "Bob", "")
	r.MaybeStartSession(lobbyID)

	_, disconnected := r.OpponentDisconnectStatus(lobbyID, p1ID)
	if disconnected {
		t.Fatal("expected no disconnect status while both players are live")
	}
}

func TestDispatchRejectsUnknownConnection(t *testing.T) {
	r := NewRegistry(&fakeNotifier{})
	called := false
	err := r.Dispatch("ghost-conn", func(s *session.Session, playerID string) error {
		called = true
		return nil
	})
	if !errors.Is(err, ErrUnknownConnection) {
		t.Fatalf("expected ErrUnknownConnection, got %v", err)
	}
	if called {
		t.Fatal("fn must not be invoked for an unresolvable connection")
	}
}

func TestGenerateLobbyIDProducesAlphabetCompliantIDs(t *testing.T) {
	r := NewRegistry(&fakeNotifier{})
	for i := 0; i < 20; i++ {
		id, err := r.generateLobbyID()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, ok := validate.LobbyID(id); !ok {
			t.Fatalf("generated id %q is not alphabet-compliant", id)
		}
		r.lobbies[id] = newLobby(id)
	}
}
