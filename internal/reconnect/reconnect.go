// Package reconnect tracks per-player absence records: when a player's
// connection drops, the LobbyRegistry opens a Record here that expires the
// player's seat unless they reattach in time, and optionally delays
// notifying the opponent so a flicker of connectivity doesn't surface an
// overlay the opponent never needed to see.
package reconnect

import (
	"sync"
	"time"
)

// Window is how long a disconnected player may reattach before forfeiting.
const Window = 120 * time.Second

// NotifyGrace is how long the registry waits before telling the opponent a
// player has disconnected, to absorb transient drops.
const NotifyGrace = 2 * time.Second

// Record is one player's open absence: which lobby they were in, when they
// dropped, and the two optional timers governing expiry and delayed
// notification.
type Record struct {
	LobbyID        string
	DisconnectedAt time.Time

	expiryTimer *time.Timer
	notifyTimer *time.Timer
}

// Tracker owns every open Record, keyed by player id. It is safe for
// concurrent use.
type Tracker struct {
	mu      sync.RWMutex
	records map[string]*Record
}

// New builds an empty Tracker.
func New() *Tracker {
	return &Tracker{records: make(map[string]*Record)}
}

// Open starts tracking playerID's absence from lobbyID. onExpiry fires
// once, after Window, unless the record is cleared first. onNotify, if
// non-nil, fires once after NotifyGrace unless cleared first.
func (t *Tracker) Open(playerID, lobbyID string, onExpiry func(), onNotify func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if existing, ok := t.records[playerID]; ok {
		stopTimer(existing.expiryTimer)
		stopTimer(existing.notifyTimer)
	}

	rec := &Record{LobbyID: lobbyID, DisconnectedAt: time.Now()}
	rec.expiryTimer = time.AfterFunc(Window, onExpiry)
	if onNotify != nil {
		rec.notifyTimer = time.AfterFunc(NotifyGrace, onNotify)
	}
	t.records[playerID] = rec
}

// Has reports whether playerID has an open record for lobbyID.
func (t *Tracker) Has(playerID, lobbyID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rec, ok := t.records[playerID]
	return ok && rec.LobbyID == lobbyID
}

// RemainingSeconds returns the integer ceiling of time left in the
// reconnect window for playerID, or 0 if there is no open record.
func (t *Tracker) RemainingSeconds(playerID string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rec, ok := t.records[playerID]
	if !ok {
		return 0
	}
	left := Window - time.Since(rec.DisconnectedAt)
	if left <= 0 {
		return 0
	}
	secs := int(left / time.Second)
	if left%time.Second != 0 {
		secs++
	}
	return secs
}

// Clear cancels and removes playerID's open record, if any. Safe to call
// even when no record exists.
func (t *Tracker) Clear(playerID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if rec, ok := t.records[playerID]; ok {
		stopTimer(rec.expiryTimer)
		stopTimer(rec.notifyTimer)
		delete(t.records, playerID)
	}
}

// ClearAllForLobby cancels and removes every record belonging to lobbyID,
// used on lobby cleanup.
func (t *Tracker) ClearAllForLobby(lobbyID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for playerID, rec := range t.records {
		if rec.LobbyID == lobbyID {
			stopTimer(rec.expiryTimer)
			stopTimer(rec.notifyTimer)
			delete(t.records, playerID)
		}
	}
}

func stopTimer(timer *time.Timer) {
	if timer != nil {
		timer.Stop()
	}
}
