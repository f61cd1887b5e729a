// Package lobby implements the LobbyRegistry: the map of lobby id to lobby
// context, the map of connection id to lobby id, and the admission/rejoin/
// forfeit dispatch described in §4.5-§4.6. It is the only package that
// constructs a session.Session, since seating two players is the
// registry's responsibility.
package lobby

import (
	"crypto/rand"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rpsduel/server/internal/player"
	"github.com/rpsduel/server/internal/protocol"
	"github.com/rpsduel/server/internal/reconnect"
	"github.com/rpsduel/server/internal/session"
	"github.com/rpsduel/server/internal/validate"
)

// MaxRosterSize is the most Players a Lobby ever seats.
const MaxRosterSize = 2

var (
	// ErrLobbyNotFound is returned when a lookup by id misses.
	ErrLobbyNotFound = errors.New("lobby: not found")
	// ErrLobbyFull is returned by Join when both seats are occupied by a
	// new identity.
	ErrLobbyFull = errors.New("lobby: full")
	// ErrNotAdmitted is returned by Join when a Session has started and
	// the caller's identity was never on the roster.
	ErrNotAdmitted = errors.New("lobby: identity not admitted to this session")
	// ErrInvalidInput is returned for any malformed name/id input.
	ErrInvalidInput = errors.New("lobby: invalid input")
	// ErrNoReconnectRecord is returned by explicit Reconnect when the
	// tracker holds no entry for (playerID, lobbyID).
	ErrNoReconnectRecord = errors.New("lobby: no reconnect record for this identity")
	// ErrUnknownConnection is returned when a connection id has no bound
	// lobby.
	ErrUnknownConnection = errors.New("lobby: connection not bound to a lobby")
)

// Lobby is a waiting room for at most two Players, optionally backed by an
// active Session once both seats are filled.
type Lobby struct {
	Code             string
	Roster           []*player.Player
	Session          *session.Session
	AllowedPlayerIDs map[string]struct{}
}

func newLobby(code string) *Lobby {
	return &Lobby{Code: code, AllowedPlayerIDs: make(map[string]struct{})}
}

func (l *Lobby) findByID(playerID string) (*player.Player, bool) {
	for _, p := range l.Roster {
		if p.ID == playerID {
			return p, true
		}
	}
	return nil, false
}

// Notifier is the narrow interface the registry uses to emit outbound
// events to a specific connection.
type Notifier interface {
	SendTo(connID, eventType string, payload interface{})
}

// Registry owns every Lobby and the connection-to-lobby binding. It also
// owns the shared ReconnectTracker, since reconnection is fundamentally a
// cross-lobby concern (an identity disconnected from one lobby must not be
// confused with an unrelated one).
type Registry struct {
	mu            sync.RWMutex
	lobbies       map[string]*Lobby
	connToLobby   map[string]string
	connToPlayer  map[string]string
	notifier      Notifier
	reconnections *reconnect.Tracker
}

// NewRegistry builds an empty Registry that emits outbound events through
// notifier.
func NewRegistry(notifier Notifier) *Registry {
	return &Registry{
		lobbies:       make(map[string]*Lobby),
		connToLobby:   make(map[string]string),
		connToPlayer:  make(map[string]string),
		notifier:      notifier,
		reconnections: reconnect.New(),
	}
}

// sendTo implements session.Notifier by resolving a player id back to its
// currently bound connection id.
func (r *Registry) sendTo(playerID, eventType string, payload interface{}) {
	r.mu.RLock()
	connID := ""
	for c, p := range r.connToPlayer {
		if p == playerID {
			connID = c
			break
		}
	}
	r.mu.RUnlock()
	if connID == "" {
		return
	}
	r.notifier.SendTo(connID, eventType, payload)
}

// generateLobbyID performs rejection sampling over the lobby alphabet
// until it finds an id not already in use. Callers must hold r.mu.
func (r *Registry) generateLobbyID() (string, error) {
	const maxAttempts = 1000
	alphabet := validate.LobbyIDAlphabet
	buf := make([]byte, validate.LobbyIDLength)
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("lobby: reading random bytes: %w", err)
		}
		id := make([]byte, validate.LobbyIDLength)
		for i, b := range buf {
			id[i] = alphabet[int(b)%len(alphabet)]
		}
		candidate := string(id)
		if _, exists := r.lobbies[candidate]; !exists {
			return candidate, nil
		}
	}
	return "", errors.New("lobby: exhausted id generation attempts")
}

func defaultPlayerID() string {
	return "player_" + uuid.NewString()[:8] + "_" + uuid.NewString()[:8]
}

// resolvePlayerID validates a caller-supplied id, or mints a fresh one.
func resolvePlayerID(raw string) (string, error) {
	if raw == "" {
		return defaultPlayerID(), nil
	}
	if !validate.PlayerID(raw) {
		return "", ErrInvalidInput
	}
	return raw, nil
}

// CreateLobby mints a new lobby, seats the caller as its sole occupant, and
// binds connID to both the lobby and the new player identity.
func (r *Registry) CreateLobby(connID, rawName, rawPlayerID string) (lobbyID, playerID string, err error) {
	name := validate.PlayerName(rawName)
	playerID, err = resolvePlayerID(rawPlayerID)
	if err != nil {
		return "", "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	lobbyID, err = r.generateLobbyID()
	if err != nil {
		return "", "", err
	}

	l := newLobby(lobbyID)
	p := player.New(playerID, name, connID)
	l.Roster = append(l.Roster, p)
	l.AllowedPlayerIDs[playerID] = struct{}{}
	r.lobbies[lobbyID] = l
	r.connToLobby[connID] = lobbyID
	r.connToPlayer[connID] = playerID

	return lobbyID, playerID, nil
}

// JoinLobby seats the caller into an existing lobby, or treats the request
// as a rejoin if the identity is already on the roster.
func (r *Registry) JoinLobby(connID, rawLobbyID, rawName, rawPlayerID string) (playerID string, rejoined bool, err error) {
	lobbyID, ok := validate.LobbyID(rawLobbyID)
	if !ok {
		return "", false, ErrInvalidInput
	}
	name := validate.PlayerName(rawName)
	playerID, err = resolvePlayerID(rawPlayerID)
	if err != nil {
		return "", false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.lobbies[lobbyID]
	if !ok {
		return "", false, ErrLobbyNotFound
	}

	if existing, found := l.findByID(playerID); found {
		existing.MarkConnected(connID)
		r.connToLobby[connID] = lobbyID
		r.connToPlayer[connID] = playerID
		r.reconnections.Clear(playerID)
		return playerID, true, nil
	}

	if l.Session != nil {
		if _, admitted := l.AllowedPlayerIDs[playerID]; !admitted {
			return "", false, ErrNotAdmitted
		}
	}

	r.evictDeadSoleOccupantLocked(l)

	if len(l.Roster) >= MaxRosterSize {
		return "", false, ErrLobbyFull
	}

	p := player.New(playerID, name, connID)
	l.Roster = append(l.Roster, p)
	l.AllowedPlayerIDs[playerID] = struct{}{}
	r.connToLobby[connID] = lobbyID
	r.connToPlayer[connID] = playerID

	return playerID, false, nil
}

// evictDeadSoleOccupantLocked removes a single disconnected occupant so a
// joining player can take over the lobby as if they had created it.
// Callers must hold r.mu.
func (r *Registry) evictDeadSoleOccupantLocked(l *Lobby) {
	if len(l.Roster) != 1 || !l.Roster[0].Disconnected {
		return
	}
	l.Roster = nil
}

// MaybeStartSession begins a session.Session once both roster seats hold
// live connections. It evicts any dead seat first and returns false
// without starting if fewer than two live players remain.
func (r *Registry) MaybeStartSession(lobbyID string) (started bool, err error) {
	r.mu.Lock()
	l, ok := r.lobbies[lobbyID]
	if !ok {
		r.mu.Unlock()
		return false, ErrLobbyNotFound
	}
	if l.Session != nil {
		r.mu.Unlock()
		return false, nil
	}

	live := make([]*player.Player, 0, len(l.Roster))
	var survivor *player.Player
	for _, p := range l.Roster {
		if !p.Disconnected {
			live = append(live, p)
			survivor = p
		}
	}
	evicted := len(live) != len(l.Roster)
	l.Roster = live
	r.mu.Unlock()

	if len(live) < MaxRosterSize {
		if evicted && survivor != nil {
			r.sendTo(survivor.ID, protocol.TypeOpponentLeft, protocol.OpponentLeftOut{})
		}
		return false, nil
	}

	r.mu.Lock()

	s := session.New(lobbyID, live[0], live[1], sendToFunc(r.sendTo))
	l.Session = s
	r.mu.Unlock()

	return true, s.Start()
}

// sendToFunc adapts a plain function to the session.Notifier interface.
type sendToFunc func(playerID, eventType string, payload interface{})

func (f sendToFunc) SendTo(playerID, eventType string, payload interface{}) {
	f(playerID, eventType, payload)
}

// lookupByConn resolves a connection id to its lobby, player id, and Lobby.
// Callers must hold at least a read lock.
func (r *Registry) lookupByConn(connID string) (lobbyID, playerID string, l *Lobby, ok bool) {
	lobbyID, ok = r.connToLobby[connID]
	if !ok {
		return "", "", nil, false
	}
	playerID = r.connToPlayer[connID]
	l, ok = r.lobbies[lobbyID]
	return lobbyID, playerID, l, ok
}

// Dispatch resolves connID to its lobby and player, validates the lobby is
// live, and invokes fn with the Session and player id. Any resolution
// failure is reported to the caller rather than forwarded to a Session.
func (r *Registry) Dispatch(connID string, fn func(s *session.Session, playerID string) error) error {
	r.mu.RLock()
	_, playerID, l, ok := r.lookupByConn(connID)
	r.mu.RUnlock()

	if !ok {
		return ErrUnknownConnection
	}
	if l.Session == nil {
		return session.ErrWrongPhase
	}
	if l.Session.Completed() {
		r.forceCleanupLobby(l.Code)
		return session.ErrAlreadyCompleted
	}
	return fn(l.Session, playerID)
}

// Reconnect handles the explicit reconnect event: it requires an open
// ReconnectTracker entry for (playerID, lobbyID) and otherwise fails.
func (r *Registry) Reconnect(connID, rawLobbyID, rawPlayerID string) (snapshot protocol.ReconnectedSnapshotOut, err error) {
	lobbyID, ok := validate.LobbyID(rawLobbyID)
	if !ok || !validate.PlayerID(rawPlayerID) {
		return protocol.ReconnectedSnapshotOut{}, ErrInvalidInput
	}

	r.mu.Lock()
	l, ok := r.lobbies[lobbyID]
	if !ok {
		r.mu.Unlock()
		return protocol.ReconnectedSnapshotOut{}, ErrLobbyNotFound
	}
	if !r.reconnections.Has(rawPlayerID, lobbyID) {
		r.mu.Unlock()
		return protocol.ReconnectedSnapshotOut{}, ErrNoReconnectRecord
	}
	p, found := l.findByID(rawPlayerID)
	if !found {
		r.mu.Unlock()
		return protocol.ReconnectedSnapshotOut{}, ErrNoReconnectRecord
	}
	p.MarkConnected(connID)
	r.connToLobby[connID] = lobbyID
	r.connToPlayer[connID] = rawPlayerID
	r.reconnections.Clear(rawPlayerID)
	s := l.Session
	r.mu.Unlock()

	if s == nil || s.Completed() {
		return protocol.ReconnectedSnapshotOut{}, nil
	}

	if r.opponentLive(s, rawPlayerID) && s.Resume() {
		r.notifyResumed(s, rawPlayerID)
	}
	return s.Snapshot(rawPlayerID)
}

// ResumeIfOpponentLive resumes lobbyID's session on behalf of a player who
// just rebound a connection, but only if their opponent is not itself
// sitting in an open reconnect window — matching the synchronous-rejoin
// path's behavior from the explicit-reconnect path (they are specified to
// have "the same effect").
func (r *Registry) ResumeIfOpponentLive(lobbyID, playerID string) {
	r.mu.RLock()
	l, ok := r.lobbies[lobbyID]
	r.mu.RUnlock()
	if !ok || l.Session == nil || l.Session.Completed() {
		return
	}
	if r.opponentLive(l.Session, playerID) && l.Session.Resume() {
		r.notifyResumed(l.Session, playerID)
	}
}

// notifyResumed tells returningPlayerID's opponent that they're back, then
// tells both Players the session itself has resumed. Only called once
// Resume actually un-paused the session, not on the no-op case where the
// session was never paused to begin with.
func (r *Registry) notifyResumed(s *session.Session, returningPlayerID string) {
	if opponentID := r.otherPlayer(s, returningPlayerID); opponentID != "" {
		r.sendTo(opponentID, protocol.TypeOpponentReconnected, protocol.OpponentReconnectedOut{})
	}
	for _, id := range s.PlayerIDs() {
		r.sendTo(id, protocol.TypeGameResumed, protocol.GameResumedOut{})
	}
}

// OpponentDisconnectStatus reports whether playerID's opponent in lobbyID
// currently has an open reconnect window, and if so, how many seconds
// remain in it. Used to send the returning player an opponentDisconnected
// notice when their own reconnection did not also resume a paused session.
func (r *Registry) OpponentDisconnectStatus(lobbyID, playerID string) (remainingSeconds int, disconnected bool) {
	opponentID, _, found := r.OtherOccupant(lobbyID, playerID)
	if !found || !r.reconnections.Has(opponentID, lobbyID) {
		return 0, false
	}
	return r.reconnections.RemainingSeconds(opponentID), true
}

func (r *Registry) opponentLive(s *session.Session, playerID string) bool {
	ids := s.PlayerIDs()
	for _, id := range ids {
		if id != playerID {
			return !r.reconnections.Has(id, s.LobbyID)
		}
	}
	return false
}

// Disconnect marks connID's bound player as disconnected, pauses the
// session unless it is in reveal, and opens a ReconnectTracker entry.
func (r *Registry) Disconnect(connID string) {
	r.mu.Lock()
	lobbyID, playerID, l, ok := r.lookupByConn(connID)
	delete(r.connToLobby, connID)
	delete(r.connToPlayer, connID)
	if !ok {
		r.mu.Unlock()
		return
	}
	p, found := l.findByID(playerID)
	if !found {
		r.mu.Unlock()
		return
	}
	p.MarkDisconnected()
	s := l.Session
	r.mu.Unlock()

	if s == nil || s.Completed() {
		return
	}

	if s.InReveal() {
		r.openReconnectSilently(playerID, lobbyID, s)
		return
	}

	s.Pause()
	r.openReconnectWithNotify(playerID, lobbyID, s)

	if r.bothDisconnected(s) {
		s.EndByDisconnect("")
		r.forceCleanupLobby(lobbyID)
	}
}

func (r *Registry) bothDisconnected(s *session.Session) bool {
	for _, id := range s.PlayerIDs() {
		if !r.reconnections.Has(id, s.LobbyID) {
			return false
		}
	}
	return true
}

func (r *Registry) openReconnectSilently(playerID, lobbyID string, s *session.Session) {
	r.reconnections.Open(playerID, lobbyID,
		func() { r.onReconnectExpired(playerID, s) },
		nil,
	)
}

func (r *Registry) openReconnectWithNotify(playerID, lobbyID string, s *session.Session) {
	opponentID := r.otherPlayer(s, playerID)
	r.reconnections.Open(playerID, lobbyID,
		func() { r.onReconnectExpired(playerID, s) },
		func() {
			r.sendTo(opponentID, protocol.TypeOpponentDisconnected, protocol.OpponentDisconnectedOut{
				ReconnectTimeoutSeconds: r.reconnections.RemainingSeconds(playerID),
			})
		},
	)
}

func (r *Registry) otherPlayer(s *session.Session, playerID string) string {
	for _, id := range s.PlayerIDs() {
		if id != playerID {
			return id
		}
	}
	return ""
}

func (r *Registry) onReconnectExpired(playerID string, s *session.Session) {
	if s.Completed() {
		return
	}
	winner := r.otherPlayer(s, playerID)
	s.EndByDisconnect(winner)
	r.forceCleanupLobby(s.LobbyID)
}

// Leave handles a voluntary forfeit (leaveLobby or playAgain): remove the
// caller from the roster, clear their reconnect tracking, and if a Session
// is active with a live opponent remaining, end it declaring that opponent
// the winner.
func (r *Registry) Leave(connID string) {
	r.mu.Lock()
	lobbyID, playerID, l, ok := r.lookupByConn(connID)
	delete(r.connToLobby, connID)
	delete(r.connToPlayer, connID)
	if !ok {
		r.mu.Unlock()
		return
	}
	r.reconnections.Clear(playerID)

	for i, p := range l.Roster {
		if p.ID == playerID {
			l.Roster = append(l.Roster[:i], l.Roster[i+1:]...)
			break
		}
	}
	s := l.Session
	r.mu.Unlock()

	if s != nil {
		if !s.Completed() {
			remaining := r.otherPlayer(s, playerID)
			if remaining != "" && !r.reconnections.Has(remaining, lobbyID) {
				s.EndByDisconnect(remaining)
				r.sendTo(remaining, protocol.TypeOpponentLeft, protocol.OpponentLeftOut{})
			} else {
				s.EndByDisconnect("")
			}
		}
		r.forceCleanupLobby(lobbyID)
		return
	}
	r.cleanupLobby(lobbyID)
}

// cleanupLobby removes the lobby entry only once its roster is empty; used
// when a player leaves before a Session has started, so a still-waiting
// solo occupant is not evicted.
func (r *Registry) cleanupLobby(lobbyID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.lobbies[lobbyID]
	if !ok || len(l.Roster) != 0 {
		return
	}
	r.removeLobbyLocked(lobbyID)
}

// forceCleanupLobby tears down a lobby unconditionally: used once its
// Session has ended, since a lobby has no further purpose after that,
// regardless of how many roster entries remain. Idempotent.
func (r *Registry) forceCleanupLobby(lobbyID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.lobbies[lobbyID]; !ok {
		return
	}
	r.removeLobbyLocked(lobbyID)
}

// removeLobbyLocked cancels the session timer (implicitly, via the
// Session already having ended by the time this is called) and reconnect
// entries, and deletes all bookkeeping for lobbyID. Callers must hold
// r.mu.
func (r *Registry) removeLobbyLocked(lobbyID string) {
	for connID, lid := range r.connToLobby {
		if lid == lobbyID {
			delete(r.connToLobby, connID)
			delete(r.connToPlayer, connID)
		}
	}
	r.reconnections.ClearAllForLobby(lobbyID)
	delete(r.lobbies, lobbyID)
}

// NotifyPlayer sends eventType/payload to playerID's current connection, if
// any. lobbyID is accepted for symmetry with the rest of the registry's API
// but playerID alone is sufficient to resolve the connection.
func (r *Registry) NotifyPlayer(lobbyID, playerID, eventType string, payload interface{}) {
	r.sendTo(playerID, eventType, payload)
}

// OtherOccupant returns the id and name of whichever roster member in
// lobbyID is not exceptPlayerID, used to announce a new arrival to the
// player who was already waiting.
func (r *Registry) OtherOccupant(lobbyID, exceptPlayerID string) (id, name string, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, exists := r.lobbies[lobbyID]
	if !exists {
		return "", "", false
	}
	for _, p := range l.Roster {
		if p.ID != exceptPlayerID {
			return p.ID, p.Name, true
		}
	}
	return "", "", false
}

// BindConnection records that connID belongs to playerID's lobby seat
// without altering roster membership; used by the transport layer after a
// successful admission helper elsewhere returns new identities.
func (r *Registry) BindConnection(connID, lobbyID, playerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connToLobby[connID] = lobbyID
	r.connToPlayer[connID] = playerID
}
