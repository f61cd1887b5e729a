// Package player holds the per-participant mutable state of a duel: hand,
// committed sequence, score, swap budget, readiness, and liveness.
package player

import (
	"errors"

	"github.com/rpsduel/server/internal/carddeck"
)

// MaxSwapsPerGame bounds how many adjacent swaps a Player may make across
// an entire session.
const MaxSwapsPerGame = 3

var (
	// ErrSequenceAlreadySet is returned by SetSequence once a sequence has
	// already been committed.
	ErrSequenceAlreadySet = errors.New("player: sequence already set")
	// ErrNotPermutation is returned by SetSequence when seq is not a
	// permutation of hand by card identity.
	ErrNotPermutation = errors.New("player: sequence is not a permutation of hand")
	// ErrCannotSwap is returned by SwapCards when canSwap() is false.
	ErrCannotSwap = errors.New("player: swap budget exhausted or already swapped this round")
	// ErrSwapNotAdjacent is returned by SwapCards for any pair of indices
	// that isn't exactly one apart.
	ErrSwapNotAdjacent = errors.New("player: swap indices must be adjacent")
	// ErrSwapOutOfRange is returned by SwapCards for an out-of-bounds index.
	ErrSwapOutOfRange = errors.New("player: swap index out of range")
)

// Player is the mutable state owned exclusively by one Session for the
// lifetime of that Session.
type Player struct {
	ID   string
	Name string

	ConnID       string
	Disconnected bool

	hand        []carddeck.Card
	sequence    []carddeck.Card
	sequenceSet bool

	Score            int
	SwapsUsed        int
	SwappedThisRound bool
	Ready            bool
}

// New builds a Player bound to id, name, and the connection that admitted
// them.
func New(id, name, connID string) *Player {
	return &Player{ID: id, Name: name, ConnID: connID}
}

// SetHand deals cards to the player. It is called exactly once per session,
// at session start.
func (p *Player) SetHand(cards []carddeck.Card) {
	p.hand = cards
}

// Hand returns the player's dealt six-card hand.
func (p *Player) Hand() []carddeck.Card {
	return p.hand
}

// SequenceSet reports whether the player has committed an ordering.
func (p *Player) SequenceSet() bool {
	return p.sequenceSet
}

// Sequence returns the committed ordering, or nil if none has been set.
func (p *Player) Sequence() []carddeck.Card {
	return p.sequence
}

// SetSequence accepts the player's committed ordering once. It succeeds iff
// no sequence has been set yet and seq is a permutation of hand by card
// identity.
func (p *Player) SetSequence(seq []carddeck.Card) error {
	if p.sequenceSet {
		return ErrSequenceAlreadySet
	}
	if !carddeck.IsPermutationOf(seq, p.hand) {
		return ErrNotPermutation
	}
	p.sequence = seq
	p.sequenceSet = true
	return nil
}

// AutoSetSequence force-commits a shuffled copy of the hand; used when the
// sequence timer expires before the player has submitted an ordering.
func (p *Player) AutoSetSequence() {
	if p.sequenceSet {
		return
	}
	p.sequence = carddeck.Shuffle(p.hand)
	p.sequenceSet = true
}

// CanSwap reports whether the player may still perform an adjacent swap
// this round.
func (p *Player) CanSwap() bool {
	return p.SwapsUsed < MaxSwapsPerGame && !p.SwappedThisRound
}

// SwapCards exchanges the cards at absolute sequence positions i and j. The
// caller is responsible for translating a transport-relative position into
// the absolute index (see the session package); i and j here are already
// absolute.
func (p *Player) SwapCards(i, j int) error {
	if !p.CanSwap() {
		return ErrCannotSwap
	}
	diff := i - j
	if diff != 1 && diff != -1 {
		return ErrSwapNotAdjacent
	}
	if i < 0 || i >= len(p.sequence) || j < 0 || j >= len(p.sequence) {
		return ErrSwapOutOfRange
	}
	p.sequence[i], p.sequence[j] = p.sequence[j], p.sequence[i]
	p.SwapsUsed++
	p.SwappedThisRound = true
	return nil
}

// ResetRound clears the per-round flags at a round boundary.
func (p *Player) ResetRound() {
	p.SwappedThisRound = false
	p.Ready = false
}

// MarkDisconnected flags the player as having a dead connection.
func (p *Player) MarkDisconnected() {
	p.Disconnected = true
}

// MarkConnected rebinds the player to a new connection and clears the
// disconnected flag.
func (p *Player) MarkConnected(newConnID string) {
	p.ConnID = newConnID
	p.Disconnected = false
}
