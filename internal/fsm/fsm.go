// Package fsm implements the session phase machine: the current Phase, the
// saved Phase used to resume from a pause, and the single-slot
// pendingAction deferred-action mechanism.
package fsm

import "errors"

// Phase is one stage of a duel session.
type Phase int

const (
	Waiting Phase = iota
	Preview
	Sequence
	RoundStart
	Swap
	Reveal
	Paused
	GameOver
)

func (p Phase) String() string {
	switch p {
	case Waiting:
		return "waiting"
	case Preview:
		return "preview"
	case Sequence:
		return "sequence"
	case RoundStart:
		return "round_start"
	case Swap:
		return "swap"
	case Reveal:
		return "reveal"
	case Paused:
		return "paused"
	case GameOver:
		return "game_over"
	default:
		return "unknown"
	}
}

// PendingAction is an opaque deferred-action token. The only action defined
// today is StartRound, set when a round start is requested while a player
// is disconnected.
type PendingAction string

// StartRound is consumed on resume to finish a round transition that was
// deferred because a player was disconnected when it was requested.
const StartRound PendingAction = "startRound"

// ErrTerminal is returned by any transition attempted from GameOver.
var ErrTerminal = errors.New("fsm: session has already ended")

// ErrIllegalTransition is returned when a requested phase change is not
// permitted from the machine's current phase.
var ErrIllegalTransition = errors.New("fsm: illegal transition")

// Machine tracks a Session's current phase, its pre-pause phase, and the
// single pendingAction slot. It is not safe for concurrent use; callers
// serialize access the same way they serialize all other Session state.
type Machine struct {
	current       Phase
	savedForPause Phase
	isPaused      bool
	pending       PendingAction
}

// New builds a Machine in the initial Waiting phase.
func New() *Machine {
	return &Machine{current: Waiting}
}

// Current returns the machine's actual phase. While paused this still
// returns Paused; callers that need "the phase ignoring pause" should use
// EffectivePhase.
func (m *Machine) Current() Phase {
	return m.current
}

// EffectivePhase returns the phase the session is logically in, looking
// through Paused to the saved phase.
func (m *Machine) EffectivePhase() Phase {
	if m.isPaused {
		return m.savedForPause
	}
	return m.current
}

// IsPaused reports whether the machine is currently paused.
func (m *Machine) IsPaused() bool {
	return m.isPaused
}

// transitionTable enumerates every legal non-pause, non-terminal edge.
var transitionTable = map[Phase][]Phase{
	Waiting:    {Preview},
	Preview:    {Sequence},
	Sequence:   {RoundStart},
	RoundStart: {Swap},
	Swap:       {Reveal},
	Reveal:     {RoundStart, GameOver},
}

// To attempts a transition to next. Any phase may move to GameOver (the
// end-game/end-by-disconnect transition) except GameOver itself, which is
// terminal. Moving to Paused must go through Pause, not To.
func (m *Machine) To(next Phase) error {
	if m.current == GameOver {
		return ErrTerminal
	}
	if next == GameOver {
		m.current = GameOver
		m.isPaused = false
		return nil
	}
	for _, allowed := range transitionTable[m.current] {
		if allowed == next {
			m.current = next
			return nil
		}
	}
	return ErrIllegalTransition
}

// Pause saves the current phase and moves the machine to Paused. Pausing
// from GameOver or while already paused is a no-op error.
func (m *Machine) Pause() error {
	if m.current == GameOver {
		return ErrTerminal
	}
	if m.isPaused {
		return ErrIllegalTransition
	}
	m.savedForPause = m.current
	m.isPaused = true
	m.current = Paused
	return nil
}

// Resume restores the phase saved at the last Pause.
func (m *Machine) Resume() error {
	if !m.isPaused {
		return ErrIllegalTransition
	}
	m.current = m.savedForPause
	m.isPaused = false
	return nil
}

// SetPending stores a deferred action in the single-slot queue, overwriting
// whatever was there before.
func (m *Machine) SetPending(action PendingAction) {
	m.pending = action
}

// TakePending returns and clears the pending action slot. The returned bool
// is false if the slot was empty.
func (m *Machine) TakePending() (PendingAction, bool) {
	if m.pending == "" {
		return "", false
	}
	action := m.pending
	m.pending = ""
	return action, true
}
