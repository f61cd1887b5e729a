// Package session implements the duel itself: dealing, preview, sequence
// commitment, the six-round swap/reveal loop, scoring, pausing for
// disconnects, and the reconnection snapshot. A Session owns its two
// Players, its Timer, and its phase machine exclusively; nothing outside
// this package mutates them directly.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/rpsduel/server/internal/carddeck"
	"github.com/rpsduel/server/internal/fsm"
	"github.com/rpsduel/server/internal/player"
	"github.com/rpsduel/server/internal/protocol"
	"github.com/rpsduel/server/internal/rules"
	"github.com/rpsduel/server/internal/timer"
)

// Configuration constants from §6.4.
const (
	TotalRounds      = 6
	MaxSwapsPerRound = 1
	PreviewTimeout   = 30 * time.Second
	SequenceTimeout  = 60 * time.Second
	SwapTimeout      = 20 * time.Second
	ContinueTimeout  = 5 * time.Second
	PostResumeYield  = 100 * time.Millisecond
)

var (
	// ErrWrongPhase is returned by any handler invoked outside the phase it
	// applies to; per §7 it is a silent-drop condition, not a user-facing
	// error, but callers may log it.
	ErrWrongPhase = errors.New("session: action not valid in current phase")
	// ErrUnknownPlayer is returned when a caller id doesn't match either
	// roster seat.
	ErrUnknownPlayer = errors.New("session: unknown player id")
	// ErrAlreadyStarted is returned by Start on a non-waiting session.
	ErrAlreadyStarted = errors.New("session: already started")
	// ErrAlreadyCompleted guards every handler once the session has ended.
	ErrAlreadyCompleted = errors.New("session: already completed")
)

// RoundResult records the outcome of one completed round.
type RoundResult struct {
	Round          int
	Cards          [2]carddeck.Card
	WinnerPlayerID string // empty for a draw
	Explanation    string
	Scores         [2]int
}

// Notifier is the narrow interface Session uses to emit outbound events;
// the transport adapter and LobbyRegistry implement it.
type Notifier interface {
	SendTo(playerID, eventType string, payload interface{})
}

// Session is safe for concurrent use: every exported method that touches
// mutable state takes the internal mutex, so inbound events for a given
// session may arrive from any goroutine without racing.
type Session struct {
	mu sync.Mutex

	LobbyID string
	players [2]*player.Player

	sm    *fsm.Machine
	timer *timer.Countdown

	currentRound int
	history      []RoundResult

	previewReady  map[string]bool
	continueReady map[string]bool

	completed bool

	notify Notifier
}

// New constructs a Session owning p0 and p1 in fixed roster order.
func New(lobbyID string, p0, p1 *player.Player, notify Notifier) *Session {
	return &Session{
		LobbyID:       lobbyID,
		players:       [2]*player.Player{p0, p1},
		sm:            fsm.New(),
		previewReady:  make(map[string]bool, 2),
		continueReady: make(map[string]bool, 2),
		notify:        notify,
	}
}

// Completed reports whether the session has ended.
func (s *Session) Completed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completed
}

// Phase returns the session's effective phase (looking through a pause).
func (s *Session) Phase() fsm.Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sm.EffectivePhase()
}

func (s *Session) indexOf(playerID string) (int, bool) {
	for i, p := range s.players {
		if p.ID == playerID {
			return i, true
		}
	}
	return 0, false
}

func (s *Session) opponent(i int) *player.Player {
	return s.players[1-i]
}

// Start deals hands and begins the preview phase.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sm.Current() != fsm.Waiting {
		return ErrAlreadyStarted
	}
	for _, p := range s.players {
		p.SetHand(carddeck.Deal())
	}
	if err := s.sm.To(fsm.Preview); err != nil {
		return err
	}
	for i, p := range s.players {
		s.notify.SendTo(p.ID, protocol.TypeCardsPreview, protocol.CardsPreviewOut{
			YourHand:      p.Hand(),
			OpponentHand:  s.opponent(i).Hand(),
			PreviewTimeMs: int(PreviewTimeout / time.Millisecond),
		})
	}
	s.armTimer(PreviewTimeout,
		func(secs int) { s.broadcast(protocol.TypePreviewTimerUpdate, protocol.PreviewTimerUpdateOut{SecondsLeft: secs}) },
		s.onPreviewTimeout,
	)
	return nil
}

// armTimer replaces the session's single Timer with a fresh countdown.
// Callers must hold s.mu. onExpire runs on the timer's own goroutine, so it
// re-acquires s.mu itself.
func (s *Session) armTimer(d time.Duration, onTick func(int), onExpire func()) {
	if s.timer != nil {
		s.timer.Clear()
	}
	s.timer = timer.New(d, onTick, onExpire)
	s.timer.Start()
}

func (s *Session) clearTimer() {
	if s.timer != nil {
		s.timer.Clear()
	}
}

// HandlePreviewReady records a preview-ready signal; when both players
// have signaled, or the timer later expires, the session moves to Sequence.
func (s *Session) HandlePreviewReady(playerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.completed {
		return ErrAlreadyCompleted
	}
	if s.sm.EffectivePhase() != fsm.Preview {
		return ErrWrongPhase
	}
	if _, ok := s.indexOf(playerID); !ok {
		return ErrUnknownPlayer
	}
	s.previewReady[playerID] = true
	s.notify.SendTo(s.opponentID(playerID), protocol.TypeOpponentPreviewReady, protocol.OpponentPreviewReadyOut{})
	if len(s.previewReady) == 2 {
		s.beginSequencePhaseLocked()
	}
	return nil
}

func (s *Session) opponentID(playerID string) string {
	i, _ := s.indexOf(playerID)
	return s.opponent(i).ID
}

func (s *Session) onPreviewTimeout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.completed || s.sm.EffectivePhase() != fsm.Preview {
		return
	}
	s.beginSequencePhaseLocked()
}

func (s *Session) beginSequencePhaseLocked() {
	s.previewReady = make(map[string]bool, 2)
	_ = s.sm.To(fsm.Sequence)
	s.armTimer(SequenceTimeout, nil, s.onSequenceTimeout)
}

// HandleSetSequence commits a player's ordering. When both are committed,
// the session moves to round_start and the first round begins.
func (s *Session) HandleSetSequence(playerID string, seq []carddeck.Card) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.completed {
		return ErrAlreadyCompleted
	}
	if s.sm.EffectivePhase() != fsm.Sequence {
		return ErrWrongPhase
	}
	i, ok := s.indexOf(playerID)
	if !ok {
		return ErrUnknownPlayer
	}
	if err := s.players[i].SetSequence(seq); err != nil {
		return err
	}
	s.notify.SendTo(playerID, protocol.TypeSequenceConfirmed, protocol.SequenceConfirmedOut{})
	if s.players[0].SequenceSet() && s.players[1].SequenceSet() {
		s.beginRoundLoopLocked()
	}
	return nil
}

func (s *Session) onSequenceTimeout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.completed || s.sm.EffectivePhase() != fsm.Sequence {
		return
	}
	for _, p := range s.players {
		p.AutoSetSequence()
	}
	s.beginRoundLoopLocked()
}

func (s *Session) beginRoundLoopLocked() {
	for _, p := range s.players {
		s.notify.SendTo(p.ID, protocol.TypeGameStart, protocol.GameStartOut{YourSequenceLength: len(p.Sequence())})
	}
	_ = s.sm.To(fsm.RoundStart)
	s.startRoundLocked()
}

// startRoundLocked transitions round_start -> swap and arms the swap timer.
// If any player is disconnected, the transition is deferred via the
// pendingAction slot instead (§4.4 pause interlock).
func (s *Session) startRoundLocked() {
	if s.players[0].Disconnected || s.players[1].Disconnected {
		s.sm.SetPending(fsm.StartRound)
		_ = s.sm.Pause()
		return
	}
	s.broadcast(protocol.TypeRoundStart, protocol.RoundStartOut{Round: s.currentRound + 1})
	_ = s.sm.To(fsm.Swap)
	for _, p := range s.players {
		p.ResetRound()
	}
	s.armTimer(SwapTimeout,
		func(secs int) { s.broadcast(protocol.TypeTimerUpdate, protocol.TimerUpdateOut{SecondsLeft: secs}) },
		s.onSwapTimeout,
	)
}

// translateSwapPosition converts a transport-relative index (0 = the card
// scheduled for the current round) into an absolute sequence index.
func (s *Session) translateSwapPosition(pos int) int {
	return pos + s.currentRound
}

// HandleSwapCards performs one adjacent swap, translating from the
// remaining-cards frame into the player's absolute sequence.
func (s *Session) HandleSwapCards(playerID string, pos1, pos2 int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.completed {
		return ErrAlreadyCompleted
	}
	if s.sm.EffectivePhase() != fsm.Swap {
		return ErrWrongPhase
	}
	i, ok := s.indexOf(playerID)
	if !ok {
		return ErrUnknownPlayer
	}
	abs1, abs2 := s.translateSwapPosition(pos1), s.translateSwapPosition(pos2)
	if abs1 < s.currentRound || abs2 < s.currentRound {
		s.notify.SendTo(playerID, protocol.TypeSwapError, protocol.SwapErrorOut{Message: player.ErrSwapOutOfRange.Error()})
		return player.ErrSwapOutOfRange
	}
	p := s.players[i]
	if err := p.SwapCards(abs1, abs2); err != nil {
		s.notify.SendTo(playerID, protocol.TypeSwapError, protocol.SwapErrorOut{Message: err.Error()})
		return err
	}
	p.Ready = true
	s.notify.SendTo(playerID, protocol.TypeSwapConfirmed, protocol.SwapConfirmedOut{Pos1: pos1, Pos2: pos2})
	s.notify.SendTo(s.opponent(i).ID, protocol.TypeOpponentSwapped, protocol.OpponentSwappedOut{})
	s.maybeAdvanceToRevealLocked()
	return nil
}

// HandleSkipSwap marks a player ready without performing a swap.
func (s *Session) HandleSkipSwap(playerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.completed {
		return ErrAlreadyCompleted
	}
	if s.sm.EffectivePhase() != fsm.Swap {
		return ErrWrongPhase
	}
	i, ok := s.indexOf(playerID)
	if !ok {
		return ErrUnknownPlayer
	}
	s.players[i].Ready = true
	s.notify.SendTo(playerID, protocol.TypeSkipConfirmed, protocol.SkipConfirmedOut{})
	s.maybeAdvanceToRevealLocked()
	return nil
}

func (s *Session) maybeAdvanceToRevealLocked() {
	if s.players[0].Ready && s.players[1].Ready {
		s.revealLocked()
	}
}

func (s *Session) onSwapTimeout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.completed || s.sm.EffectivePhase() != fsm.Swap {
		return
	}
	s.revealLocked()
}

// revealLocked computes the round outcome, appends history, and arms the
// continue timer.
func (s *Session) revealLocked() {
	_ = s.sm.To(fsm.Reveal)
	card0 := s.players[0].Sequence()[s.currentRound]
	card1 := s.players[1].Sequence()[s.currentRound]

	outcome := rules.Compare(card0.Kind, card1.Kind)
	explanation := rules.Explain(card0.Kind, card1.Kind)
	var winnerID string
	switch outcome {
	case rules.LeftWins:
		winnerID = s.players[0].ID
		s.players[0].Score++
	case rules.RightWins:
		winnerID = s.players[1].ID
		s.players[1].Score++
	}

	s.currentRound++
	result := RoundResult{
		Round:          s.currentRound,
		Cards:          [2]carddeck.Card{card0, card1},
		WinnerPlayerID: winnerID,
		Explanation:    explanation,
		Scores:         [2]int{s.players[0].Score, s.players[1].Score},
	}
	s.history = append(s.history, result)

	for i, p := range s.players {
		opp := s.opponent(i)
		s.notify.SendTo(p.ID, protocol.TypeRoundResult, protocol.RoundResultOut{
			Round:          result.Round,
			YourCard:       result.Cards[i],
			OpponentCard:   result.Cards[1-i],
			WinnerPlayerID: winnerID,
			Explanation:    explanation,
			YourScore:      p.Score,
			OpponentScore:  opp.Score,
		})
	}

	s.continueReady = make(map[string]bool, 2)
	s.armTimer(ContinueTimeout,
		func(secs int) { s.broadcast(protocol.TypeContinueCountdown, protocol.ContinueCountdownOut{SecondsLeft: secs}) },
		s.onContinueTimeout,
	)
}

// HandleContinueRound records a reveal-phase continue signal.
func (s *Session) HandleContinueRound(playerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.completed {
		return ErrAlreadyCompleted
	}
	if s.sm.EffectivePhase() != fsm.Reveal {
		return ErrWrongPhase
	}
	if _, ok := s.indexOf(playerID); !ok {
		return ErrUnknownPlayer
	}
	s.continueReady[playerID] = true
	s.notify.SendTo(s.opponentID(playerID), protocol.TypeOpponentContinued, protocol.OpponentContinuedOut{})
	if len(s.continueReady) == 2 {
		s.advanceAfterRevealLocked()
	}
	return nil
}

func (s *Session) onContinueTimeout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.completed || s.sm.EffectivePhase() != fsm.Reveal {
		return
	}
	s.advanceAfterRevealLocked()
}

func (s *Session) advanceAfterRevealLocked() {
	if s.currentRound >= TotalRounds {
		s.endGameLocked(false)
		return
	}
	_ = s.sm.To(fsm.RoundStart)
	s.startRoundLocked()
}

// endGameLocked finalizes the session, declaring a winner by score (ties
// produce no winner); byDisconnect only sets the flag on the gameEnd events.
// An end decided by a disconnect goes through EndByDisconnect instead.
func (s *Session) endGameLocked(byDisconnect bool) {
	s.clearTimer()
	_ = s.sm.To(fsm.GameOver)
	s.completed = true

	for i, p := range s.players {
		opp := s.opponent(i)
		s.notify.SendTo(p.ID, protocol.TypeGameEnd, protocol.GameEndOut{
			YouWon:        p.Score > opp.Score,
			YourScore:     p.Score,
			OpponentScore: opp.Score,
			ByDisconnect:  byDisconnect,
		})
	}
}

// EndByDisconnect ends the session declaring winnerID the winner because
// the opponent's reconnect window expired, or declares no winner if both
// sides are gone (§4.6 two-side disconnect).
func (s *Session) EndByDisconnect(winnerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.completed {
		return
	}
	s.clearTimer()
	_ = s.sm.To(fsm.GameOver)
	s.completed = true

	for _, p := range s.players {
		if winnerID == "" {
			continue
		}
		opp := s.opponent(s.mustIndex(p.ID))
		s.notify.SendTo(p.ID, protocol.TypeGameEnd, protocol.GameEndOut{
			YouWon:        p.ID == winnerID,
			YourScore:     p.Score,
			OpponentScore: opp.Score,
			ByDisconnect:  true,
		})
	}
}

func (s *Session) mustIndex(playerID string) int {
	i, _ := s.indexOf(playerID)
	return i
}

// Pause pauses the session's phase and timer; used on a standard (non-
// reveal) disconnect. Returns the remaining timer seconds at the moment of
// pause, for diagnostic/snapshot purposes.
func (s *Session) Pause() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.completed || s.sm.IsPaused() {
		return s.timerRemainingLocked()
	}
	if s.timer != nil {
		s.timer.Pause()
	}
	_ = s.sm.Pause()
	return s.timerRemainingLocked()
}

// Resume resumes a paused session, restoring its timer and, if a round
// start was deferred via pendingAction, finishing that transition after a
// brief yield so the resume notification lands first. It reports whether the
// session was actually paused (and thus actually resumed); callers use this
// to decide whether a resume notification is warranted.
func (s *Session) Resume() bool {
	s.mu.Lock()
	if s.completed || !s.sm.IsPaused() {
		s.mu.Unlock()
		return false
	}
	_ = s.sm.Resume()
	if s.timer != nil {
		s.timer.Resume()
	}
	action, hasPending := s.sm.TakePending()
	s.mu.Unlock()

	if hasPending && action == fsm.StartRound {
		time.AfterFunc(PostResumeYield, func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if s.completed {
				return
			}
			s.startRoundLocked()
		})
	}
	return true
}

func (s *Session) timerRemainingLocked() int {
	if s.timer == nil {
		return 0
	}
	return s.timer.GetRemaining()
}

// InReveal reports whether the session is currently in the Reveal phase,
// used by the caller to decide whether a disconnect should pause the
// session (§4.6: reveal-phase disconnects do not pause).
func (s *Session) InReveal() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sm.EffectivePhase() == fsm.Reveal
}

// PlayerIDs returns both roster identities in fixed order.
func (s *Session) PlayerIDs() [2]string {
	return [2]string{s.players[0].ID, s.players[1].ID}
}

// HandFor returns playerID's dealt hand, for validating a candidate sequence
// against it before the commit ever reaches HandleSetSequence (§6.3).
func (s *Session) HandFor(playerID string) ([]carddeck.Card, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.indexOf(playerID)
	if !ok {
		return nil, false
	}
	return s.players[i].Hand(), true
}

// CardsRemaining returns how many cards playerID has yet to play this
// session, the bound swap positions must fall within (§6.3).
func (s *Session) CardsRemaining(playerID string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.indexOf(playerID); !ok {
		return 0, false
	}
	return carddeck.CardsPerPlayer - s.currentRound, true
}

// Snapshot builds the full reconnection resync payload for requesterID, as
// specified in §4.4's state-snapshot contract.
func (s *Session) Snapshot(requesterID string) (protocol.ReconnectedSnapshotOut, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.indexOf(requesterID)
	if !ok {
		return protocol.ReconnectedSnapshotOut{}, ErrUnknownPlayer
	}
	me, opp := s.players[i], s.opponent(i)
	phase := s.sm.EffectivePhase()

	out := protocol.ReconnectedSnapshotOut{
		Phase:             phase.String(),
		CurrentRound:      s.currentRound,
		YourScore:         me.Score,
		YourSwapsUsed:     me.SwapsUsed,
		OpponentScore:     opp.Score,
		OpponentSwapsUsed: opp.SwapsUsed,
		RoundHistory:      s.historyOutLocked(i),
		TimerSecondsLeft:  s.timerRemainingLocked(),
		YourName:          me.Name,
		OpponentName:      opp.Name,
		YourReady:         s.readyForLocked(me, phase),
		OpponentReady:     s.readyForLocked(opp, phase),
		YourHand:          me.Hand(),
	}
	if me.SequenceSet() && s.currentRound <= len(me.Sequence()) {
		out.YourUpcomingCards = me.Sequence()[s.currentRound:]
	}
	if phase == fsm.Preview {
		out.OpponentHand = opp.Hand()
	}
	return out, nil
}

func (s *Session) readyForLocked(p *player.Player, phase fsm.Phase) bool {
	switch phase {
	case fsm.Preview:
		return s.previewReady[p.ID]
	case fsm.Reveal:
		return s.continueReady[p.ID]
	default:
		return p.Ready
	}
}

func (s *Session) historyOutLocked(me int) []protocol.RoundResultOut {
	out := make([]protocol.RoundResultOut, 0, len(s.history))
	for _, r := range s.history {
		out = append(out, protocol.RoundResultOut{
			Round:          r.Round,
			YourCard:       r.Cards[me],
			OpponentCard:   r.Cards[1-me],
			WinnerPlayerID: r.WinnerPlayerID,
			Explanation:    r.Explanation,
			YourScore:      r.Scores[me],
			OpponentScore:  r.Scores[1-me],
		})
	}
	return out
}

func (s *Session) broadcast(eventType string, payload interface{}) {
	for _, p := range s.players {
		s.notify.SendTo(p.ID, eventType, payload)
	}
}
