// Package protocol defines the wire-level event protocol as a closed
// tagged union: every inbound and outbound event is one of a fixed set of
// typed payload structs, selected by a Type string and decoded through
// encoding/json.RawMessage rather than passed around as a dynamic
// map[string]interface{}.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/rpsduel/server/internal/carddeck"
)

// Inbound event type tags, one per client -> server event in §6.1.
const (
	TypeCreateLobby   = "createLobby"
	TypeJoinLobby     = "joinLobby"
	TypePreviewReady  = "previewReady"
	TypeSetSequence   = "setSequence"
	TypeSwapCards     = "swapCards"
	TypeSkipSwap      = "skipSwap"
	TypeContinueRound = "continueRound"
	TypeLeaveLobby    = "leaveLobby"
	TypePlayAgain     = "playAgain"
	TypeReconnect     = "reconnect"
)

// Outbound event type tags, one per server -> client event in §6.2.
const (
	TypeLobbyCreated        = "lobbyCreated"
	TypeLobbyJoined         = "lobbyJoined"
	TypePlayerJoined        = "playerJoined"
	TypeCardsPreview        = "cardsPreview"
	TypePreviewTimerUpdate  = "previewTimerUpdate"
	TypeOpponentPreviewReady = "opponentPreviewReady"
	TypeGameStart           = "gameStart"
	TypeSequenceConfirmed   = "sequenceConfirmed"
	TypeRoundStart          = "roundStart"
	TypeTimerUpdate         = "timerUpdate"
	TypeSwapConfirmed       = "swapConfirmed"
	TypeSwapError           = "swapError"
	TypeSkipConfirmed       = "skipConfirmed"
	TypeOpponentSwapped     = "opponentSwapped"
	TypeRoundResult         = "roundResult"
	TypeContinueCountdown   = "continueCountdown"
	TypeOpponentContinued   = "opponentContinued"
	TypeGameEnd             = "gameEnd"
	TypeOpponentDisconnected = "opponentDisconnected"
	TypeOpponentReconnected = "opponentReconnected"
	TypeOpponentLeft        = "opponentLeft"
	TypeGameResumed         = "gameResumed"
	TypeReconnected         = "reconnected"
	TypeError               = "error"
)

// Envelope is the outermost shape of every message crossing the wire: a
// type tag plus the type-specific payload, deferred as raw JSON until the
// tag is known.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Decode unmarshals env.Payload into dst, the concrete payload struct
// matching env.Type.
func (env Envelope) Decode(dst interface{}) error {
	if len(env.Payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Payload, dst); err != nil {
		return fmt.Errorf("protocol: decoding payload for %q: %w", env.Type, err)
	}
	return nil
}

// Encode builds an Envelope carrying payload under the given type tag.
func Encode(typ string, payload interface{}) (Envelope, error) {
	if payload == nil {
		return Envelope{Type: typ}, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("protocol: encoding payload for %q: %w", typ, err)
	}
	return Envelope{Type: typ, Payload: raw}, nil
}

// --- Inbound payloads (§6.1) ---

// CreateLobbyIn seats the caller in a brand-new lobby. Name is accepted
// either as a bare string or as the structured form below; the transport
// adapter normalizes both into this struct before it reaches the registry.
type CreateLobbyIn struct {
	PlayerName string `json:"playerName"`
	PlayerID   string `json:"playerId,omitempty"`
}

// JoinLobbyIn seats the caller in an existing lobby, or rejoins them if
// their identity is already on the roster.
type JoinLobbyIn struct {
	LobbyID    string `json:"lobbyId"`
	PlayerName string `json:"playerName"`
	PlayerID   string `json:"playerId,omitempty"`
}

// SetSequenceIn carries the caller's committed card ordering.
type SetSequenceIn struct {
	Sequence []carddeck.Card `json:"sequence"`
}

// SwapCardsIn carries a swap request in the remaining-cards frame.
type SwapCardsIn struct {
	Pos1 int `json:"pos1"`
	Pos2 int `json:"pos2"`
}

// ReconnectIn carries an explicit reattachment request.
type ReconnectIn struct {
	LobbyID  string `json:"lobbyId"`
	PlayerID string `json:"playerId"`
}

// --- Outbound payloads (§6.2) ---

// LobbyCreatedOut acknowledges a successful createLobby.
type LobbyCreatedOut struct {
	LobbyID  string `json:"lobbyId"`
	PlayerID string `json:"playerId"`
}

// LobbyJoinedOut acknowledges a successful joinLobby or rejoin.
type LobbyJoinedOut struct {
	LobbyID  string `json:"lobbyId"`
	PlayerID string `json:"playerId"`
}

// PlayerJoinedOut notifies the roster that a new player has taken the
// second seat.
type PlayerJoinedOut struct {
	PlayerName string `json:"playerName"`
}

// CardsPreviewOut sends both hands at the start of the preview phase.
type CardsPreviewOut struct {
	YourHand      []carddeck.Card `json:"yourHand"`
	OpponentHand  []carddeck.Card `json:"opponentHand"`
	PreviewTimeMs int             `json:"previewTimeMs"`
}

// PreviewTimerUpdateOut / TimerUpdateOut / ContinueCountdownOut all carry a
// single integer-ceiling seconds-remaining tick.
type PreviewTimerUpdateOut struct {
	SecondsLeft int `json:"secondsLeft"`
}

type TimerUpdateOut struct {
	SecondsLeft int `json:"secondsLeft"`
}

type ContinueCountdownOut struct {
	SecondsLeft int `json:"secondsLeft"`
}

// OpponentPreviewReadyOut tells a player their opponent signaled preview
// readiness.
type OpponentPreviewReadyOut struct{}

// GameStartOut signals that both sequences are committed and play begins.
type GameStartOut struct {
	YourSequenceLength int `json:"yourSequenceLength"`
}

// SequenceConfirmedOut acknowledges a caller's committed sequence.
type SequenceConfirmedOut struct{}

// RoundStartOut announces the start of a round.
type RoundStartOut struct {
	Round int `json:"round"`
}

// SwapConfirmedOut echoes a successful swap back to its caller.
type SwapConfirmedOut struct {
	Pos1 int `json:"pos1"`
	Pos2 int `json:"pos2"`
}

// SwapErrorOut carries a human-readable reason a swap was rejected.
type SwapErrorOut struct {
	Message string `json:"message"`
}

// SkipConfirmedOut acknowledges a caller's skip-swap signal.
type SkipConfirmedOut struct{}

// OpponentSwappedOut tells a player their opponent performed a swap,
// without revealing positions.
type OpponentSwappedOut struct{}

// RoundResultOut reports the outcome of a completed round.
type RoundResultOut struct {
	Round          int            `json:"round"`
	YourCard       carddeck.Card  `json:"yourCard"`
	OpponentCard   carddeck.Card  `json:"opponentCard"`
	WinnerPlayerID string         `json:"winnerPlayerId,omitempty"`
	Explanation    string         `json:"explanation"`
	YourScore      int            `json:"yourScore"`
	OpponentScore  int            `json:"opponentScore"`
}

// OpponentContinuedOut tells a player their opponent signaled continue.
type OpponentContinuedOut struct{}

// GameEndOut reports the terminal outcome of a session.
type GameEndOut struct {
	YouWon      bool `json:"youWon"`
	YourScore   int  `json:"yourScore"`
	OpponentScore int `json:"opponentScore"`
	ByDisconnect bool `json:"byDisconnect"`
}

// OpponentDisconnectedOut notifies a player that their opponent dropped,
// after the grace delay.
type OpponentDisconnectedOut struct {
	ReconnectTimeoutSeconds int `json:"reconnectTimeoutSeconds"`
}

// OpponentReconnectedOut notifies a player that their opponent returned.
type OpponentReconnectedOut struct{}

// OpponentLeftOut notifies a player that their opponent forfeited.
type OpponentLeftOut struct{}

// GameResumedOut notifies both players that a paused session has resumed.
type GameResumedOut struct{}

// ReconnectedSnapshotOut is the full resync payload sent to a returning
// player, per the Session's state-snapshot contract (§4.4).
type ReconnectedSnapshotOut struct {
	Phase             string          `json:"phase"`
	CurrentRound      int             `json:"currentRound"`
	YourScore         int             `json:"yourScore"`
	YourSwapsUsed     int             `json:"yourSwapsUsed"`
	OpponentScore     int             `json:"opponentScore"`
	OpponentSwapsUsed int             `json:"opponentSwapsUsed"`
	RoundHistory      []RoundResultOut `json:"roundHistory"`
	TimerSecondsLeft  int             `json:"timerSecondsLeft"`
	YourUpcomingCards []carddeck.Card `json:"yourUpcomingCards"`
	YourHand          []carddeck.Card `json:"yourHand"`
	YourName          string          `json:"yourName"`
	OpponentName      string          `json:"opponentName"`
	YourReady         bool            `json:"yourReady"`
	OpponentReady     bool            `json:"opponentReady"`
	OpponentHand      []carddeck.Card `json:"opponentHand,omitempty"`
}

// ErrorOut carries a user-facing error message (§7).
type ErrorOut struct {
	Message string `json:"message"`
}
