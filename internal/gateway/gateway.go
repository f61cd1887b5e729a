// Package gateway implements the Router the transport layer dispatches
// into: it decodes each typed inbound envelope and calls the matching
// lobby.Registry method, translating registry/session errors into the
// error/swapError outbound events described in §7.
package gateway

import (
	"encoding/json"
	"log"

	"github.com/rpsduel/server/internal/lobby"
	"github.com/rpsduel/server/internal/protocol"
	"github.com/rpsduel/server/internal/session"
	"github.com/rpsduel/server/internal/validate"
)

// Sender is the narrow interface the gateway uses to reply directly to the
// calling connection, independent of player-id resolution (used for
// acknowledgements and errors that must reach a caller who may not yet be
// bound to a player id, e.g. a rejected createLobby).
type Sender interface {
	SendTo(connID, eventType string, payload interface{})
}

// Gateway adapts inbound WebSocket envelopes to lobby.Registry calls.
type Gateway struct {
	registry *lobby.Registry
	sender   Sender
}

// New builds a Gateway dispatching into registry and replying through
// sender.
func New(registry *lobby.Registry, sender Sender) *Gateway {
	return &Gateway{registry: registry, sender: sender}
}

// Handle decodes env and dispatches it to the appropriate registry or
// session operation for connID.
func (g *Gateway) Handle(connID string, env protocol.Envelope) {
	switch env.Type {
	case protocol.TypeCreateLobby:
		g.handleCreateLobby(connID, env)
	case protocol.TypeJoinLobby:
		g.handleJoinLobby(connID, env)
	case protocol.TypeReconnect:
		g.handleReconnect(connID, env)
	case protocol.TypePreviewReady:
		g.dispatchSession(connID, func(s *session.Session, playerID string) error {
			return s.HandlePreviewReady(playerID)
		})
	case protocol.TypeSetSequence:
		g.handleSetSequence(connID, env)
	case protocol.TypeSwapCards:
		g.handleSwapCards(connID, env)
	case protocol.TypeSkipSwap:
		g.dispatchSession(connID, func(s *session.Session, playerID string) error {
			return s.HandleSkipSwap(playerID)
		})
	case protocol.TypeContinueRound:
		g.dispatchSession(connID, func(s *session.Session, playerID string) error {
			return s.HandleContinueRound(playerID)
		})
	case protocol.TypeLeaveLobby, protocol.TypePlayAgain:
		g.registry.Leave(connID)
	default:
		log.Printf("gateway: unknown event type %q from %s", env.Type, connID)
	}
}

// Disconnect routes a dropped connection into the registry's disconnect
// handling.
func (g *Gateway) Disconnect(connID string) {
	g.registry.Disconnect(connID)
}

func (g *Gateway) handleCreateLobby(connID string, env protocol.Envelope) {
	in, err := decodeCreateLobby(env)
	if err != nil {
		g.sendError(connID, "invalid createLobby payload")
		return
	}
	lobbyID, playerID, err := g.registry.CreateLobby(connID, in.PlayerName, in.PlayerID)
	if err != nil {
		g.sendError(connID, err.Error())
		return
	}
	g.sender.SendTo(connID, protocol.TypeLobbyCreated, protocol.LobbyCreatedOut{LobbyID: lobbyID, PlayerID: playerID})
}

// decodeCreateLobby accepts createLobby's payload either as a bare name
// string or as the structured {playerName, playerId?} form (spec.md:174),
// normalizing both into a CreateLobbyIn.
func decodeCreateLobby(env protocol.Envelope) (protocol.CreateLobbyIn, error) {
	if len(env.Payload) == 0 {
		return protocol.CreateLobbyIn{}, nil
	}
	var name string
	if json.Unmarshal(env.Payload, &name) == nil {
		return protocol.CreateLobbyIn{PlayerName: name}, nil
	}
	var in protocol.CreateLobbyIn
	if err := env.Decode(&in); err != nil {
		return protocol.CreateLobbyIn{}, err
	}
	return in, nil
}

func (g *Gateway) handleJoinLobby(connID string, env protocol.Envelope) {
	var in protocol.JoinLobbyIn
	if err := env.Decode(&in); err != nil {
		g.sendError(connID, "invalid joinLobby payload")
		return
	}
	playerID, rejoined, err := g.registry.JoinLobby(connID, in.LobbyID, in.PlayerName, in.PlayerID)
	if err != nil {
		g.sendError(connID, err.Error())
		return
	}
	g.sender.SendTo(connID, protocol.TypeLobbyJoined, protocol.LobbyJoinedOut{LobbyID: in.LobbyID, PlayerID: playerID})

	if rejoined {
		g.handleRejoinSnapshot(connID, in.LobbyID, playerID)
		return
	}

	g.registry.BindConnection(connID, in.LobbyID, playerID)
	g.notifyOpponentJoined(in.LobbyID, playerID)

	if _, err := g.registry.MaybeStartSession(in.LobbyID); err != nil {
		log.Printf("gateway: starting session for %s: %v", in.LobbyID, err)
	}
}

func (g *Gateway) notifyOpponentJoined(lobbyID, newPlayerID string) {
	existingID, _, ok := g.registry.OtherOccupant(lobbyID, newPlayerID)
	if !ok {
		return
	}
	_, newPlayerName, ok := g.registry.OtherOccupant(lobbyID, existingID)
	if !ok {
		return
	}
	g.registry.NotifyPlayer(lobbyID, existingID, protocol.TypePlayerJoined, protocol.PlayerJoinedOut{PlayerName: newPlayerName})
}

func (g *Gateway) handleRejoinSnapshot(connID, lobbyID, playerID string) {
	g.registry.ResumeIfOpponentLive(lobbyID, playerID)
	err := g.registry.Dispatch(connID, func(s *session.Session, resolvedPlayerID string) error {
		if s.Completed() {
			return session.ErrAlreadyCompleted
		}
		snap, err := s.Snapshot(resolvedPlayerID)
		if err != nil {
			return err
		}
		g.sender.SendTo(connID, protocol.TypeReconnected, snap)
		return nil
	})
	if err != nil {
		log.Printf("gateway: rejoin snapshot for %s: %v", playerID, err)
		return
	}
	g.notifyIfOpponentStillAbsent(connID, lobbyID, playerID)
}

func (g *Gateway) handleReconnect(connID string, env protocol.Envelope) {
	var in protocol.ReconnectIn
	if err := env.Decode(&in); err != nil {
		g.sendError(connID, "invalid reconnect payload")
		return
	}
	snap, err := g.registry.Reconnect(connID, in.LobbyID, in.PlayerID)
	if err != nil {
		g.sendError(connID, "Invalid reconnection attempt")
		return
	}
	g.sender.SendTo(connID, protocol.TypeReconnected, snap)
	g.notifyIfOpponentStillAbsent(connID, in.LobbyID, in.PlayerID)
}

// notifyIfOpponentStillAbsent sends the returning player an
// opponentDisconnected notice, carrying the opponent's remaining reconnect
// budget, when a reconnection did not resume play because the opponent is
// itself mid-reconnect-window.
func (g *Gateway) notifyIfOpponentStillAbsent(connID, lobbyID, playerID string) {
	remaining, disconnected := g.registry.OpponentDisconnectStatus(lobbyID, playerID)
	if !disconnected {
		return
	}
	g.sender.SendTo(connID, protocol.TypeOpponentDisconnected, protocol.OpponentDisconnectedOut{ReconnectTimeoutSeconds: remaining})
}

func (g *Gateway) handleSetSequence(connID string, env protocol.Envelope) {
	var in protocol.SetSequenceIn
	if err := env.Decode(&in); err != nil {
		g.sendError(connID, "invalid setSequence payload")
		return
	}
	g.dispatchSession(connID, func(s *session.Session, playerID string) error {
		hand, ok := s.HandFor(playerID)
		if !ok {
			return session.ErrUnknownPlayer
		}
		if !validate.Sequence(in.Sequence, hand) {
			g.sendError(connID, "sequence must be a permutation of your hand")
			return nil
		}
		return s.HandleSetSequence(playerID, in.Sequence)
	})
}

func (g *Gateway) handleSwapCards(connID string, env protocol.Envelope) {
	var in protocol.SwapCardsIn
	if err := env.Decode(&in); err != nil {
		g.sendError(connID, "invalid swapCards payload")
		return
	}
	g.dispatchSession(connID, func(s *session.Session, playerID string) error {
		remaining, ok := s.CardsRemaining(playerID)
		if !ok {
			return session.ErrUnknownPlayer
		}
		if !validate.SwapPositions(in.Pos1, in.Pos2, remaining) {
			g.sender.SendTo(connID, protocol.TypeSwapError, protocol.SwapErrorOut{Message: "swap positions must be adjacent and within your remaining cards"})
			return nil
		}
		// A rejected swap still reaches the caller as a swapError event
		// from inside the session itself (budget exhausted, already swapped
		// this round); nothing further to report here.
		s.HandleSwapCards(playerID, in.Pos1, in.Pos2)
		return nil
	})
}

// dispatchSession runs fn against the caller's session, silently dropping
// illegal-transition and unknown-player errors per §7; any other failure
// (unknown connection, completed session) is logged, and no event is sent
// to the caller.
func (g *Gateway) dispatchSession(connID string, fn func(s *session.Session, playerID string) error) {
	err := g.registry.Dispatch(connID, fn)
	if err == nil || err == session.ErrWrongPhase || err == session.ErrUnknownPlayer {
		return
	}
	log.Printf("gateway: dispatch for %s: %v", connID, err)
}

func (g *Gateway) sendError(connID, message string) {
	g.sender.SendTo(connID, protocol.TypeError, protocol.ErrorOut{Message: message})
}
