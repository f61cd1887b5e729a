// Package validate is the pure input-validation layer that sits between
// the transport adapter and the LobbyRegistry/Session. Every exported
// function is a total function over its input: no I/O, no mutation of
// shared state.
package validate

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/rpsduel/server/internal/carddeck"
)

// LobbyIDAlphabet is the ambiguity-free character set lobby ids are drawn
// from: it excludes 0/O/1/I/L.
const LobbyIDAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// LobbyIDLength is the fixed length of a lobby id.
const LobbyIDLength = 6

// MaxPlayerNameLength is the truncation bound for a player-supplied name.
const MaxPlayerNameLength = 20

// DefaultPlayerName is used when a supplied name is empty after cleanup.
const DefaultPlayerName = "Player"

// MaxPlayerIDLength bounds the generic player-id fallback form.
const MaxPlayerIDLength = 100

var (
	strippedChars   = strings.NewReplacer("<", "", ">", "", `"`, "", "'", "", "&", "")
	playerIDPattern = regexp.MustCompile(`^player_[a-z0-9]+_[a-z0-9]+$`)
	genericIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	lobbyIDPattern   = regexp.MustCompile(`^[` + LobbyIDAlphabet + `]{6}$`)
)

// PlayerName trims, truncates, and strips disallowed characters from a
// caller-supplied display name, falling back to a default if the result is
// empty.
func PlayerName(raw string) string {
	name := strings.TrimSpace(raw)
	if len(name) > MaxPlayerNameLength {
		name = name[:MaxPlayerNameLength]
	}
	name = strings.TrimSpace(strippedChars.Replace(name))
	if name == "" {
		return DefaultPlayerName
	}
	return name
}

// LobbyID reports whether raw, after uppercasing, is a well-formed lobby
// id, and returns the normalized form.
func LobbyID(raw string) (string, bool) {
	id := strings.ToUpper(strings.TrimSpace(raw))
	if !lobbyIDPattern.MatchString(id) {
		return "", false
	}
	return id, true
}

// PlayerID reports whether raw is an acceptable player identity: a
// 36-character UUID-shaped string, the "player_x_y" generated form, or any
// alphanumeric/underscore/hyphen string of bounded length.
func PlayerID(raw string) bool {
	if raw == "" {
		return false
	}
	if len(raw) == 36 {
		if _, err := uuid.Parse(raw); err == nil {
			return true
		}
	}
	if playerIDPattern.MatchString(raw) {
		return true
	}
	return len(raw) <= MaxPlayerIDLength && genericIDPattern.MatchString(raw)
}

// Sequence reports whether candidate is an acceptable committed ordering
// for hand: same length, and a permutation of hand by card identity.
func Sequence(candidate, hand []carddeck.Card) bool {
	return len(candidate) == len(hand) && carddeck.IsPermutationOf(candidate, hand)
}

// SwapPositions reports whether pos1 and pos2 are an acceptable swap pair
// in the remaining-cards frame: both within [0, cardsRemaining), and
// exactly one apart.
func SwapPositions(pos1, pos2, cardsRemaining int) bool {
	if pos1 < 0 || pos2 < 0 || pos1 >= cardsRemaining || pos2 >= cardsRemaining {
		return false
	}
	diff := pos1 - pos2
	return diff == 1 || diff == -1
}
