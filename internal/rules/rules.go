// Package rules implements the win relation over card kinds.
package rules

import "github.com/rpsduel/server/internal/carddeck"

// Outcome is the result of comparing two kinds.
type Outcome int

const (
	Draw Outcome = iota
	LeftWins
	RightWins
)

// beats maps a kind to the kind it beats.
var beats = map[carddeck.Kind]carddeck.Kind{
	carddeck.Rock:     carddeck.Scissors,
	carddeck.Scissors: carddeck.Paper,
	carddeck.Paper:    carddeck.Rock,
}

// Compare returns the outcome of left versus right: rock beats scissors,
// scissors beats paper, paper beats rock; equal kinds draw.
func Compare(left, right carddeck.Kind) Outcome {
	if left == right {
		return Draw
	}
	if beats[left] == right {
		return LeftWins
	}
	return RightWins
}

// Explain returns a human-readable description of the matchup, e.g.
// "rock beats scissors" or "draw".
func Explain(left, right carddeck.Kind) string {
	switch Compare(left, right) {
	case Draw:
		return "draw"
	case LeftWins:
		return string(left) + " beats " + string(right)
	default:
		return string(right) + " beats " + string(left)
	}
}
