package rules

import (
	"testing"

	"github.com/rpsduel/server/internal/carddeck"
)

func TestCompare(t *testing.T) {
	cases := []struct {
		left, right carddeck.Kind
		want        Outcome
	}{
		{carddeck.Rock, carddeck.Scissors, LeftWins},
		{carddeck.Scissors, carddeck.Paper, LeftWins},
		{carddeck.Paper, carddeck.Rock, LeftWins},
		{carddeck.Scissors, carddeck.Rock, RightWins},
		{carddeck.Paper, carddeck.Scissors, RightWins},
		{carddeck.Rock, carddeck.Paper, RightWins},
		{carddeck.Rock, carddeck.Rock, Draw},
		{carddeck.Paper, carddeck.Paper, Draw},
		{carddeck.Scissors, carddeck.Scissors, Draw},
	}

	for _, tc := range cases {
		if got := Compare(tc.left, tc.right); got != tc.want {
			t.Errorf("Compare(%s, %s) = %v, want %v", tc.left, tc.right, got, tc.want)
		}
	}
}

func TestExplain(t *testing.T) {
	if got := Explain(carddeck.Rock, carddeck.Scissors); got != "rock beats scissors" {
		t.Errorf("unexpected explanation: %s", got)
	}
	if got := Explain(carddeck.Rock, carddeck.Rock); got != "draw" {
		t.Errorf("unexpected explanation: %s", got)
	}
}
