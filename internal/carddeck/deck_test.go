package carddeck

import "testing"

func TestFullDeckComposition(t *testing.T) {
	deck := FullDeck()
	if len(deck) != 9 {
		t.Fatalf("expected 9 cards, got %d", len(deck))
	}

	counts := map[Kind]int{}
	ids := map[string]bool{}
	for _, c := range deck {
		counts[c.Kind]++
		if ids[c.ID] {
			t.Fatalf("duplicate card id %s", c.ID)
		}
		ids[c.ID] = true
	}

	for _, k := range []Kind{Rock, Paper, Scissors} {
		if counts[k] != CardsPerKind {
			t.Errorf("expected %d of kind %s, got %d", CardsPerKind, k, counts[k])
		}
	}
}

func TestDealReturnsSixDistinctCardsFromDeck(t *testing.T) {
	full := IdentitySet(FullDeck())

	for i := 0; i < 50; i++ {
		hand := Deal()
		if len(hand) != CardsPerPlayer {
			t.Fatalf("expected %d cards, got %d", CardsPerPlayer, len(hand))
		}
		seen := map[string]bool{}
		for _, c := range hand {
			if seen[c.ID] {
				t.Fatalf("dealt hand has duplicate id %s", c.ID)
			}
			seen[c.ID] = true
			if _, ok := full[c.ID]; !ok {
				t.Fatalf("dealt card %s not in canonical deck", c.ID)
			}
		}
	}
}

func TestShuffleDoesNotMutateInput(t *testing.T) {
	original := FullDeck()
	before := make([]Card, len(original))
	copy(before, original)

	_ = Shuffle(original)

	for i := range original {
		if original[i] != before[i] {
			t.Fatalf("Shuffle mutated its input at index %d", i)
		}
	}
}

func TestShuffleIsPermutation(t *testing.T) {
	deck := FullDeck()
	shuffled := Shuffle(deck)
	if !IsPermutationOf(shuffled, deck) {
		t.Fatalf("shuffled deck is not a permutation of the original")
	}
}

func TestIsPermutationOf(t *testing.T) {
	hand := Deal()

	if !IsPermutationOf(hand, hand) {
		t.Fatal("a hand should be a permutation of itself")
	}

	reversed := make([]Card, len(hand))
	for i, c := range hand {
		reversed[len(hand)-1-i] = c
	}
	if !IsPermutationOf(reversed, hand) {
		t.Fatal("reversed hand should still be a permutation")
	}

	tooShort := hand[:len(hand)-1]
	if IsPermutationOf(tooShort, hand) {
		t.Fatal("shorter slice must not be a permutation")
	}

	other := Deal()
	if IsPermutationOf(other, hand) && !sameIDs(other, hand) {
		t.Fatal("unrelated hand falsely reported as permutation")
	}
}

func sameIDs(a, b []Card) bool {
	if len(a) != len(b) {
		return false
	}
	setA := IdentitySet(a)
	for _, c := range b {
		if _, ok := setA[c.ID]; !ok {
			return false
		}
	}
	return true
}
