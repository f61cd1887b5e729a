package fsm

import (
	"errors"
	"testing"
)

func TestLegalRoundTripTransitions(t *testing.T) {
	m := New()
	steps := []Phase{Preview, Sequence, RoundStart, Swap, Reveal, RoundStart, Swap, Reveal}
	for _, next := range steps {
		if err := m.To(next); err != nil {
			t.Fatalf("unexpected error transitioning to %s: %v", next, err)
		}
	}
	if m.Current() != Reveal {
		t.Fatalf("expected final phase Reveal, got %s", m.Current())
	}
}

func TestIllegalTransitionRejected(t *testing.T) {
	m := New()
	if err := m.To(RoundStart); !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("expected ErrIllegalTransition, got %v", err)
	}
}

func TestGameOverIsTerminal(t *testing.T) {
	m := New()
	_ = m.To(Preview)
	if err := m.To(GameOver); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.To(Preview); !errors.Is(err, ErrTerminal) {
		t.Fatalf("expected ErrTerminal, got %v", err)
	}
}

func TestAnyPhaseCanEndGame(t *testing.T) {
	for _, p := range []Phase{Waiting, Preview, Sequence, RoundStart, Swap, Reveal} {
		m := New()
		m.current = p
		if err := m.To(GameOver); err != nil {
			t.Fatalf("expected %s -> GameOver to succeed, got %v", p, err)
		}
	}
}

func TestPauseAndResumeRestoresSavedPhase(t *testing.T) {
	m := New()
	_ = m.To(Preview)
	_ = m.To(Sequence)

	if err := m.Pause(); err != nil {
		t.Fatalf("unexpected error pausing: %v", err)
	}
	if m.Current() != Paused {
		t.Fatalf("expected current phase Paused, got %s", m.Current())
	}
	if !m.IsPaused() {
		t.Fatal("expected IsPaused true")
	}
	if m.EffectivePhase() != Sequence {
		t.Fatalf("expected EffectivePhase Sequence while paused, got %s", m.EffectivePhase())
	}

	if err := m.Resume(); err != nil {
		t.Fatalf("unexpected error resuming: %v", err)
	}
	if m.Current() != Sequence {
		t.Fatalf("expected phase restored to Sequence, got %s", m.Current())
	}
	if m.IsPaused() {
		t.Fatal("expected IsPaused false after resume")
	}
}

func TestPauseFromGameOverFails(t *testing.T) {
	m := New()
	_ = m.To(GameOver)
	if err := m.Pause(); !errors.Is(err, ErrTerminal) {
		t.Fatalf("expected ErrTerminal, got %v", err)
	}
}

func TestResumeWithoutPauseFails(t *testing.T) {
	m := New()
	if err := m.Resume(); !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("expected ErrIllegalTransition, got %v", err)
	}
}

func TestPendingActionSingleSlot(t *testing.T) {
	m := New()
	if _, ok := m.TakePending(); ok {
		t.Fatal("expected empty pending slot initially")
	}
	m.SetPending(StartRound)
	action, ok := m.TakePending()
	if !ok || action != StartRound {
		t.Fatalf("expected StartRound, got %v ok=%v", action, ok)
	}
	if _, ok := m.TakePending(); ok {
		t.Fatal("expected pending slot cleared after TakePending")
	}
}
