package takion

import "testing"

func TestCanTransitionAllowsFullLifecycle(t *testing.T) {
	steps := []ConnState{StateClosed, StateConnecting, StateHandshake, StateEstablished, StateClosing, StateClosed}
	for i := 0; i < len(steps)-1; i++ {
		if !CanTransition(steps[i], steps[i+1]) {
			t.Fatalf("expected %s -> %s to be valid", steps[i], steps[i+1])
		}
	}
}

func TestCanTransitionRejectsSkippingHandshake(t *testing.T) {
	if CanTransition(StateConnecting, StateEstablished) {
		t.Fatalf("expected Connecting -> Established to be invalid (must pass through Handshake)")
	}
}

func TestCanTransitionRejectsReverseSteps(t *testing.T) {
	if CanTransition(StateEstablished, StateHandshake) {
		t.Fatalf("expected Established -> Handshake to be invalid")
	}
}

func TestCanTransitionAllowsEarlyAbortToClosed(t *testing.T) {
	if !CanTransition(StateConnecting, StateClosed) {
		t.Fatalf("expected Connecting -> Closed to be valid (connect failure path)")
	}
	if !CanTransition(StateHandshake, StateClosed) {
		t.Fatalf("expected Handshake -> Closed to be valid (handshake failure path)")
	}
}

func TestConnStateStringsAreNonEmpty(t *testing.T) {
	states := []ConnState{StateClosed, StateConnecting, StateHandshake, StateEstablished, StateClosing}
	for _, s := range states {
		if s.String() == "" || s.String() == "unknown" {
			t.Fatalf("expected known string for state %d", s)
		}
	}
}
