package order

import "testing"

func TestStateMachineTransitions(t *testing.T) {
	sm := NewStateMachine()

	type pair struct{ from, to Status }

	legal := []pair{
		{StatusInitialized, StatusSubmitted},
		{StatusSubmitted, StatusAccepted},
		{StatusAccepted, StatusWorking},
		{StatusWorking, StatusPartiallyFilled},
		{StatusPartiallyFilled, StatusFilled},
		{StatusWorking, StatusCancelled},
		{StatusWorking, StatusExpired},
		{StatusFilled, StatusOverFilled},
	}
	for _, tr := range legal {
		if err := sm.ValidateTransition(tr.from, tr.to); err != nil {
			t.Errorf("expected legal transition %s -> %s: %v", tr.from, tr.to, err)
		}
	}

	illegal := []pair{
		{StatusCancelled, StatusWorking},
		{StatusFilled, StatusWorking},
		{StatusRejected, StatusAccepted},
		{StatusInitialized, StatusWorking},
	}
	for _, tr := range illegal {
		if err := sm.ValidateTransition(tr.from, tr.to); err == nil {
			t.Errorf("expected illegal transition %s -> %s", tr.from, tr.to)
		}
	}

	// 同状态幂等
	if err := sm.ValidateTransition(StatusWorking, StatusWorking); err != nil {
		t.Errorf("same-state transition must be allowed: %v", err)
	}
}

func TestStateMachinePartitions(t *testing.T) {
	sm := NewStateMachine()

	finals := []Status{StatusInvalid, StatusDenied, StatusRejected, StatusCancelled,
		StatusExpired, StatusFilled, StatusOverFilled}
	for _, s := range finals {
		if !sm.IsFinalState(s) {
			t.Errorf("expected %s final", s)
		}
		if sm.IsWorkingState(s) {
			t.Errorf("%s must not be working", s)
		}
	}

	for _, s := range []Status{StatusWorking, StatusPartiallyFilled} {
		if !sm.IsWorkingState(s) {
			t.Errorf("expected %s working", s)
		}
		if sm.IsFinalState(s) {
			t.Errorf("%s must not be final", s)
		}
	}

	// 提交前状态既不工作也不终止
	for _, s := range []Status{StatusInitialized, StatusSubmitted, StatusAccepted} {
		if sm.IsWorkingState(s) || sm.IsFinalState(s) {
			t.Errorf("%s must be in neither partition", s)
		}
	}
}

func TestStateMachineCanCancel(t *testing.T) {
	sm := NewStateMachine()

	for _, s := range []Status{StatusSubmitted, StatusAccepted, StatusWorking, StatusPartiallyFilled} {
		if !sm.CanCancel(s) {
			t.Errorf("expected %s cancellable", s)
		}
	}
	for _, s := range []Status{StatusInitialized, StatusFilled, StatusCancelled,
		StatusRejected, StatusExpired, StatusOverFilled} {
		if sm.CanCancel(s) {
			t.Errorf("%s must not be cancellable", s)
		}
	}
}
