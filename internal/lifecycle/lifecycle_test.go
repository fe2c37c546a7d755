package lifecycle

import (
	"testing"

	"github.com/clearlens/governance-backend/internal/platform/apierr"
)

type status string

const (
	stNew    status = "new"
	stActive status = "active"
	stDone   status = "done"
	stDead   status = "dead"
)

func newMachine() *Machine[status] {
	return New(map[status][]status{
		stNew:    {stActive},
		stActive: {stDone, stDead},
	}, []status{stDone, stDead})
}

func TestCanTransition(t *testing.T) {
	m := newMachine()

	cases := []struct {
		from, to status
		want     bool
	}{
		{stNew, stActive, true},
		{stNew, stDone, false},
		{stActive, stDone, true},
		{stActive, stDead, true},
		{stDone, stActive, false},
		{stDead, stNew, false},
	}
	for _, tc := range cases {
		if got := m.CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s): want=%v got=%v", tc.from, tc.to, tc.want, got)
		}
	}
}

func TestTransitionError(t *testing.T) {
	m := newMachine()

	if err := m.Transition(stNew, stActive); err != nil {
		t.Fatalf("legal transition: %v", err)
	}
	err := m.Transition(stDone, stActive)
	if err == nil {
		t.Fatal("illegal transition: expected error")
	}
	if !apierr.IsKind(err, apierr.KindValidation) {
		t.Fatalf("illegal transition kind: want=validation got=%v", apierr.KindOf(err))
	}
	if code := apierr.CodeOf(err); code != "invalid_status_transition" {
		t.Fatalf("illegal transition code: want=invalid_status_transition got=%q", code)
	}
}

func TestIsTerminal(t *testing.T) {
	m := newMachine()
	if m.IsTerminal(stActive) {
		t.Error("active must not be terminal")
	}
	if !m.IsTerminal(stDone) || !m.IsTerminal(stDead) {
		t.Error("done and dead must be terminal")
	}
}

func TestKnown(t *testing.T) {
	m := newMachine()
	for _, s := range []status{stNew, stActive, stDone, stDead} {
		if !m.Known(s) {
			t.Errorf("Known(%s): want=true got=false", s)
		}
	}
	if m.Known(status("bogus")) {
		t.Error("Known(bogus): want=false got=true")
	}
}
