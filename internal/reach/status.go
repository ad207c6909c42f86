package reach

import "fmt"

// Status is the outcome of one analysis run.
type Status int

const (
	// Running is the status before the run has decided.
	Running Status = iota
	// HitFinal means a final automaton state is reachable.
	HitFinal
	// Aborted means the run met something it cannot soundly model.
	Aborted
	// Complete means the fixpoint was reached without a match or taint.
	Complete
)

func (s Status) String() string {
	switch s {
	case Running:
		return "RUNNING"
	case HitFinal:
		return "HIT_FINAL"
	case Aborted:
		return "ABORTED"
	case Complete:
		return "COMPLETE"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// IsTerminal reports whether s is a final outcome.
func (s Status) IsTerminal() bool {
	switch s {
	case HitFinal, Aborted, Complete:
		return true
	default:
		return false
	}
}

func isAllowedTransition(from, to Status) bool {
	return from == Running && to.IsTerminal()
}

type machine struct {
	status Status
	reason string
}

// transition moves the machine to a terminal status exactly once.
func (m *machine) transition(to Status, reason string) error {
	if !isAllowedTransition(m.status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, m.status, to)
	}
	m.status = to
	m.reason = reason
	return nil
}
