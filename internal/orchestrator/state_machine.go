package orchestrator

import "fmt"

// StageState is the runtime state of one stage within a run.
type StageState string

const (
	StatePending   StageState = "pending"
	StateDetecting StageState = "detecting"
	StateSkipped   StageState = "skipped"
	StateRunning   StageState = "running"
	StateDone      StageState = "done"
	StateFailed    StageState = "failed"
	StateBlocked   StageState = "blocked"
)

// IsTerminal reports whether no further transition can happen.
func (s StageState) IsTerminal() bool {
	switch s {
	case StateSkipped, StateDone, StateFailed, StateBlocked:
		return true
	}
	return false
}

// Satisfies reports whether a dependent stage may proceed.
func (s StageState) Satisfies() bool {
	return s == StateDone || s == StateSkipped
}

func isAllowedTransition(from, to StageState) bool {
	switch from {
	case StatePending:
		return to == StateDetecting || to == StateBlocked
	case StateDetecting:
		return to == StateSkipped || to == StateRunning
	case StateRunning:
		// Back to pending when the run is cancelled under a stage.
		return to == StateDone || to == StateFailed || to == StatePending
	case StateDone, StateSkipped:
		// Self-test failures demote a finished stage.
		return to == StateFailed
	}
	return false
}

type runState map[string]StageState

func (rs runState) transition(name string, to StageState) error {
	from, ok := rs[name]
	if !ok {
		return fmt.Errorf("unknown stage in state: %q", name)
	}
	if !isAllowedTransition(from, to) {
		return fmt.Errorf("disallowed transition for %q: %s -> %s", name, from, to)
	}
	rs[name] = to
	return nil
}
