package orchestrator

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidGraph = errors.New("invalid stage graph")
	ErrCycleFound   = errors.New("cycle detected")
)

// GraphError wraps stage graph validation failures.
type GraphError struct {
	Kind error
	Msg  string
}

func (e *GraphError) Error() string {
	if e == nil {
		return ""
	}
	if e.Msg == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Msg)
}

func (e *GraphError) Unwrap() error { return e.Kind }

func invalidf(format string, args ...any) error {
	return &GraphError{Kind: ErrInvalidGraph, Msg: fmt.Sprintf(format, args...)}
}

func cycleError(names []string) error {
	return &GraphError{Kind: ErrCycleFound, Msg: "stages in cycle: " + strings.Join(names, ", ")}
}

// StageError is returned when a stage fails. It carries everything the
// operator needs to diagnose the failure.
type StageError struct {
	Stage    string
	Phase    string
	ExitCode int
	LogPath  string
	LogTail  []string
	Blocked  []string
	Err      error
}

func (e *StageError) Error() string {
	phase := e.Phase
	if phase == "" {
		phase = "install"
	}
	return fmt.Sprintf("stage %s failed during %s (exit code %d): %v", e.Stage, phase, e.ExitCode, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
