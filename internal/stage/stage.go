// Package stage defines installable units of work and the runner that
// executes them with durable, append-only logs.
package stage

import (
	"context"

	"edasetup/internal/state"
	"edasetup/internal/tools"
)

// DetectFunc probes the host for a stage's target. It must not mutate the
// host.
type DetectFunc func(ctx context.Context, st *state.InstallationState) tools.Report

// ActionFunc performs work through x. Running it twice must be safe.
type ActionFunc func(ctx context.Context, x *Exec) error

// Stage is one unit of installable work.
type Stage struct {
	Name      string
	DependsOn []string
	Detect    DetectFunc
	Run       ActionFunc
	// Test is an optional slow self-test, only run when requested.
	Test    ActionFunc
	LogPath string
}
