package stage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"edasetup/internal/logx"
	"edasetup/internal/state"
)

// Outcome is the result of running one stage action.
type Outcome struct {
	Err      error
	ExitCode int
	LogPath  string
	LogTail  []string
	Commands int
	Duration time.Duration
}

// Success reports whether the action completed without error.
func (o Outcome) Success() bool {
	return o.Err == nil
}

// StageRunner executes stage actions. It never rolls back: a failed stage
// leaves its partial artifacts for the next attempt's detection to judge.
type StageRunner struct {
	Runner    Runner
	State     *state.InstallationState
	RunID     string
	TailLines int
	Now       func() time.Time
}

// NewStageRunner returns a runner stamped with a fresh run identifier.
func NewStageRunner(r Runner, st *state.InstallationState) *StageRunner {
	if r == nil {
		r = CmdRunner{}
	}
	return &StageRunner{
		Runner:    r,
		State:     st,
		RunID:     uuid.NewString(),
		TailLines: DefaultTailLines,
		Now:       time.Now,
	}
}

// Run executes s.Run.
func (r *StageRunner) Run(ctx context.Context, s Stage) Outcome {
	return r.execute(ctx, s, "install", s.Run)
}

// Test executes s.Test.
func (r *StageRunner) Test(ctx context.Context, s Stage) Outcome {
	return r.execute(ctx, s, "self-test", s.Test)
}

func (r *StageRunner) execute(ctx context.Context, s Stage, phase string, action ActionFunc) Outcome {
	now := r.Now
	if now == nil {
		now = time.Now
	}
	start := now()
	out := Outcome{LogPath: s.LogPath}

	if action == nil {
		return out
	}
	if s.LogPath == "" {
		out.Err = fmt.Errorf("stage %s has no log path", s.Name)
		out.ExitCode = -1
		return out
	}

	logFile, err := logx.OpenAppend(s.LogPath)
	if err != nil {
		out.Err = err
		out.ExitCode = -1
		return out
	}

	x := &Exec{Stage: s.Name, RunID: r.RunID, State: r.State, Runner: r.Runner, Log: logFile}
	fmt.Fprintf(logFile, "==> [run %s] %s %s started %s\n", r.RunID, phase, s.Name, start.UTC().Format(time.RFC3339))

	runErr := runAction(ctx, action, x)
	out.Commands = x.Commands()
	out.Duration = now().Sub(start)

	if runErr != nil {
		fmt.Fprintf(logFile, "==> [run %s] %s %s failed\n", r.RunID, phase, s.Name)
	} else {
		fmt.Fprintf(logFile, "==> [run %s] %s %s finished\n", r.RunID, phase, s.Name)
	}
	if err := logFile.Close(); err != nil && runErr == nil {
		runErr = fmt.Errorf("close stage log: %w", err)
	}

	if runErr != nil {
		out.Err = runErr
		out.ExitCode = ExitCode(runErr)
		lines := r.TailLines
		if lines == 0 {
			lines = DefaultTailLines
		}
		out.LogTail, _ = Tail(s.LogPath, lines)
	}
	return out
}

func runAction(ctx context.Context, action ActionFunc, x *Exec) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("stage %s panicked: %v", x.Stage, rec)
		}
	}()
	return action(ctx, x)
}

type exitCoder interface {
	ExitCode() int
}

// ExitCode extracts a process exit code from err, or -1 when err did not come
// from an exited process.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var ec exitCoder
	if errors.As(err, &ec) {
		if code := ec.ExitCode(); code > 0 {
			return code
		}
	}
	return -1
}
