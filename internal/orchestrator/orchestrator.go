// Package orchestrator sequences installation stages in dependency order,
// skipping stages whose targets are already present and halting the whole
// run on the first failure.
package orchestrator

import (
	"context"
	"fmt"
	"log"

	"edasetup/internal/logx"
	"edasetup/internal/stage"
	"edasetup/internal/state"
	"edasetup/internal/tools"
)

// Orchestrator owns the stage graph for one invocation.
type Orchestrator struct {
	graph    *Graph
	state    *state.InstallationState
	runner   *stage.StageRunner
	observer Observer
	tests    map[string]bool
	logger   *log.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithObserver registers lifecycle callbacks.
func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) {
		if obs != nil {
			o.observer = obs
		}
	}
}

// WithTests enables the self-test of the named stages.
func WithTests(names ...string) Option {
	return func(o *Orchestrator) {
		for _, n := range names {
			o.tests[n] = true
		}
	}
}

// WithLogger routes decision logging to l.
func WithLogger(l *log.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// New validates stages and returns an orchestrator ready to Run.
func New(stages []stage.Stage, st *state.InstallationState, runner *stage.StageRunner, opts ...Option) (*Orchestrator, error) {
	if st == nil {
		return nil, fmt.Errorf("nil installation state")
	}
	if runner == nil {
		return nil, fmt.Errorf("nil stage runner")
	}
	g, err := NewGraph(stages)
	if err != nil {
		return nil, err
	}

	o := &Orchestrator{
		graph:    g,
		state:    st,
		runner:   runner,
		observer: nopObserver{},
		tests:    map[string]bool{},
		logger:   logx.Discard(),
	}
	for _, opt := range opts {
		opt(o)
	}
	for name := range o.tests {
		if _, ok := g.Stage(name); !ok {
			return nil, fmt.Errorf("self-test requested for unknown stage %q", name)
		}
	}
	return o, nil
}

// Graph returns the validated stage graph.
func (o *Orchestrator) Graph() *Graph {
	return o.graph
}

// Run executes the pipeline. Stages run strictly one at a time in
// topological order. The returned error is a *StageError when a stage
// failed, or the context error when the run was cancelled.
func (o *Orchestrator) Run(ctx context.Context) (Report, error) {
	order := o.graph.TopologicalOrder()
	rs := make(runState, len(order))
	for _, name := range order {
		rs[name] = StatePending
	}

	report := Report{RunID: o.runner.RunID}
	o.logger.Printf("run %s: install root %s, stages %v", o.runner.RunID, o.state.Paths.Root, order)

	var (
		failure *StageError
		blocked map[string]bool
		haltErr error
	)

	for _, name := range order {
		s, _ := o.graph.Stage(name)
		res := Result{Stage: name, LogPath: s.LogPath}

		if failure != nil || haltErr != nil {
			if blocked[name] {
				if err := rs.transition(name, StateBlocked); err != nil {
					return report, err
				}
				res.BlockedBy = failure.Stage
				res.Error = fmt.Sprintf("blocked by failed stage %s", failure.Stage)
			} else {
				res.Error = "not started: run halted"
			}
			res.State = rs[name]
			report.Results = append(report.Results, res)
			o.observer.StageFinished(res)
			continue
		}

		if err := ctx.Err(); err != nil {
			haltErr = fmt.Errorf("run cancelled before stage %s: %w", name, err)
			res.State = rs[name]
			res.Error = "not started: run cancelled"
			report.Results = append(report.Results, res)
			o.observer.StageFinished(res)
			continue
		}

		for _, dep := range s.DependsOn {
			if !rs[dep].Satisfies() {
				return report, fmt.Errorf("stage %s reached with dependency %s in state %s", name, dep, rs[dep])
			}
		}

		if err := rs.transition(name, StateDetecting); err != nil {
			return report, err
		}
		o.observer.StageStarted(name, StateDetecting)

		detected := o.detect(ctx, s)
		res.Detected = detected.Status
		res.Evidence = detected.Evidence
		o.logger.Printf("stage %s: detected %s", name, detected.Status)
		for _, ev := range detected.Evidence {
			if !ev.Found {
				o.logger.Printf("stage %s: %s: %s", name, ev.Probe, ev.Detail)
			}
		}

		if detected.Status.Satisfied() {
			if err := rs.transition(name, StateSkipped); err != nil {
				return report, err
			}
		} else {
			if err := rs.transition(name, StateRunning); err != nil {
				return report, err
			}
			o.observer.StageStarted(name, StateRunning)

			out := o.runner.Run(ctx, s)
			res.Installed = true
			res.Commands += out.Commands
			res.Duration += out.Duration
			switch {
			case !out.Success() && ctx.Err() != nil:
				// Killed by the cancellation, not a failure of the stage itself.
				if err := rs.transition(name, StatePending); err != nil {
					return report, err
				}
				haltErr = fmt.Errorf("run cancelled during stage %s: %w", name, ctx.Err())
				res.Error = "interrupted: run cancelled"
				o.logger.Printf("stage %s: interrupted: %v", name, out.Err)
			case !out.Success():
				if err := rs.transition(name, StateFailed); err != nil {
					return report, err
				}
				failure = o.fail(s, "install", out)
				blocked = toSet(failure.Blocked)
				res.ExitCode = out.ExitCode
				res.Error = out.Err.Error()
			default:
				if err := rs.transition(name, StateDone); err != nil {
					return report, err
				}
			}
		}

		if failure == nil && haltErr == nil && o.tests[name] && s.Test != nil {
			o.logger.Printf("stage %s: running self-test", name)
			out := o.runner.Test(ctx, s)
			res.Tested = true
			res.Commands += out.Commands
			res.Duration += out.Duration
			if !out.Success() && ctx.Err() != nil {
				haltErr = fmt.Errorf("run cancelled during self-test of %s: %w", name, ctx.Err())
				res.Error = "self-test interrupted: run cancelled"
				o.logger.Printf("stage %s: self-test interrupted: %v", name, out.Err)
			} else if !out.Success() {
				if err := rs.transition(name, StateFailed); err != nil {
					return report, err
				}
				failure = o.fail(s, "self-test", out)
				blocked = toSet(failure.Blocked)
				res.ExitCode = out.ExitCode
				res.Error = out.Err.Error()
			}
		}

		res.State = rs[name]
		o.logger.Printf("stage %s: %s", name, res.State)
		report.Results = append(report.Results, res)
		o.observer.StageFinished(res)
	}

	if failure != nil {
		return report, failure
	}
	if haltErr != nil {
		return report, haltErr
	}
	return report, nil
}

func (o *Orchestrator) detect(ctx context.Context, s stage.Stage) (rep tools.Report) {
	if s.Detect == nil {
		return tools.Report{Status: tools.StatusMissing}
	}
	defer func() {
		if r := recover(); r != nil {
			rep = tools.Report{
				Status:   tools.StatusMissing,
				Evidence: []tools.Evidence{{Probe: s.Name, Detail: fmt.Sprintf("detector panicked: %v", r)}},
			}
		}
	}()
	return s.Detect(ctx, o.state)
}

func (o *Orchestrator) fail(s stage.Stage, phase string, out stage.Outcome) *StageError {
	blocked := o.graph.Dependents(s.Name)
	o.logger.Printf("stage %s: %s failed with exit code %d: %v (log %s)", s.Name, phase, out.ExitCode, out.Err, out.LogPath)
	if len(blocked) > 0 {
		o.logger.Printf("stage %s: blocking %v", s.Name, blocked)
	}
	return &StageError{
		Stage:    s.Name,
		Phase:    phase,
		ExitCode: out.ExitCode,
		LogPath:  out.LogPath,
		LogTail:  out.LogTail,
		Blocked:  blocked,
		Err:      out.Err,
	}
}

func toSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}
