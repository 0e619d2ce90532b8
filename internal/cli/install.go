package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"edasetup/internal/eda"
	"edasetup/internal/envemit"
	"edasetup/internal/metrics"
	"edasetup/internal/orchestrator"
	"edasetup/internal/platform"
	"edasetup/internal/stage"
	"edasetup/internal/tui"
)

var (
	installFresh   bool
	installUpgrade bool
	testOpenROAD   bool
	testOpenRAM    bool
	installJobs    int
	noProgress     bool
	metricsFile    string
)

func addInstallFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.BoolVar(&installFresh, "fresh", false, "Ignore FLOW_HOME/OPENRAM_HOME/OPENRAM_TECH from the environment and re-probe everything")
	flags.BoolVar(&installUpgrade, "upgrade", false, "Refresh dependencies while installing (slower)")
	flags.BoolVar(&testOpenROAD, "test-openroad", false, "Run the OpenROAD flow self-test after installing")
	flags.BoolVar(&testOpenRAM, "test-openram", false, "Run the OpenRAM regression tests after installing")
	flags.IntVar(&installJobs, "jobs", 0, "Parallel build jobs (default from config)")
	flags.BoolVar(&noProgress, "no-progress", false, "Disable the interactive progress table")
	flags.StringVar(&metricsFile, "metrics-file", "", "Write Prometheus textfile metrics to this path")
}

// installOutput is the JSON document printed with --json.
type installOutput struct {
	InstallRoot string                `json:"install_root"`
	Report      orchestrator.Report   `json:"report"`
	Emitted     []envemit.WriteResult `json:"emitted,omitempty"`
	Error       string                `json:"error,omitempty"`
}

func runInstall(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if err := platform.Check(currentHost()); err != nil {
		return err
	}

	s, err := openSession(cmd, sessionOptions{
		fresh:      installFresh,
		persistent: true,
		catalog:    eda.Options{Upgrade: installUpgrade, Jobs: installJobs},
	})
	if err != nil {
		return err
	}
	defer s.Close()

	var tests []string
	if testOpenROAD {
		tests = append(tests, eda.StageOpenROAD)
	}
	if testOpenRAM {
		tests = append(tests, eda.StageOpenRAM)
	}

	runner := stage.NewStageRunner(newRunner(), s.state)
	s.logger.Printf("edasetup install: root=%s run=%s fresh=%t upgrade=%t tests=%v", s.paths.Root, runner.RunID, installFresh, installUpgrade, tests)

	var recorder *metrics.Recorder
	if metricsFile != "" {
		recorder = metrics.NewRecorder()
	}

	stages := s.catalog.Stages()
	run := func(ctx context.Context, obs orchestrator.Observer) (orchestrator.Report, error) {
		var observers orchestrator.Observers
		if obs != nil {
			observers = append(observers, obs)
		}
		if recorder != nil {
			observers = append(observers, recorder)
		}
		o, err := orchestrator.New(stages, s.state, runner,
			orchestrator.WithObserver(observers),
			orchestrator.WithTests(tests...),
			orchestrator.WithLogger(s.logger),
		)
		if err != nil {
			return orchestrator.Report{}, err
		}
		return o.Run(ctx)
	}

	var (
		report  orchestrator.Report
		runErr  error
		aborted bool
	)
	out := cmd.OutOrStdout()
	switch tui.DetectMode(out, noProgress, outputJSON) {
	case tui.ModeTUI:
		model := tui.NewStageModel("Installing into "+s.paths.Root, eda.Names())
		uiErr := tui.RunWithWork(ctx, out, model, func(ctx context.Context, send func(tea.Msg)) {
			report, runErr = run(ctx, tui.NewStageReporter(send))
		})
		switch {
		case errors.Is(uiErr, tui.ErrAborted):
			aborted = true
		case uiErr != nil && runErr == nil:
			runErr = uiErr
		}
	case tui.ModePlain:
		report, runErr = run(ctx, tui.NewPlainReporter(out))
	default:
		report, runErr = run(ctx, nil)
	}

	if recorder != nil {
		if err := recorder.WriteFile(metricsFile); err != nil {
			s.logger.Printf("write metrics: %v", err)
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: write metrics: %v\n", err)
		}
	}

	var emitted []envemit.WriteResult
	if runErr == nil {
		emitted, runErr = envemit.Emit(s.state, s.cfg)
		for _, w := range emitted {
			if w.Diff != "" {
				s.logger.Printf("%s changed:\n%s", w.Path, w.Diff)
			}
		}
	}

	if outputJSON {
		doc := installOutput{InstallRoot: s.paths.Root, Report: report, Emitted: emitted}
		if runErr != nil {
			doc.Error = runErr.Error()
		}
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
		return runErr
	}

	writeSummary(out, report)
	if runErr != nil {
		var se *orchestrator.StageError
		switch {
		case errors.As(runErr, &se):
			writeFailure(cmd.ErrOrStderr(), se)
		case aborted || errors.Is(runErr, context.Canceled):
			writeInterrupted(cmd.ErrOrStderr(), aborted)
		}
		return runErr
	}
	writeNextSteps(out, s, report, emitted)
	return nil
}
