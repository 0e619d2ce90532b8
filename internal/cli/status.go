package cli

import (
	"context"
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"edasetup/internal/eda"
	"edasetup/internal/tools"
	"edasetup/internal/tui"
)

var statusFresh bool

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Report which stages are already installed without changing anything",
		Args:  cobra.NoArgs,
		RunE:  runStatus,
	}
	cmd.Flags().BoolVar(&statusFresh, "fresh", false, "Ignore tool home variables from the environment")
	return cmd
}

type stageStatus struct {
	Stage    string           `json:"stage"`
	Status   tools.Status     `json:"status"`
	Evidence []tools.Evidence `json:"evidence,omitempty"`
	Plan     string           `json:"plan,omitempty"`
}

type statusOutput struct {
	InstallRoot string        `json:"install_root"`
	Stages      []stageStatus `json:"stages"`
}

func runStatus(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	s, err := openSession(cmd, sessionOptions{fresh: statusFresh})
	if err != nil {
		return err
	}
	defer s.Close()

	var spinner *tui.StatusWriter
	if tui.DetectMode(cmd.ErrOrStderr(), false, outputJSON) == tui.ModeTUI {
		spinner = tui.NewStatusWriter(cmd.ErrOrStderr(), "Detecting installed stages")
	}

	result := statusOutput{InstallRoot: s.paths.Root}
	for _, st := range s.catalog.Stages() {
		if spinner != nil {
			spinner.Updatef("Detecting %s", st.Name)
		}
		rep := st.Detect(ctx, s.state)
		entry := stageStatus{Stage: st.Name, Status: rep.Status, Evidence: rep.Evidence}
		if st.Name == eda.StageYosys && !rep.Status.Satisfied() {
			d := s.catalog.ChooseYosys(ctx, s.state)
			entry.Plan = fmt.Sprintf("%s: %s", d.Variant, d.Reason)
		}
		result.Stages = append(result.Stages, entry)
	}
	if spinner != nil {
		spinner.Stop()
	}

	if outputJSON {
		return writeJSON(cmd, result)
	}

	bold := lipgloss.NewStyle().Bold(true).Inline(true)
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, bold.Render("INSTALL ROOT:")+" "+s.paths.Root)
	for _, entry := range result.Stages {
		status := string(entry.Status)
		fmt.Fprintf(out, "  %-14s %s\n", entry.Stage+":", tui.StatusStyle(status).Inline(true).Render(status))
		for _, ev := range entry.Evidence {
			if ev.Found {
				detail := tui.NonEmptyOrDash(ev.Path)
				if ev.Version != "" {
					detail += " (" + ev.Version + ")"
				}
				fmt.Fprintf(out, "      ok    %s %s\n", ev.Probe, detail)
				continue
			}
			fmt.Fprintf(out, "      miss  %s %s\n", ev.Probe, ev.Detail)
		}
		if entry.Plan != "" {
			fmt.Fprintf(out, "      plan  %s\n", entry.Plan)
		}
	}
	return nil
}
