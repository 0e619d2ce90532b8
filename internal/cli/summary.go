package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"edasetup/internal/envemit"
	"edasetup/internal/orchestrator"
	"edasetup/internal/tui"
)

func writeSummary(out io.Writer, report orchestrator.Report) {
	if len(report.Results) == 0 {
		return
	}
	bold := lipgloss.NewStyle().Bold(true).Inline(true)

	fmt.Fprintln(out)
	fmt.Fprintln(out, bold.Render("SUMMARY:")+" run "+report.RunID)
	width := len("STAGE")
	for _, res := range report.Results {
		if len(res.Stage) > width {
			width = len(res.Stage)
		}
	}
	fmt.Fprintf(out, "  %-*s  %-9s  %s\n", width, "STAGE", "STATE", "DETAIL")
	for _, res := range report.Results {
		state := string(res.State)
		styled := tui.StatusStyle(state).Inline(true).Render(fmt.Sprintf("%-9s", state))
		fmt.Fprintf(out, "  %-*s  %s  %s\n", width, res.Stage, styled, tui.NonEmptyOrDash(tui.ResultDetail(res)))
	}
}

func writeFailure(out io.Writer, se *orchestrator.StageError) {
	red := lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true).Inline(true)

	fmt.Fprintln(out)
	fmt.Fprintf(out, "%s stage %s failed during %s (exit code %d)\n", red.Render("FAILED:"), se.Stage, se.Phase, se.ExitCode)
	if se.LogPath != "" {
		fmt.Fprintf(out, "Full log: %s\n", se.LogPath)
	}
	if len(se.LogTail) > 0 {
		fmt.Fprintln(out, "Last lines of the log:")
		for _, line := range se.LogTail {
			fmt.Fprintf(out, "  | %s\n", line)
		}
	}
	if len(se.Blocked) > 0 {
		fmt.Fprintf(out, "Not attempted because they depend on %s: %s\n", se.Stage, strings.Join(se.Blocked, ", "))
	}
	fmt.Fprintln(out, "Re-running edasetup is safe: completed stages are detected and skipped, so the next run resumes here.")
}

func writeInterrupted(out io.Writer, byOperator bool) {
	yellow := lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Bold(true).Inline(true)

	fmt.Fprintln(out)
	reason := "the run was cancelled"
	if byOperator {
		reason = "stopped from the progress display"
	}
	fmt.Fprintf(out, "%s %s; stages that had not finished are still pending.\n", yellow.Render("INTERRUPTED:"), reason)
	fmt.Fprintln(out, "Re-running edasetup is safe: completed stages are detected and skipped, so the next run resumes here.")
}

func writeNextSteps(out io.Writer, s *session, report orchestrator.Report, emitted []envemit.WriteResult) {
	fmt.Fprintln(out)
	if report.AllSkipped() {
		fmt.Fprintln(out, "Everything is already installed.")
	} else {
		fmt.Fprintf(out, "Installed: %s\n", strings.Join(report.Ran(), ", "))
	}
	for _, w := range emitted {
		switch {
		case w.Created:
			fmt.Fprintf(out, "Wrote %s\n", w.Path)
		case w.Changed:
			fmt.Fprintf(out, "Updated %s\n", w.Path)
		}
	}
	fmt.Fprintf(out, "Load the environment with: source %s\n", s.paths.EnvScript)
	fmt.Fprintf(out, "Start an OpenRAM job with: %s CONFIG\n", s.paths.LauncherFile)
}
