package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"edasetup/internal/launcher"
	"edasetup/internal/paths"
)

var newSessions = func() launcher.Sessions {
	return launcher.Tmux{Runner: newRunner()}
}

func newLaunchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "launch CONFIG",
		Short: "Start an OpenRAM job in a detached tmux session",
		Long: "Run the OpenRAM compiler on CONFIG in a detached tmux session named after the\n" +
			"config file. Output goes to <session>.log in the OpenRAM checkout; attach with\n" +
			"tmux attach -t <session>.",
		Args: cobra.ArbitraryArgs,
		RunE: runLaunch,
	}
}

func runLaunch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	// Validate before anything touches the install root or tmux.
	if len(args) != 1 || strings.TrimSpace(args[0]) == "" {
		fmt.Fprintln(cmd.ErrOrStderr(), "usage: edasetup launch CONFIG")
		return launcher.ErrUsage
	}

	s, err := openSession(cmd, sessionOptions{})
	if err != nil {
		return err
	}
	defer s.Close()

	if ok, err := paths.FileExists(s.paths.EnvScript); err != nil {
		return err
	} else if !ok {
		return fmt.Errorf("environment script %s not found; run edasetup to install first", s.paths.EnvScript)
	}

	job := launcher.Job{
		Command:   s.cfg.Launcher.Command,
		Dir:       s.paths.OpenRAM,
		EnvScript: s.paths.EnvScript,
	}
	session, err := launcher.Launch(ctx, args, job, newSessions())
	if err != nil {
		if errors.Is(err, launcher.ErrUsage) {
			fmt.Fprintln(cmd.ErrOrStderr(), "usage: edasetup launch CONFIG")
		}
		return err
	}

	if outputJSON {
		return writeJSON(cmd, session)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Started session %s\n", session.Name)
	fmt.Fprintf(out, "Log: %s\n", session.LogPath)
	fmt.Fprintf(out, "Attach with: tmux attach -t %s\n", session.Name)
	return nil
}
