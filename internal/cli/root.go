package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
)

var (
	installDir string
	configFile string
	outputJSON bool
	noColor    bool
)

// Execute runs the root cobra command. An interrupt cancels the running
// stage; the next run resumes from it.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edasetup",
		Short: "Install OpenROAD, OpenROAD-flow-scripts and OpenRAM",
		Long: "edasetup installs the OpenROAD, OpenROAD-flow-scripts and OpenRAM toolchains\n" +
			"into a single install root. Stages that are already installed are skipped, so\n" +
			"re-running after a failure resumes where the previous run stopped.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			applyColor(noColor)
		},
		RunE: runInstall,
	}

	cmd.PersistentFlags().StringVar(&installDir, "install-dir", "", "Install root (default ~/eda)")
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to edasetup.yaml (default <install-dir>/edasetup.yaml)")
	cmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "Output machine-readable JSON")
	cmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable coloured output")
	addInstallFlags(cmd)

	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newEnvCmd())
	cmd.AddCommand(newLaunchCmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}

// applyColor drops lipgloss output to plain ASCII when colour is disabled by
// flag or by the NO_COLOR convention.
func applyColor(disabled bool) {
	if disabled || os.Getenv("NO_COLOR") != "" {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
}
