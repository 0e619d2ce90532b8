package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"edasetup/internal/envemit"
)

func newEnvCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "env",
		Short: "Print the environment script for the install root",
		Long: "Print the environment script edasetup writes to <install-dir>/eda_env.sh.\n" +
			"Use it directly with: eval \"$(edasetup env)\"",
		Args: cobra.NoArgs,
		RunE: runEnv,
	}
}

func runEnv(cmd *cobra.Command, _ []string) error {
	s, err := openSession(cmd, sessionOptions{})
	if err != nil {
		return err
	}
	defer s.Close()

	d, err := envemit.Build(s.state, s.cfg)
	if err != nil {
		return err
	}

	if outputJSON {
		return writeJSON(cmd, d)
	}
	fmt.Fprint(cmd.OutOrStdout(), string(envemit.RenderEnv(d)))
	return nil
}
