package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"edasetup/internal/config"
	"edasetup/internal/paths"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or edit the installer configuration",
	}

	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigEditCmd())
	cmd.AddCommand(newConfigValidateCmd())
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration in YAML",
		Args:  cobra.NoArgs,
		RunE:  runConfigShow,
	}
}

func newConfigEditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "edit",
		Short: "Open the configuration in $EDITOR, creating it with defaults first",
		Args:  cobra.NoArgs,
		RunE:  runConfigEdit,
	}
}

func newConfigValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration for mistakes",
		Args:  cobra.NoArgs,
		RunE:  runConfigValidate,
	}
}

func resolveConfigPath() (paths.InstallPaths, string, error) {
	ip, err := paths.Resolve(installDir)
	if err != nil {
		return paths.InstallPaths{}, "", err
	}
	if strings.TrimSpace(configFile) != "" {
		return ip, configFile, nil
	}
	return ip, ip.ConfigFile, nil
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	_, path, err := resolveConfigPath()
	if err != nil {
		return err
	}

	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	data, err := cfg.Marshal()
	if err != nil {
		return err
	}

	fmt.Fprint(cmd.OutOrStdout(), string(data))
	if len(data) == 0 || data[len(data)-1] != '\n' {
		fmt.Fprintln(cmd.OutOrStdout())
	}
	return nil
}

func runConfigValidate(cmd *cobra.Command, _ []string) error {
	_, path, err := resolveConfigPath()
	if err != nil {
		return err
	}

	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	results := cfg.Validate()

	if outputJSON {
		if err := writeJSON(cmd, results); err != nil {
			return err
		}
	} else {
		yellow := lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Inline(true)
		red := lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Inline(true)
		green := lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Inline(true)

		out := cmd.OutOrStdout()
		if len(results) == 0 {
			fmt.Fprintf(out, "%s %s\n", green.Render("OK"), path)
		}
		for _, r := range results {
			label := yellow.Render("WARN")
			if r.Level == "error" {
				label = red.Render("ERROR")
			}
			fmt.Fprintf(out, "%-5s %s\n", label, r.Message)
		}
	}

	if config.HasErrors(results) {
		return fmt.Errorf("configuration %s is invalid", path)
	}
	return nil
}

func runConfigEdit(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	ip, path, err := resolveConfigPath()
	if err != nil {
		return err
	}

	if err := ensureConfigFileExists(path); err != nil {
		return err
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}

	parts := splitEditorCommand(editor)
	if len(parts) == 0 {
		return fmt.Errorf("invalid EDITOR value: %q", editor)
	}

	parts = append(parts, path)

	execCmd := exec.CommandContext(ctx, parts[0], parts[1:]...)
	execCmd.Stdout = cmd.OutOrStdout()
	execCmd.Stderr = cmd.ErrOrStderr()
	execCmd.Stdin = cmd.InOrStdin()
	if exists, _ := paths.DirExists(ip.Root); exists {
		execCmd.Dir = ip.Root
	}

	if err := execCmd.Run(); err != nil {
		return fmt.Errorf("editor exited with error: %w", err)
	}
	return nil
}

func ensureConfigFileExists(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure config dir: %w", err)
	}

	cfg := config.Default()
	data, err := cfg.Marshal()
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write default config: %w", err)
	}
	return nil
}

// splitEditorCommand handles simple EDITOR values like "nano" or "code -w".
func splitEditorCommand(value string) []string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return strings.Fields(value)
}
