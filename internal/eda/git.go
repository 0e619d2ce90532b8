package eda

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"edasetup/internal/config"
	"edasetup/internal/stage"
)

// clone checks repo out into dest. An existing checkout is kept as is; a
// non-empty directory that is not a checkout is refused rather than
// overwritten.
func clone(ctx context.Context, x *stage.Exec, repo config.RepoConfig, dest string, recursive bool) error {
	if _, err := os.Stat(filepath.Join(dest, ".git")); err == nil {
		x.Note("%s already cloned", dest)
		if recursive {
			return x.CommandIn(ctx, dest, "git", "submodule", "update", "--init", "--recursive")
		}
		return nil
	}

	entries, err := os.ReadDir(dest)
	switch {
	case err == nil && len(entries) > 0:
		return fmt.Errorf("%s exists and is not a git checkout; move it aside and re-run", dest)
	case err != nil && !os.IsNotExist(err):
		return fmt.Errorf("inspect %s: %w", dest, err)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create parent of %s: %w", dest, err)
	}
	args := []string{"clone"}
	if recursive {
		args = append(args, "--recursive")
	}
	if repo.Branch != "" {
		args = append(args, "--branch", repo.Branch)
	}
	args = append(args, repo.URL, dest)
	return x.CommandIn(ctx, filepath.Dir(dest), "git", args...)
}
