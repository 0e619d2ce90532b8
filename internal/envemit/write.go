package envemit

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pmezard/go-difflib/difflib"

	"edasetup/internal/config"
	"edasetup/internal/state"
)

// WriteResult describes what Write did to a file.
type WriteResult struct {
	Path    string `json:"path"`
	Created bool   `json:"created,omitempty"`
	Changed bool   `json:"changed,omitempty"`
	// Diff is a unified diff against the previous content when it changed.
	Diff string `json:"diff,omitempty"`
}

// Write atomically replaces path with content. An unchanged file is left
// untouched apart from its mode.
func Write(path string, content []byte, mode os.FileMode) (WriteResult, error) {
	res := WriteResult{Path: path}

	previous, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		res.Created = true
	case err != nil:
		return res, fmt.Errorf("read %s: %w", path, err)
	case bytes.Equal(previous, content):
		if err := os.Chmod(path, mode); err != nil {
			return res, fmt.Errorf("chmod %s: %w", path, err)
		}
		return res, nil
	}
	res.Changed = true

	if !res.Created {
		diff, err := Diff(previous, content, path)
		if err != nil {
			return res, err
		}
		res.Diff = diff
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return res, fmt.Errorf("ensure dir for %s: %w", path, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return res, fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return res, fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return res, fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), mode); err != nil {
		os.Remove(tmp.Name())
		return res, fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return res, fmt.Errorf("replace %s: %w", path, err)
	}
	return res, nil
}

// Diff returns a unified diff between two versions of a file, or "" when
// they are identical.
func Diff(oldContent, newContent []byte, path string) (string, error) {
	if bytes.Equal(oldContent, newContent) {
		return "", nil
	}
	ud := difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(oldContent)),
		B:        difflib.SplitLines(string(newContent)),
		FromFile: path + " (previous)",
		ToFile:   path + " (current)",
		Context:  3,
	}
	out, err := difflib.GetUnifiedDiffString(ud)
	if err != nil {
		return "", fmt.Errorf("diff %s: %w", path, err)
	}
	return out, nil
}

// Emit renders and writes both the environment script and the launcher for
// st.
func Emit(st *state.InstallationState, cfg config.Config) ([]WriteResult, error) {
	d, err := Build(st, cfg)
	if err != nil {
		return nil, err
	}

	envResult, err := Write(st.Paths.EnvScript, RenderEnv(d), 0o644)
	if err != nil {
		return nil, err
	}

	launcher := RenderLauncher(LauncherSpec{
		EnvScript: st.Paths.EnvScript,
		WorkDir:   st.Paths.OpenRAM,
		Command:   cfg.Launcher.Command,
	})
	launcherResult, err := Write(st.Paths.LauncherFile, launcher, 0o755)
	if err != nil {
		return []WriteResult{envResult}, err
	}
	return []WriteResult{envResult, launcherResult}, nil
}
