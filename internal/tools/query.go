package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// DefaultQueryTimeout bounds each read-only probe command.
const DefaultQueryTimeout = 10 * time.Second

// Query runs a read-only command and returns its combined output. env, when
// non-nil, is the complete environment for the child.
type Query func(ctx context.Context, name string, args []string, env []string) ([]byte, error)

// ExecQuery is the Query backed by os/exec.
func ExecQuery(ctx context.Context, name string, args []string, env []string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	if env != nil {
		cmd.Env = env
	}
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	return out.Bytes(), err
}

// LookPath resolves name against the colon separated pathEnv, without
// consulting the process environment.
func LookPath(name, pathEnv string) (string, error) {
	if strings.ContainsRune(name, filepath.Separator) {
		if isExecutable(name) {
			return name, nil
		}
		return "", exec.ErrNotFound
	}
	for _, dir := range filepath.SplitList(pathEnv) {
		if dir == "" {
			continue
		}
		candidate := filepath.Join(dir, name)
		if isExecutable(candidate) {
			return candidate, nil
		}
	}
	return "", exec.ErrNotFound
}

// LookPathExcluding resolves name like LookPath but skips any directory for
// which exclude returns true.
func LookPathExcluding(name, pathEnv string, exclude func(dir string) bool) (string, error) {
	var kept []string
	for _, dir := range filepath.SplitList(pathEnv) {
		if dir == "" || exclude(dir) {
			continue
		}
		kept = append(kept, dir)
	}
	return LookPath(name, strings.Join(kept, string(filepath.ListSeparator)))
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	if info.IsDir() {
		return false
	}
	return info.Mode().Perm()&0o111 != 0
}

func firstLine(text string) string {
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		return text[:idx]
	}
	return text
}

func exitDetail(err error) string {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return fmt.Sprintf("exited with code %d", exitErr.ExitCode())
	}
	return err.Error()
}
