// Package launcher starts long-running tool jobs in detached terminal
// sessions so they survive the invoking shell.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"edasetup/internal/stage"
)

// ErrUsage is returned when Launch is not given exactly one argument.
var ErrUsage = errors.New("usage: launch CONFIG")

// Session is a detached session request.
type Session struct {
	Name string `json:"name"`
	Dir  string `json:"dir"`
	// Command is a bash command line run inside the session. It carries its
	// own environment; a tmux server started earlier would otherwise hand
	// the session its global environment instead of ours.
	Command string `json:"command"`
	LogPath string `json:"log_path"`
}

// Sessions creates detached sessions.
type Sessions interface {
	Start(ctx context.Context, s Session) error
}

// Job describes how to run the tool on a config file.
type Job struct {
	// Command is the tool invocation; the config path is appended.
	Command string
	Dir     string
	// EnvScript is sourced inside the session before Command runs.
	EnvScript string
}

// SessionName derives a session name from a config path: its base name with
// the final extension removed, unless that would leave nothing. It returns
// "" when the path has no usable base name.
func SessionName(configPath string) string {
	base := filepath.Base(configPath)
	switch base {
	case ".", "..", string(filepath.Separator):
		return ""
	}
	if ext := filepath.Ext(base); ext != "" && ext != base {
		base = strings.TrimSuffix(base, ext)
	}
	// tmux treats '.' and ':' as target separators.
	return strings.NewReplacer(".", "_", ":", "_").Replace(base)
}

// Launch validates args and starts exactly one session for the config file
// in args[0]. It returns without waiting for the job.
func Launch(ctx context.Context, args []string, job Job, sessions Sessions) (Session, error) {
	if len(args) != 1 || strings.TrimSpace(args[0]) == "" {
		return Session{}, ErrUsage
	}
	if sessions == nil {
		return Session{}, fmt.Errorf("no session backend")
	}

	name := SessionName(args[0])
	if name == "" {
		return Session{}, fmt.Errorf("%w: no session name in %q", ErrUsage, args[0])
	}
	config, err := filepath.Abs(args[0])
	if err != nil {
		return Session{}, fmt.Errorf("resolve config path: %w", err)
	}
	s := Session{
		Name:    name,
		Dir:     job.Dir,
		LogPath: filepath.Join(job.Dir, name+".log"),
	}
	var steps []string
	if job.EnvScript != "" {
		steps = append(steps, "source "+shellQuote(job.EnvScript))
	}
	if job.Dir != "" {
		steps = append(steps, "cd "+shellQuote(job.Dir))
	}
	steps = append(steps, fmt.Sprintf("%s %s > %s 2>&1", job.Command, shellQuote(config), shellQuote(s.LogPath)))
	s.Command = strings.Join(steps, " && ")

	if err := sessions.Start(ctx, s); err != nil {
		return Session{}, fmt.Errorf("start session %s: %w", name, err)
	}
	return s, nil
}

// Tmux starts sessions with tmux new-session -d.
type Tmux struct {
	Runner stage.Runner
	Binary string
}

func (t Tmux) Start(ctx context.Context, s Session) error {
	runner := t.Runner
	if runner == nil {
		runner = stage.CmdRunner{}
	}
	binary := t.Binary
	if binary == "" {
		binary = "tmux"
	}
	args := []string{"new-session", "-d", "-s", s.Name}
	if s.Dir != "" {
		args = append(args, "-c", s.Dir)
	}
	args = append(args, "bash", "-c", s.Command)

	res, err := runner.Run(ctx, binary, args, stage.RunOptions{Dir: s.Dir})
	if err != nil {
		if msg := strings.TrimSpace(string(res.Stderr)); msg != "" {
			return fmt.Errorf("%s: %w", msg, err)
		}
		return err
	}
	return nil
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
