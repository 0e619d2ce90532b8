package stage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"edasetup/internal/state"
)

// Cmd is a single external command issued by a stage.
type Cmd struct {
	Dir  string
	Env  []string
	Name string
	Args []string
}

func (c Cmd) String() string {
	parts := append([]string{c.Name}, c.Args...)
	for i, p := range parts {
		if p == "" || strings.ContainsAny(p, " \t\"'$") {
			parts[i] = fmt.Sprintf("%q", p)
		}
	}
	line := strings.Join(parts, " ")
	if c.Dir != "" {
		line = "(cd " + c.Dir + ") " + line
	}
	return line
}

// Exec is the handle a stage action uses to run commands. Output of every
// command is appended to the stage log.
type Exec struct {
	Stage  string
	RunID  string
	State  *state.InstallationState
	Runner Runner
	Log    io.Writer

	commands int
}

// Run executes c, streaming combined output into the stage log. The child
// environment is the derived installation environment plus c.Env.
func (x *Exec) Run(ctx context.Context, c Cmd) error {
	x.commands++
	fmt.Fprintf(x.Log, "==> [run %s] %s\n", x.RunID, c)

	var env []string
	if x.State != nil {
		env = x.State.Environ(c.Env...)
	} else if len(c.Env) > 0 {
		env = c.Env
	}

	_, err := x.Runner.Run(ctx, c.Name, c.Args, RunOptions{
		Dir:    c.Dir,
		Env:    env,
		Stdout: x.Log,
		Stderr: x.Log,
	})
	if err != nil {
		fmt.Fprintf(x.Log, "==> [run %s] failed: %v\n", x.RunID, err)
		return fmt.Errorf("%s: %w", c.Name, err)
	}
	return nil
}

// Command runs name with args from the install root.
func (x *Exec) Command(ctx context.Context, name string, args ...string) error {
	dir := ""
	if x.State != nil {
		dir = x.State.Paths.Root
	}
	return x.Run(ctx, Cmd{Dir: dir, Name: name, Args: args})
}

// CommandIn runs name with args from dir.
func (x *Exec) CommandIn(ctx context.Context, dir, name string, args ...string) error {
	return x.Run(ctx, Cmd{Dir: dir, Name: name, Args: args})
}

// Shell runs script with bash -c from dir.
func (x *Exec) Shell(ctx context.Context, dir, script string) error {
	return x.Run(ctx, Cmd{Dir: dir, Name: "bash", Args: []string{"-c", script}})
}

// Note writes an informational line into the stage log.
func (x *Exec) Note(format string, args ...any) {
	fmt.Fprintf(x.Log, "==> [run %s] %s\n", x.RunID, fmt.Sprintf(format, args...))
}

// Commands reports how many external commands were issued.
func (x *Exec) Commands() int {
	return x.commands
}
