package stage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edasetup/internal/config"
	"edasetup/internal/paths"
	"edasetup/internal/state"
)

type recordingRunner struct {
	calls []string
	envs  [][]string
	fail  map[string]error
	out   string
}

func (r *recordingRunner) Run(_ context.Context, command string, args []string, opts RunOptions) (RunResult, error) {
	r.calls = append(r.calls, strings.TrimSpace(command+" "+strings.Join(args, " ")))
	r.envs = append(r.envs, opts.Env)
	if r.out != "" && opts.Stdout != nil {
		fmt.Fprintln(opts.Stdout, r.out)
	}
	if err, ok := r.fail[command]; ok {
		return RunResult{}, err
	}
	return RunResult{}, nil
}

type exitErr int

func (e exitErr) Error() string { return fmt.Sprintf("exit status %d", int(e)) }
func (e exitErr) ExitCode() int { return int(e) }

func newTestState(t *testing.T) *state.InstallationState {
	t.Helper()
	ip, err := paths.Resolve(t.TempDir())
	require.NoError(t, err)
	ip = paths.ApplyConfig(ip, config.Default())
	return state.Derive(ip, []string{"PATH=/usr/bin", "HOME=/home/eda"}, false)
}

func TestStageRunnerSuccessAppendsLog(t *testing.T) {
	st := newTestState(t)
	rr := &recordingRunner{out: "building"}
	sr := NewStageRunner(rr, st)
	s := Stage{
		Name:    "demo",
		LogPath: st.Paths.StageLog("demo"),
		Run: func(ctx context.Context, x *Exec) error {
			return x.Command(ctx, "make", "install")
		},
	}

	first := sr.Run(context.Background(), s)
	require.True(t, first.Success())
	assert.Equal(t, 1, first.Commands)

	second := sr.Run(context.Background(), s)
	require.True(t, second.Success())

	data, err := os.ReadFile(s.LogPath)
	require.NoError(t, err)
	log := string(data)
	assert.Equal(t, 2, strings.Count(log, "make install"), "log must keep both attempts")
	assert.Equal(t, 2, strings.Count(log, "building"))
	assert.Contains(t, log, "[run "+sr.RunID+"]")
	assert.Equal(t, []string{"make install", "make install"}, rr.calls)
}

func TestStageRunnerPassesDerivedEnvironment(t *testing.T) {
	st := newTestState(t)
	rr := &recordingRunner{}
	sr := NewStageRunner(rr, st)
	s := Stage{
		Name:    "env",
		LogPath: st.Paths.StageLog("env"),
		Run: func(ctx context.Context, x *Exec) error {
			return x.Run(ctx, Cmd{Name: "pip3", Env: []string{"PYTHONPATH=/x"}})
		},
	}

	require.True(t, sr.Run(context.Background(), s).Success())
	require.Len(t, rr.envs, 1)
	assert.Equal(t, []string{"HOME=/home/eda", "PATH=/usr/bin", "PYTHONPATH=/x"}, rr.envs[0])
}

func TestStageRunnerFailureReportsExitCodeAndTail(t *testing.T) {
	st := newTestState(t)
	rr := &recordingRunner{out: "compiler error: boom", fail: map[string]error{"make": exitErr(2)}}
	sr := NewStageRunner(rr, st)
	sr.TailLines = 3
	s := Stage{
		Name:    "broken",
		LogPath: st.Paths.StageLog("broken"),
		Run: func(ctx context.Context, x *Exec) error {
			if err := x.Command(ctx, "make"); err != nil {
				return err
			}
			return x.Command(ctx, "never")
		},
	}

	out := sr.Run(context.Background(), s)
	require.False(t, out.Success())
	assert.Equal(t, 2, out.ExitCode)
	assert.Equal(t, s.LogPath, out.LogPath)
	require.Len(t, out.LogTail, 3)
	assert.Contains(t, strings.Join(out.LogTail, "\n"), "compiler error: boom")
	assert.Equal(t, []string{"make"}, rr.calls, "no commands may run after a failure")
}

func TestStageRunnerRealProcessExitCode(t *testing.T) {
	st := newTestState(t)
	sr := NewStageRunner(CmdRunner{}, st)
	sr.State = state.Derive(st.Paths, os.Environ(), false)
	s := Stage{
		Name:    "shell",
		LogPath: filepath.Join(t.TempDir(), "shell.log"),
		Run: func(ctx context.Context, x *Exec) error {
			return x.Shell(ctx, "", "echo from-child; exit 3")
		},
	}

	out := sr.Run(context.Background(), s)
	require.Error(t, out.Err)
	assert.Equal(t, 3, out.ExitCode)
	assert.Contains(t, strings.Join(out.LogTail, "\n"), "from-child")
}

func TestStageRunnerPanicBecomesFailure(t *testing.T) {
	st := newTestState(t)
	sr := NewStageRunner(&recordingRunner{}, st)
	s := Stage{
		Name:    "panics",
		LogPath: st.Paths.StageLog("panics"),
		Run:     func(context.Context, *Exec) error { panic("bad stage") },
	}

	out := sr.Run(context.Background(), s)
	require.Error(t, out.Err)
	assert.Equal(t, -1, out.ExitCode)
	assert.Contains(t, out.Err.Error(), "bad stage")
}

func TestStageRunnerNilActionIsNoop(t *testing.T) {
	st := newTestState(t)
	sr := NewStageRunner(&recordingRunner{}, st)
	out := sr.Test(context.Background(), Stage{Name: "no-test", LogPath: st.Paths.StageLog("no-test")})
	assert.True(t, out.Success())
	_, err := os.Stat(st.Paths.StageLog("no-test"))
	assert.True(t, errors.Is(err, os.ErrNotExist), "no log should be created without an action")
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, -1, ExitCode(errors.New("plain")))
	assert.Equal(t, 7, ExitCode(fmt.Errorf("wrapped: %w", exitErr(7))))
}
