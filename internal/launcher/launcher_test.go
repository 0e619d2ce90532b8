package launcher

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edasetup/internal/stage"
)

type fakeSessions struct {
	started []Session
	err     error
}

func (f *fakeSessions) Start(_ context.Context, s Session) error {
	f.started = append(f.started, s)
	return f.err
}

func TestSessionName(t *testing.T) {
	tests := map[string]string{
		"sram_16x2.py":              "sram_16x2",
		"/abs/path/configs/big.py":  "big",
		"noext":                     "noext",
		"archive.tar.gz":            "archive_tar",
		".hidden":                   "_hidden",
		"x/.py":                     "_py",
		"host:1.py":                 "host_1",
		"/":                         "",
		".":                         "",
		"configs/..":                "",
		"dir.with.dots/config_a.py": "config_a",
	}
	for in, want := range tests {
		assert.Equal(t, want, SessionName(in), in)
	}
}

func TestLaunchRejectsBadArguments(t *testing.T) {
	for _, args := range [][]string{nil, {}, {"a.py", "b.py"}, {" "}, {"."}, {"/"}} {
		f := &fakeSessions{}
		_, err := Launch(context.Background(), args, Job{Command: "python3 sram_compiler.py"}, f)
		require.ErrorIs(t, err, ErrUsage)
		assert.Empty(t, f.started, "no session for %v", args)
	}
}

func TestLaunchStartsOneSession(t *testing.T) {
	dir := t.TempDir()
	f := &fakeSessions{}
	s, err := Launch(context.Background(), []string{"/cfg/sram_16x2.py"}, Job{
		Command:   "python3 sram_compiler.py",
		Dir:       dir,
		EnvScript: "/eda/eda_env.sh",
	}, f)
	require.NoError(t, err)
	require.Len(t, f.started, 1)
	assert.Equal(t, "sram_16x2", s.Name)
	assert.Equal(t, filepath.Join(dir, "sram_16x2.log"), s.LogPath)
	assert.Equal(t, "source '/eda/eda_env.sh' && cd '"+dir+"' && python3 sram_compiler.py '/cfg/sram_16x2.py' > '"+s.LogPath+"' 2>&1", s.Command)
}

func TestLaunchPropagatesBackendError(t *testing.T) {
	f := &fakeSessions{err: errors.New("duplicate session")}
	_, err := Launch(context.Background(), []string{"job.py"}, Job{Command: "true"}, f)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate session")
}

type recordingRunner struct {
	command string
	args    []string
	opts    stage.RunOptions
}

func (r *recordingRunner) Run(_ context.Context, command string, args []string, opts stage.RunOptions) (stage.RunResult, error) {
	r.command = command
	r.args = args
	r.opts = opts
	return stage.RunResult{}, nil
}

func TestTmuxStart(t *testing.T) {
	rr := &recordingRunner{}
	err := Tmux{Runner: rr}.Start(context.Background(), Session{Name: "job", Dir: "/work", Command: "run it"})
	require.NoError(t, err)
	assert.Equal(t, "tmux", rr.command)
	assert.Equal(t, []string{"new-session", "-d", "-s", "job", "-c", "/work", "bash", "-c", "run it"}, rr.args)
	assert.Equal(t, "/work", rr.opts.Dir)
}

func TestShellQuote(t *testing.T) {
	assert.Equal(t, `'it'\''s'`, shellQuote("it's"))
}

// A tmux server that is already running gives new sessions its own global
// environment, so the job must still see the sourced variables.
func TestTmuxSessionSourcesEnvironmentWithRunningServer(t *testing.T) {
	for _, bin := range []string{"tmux", "bash"} {
		if _, err := exec.LookPath(bin); err != nil {
			t.Skip(bin + " not available")
		}
	}
	t.Setenv("TMUX_TMPDIR", t.TempDir())
	t.Setenv("TMUX", "")
	t.Setenv("OPENRAM_HOME", "/stale/home")

	server := exec.Command("tmux", "new-session", "-d", "-s", "existing", "sleep 60")
	if out, err := server.CombinedOutput(); err != nil {
		t.Skipf("cannot start tmux server: %v: %s", err, out)
	}
	t.Cleanup(func() { _ = exec.Command("tmux", "kill-server").Run() })

	root := t.TempDir()
	envScript := filepath.Join(root, "eda_env.sh")
	require.NoError(t, os.WriteFile(envScript, []byte("export OPENRAM_HOME=\"/opt/openram/compiler\"\n"), 0o644))

	s, err := Launch(context.Background(), []string{filepath.Join(root, "job.py")}, Job{
		Command:   `echo "[$OPENRAM_HOME]"`,
		Dir:       root,
		EnvScript: envScript,
	}, Tmux{})
	require.NoError(t, err)

	var seen string
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		data, _ := os.ReadFile(s.LogPath)
		if seen = string(data); strings.Contains(seen, "]") {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	assert.Contains(t, seen, "[/opt/openram/compiler]")
}
