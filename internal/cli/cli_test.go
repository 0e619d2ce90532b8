package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"edasetup/internal/launcher"
	"edasetup/internal/orchestrator"
	"edasetup/internal/platform"
	"edasetup/internal/stage"
	"edasetup/internal/tools"
)

type fakeRunner struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]error
	// cancel is called when cancelOn runs, standing in for SIGINT.
	cancelOn string
	cancel   context.CancelFunc
}

func (r *fakeRunner) Run(_ context.Context, command string, args []string, opts stage.RunOptions) (stage.RunResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, strings.TrimSpace(command+" "+strings.Join(args, " ")))
	if opts.Stdout != nil {
		fmt.Fprintf(opts.Stdout, "output of %s\n", command)
	}
	if command == r.cancelOn && r.cancel != nil {
		r.cancel()
		return stage.RunResult{}, errors.New("signal: killed")
	}
	if err, ok := r.fail[command]; ok {
		return stage.RunResult{}, err
	}
	return stage.RunResult{}, nil
}

type exitErr int

func (e exitErr) Error() string { return fmt.Sprintf("exit status %d", int(e)) }
func (e exitErr) ExitCode() int { return int(e) }

type fakeSessions struct {
	started []launcher.Session
}

func (f *fakeSessions) Start(_ context.Context, s launcher.Session) error {
	f.started = append(f.started, s)
	return nil
}

func missingQuery(context.Context, string, []string, []string) ([]byte, error) {
	return nil, errors.New("not installed")
}

var ubuntuHost = platform.Host{
	GOOS:      "linux",
	EUID:      1000,
	OSRelease: []byte("ID=ubuntu\nID_LIKE=debian\n"),
	LookPath:  func(string) (string, error) { return "/bin/bash", nil },
}

// withSeams installs fakes for the host, probes and command runner and
// restores the originals when the test ends.
func withSeams(t *testing.T, host platform.Host, runner *fakeRunner) {
	t.Helper()
	prevHost, prevQuery, prevRunner, prevEnviron, prevSessions := currentHost, probeQuery, newRunner, environ, newSessions
	t.Cleanup(func() {
		currentHost, probeQuery, newRunner, environ, newSessions = prevHost, prevQuery, prevRunner, prevEnviron, prevSessions
	})

	emptyPath := t.TempDir()
	currentHost = func() platform.Host { return host }
	probeQuery = tools.Query(missingQuery)
	newRunner = func() stage.Runner { return runner }
	environ = func() []string { return []string{"PATH=" + emptyPath, "HOME=/home/eda"} }
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	return executeContext(t, context.Background(), args...)
}

func executeContext(t *testing.T, ctx context.Context, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCmd()
	cmd.SetContext(ctx)
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestInstallRefusesPrivilegedUser(t *testing.T) {
	host := ubuntuHost
	host.EUID = 0
	withSeams(t, host, &fakeRunner{})
	root := filepath.Join(t.TempDir(), "eda")

	_, _, err := execute(t, "--install-dir", root, "--no-progress")
	var pe *platform.PreconditionError
	if !errors.As(err, &pe) {
		t.Fatalf("expected precondition error, got %v", err)
	}
	if _, statErr := os.Stat(root); !os.IsNotExist(statErr) {
		t.Fatalf("install root must not be created on precondition failure")
	}
}

func TestInstallRunsStagesAndEmitsEnvironment(t *testing.T) {
	runner := &fakeRunner{}
	withSeams(t, ubuntuHost, runner)
	root := t.TempDir()

	stdout, _, err := execute(t, "--install-dir", root, "--no-progress", "--jobs", "2")
	if err != nil {
		t.Fatalf("install: %v", err)
	}

	if !strings.Contains(stdout, "Installed: packages, flow-scripts, yosys, openroad, openram") {
		t.Fatalf("unexpected output %q", stdout)
	}
	if !strings.Contains(stdout, "SUMMARY:") {
		t.Fatalf("expected summary in %q", stdout)
	}
	for _, want := range []string{"sudo apt-get update", "./build_openroad.sh --local --threads 2", "make -j 2 install PREFIX=" + filepath.Join(root, "OpenROAD-flow-scripts", "tools", "install", "yosys")} {
		found := false
		for _, c := range runner.calls {
			if c == want {
				found = true
			}
		}
		if !found {
			t.Errorf("expected command %q in %v", want, runner.calls)
		}
	}

	env, err := os.ReadFile(filepath.Join(root, "eda_env.sh"))
	if err != nil {
		t.Fatalf("read env script: %v", err)
	}
	if !strings.Contains(string(env), "export EDA_INSTALL_ROOT=\""+root+"\"") {
		t.Fatalf("env script missing install root:\n%s", env)
	}
	if _, err := os.Stat(filepath.Join(root, "openram_job.sh")); err != nil {
		t.Fatalf("launcher not written: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "logs", "openroad.log")); err != nil {
		t.Fatalf("stage log not written: %v", err)
	}
}

func TestInstallFailureNamesStage(t *testing.T) {
	runner := &fakeRunner{fail: map[string]error{"./build_openroad.sh": exitErr(3)}}
	withSeams(t, ubuntuHost, runner)
	root := t.TempDir()

	_, stderr, err := execute(t, "--install-dir", root, "--no-progress")
	var se *orchestrator.StageError
	if !errors.As(err, &se) {
		t.Fatalf("expected stage error, got %v", err)
	}
	if se.Stage != "openroad" || se.ExitCode != 3 {
		t.Fatalf("unexpected stage error %+v", se)
	}
	for _, want := range []string{"stage openroad failed", "exit code 3", filepath.Join(root, "logs", "openroad.log"), "output of ./build_openroad.sh", "Re-running edasetup is safe"} {
		if !strings.Contains(stderr, want) {
			t.Errorf("stderr missing %q:\n%s", want, stderr)
		}
	}
	for _, c := range runner.calls {
		if strings.HasPrefix(c, "pip3") {
			t.Fatalf("no stage may run after a failure, saw %q", c)
		}
	}
	if _, err := os.Stat(filepath.Join(root, "eda_env.sh")); !os.IsNotExist(err) {
		t.Fatalf("environment must not be emitted after a failure")
	}
}

func TestInstallInterruptedIsNotAFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runner := &fakeRunner{cancelOn: "./build_openroad.sh", cancel: cancel}
	withSeams(t, ubuntuHost, runner)
	root := t.TempDir()

	_, stderr, err := executeContext(t, ctx, "--install-dir", root, "--no-progress")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	var se *orchestrator.StageError
	if errors.As(err, &se) {
		t.Fatalf("interruption must not be reported as a stage failure: %v", se)
	}
	if strings.Contains(stderr, "FAILED") {
		t.Errorf("stderr reports a failure:\n%s", stderr)
	}
	for _, want := range []string{"INTERRUPTED", "Re-running edasetup is safe"} {
		if !strings.Contains(stderr, want) {
			t.Errorf("stderr missing %q:\n%s", want, stderr)
		}
	}
	if _, err := os.Stat(filepath.Join(root, "eda_env.sh")); !os.IsNotExist(err) {
		t.Fatalf("environment must not be emitted after an interruption")
	}
}

func TestInstallJSONAndMetrics(t *testing.T) {
	withSeams(t, ubuntuHost, &fakeRunner{})
	root := t.TempDir()
	metrics := filepath.Join(root, "edasetup.prom")

	stdout, _, err := execute(t, "--install-dir", root, "--json", "--metrics-file", metrics)
	if err != nil {
		t.Fatalf("install: %v", err)
	}
	var doc installOutput
	if err := json.Unmarshal([]byte(stdout), &doc); err != nil {
		t.Fatalf("decode json: %v\n%s", err, stdout)
	}
	if doc.InstallRoot != root || len(doc.Report.Results) != 5 || len(doc.Emitted) != 2 {
		t.Fatalf("unexpected document %+v", doc)
	}
	data, err := os.ReadFile(metrics)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	if !strings.Contains(string(data), `edasetup_stage_state{stage="openram",state="done"} 1`) {
		t.Fatalf("unexpected metrics:\n%s", data)
	}
}

func TestEnvCommandIsDeterministic(t *testing.T) {
	withSeams(t, ubuntuHost, &fakeRunner{})
	root := t.TempDir()

	first, _, err := execute(t, "--install-dir", root, "env")
	if err != nil {
		t.Fatalf("env: %v", err)
	}
	second, _, err := execute(t, "--install-dir", root, "env")
	if err != nil {
		t.Fatalf("env: %v", err)
	}
	if first != second {
		t.Fatalf("env output differs between runs:\n%s\n---\n%s", first, second)
	}
	if !strings.Contains(first, "export FLOW_HOME=\""+filepath.Join(root, "OpenROAD-flow-scripts", "flow")+"\"") {
		t.Fatalf("unexpected env output:\n%s", first)
	}
	if strings.Count(first, "export PATH=") != 1 {
		t.Fatalf("expected one PATH line:\n%s", first)
	}
}

func TestStatusReportsMissingStages(t *testing.T) {
	runner := &fakeRunner{}
	withSeams(t, ubuntuHost, runner)
	root := t.TempDir()

	stdout, _, err := execute(t, "--install-dir", root, "--json", "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	var doc statusOutput
	if err := json.Unmarshal([]byte(stdout), &doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(doc.Stages) != 5 {
		t.Fatalf("expected 5 stages, got %d", len(doc.Stages))
	}
	for _, st := range doc.Stages {
		if st.Status == tools.StatusSatisfied {
			t.Errorf("stage %s unexpectedly satisfied", st.Stage)
		}
		if st.Stage == "yosys" && !strings.Contains(st.Plan, string(tools.BuildFromSource)) {
			t.Errorf("expected yosys plan to build from source, got %q", st.Plan)
		}
	}
	if len(runner.calls) != 0 {
		t.Fatalf("status must not run install commands, ran %v", runner.calls)
	}
	if _, err := os.Stat(filepath.Join(root, "logs")); !os.IsNotExist(err) {
		t.Fatalf("status must not create files under the install root")
	}
}

func TestLaunchValidatesArguments(t *testing.T) {
	withSeams(t, ubuntuHost, &fakeRunner{})
	sessions := &fakeSessions{}
	newSessions = func() launcher.Sessions { return sessions }
	root := t.TempDir()

	for _, args := range [][]string{{}, {"a.py", "b.py"}} {
		_, stderr, err := execute(t, append([]string{"--install-dir", root, "launch"}, args...)...)
		if !errors.Is(err, launcher.ErrUsage) {
			t.Fatalf("launch %v: expected usage error, got %v", args, err)
		}
		if !strings.Contains(stderr, "usage:") {
			t.Fatalf("expected usage message, got %q", stderr)
		}
	}
	if len(sessions.started) != 0 {
		t.Fatalf("no session may start on bad arguments")
	}

	_, _, err := execute(t, "--install-dir", root, "launch", "/configs/sram_16x2.py")
	if err == nil || !strings.Contains(err.Error(), "eda_env.sh not found") {
		t.Fatalf("launch before install must fail on the missing env script, got %v", err)
	}

	envScript := filepath.Join(root, "eda_env.sh")
	if err := os.WriteFile(envScript, []byte("export OPENRAM_HOME=\"/x\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	stdout, _, err := execute(t, "--install-dir", root, "launch", "/configs/sram_16x2.py")
	if err != nil {
		t.Fatalf("launch: %v", err)
	}
	if len(sessions.started) != 1 {
		t.Fatalf("expected exactly one session, got %d", len(sessions.started))
	}
	s := sessions.started[0]
	if s.Name != "sram_16x2" || s.Dir != filepath.Join(root, "OpenRAM") {
		t.Fatalf("unexpected session %+v", s)
	}
	if !strings.HasPrefix(s.Command, "source '"+envScript+"' && cd '"+s.Dir+"' && ") {
		t.Fatalf("session command must source the env script first: %q", s.Command)
	}
	if !strings.Contains(stdout, "tmux attach -t sram_16x2") {
		t.Fatalf("unexpected output %q", stdout)
	}
}

func TestConfigValidateRejectsBadFile(t *testing.T) {
	withSeams(t, ubuntuHost, &fakeRunner{})
	root := t.TempDir()
	cfgPath := filepath.Join(root, "edasetup.yaml")
	if err := os.WriteFile(cfgPath, []byte("yosys:\n  min_version: latest\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	stdout, _, err := execute(t, "--install-dir", root, "config", "validate")
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(stdout, "min_version") {
		t.Fatalf("expected message about min_version, got %q", stdout)
	}

	_, _, err = execute(t, "--install-dir", root, "--no-progress")
	if err == nil || !strings.Contains(err.Error(), "configuration is invalid") {
		t.Fatalf("install must refuse an invalid config, got %v", err)
	}
}

func TestSplitEditorCommand(t *testing.T) {
	got := splitEditorCommand("  code -w ")
	if len(got) != 2 || got[0] != "code" || got[1] != "-w" {
		t.Fatalf("splitEditorCommand = %v", got)
	}
	if splitEditorCommand("") != nil {
		t.Fatal("expected nil for empty editor")
	}
}
