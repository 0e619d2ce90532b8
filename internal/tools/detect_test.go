package tools

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTool(t *testing.T, dir, name, version string) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, name)
	script := "#!/bin/sh\necho \"" + version + "\"\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDetectScopedToInstallRoot(t *testing.T) {
	r1 := filepath.Join(t.TempDir(), "bin")
	r2 := filepath.Join(t.TempDir(), "bin")
	writeTool(t, r1, "openroad", "v2.0-1234")
	t.Setenv("PATH", r1+string(filepath.ListSeparator)+os.Getenv("PATH"))

	ctx := context.Background()
	d := Detector{}

	global := d.Detect(ctx, Executable{Name: "openroad", PathEnv: os.Getenv("PATH")})
	if global.Status != StatusSatisfied {
		t.Fatalf("expected global lookup to find openroad, got %+v", global)
	}

	scoped := d.Detect(ctx, Executable{Name: "openroad", Dir: r2, VersionArgs: []string{"-version"}})
	if scoped.Status != StatusMissing {
		t.Fatalf("expected scoped detection against R2 to be missing, got %+v", scoped)
	}

	own := d.Detect(ctx, Executable{Name: "openroad", Dir: r1, VersionArgs: []string{"-version"}})
	if own.Status != StatusSatisfied {
		t.Fatalf("expected scoped detection against R1 to succeed, got %+v", own)
	}
	if own.Evidence[0].Version != "v2.0-1234" {
		t.Fatalf("unexpected version %q", own.Evidence[0].Version)
	}
}

func TestDetectExecutableMinimum(t *testing.T) {
	dir := t.TempDir()
	writeTool(t, dir, "yosys", "Yosys 0.9 (git sha1 1979e0b)")
	min := Version{0, 58}

	report := Detector{}.Detect(context.Background(), Executable{
		Name: "yosys", Dir: dir, VersionArgs: []string{"-V"}, Min: &min,
	})
	if report.Status != StatusMissing {
		t.Fatalf("expected old yosys to be missing, got %+v", report)
	}
	if !strings.Contains(report.Evidence[0].Detail, "below minimum") {
		t.Fatalf("unexpected detail %q", report.Evidence[0].Detail)
	}
}

func TestDetectStatusAggregation(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, ".git"), 0o755); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	d := Detector{}

	tests := []struct {
		name   string
		probes []Probe
		want   Status
	}{
		{"none", nil, StatusMissing},
		{"all", []Probe{GitCheckout{Dir: dir}, Directory{Path: dir}}, StatusSatisfied},
		{"some", []Probe{GitCheckout{Dir: dir}, File{Path: filepath.Join(dir, "absent")}}, StatusPartial},
		{"nothing found", []Probe{GitCheckout{Dir: filepath.Join(dir, "x")}}, StatusMissing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := d.Detect(ctx, tt.probes...).Status; got != tt.want {
				t.Fatalf("got %s, want %s", got, tt.want)
			}
		})
	}
}

type panicProbe struct{}

func (panicProbe) Probe(context.Context, Query) Evidence { panic("kaboom") }

func TestDetectPanicIsMissing(t *testing.T) {
	report := Detector{}.Detect(context.Background(), panicProbe{})
	if report.Status != StatusMissing {
		t.Fatalf("expected missing, got %s", report.Status)
	}
	if !strings.Contains(report.Evidence[0].Detail, "panicked") {
		t.Fatalf("unexpected detail %q", report.Evidence[0].Detail)
	}
}

func TestPackagesProbe(t *testing.T) {
	output := "git install ok installed\ntmux deinstall ok config-files\n"
	var gotArgs []string
	q := func(_ context.Context, name string, args []string, _ []string) ([]byte, error) {
		gotArgs = append([]string{name}, args...)
		return []byte(output), errors.New("exit status 1")
	}

	ev := Packages{Names: []string{"git", "tmux", "bison"}}.Probe(context.Background(), q)
	if ev.Found {
		t.Fatal("expected missing packages")
	}
	if ev.Detail != "missing packages: tmux bison" {
		t.Fatalf("unexpected detail %q", ev.Detail)
	}
	if gotArgs[0] != "dpkg-query" || gotArgs[len(gotArgs)-1] != "bison" {
		t.Fatalf("unexpected invocation %v", gotArgs)
	}

	ev = Packages{Names: []string{"git"}}.Probe(context.Background(), q)
	if !ev.Found {
		t.Fatalf("expected git to be installed: %s", ev.Detail)
	}
}

func TestPythonImportProbeUsesScopedEnv(t *testing.T) {
	var gotEnv []string
	q := func(_ context.Context, name string, args []string, env []string) ([]byte, error) {
		gotEnv = env
		if name != "python3" || args[1] != "import openram" {
			t.Fatalf("unexpected call %s %v", name, args)
		}
		return nil, nil
	}

	env := []string{"OPENRAM_HOME=/r2/OpenRAM/compiler", "PYTHONPATH=/r2/OpenRAM/compiler"}
	ev := PythonImport{Module: "openram", Env: env}.Probe(context.Background(), q)
	if !ev.Found {
		t.Fatalf("expected import to succeed: %s", ev.Detail)
	}
	if len(gotEnv) != 2 || gotEnv[0] != env[0] {
		t.Fatalf("expected scoped env to be passed through, got %v", gotEnv)
	}
}

func TestLookPathExcluding(t *testing.T) {
	inside := filepath.Join(t.TempDir(), "bin")
	outside := filepath.Join(t.TempDir(), "bin")
	writeTool(t, inside, "yosys", "Yosys 0.60")
	want := writeTool(t, outside, "yosys", "Yosys 0.59")

	pathEnv := inside + string(filepath.ListSeparator) + outside
	got, err := LookPathExcluding("yosys", pathEnv, func(dir string) bool { return dir == inside })
	if err != nil {
		t.Fatalf("LookPathExcluding: %v", err)
	}
	if got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
}
