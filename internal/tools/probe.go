package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Probe is a read-only check contributing evidence towards a stage's status.
type Probe interface {
	Probe(ctx context.Context, q Query) Evidence
}

// Executable looks for a binary. With Dir set the lookup is scoped to that
// directory; otherwise Name is resolved against PathEnv. When VersionArgs is
// set the binary must answer the version query, and when Min is set the
// reported version must be at least Min.
type Executable struct {
	Name        string
	Dir         string
	PathEnv     string
	VersionArgs []string
	Min         *Version
	Env         []string
}

func (e Executable) Probe(ctx context.Context, q Query) Evidence {
	ev := Evidence{Probe: "executable:" + e.Name}

	var path string
	if e.Dir != "" {
		path = filepath.Join(e.Dir, e.Name)
		if !isExecutable(path) {
			ev.Detail = fmt.Sprintf("%s not found in %s", e.Name, e.Dir)
			return ev
		}
	} else {
		resolved, err := LookPath(e.Name, e.PathEnv)
		if err != nil {
			ev.Detail = fmt.Sprintf("%s not found in PATH", e.Name)
			return ev
		}
		path = resolved
	}
	ev.Path = path

	if e.VersionArgs == nil {
		ev.Found = true
		return ev
	}

	out, err := safeQuery(ctx, q, path, e.VersionArgs, e.Env)
	if err != nil {
		ev.Detail = "version query failed: " + exitDetail(err)
		return ev
	}
	line := strings.TrimSpace(firstLine(strings.TrimSpace(string(out))))
	ev.Version = line

	if e.Min == nil {
		ev.Found = true
		return ev
	}
	v, ok := ParseVersion(line)
	if !ok {
		ev.Detail = fmt.Sprintf("cannot parse version from %q", line)
		return ev
	}
	if !v.AtLeast(*e.Min) {
		ev.Detail = fmt.Sprintf("version %s below minimum %s", v, *e.Min)
		return ev
	}
	ev.Found = true
	return ev
}

// GitCheckout requires Dir to be a git working tree.
type GitCheckout struct {
	Dir string
}

func (g GitCheckout) Probe(_ context.Context, _ Query) Evidence {
	ev := Evidence{Probe: "git:" + filepath.Base(g.Dir), Path: g.Dir}
	if _, err := os.Stat(filepath.Join(g.Dir, ".git")); err != nil {
		ev.Detail = "no git checkout at " + g.Dir
		return ev
	}
	ev.Found = true
	return ev
}

// Directory requires Path to exist and be a directory.
type Directory struct {
	Path string
}

func (d Directory) Probe(_ context.Context, _ Query) Evidence {
	ev := Evidence{Probe: "dir:" + filepath.Base(d.Path), Path: d.Path}
	info, err := os.Stat(d.Path)
	if err != nil || !info.IsDir() {
		ev.Detail = "missing directory " + d.Path
		return ev
	}
	ev.Found = true
	return ev
}

// File requires Path to exist and be a regular file.
type File struct {
	Path string
}

func (f File) Probe(_ context.Context, _ Query) Evidence {
	ev := Evidence{Probe: "file:" + filepath.Base(f.Path), Path: f.Path}
	info, err := os.Stat(f.Path)
	if err != nil || !info.Mode().IsRegular() {
		ev.Detail = "missing file " + f.Path
		return ev
	}
	ev.Found = true
	return ev
}

// Packages requires every named OS package to be installed according to
// dpkg.
type Packages struct {
	Names []string
}

func (p Packages) Probe(ctx context.Context, q Query) Evidence {
	ev := Evidence{Probe: "packages"}
	if len(p.Names) == 0 {
		ev.Found = true
		return ev
	}

	args := append([]string{"-W", "-f=${Package} ${Status}\n"}, p.Names...)
	// dpkg-query exits non-zero when any package is unknown but still prints
	// the ones it knows, so the output is inspected regardless of err.
	out, err := safeQuery(ctx, q, "dpkg-query", args, nil)
	if err != nil && len(out) == 0 {
		ev.Detail = "dpkg-query failed: " + exitDetail(err)
		return ev
	}

	installed := map[string]bool{}
	for _, line := range strings.Split(string(out), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 4 {
			continue
		}
		name := strings.SplitN(fields[0], ":", 2)[0]
		if strings.Join(fields[1:4], " ") == "install ok installed" {
			installed[name] = true
		}
	}

	var missing []string
	for _, name := range p.Names {
		if !installed[name] {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		ev.Detail = "missing packages: " + strings.Join(missing, " ")
		return ev
	}
	ev.Found = true
	return ev
}

// PythonImport requires Python to import Module with the given environment.
// Env is the complete child environment, so callers scope PYTHONPATH and any
// tool home variables to the install root.
type PythonImport struct {
	Python string
	Module string
	Env    []string
}

func (p PythonImport) Probe(ctx context.Context, q Query) Evidence {
	python := p.Python
	if python == "" {
		python = "python3"
	}
	ev := Evidence{Probe: "python:" + p.Module}
	_, err := safeQuery(ctx, q, python, []string{"-c", "import " + p.Module}, p.Env)
	if err != nil {
		ev.Detail = fmt.Sprintf("import %s failed: %s", p.Module, exitDetail(err))
		return ev
	}
	ev.Found = true
	return ev
}
