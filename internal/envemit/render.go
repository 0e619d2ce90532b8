package envemit

import (
	"bytes"
	"fmt"
	"strings"
)

const header = "# Generated by edasetup. Re-running edasetup rewrites this file.\n"

// RenderEnv returns the environment script for d. Output depends only on d,
// so identical state always yields identical bytes.
func RenderEnv(d Descriptor) []byte {
	var buf bytes.Buffer
	buf.WriteString("#!/usr/bin/env bash\n")
	buf.WriteString(header)
	for _, k := range d.Keys() {
		fmt.Fprintf(&buf, "export %s=%s\n", k, quote(d.Vars[k]))
	}
	if len(d.PathPrepend) > 0 {
		parts := make([]string, 0, len(d.PathPrepend))
		for _, dir := range d.PathPrepend {
			parts = append(parts, escape(dir))
		}
		fmt.Fprintf(&buf, "export PATH=\"%s:$PATH\"\n", strings.Join(parts, ":"))
	}
	return buf.Bytes()
}

// LauncherSpec describes the generated job launcher.
type LauncherSpec struct {
	EnvScript string
	WorkDir   string
	// Command is the tool invocation; the job's config file is appended.
	Command string
}

// RenderLauncher returns a bash script that starts Command on its single
// argument in a detached tmux session named after the argument. The env
// script is sourced inside the session, since a running tmux server hands
// new sessions its own environment rather than the caller's.
func RenderLauncher(spec LauncherSpec) []byte {
	var buf bytes.Buffer
	buf.WriteString("#!/usr/bin/env bash\n")
	buf.WriteString(header)
	buf.WriteString("set -euo pipefail\n\n")
	buf.WriteString("usage() {\n")
	buf.WriteString("    echo \"usage: $(basename \"$0\") CONFIG\" >&2\n")
	buf.WriteString("    exit 1\n")
	buf.WriteString("}\n\n")
	buf.WriteString("[ \"$#\" -eq 1 ] || usage\n\n")
	buf.WriteString("config=\"$1\"\n")
	// Same rule as launcher.SessionName.
	buf.WriteString("name=\"$(basename -- \"$config\")\"\n")
	buf.WriteString("case \"$name\" in\n")
	buf.WriteString("    \"\"|.|..|/) usage ;;\n")
	buf.WriteString("esac\n")
	buf.WriteString("stem=\"${name%.*}\"\n")
	buf.WriteString("if [ -n \"$stem\" ]; then name=\"$stem\"; fi\n")
	buf.WriteString("name=\"${name//[.:]/_}\"\n")
	buf.WriteString("case \"$config\" in\n")
	buf.WriteString("    /*) ;;\n")
	buf.WriteString("    *) config=\"$PWD/$config\" ;;\n")
	buf.WriteString("esac\n\n")
	fmt.Fprintf(&buf, "env_script=%s\n", quote(spec.EnvScript))
	fmt.Fprintf(&buf, "workdir=%s\n", quote(spec.WorkDir))
	buf.WriteString("log=\"$workdir/$name.log\"\n")
	fmt.Fprintf(&buf, "job=\"source $(printf '%%q' \"$env_script\") && cd $(printf '%%q' \"$workdir\") && %s $(printf '%%q' \"$config\") > $(printf '%%q' \"$log\") 2>&1\"\n", escape(spec.Command))
	buf.WriteString("tmux new-session -d -s \"$name\" -c \"$workdir\" bash -c \"$job\"\n")
	buf.WriteString("echo \"started session $name (log: $log)\"\n")
	return buf.Bytes()
}

func quote(s string) string {
	return "\"" + escape(s) + "\""
}

// escape makes s safe inside a double-quoted shell word.
func escape(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '\\', '"', '$', '`':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
