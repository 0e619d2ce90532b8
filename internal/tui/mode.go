package tui

import (
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// OutputMode describes how progress output should be rendered.
type OutputMode int

const (
	// ModeTUI uses bubbletea for interactive progress rendering.
	ModeTUI OutputMode = iota
	// ModePlain writes one line per stage transition.
	ModePlain
	// ModeJSON writes a structured report after the run.
	ModeJSON
)

// DetectMode determines the appropriate output mode for the given writer.
func DetectMode(out io.Writer, noProgress, jsonOutput bool) OutputMode {
	if jsonOutput {
		return ModeJSON
	}
	if noProgress {
		return ModePlain
	}
	file, ok := out.(*os.File)
	if !ok || !term.IsTerminal(int(file.Fd())) {
		return ModePlain
	}
	if t := os.Getenv("TERM"); t == "" || strings.EqualFold(t, "dumb") {
		return ModePlain
	}
	if os.Getenv("CI") != "" {
		return ModePlain
	}
	return ModeTUI
}
