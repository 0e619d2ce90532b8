// Package platform checks host preconditions before any stage runs.
package platform

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// DefaultOSRelease is where the distribution identity is read from.
const DefaultOSRelease = "/etc/os-release"

// SupportedDistros are the os-release IDs the stage catalog knows how to
// provision.
var SupportedDistros = []string{"debian", "ubuntu"}

// PreconditionError reports a host that cannot be provisioned.
type PreconditionError struct {
	Check  string
	Reason string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("precondition %s failed: %s", e.Check, e.Reason)
}

// Host describes the machine being provisioned. Fields are plain values so
// tests can describe any host.
type Host struct {
	GOOS      string
	EUID      int
	OSRelease []byte
	LookPath  func(string) (string, error)
}

// CurrentHost inspects the running machine.
func CurrentHost() Host {
	h := Host{
		GOOS:     runtime.GOOS,
		EUID:     os.Geteuid(),
		LookPath: exec.LookPath,
	}
	if data, err := os.ReadFile(DefaultOSRelease); err == nil {
		h.OSRelease = data
	}
	return h
}

// Check returns a *PreconditionError describing the first unmet
// precondition, or nil.
func Check(h Host) error {
	if h.GOOS != "linux" {
		return &PreconditionError{Check: "os", Reason: fmt.Sprintf("unsupported operating system %q, linux required", h.GOOS)}
	}
	if h.EUID == 0 {
		return &PreconditionError{Check: "user", Reason: "refusing to run as root; run as a regular user with sudo access"}
	}

	release := ParseOSRelease(h.OSRelease)
	if !release.IsSupported() {
		id := release.ID
		if id == "" {
			id = "unknown"
		}
		return &PreconditionError{
			Check:  "distribution",
			Reason: fmt.Sprintf("distribution %q is not one of %s", id, strings.Join(SupportedDistros, ", ")),
		}
	}

	lookPath := h.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	if _, err := lookPath("bash"); err != nil {
		return &PreconditionError{Check: "shell", Reason: "bash not found in PATH"}
	}
	return nil
}

// OSRelease holds the fields of /etc/os-release the checks use.
type OSRelease struct {
	ID         string
	IDLike     []string
	PrettyName string
	VersionID  string
}

// ParseOSRelease parses os-release KEY=VALUE lines. Unknown keys, comments
// and malformed lines are ignored.
func ParseOSRelease(data []byte) OSRelease {
	var r OSRelease
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		value = strings.Trim(strings.TrimSpace(value), `"'`)
		switch key {
		case "ID":
			r.ID = strings.ToLower(value)
		case "ID_LIKE":
			r.IDLike = strings.Fields(strings.ToLower(value))
		case "PRETTY_NAME":
			r.PrettyName = value
		case "VERSION_ID":
			r.VersionID = value
		}
	}
	return r
}

// IsSupported reports whether the release is Debian or a Debian derivative.
func (r OSRelease) IsSupported() bool {
	for _, supported := range SupportedDistros {
		if r.ID == supported {
			return true
		}
		for _, like := range r.IDLike {
			if like == supported {
				return true
			}
		}
	}
	return false
}
