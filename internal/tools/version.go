package tools

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Version is a MAJOR.MINOR pair. Comparison is numeric on both components,
// so 0.9 sorts before 0.58.
type Version struct {
	Major int
	Minor int
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// Compare returns -1, 0 or 1 comparing v against o.
func (v Version) Compare(o Version) int {
	switch {
	case v.Major < o.Major:
		return -1
	case v.Major > o.Major:
		return 1
	case v.Minor < o.Minor:
		return -1
	case v.Minor > o.Minor:
		return 1
	}
	return 0
}

// AtLeast reports whether v >= min.
func (v Version) AtLeast(min Version) bool {
	return v.Compare(min) >= 0
}

var versionPattern = regexp.MustCompile(`([0-9]+)\.([0-9]+)`)

// ParseVersion extracts the first MAJOR.MINOR token from a version string.
// Prefixes ("Yosys ", "v") and trailing qualifiers ("+12", "-rc1",
// " (git sha1 ...)") are ignored.
func ParseVersion(text string) (Version, bool) {
	match := versionPattern.FindStringSubmatch(firstLine(strings.TrimSpace(text)))
	if match == nil {
		return Version{}, false
	}
	major, err := strconv.Atoi(match[1])
	if err != nil {
		return Version{}, false
	}
	minor, err := strconv.Atoi(match[2])
	if err != nil {
		return Version{}, false
	}
	return Version{Major: major, Minor: minor}, true
}

// Requirement pairs a tool with its minimum acceptable version.
type Requirement struct {
	Tool string
	Min  Version
}

// ParseRequirement builds a Requirement from a "MAJOR.MINOR" string.
func ParseRequirement(tool, min string) (Requirement, error) {
	v, ok := ParseVersion(min)
	if !ok {
		return Requirement{}, fmt.Errorf("%s: invalid minimum version %q", tool, min)
	}
	return Requirement{Tool: tool, Min: v}, nil
}

func (r Requirement) String() string {
	return fmt.Sprintf("%s >= %s", r.Tool, r.Min)
}

// Variant is the path a version gated stage takes.
type Variant string

const (
	UseExisting     Variant = "use-existing"
	BuildFromSource Variant = "build-from-source"
)

// ChooseVariant decides between reusing a detected tool and building it.
// Unparsable version strings build from source.
func ChooseVariant(detected string, min Version) Variant {
	v, ok := ParseVersion(detected)
	if !ok {
		return BuildFromSource
	}
	if v.AtLeast(min) {
		return UseExisting
	}
	return BuildFromSource
}

// Decision is the result of a Gate query.
type Decision struct {
	Variant  Variant
	Path     string
	Detected string
	Reason   string
}

// Gate queries an installed tool for its version and picks a Variant.
type Gate struct {
	Query Query
}

// Choose runs path with versionArgs and compares the reported version against
// req. An empty path, a failing query, or unparsable output all yield
// BuildFromSource.
func (g Gate) Choose(ctx context.Context, req Requirement, path string, versionArgs []string) Decision {
	if path == "" {
		return Decision{Variant: BuildFromSource, Reason: req.Tool + " not found"}
	}
	query := g.Query
	if query == nil {
		query = ExecQuery
	}

	out, err := safeQuery(ctx, query, path, versionArgs, nil)
	if err != nil {
		return Decision{Variant: BuildFromSource, Path: path, Reason: "version query failed: " + exitDetail(err)}
	}
	detected := strings.TrimSpace(firstLine(strings.TrimSpace(string(out))))
	variant := ChooseVariant(detected, req.Min)
	decision := Decision{Variant: variant, Path: path, Detected: detected}
	switch {
	case variant == UseExisting:
		decision.Reason = fmt.Sprintf("%q satisfies %s", detected, req)
	default:
		if _, ok := ParseVersion(detected); ok {
			decision.Reason = fmt.Sprintf("%q is older than %s", detected, req)
		} else {
			decision.Reason = fmt.Sprintf("cannot parse version from %q", detected)
		}
	}
	return decision
}

// safeQuery runs q and converts a panic into an error so probes stay
// side-effect-free and non-fatal.
func safeQuery(ctx context.Context, q Query, name string, args []string, env []string) (out []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("query %s panicked: %v", name, r)
		}
	}()
	return q(ctx, name, args, env)
}
