// Package state derives the installation state of a host from filesystem and
// environment evidence. Nothing here is persisted; a fresh State is built on
// every invocation.
package state

import (
	"sort"
	"strings"

	"edasetup/internal/paths"
)

// HintVars are variables a previous install may have exported. They are only
// trusted when they point inside the current install root.
var HintVars = []string{"FLOW_HOME", "OPENRAM_HOME", "OPENRAM_TECH"}

// InstallationState is the explicit replacement for ambient shell variables:
// it is threaded through the orchestrator, the detectors and the
// environment emitter.
type InstallationState struct {
	Paths paths.InstallPaths
	Fresh bool

	env     map[string]string
	cleared []string
}

// Derive builds the state for install root p from the given process
// environment ("KEY=VALUE" pairs). With fresh set, hint variables are dropped
// before any detection happens.
func Derive(p paths.InstallPaths, environ []string, fresh bool) *InstallationState {
	env := make(map[string]string, len(environ))
	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			continue
		}
		env[key] = value
	}

	s := &InstallationState{Paths: p, Fresh: fresh, env: env}
	if fresh {
		for _, name := range HintVars {
			if _, ok := env[name]; ok {
				delete(env, name)
				s.cleared = append(s.cleared, name)
			}
		}
	}
	return s
}

// Getenv returns the value of key in the derived environment.
func (s *InstallationState) Getenv(key string) string {
	return s.env[key]
}

// Hint returns the value of a hint variable when it resolves inside the
// install root. Hints from unrelated installs are ignored.
func (s *InstallationState) Hint(key string) (string, bool) {
	value, ok := s.env[key]
	if !ok || strings.TrimSpace(value) == "" {
		return "", false
	}
	if !s.Paths.Contains(value) {
		return "", false
	}
	return value, true
}

// Cleared lists the hint variables dropped because of --fresh.
func (s *InstallationState) Cleared() []string {
	out := make([]string, len(s.cleared))
	copy(out, s.cleared)
	return out
}

// Environ returns the derived environment as sorted "KEY=VALUE" pairs,
// suitable for exec.Cmd.Env. Extra pairs override existing keys.
func (s *InstallationState) Environ(extra ...string) []string {
	merged := make(map[string]string, len(s.env)+len(extra))
	for k, v := range s.env {
		merged[k] = v
	}
	for _, kv := range extra {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			continue
		}
		merged[key] = value
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+merged[k])
	}
	return out
}
