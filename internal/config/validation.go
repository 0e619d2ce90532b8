package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// ValidationResult captures a single validation finding.
type ValidationResult struct {
	Level   string `json:"level"` // "error" or "warning"
	Message string `json:"message"`
}

var (
	minVersionPattern  = regexp.MustCompile(`^[0-9]+\.[0-9]+$`)
	packageNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9+.\-]*$`)
	envNamePattern     = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// Validate runs all validations against the config and returns structured
// results sorted errors first.
func (c Config) Validate() []ValidationResult {
	var results []ValidationResult
	results = append(results, c.validateRepos()...)
	results = append(results, c.validatePackages()...)
	results = append(results, c.validateVersions()...)
	results = append(results, c.validateEnv()...)
	results = append(results, c.validateLauncher()...)

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Level == "error" && results[j].Level != "error"
	})
	return results
}

// HasErrors reports whether any result is at error level.
func HasErrors(results []ValidationResult) bool {
	for _, r := range results {
		if r.Level == "error" {
			return true
		}
	}
	return false
}

func (c Config) validateRepos() []ValidationResult {
	var results []ValidationResult
	repos := []struct {
		name string
		repo RepoConfig
	}{
		{"flow_scripts", c.FlowScripts},
		{"yosys.source", c.Yosys.Source},
		{"openram.repo", c.OpenRAM.Repo},
	}
	seenDirs := map[string]string{}
	for _, r := range repos {
		if _, err := url.Parse(r.repo.URL); err != nil || strings.TrimSpace(r.repo.URL) == "" {
			results = append(results, ValidationResult{
				Level:   "error",
				Message: fmt.Sprintf("%s: invalid repository url %q", r.name, r.repo.URL),
			})
		}
		dir := filepath.Clean(r.repo.Dir)
		if filepath.IsAbs(dir) || strings.HasPrefix(dir, "..") {
			results = append(results, ValidationResult{
				Level:   "error",
				Message: fmt.Sprintf("%s: dir %q must be relative to the install root", r.name, r.repo.Dir),
			})
		}
		if other, ok := seenDirs[dir]; ok {
			results = append(results, ValidationResult{
				Level:   "error",
				Message: fmt.Sprintf("%s: dir %q already used by %s", r.name, r.repo.Dir, other),
			})
		}
		seenDirs[dir] = r.name
	}
	return results
}

func (c Config) validatePackages() []ValidationResult {
	var results []ValidationResult
	seen := map[string]bool{}
	for _, pkg := range c.Packages {
		if !packageNamePattern.MatchString(pkg) {
			results = append(results, ValidationResult{
				Level:   "error",
				Message: fmt.Sprintf("package %q is not a valid package name", pkg),
			})
			continue
		}
		if seen[pkg] {
			results = append(results, ValidationResult{
				Level:   "warning",
				Message: fmt.Sprintf("package %q listed more than once", pkg),
			})
		}
		seen[pkg] = true
	}
	return results
}

func (c Config) validateVersions() []ValidationResult {
	if minVersionPattern.MatchString(strings.TrimSpace(c.Yosys.MinVersion)) {
		return nil
	}
	return []ValidationResult{{
		Level:   "error",
		Message: fmt.Sprintf("yosys.min_version %q must be MAJOR.MINOR", c.Yosys.MinVersion),
	}}
}

func (c Config) validateEnv() []ValidationResult {
	var results []ValidationResult
	keys := make([]string, 0, len(c.Env))
	for k := range c.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !envNamePattern.MatchString(k) {
			results = append(results, ValidationResult{
				Level:   "error",
				Message: fmt.Sprintf("env: %q is not a valid variable name", k),
			})
		}
		if k == "PATH" {
			results = append(results, ValidationResult{
				Level:   "warning",
				Message: "env: PATH is managed by edasetup and will be ignored",
			})
		}
	}
	return results
}

func (c Config) validateLauncher() []ValidationResult {
	var results []ValidationResult
	if strings.ContainsRune(c.Launcher.Script, filepath.Separator) {
		results = append(results, ValidationResult{
			Level:   "error",
			Message: fmt.Sprintf("launcher.script %q must be a file name", c.Launcher.Script),
		})
	}
	if strings.TrimSpace(c.Launcher.Command) == "" {
		results = append(results, ValidationResult{
			Level:   "error",
			Message: "launcher.command must not be empty",
		})
	}
	return results
}
