package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// FileName is the default configuration file name inside the install root.
const FileName = "edasetup.yaml"

// Config captures the repositories, packages and build knobs used to install
// the EDA toolchains.
type Config struct {
	Version     int               `yaml:"version"`
	Jobs        int               `yaml:"jobs"`
	Packages    []string          `yaml:"packages"`
	FlowScripts RepoConfig        `yaml:"flow_scripts"`
	Yosys       YosysConfig       `yaml:"yosys"`
	OpenROAD    OpenROADConfig    `yaml:"openroad"`
	OpenRAM     OpenRAMConfig     `yaml:"openram"`
	Launcher    LauncherConfig    `yaml:"launcher"`
	Env         map[string]string `yaml:"env,omitempty"`
}

// RepoConfig identifies a git repository to clone.
type RepoConfig struct {
	URL    string `yaml:"url"`
	Branch string `yaml:"branch,omitempty"`
	Dir    string `yaml:"dir,omitempty"`
}

// YosysConfig controls how the synthesis tool is obtained.
type YosysConfig struct {
	MinVersion string     `yaml:"min_version"`
	Source     RepoConfig `yaml:"source"`
}

// OpenROADConfig controls the OpenROAD build and its self-test design.
type OpenROADConfig struct {
	BuildArgs  []string `yaml:"build_args,omitempty"`
	TestDesign string   `yaml:"test_design"`
}

// OpenRAMConfig controls the OpenRAM checkout.
type OpenRAMConfig struct {
	Repo         RepoConfig `yaml:"repo"`
	Requirements string     `yaml:"requirements"`
	Tech         string     `yaml:"tech"`
}

// LauncherConfig describes the generated detached-session job launcher.
type LauncherConfig struct {
	Script  string `yaml:"script"`
	Command string `yaml:"command"`
}

// Default returns the baseline configuration.
func Default() Config {
	return Config{
		Version: 1,
		Jobs:    runtime.NumCPU(),
		Packages: []string{
			"build-essential",
			"git",
			"python3",
			"python3-pip",
			"python3-venv",
			"tmux",
			"klayout",
			"libffi-dev",
			"libreadline-dev",
			"tcl-dev",
			"bison",
			"flex",
		},
		FlowScripts: RepoConfig{
			URL:    "https://github.com/The-OpenROAD-Project/OpenROAD-flow-scripts.git",
			Branch: "master",
			Dir:    "OpenROAD-flow-scripts",
		},
		Yosys: YosysConfig{
			MinVersion: "0.58",
			Source: RepoConfig{
				URL:    "https://github.com/YosysHQ/yosys.git",
				Branch: "v0.58",
				Dir:    "yosys",
			},
		},
		OpenROAD: OpenROADConfig{
			TestDesign: "./designs/nangate45/gcd/config.mk",
		},
		OpenRAM: OpenRAMConfig{
			Repo: RepoConfig{
				URL:    "https://github.com/VLSIDA/OpenRAM.git",
				Branch: "stable",
				Dir:    "OpenRAM",
			},
			Requirements: "requirements.txt",
			Tech:         "technology",
		},
		Launcher: LauncherConfig{
			Script:  "openram_job.sh",
			Command: "python3 sram_compiler.py",
		},
	}
}

// Load reads the YAML configuration from disk if it exists, otherwise returns
// the default configuration.
func Load(path string) (Config, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := Default()
			cfg.ApplyDefaults()
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

// ApplyDefaults ensures nested fields fall back to sensible defaults when the
// YAML omits them.
func (c *Config) ApplyDefaults() {
	defaults := Default()

	if c.Version == 0 {
		c.Version = defaults.Version
	}
	if c.Jobs <= 0 {
		c.Jobs = defaults.Jobs
	}
	if len(c.Packages) == 0 {
		c.Packages = defaults.Packages
	}
	applyRepoDefaults(&c.FlowScripts, defaults.FlowScripts)
	applyRepoDefaults(&c.Yosys.Source, defaults.Yosys.Source)
	applyRepoDefaults(&c.OpenRAM.Repo, defaults.OpenRAM.Repo)
	if strings.TrimSpace(c.Yosys.MinVersion) == "" {
		c.Yosys.MinVersion = defaults.Yosys.MinVersion
	}
	if c.OpenROAD.TestDesign == "" {
		c.OpenROAD.TestDesign = defaults.OpenROAD.TestDesign
	}
	if c.OpenRAM.Requirements == "" {
		c.OpenRAM.Requirements = defaults.OpenRAM.Requirements
	}
	if c.OpenRAM.Tech == "" {
		c.OpenRAM.Tech = defaults.OpenRAM.Tech
	}
	if c.Launcher.Script == "" {
		c.Launcher.Script = defaults.Launcher.Script
	}
	if c.Launcher.Command == "" {
		c.Launcher.Command = defaults.Launcher.Command
	}
}

func applyRepoDefaults(repo *RepoConfig, defaults RepoConfig) {
	if strings.TrimSpace(repo.URL) == "" {
		repo.URL = defaults.URL
	}
	if strings.TrimSpace(repo.Branch) == "" {
		repo.Branch = defaults.Branch
	}
	if strings.TrimSpace(repo.Dir) == "" {
		repo.Dir = defaults.Dir
	}
}

// Marshal returns the YAML encoding of the configuration.
func (c Config) Marshal() ([]byte, error) {
	buf, err := yaml.Marshal(&c)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return buf, nil
}
