// Package envemit renders the shell artifacts that make an installed
// toolchain usable: the environment script and the detached job launcher.
package envemit

import (
	"fmt"
	"path/filepath"
	"sort"

	"edasetup/internal/config"
	"edasetup/internal/state"
)

// Core variables always exported by the environment script.
const (
	VarInstallRoot = "EDA_INSTALL_ROOT"
	VarFlowHome    = "FLOW_HOME"
	VarOpenROADExe = "OPENROAD_EXE"
	VarYosysExe    = "YOSYS_EXE"
	VarOpenRAMHome = "OPENRAM_HOME"
	VarOpenRAMTech = "OPENRAM_TECH"
	VarPythonPath  = "PYTHONPATH"
)

// Descriptor is the set of variables and PATH entries the environment script
// exports. Every value is an absolute path or a literal from configuration.
type Descriptor struct {
	Vars        map[string]string `json:"vars"`
	PathPrepend []string          `json:"path_prepend"`
}

// Build derives the descriptor for st. Extra variables from cfg.Env are
// included unless they collide with a core variable or PATH.
func Build(st *state.InstallationState, cfg config.Config) (Descriptor, error) {
	if st == nil {
		return Descriptor{}, fmt.Errorf("nil installation state")
	}
	p := st.Paths

	core := map[string]string{
		VarInstallRoot: p.Root,
		VarFlowHome:    p.FlowDir,
		VarOpenROADExe: filepath.Join(p.OpenROADBin, "openroad"),
		VarYosysExe:    filepath.Join(p.YosysBin, "yosys"),
		VarOpenRAMHome: p.OpenRAMHome,
		VarOpenRAMTech: p.OpenRAMTech,
		VarPythonPath:  p.OpenRAMHome,
	}
	for name, value := range core {
		if value == "" || !filepath.IsAbs(value) {
			return Descriptor{}, fmt.Errorf("%s: path %q is not absolute", name, value)
		}
	}

	d := Descriptor{
		Vars:        make(map[string]string, len(core)+len(cfg.Env)),
		PathPrepend: []string{p.OpenROADBin, p.YosysBin, p.OpenRAMHome},
	}
	for k, v := range cfg.Env {
		if k == "PATH" {
			continue
		}
		d.Vars[k] = v
	}
	for k, v := range core {
		d.Vars[k] = v
	}
	for _, dir := range d.PathPrepend {
		if !filepath.IsAbs(dir) {
			return Descriptor{}, fmt.Errorf("PATH entry %q is not absolute", dir)
		}
	}
	return d, nil
}

// Keys returns the variable names in sorted order.
func (d Descriptor) Keys() []string {
	keys := make([]string, 0, len(d.Vars))
	for k := range d.Vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
