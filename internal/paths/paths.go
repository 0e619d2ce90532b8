package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"edasetup/internal/config"
)

// DefaultDirName is the install root used when --install-dir is not given,
// relative to the user's home directory.
const DefaultDirName = "eda"

// InstallPaths captures canonical locations for one install root. Every path
// is absolute.
type InstallPaths struct {
	Root         string
	ConfigFile   string
	LogsDir      string
	FlowScripts  string
	FlowDir      string
	OpenROADBin  string
	YosysPrefix  string
	YosysBin     string
	YosysSource  string
	OpenRAM      string
	OpenRAMHome  string
	OpenRAMTech  string
	EnvScript    string
	LauncherFile string
}

// Resolve determines the install root using the optional --install-dir flag or
// ~/eda when the flag is empty.
func Resolve(installFlag string) (InstallPaths, error) {
	var (
		root string
		err  error
	)

	if strings.TrimSpace(installFlag) != "" {
		root, err = filepath.Abs(expandHome(installFlag))
	} else {
		var home string
		home, err = os.UserHomeDir()
		if err == nil {
			root = filepath.Join(home, DefaultDirName)
		}
	}
	if err != nil {
		return InstallPaths{}, fmt.Errorf("resolve install root: %w", err)
	}

	return newInstallPaths(filepath.Clean(root)), nil
}

func newInstallPaths(root string) InstallPaths {
	return InstallPaths{
		Root:       root,
		ConfigFile: filepath.Join(root, config.FileName),
		LogsDir:    filepath.Join(root, "logs"),
		EnvScript:  filepath.Join(root, "eda_env.sh"),
	}
}

// ApplyConfig fills in the component locations described by cfg.
func ApplyConfig(ip InstallPaths, cfg config.Config) InstallPaths {
	ip.FlowScripts = resolveRootPath(ip.Root, cfg.FlowScripts.Dir)
	ip.FlowDir = filepath.Join(ip.FlowScripts, "flow")
	ip.OpenROADBin = filepath.Join(ip.FlowScripts, "tools", "install", "OpenROAD", "bin")
	ip.YosysPrefix = filepath.Join(ip.FlowScripts, "tools", "install", "yosys")
	ip.YosysBin = filepath.Join(ip.YosysPrefix, "bin")
	ip.YosysSource = resolveRootPath(ip.Root, cfg.Yosys.Source.Dir)
	ip.OpenRAM = resolveRootPath(ip.Root, cfg.OpenRAM.Repo.Dir)
	ip.OpenRAMHome = filepath.Join(ip.OpenRAM, "compiler")
	ip.OpenRAMTech = resolveRootPath(ip.OpenRAM, cfg.OpenRAM.Tech)
	ip.LauncherFile = filepath.Join(ip.Root, cfg.Launcher.Script)
	return ip
}

// StageLog returns the append-only log file for the named stage.
func (p InstallPaths) StageLog(stage string) string {
	return filepath.Join(p.LogsDir, stage+".log")
}

// Contains reports whether path lives inside the install root.
func (p InstallPaths) Contains(path string) bool {
	if path == "" {
		return false
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(p.Root, abs)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

func resolveRootPath(root, value string) string {
	if filepath.IsAbs(value) {
		return filepath.Clean(value)
	}
	return filepath.Join(root, value)
}

func expandHome(value string) string {
	if value != "~" && !strings.HasPrefix(value, "~/") {
		return value
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return value
	}
	return filepath.Join(home, strings.TrimPrefix(value, "~"))
}

// EnsureRoot makes sure the install root and its logs directory exist.
func (p InstallPaths) EnsureRoot() error {
	for _, dir := range []string{p.Root, p.LogsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// FileExists reports whether a path exists and is a regular file.
func FileExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

// DirExists reports whether a path exists and is a directory.
func DirExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return info.IsDir(), nil
}
