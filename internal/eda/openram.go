package eda

import (
	"context"
	"path/filepath"
	"strings"

	"edasetup/internal/stage"
	"edasetup/internal/state"
	"edasetup/internal/tools"
)

// OpenRAMEnv returns the variables OpenRAM needs, scoped to the install root.
// A hint from the caller's environment is honoured only when it already
// points inside the root.
func (c *Catalog) OpenRAMEnv(st *state.InstallationState) []string {
	home := c.paths.OpenRAMHome
	tech := c.paths.OpenRAMTech
	if st != nil {
		if v, ok := st.Hint("OPENRAM_HOME"); ok {
			home = filepath.Clean(v)
		}
		if v, ok := st.Hint("OPENRAM_TECH"); ok {
			tech = filepath.Clean(v)
		}
	}
	return []string{
		"OPENRAM_HOME=" + home,
		"OPENRAM_TECH=" + tech,
		"PYTHONPATH=" + home,
	}
}

func (c *Catalog) openRAMStage() stage.Stage {
	return stage.Stage{
		Name:      StageOpenRAM,
		DependsOn: []string{StagePackages},
		LogPath:   c.paths.StageLog(StageOpenRAM),
		Detect: func(ctx context.Context, st *state.InstallationState) tools.Report {
			var env []string
			if st != nil {
				env = st.Environ(c.OpenRAMEnv(st)...)
			}
			return c.detector().Detect(ctx,
				tools.GitCheckout{Dir: c.paths.OpenRAM},
				tools.PythonImport{Module: "openram", Env: env},
			)
		},
		Run: func(ctx context.Context, x *stage.Exec) error {
			if err := clone(ctx, x, c.cfg.OpenRAM.Repo, c.paths.OpenRAM, false); err != nil {
				return err
			}
			args := []string{"install", "--user"}
			if c.opts.Upgrade {
				args = append(args, "--upgrade")
			}
			args = append(args, "-r", c.cfg.OpenRAM.Requirements)
			return x.Run(ctx, stage.Cmd{Dir: c.paths.OpenRAM, Name: "pip3", Args: args, Env: c.OpenRAMEnv(x.State)})
		},
		Test: func(ctx context.Context, x *stage.Exec) error {
			return x.Run(ctx, stage.Cmd{
				Dir:  c.paths.OpenRAM,
				Name: "make",
				Args: []string{"-C", filepath.Join("compiler", "tests"), "-j", c.jobs()},
				Env:  c.OpenRAMEnv(x.State),
			})
		},
	}
}

func shellWord(s string) string {
	if s != "" && !strings.ContainsAny(s, " \t\n'\"$`\\;&|<>()*?[]{}!#~") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
