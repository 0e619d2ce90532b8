package eda

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"edasetup/internal/stage"
	"edasetup/internal/state"
	"edasetup/internal/tools"
)

func (c *Catalog) yosysStage() stage.Stage {
	return stage.Stage{
		Name:      StageYosys,
		DependsOn: []string{StageFlowScripts},
		LogPath:   c.paths.StageLog(StageYosys),
		Detect: func(ctx context.Context, _ *state.InstallationState) tools.Report {
			min := c.yosys.Min
			return c.detector().Detect(ctx, tools.Executable{
				Name:        "yosys",
				Dir:         c.paths.YosysBin,
				VersionArgs: []string{"-V"},
				Min:         &min,
			})
		},
		Run: func(ctx context.Context, x *stage.Exec) error {
			decision := c.ChooseYosys(ctx, x.State)
			x.Note("yosys: %s (%s)", decision.Variant, decision.Reason)
			if decision.Variant == tools.UseExisting {
				return linkExisting(x, decision.Path, c.paths.YosysBin)
			}
			return c.buildYosys(ctx, x)
		},
	}
}

// ChooseYosys decides whether a yosys found outside the install root is new
// enough to reuse.
func (c *Catalog) ChooseYosys(ctx context.Context, st *state.InstallationState) tools.Decision {
	var pathEnv string
	if st != nil {
		pathEnv = st.Getenv("PATH")
	}
	path, err := tools.LookPathExcluding("yosys", pathEnv, c.paths.Contains)
	if err != nil {
		path = ""
	}
	return tools.Gate{Query: c.opts.Query}.Choose(ctx, c.yosys, path, []string{"-V"})
}

func (c *Catalog) buildYosys(ctx context.Context, x *stage.Exec) error {
	if err := clone(ctx, x, c.cfg.Yosys.Source, c.paths.YosysSource, true); err != nil {
		return err
	}
	return x.CommandIn(ctx, c.paths.YosysSource, "make", "-j", c.jobs(), "install", "PREFIX="+c.paths.YosysPrefix)
}

// linkExisting points the scoped yosys binaries at an existing install.
func linkExisting(x *stage.Exec, yosysPath, binDir string) error {
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", binDir, err)
	}
	srcDir := filepath.Dir(yosysPath)
	for _, name := range []string{"yosys", "yosys-abc", "yosys-config"} {
		src := filepath.Join(srcDir, name)
		if _, err := os.Stat(src); err != nil {
			continue
		}
		dest := filepath.Join(binDir, name)
		if err := os.Remove(dest); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("replace %s: %w", dest, err)
		}
		if err := os.Symlink(src, dest); err != nil {
			return fmt.Errorf("link %s: %w", dest, err)
		}
		x.Note("linked %s -> %s", dest, src)
	}
	return nil
}
