package eda

import (
	"context"
	"path/filepath"

	"edasetup/internal/stage"
	"edasetup/internal/state"
	"edasetup/internal/tools"
)

func (c *Catalog) flowScriptsStage() stage.Stage {
	return stage.Stage{
		Name:      StageFlowScripts,
		DependsOn: []string{StagePackages},
		LogPath:   c.paths.StageLog(StageFlowScripts),
		Detect: func(ctx context.Context, _ *state.InstallationState) tools.Report {
			return c.detector().Detect(ctx,
				tools.GitCheckout{Dir: c.paths.FlowScripts},
				tools.File{Path: filepath.Join(c.paths.FlowScripts, "build_openroad.sh")},
			)
		},
		Run: func(ctx context.Context, x *stage.Exec) error {
			if err := clone(ctx, x, c.cfg.FlowScripts, c.paths.FlowScripts, true); err != nil {
				return err
			}
			if c.opts.Upgrade {
				return x.CommandIn(ctx, c.paths.FlowScripts, "sudo", "./setup.sh")
			}
			return nil
		},
	}
}

func (c *Catalog) openROADStage() stage.Stage {
	return stage.Stage{
		Name:      StageOpenROAD,
		DependsOn: []string{StageYosys},
		LogPath:   c.paths.StageLog(StageOpenROAD),
		Detect: func(ctx context.Context, _ *state.InstallationState) tools.Report {
			return c.detector().Detect(ctx, tools.Executable{
				Name:        "openroad",
				Dir:         c.paths.OpenROADBin,
				VersionArgs: []string{"-version"},
			})
		},
		Run: func(ctx context.Context, x *stage.Exec) error {
			args := []string{"--local", "--threads", c.jobs()}
			args = append(args, c.cfg.OpenROAD.BuildArgs...)
			return x.CommandIn(ctx, c.paths.FlowScripts, "./build_openroad.sh", args...)
		},
		Test: func(ctx context.Context, x *stage.Exec) error {
			return x.Shell(ctx, c.paths.FlowDir, "source ../env.sh && make DESIGN_CONFIG="+shellWord(c.cfg.OpenROAD.TestDesign))
		},
	}
}
