// Package eda is the stage catalog for the OpenROAD, OpenROAD-flow-scripts
// and OpenRAM toolchains.
package eda

import (
	"context"
	"strconv"

	"edasetup/internal/config"
	"edasetup/internal/paths"
	"edasetup/internal/stage"
	"edasetup/internal/state"
	"edasetup/internal/tools"
)

// Stage names.
const (
	StagePackages    = "packages"
	StageFlowScripts = "flow-scripts"
	StageYosys       = "yosys"
	StageOpenROAD    = "openroad"
	StageOpenRAM     = "openram"
)

// Options tune how stages run. They never change how stages detect.
type Options struct {
	// Upgrade refreshes dependencies while installing.
	Upgrade bool
	// Jobs overrides the configured build parallelism when positive.
	Jobs int
	// Query runs read-only probe commands; nil uses tools.ExecQuery.
	Query tools.Query
}

// Catalog builds the stage list for one configuration.
type Catalog struct {
	cfg   config.Config
	paths paths.InstallPaths
	opts  Options
	yosys tools.Requirement
}

// NewCatalog validates cfg enough to build stages from it.
func NewCatalog(cfg config.Config, p paths.InstallPaths, opts Options) (*Catalog, error) {
	req, err := tools.ParseRequirement("yosys", cfg.Yosys.MinVersion)
	if err != nil {
		return nil, err
	}
	if opts.Query == nil {
		opts.Query = tools.ExecQuery
	}
	return &Catalog{cfg: cfg, paths: p, opts: opts, yosys: req}, nil
}

// Stages returns every stage in declaration order.
func (c *Catalog) Stages() []stage.Stage {
	return []stage.Stage{
		c.packagesStage(),
		c.flowScriptsStage(),
		c.yosysStage(),
		c.openROADStage(),
		c.openRAMStage(),
	}
}

// Names lists the stage names in declaration order.
func Names() []string {
	return []string{StagePackages, StageFlowScripts, StageYosys, StageOpenROAD, StageOpenRAM}
}

func (c *Catalog) jobs() string {
	n := c.cfg.Jobs
	if c.opts.Jobs > 0 {
		n = c.opts.Jobs
	}
	if n <= 0 {
		n = 1
	}
	return strconv.Itoa(n)
}

func (c *Catalog) detector() tools.Detector {
	return tools.Detector{Query: c.opts.Query}
}

func (c *Catalog) packagesStage() stage.Stage {
	return stage.Stage{
		Name:    StagePackages,
		LogPath: c.paths.StageLog(StagePackages),
		Detect: func(ctx context.Context, _ *state.InstallationState) tools.Report {
			return c.detector().Detect(ctx, tools.Packages{Names: c.cfg.Packages})
		},
		Run: func(ctx context.Context, x *stage.Exec) error {
			if err := x.Command(ctx, "sudo", "apt-get", "update"); err != nil {
				return err
			}
			args := append([]string{"DEBIAN_FRONTEND=noninteractive", "apt-get", "install", "-y"}, c.cfg.Packages...)
			return x.Command(ctx, "sudo", args...)
		},
	}
}
