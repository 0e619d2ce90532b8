package cli

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"edasetup/internal/config"
	"edasetup/internal/eda"
	"edasetup/internal/logx"
	"edasetup/internal/paths"
	"edasetup/internal/platform"
	"edasetup/internal/stage"
	"edasetup/internal/state"
	"edasetup/internal/tools"
)

// Seams replaced by tests.
var (
	currentHost = platform.CurrentHost
	probeQuery  tools.Query
	newRunner   = func() stage.Runner { return stage.CmdRunner{} }
	environ     = os.Environ
)

// session is everything a command needs about one install root.
type session struct {
	paths   paths.InstallPaths
	cfg     config.Config
	state   *state.InstallationState
	catalog *eda.Catalog
	logger  *log.Logger
	closer  io.Closer
}

func (s *session) Close() {
	if s.closer != nil {
		s.closer.Close()
	}
}

type sessionOptions struct {
	fresh bool
	// persistent sessions create the install root and a run log.
	persistent bool
	catalog    eda.Options
}

func openSession(cmd *cobra.Command, opts sessionOptions) (*session, error) {
	ip, err := paths.Resolve(installDir)
	if err != nil {
		return nil, err
	}
	cfgPath := ip.ConfigFile
	if strings.TrimSpace(configFile) != "" {
		cfgPath = configFile
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if err := reportValidation(cmd, cfg); err != nil {
		return nil, err
	}
	ip = paths.ApplyConfig(ip, cfg)

	s := &session{paths: ip, cfg: cfg, logger: logx.Discard()}
	if opts.persistent {
		if err := ip.EnsureRoot(); err != nil {
			return nil, err
		}
		logger, closer, err := logx.New(ip)
		if err != nil {
			return nil, err
		}
		s.logger = logger
		s.closer = closer
	}

	s.state = state.Derive(ip, environ(), opts.fresh)
	if cleared := s.state.Cleared(); len(cleared) > 0 {
		s.logger.Printf("--fresh: ignoring %s", strings.Join(cleared, ", "))
	}

	if opts.catalog.Query == nil {
		opts.catalog.Query = probeQuery
	}
	s.catalog, err = eda.NewCatalog(cfg, ip, opts.catalog)
	if err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func reportValidation(cmd *cobra.Command, cfg config.Config) error {
	results := cfg.Validate()
	for _, r := range results {
		fmt.Fprintf(cmd.ErrOrStderr(), "config %s: %s\n", r.Level, r.Message)
	}
	if config.HasErrors(results) {
		return fmt.Errorf("configuration is invalid")
	}
	return nil
}
