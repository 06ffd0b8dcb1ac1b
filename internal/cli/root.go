// Package cli implements the pdsi command: one-shot computations from files
// and an installation check for the scPDSI engine.
package cli

import (
	"context"
	"log/slog"
	"time"

	"github.com/couchcryptid/palmer-drought-service/internal/config"
	"github.com/couchcryptid/palmer-drought-service/internal/observability"
	"github.com/spf13/cobra"
)

// globalOptions are the persistent flags. Each one overrides the matching
// environment variable only when set on the command line.
type globalOptions struct {
	engineRoot    string
	engineTimeout time.Duration
	workspaceDir  string
	logLevel      string
	logFormat     string
}

// NewRootCmd builds the pdsi command tree.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "pdsi",
		Short: "Compute Palmer drought indices with the scPDSI engine",
		Long: `pdsi runs the scPDSI engine over a monthly climate series and prints the
original and self-calibrated Palmer Drought Severity Index tables.

Engine and workspace defaults come from PDSI_ENGINE_ROOT, PDSI_ENGINE_TIMEOUT
and PDSI_WORKSPACE_DIR; the flags below override them.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.engineRoot, "engine-root", "", "directory holding the platform engine binaries")
	pf.DurationVar(&opts.engineTimeout, "engine-timeout", 0, "engine run limit, 0 disables")
	pf.StringVar(&opts.workspaceDir, "workspace-dir", "", "parent directory for per-run workspaces")
	pf.StringVar(&opts.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	pf.StringVar(&opts.logFormat, "log-format", "text", "log format (text, json)")

	root.AddCommand(newComputeCmd(opts), newCheckCmd(opts))
	return root
}

// Execute runs the root command with ctx.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

// load reads the environment configuration and applies flag overrides.
func (o *globalOptions) load(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("engine-root") {
		cfg.EngineRoot = o.engineRoot
	}
	if flags.Changed("engine-timeout") {
		cfg.EngineTimeout = o.engineTimeout
	}
	if flags.Changed("workspace-dir") {
		cfg.WorkspaceDir = o.workspaceDir
	}
	// A one-shot run has nothing to reuse a cached result for.
	cfg.ResultCacheSize = 0

	logger := observability.NewLoggerTo(cmd.ErrOrStderr(), o.logLevel, o.logFormat)
	return cfg, logger, nil
}
