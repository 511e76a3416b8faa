package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"statusboard/internal/config"
	pkgconfig "statusboard/pkg/config"
	"statusboard/pkg/logger"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Env       string
	ConfigDir string
	Verbose   bool
}

// NewRootCommand creates the root command for the statusboard CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "statusboard",
		Short:         "Multi-project status dashboard",
		Long:          "Statusboard serves per-project status forms and a combined summary backed by Postgres.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.Env, "env", pkgconfig.GetConfigEnv(), "config environment (base.yaml is merged with <env>.yaml)")
	cmd.PersistentFlags().StringVar(&opts.ConfigDir, "config-dir", "config", "directory holding the yaml config files")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))

	return cmd
}

// setup loads config and builds the logger shared by every subcommand.
func setup(opts *RootOptions) (*config.Config, *zap.Logger, error) {
	log := logger.NewLogger(opts.Verbose)

	cfg, err := config.Load(opts.Env, opts.ConfigDir)
	if err != nil {
		return nil, log, fmt.Errorf("load config (env=%s dir=%s): %w", opts.Env, opts.ConfigDir, err)
	}
	return cfg, log, nil
}
