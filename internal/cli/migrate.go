package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"statusboard/internal/repository"
	"statusboard/pkg/db"
)

// NewMigrateCommand creates the project_status table when it is missing.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the project_status table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd.Context(), rootOpts)
		},
	}
}

func runMigrate(ctx context.Context, opts *RootOptions) error {
	cfg, log, err := setup(opts)
	defer log.Sync()
	if err != nil {
		return err
	}

	pool, err := db.NewConnection(ctx, cfg.DB, log)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	repo := repository.NewProjectRepository(pool, log)
	if err := repo.EnsureSchema(ctx); err != nil {
		return err
	}
	log.Info("Schema is up to date", zap.String("env", opts.Env))
	return nil
}
