package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/upb/order-desk/repositories/postgres"
	"go.uber.org/zap"
)

// NewMigrateCmd creates the migrate command
func NewMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the database schema",
		Long: `Create the users, orders and audit_logs tables if they do not exist.
When DATABASE_URL_AUDIT is set the audit table is also created there.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, logger, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			factory, err := postgres.NewRepositoryFactory(cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer factory.Close()

			if err := factory.InitSchema(ctx); err != nil {
				return fmt.Errorf("failed to create schema: %w", err)
			}

			logger.Info("schema ready", zap.String("driver", factory.GetDB().Driver()))
			fmt.Fprintln(cmd.OutOrStdout(), "schema ready")
			return nil
		},
	}
}
