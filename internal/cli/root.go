// Package cli implements the order-desk command line.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/upb/order-desk/config"
	"github.com/upb/order-desk/internal/observability"
	"go.uber.org/zap"
)

var (
	// Global flags
	envFile string
)

// NewRootCmd creates the root command for order-desk
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "order-desk",
		Short: "order-desk - order management backend with a chat assistant",
		Long: `order-desk serves the order management API:
  1. Order CRUD scoped to the authenticated user
  2. A chat assistant that answers questions about the user's orders
  3. A request gate that authenticates every call and audits denials

Configuration is read from environment variables, optionally seeded from a
.env file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if envFile == "" {
				return nil
			}
			if err := godotenv.Load(envFile); err != nil {
				return fmt.Errorf("failed to load env file %s: %w", envFile, err)
			}
			return nil
		},
	}

	// Global flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&envFile, "env-file", "e", "", "extra env file to load before .env")

	// Add subcommands
	rootCmd.AddCommand(NewServeCmd())
	rootCmd.AddCommand(NewMigrateCmd())
	rootCmd.AddCommand(NewSeedCmd())
	rootCmd.AddCommand(NewAuditCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// bootstrap loads the configuration and builds the logger shared by all
// subcommands
func bootstrap(ctx context.Context) (*config.Config, *zap.Logger, error) {
	cfg, err := config.New(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := observability.NewLogger(cfg.Observability)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return cfg, logger, nil
}
