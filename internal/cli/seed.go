package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/upb/order-desk/repositories/postgres"
	"github.com/upb/order-desk/services/seed"
)

// NewSeedCmd creates the seed command
func NewSeedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the demo user and sample orders",
		Long: `Create the demo account from DEV_SEED_EMAIL / DEV_SEED_PASSWORD and a
handful of sample orders. Running it again leaves existing data untouched.`,
		RunE: runSeed,
	}
	cmd.Flags().Bool("force", false, "allow seeding in production")
	return cmd
}

func runSeed(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, logger, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if force, _ := cmd.Flags().GetBool("force"); cfg.IsProduction() && !force {
		return errors.New("refusing to seed a production database without --force")
	}

	factory, err := postgres.NewRepositoryFactory(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer factory.Close()

	if err := factory.InitSchema(ctx); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	repos := factory.NewRepositories()
	seeder := seed.NewService(repos.Users, repos.Orders, factory.GetTransactionManager(),
		cfg.Dev.SeedEmail, cfg.Dev.SeedPassword, logger)

	result, err := seeder.Seed(ctx)
	if err != nil {
		return fmt.Errorf("failed to seed: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "user %s (%s) created=%t, orders created=%d\n",
		result.Email, result.UserID, result.UserCreated, result.OrdersCreated)
	return nil
}
