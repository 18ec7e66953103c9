package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/upb/order-desk/models"
	"github.com/upb/order-desk/repositories/postgres"
	"github.com/upb/order-desk/services/audit"
)

// NewAuditCmd creates the audit command
func NewAuditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Print stored audit entries as JSON lines",
		Long: `Print audit entries, newest first. With --request-id only the entries
written while handling that request are printed.`,
		RunE: runAudit,
	}

	cmd.Flags().Int("limit", 50, "maximum number of entries")
	cmd.Flags().Int("offset", 0, "number of entries to skip")
	cmd.Flags().String("request-id", "", "only entries for this request ID")

	return cmd
}

func runAudit(cmd *cobra.Command, args []string) error {
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

	// Reads go straight to the repository, so the worker pool is never started
	reader := audit.NewAuditService(factory.NewRepositories().AuditLogs, logger, audit.DefaultConfig(), nil)

	limit, _ := cmd.Flags().GetInt("limit")
	offset, _ := cmd.Flags().GetInt("offset")
	requestID, _ := cmd.Flags().GetString("request-id")

	var logs []*models.AuditLog
	if requestID != "" {
		logs, err = reader.ListForRequest(ctx, requestID)
	} else {
		logs, err = reader.ListRecent(ctx, limit, offset)
	}
	if err != nil {
		return fmt.Errorf("failed to list audit entries: %w", err)
	}

	return writeJSONLines(cmd.OutOrStdout(), logs)
}

func writeJSONLines(w io.Writer, logs []*models.AuditLog) error {
	enc := json.NewEncoder(w)
	for _, l := range logs {
		if err := enc.Encode(l); err != nil {
			return err
		}
	}
	return nil
}
