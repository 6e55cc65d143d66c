package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"live-session-engine/internal/config"
	"live-session-engine/internal/logging"
)

// NewCleanupLedgerCmd removes ledger entries that have no student identity.
func NewCleanupLedgerCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup-ledger",
		Short: "Delete progress ledger entries without a student id",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if cfg.Postgres.URL == "" {
				return fmt.Errorf("postgres url not configured")
			}
			log, err := logging.New(cfg.Log.Level)
			if err != nil {
				return err
			}
			defer log.Sync() //nolint:errcheck

			svc, b, err := buildService(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer b.Close()

			n, err := svc.CleanupLedger(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d orphaned ledger entries\n", n)
			return nil
		},
	}
}
