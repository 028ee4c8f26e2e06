package main

import (
	"github.com/spf13/cobra"

	"github.com/ferrobank/ferro/internal/system"
)

// seedCmd represents the seed command
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Bootstrap the system user and treasury reserve",
	Long: `Ensure the system user, the treasury reserve account, and the initial seed
funding exist. Safe to run repeatedly; steps that already completed are
skipped. The seed amount and optional bootstrap admin credentials come from
the environment (RESERVE_INITIAL_AMOUNT, ADMIN_EMAIL, ADMIN_PASSWORD).`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, closeFn, err := dial(ctx)
		if err != nil {
			return err
		}
		defer closeFn()

		bootstrapSvc := system.NewService(
			e.users,
			e.users,
			e.accounts,
			e.ledgerRepo,
			e.ledgerSvc,
			e.store,
			e.cfg.ReserveInitialAmount,
			e.cfg.AdminEmail,
			e.cfg.AdminPassword,
			e.log,
		)

		reserve, err := bootstrapSvc.Bootstrap(ctx)
		if err != nil {
			return err
		}

		cmd.Printf("Treasury reserve ready\n")
		cmd.Printf("  system user id:  %d\n", reserve.UserID)
		cmd.Printf("  reserve account: %s (id %d)\n", reserve.AccountNumber, reserve.AccountID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}
