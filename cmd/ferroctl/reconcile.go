package main

import (
	"github.com/spf13/cobra"

	"github.com/ferrobank/ferro/internal/reconcile"
	"github.com/ferrobank/ferro/pkg/money"
)

// reconcileCmd represents the reconcile command
var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Reconcile cached account balances against the ledger",
	Long: `Run one reconciliation pass over every account: derive each owner's balance
from posted ledger entries and compare it with the cached balance column.
Drift beyond the tolerance is repaired and written to the audit trail under
the system user.

The API server runs the same pass on a timer; this command exists for
ad-hoc runs and deployments without the server.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, closeFn, err := dial(ctx)
		if err != nil {
			return err
		}
		defer closeFn()

		reconciler := reconcile.NewReconciler(e.accounts, e.balances, e.audits, e.store, e.log)

		summary, err := reconciler.ReconcileAll(ctx)
		if err != nil {
			return err
		}

		for _, res := range summary.Results {
			cmd.Printf("DRIFT  account %s (id %d): cached %s, ledger %s, drift %s\n",
				res.AccountNumber, res.AccountID,
				money.Format(res.Cached), money.Format(res.Derived), money.Format(res.Drift))
		}
		cmd.Printf("Checked %d account(s), repaired %d\n", summary.Checked, summary.Repaired)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
}
