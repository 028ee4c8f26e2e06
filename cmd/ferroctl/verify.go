package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ferrobank/ferro/internal/invariant"
)

var verifyRepair bool

// verifyCmd represents the verify command
var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify ledger and platform invariants",
	Long: `Sweep the database for invariant violations: transactions whose debit and
credit sides disagree, entries without a partner, non-positive amounts,
users without accounts, accounts without an owner, transactions missing
their bindings, and users with an unknown KYC status. Every finding
category is recorded in the audit trail under the system user.

With --repair, fixable findings are repaired (missing accounts provisioned,
unknown KYC statuses reset to pending) and each fix is written to the audit
trail under the system user. Ledger violations are never repaired
automatically; they indicate a bug that needs investigation.

Exits non-zero when violations remain.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, closeFn, err := dial(ctx)
		if err != nil {
			return err
		}
		defer closeFn()

		verifier := invariant.NewVerifier(e.users, e.users, e.accounts, e.accounts, e.ledgerRepo, e.ledgerSvc, e.audits, e.store, e.log)

		var report *invariant.Report
		if verifyRepair {
			report, err = verifier.Repair(ctx)
		} else {
			report, err = verifier.Run(ctx)
		}
		if err != nil {
			return err
		}

		printReport(cmd, report)

		if !report.Clean() {
			return fmt.Errorf("invariant violations found")
		}
		cmd.Println("All invariants hold")
		return nil
	},
}

func printReport(cmd *cobra.Command, report *invariant.Report) {
	for _, im := range report.Imbalances {
		cmd.Printf("UNBALANCED  transaction %d: debits %s, credits %s\n",
			im.TransactionID, im.DebitTotal, im.CreditTotal)
	}
	for _, id := range report.UnpairedEntries {
		cmd.Printf("UNPAIRED    entry %d has no related entry\n", id)
	}
	for _, id := range report.NonPositiveEntries {
		cmd.Printf("NONPOSITIVE entry %d has a non-positive amount\n", id)
	}
	for _, id := range report.OrphanedUsers {
		cmd.Printf("ORPHANED    user %d owns no account\n", id)
	}
	for _, id := range report.OwnerlessAccounts {
		cmd.Printf("OWNERLESS   account %d has no owning user\n", id)
	}
	for _, id := range report.UnboundTransactions {
		cmd.Printf("UNBOUND     transaction %d is missing its user or account binding\n", id)
	}
	for _, id := range report.InvalidKYCUsers {
		cmd.Printf("INVALID_KYC user %d has an unknown verification status\n", id)
	}

	if report.RepairedAccounts > 0 {
		cmd.Printf("repaired: provisioned %d missing account(s)\n", report.RepairedAccounts)
	}
	if report.RepairedKYC > 0 {
		cmd.Printf("repaired: reset %d KYC status(es) to pending\n", report.RepairedKYC)
	}
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().BoolVar(&verifyRepair, "repair", false, "repair fixable findings and audit each fix")
}
