package ledger_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ferrobank/ferro/internal/apperr"
	"github.com/ferrobank/ferro/internal/ledger"
	"github.com/ferrobank/ferro/testutil/memstore"
)

func newTransaction(t *testing.T, repo ledger.Repository, userID, accountID int64, amount string) *ledger.Transaction {
	t.Helper()

	tx := &ledger.Transaction{
		Reference: uuid.New(),
		UserID:    userID,
		AccountID: accountID,
		Amount:    decimal.RequireFromString(amount),
		Type:      ledger.TransactionTypeTransfer,
		Direction: ledger.DirectionDebit,
		Status:    ledger.TransactionStatusCompleted,
	}
	require.NoError(t, repo.CreateTransaction(context.Background(), tx))
	return tx
}

// =============================================================================
// AppendPair Tests
// =============================================================================

func TestService_AppendPair(t *testing.T) {
	db := memstore.New()
	repo := db.Ledger()
	svc := ledger.NewService(repo)
	ctx := context.Background()

	tx := newTransaction(t, repo, 1, 1, "100.00")

	debitID, creditID, err := svc.AppendPair(ctx, tx.ID, 1, 2, decimal.RequireFromString("100.00"), "transfer to bob")
	require.NoError(t, err)
	require.NotZero(t, debitID)
	require.NotZero(t, creditID)
	assert.NotEqual(t, debitID, creditID)

	entries, err := repo.GetEntriesByTransaction(ctx, tx.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	var debit, credit *ledger.Entry
	for _, e := range entries {
		switch e.EntryType {
		case ledger.EntryTypeDebit:
			debit = e
		case ledger.EntryTypeCredit:
			credit = e
		}
	}
	require.NotNil(t, debit)
	require.NotNil(t, credit)

	// Equal amounts on both sides.
	assert.True(t, debit.Amount.Equal(credit.Amount))

	// Linked in both directions.
	require.NotNil(t, debit.RelatedEntryID)
	require.NotNil(t, credit.RelatedEntryID)
	assert.Equal(t, credit.ID, *debit.RelatedEntryID)
	assert.Equal(t, debit.ID, *credit.RelatedEntryID)

	// Both posted with the movement recorded on each side.
	assert.Equal(t, ledger.EntryStatusPosted, debit.Status)
	assert.Equal(t, ledger.EntryStatusPosted, credit.Status)
	assert.NotNil(t, debit.PostedAt)
	assert.NotNil(t, credit.PostedAt)

	require.NotNil(t, debit.SourceUserID)
	require.NotNil(t, debit.DestinationUserID)
	assert.Equal(t, int64(1), *debit.SourceUserID)
	assert.Equal(t, int64(2), *debit.DestinationUserID)
	assert.Equal(t, int64(1), debit.UserID)
	assert.Equal(t, int64(2), credit.UserID)
}

func TestService_AppendPair_RejectsNonPositiveAmount(t *testing.T) {
	db := memstore.New()
	svc := ledger.NewService(db.Ledger())

	_, _, err := svc.AppendPair(context.Background(), 1, 1, 2, decimal.Zero, "noop")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeLedgerImbalance))
	assert.ErrorIs(t, err, ledger.ErrNonPositiveAmount)
}

// =============================================================================
// Reverse Tests
// =============================================================================

func TestService_Reverse(t *testing.T) {
	db := memstore.New()
	repo := db.Ledger()
	svc := ledger.NewService(repo)
	ctx := context.Background()

	original := newTransaction(t, repo, 1, 1, "75.00")
	_, _, err := svc.AppendPair(ctx, original.ID, 1, 2, original.Amount, "transfer to bob")
	require.NoError(t, err)

	reversal, err := svc.Reverse(ctx, original.ID, "duplicate charge")
	require.NoError(t, err)
	require.NotNil(t, reversal)

	// Compensating transaction mirrors the original.
	assert.Equal(t, ledger.TransactionTypeReversal, reversal.Type)
	assert.Equal(t, ledger.TransactionStatusCompleted, reversal.Status)
	assert.Equal(t, ledger.DirectionCredit, reversal.Direction, "opposite of the original debit")
	assert.True(t, reversal.Amount.Equal(original.Amount))
	assert.Equal(t, original.UserID, reversal.UserID)
	assert.Equal(t, original.AccountID, reversal.AccountID)
	assert.Contains(t, reversal.Description, "duplicate charge")

	// Original entries are flipped to reversed, never deleted.
	origEntries, err := repo.GetEntriesByTransaction(ctx, original.ID)
	require.NoError(t, err)
	require.Len(t, origEntries, 2)
	for _, e := range origEntries {
		assert.Equal(t, ledger.EntryStatusReversed, e.Status)
		assert.NotNil(t, e.ReversedAt)
	}

	// Compensating pair runs the opposite way: debit the original credit
	// party, credit the original debit party.
	revEntries, err := repo.GetEntriesByTransaction(ctx, reversal.ID)
	require.NoError(t, err)
	require.Len(t, revEntries, 2)
	for _, e := range revEntries {
		assert.Equal(t, ledger.EntryStatusPosted, e.Status)
		switch e.EntryType {
		case ledger.EntryTypeDebit:
			assert.Equal(t, int64(2), e.UserID)
		case ledger.EntryTypeCredit:
			assert.Equal(t, int64(1), e.UserID)
		}
	}
}

func TestService_Reverse_Twice(t *testing.T) {
	db := memstore.New()
	repo := db.Ledger()
	svc := ledger.NewService(repo)
	ctx := context.Background()

	original := newTransaction(t, repo, 1, 1, "30.00")
	_, _, err := svc.AppendPair(ctx, original.ID, 1, 2, original.Amount, "transfer")
	require.NoError(t, err)

	_, err = svc.Reverse(ctx, original.ID, "first")
	require.NoError(t, err)

	_, err = svc.Reverse(ctx, original.ID, "second")
	assert.ErrorIs(t, err, ledger.ErrAlreadyReversed)
}

func TestService_Reverse_PairNotPosted(t *testing.T) {
	db := memstore.New()
	svc := ledger.NewService(db.Ledger())
	ctx := context.Background()

	txID := db.PutTransaction(&ledger.Transaction{
		Reference: uuid.New(),
		UserID:    1,
		AccountID: 1,
		Amount:    decimal.NewFromInt(50),
		Type:      ledger.TransactionTypeDeposit,
		Direction: ledger.DirectionCredit,
		Status:    ledger.TransactionStatusPending,
	})
	for _, et := range []ledger.EntryType{ledger.EntryTypeDebit, ledger.EntryTypeCredit} {
		db.PutEntry(&ledger.Entry{
			UserID:        1,
			EntryType:     et,
			Amount:        decimal.NewFromInt(50),
			TransactionID: txID,
			Status:        ledger.EntryStatusPending,
		})
	}

	_, err := svc.Reverse(ctx, txID, "never posted")
	assert.ErrorIs(t, err, ledger.ErrPairNotPosted)
}

func TestService_Reverse_MissingPair(t *testing.T) {
	db := memstore.New()
	repo := db.Ledger()
	svc := ledger.NewService(repo)
	ctx := context.Background()

	// A transaction with no entries at all.
	empty := newTransaction(t, repo, 1, 1, "10.00")
	_, err := svc.Reverse(ctx, empty.ID, "no entries")
	assert.ErrorIs(t, err, ledger.ErrEntryPairNotFound)

	// A transaction with a single orphaned entry.
	half := newTransaction(t, repo, 1, 1, "10.00")
	db.PutEntry(&ledger.Entry{
		UserID:        1,
		EntryType:     ledger.EntryTypeDebit,
		Amount:        decimal.NewFromInt(10),
		TransactionID: half.ID,
		Status:        ledger.EntryStatusPosted,
	})
	_, err = svc.Reverse(ctx, half.ID, "half a pair")
	assert.ErrorIs(t, err, ledger.ErrEntryPairNotFound)

	_, err = svc.Reverse(ctx, 9999, "missing")
	assert.ErrorIs(t, err, ledger.ErrTransactionNotFound)
}

// =============================================================================
// VerifyBalanced Tests
// =============================================================================

func TestService_VerifyBalanced_CleanLedger(t *testing.T) {
	db := memstore.New()
	repo := db.Ledger()
	svc := ledger.NewService(repo)
	ctx := context.Background()

	tx := newTransaction(t, repo, 1, 1, "100.00")
	_, _, err := svc.AppendPair(ctx, tx.ID, 1, 2, tx.Amount, "transfer")
	require.NoError(t, err)

	imbalances, unpaired, nonPositive, err := svc.VerifyBalanced(ctx)
	require.NoError(t, err)
	assert.Empty(t, imbalances)
	assert.Empty(t, unpaired)
	assert.Empty(t, nonPositive)
}

func TestService_VerifyBalanced_DetectsCorruption(t *testing.T) {
	db := memstore.New()
	svc := ledger.NewService(db.Ledger())
	ctx := context.Background()

	// Unbalanced pair: sides sum to different totals.
	unbalancedTx := db.PutTransaction(&ledger.Transaction{
		Reference: uuid.New(),
		UserID:    1,
		AccountID: 1,
		Amount:    decimal.NewFromInt(100),
		Type:      ledger.TransactionTypeTransfer,
		Direction: ledger.DirectionDebit,
		Status:    ledger.TransactionStatusCompleted,
	})
	d1 := db.PutEntry(&ledger.Entry{
		UserID: 1, EntryType: ledger.EntryTypeDebit,
		Amount: decimal.NewFromInt(100), TransactionID: unbalancedTx,
		Status: ledger.EntryStatusPosted,
	})
	c1 := db.PutEntry(&ledger.Entry{
		UserID: 2, EntryType: ledger.EntryTypeCredit,
		Amount: decimal.NewFromInt(60), TransactionID: unbalancedTx,
		Status: ledger.EntryStatusPosted, RelatedEntryID: &d1,
	})
	db.SetRelated(d1, c1)

	// Entry that never got a counterpart.
	orphanTx := db.PutTransaction(&ledger.Transaction{
		Reference: uuid.New(),
		UserID:    3,
		AccountID: 3,
		Amount:    decimal.NewFromInt(20),
		Type:      ledger.TransactionTypeDeposit,
		Direction: ledger.DirectionCredit,
		Status:    ledger.TransactionStatusCompleted,
	})
	orphanEntry := db.PutEntry(&ledger.Entry{
		UserID: 3, EntryType: ledger.EntryTypeCredit,
		Amount: decimal.NewFromInt(20), TransactionID: orphanTx,
		Status: ledger.EntryStatusPosted,
	})

	imbalances, unpaired, nonPositive, err := svc.VerifyBalanced(ctx)
	require.NoError(t, err)

	// The orphan credits 20 against no debit, so its transaction is
	// unbalanced too.
	require.Len(t, imbalances, 2)
	assert.Equal(t, unbalancedTx, imbalances[0].TransactionID)
	assert.Equal(t, "100.00", imbalances[0].DebitTotal)
	assert.Equal(t, "60.00", imbalances[0].CreditTotal)

	assert.Equal(t, []int64{orphanEntry}, unpaired)
	assert.Empty(t, nonPositive)
}

func TestService_VerifyBalanced_DetectsNonPositiveEntries(t *testing.T) {
	db := memstore.New()
	svc := ledger.NewService(db.Ledger())

	txID := db.PutTransaction(&ledger.Transaction{
		Reference: uuid.New(),
		UserID:    1,
		AccountID: 1,
		Amount:    decimal.NewFromInt(1),
		Type:      ledger.TransactionTypeDeposit,
		Direction: ledger.DirectionCredit,
		Status:    ledger.TransactionStatusCompleted,
	})
	d := db.PutEntry(&ledger.Entry{
		UserID: 1, EntryType: ledger.EntryTypeDebit,
		Amount: decimal.Zero, TransactionID: txID,
		Status: ledger.EntryStatusPosted,
	})
	c := db.PutEntry(&ledger.Entry{
		UserID: 2, EntryType: ledger.EntryTypeCredit,
		Amount: decimal.Zero, TransactionID: txID,
		Status: ledger.EntryStatusPosted,
	})
	db.SetRelated(d, c)
	db.SetRelated(c, d)

	_, _, nonPositive, err := svc.VerifyBalanced(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{d, c}, nonPositive)
}
