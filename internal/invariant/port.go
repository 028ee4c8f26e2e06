package invariant

import (
	"context"

	"github.com/ferrobank/ferro/internal/platform/user"
)

// UserScanner finds users that violate structural rules.
type UserScanner interface {
	// FindWithoutAccounts returns non-admin users with no account at all.
	FindWithoutAccounts(ctx context.Context) ([]*user.User, error)
	// FindWithInvalidKYC returns users whose KYC status is empty or not in
	// the enum.
	FindWithInvalidKYC(ctx context.Context) ([]*user.User, error)
}

// AccountScanner finds accounts that violate structural rules.
type AccountScanner interface {
	// FindOwnerless returns ids of accounts whose owner binding is missing
	// or points at no user. The current schema forbids both, so hits come
	// from databases that predate the binding constraints.
	FindOwnerless(ctx context.Context) ([]int64, error)
}

// TransactionScanner finds transactions that violate structural rules.
type TransactionScanner interface {
	// FindUnbound returns ids of transactions missing their user or account
	// binding.
	FindUnbound(ctx context.Context) ([]int64, error)
}

// TxManager controls the database transaction a repair and its audit record
// share.
type TxManager interface {
	BeginTx(ctx context.Context) (context.Context, error)
	CommitTx(ctx context.Context) error
	RollbackTx(ctx context.Context) error
}
