package fund

import (
	"context"

	"github.com/ferrobank/ferro/internal/ledger"
)

// TxManager begins and ends database transactions carried in the context.
type TxManager interface {
	BeginTx(ctx context.Context) (context.Context, error)
	CommitTx(ctx context.Context) error
	RollbackTx(ctx context.Context) error
}

// Notifier receives committed movements. Hooks run strictly after commit;
// the engine never performs external I/O while a database transaction is
// open.
type Notifier interface {
	TransactionCommitted(ctx context.Context, tx *ledger.Transaction)
}
